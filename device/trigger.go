package device

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/modelpush/transport"
	"github.com/pithecene-io/modelpush/types"
	"github.com/pithecene-io/modelpush/wire"
)

// run handles RUN_STATS. Caller holds d.mu.
func (d *Device) run(ctx context.Context, reply transport.Sender) {
	d.metrics.IncRunRequested()
	start := d.now()
	report := types.RunReport{
		RunID:          uuid.NewString(),
		DeviceID:       d.id,
		ArtifactRegion: d.selection.Artifact.String(),
		ScratchRegion:  d.selection.Scratch.String(),
		Timestamp:      start.UTC().Format(time.RFC3339Nano),
	}
	defer func() {
		report.DurationMs = d.now().Sub(start).Milliseconds()
		if d.onRun != nil {
			d.onRun(report)
		}
	}()

	artifact, kind, err := d.session.Artifact()
	if err != nil {
		d.metrics.IncRunNotReady()
		d.logger.Warn("run rejected", map[string]any{"state": d.session.State().String()})
		report.Outcome = types.RunOutcomeNotReady
		report.Stats.StatusCode = types.StatusPrepareFailed
		d.send(reply, wire.ErrorStatus())
		return
	}
	report.ArtifactRegion = kind.String()
	report.ArtifactBytes = len(artifact)

	if d.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.runTimeout)
		defer cancel()
	}

	scratch := d.bank.Scratch(d.selection.Scratch).Bytes()
	model, err := d.exec.Prepare(ctx, artifact, scratch)
	if err != nil {
		d.metrics.IncRunPrepareFailed()
		d.logger.Warn("executor prepare failed", map[string]any{
			"executor": d.exec.Name(),
			"bytes":    len(artifact),
			"error":    err.Error(),
		})
		report.Outcome = types.RunOutcomePrepareFailed
		report.Stats.StatusCode = types.StatusPrepareFailed
		d.send(reply, wire.ErrorStatus())
		return
	}
	defer func() {
		if err := model.Close(); err != nil {
			d.logger.Warn("executor close failed", map[string]any{"error": err.Error()})
		}
	}()

	report.InputTensors = model.InputTensors()
	report.OutputTensors = model.OutputTensors()
	d.logger.Debug("executor prepared", map[string]any{
		"input_tensors":  report.InputTensors,
		"output_tensors": report.OutputTensors,
	})

	stats, err := model.Run(ctx)
	if err != nil {
		d.metrics.IncRunPrepareFailed()
		d.logger.Warn("executor run failed", map[string]any{"error": err.Error()})
		report.Outcome = types.RunOutcomeRunFailed
		report.Stats.StatusCode = types.StatusPrepareFailed
		d.send(reply, wire.ErrorStatus())
		return
	}

	d.metrics.IncRunSucceeded()
	d.logger.Info("run complete", map[string]any{
		"cycles":       stats.CycleCount,
		"status":       stats.StatusCode,
		"layers":       stats.LayerCount,
		"scratch_used": stats.ScratchBytesUsed,
	})
	report.Outcome = types.RunOutcomeSuccess
	report.Stats = stats
	d.send(reply, wire.EncodeStats(stats))
}
