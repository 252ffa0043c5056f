package device

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/modelpush/metrics"
	"github.com/pithecene-io/modelpush/session"
	"github.com/pithecene-io/modelpush/transport"
	"github.com/pithecene-io/modelpush/types"
	"github.com/pithecene-io/modelpush/wire"
)

// Handle parses and verifies b and dispatches the frame. Frames that are
// too short or fail the checksum are dropped with no response and no state
// change. Implements transport.Handler.
func (d *Device) Handle(ctx context.Context, b []byte, reply transport.Sender) {
	d.metrics.IncFrameReceived()

	f, err := wire.Parse(b)
	if err != nil {
		d.metrics.IncFrameDropped(metrics.DropTooShort)
		d.logger.Debug("frame dropped", map[string]any{"reason": metrics.DropTooShort, "bytes": len(b)})
		return
	}
	if err := wire.Verify(f); err != nil {
		d.metrics.IncFrameDropped(metrics.DropChecksum)
		d.logger.Debug("frame dropped", map[string]any{
			"reason":      metrics.DropChecksum,
			"command":     f.Command.String(),
			"chunk_index": f.ChunkIndex,
		})
		return
	}

	d.Dispatch(ctx, f, reply)
}

// Dispatch routes a verified frame by command. Unknown commands and inbound
// ACKs are ignored.
func (d *Device) Dispatch(ctx context.Context, f wire.Frame, reply transport.Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch f.Command {
	case types.CommandModelData:
		d.handleChunk(f, reply)
	case types.CommandConfig:
		d.handleConfig(f.Payload)
	case types.CommandRunStats:
		d.run(ctx, reply)
	default:
		d.metrics.IncFrameDropped(metrics.DropUnknown)
		d.logger.Debug("frame ignored", map[string]any{"command": f.Command.String()})
	}
}

func (d *Device) handleChunk(f wire.Frame, reply transport.Sender) {
	dest := d.bank.Artifact(d.selection.Artifact)
	out, err := d.session.Receive(f.ChunkIndex, f.ChunkCount, f.Payload, dest)
	if err != nil {
		if errors.Is(err, session.ErrArtifactTooLarge) {
			d.metrics.IncUploadTooLarge()
		}
		d.logger.Warn("upload rejected", map[string]any{
			"chunk_index": f.ChunkIndex,
			"chunk_count": f.ChunkCount,
			"error":       err.Error(),
		})
		return
	}

	if out.Started {
		d.metrics.IncUploadStarted()
		snap := d.session.Snapshot()
		d.logger.Info("upload started", map[string]any{
			"chunk_count":   snap.ChunkCount,
			"declared_size": snap.DeclaredSize,
			"region":        snap.Region.String(),
			"restarted":     out.Restarted,
		})
	}
	if out.Repeated {
		d.logger.Debug("chunk repeats completed upload", map[string]any{
			"chunk_index": f.ChunkIndex,
		})
	}
	if out.Dropped {
		d.metrics.IncChunkOverrun()
		d.logger.Debug("chunk overruns declared size", map[string]any{
			"chunk_index": f.ChunkIndex,
			"bytes":       len(f.Payload),
		})
	}

	d.metrics.IncChunkAcked()
	d.send(reply, wire.EncodeAck(f.ChunkIndex))

	if out.Completed {
		d.metrics.IncUploadCompleted()
		d.uploadCompleted()
	}
}

func (d *Device) uploadCompleted() {
	artifact, kind, err := d.session.Artifact()
	if err != nil {
		return
	}
	snap := d.session.Snapshot()
	manifest := types.ArtifactManifest{
		UploadID:   uuid.NewString(),
		DeviceID:   d.id,
		Region:     kind.String(),
		SizeBytes:  len(artifact),
		ChunkCount: snap.ChunkCount,
		CRC32:      wire.Checksum(artifact),
		Timestamp:  d.now().UTC().Format(time.RFC3339Nano),
	}
	d.logger.Info("upload complete", map[string]any{
		"upload_id": manifest.UploadID,
		"bytes":     manifest.SizeBytes,
		"region":    manifest.Region,
		"received":  snap.ReceivedCount,
	})
	if d.onUpload != nil {
		d.onUpload(manifest)
	}
}

func (d *Device) handleConfig(payload []byte) {
	prev := d.selection
	if !d.selection.Apply(payload) {
		return
	}
	d.metrics.IncConfigChange()
	d.logger.Info("region selection changed", map[string]any{
		"artifact":      d.selection.Artifact.String(),
		"scratch":       d.selection.Scratch.String(),
		"prev_artifact": prev.Artifact.String(),
		"prev_scratch":  prev.Scratch.String(),
	})
}

// send is fire-and-forget: failures are counted and logged.
func (d *Device) send(reply transport.Sender, b []byte) {
	if reply == nil {
		return
	}
	if err := reply.Send(b); err != nil {
		d.metrics.IncSendFailure()
		d.logger.Warn("send failed", map[string]any{"bytes": len(b), "error": err.Error()})
	}
}
