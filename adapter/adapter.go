// Package adapter defines the boundary for publishing run reports to
// downstream systems.
//
// The device command owns adapter lifecycle; users provide configuration only.
package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/modelpush/types"
)

// EventTypeRunReported is the event_type of every RunReportedEvent.
const EventTypeRunReported = "run_reported"

// RunReportedEvent is the payload published after a device handles a run
// request.
type RunReportedEvent struct {
	WireVersion      int    `json:"wire_version"`
	EventType        string `json:"event_type"` // always "run_reported"
	RunID            string `json:"run_id"`
	DeviceID         string `json:"device_id"`
	Outcome          string `json:"outcome"` // success, not_ready, prepare_failed, run_failed
	CycleCount       uint32 `json:"cycle_count"`
	StatusCode       uint32 `json:"status_code"`
	LayerCount       uint32 `json:"layer_count"`
	ScratchBytesUsed uint32 `json:"scratch_bytes_used"`
	ArtifactBytes    int    `json:"artifact_bytes"`
	ArtifactRegion   string `json:"artifact_region"`
	ScratchRegion    string `json:"scratch_region"`
	Timestamp        string `json:"timestamp"` // RFC 3339
	DurationMs       int64  `json:"duration_ms"`
	StoragePath      string `json:"storage_path,omitempty"`
}

// NewRunReportedEvent builds the event for r. storagePath is where the
// report was archived, empty if it was not.
func NewRunReportedEvent(r types.RunReport, storagePath string) *RunReportedEvent {
	return &RunReportedEvent{
		WireVersion:      types.WireVersion,
		EventType:        EventTypeRunReported,
		RunID:            r.RunID,
		DeviceID:         r.DeviceID,
		Outcome:          string(r.Outcome),
		CycleCount:       r.Stats.CycleCount,
		StatusCode:       r.Stats.StatusCode,
		LayerCount:       r.Stats.LayerCount,
		ScratchBytesUsed: r.Stats.ScratchBytesUsed,
		ArtifactBytes:    r.ArtifactBytes,
		ArtifactRegion:   r.ArtifactRegion,
		ScratchRegion:    r.ScratchRegion,
		Timestamp:        r.Timestamp,
		DurationMs:       r.DurationMs,
		StoragePath:      storagePath,
	}
}

// Adapter publishes run report events to a downstream system.
type Adapter interface {
	// Publish sends one event. Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *RunReportedEvent) error

	// Close releases adapter resources.
	Close() error
}

// DefaultBackoff is the delay before the first retry; it doubles per retry.
const DefaultBackoff = 500 * time.Millisecond

// Retry calls fn up to 1+retries times with exponential backoff between
// attempts. It stops early when fn succeeds or permanent(err) is true.
// permanent may be nil.
func Retry(ctx context.Context, retries int, backoff time.Duration, fn func(ctx context.Context) error, permanent func(error) bool) error {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	attempts := 1 + retries

	var lastErr error
	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("context canceled: %w", err)
		}

		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("context canceled during backoff: %w", ctx.Err())
			case <-time.After(time.Duration(1<<uint(i-1)) * backoff):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("non-retriable error: %w", lastErr)
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)
}
