package adapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pithecene-io/modelpush/types"
)

func TestNewRunReportedEvent(t *testing.T) {
	r := types.RunReport{
		RunID:          "run-1",
		DeviceID:       "dev-1",
		Outcome:        types.RunOutcomeSuccess,
		Stats:          types.RunStats{CycleCount: 10, StatusCode: 0, LayerCount: 3, ScratchBytesUsed: 4096},
		ArtifactBytes:  2048,
		ArtifactRegion: "general",
		ScratchRegion:  "fast",
		Timestamp:      "2026-03-01T00:00:00Z",
		DurationMs:     12,
	}
	e := NewRunReportedEvent(r, "file:///data/x")

	if e.EventType != EventTypeRunReported {
		t.Errorf("EventType = %q", e.EventType)
	}
	if e.WireVersion != types.WireVersion {
		t.Errorf("WireVersion = %d", e.WireVersion)
	}
	if e.Outcome != "success" || e.CycleCount != 10 || e.LayerCount != 3 || e.ScratchBytesUsed != 4096 {
		t.Errorf("event = %+v", e)
	}
	if e.ArtifactRegion != "general" || e.ScratchRegion != "fast" || e.StoragePath != "file:///data/x" {
		t.Errorf("event = %+v", e)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_Exhausts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Retry(context.Background(), 2, time.Millisecond, func(context.Context) error {
		calls++
		return boom
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_PermanentStopsEarly(t *testing.T) {
	perm := errors.New("permanent")
	calls := 0
	err := Retry(context.Background(), 5, time.Millisecond, func(context.Context) error {
		calls++
		return perm
	}, func(err error) bool { return errors.Is(err, perm) })
	if !errors.Is(err, perm) {
		t.Fatalf("error = %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := Retry(ctx, 5, time.Second, func(context.Context) error {
		return errors.New("transient")
	}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want deadline exceeded", err)
	}
}
