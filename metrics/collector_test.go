package metrics

import (
	"sync"
	"testing"
)

func TestCollector_IncrementMethods(t *testing.T) {
	c := NewCollector("dev-1", "sim", "fs")

	c.IncFrameReceived()
	c.IncFrameReceived()
	c.IncFrameReceived()
	c.IncFrameDropped(DropChecksum)
	c.IncFrameDropped(DropChecksum)
	c.IncFrameDropped(DropTooShort)
	c.IncChunkAcked()
	c.IncChunkAcked()
	c.IncChunkOverrun()
	c.IncUploadStarted()
	c.IncUploadCompleted()
	c.IncUploadTooLarge()
	c.IncConfigChange()
	c.IncRunRequested()
	c.IncRunRequested()
	c.IncRunRequested()
	c.IncRunSucceeded()
	c.IncRunNotReady()
	c.IncRunPrepareFailed()
	c.IncSendFailure()
	c.IncLodeWriteSuccess()
	c.IncLodeWriteSuccess()
	c.IncLodeWriteFailure()
	c.IncPublishSuccess()
	c.IncPublishFailure()

	s := c.Snapshot()

	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"FramesReceived", s.FramesReceived, 3},
		{"FramesDropped", s.FramesDropped, 3},
		{"DroppedByKind[checksum]", s.DroppedByKind[DropChecksum], 2},
		{"DroppedByKind[too_short]", s.DroppedByKind[DropTooShort], 1},
		{"ChunksAcked", s.ChunksAcked, 2},
		{"ChunksOverrun", s.ChunksOverrun, 1},
		{"UploadsStarted", s.UploadsStarted, 1},
		{"UploadsCompleted", s.UploadsCompleted, 1},
		{"UploadsTooLarge", s.UploadsTooLarge, 1},
		{"ConfigChanges", s.ConfigChanges, 1},
		{"RunsRequested", s.RunsRequested, 3},
		{"RunsSucceeded", s.RunsSucceeded, 1},
		{"RunsNotReady", s.RunsNotReady, 1},
		{"RunsPrepareFailed", s.RunsPrepareFailed, 1},
		{"SendFailures", s.SendFailures, 1},
		{"LodeWriteSuccess", s.LodeWriteSuccess, 2},
		{"LodeWriteFailure", s.LodeWriteFailure, 1},
		{"PublishSuccess", s.PublishSuccess, 1},
		{"PublishFailure", s.PublishFailure, 1},
	}
	for _, ch := range checks {
		if ch.got != ch.want {
			t.Errorf("%s = %d, want %d", ch.name, ch.got, ch.want)
		}
	}
}

func TestCollector_Dimensions(t *testing.T) {
	c := NewCollector("dev-7", "process", "s3")
	s := c.Snapshot()

	if s.DeviceID != "dev-7" {
		t.Errorf("DeviceID = %q, want %q", s.DeviceID, "dev-7")
	}
	if s.Executor != "process" {
		t.Errorf("Executor = %q, want %q", s.Executor, "process")
	}
	if s.StorageBackend != "s3" {
		t.Errorf("StorageBackend = %q, want %q", s.StorageBackend, "s3")
	}
}

func TestCollector_SnapshotImmutability(t *testing.T) {
	c := NewCollector("dev-1", "sim", "")
	c.IncChunkAcked()
	c.IncFrameDropped(DropUnknown)

	s1 := c.Snapshot()

	c.IncChunkAcked()
	c.IncChunkAcked()
	c.IncFrameDropped(DropUnknown)

	if s1.ChunksAcked != 1 {
		t.Errorf("s1.ChunksAcked = %d, want 1 (snapshot should be frozen)", s1.ChunksAcked)
	}
	if s1.DroppedByKind[DropUnknown] != 1 {
		t.Errorf("s1.DroppedByKind = %v, want frozen", s1.DroppedByKind)
	}

	s2 := c.Snapshot()
	if s2.ChunksAcked != 3 {
		t.Errorf("s2.ChunksAcked = %d, want 3", s2.ChunksAcked)
	}
	if s2.DroppedByKind[DropUnknown] != 2 {
		t.Errorf("s2.DroppedByKind[unknown_command] = %d, want 2", s2.DroppedByKind[DropUnknown])
	}
}

func TestCollector_SnapshotMapIsolation(t *testing.T) {
	c := NewCollector("dev-1", "sim", "")
	c.IncFrameDropped(DropChecksum)

	s := c.Snapshot()
	s.DroppedByKind[DropChecksum] = 999
	s.DroppedByKind["injected"] = 1

	s2 := c.Snapshot()
	if s2.DroppedByKind[DropChecksum] != 1 {
		t.Errorf("DroppedByKind[checksum] = %d, want 1", s2.DroppedByKind[DropChecksum])
	}
	if _, exists := s2.DroppedByKind["injected"]; exists {
		t.Error("DroppedByKind should not contain injected key from snapshot mutation")
	}
}

func TestCollector_NilReceiverSafety(t *testing.T) {
	var c *Collector

	// None of these should panic
	c.IncFrameReceived()
	c.IncFrameDropped(DropChecksum)
	c.IncChunkAcked()
	c.IncChunkOverrun()
	c.IncUploadStarted()
	c.IncUploadCompleted()
	c.IncUploadTooLarge()
	c.IncConfigChange()
	c.IncRunRequested()
	c.IncRunSucceeded()
	c.IncRunNotReady()
	c.IncRunPrepareFailed()
	c.IncSendFailure()
	c.IncLodeWriteSuccess()
	c.IncLodeWriteFailure()
	c.IncPublishSuccess()
	c.IncPublishFailure()

	s := c.Snapshot()
	if s.FramesReceived != 0 {
		t.Errorf("nil collector snapshot FramesReceived = %d, want 0", s.FramesReceived)
	}
	if s.DroppedByKind != nil {
		t.Errorf("nil collector snapshot DroppedByKind should be nil, got %v", s.DroppedByKind)
	}
}

func TestCollector_ConcurrentAccess(t *testing.T) {
	c := NewCollector("dev-1", "sim", "fs")
	const goroutines = 10
	const iterations = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				c.IncFrameReceived()
				c.IncLodeWriteSuccess()
				c.IncFrameDropped(DropChecksum)
			}
		}()
	}

	wg.Wait()

	s := c.Snapshot()
	want := int64(goroutines * iterations)

	if s.FramesReceived != want {
		t.Errorf("FramesReceived = %d, want %d", s.FramesReceived, want)
	}
	if s.LodeWriteSuccess != want {
		t.Errorf("LodeWriteSuccess = %d, want %d", s.LodeWriteSuccess, want)
	}
	if s.DroppedByKind[DropChecksum] != want {
		t.Errorf("DroppedByKind[checksum] = %d, want %d", s.DroppedByKind[DropChecksum], want)
	}
}

func TestCollector_ZeroValueSnapshot(t *testing.T) {
	c := NewCollector("dev-1", "sim", "fs")
	s := c.Snapshot()

	if s.FramesReceived != 0 || s.FramesDropped != 0 {
		t.Error("fresh collector should have zero frame counters")
	}
	if s.ChunksAcked != 0 || s.UploadsStarted != 0 || s.UploadsCompleted != 0 {
		t.Error("fresh collector should have zero upload counters")
	}
	if s.RunsRequested != 0 || s.RunsSucceeded != 0 {
		t.Error("fresh collector should have zero run counters")
	}
	if len(s.DroppedByKind) != 0 {
		t.Errorf("fresh collector DroppedByKind should be empty, got %v", s.DroppedByKind)
	}
}
