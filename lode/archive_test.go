package lode

import (
	"context"
	"errors"
	"hash/crc32"
	"io"
	"testing"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/modelpush/metrics"
	"github.com/pithecene-io/modelpush/types"
)

// FailingStore is a lode.Store that returns configurable errors.
type FailingStore struct {
	PutErr  error
	GetErr  error
	ListErr error

	PutCalls int
}

func (s *FailingStore) Put(_ context.Context, _ string, _ io.Reader) error {
	s.PutCalls++
	return s.PutErr
}

func (s *FailingStore) Get(_ context.Context, _ string) (io.ReadCloser, error) {
	return nil, s.GetErr
}

func (s *FailingStore) Exists(_ context.Context, _ string) (bool, error) {
	return false, nil
}

func (s *FailingStore) List(_ context.Context, _ string) ([]string, error) {
	return nil, s.ListErr
}

func (s *FailingStore) Delete(_ context.Context, _ string) error {
	return nil
}

func (s *FailingStore) ReadRange(_ context.Context, _ string, _, _ int64) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (s *FailingStore) ReaderAt(_ context.Context, _ string) (io.ReaderAt, error) {
	return nil, errors.New("not implemented")
}

var _ lode.Store = (*FailingStore)(nil)

// sharedFactory returns a factory that always yields store, so the dataset
// and sidecar files see the same in-memory state.
func sharedFactory(store lode.Store) lode.StoreFactory {
	return func() (lode.Store, error) { return store, nil }
}

func newMemoryArchive(t *testing.T) (*Archive, lode.Store) {
	t.Helper()
	store := lode.NewMemory()
	a, err := NewArchiveWithFactory("modelpush", sharedFactory(store))
	if err != nil {
		t.Fatalf("NewArchiveWithFactory failed: %v", err)
	}
	return a, store
}

func report(runID, deviceID string, at time.Time, outcome types.RunOutcome) types.RunReport {
	return types.RunReport{
		RunID:          runID,
		DeviceID:       deviceID,
		Outcome:        outcome,
		Stats:          types.RunStats{CycleCount: 1024, LayerCount: 1, ScratchBytesUsed: 2304},
		ArtifactBytes:  128,
		ArtifactRegion: "fast",
		ScratchRegion:  "fast",
		InputTensors:   1,
		OutputTensors:  1,
		Timestamp:      at.UTC().Format(time.RFC3339Nano),
		DurationMs:     4,
	}
}

func TestDeriveDay(t *testing.T) {
	at := time.Date(2026, 2, 3, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	if got := DeriveDay(at); got != "2026-02-04" {
		t.Errorf("DeriveDay = %q, want 2026-02-04", got)
	}
	fixed := func() time.Time { return at }
	if got := dayOf("garbage", fixed); got != "2026-02-04" {
		t.Errorf("dayOf fallback = %q", got)
	}
	if got := dayOf("2026-01-05T01:00:00Z", fixed); got != "2026-01-05" {
		t.Errorf("dayOf = %q", got)
	}
}

func TestArchive_WriteAndQueryReports(t *testing.T) {
	a, _ := newMemoryArchive(t)
	defer func() { _ = a.Close() }()
	ctx := t.Context()

	base := time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-1", "run-2", "run-3"} {
		if err := a.WriteReport(ctx, report(id, "dev-1", base.Add(time.Duration(i)*time.Minute), types.RunOutcomeSuccess)); err != nil {
			t.Fatalf("WriteReport %s: %v", id, err)
		}
	}
	if err := a.WriteReport(ctx, report("run-x", "dev-10", base, types.RunOutcomeNotReady)); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	got, err := a.QueryReports(ctx, "dev-1", 0)
	if err != nil {
		t.Fatalf("QueryReports: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 reports for dev-1, got %d", len(got))
	}
	if got[0].RunID != "run-3" || got[2].RunID != "run-1" {
		t.Errorf("expected latest first, got %s..%s", got[0].RunID, got[2].RunID)
	}
	r := got[0]
	if r.Outcome != types.RunOutcomeSuccess || r.Stats.CycleCount != 1024 || r.Stats.ScratchBytesUsed != 2304 {
		t.Errorf("report round trip = %+v", r)
	}
	if r.InputTensors != 1 || r.ArtifactBytes != 128 || r.DurationMs != 4 {
		t.Errorf("report round trip = %+v", r)
	}

	all, err := a.QueryReports(ctx, "", 0)
	if err != nil {
		t.Fatalf("QueryReports all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("expected 4 reports, got %d", len(all))
	}

	limited, err := a.QueryReports(ctx, "dev-1", 2)
	if err != nil {
		t.Fatalf("QueryReports limit: %v", err)
	}
	if len(limited) != 2 || limited[0].RunID != "run-3" {
		t.Errorf("limited = %+v", limited)
	}
}

func TestArchive_QueryReports_Empty(t *testing.T) {
	a, _ := newMemoryArchive(t)
	got, err := a.QueryReports(t.Context(), "dev-1", 0)
	if err != nil {
		t.Fatalf("QueryReports: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no reports, got %d", len(got))
	}
}

func TestArchive_LatestManifest(t *testing.T) {
	a, _ := newMemoryArchive(t)
	ctx := t.Context()

	if _, err := a.LatestManifest(ctx, "dev-1"); !errors.Is(err, ErrNoManifest) {
		t.Fatalf("expected ErrNoManifest, got %v", err)
	}

	for _, id := range []string{"up-1", "up-2"} {
		m := types.ArtifactManifest{
			UploadID:   id,
			DeviceID:   "dev-1",
			Region:     "general",
			SizeBytes:  4096,
			ChunkCount: 4,
			CRC32:      0xCBF43926,
			Timestamp:  "2026-02-03T12:00:00Z",
		}
		if err := a.WriteManifest(ctx, m); err != nil {
			t.Fatalf("WriteManifest: %v", err)
		}
	}
	// Reports must not leak into manifest queries.
	if err := a.WriteReport(ctx, report("run-1", "dev-1", time.Now(), types.RunOutcomeSuccess)); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}

	m, err := a.LatestManifest(ctx, "dev-1")
	if err != nil {
		t.Fatalf("LatestManifest: %v", err)
	}
	if m.UploadID != "up-2" || m.CRC32 != 0xCBF43926 || m.ChunkCount != 4 || m.Region != "general" {
		t.Errorf("manifest = %+v", m)
	}
}

func TestArchive_PutArtifact(t *testing.T) {
	a, store := newMemoryArchive(t)
	ctx := t.Context()

	data := []byte("0000TFL3 model bytes")
	m := types.ArtifactManifest{
		UploadID:  "up-1",
		DeviceID:  "dev-1",
		SizeBytes: len(data),
		CRC32:     crc32.ChecksumIEEE(data),
		Timestamp: "2026-02-03T12:00:00Z",
	}
	if err := a.PutArtifact(ctx, m, data); err != nil {
		t.Fatalf("PutArtifact: %v", err)
	}

	path := "datasets/modelpush/partitions/device=dev-1/day=2026-02-03/files/up-1.bin"
	rc, err := store.Get(ctx, path)
	if err != nil {
		t.Fatalf("Get %s: %v", path, err)
	}
	defer func() { _ = rc.Close() }()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("stored %q, want %q", got, data)
	}
}

func TestArchive_PutArtifact_Mismatch(t *testing.T) {
	a, _ := newMemoryArchive(t)
	m := types.ArtifactManifest{UploadID: "up-1", SizeBytes: 3, CRC32: 1}

	if err := a.PutArtifact(t.Context(), m, []byte("abc")); !errors.Is(err, ErrArtifactMismatch) {
		t.Errorf("expected ErrArtifactMismatch, got %v", err)
	}
	if err := a.PutArtifact(t.Context(), m, []byte("abcd")); !errors.Is(err, ErrArtifactMismatch) {
		t.Errorf("expected ErrArtifactMismatch for size, got %v", err)
	}
}

func TestArchive_WriteFailureIsClassified(t *testing.T) {
	store := &FailingStore{PutErr: errors.New("write /data: no space left on device")}
	a, err := NewArchiveWithFactory("modelpush", sharedFactory(store))
	if err != nil {
		t.Fatalf("NewArchiveWithFactory failed: %v", err)
	}

	err = a.WriteReport(t.Context(), report("run-1", "dev-1", time.Now(), types.RunOutcomeSuccess))
	if err == nil {
		t.Fatal("expected write error")
	}
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected *StorageError, got %T: %v", err, err)
	}
	if se.Op != "write" {
		t.Errorf("Op = %q, want write", se.Op)
	}
	if !errors.Is(err, ErrDiskFull) {
		t.Errorf("expected ErrDiskFull kind, got %v", se.Kind)
	}
}

func TestInstrumentedSink_CountsWrites(t *testing.T) {
	stub := NewStubSink()
	c := metrics.NewCollector("dev-1", "sim", "memory")
	s := NewInstrumentedSink(stub, c)
	ctx := t.Context()

	if err := s.WriteReport(ctx, types.RunReport{RunID: "r"}); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if err := s.WriteManifest(ctx, types.ArtifactManifest{UploadID: "u"}); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	stub.Err = errors.New("boom")
	if err := s.WriteReport(ctx, types.RunReport{}); err == nil {
		t.Fatal("expected error")
	}

	snap := c.Snapshot()
	if snap.LodeWriteSuccess != 2 {
		t.Errorf("LodeWriteSuccess = %d, want 2", snap.LodeWriteSuccess)
	}
	if snap.LodeWriteFailure != 1 {
		t.Errorf("LodeWriteFailure = %d, want 1", snap.LodeWriteFailure)
	}
	if len(stub.Reports) != 1 || len(stub.Manifests) != 1 {
		t.Errorf("stub = %d reports, %d manifests", len(stub.Reports), len(stub.Manifests))
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !stub.Closed {
		t.Error("expected inner sink closed")
	}
}

func TestInstrumentedSink_NilCollector(t *testing.T) {
	s := NewInstrumentedSink(NewStubSink(), nil)
	if err := s.WriteReport(t.Context(), types.RunReport{}); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
}

func TestParseS3Path(t *testing.T) {
	tests := []struct{ in, bucket, prefix string }{
		{"bucket", "bucket", ""},
		{"bucket/reports", "bucket", "reports"},
		{"bucket/a/b", "bucket", "a/b"},
	}
	for _, tt := range tests {
		b, p := ParseS3Path(tt.in)
		if b != tt.bucket || p != tt.prefix {
			t.Errorf("ParseS3Path(%q) = %q, %q", tt.in, b, p)
		}
	}
	cfg := S3Config{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty bucket")
	}
}

func TestHasPartition(t *testing.T) {
	path := "datasets/modelpush/partitions/device=d1/day=2026-02-03/record_kind=run_report/x.jsonl"
	if !hasPartition(path, "device", "d1") {
		t.Error("expected device=d1 match")
	}
	if hasPartition(path, "device", "d") {
		t.Error("device=d must not match device=d1")
	}
}

func TestArchive_Location(t *testing.T) {
	a, err := NewArchive("", t.TempDir())
	if err != nil {
		t.Fatalf("NewArchive: %v", err)
	}
	if a.Dataset() != DefaultDataset {
		t.Errorf("Dataset = %q", a.Dataset())
	}
	if got := a.Location(); len(got) < len("file://") || got[:7] != "file://" {
		t.Errorf("Location = %q", got)
	}
}
