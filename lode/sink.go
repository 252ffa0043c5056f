// Package lode archives run reports and artifact manifests in a Lode
// dataset.
//
// Records are JSONL, Hive-partitioned by device, day and record_kind.
// Completed artifacts can be stored alongside as sidecar files.
package lode

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/modelpush/types"
)

// DefaultDataset is the dataset ID used when none is configured.
const DefaultDataset = "modelpush"

// DeriveDay returns the day partition for t (YYYY-MM-DD, UTC).
func DeriveDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// dayOf returns the day partition for an RFC 3339 timestamp, falling back
// to now when ts does not parse.
func dayOf(ts string, now func() time.Time) string {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return DeriveDay(t)
	}
	return DeriveDay(now())
}

// Sink persists device records.
type Sink interface {
	WriteReport(ctx context.Context, r types.RunReport) error
	WriteManifest(ctx context.Context, m types.ArtifactManifest) error
	Close() error
}

// StubSink keeps records in memory. For tests.
type StubSink struct {
	mu        sync.Mutex
	Reports   []types.RunReport
	Manifests []types.ArtifactManifest
	Err       error
	Closed    bool
}

// NewStubSink creates an empty stub sink.
func NewStubSink() *StubSink {
	return &StubSink{}
}

// WriteReport records r, or returns Err if set.
func (s *StubSink) WriteReport(_ context.Context, r types.RunReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Reports = append(s.Reports, r)
	return nil
}

// WriteManifest records m, or returns Err if set.
func (s *StubSink) WriteManifest(_ context.Context, m types.ArtifactManifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Manifests = append(s.Manifests, m)
	return nil
}

// Close marks the sink closed.
func (s *StubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed = true
	return nil
}

var _ Sink = (*StubSink)(nil)
