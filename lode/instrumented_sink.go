package lode

import (
	"context"

	"github.com/pithecene-io/modelpush/metrics"
	"github.com/pithecene-io/modelpush/types"
)

// InstrumentedSink counts lode_write_success and lode_write_failure for
// every write of the wrapped sink.
type InstrumentedSink struct {
	inner     Sink
	collector *metrics.Collector
}

// NewInstrumentedSink wraps inner. A nil collector counts nothing.
func NewInstrumentedSink(inner Sink, collector *metrics.Collector) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, collector: collector}
}

func (s *InstrumentedSink) WriteReport(ctx context.Context, r types.RunReport) error {
	return s.count(s.inner.WriteReport(ctx, r))
}

func (s *InstrumentedSink) WriteManifest(ctx context.Context, m types.ArtifactManifest) error {
	return s.count(s.inner.WriteManifest(ctx, m))
}

func (s *InstrumentedSink) count(err error) error {
	if err != nil {
		s.collector.IncLodeWriteFailure()
	} else {
		s.collector.IncLodeWriteSuccess()
	}
	return err
}

// Close closes the wrapped sink.
func (s *InstrumentedSink) Close() error {
	return s.inner.Close()
}

var _ Sink = (*InstrumentedSink)(nil)
