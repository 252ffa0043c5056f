package cmd

import (
	"context"
	"sync"
	"time"

	"github.com/pithecene-io/modelpush/adapter"
	"github.com/pithecene-io/modelpush/lode"
	"github.com/pithecene-io/modelpush/log"
	"github.com/pithecene-io/modelpush/metrics"
	"github.com/pithecene-io/modelpush/types"
)

// defaultPublisherQueue bounds pending hook records.
const defaultPublisherQueue = 64

// defaultPublishTimeout bounds archiving plus publishing one record.
const defaultPublishTimeout = 30 * time.Second

// artifactFunc returns the completed artifact and its region.
type artifactFunc func() ([]byte, types.RegionKind, error)

// publisher persists and publishes device hook records off the dispatch
// path. Device hooks enqueue; a single goroutine drains.
type publisher struct {
	sink      lode.Sink
	files     *lode.Archive
	location  string
	adapter   adapter.Adapter
	artifact  artifactFunc
	collector *metrics.Collector
	logger    *log.Logger
	timeout   time.Duration

	queue chan hookRecord
	wg    sync.WaitGroup
}

type hookRecord struct {
	report   *types.RunReport
	manifest *types.ArtifactManifest
}

// publisherOptions configures newPublisher. Every field is optional.
type publisherOptions struct {
	Sink      lode.Sink
	Archive   *lode.Archive
	Adapter   adapter.Adapter
	Collector *metrics.Collector
	Logger    *log.Logger
	Timeout   time.Duration
	QueueSize int
}

func newPublisher(opts publisherOptions) *publisher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultPublishTimeout
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultPublisherQueue
	}
	p := &publisher{
		sink:      opts.Sink,
		files:     opts.Archive,
		adapter:   opts.Adapter,
		collector: opts.Collector,
		logger:    opts.Logger.Component("publisher"),
		timeout:   opts.Timeout,
		queue:     make(chan hookRecord, opts.QueueSize),
	}
	if opts.Archive != nil {
		p.location = opts.Archive.Location()
	}
	return p
}

// start launches the drain goroutine. artifact, if non-nil, is used to
// store the bytes of completed uploads.
func (p *publisher) start(artifact artifactFunc) {
	p.artifact = artifact
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for rec := range p.queue {
			p.handle(rec)
		}
	}()
}

// OnRun is a device.Options.OnRun hook.
func (p *publisher) OnRun(r types.RunReport) {
	p.enqueue(hookRecord{report: &r})
}

// OnUpload is a device.Options.OnUpload hook.
func (p *publisher) OnUpload(m types.ArtifactManifest) {
	p.enqueue(hookRecord{manifest: &m})
}

func (p *publisher) enqueue(rec hookRecord) {
	select {
	case p.queue <- rec:
	default:
		p.logger.Warn("publisher queue full, dropping record", map[string]any{
			"queue_size": cap(p.queue),
		})
	}
}

// close drains pending records. Hooks must not fire after close.
func (p *publisher) close() {
	close(p.queue)
	p.wg.Wait()
}

func (p *publisher) handle(rec hookRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	switch {
	case rec.report != nil:
		p.handleReport(ctx, *rec.report)
	case rec.manifest != nil:
		p.handleManifest(ctx, *rec.manifest)
	}
}

func (p *publisher) handleReport(ctx context.Context, r types.RunReport) {
	if p.sink != nil {
		if err := p.sink.WriteReport(ctx, r); err != nil {
			p.logger.Error("failed to archive run report", map[string]any{
				"run_id": r.RunID,
				"error":  err.Error(),
			})
		}
	}

	if p.adapter == nil {
		return
	}
	// Best-effort: publish failures never affect the device.
	if err := p.adapter.Publish(ctx, adapter.NewRunReportedEvent(r, p.location)); err != nil {
		p.collector.IncPublishFailure()
		p.logger.Warn("failed to publish run report", map[string]any{
			"run_id": r.RunID,
			"error":  err.Error(),
		})
		return
	}
	p.collector.IncPublishSuccess()
	p.logger.Debug("run report published", map[string]any{"run_id": r.RunID})
}

func (p *publisher) handleManifest(ctx context.Context, m types.ArtifactManifest) {
	if p.sink != nil {
		if err := p.sink.WriteManifest(ctx, m); err != nil {
			p.logger.Error("failed to archive manifest", map[string]any{
				"upload_id": m.UploadID,
				"error":     err.Error(),
			})
			return
		}
	}

	if p.files == nil || p.artifact == nil {
		return
	}
	data, _, err := p.artifact()
	if err != nil {
		p.logger.Debug("artifact no longer available", map[string]any{
			"upload_id": m.UploadID,
			"error":     err.Error(),
		})
		return
	}
	if err := p.files.PutArtifact(ctx, m, data); err != nil {
		// A newer upload may have replaced the region contents.
		p.logger.Warn("failed to store artifact", map[string]any{
			"upload_id": m.UploadID,
			"error":     err.Error(),
		})
		return
	}
	p.logger.Info("artifact stored", map[string]any{
		"upload_id":  m.UploadID,
		"size_bytes": m.SizeBytes,
	})
}
