// Package metrics provides per-device protocol counters.
//
// The Collector accumulates counters for the lifetime of a device. It is a
// leaf package with no internal dependencies.
package metrics

import "sync"

// Frame drop reasons recorded by IncFrameDropped.
const (
	DropTooShort = "too_short"
	DropChecksum = "checksum"
	DropUnknown  = "unknown_command"
)

// Snapshot is an immutable point-in-time view of all counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Frames
	FramesReceived int64            `json:"frames_received"`
	FramesDropped  int64            `json:"frames_dropped"`
	DroppedByKind  map[string]int64 `json:"dropped_by_kind"`

	// Upload session
	ChunksAcked      int64 `json:"chunks_acked"`
	ChunksOverrun    int64 `json:"chunks_overrun"`
	UploadsStarted   int64 `json:"uploads_started"`
	UploadsCompleted int64 `json:"uploads_completed"`
	UploadsTooLarge  int64 `json:"uploads_too_large"`
	ConfigChanges    int64 `json:"config_changes"`

	// Execution
	RunsRequested     int64 `json:"runs_requested"`
	RunsSucceeded     int64 `json:"runs_succeeded"`
	RunsNotReady      int64 `json:"runs_not_ready"`
	RunsPrepareFailed int64 `json:"runs_prepare_failed"`

	// Outbound
	SendFailures int64 `json:"send_failures"`

	// Lode / Storage
	LodeWriteSuccess int64 `json:"lode_write_success"`
	LodeWriteFailure int64 `json:"lode_write_failure"`

	// Adapter
	PublishSuccess int64 `json:"publish_success"`
	PublishFailure int64 `json:"publish_failure"`

	// Dimensions (informational, set at construction)
	DeviceID       string `json:"device_id"`
	Executor       string `json:"executor"`
	StorageBackend string `json:"storage_backend"`
}

// Collector accumulates device counters.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	framesReceived int64
	framesDropped  int64
	droppedByKind  map[string]int64

	chunksAcked      int64
	chunksOverrun    int64
	uploadsStarted   int64
	uploadsCompleted int64
	uploadsTooLarge  int64
	configChanges    int64

	runsRequested     int64
	runsSucceeded     int64
	runsNotReady      int64
	runsPrepareFailed int64

	sendFailures int64

	lodeWriteSuccess int64
	lodeWriteFailure int64

	publishSuccess int64
	publishFailure int64

	deviceID       string
	executor       string
	storageBackend string
}

// NewCollector creates a Collector with dimension labels.
// storageBackend may be empty when no archive is configured.
func NewCollector(deviceID, executor, storageBackend string) *Collector {
	return &Collector{
		droppedByKind:  make(map[string]int64),
		deviceID:       deviceID,
		executor:       executor,
		storageBackend: storageBackend,
	}
}

func (c *Collector) inc(field *int64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// --- Frames ---

// IncFrameReceived records an inbound buffer.
func (c *Collector) IncFrameReceived() {
	if c == nil {
		return
	}
	c.inc(&c.framesReceived)
}

// IncFrameDropped records a buffer discarded without a response.
func (c *Collector) IncFrameDropped(kind string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesDropped++
	c.droppedByKind[kind]++
	c.mu.Unlock()
}

// --- Upload session ---

// IncChunkAcked records an acknowledged MODEL_DATA chunk.
func (c *Collector) IncChunkAcked() {
	if c == nil {
		return
	}
	c.inc(&c.chunksAcked)
}

// IncChunkOverrun records a chunk dropped for overrunning the declared size.
// Overrun chunks are still acknowledged and counted by IncChunkAcked.
func (c *Collector) IncChunkOverrun() {
	if c == nil {
		return
	}
	c.inc(&c.chunksOverrun)
}

// IncUploadStarted records a session opened by a first chunk.
func (c *Collector) IncUploadStarted() {
	if c == nil {
		return
	}
	c.inc(&c.uploadsStarted)
}

// IncUploadCompleted records a session reaching Complete.
func (c *Collector) IncUploadCompleted() {
	if c == nil {
		return
	}
	c.inc(&c.uploadsCompleted)
}

// IncUploadTooLarge records a session rejected for exceeding its region.
func (c *Collector) IncUploadTooLarge() {
	if c == nil {
		return
	}
	c.inc(&c.uploadsTooLarge)
}

// IncConfigChange records a CONFIG frame that changed the selection.
func (c *Collector) IncConfigChange() {
	if c == nil {
		return
	}
	c.inc(&c.configChanges)
}

// --- Execution ---

// IncRunRequested records a RUN_STATS request.
func (c *Collector) IncRunRequested() {
	if c == nil {
		return
	}
	c.inc(&c.runsRequested)
}

// IncRunSucceeded records a run that produced statistics.
func (c *Collector) IncRunSucceeded() {
	if c == nil {
		return
	}
	c.inc(&c.runsSucceeded)
}

// IncRunNotReady records a run rejected because no upload was complete.
func (c *Collector) IncRunNotReady() {
	if c == nil {
		return
	}
	c.inc(&c.runsNotReady)
}

// IncRunPrepareFailed records a run whose artifact the executor rejected.
func (c *Collector) IncRunPrepareFailed() {
	if c == nil {
		return
	}
	c.inc(&c.runsPrepareFailed)
}

// IncSendFailure records an outbound send the transport refused.
func (c *Collector) IncSendFailure() {
	if c == nil {
		return
	}
	c.inc(&c.sendFailures)
}

// --- Lode / Storage ---

// IncLodeWriteSuccess records a successful Lode write operation (per-call).
func (c *Collector) IncLodeWriteSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.lodeWriteSuccess)
}

// IncLodeWriteFailure records a failed Lode write operation (per-call).
func (c *Collector) IncLodeWriteFailure() {
	if c == nil {
		return
	}
	c.inc(&c.lodeWriteFailure)
}

// --- Adapter ---

// IncPublishSuccess records a run report delivered by the adapter.
func (c *Collector) IncPublishSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.publishSuccess)
}

// IncPublishFailure records a run report the adapter failed to deliver.
func (c *Collector) IncPublishFailure() {
	if c == nil {
		return
	}
	c.inc(&c.publishFailure)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := make(map[string]int64, len(c.droppedByKind))
	for k, v := range c.droppedByKind {
		dropped[k] = v
	}

	return Snapshot{
		FramesReceived: c.framesReceived,
		FramesDropped:  c.framesDropped,
		DroppedByKind:  dropped,

		ChunksAcked:      c.chunksAcked,
		ChunksOverrun:    c.chunksOverrun,
		UploadsStarted:   c.uploadsStarted,
		UploadsCompleted: c.uploadsCompleted,
		UploadsTooLarge:  c.uploadsTooLarge,
		ConfigChanges:    c.configChanges,

		RunsRequested:     c.runsRequested,
		RunsSucceeded:     c.runsSucceeded,
		RunsNotReady:      c.runsNotReady,
		RunsPrepareFailed: c.runsPrepareFailed,

		SendFailures: c.sendFailures,

		LodeWriteSuccess: c.lodeWriteSuccess,
		LodeWriteFailure: c.lodeWriteFailure,

		PublishSuccess: c.publishSuccess,
		PublishFailure: c.publishFailure,

		DeviceID:       c.deviceID,
		Executor:       c.executor,
		StorageBackend: c.storageBackend,
	}
}
