//nolint:revive // types is a common Go package naming convention
package types

// StatusPrepareFailed is the status code recorded in a RunReport when the
// device answered with the error/status sentinel instead of statistics.
const StatusPrepareFailed uint32 = 0xFFFFFFFF

// RunStats is the payload of the statistics response sent after a run.
type RunStats struct {
	// CycleCount is the measured cycle count, 0 if unavailable.
	CycleCount uint32 `json:"cycle_count" yaml:"cycle_count" msgpack:"cycle_count"`
	// StatusCode is the executor's invoke status (0 is success).
	StatusCode uint32 `json:"status_code" yaml:"status_code" msgpack:"status_code"`
	// LayerCount is the number of profiled layers, 0 if unavailable.
	LayerCount uint32 `json:"layer_count" yaml:"layer_count" msgpack:"layer_count"`
	// ScratchBytesUsed is how much of the scratch region the executor used.
	ScratchBytesUsed uint32 `json:"scratch_bytes_used" yaml:"scratch_bytes_used" msgpack:"scratch_bytes_used"`
}

// RunOutcome classifies a run request.
type RunOutcome string

const (
	// RunOutcomeSuccess means statistics were reported.
	RunOutcomeSuccess RunOutcome = "success"
	// RunOutcomeNotReady means no complete artifact was available.
	RunOutcomeNotReady RunOutcome = "not_ready"
	// RunOutcomePrepareFailed means the executor rejected the artifact.
	RunOutcomePrepareFailed RunOutcome = "prepare_failed"
	// RunOutcomeRunFailed means the executor accepted the artifact but could
	// not run it.
	RunOutcomeRunFailed RunOutcome = "run_failed"
)

// RunReport describes one handled RUN_STATS request.
// It is published to adapters and archived; it never crosses the wire.
type RunReport struct {
	RunID          string     `json:"run_id" yaml:"run_id"`
	DeviceID       string     `json:"device_id" yaml:"device_id"`
	Outcome        RunOutcome `json:"outcome" yaml:"outcome"`
	Stats          RunStats   `json:"stats" yaml:"stats"`
	ArtifactBytes  int        `json:"artifact_bytes" yaml:"artifact_bytes"`
	ArtifactRegion string     `json:"artifact_region" yaml:"artifact_region"`
	ScratchRegion  string     `json:"scratch_region" yaml:"scratch_region"`
	InputTensors   int        `json:"input_tensors" yaml:"input_tensors"`
	OutputTensors  int        `json:"output_tensors" yaml:"output_tensors"`
	Timestamp      string     `json:"timestamp" yaml:"timestamp"`
	DurationMs     int64      `json:"duration_ms" yaml:"duration_ms"`
}

// ArtifactManifest describes a completed upload.
type ArtifactManifest struct {
	UploadID   string `json:"upload_id" yaml:"upload_id"`
	DeviceID   string `json:"device_id" yaml:"device_id"`
	Region     string `json:"region" yaml:"region"`
	SizeBytes  int    `json:"size_bytes" yaml:"size_bytes"`
	ChunkCount uint32 `json:"chunk_count" yaml:"chunk_count"`
	CRC32      uint32 `json:"crc32" yaml:"crc32"`
	Timestamp  string `json:"timestamp" yaml:"timestamp"`
}
