package lode

import (
	"github.com/pithecene-io/modelpush/types"
)

// record_kind partition values.
const (
	RecordKindRunReport = "run_report"
	RecordKindManifest  = "artifact_manifest"
)

// Partition keys, in layout order.
const (
	keyDevice     = "device"
	keyDay        = "day"
	keyRecordKind = "record_kind"
)

var partitionKeys = []string{keyDevice, keyDay, keyRecordKind}

// partitionDevice returns the device partition value for id.
func partitionDevice(id string) string {
	if id == "" {
		return "unknown"
	}
	return id
}

// toReportRecord converts r to the stored map form. HiveLayout reads the
// partition keys from the record itself.
func toReportRecord(r types.RunReport, day string) map[string]any {
	return map[string]any{
		keyRecordKind:        RecordKindRunReport,
		keyDevice:            partitionDevice(r.DeviceID),
		keyDay:               day,
		"wire_version":       types.WireVersion,
		"run_id":             r.RunID,
		"device_id":          r.DeviceID,
		"outcome":            string(r.Outcome),
		"cycle_count":        r.Stats.CycleCount,
		"status_code":        r.Stats.StatusCode,
		"layer_count":        r.Stats.LayerCount,
		"scratch_bytes_used": r.Stats.ScratchBytesUsed,
		"artifact_bytes":     r.ArtifactBytes,
		"artifact_region":    r.ArtifactRegion,
		"scratch_region":     r.ScratchRegion,
		"input_tensors":      r.InputTensors,
		"output_tensors":     r.OutputTensors,
		"ts":                 r.Timestamp,
		"duration_ms":        r.DurationMs,
	}
}

func toManifestRecord(m types.ArtifactManifest, day string) map[string]any {
	return map[string]any{
		keyRecordKind: RecordKindManifest,
		keyDevice:     partitionDevice(m.DeviceID),
		keyDay:        day,
		"upload_id":   m.UploadID,
		"device_id":   m.DeviceID,
		"region":      m.Region,
		"size_bytes":  m.SizeBytes,
		"chunk_count": m.ChunkCount,
		"crc32":       m.CRC32,
		"ts":          m.Timestamp,
	}
}

// reportFromRecord is the inverse of toReportRecord. Numbers read back from
// JSONL arrive as float64.
func reportFromRecord(rec map[string]any) types.RunReport {
	return types.RunReport{
		RunID:    toString(rec["run_id"]),
		DeviceID: toString(rec["device_id"]),
		Outcome:  types.RunOutcome(toString(rec["outcome"])),
		Stats: types.RunStats{
			CycleCount:       uint32(toInt64(rec["cycle_count"])),
			StatusCode:       uint32(toInt64(rec["status_code"])),
			LayerCount:       uint32(toInt64(rec["layer_count"])),
			ScratchBytesUsed: uint32(toInt64(rec["scratch_bytes_used"])),
		},
		ArtifactBytes:  int(toInt64(rec["artifact_bytes"])),
		ArtifactRegion: toString(rec["artifact_region"]),
		ScratchRegion:  toString(rec["scratch_region"]),
		InputTensors:   int(toInt64(rec["input_tensors"])),
		OutputTensors:  int(toInt64(rec["output_tensors"])),
		Timestamp:      toString(rec["ts"]),
		DurationMs:     toInt64(rec["duration_ms"]),
	}
}

func manifestFromRecord(rec map[string]any) types.ArtifactManifest {
	return types.ArtifactManifest{
		UploadID:   toString(rec["upload_id"]),
		DeviceID:   toString(rec["device_id"]),
		Region:     toString(rec["region"]),
		SizeBytes:  int(toInt64(rec["size_bytes"])),
		ChunkCount: uint32(toInt64(rec["chunk_count"])),
		CRC32:      uint32(toInt64(rec["crc32"])),
		Timestamp:  toString(rec["ts"]),
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case uint32:
		return int64(n)
	default:
		return 0
	}
}
