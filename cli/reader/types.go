// Package reader is the read side of the modelpush CLI. Commands read
// archived run reports through it and never touch the archive directly.
package reader

import "github.com/pithecene-io/modelpush/types"

// ReportRow is a run report flattened for tables.
type ReportRow struct {
	RunID          string `json:"run_id" yaml:"run_id"`
	DeviceID       string `json:"device_id" yaml:"device_id"`
	Outcome        string `json:"outcome" yaml:"outcome"`
	CycleCount     uint32 `json:"cycle_count" yaml:"cycle_count"`
	StatusCode     uint32 `json:"status_code" yaml:"status_code"`
	LayerCount     uint32 `json:"layer_count" yaml:"layer_count"`
	ScratchUsed    uint32 `json:"scratch_bytes_used" yaml:"scratch_bytes_used"`
	ArtifactBytes  int    `json:"artifact_bytes" yaml:"artifact_bytes"`
	ArtifactRegion string `json:"artifact_region" yaml:"artifact_region"`
	ScratchRegion  string `json:"scratch_region" yaml:"scratch_region"`
	Timestamp      string `json:"timestamp" yaml:"timestamp"`
	DurationMs     int64  `json:"duration_ms" yaml:"duration_ms"`
}

// NewReportRow flattens r.
func NewReportRow(r types.RunReport) ReportRow {
	return ReportRow{
		RunID:          r.RunID,
		DeviceID:       r.DeviceID,
		Outcome:        string(r.Outcome),
		CycleCount:     r.Stats.CycleCount,
		StatusCode:     r.Stats.StatusCode,
		LayerCount:     r.Stats.LayerCount,
		ScratchUsed:    r.Stats.ScratchBytesUsed,
		ArtifactBytes:  r.ArtifactBytes,
		ArtifactRegion: r.ArtifactRegion,
		ScratchRegion:  r.ScratchRegion,
		Timestamp:      r.Timestamp,
		DurationMs:     r.DurationMs,
	}
}

// RunSummary aggregates run reports.
type RunSummary struct {
	DeviceID      string  `json:"device_id,omitempty" yaml:"device_id,omitempty"`
	Total         int     `json:"total" yaml:"total"`
	Succeeded     int     `json:"succeeded" yaml:"succeeded"`
	NotReady      int     `json:"not_ready" yaml:"not_ready"`
	PrepareFailed int     `json:"prepare_failed" yaml:"prepare_failed"`
	RunFailed     int     `json:"run_failed" yaml:"run_failed"`
	MeanCycles    float64 `json:"mean_cycles" yaml:"mean_cycles"`
	MaxScratch    uint32  `json:"max_scratch_bytes_used" yaml:"max_scratch_bytes_used"`
	LatestRunID   string  `json:"latest_run_id,omitempty" yaml:"latest_run_id,omitempty"`
	LatestAt      string  `json:"latest_at,omitempty" yaml:"latest_at,omitempty"`
}

// Summarize aggregates reports, which are expected latest first.
// MeanCycles covers successful runs only.
func Summarize(deviceID string, reports []types.RunReport) *RunSummary {
	s := &RunSummary{DeviceID: deviceID, Total: len(reports)}
	var cycles uint64
	for _, r := range reports {
		switch r.Outcome {
		case types.RunOutcomeSuccess:
			s.Succeeded++
			cycles += uint64(r.Stats.CycleCount)
		case types.RunOutcomeNotReady:
			s.NotReady++
		case types.RunOutcomePrepareFailed:
			s.PrepareFailed++
		case types.RunOutcomeRunFailed:
			s.RunFailed++
		}
		s.MaxScratch = max(s.MaxScratch, r.Stats.ScratchBytesUsed)
	}
	if s.Succeeded > 0 {
		s.MeanCycles = float64(cycles) / float64(s.Succeeded)
	}
	if len(reports) > 0 {
		s.LatestRunID = reports[0].RunID
		s.LatestAt = reports[0].Timestamp
	}
	return s
}
