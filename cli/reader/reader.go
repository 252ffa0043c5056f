package reader

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/modelpush/lode"
	"github.com/pithecene-io/modelpush/types"
)

// ErrReportNotFound is returned by Report for an unknown run ID.
var ErrReportNotFound = errors.New("run report not found")

// Source is the archive query surface the reader needs.
type Source interface {
	QueryReports(ctx context.Context, deviceID string, limit int) ([]types.RunReport, error)
	LatestManifest(ctx context.Context, deviceID string) (types.ArtifactManifest, error)
}

var _ Source = (*lode.Archive)(nil)

// Reader answers CLI queries from a Source.
type Reader struct {
	src Source
}

// New creates a reader over src.
func New(src Source) *Reader {
	return &Reader{src: src}
}

// Reports lists run reports for deviceID (all devices if empty), latest
// first, at most limit when limit > 0.
func (r *Reader) Reports(ctx context.Context, deviceID string, limit int) ([]ReportRow, error) {
	reports, err := r.src.QueryReports(ctx, deviceID, limit)
	if err != nil {
		return nil, err
	}
	rows := make([]ReportRow, 0, len(reports))
	for _, rep := range reports {
		rows = append(rows, NewReportRow(rep))
	}
	return rows, nil
}

// Summary aggregates every report for deviceID.
func (r *Reader) Summary(ctx context.Context, deviceID string) (*RunSummary, error) {
	reports, err := r.src.QueryReports(ctx, deviceID, 0)
	if err != nil {
		return nil, err
	}
	return Summarize(deviceID, reports), nil
}

// Report finds one run by ID.
func (r *Reader) Report(ctx context.Context, deviceID, runID string) (*ReportRow, error) {
	reports, err := r.src.QueryReports(ctx, deviceID, 0)
	if err != nil {
		return nil, err
	}
	for _, rep := range reports {
		if rep.RunID == runID {
			row := NewReportRow(rep)
			return &row, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrReportNotFound, runID)
}

// LatestManifest returns the most recent completed upload for deviceID.
func (r *Reader) LatestManifest(ctx context.Context, deviceID string) (*types.ArtifactManifest, error) {
	m, err := r.src.LatestManifest(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
