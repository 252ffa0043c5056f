package lode

import (
	"context"
	"errors"
	"fmt"

	"github.com/pithecene-io/modelpush/types"
)

// ErrNoManifest is returned by LatestManifest when nothing was archived.
var ErrNoManifest = errors.New("no artifact manifest found")

// QueryReports returns archived run reports, latest first. An empty deviceID
// matches every device. limit <= 0 returns all.
func (a *Archive) QueryReports(ctx context.Context, deviceID string, limit int) ([]types.RunReport, error) {
	var out []types.RunReport
	err := a.scan(ctx, RecordKindRunReport, deviceID, func(rec map[string]any) bool {
		out = append(out, reportFromRecord(rec))
		return limit <= 0 || len(out) < limit
	})
	return out, err
}

// LatestManifest returns the most recent artifact manifest for deviceID.
func (a *Archive) LatestManifest(ctx context.Context, deviceID string) (types.ArtifactManifest, error) {
	var (
		m     types.ArtifactManifest
		found bool
	)
	err := a.scan(ctx, RecordKindManifest, deviceID, func(rec map[string]any) bool {
		m, found = manifestFromRecord(rec), true
		return false
	})
	if err != nil {
		return types.ArtifactManifest{}, err
	}
	if !found {
		return types.ArtifactManifest{}, ErrNoManifest
	}
	return m, nil
}

// scan walks snapshots newest first and calls fn for each record of kind
// belonging to deviceID until fn returns false. Manifest paths are a coarse
// pre-filter; record fields decide.
func (a *Archive) scan(ctx context.Context, kind, deviceID string, fn func(map[string]any) bool) error {
	snapshots, err := a.dataset.Snapshots(ctx)
	if err != nil {
		return wrapError("read", a.name+"/snapshots", err)
	}

	device := ""
	if deviceID != "" {
		device = partitionDevice(deviceID)
	}

	for i := len(snapshots) - 1; i >= 0; i-- {
		snap := snapshots[i]
		if !snapshotMatches(snap, keyRecordKind, kind) || !snapshotMatches(snap, keyDevice, device) {
			continue
		}

		data, err := a.dataset.Read(ctx, snap.ID)
		if err != nil {
			return wrapError("read", fmt.Sprintf("%s/snapshot/%s", a.name, snap.ID), err)
		}
		for j := len(data) - 1; j >= 0; j-- {
			rec, ok := data[j].(map[string]any)
			if !ok || rec[keyRecordKind] != kind {
				continue
			}
			if device != "" && toString(rec[keyDevice]) != device {
				continue
			}
			if !fn(rec) {
				return nil
			}
		}
	}
	return nil
}
