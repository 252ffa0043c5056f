package lode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/modelpush/types"
)

// Archive is a Lode-backed Sink that can also be queried.
type Archive struct {
	dataset  lode.Dataset
	name     string
	location string
	now      func() time.Time

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error

	mu sync.Mutex // serializes writes
}

// NewArchive creates an archive on the local filesystem under root.
func NewArchive(dataset, root string) (*Archive, error) {
	return newArchive(dataset, lode.NewFSFactory(root), "file://"+root)
}

// NewArchiveWithFactory creates an archive over a custom store factory.
// Use lode.NewMemoryFactory() in tests.
func NewArchiveWithFactory(dataset string, factory lode.StoreFactory) (*Archive, error) {
	return newArchive(dataset, factory, "memory://"+dataset)
}

func newArchive(dataset string, factory lode.StoreFactory, location string) (*Archive, error) {
	if dataset == "" {
		dataset = DefaultDataset
	}
	ds, err := openDataset(dataset, factory)
	if err != nil {
		return nil, wrapError("init", dataset, err)
	}
	return &Archive{
		dataset:      ds,
		name:         dataset,
		location:     location,
		now:          time.Now,
		storeFactory: factory,
	}, nil
}

// Location describes where the archive lives, e.g. file:///var/lib/modelpush
// or s3://bucket/prefix.
func (a *Archive) Location() string { return a.location }

// Dataset returns the dataset ID.
func (a *Archive) Dataset() string { return a.name }

// WriteReport appends one run report.
func (a *Archive) WriteReport(ctx context.Context, r types.RunReport) error {
	day := dayOf(r.Timestamp, a.now)
	return a.write(ctx, toReportRecord(r, day), r.DeviceID, day)
}

// WriteManifest appends one artifact manifest.
func (a *Archive) WriteManifest(ctx context.Context, m types.ArtifactManifest) error {
	day := dayOf(m.Timestamp, a.now)
	return a.write(ctx, toManifestRecord(m, day), m.DeviceID, day)
}

func (a *Archive) write(ctx context.Context, record map[string]any, deviceID, day string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		path := fmt.Sprintf("%s/%s=%s/%s=%s", a.name, keyDevice, partitionDevice(deviceID), keyDay, day)
		return wrapError("write", path, err)
	}
	return nil
}

// Close releases archive resources.
func (a *Archive) Close() error {
	// Dataset holds no open handles.
	return nil
}

var _ Sink = (*Archive)(nil)
