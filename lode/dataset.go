package lode

import (
	"strings"

	"github.com/justapithecus/lode/lode"
)

// openDataset opens name over factory with the archive's layout and codec.
// Reads and writes must agree on both.
func openDataset(name string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(name),
		factory,
		lode.WithHiveLayout(partitionKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// snapshotMatches reports whether any file in snap lies under the
// key=value partition. An empty value matches everything.
func snapshotMatches(snap *lode.Snapshot, key, value string) bool {
	if value == "" {
		return true
	}
	for _, f := range snap.Manifest.Files {
		if hasPartition(f.Path, key, value) {
			return true
		}
	}
	return false
}

// hasPartition matches whole path segments, so device=d1 does not match
// device=d10.
func hasPartition(path, key, value string) bool {
	segment := key + "=" + value
	for _, part := range strings.Split(path, "/") {
		if part == segment {
			return true
		}
	}
	return false
}
