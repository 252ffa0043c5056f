package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/modelpush/types"
)

// ErrArtifactMismatch is returned by PutArtifact when the bytes do not match
// the manifest's size and checksum.
var ErrArtifactMismatch = errors.New("artifact does not match manifest")

// PutArtifact stores the uploaded bytes for m as a sidecar file next to the
// dataset partitions. The bytes are checked against the manifest first.
func (a *Archive) PutArtifact(ctx context.Context, m types.ArtifactManifest, data []byte) error {
	if len(data) != m.SizeBytes || crc32.ChecksumIEEE(data) != m.CRC32 {
		return fmt.Errorf("%w: upload %s", ErrArtifactMismatch, m.UploadID)
	}
	if m.UploadID == "" {
		return errors.New("artifact put: manifest has no upload_id")
	}

	store, err := a.getStore()
	if err != nil {
		return wrapError("init", a.name, err)
	}
	path := a.artifactPath(m)
	if err := store.Put(ctx, path, bytes.NewReader(data)); err != nil {
		return wrapError("put", path, err)
	}
	return nil
}

func (a *Archive) getStore() (lode.Store, error) {
	a.storeOnce.Do(func() {
		a.store, a.storeErr = a.storeFactory()
	})
	return a.store, a.storeErr
}

// artifactPath is
// datasets/<dataset>/partitions/device=<d>/day=<day>/files/<upload_id>.bin
func (a *Archive) artifactPath(m types.ArtifactManifest) string {
	return fmt.Sprintf("datasets/%s/partitions/%s=%s/%s=%s/files/%s.bin",
		a.name,
		keyDevice, partitionDevice(m.DeviceID),
		keyDay, dayOf(m.Timestamp, a.now),
		m.UploadID,
	)
}
