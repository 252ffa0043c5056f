// Package region models the fixed-capacity memory regions a device places
// uploaded artifacts and execution scratch space in.
//
// A device owns two artifact regions and two scratch regions, one of each
// kind. The active pair is chosen by a Selection, which only CONFIG frames
// change.
package region

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/modelpush/types"
)

// Default capacities, in bytes.
const (
	DefaultArtifactFast    = 200 * 1024
	DefaultArtifactGeneral = 512 * 1024
	DefaultScratchFast     = 128 * 1024
	DefaultScratchGeneral  = 128 * 1024
)

// ErrInvalidLayout is returned by Layout.Validate.
var ErrInvalidLayout = errors.New("region: invalid layout")

// Region is one fixed-capacity buffer.
type Region struct {
	kind types.RegionKind
	buf  []byte
}

// New allocates a region of the given kind and capacity.
func New(kind types.RegionKind, capacity int) *Region {
	return &Region{kind: kind, buf: make([]byte, capacity)}
}

// Kind returns the region kind.
func (r *Region) Kind() types.RegionKind { return r.kind }

// Capacity returns the region size in bytes.
func (r *Region) Capacity() int { return len(r.buf) }

// Bytes returns the whole backing buffer. Writes through it are visible to
// every later reader of the region.
func (r *Region) Bytes() []byte { return r.buf }

// Fits reports whether [off, off+n) lies inside limit bytes of the region.
// limit is clamped to the capacity.
func (r *Region) Fits(off, n, limit int) bool {
	if limit > len(r.buf) {
		limit = len(r.buf)
	}
	return off >= 0 && n >= 0 && off <= limit && n <= limit-off
}

// Layout holds the capacities of the four regions.
type Layout struct {
	ArtifactFast    int `yaml:"artifact_fast"`
	ArtifactGeneral int `yaml:"artifact_general"`
	ScratchFast     int `yaml:"scratch_fast"`
	ScratchGeneral  int `yaml:"scratch_general"`
}

// DefaultLayout returns the stock device layout.
func DefaultLayout() Layout {
	return Layout{
		ArtifactFast:    DefaultArtifactFast,
		ArtifactGeneral: DefaultArtifactGeneral,
		ScratchFast:     DefaultScratchFast,
		ScratchGeneral:  DefaultScratchGeneral,
	}
}

// WithDefaults fills zero capacities from DefaultLayout.
func (l Layout) WithDefaults() Layout {
	d := DefaultLayout()
	if l.ArtifactFast == 0 {
		l.ArtifactFast = d.ArtifactFast
	}
	if l.ArtifactGeneral == 0 {
		l.ArtifactGeneral = d.ArtifactGeneral
	}
	if l.ScratchFast == 0 {
		l.ScratchFast = d.ScratchFast
	}
	if l.ScratchGeneral == 0 {
		l.ScratchGeneral = d.ScratchGeneral
	}
	return l
}

// Validate checks that all capacities are positive.
func (l Layout) Validate() error {
	for _, c := range []struct {
		name string
		size int
	}{
		{"artifact_fast", l.ArtifactFast},
		{"artifact_general", l.ArtifactGeneral},
		{"scratch_fast", l.ScratchFast},
		{"scratch_general", l.ScratchGeneral},
	} {
		if c.size <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidLayout, c.name, c.size)
		}
	}
	return nil
}

// Bank owns the artifact and scratch regions of one device.
type Bank struct {
	artifact [2]*Region
	scratch  [2]*Region
}

// NewBank allocates every region in l.
func NewBank(l Layout) (*Bank, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &Bank{
		artifact: [2]*Region{
			types.RegionFast:    New(types.RegionFast, l.ArtifactFast),
			types.RegionGeneral: New(types.RegionGeneral, l.ArtifactGeneral),
		},
		scratch: [2]*Region{
			types.RegionFast:    New(types.RegionFast, l.ScratchFast),
			types.RegionGeneral: New(types.RegionGeneral, l.ScratchGeneral),
		},
	}, nil
}

// Artifact returns the artifact region of kind k.
func (b *Bank) Artifact(k types.RegionKind) *Region {
	return b.artifact[index(k)]
}

// Scratch returns the scratch region of kind k.
func (b *Bank) Scratch(k types.RegionKind) *Region {
	return b.scratch[index(k)]
}

func index(k types.RegionKind) int {
	if k == types.RegionFast {
		return 0
	}
	return 1
}
