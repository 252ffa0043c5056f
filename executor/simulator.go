package executor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/pithecene-io/modelpush/log"
	"github.com/pithecene-io/modelpush/types"
)

// SchemaIdentifier is the flatbuffer file identifier expected at byte 4.
const SchemaIdentifier = "TFL3"

// Simulator defaults.
const (
	DefaultCyclesPerByte = 8
	DefaultArenaOverhead = 2048
	DefaultLayerBytes    = 4096
)

// Simulator is a deterministic in-process executor.
//
// Scratch usage is ArenaOverhead plus a quarter of the artifact, rounded up
// to 16 bytes. Cycle and layer counts scale with artifact size.
type Simulator struct {
	CyclesPerByte uint32
	ArenaOverhead int
	LayerBytes    int
	Logger        *log.Logger
}

// NewSimulator returns a Simulator with default parameters.
func NewSimulator(logger *log.Logger) *Simulator {
	return &Simulator{
		CyclesPerByte: DefaultCyclesPerByte,
		ArenaOverhead: DefaultArenaOverhead,
		LayerBytes:    DefaultLayerBytes,
		Logger:        logger,
	}
}

// Name implements Executor.
func (s *Simulator) Name() string { return "sim" }

// ArenaSize returns the scratch bytes an artifact of n bytes needs.
func (s *Simulator) ArenaSize(n int) int {
	return (s.ArenaOverhead + n/4 + 15) &^ 15
}

// Prepare implements Executor.
func (s *Simulator) Prepare(_ context.Context, artifact, scratch []byte) (Model, error) {
	if len(artifact) < 8 || !bytes.Equal(artifact[4:8], []byte(SchemaIdentifier)) {
		return nil, fmt.Errorf("%w: missing %s identifier", ErrInvalidSchema, SchemaIdentifier)
	}

	arena := s.ArenaSize(len(artifact))
	if arena > len(scratch) {
		s.Logger.Warn("arena allocation failed", map[string]any{
			"arena_used":    fmt.Sprintf("0x%08X", ArenaExhausted),
			"arena_needed":  arena,
			"scratch_bytes": len(scratch),
		})
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrArenaExhausted, arena, len(scratch))
	}

	layers := 1
	if s.LayerBytes > 0 && len(artifact)/s.LayerBytes > 1 {
		layers = len(artifact) / s.LayerBytes
	}
	return &simModel{
		scratch: scratch[:arena],
		stats: types.RunStats{
			CycleCount:       uint32(len(artifact)) * s.CyclesPerByte,
			LayerCount:       uint32(layers),
			ScratchBytesUsed: uint32(arena),
		},
	}, nil
}

type simModel struct {
	scratch []byte
	stats   types.RunStats
}

func (m *simModel) InputTensors() int  { return 1 }
func (m *simModel) OutputTensors() int { return 1 }

func (m *simModel) Run(ctx context.Context) (types.RunStats, error) {
	if err := ctx.Err(); err != nil {
		return types.RunStats{}, err
	}
	clear(m.scratch)
	return m.stats, nil
}

func (m *simModel) Close() error { return nil }
