// Package executor runs uploaded artifacts.
//
// An Executor prepares an artifact against a scratch region and returns a
// Model that can be run once preparation succeeds. Two implementations are
// provided: Simulator, which runs in-process, and Process, which drives an
// external runner over stdin/stdout.
package executor

import (
	"context"
	"errors"

	"github.com/pithecene-io/modelpush/types"
)

var (
	// ErrNotReady is returned when the executor could not prepare an artifact.
	ErrNotReady = errors.New("executor: artifact not ready")
	// ErrInvalidSchema is returned for artifacts without the expected
	// flatbuffer identifier.
	ErrInvalidSchema = errors.New("executor: invalid artifact schema")
	// ErrArenaExhausted is returned when the artifact does not fit the
	// scratch region.
	ErrArenaExhausted = errors.New("executor: scratch arena exhausted")
)

// ArenaExhausted is the scratch usage reported when allocation failed.
const ArenaExhausted uint32 = 0xDEADBEEF

// Executor prepares artifacts for execution.
type Executor interface {
	// Name identifies the executor in logs and metrics.
	Name() string
	// Prepare validates artifact and lays it out in scratch.
	// artifact and scratch alias device regions; neither may be retained
	// after the returned Model is closed.
	Prepare(ctx context.Context, artifact, scratch []byte) (Model, error)
}

// Model is a prepared artifact.
type Model interface {
	InputTensors() int
	OutputTensors() int
	// Run executes the artifact once.
	Run(ctx context.Context) (types.RunStats, error)
	Close() error
}
