// Package session implements the upload session: reassembly of an artifact
// from MODEL_DATA chunks into a destination region.
//
// States:
//
//	Idle      --first chunk-->        Receiving
//	Receiving --chunk-->              Receiving
//	Receiving --chunk count-1-->      Complete
//	Complete  --first chunk-->        Receiving
//	any       --ArtifactTooLarge-->   Idle
//
// Every chunk is assumed to carry the payload length of the first chunk.
// Chunk i lands at i * (declared / count). A chunk that would overrun the
// declared size is dropped but still counted and acknowledged.
package session

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/modelpush/region"
	"github.com/pithecene-io/modelpush/types"
)

var (
	// ErrArtifactTooLarge is returned when the declared size of a new
	// session exceeds the selected region. The session is reset to Idle.
	ErrArtifactTooLarge = errors.New("session: artifact too large")
	// ErrZeroChunkCount is returned when a first chunk declares no chunks.
	ErrZeroChunkCount = errors.New("session: chunk count is zero")
	// ErrNotComplete is returned by Artifact when no upload has completed.
	ErrNotComplete = errors.New("session: not complete")
)

// State is the session lifecycle state.
type State int

const (
	StateIdle State = iota
	StateReceiving
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReceiving:
		return "receiving"
	case StateComplete:
		return "complete"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome describes what one chunk did to the session.
type Outcome struct {
	Index uint32
	// Offset is where the payload was stored; meaningless when Dropped or
	// Repeated.
	Offset    int
	Started   bool
	Restarted bool
	Dropped   bool
	Completed bool
	// Repeated is set for a non-zero chunk arriving after completion. It is
	// acknowledged but not stored.
	Repeated bool
}

// Snapshot is an immutable view of the session fields.
type Snapshot struct {
	State         State            `json:"state"`
	Region        types.RegionKind `json:"region"`
	DeclaredSize  int              `json:"declared_size"`
	ChunkSize     int              `json:"chunk_size"`
	ChunkCount    uint32           `json:"chunk_count"`
	ReceivedCount uint32           `json:"received_count"`
}

// InProgress reports whether chunks are being accepted into an open session.
func (s Snapshot) InProgress() bool { return s.State == StateReceiving }

// Complete reports whether a finished artifact is available.
func (s Snapshot) Complete() bool { return s.State == StateComplete }

// Session holds reassembly state for one upload at a time.
// Not safe for concurrent use; the owner serializes access.
type Session struct {
	state     State
	dest      *region.Region
	declared  int
	chunkSize int
	count     uint32
	received  uint32
	highest   uint32
}

// New returns an idle session.
func New() *Session {
	return &Session{}
}

// Reset discards all session state. Region contents are left in place.
func (s *Session) Reset() {
	*s = Session{}
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Snapshot returns the current session fields.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:         s.state,
		DeclaredSize:  s.declared,
		ChunkSize:     s.chunkSize,
		ChunkCount:    s.count,
		ReceivedCount: s.received,
	}
	if s.dest != nil {
		snap.Region = s.dest.Kind()
	}
	return snap
}

// Receive applies one MODEL_DATA chunk.
//
// dest is the artifact region chosen by the current selection; it is only
// consulted when the chunk opens a new session. A new session is opened by
// any chunk while Idle, by chunk 0 while Complete, and by chunk 0 while
// Receiving once a later chunk has been seen (the host started over). Other
// chunks arriving while Complete are retransmits of the finished upload and
// leave the session untouched.
//
// A nil error means the chunk must be acknowledged, whether it was stored
// or dropped for overrunning the declared size.
//
// Errors:
//   - ErrZeroChunkCount: first chunk declared zero chunks; state unchanged
//   - ErrArtifactTooLarge: declared size exceeds dest; session reset to Idle
func (s *Session) Receive(index, count uint32, payload []byte, dest *region.Region) (Outcome, error) {
	out := Outcome{Index: index}

	if s.state == StateComplete && index != 0 {
		out.Repeated = true
		return out, nil
	}

	restart := s.state == StateReceiving && index == 0 && s.highest > 0
	if s.state != StateReceiving || restart {
		if count == 0 {
			return out, ErrZeroChunkCount
		}
		declared := uint64(count) * uint64(len(payload))
		if declared > uint64(dest.Capacity()) {
			s.Reset()
			return out, fmt.Errorf("%w: %d bytes declared, %s region holds %d",
				ErrArtifactTooLarge, declared, dest.Kind(), dest.Capacity())
		}
		*s = Session{
			state:     StateReceiving,
			dest:      dest,
			declared:  int(declared),
			chunkSize: int(declared / uint64(count)),
			count:     count,
		}
		out.Started = true
		out.Restarted = restart
	}

	if index > s.highest {
		s.highest = index
	}
	if s.received < s.count {
		s.received++
	}

	offset := uint64(index) * uint64(s.chunkSize)
	if offset > uint64(s.declared) || !s.dest.Fits(int(offset), len(payload), s.declared) {
		out.Dropped = true
		return out, nil
	}
	out.Offset = int(offset)
	copy(s.dest.Bytes()[offset:], payload)

	if index == s.count-1 {
		s.declared = int(offset) + len(payload)
		s.state = StateComplete
		out.Completed = true
	}
	return out, nil
}

// Artifact returns the reassembled artifact, aliasing the destination region.
func (s *Session) Artifact() ([]byte, types.RegionKind, error) {
	if s.state != StateComplete {
		return nil, 0, ErrNotComplete
	}
	return s.dest.Bytes()[:s.declared], s.dest.Kind(), nil
}
