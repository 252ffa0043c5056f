package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/pithecene-io/modelpush/types"
)

// Response frame sizes and markers.
const (
	// AckMarker prefixes every chunk acknowledgment.
	AckMarker byte = 0xAA
	// AckSize is the marker byte plus a little-endian chunk index.
	AckSize = 5
	// StatusSize is the length of the error/status sentinel.
	StatusSize = 8
	// StatsSize is the length of the execution statistics response.
	StatsSize = 16
)

var (
	errorStatus = [StatusSize]byte{0, 0, 0, 0, 0xFF, 0xFF, 0xFF, 0xFF}
	heartbeat   = [5]byte{'H', 'E', 'L', 'L', 'O'}
)

// ResponseKind classifies a buffer received by the host.
type ResponseKind int

const (
	ResponseUnknown ResponseKind = iota
	ResponseAck
	ResponseHeartbeat
	ResponseErrorStatus
	ResponseStats
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseAck:
		return "ack"
	case ResponseHeartbeat:
		return "heartbeat"
	case ResponseErrorStatus:
		return "error_status"
	case ResponseStats:
		return "stats"
	default:
		return "unknown"
	}
}

// EncodeAck builds the acknowledgment for chunkIndex.
func EncodeAck(chunkIndex uint32) []byte {
	b := make([]byte, AckSize)
	b[0] = AckMarker
	binary.LittleEndian.PutUint32(b[1:], chunkIndex)
	return b
}

// DecodeAck extracts the chunk index from an acknowledgment.
func DecodeAck(b []byte) (uint32, error) {
	if len(b) != AckSize || b[0] != AckMarker {
		return 0, fmt.Errorf("%w: not an ack (%d bytes)", ErrMalformedResponse, len(b))
	}
	return binary.LittleEndian.Uint32(b[1:]), nil
}

// ErrorStatus returns a fresh copy of the error/status sentinel.
func ErrorStatus() []byte {
	b := errorStatus
	return b[:]
}

// Heartbeat returns a fresh copy of the connect-time heartbeat.
func Heartbeat() []byte {
	b := heartbeat
	return b[:]
}

// EncodeStats builds the 16-byte statistics response.
func EncodeStats(s types.RunStats) []byte {
	b := make([]byte, StatsSize)
	binary.LittleEndian.PutUint32(b[0:4], s.CycleCount)
	binary.LittleEndian.PutUint32(b[4:8], s.StatusCode)
	binary.LittleEndian.PutUint32(b[8:12], s.LayerCount)
	binary.LittleEndian.PutUint32(b[12:16], s.ScratchBytesUsed)
	return b
}

// DecodeStats parses a statistics response.
func DecodeStats(b []byte) (types.RunStats, error) {
	if len(b) != StatsSize {
		return types.RunStats{}, fmt.Errorf("%w: stats need %d bytes, got %d", ErrMalformedResponse, StatsSize, len(b))
	}
	return types.RunStats{
		CycleCount:       binary.LittleEndian.Uint32(b[0:4]),
		StatusCode:       binary.LittleEndian.Uint32(b[4:8]),
		LayerCount:       binary.LittleEndian.Uint32(b[8:12]),
		ScratchBytesUsed: binary.LittleEndian.Uint32(b[12:16]),
	}, nil
}

// Classify identifies a response buffer by length and content.
// Acks and heartbeats share a length and are told apart by the first byte.
func Classify(b []byte) ResponseKind {
	switch len(b) {
	case AckSize:
		if b[0] == AckMarker {
			return ResponseAck
		}
		if bytes.Equal(b, heartbeat[:]) {
			return ResponseHeartbeat
		}
	case StatusSize:
		if bytes.Equal(b, errorStatus[:]) {
			return ResponseErrorStatus
		}
	case StatsSize:
		return ResponseStats
	}
	return ResponseUnknown
}
