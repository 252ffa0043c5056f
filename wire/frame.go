// Package wire implements the chunked transfer wire format: the fixed
// 13-byte frame header, payload checksums, the outbound response frames, and
// length-prefixed buffer framing for stream transports.
//
// All integers are little-endian.
//
//	offset size field
//	0      4    checksum (CRC-32 over payload)
//	4      1    command
//	5      4    chunk_index
//	9      4    chunk_count
//	13     N    payload
package wire

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/pithecene-io/modelpush/types"
)

const (
	// HeaderSize is the fixed frame header length.
	HeaderSize = 13
	// MaxBufferSize is the largest buffer the transport delivers or accepts.
	MaxBufferSize = 4096
	// MaxPayloadSize is the largest payload that fits in one buffer.
	MaxPayloadSize = MaxBufferSize - HeaderSize
)

// Frame is a parsed view over one received buffer.
// Payload aliases the buffer passed to Parse; it is valid only while the
// caller keeps that buffer unchanged.
type Frame struct {
	Checksum   uint32
	Command    types.Command
	ChunkIndex uint32
	ChunkCount uint32
	Payload    []byte
}

// Parse splits b into header fields and payload without copying.
//
// Errors:
//   - *FrameError with Kind=FrameErrorTooShort when len(b) < HeaderSize
func Parse(b []byte) (Frame, error) {
	if len(b) < HeaderSize {
		return Frame{}, &FrameError{
			Kind: FrameErrorTooShort,
			Msg:  fmt.Sprintf("frame has %d bytes, header needs %d", len(b), HeaderSize),
		}
	}
	return Frame{
		Checksum:   binary.LittleEndian.Uint32(b[0:4]),
		Command:    types.Command(b[4]),
		ChunkIndex: binary.LittleEndian.Uint32(b[5:9]),
		ChunkCount: binary.LittleEndian.Uint32(b[9:13]),
		Payload:    b[HeaderSize:],
	}, nil
}

// Checksum returns the CRC-32 (IEEE, all-ones initial value, inverted
// result) of payload.
func Checksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// Verify recomputes the payload checksum and compares it with the header.
//
// Errors:
//   - *FrameError with Kind=FrameErrorChecksum on mismatch
func Verify(f Frame) error {
	got := Checksum(f.Payload)
	if got != f.Checksum {
		return &FrameError{
			Kind: FrameErrorChecksum,
			Msg:  fmt.Sprintf("payload crc 0x%08X, header says 0x%08X", got, f.Checksum),
		}
	}
	return nil
}

// Decode parses and verifies b in one step.
func Decode(b []byte) (Frame, error) {
	f, err := Parse(b)
	if err != nil {
		return Frame{}, err
	}
	if err := Verify(f); err != nil {
		return Frame{}, err
	}
	return f, nil
}

// Encode builds a frame buffer with a freshly computed checksum.
func Encode(cmd types.Command, chunkIndex, chunkCount uint32, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], Checksum(payload))
	buf[4] = byte(cmd)
	binary.LittleEndian.PutUint32(buf[5:9], chunkIndex)
	binary.LittleEndian.PutUint32(buf[9:13], chunkCount)
	copy(buf[HeaderSize:], payload)
	return buf
}

// EncodeConfig builds a CONFIG frame selecting the artifact and scratch regions.
func EncodeConfig(artifact, scratch types.RegionKind) []byte {
	return Encode(types.CommandConfig, 0, 0, []byte{artifact.Byte(), scratch.Byte()})
}

// EncodeRunStats builds a RUN_STATS frame.
func EncodeRunStats() []byte {
	return Encode(types.CommandRunStats, 0, 0, nil)
}
