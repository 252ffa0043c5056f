package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// LengthPrefixSize is the size of the stream length prefix in bytes.
const LengthPrefixSize = 4

// BufferDecoder splits a byte stream into the discrete buffers a packet
// transport would have delivered. Each buffer is preceded by a 4-byte
// little-endian length.
type BufferDecoder struct {
	reader io.Reader
	buf    [MaxBufferSize]byte
}

// NewBufferDecoder creates a new buffer decoder.
func NewBufferDecoder(r io.Reader) *BufferDecoder {
	return &BufferDecoder{reader: r}
}

// ReadBuffer reads a single buffer from the stream.
// The returned slice aliases the decoder's receive buffer and is overwritten
// by the next call, matching a driver-owned receive FIFO.
//
// Errors:
//   - io.EOF: stream ended cleanly between buffers
//   - *FrameError with Kind=FrameErrorPartial: stream ended mid-buffer (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: length exceeds MaxBufferSize (fatal)
func (d *BufferDecoder) ReadBuffer() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	size := binary.LittleEndian.Uint32(lengthBuf[:])
	if size > MaxBufferSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("buffer size %d exceeds maximum %d", size, MaxBufferSize),
		}
	}

	b := d.buf[:size]
	if _, err := io.ReadFull(d.reader, b); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read buffer",
			Err:  err,
		}
	}
	return b, nil
}

// WriteBuffer writes b with its length prefix in a single Write call.
func WriteBuffer(w io.Writer, b []byte) error {
	if len(b) > MaxBufferSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("buffer size %d exceeds maximum %d", len(b), MaxBufferSize),
		}
	}
	out := make([]byte, LengthPrefixSize+len(b))
	binary.LittleEndian.PutUint32(out[:LengthPrefixSize], uint32(len(b)))
	copy(out[LengthPrefixSize:], b)
	_, err := w.Write(out)
	return err
}
