package wire

import (
	"errors"
	"fmt"
)

// Sentinel errors for frame classification.
// Use errors.Is(err, ErrXxx) rather than inspecting FrameError.Kind directly.
var (
	// ErrTooShort reports a buffer shorter than the fixed header.
	ErrTooShort = errors.New("wire: frame shorter than header")
	// ErrChecksumMismatch reports a payload whose CRC-32 differs from the header.
	ErrChecksumMismatch = errors.New("wire: checksum mismatch")
	// ErrPartial reports a stream that ended inside a length-prefixed buffer.
	ErrPartial = errors.New("wire: partial buffer")
	// ErrBufferTooLarge reports a length prefix above MaxBufferSize.
	ErrBufferTooLarge = errors.New("wire: buffer too large")
	// ErrMalformedResponse reports an outbound response of unexpected shape.
	ErrMalformedResponse = errors.New("wire: malformed response")
)

// FrameErrorKind classifies frame and stream decoding errors.
type FrameErrorKind int

const (
	// FrameErrorTooShort indicates fewer than HeaderSize bytes.
	FrameErrorTooShort FrameErrorKind = iota
	// FrameErrorChecksum indicates a CRC-32 mismatch over the payload.
	FrameErrorChecksum
	// FrameErrorPartial indicates a truncated length-prefixed buffer.
	FrameErrorPartial
	// FrameErrorTooLarge indicates a buffer exceeding MaxBufferSize.
	FrameErrorTooLarge
)

func (k FrameErrorKind) sentinel() error {
	switch k {
	case FrameErrorTooShort:
		return ErrTooShort
	case FrameErrorChecksum:
		return ErrChecksumMismatch
	case FrameErrorPartial:
		return ErrPartial
	case FrameErrorTooLarge:
		return ErrBufferTooLarge
	default:
		return nil
	}
}

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind.
func (e *FrameError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// IsFatal returns true if the error leaves the byte stream unusable.
// Short and corrupt frames are dropped individually; a partial or oversized
// length prefix means the stream has lost framing.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}
