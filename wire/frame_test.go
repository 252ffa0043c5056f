package wire

import (
	"bytes"
	"errors"
	"testing"

	"github.com/pithecene-io/modelpush/types"
)

func TestParse_Header(t *testing.T) {
	payload := []byte("hello model")
	buf := Encode(types.CommandModelData, 7, 9, payload)

	if len(buf) != HeaderSize+len(payload) {
		t.Fatalf("len = %d, want %d", len(buf), HeaderSize+len(payload))
	}

	f, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if f.Command != types.CommandModelData {
		t.Errorf("Command = %v, want MODEL_DATA", f.Command)
	}
	if f.ChunkIndex != 7 {
		t.Errorf("ChunkIndex = %d, want 7", f.ChunkIndex)
	}
	if f.ChunkCount != 9 {
		t.Errorf("ChunkCount = %d, want 9", f.ChunkCount)
	}
	if !bytes.Equal(f.Payload, payload) {
		t.Errorf("Payload = %q, want %q", f.Payload, payload)
	}
	if f.Checksum != Checksum(payload) {
		t.Errorf("Checksum = 0x%08X, want 0x%08X", f.Checksum, Checksum(payload))
	}
}

func TestParse_LittleEndianLayout(t *testing.T) {
	buf := []byte{
		0x78, 0x56, 0x34, 0x12, // checksum
		0x03,                   // command
		0x01, 0x02, 0x00, 0x00, // chunk_index
		0x00, 0x00, 0x01, 0x00, // chunk_count
	}
	f, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if f.Checksum != 0x12345678 {
		t.Errorf("Checksum = 0x%08X, want 0x12345678", f.Checksum)
	}
	if f.Command != types.CommandConfig {
		t.Errorf("Command = %v, want CONFIG", f.Command)
	}
	if f.ChunkIndex != 0x0201 {
		t.Errorf("ChunkIndex = 0x%X, want 0x201", f.ChunkIndex)
	}
	if f.ChunkCount != 0x010000 {
		t.Errorf("ChunkCount = 0x%X, want 0x10000", f.ChunkCount)
	}
	if len(f.Payload) != 0 {
		t.Errorf("Payload len = %d, want 0", len(f.Payload))
	}
}

func TestParse_TooShort(t *testing.T) {
	for _, n := range []int{0, 1, 5, HeaderSize - 1} {
		_, err := Parse(make([]byte, n))
		if err == nil {
			t.Fatalf("Parse(%d bytes) should fail", n)
		}
		if !errors.Is(err, ErrTooShort) {
			t.Errorf("Parse(%d bytes) error = %v, want ErrTooShort", n, err)
		}
		if IsFatalFrameError(err) {
			t.Errorf("short frame should not be fatal")
		}
	}
}

func TestParse_BorrowsBuffer(t *testing.T) {
	buf := Encode(types.CommandModelData, 0, 1, []byte{1, 2, 3})
	f, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	buf[HeaderSize] = 0xEE
	if f.Payload[0] != 0xEE {
		t.Error("Payload should alias the receive buffer")
	}
}

func TestVerify(t *testing.T) {
	payload := bytes.Repeat([]byte{0x5A}, 100)
	buf := Encode(types.CommandModelData, 0, 1, payload)

	if _, err := Decode(buf); err != nil {
		t.Fatalf("Decode of intact frame failed: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(b []byte)
	}{
		{"payload byte flipped", func(b []byte) { b[HeaderSize+10] ^= 0x01 }},
		{"checksum byte flipped", func(b []byte) { b[0] ^= 0x80 }},
		{"last payload byte", func(b []byte) { b[len(b)-1] = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := append([]byte(nil), buf...)
			tt.mutate(b)
			f, err := Parse(b)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			err = Verify(f)
			if !errors.Is(err, ErrChecksumMismatch) {
				t.Errorf("Verify error = %v, want ErrChecksumMismatch", err)
			}
		})
	}
}

func TestVerify_HeaderFieldsNotCovered(t *testing.T) {
	buf := Encode(types.CommandModelData, 3, 4, []byte("abc"))
	buf[5] = 0xFF // chunk_index is outside the checksum
	if _, err := Decode(buf); err != nil {
		t.Errorf("checksum should cover payload only, got %v", err)
	}
}

func TestChecksum_KnownValues(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
	}{
		{"", 0x00000000},
		{"123456789", 0xCBF43926},
		{"a", 0xE8B7BE43},
	}
	for _, tt := range tests {
		if got := Checksum([]byte(tt.in)); got != tt.want {
			t.Errorf("Checksum(%q) = 0x%08X, want 0x%08X", tt.in, got, tt.want)
		}
	}
}

func TestEncodeConfig(t *testing.T) {
	f, err := Decode(EncodeConfig(types.RegionGeneral, types.RegionFast))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if f.Command != types.CommandConfig {
		t.Errorf("Command = %v, want CONFIG", f.Command)
	}
	if !bytes.Equal(f.Payload, []byte{1, 0}) {
		t.Errorf("Payload = %v, want [1 0]", f.Payload)
	}
}

func TestEncodeRunStats(t *testing.T) {
	buf := EncodeRunStats()
	if len(buf) != HeaderSize {
		t.Fatalf("len = %d, want %d", len(buf), HeaderSize)
	}
	f, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if f.Command != types.CommandRunStats {
		t.Errorf("Command = %v, want RUN_STATS", f.Command)
	}
}

func TestFrameError_Message(t *testing.T) {
	inner := errors.New("boom")
	err := &FrameError{Kind: FrameErrorPartial, Msg: "failed to read", Err: inner}
	if err.Error() != "failed to read: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is should reach the wrapped error")
	}
	if !errors.Is(err, ErrPartial) {
		t.Error("errors.Is should match the kind sentinel")
	}
	if errors.Is(err, ErrChecksumMismatch) {
		t.Error("errors.Is should not match a different kind")
	}
}
