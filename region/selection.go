package region

import "github.com/pithecene-io/modelpush/types"

// Selection is the active artifact/scratch region pair.
// The zero value selects the fast region for both.
type Selection struct {
	Artifact types.RegionKind `json:"artifact" yaml:"artifact"`
	Scratch  types.RegionKind `json:"scratch" yaml:"scratch"`
}

// ParseSelection decodes a CONFIG payload.
// Byte 0 picks the artifact region, byte 1 the scratch region. When byte 1 is
// absent the scratch region mirrors the artifact region. Bytes past the
// second are ignored. ok is false for an empty payload.
func ParseSelection(payload []byte) (sel Selection, ok bool) {
	if len(payload) == 0 {
		return Selection{}, false
	}
	sel.Artifact = types.RegionKindFromByte(payload[0])
	sel.Scratch = sel.Artifact
	if len(payload) > 1 {
		sel.Scratch = types.RegionKindFromByte(payload[1])
	}
	return sel, true
}

// Apply updates s from a CONFIG payload and reports whether it changed
// anything. An empty payload leaves s untouched.
func (s *Selection) Apply(payload []byte) bool {
	next, ok := ParseSelection(payload)
	if !ok || next == *s {
		return false
	}
	*s = next
	return true
}

// Payload encodes s as a two-byte CONFIG payload.
func (s Selection) Payload() []byte {
	return []byte{s.Artifact.Byte(), s.Scratch.Byte()}
}
