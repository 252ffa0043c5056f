//nolint:revive // types is a common Go package naming convention
package types

import (
	"fmt"
	"strings"
)

// RegionKind names one of the two memory regions a buffer can live in.
type RegionKind uint8

const (
	// RegionFast is the small, tightly coupled region (Region A).
	RegionFast RegionKind = 0
	// RegionGeneral is the larger, slower shared region (Region B).
	RegionGeneral RegionKind = 1
)

// RegionKindFromByte decodes a CONFIG selection byte.
// Zero selects the fast region; any other value selects the general region.
func RegionKindFromByte(b byte) RegionKind {
	if b == 0 {
		return RegionFast
	}
	return RegionGeneral
}

// Byte returns the CONFIG encoding of k.
func (k RegionKind) Byte() byte {
	if k == RegionFast {
		return 0
	}
	return 1
}

// String returns the region name used in logs, config files and CLI flags.
func (k RegionKind) String() string {
	switch k {
	case RegionFast:
		return "fast"
	case RegionGeneral:
		return "general"
	default:
		return fmt.Sprintf("region(%d)", uint8(k))
	}
}

// ParseRegionKind parses a region name. Accepts the hardware names
// ("tcm", "sram") as aliases.
func ParseRegionKind(s string) (RegionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fast", "tcm", "a":
		return RegionFast, nil
	case "general", "sram", "b":
		return RegionGeneral, nil
	default:
		return 0, fmt.Errorf("invalid region %q (must be fast or general)", s)
	}
}
