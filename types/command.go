// Package types defines core domain types shared by the device, host, and
// storage layers.
//
//nolint:revive // types is a common Go package naming convention
package types

import "fmt"

// Command is the one-byte command code carried in every frame header.
type Command uint8

// Command codes on the wire.
const (
	// CommandModelData carries one chunk of the artifact being uploaded.
	CommandModelData Command = 0x01
	// CommandAck is outbound only. Inbound frames carrying it are ignored.
	CommandAck Command = 0x02
	// CommandConfig selects the artifact and scratch regions.
	CommandConfig Command = 0x03
	// CommandRunStats asks the device to run the uploaded artifact.
	CommandRunStats Command = 0x04
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CommandModelData:
		return "MODEL_DATA"
	case CommandAck:
		return "ACK"
	case CommandConfig:
		return "CONFIG"
	case CommandRunStats:
		return "RUN_STATS"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", uint8(c))
	}
}

// Known reports whether c is a command the device acts on.
func (c Command) Known() bool {
	switch c {
	case CommandModelData, CommandConfig, CommandRunStats:
		return true
	default:
		return false
	}
}
