package types

// Version is the canonical project version.
// The device firmware emulation, host client, and wire format share this
// version per the lockstep versioning policy.
const Version = "0.2.0"

// WireVersion is the revision of the chunked transfer wire format.
// The header layout has been fixed since the first revision; bumping this
// requires a coordinated host and device change.
const WireVersion = 1
