package ifit

import "github.com/blang/semver"

// ProtocolVersion is the revision of this codec/session implementation, for
// a relay server or CLI collaborator to report alongside the equipment's own
// firmware string (see equipment_firmware in SPEC_FULL.md §4.5).
var ProtocolVersion = semver.MustParse("1.0.0")
