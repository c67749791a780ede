package ifit

import uuid "github.com/satori/go.uuid"

// GATT identifiers for the iFit equipment service, in the same UUID
// representation the teacher uses to derive and compare its own BLE service
// identifiers (SPEC_FULL.md §3), rather than as bare strings.
var (
	ServiceUUID = uuid.Must(uuid.FromString("00001533-1412-efde-1523-785feabcd123"))
	RXCharUUID  = uuid.Must(uuid.FromString("00001535-1412-efde-1523-785feabcd123"))
	TXCharUUID  = uuid.Must(uuid.FromString("00001534-1412-efde-1523-785feabcd123"))
)
