package bletransport

import "github.com/ianchi/ifit"

var (
	ifitServiceUUID = ifit.ServiceUUID
	ifitRXUUID      = ifit.RXCharUUID
	ifitTXUUID      = ifit.TXCharUUID
)
