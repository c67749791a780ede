package ifit

import "fmt"

// Equipment identifies the class of device addressed by an envelope.
type Equipment byte

const (
	EquipmentGeneral   Equipment = 0x02
	EquipmentTreadmill Equipment = 0x04
	// equipmentTypeEcho appears in some response streams as a device-type
	// echo. It is recognized on parse but a client never emits it.
	equipmentTypeEcho Equipment = 0x07
)

func (e Equipment) String() string {
	switch e {
	case EquipmentGeneral:
		return "GENERAL"
	case EquipmentTreadmill:
		return "TREADMILL"
	case equipmentTypeEcho:
		return "TYPE_ECHO"
	default:
		return fmt.Sprintf("Equipment(%#02x)", byte(e))
	}
}

// Command is the operation code carried in byte 6 of every envelope.
type Command byte

const (
	CommandWriteAndRead            Command = 0x02
	CommandCalibrate                Command = 0x06
	CommandSupportedCapabilities    Command = 0x80
	CommandEquipmentInformation     Command = 0x81
	CommandEquipmentReference       Command = 0x82
	CommandEquipmentFirmware        Command = 0x84
	CommandSupportedCommands        Command = 0x88
	CommandEnable                   Command = 0x90
	CommandEquipmentSerial          Command = 0x95
)

func (c Command) String() string {
	switch c {
	case CommandWriteAndRead:
		return "WRITE_AND_READ"
	case CommandCalibrate:
		return "CALIBRATE"
	case CommandSupportedCapabilities:
		return "SUPPORTED_CAPABILITIES"
	case CommandEquipmentInformation:
		return "EQUIPMENT_INFORMATION"
	case CommandEquipmentReference:
		return "EQUIPMENT_REFERENCE"
	case CommandEquipmentFirmware:
		return "EQUIPMENT_FIRMWARE"
	case CommandSupportedCommands:
		return "SUPPORTED_COMMANDS"
	case CommandEnable:
		return "ENABLE"
	case CommandEquipmentSerial:
		return "EQUIPMENT_SERIAL"
	default:
		return fmt.Sprintf("Command(%#02x)", byte(c))
	}
}

// Mode enumerates the values returned/accepted for the Mode characteristic.
type Mode byte

const (
	ModeUnknown           Mode = 0
	ModeIdle              Mode = 1
	ModeActive            Mode = 2
	ModePause             Mode = 3
	ModeSummary           Mode = 4
	ModeSettings          Mode = 7
	ModeMissingSafetyKey  Mode = 8
)

func (m Mode) String() string {
	switch m {
	case ModeUnknown:
		return "UNKNOWN"
	case ModeIdle:
		return "IDLE"
	case ModeActive:
		return "ACTIVE"
	case ModePause:
		return "PAUSE"
	case ModeSummary:
		return "SUMMARY"
	case ModeSettings:
		return "SETTINGS"
	case ModeMissingSafetyKey:
		return "MISSING_SAFETY_KEY"
	default:
		return fmt.Sprintf("Mode(%d)", byte(m))
	}
}

// PulseSource is the fourth byte of a Pulse composite value.
type PulseSource struct {
	raw byte
}

var (
	PulseSourceNone     = PulseSource{0}
	PulseSourceHandGrip = PulseSource{1}
	PulseSourceUnknown2 = PulseSource{2}
	PulseSourceUnknown3 = PulseSource{3}
	PulseSourceBLEHRM   = PulseSource{4}
)

// NewPulseSource decodes a raw byte, leaving unrecognized values intact.
func NewPulseSource(raw byte) PulseSource { return PulseSource{raw} }

// Raw returns the wire byte for this source.
func (p PulseSource) Raw() byte { return p.raw }

// Known reports whether raw decodes to one of the named constants.
func (p PulseSource) Known() bool { return p.raw <= 4 }

func (p PulseSource) String() string {
	switch p.raw {
	case 0:
		return "NONE"
	case 1:
		return "HAND_GRIP"
	case 2:
		return "UNKNOWN2"
	case 3:
		return "UNKNOWN3"
	case 4:
		return "BLE_HRM"
	default:
		return fmt.Sprintf("Unknown(%d)", p.raw)
	}
}

// PulseValue is the decoded form of the Pulse composite characteristic.
type PulseValue struct {
	CurrentBPM  byte
	AverageBPM  byte
	SampleCount byte
	Source      PulseSource
}

func (p PulseValue) String() string {
	return fmt.Sprintf("Pulse{current=%d avg=%d samples=%d source=%s}", p.CurrentBPM, p.AverageBPM, p.SampleCount, p.Source)
}

// Kind discriminates the variants of Value.
type Kind int

const (
	KindUInt8 Kind = iota
	KindUInt16
	KindUInt32
	KindDouble
	KindScaled32
	KindBoolean
	KindPulse
)

// Value is the tagged union over every encoded characteristic type. Exactly
// one of the typed accessors is meaningful for a given Kind; callers use
// Kind() to discriminate before reading.
type Value struct {
	kind    Kind
	u8      byte
	u16     uint16
	u32     uint32
	f64     float64
	boolean bool
	pulse   PulseValue
}

func (v Value) Kind() Kind { return v.kind }

func UInt8Value(n byte) Value     { return Value{kind: KindUInt8, u8: n} }
func UInt16Value(n uint16) Value  { return Value{kind: KindUInt16, u16: n} }
func UInt32Value(n uint32) Value  { return Value{kind: KindUInt32, u32: n} }
func DoubleValue(f float64) Value { return Value{kind: KindDouble, f64: f} }
func Scaled32Value(f float64) Value { return Value{kind: KindScaled32, f64: f} }
func BooleanValue(b bool) Value   { return Value{kind: KindBoolean, boolean: b} }
func PulseValueOf(p PulseValue) Value { return Value{kind: KindPulse, pulse: p} }

func (v Value) UInt8() byte          { return v.u8 }
func (v Value) UInt16() uint16       { return v.u16 }
func (v Value) UInt32() uint32       { return v.u32 }
func (v Value) Double() float64      { return v.f64 }
func (v Value) Scaled32() float64    { return v.f64 }
func (v Value) Boolean() bool        { return v.boolean }
func (v Value) Pulse() PulseValue    { return v.pulse }

func (v Value) String() string {
	switch v.kind {
	case KindUInt8:
		return fmt.Sprintf("UInt8(%d)", v.u8)
	case KindUInt16:
		return fmt.Sprintf("UInt16(%d)", v.u16)
	case KindUInt32:
		return fmt.Sprintf("UInt32(%d)", v.u32)
	case KindDouble:
		return fmt.Sprintf("Double(%g)", v.f64)
	case KindScaled32:
		return fmt.Sprintf("Scaled32(%g)", v.f64)
	case KindBoolean:
		return fmt.Sprintf("Boolean(%t)", v.boolean)
	case KindPulse:
		return v.pulse.String()
	default:
		return "Value(?)"
	}
}
