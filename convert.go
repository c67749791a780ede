package ifit

import "math"

// Converter encodes and decodes the on-wire bytes for one characteristic
// type. Implementations are pure and side-effect-free; the fixed set below
// is exhaustive for the protocol (see design note in SPEC_FULL.md on sum
// types replacing the source's duck-typed converters).
type Converter interface {
	// Width is the number of wire bytes this converter always consumes.
	Width() int
	// Encode renders v to exactly Width() bytes, or fails with
	// ValueOutOfRange / MalformedValue for an invalid v.
	Encode(name string, v Value) ([]byte, error)
	// Decode reads exactly Width() bytes from the front of raw and returns
	// the remaining bytes, or fails with MalformedValue.
	Decode(name string, raw []byte) (Value, []byte, error)
}

func take(name string, raw []byte, n int) ([]byte, []byte, error) {
	if len(raw) < n {
		return nil, nil, &MalformedValue{Name: name, Raw: raw}
	}
	return raw[:n], raw[n:], nil
}

type uint8Converter struct{}

func (uint8Converter) Width() int { return 1 }

func (uint8Converter) Encode(name string, v Value) ([]byte, error) {
	return []byte{v.UInt8()}, nil
}

func (uint8Converter) Decode(name string, raw []byte) (Value, []byte, error) {
	b, rest, err := take(name, raw, 1)
	if err != nil {
		return Value{}, nil, err
	}
	return UInt8Value(b[0]), rest, nil
}

type uint16Converter struct{}

func (uint16Converter) Width() int { return 2 }

func (uint16Converter) Encode(name string, v Value) ([]byte, error) {
	n := v.UInt16()
	return []byte{byte(n), byte(n >> 8)}, nil
}

func (uint16Converter) Decode(name string, raw []byte) (Value, []byte, error) {
	b, rest, err := take(name, raw, 2)
	if err != nil {
		return Value{}, nil, err
	}
	return UInt16Value(uint16(b[0]) | uint16(b[1])<<8), rest, nil
}

type uint32Converter struct{}

func (uint32Converter) Width() int { return 4 }

func (uint32Converter) Encode(name string, v Value) ([]byte, error) {
	n := v.UInt32()
	return []byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}, nil
}

func (uint32Converter) Decode(name string, raw []byte) (Value, []byte, error) {
	b, rest, err := take(name, raw, 4)
	if err != nil {
		return Value{}, nil, err
	}
	n := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return UInt32Value(n), rest, nil
}

// doubleConverter encodes a fractional value as round(v*100) into an
// unsigned 16-bit little-endian integer; domain 0.0..655.35.
type doubleConverter struct{}

func (doubleConverter) Width() int { return 2 }

func (doubleConverter) Encode(name string, v Value) ([]byte, error) {
	f := v.Double()
	if f < 0 || f > 655.35 {
		return nil, &ValueOutOfRange{Name: name, Value: f}
	}
	n := uint16(math.Round(f * 100))
	return []byte{byte(n), byte(n >> 8)}, nil
}

func (doubleConverter) Decode(name string, raw []byte) (Value, []byte, error) {
	b, rest, err := take(name, raw, 2)
	if err != nil {
		return Value{}, nil, err
	}
	n := uint16(b[0]) | uint16(b[1])<<8
	return DoubleValue(float64(n) / 100), rest, nil
}

// scaled32Converter is the calorie-total encoding inherited from the device
// firmware: the stored integer represents v * (1024 / 1e8). Do not simplify
// the scale to a decimal ratio; the rounding must reproduce the firmware's
// integer arithmetic exactly.
type scaled32Converter struct{}

const scaled32Numerator = 1024
const scaled32Denominator = 100000000

func (scaled32Converter) Width() int { return 4 }

func (scaled32Converter) Encode(name string, v Value) ([]byte, error) {
	f := v.Scaled32()
	if f < 0 {
		return nil, &ValueOutOfRange{Name: name, Value: f}
	}
	n := uint32(math.Round(f * scaled32Numerator / scaled32Denominator))
	return []byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}, nil
}

func (scaled32Converter) Decode(name string, raw []byte) (Value, []byte, error) {
	b, rest, err := take(name, raw, 4)
	if err != nil {
		return Value{}, nil, err
	}
	n := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return Scaled32Value(float64(n) * scaled32Denominator / scaled32Numerator), rest, nil
}

type booleanConverter struct{}

func (booleanConverter) Width() int { return 1 }

func (booleanConverter) Encode(name string, v Value) ([]byte, error) {
	if v.Boolean() {
		return []byte{0x01}, nil
	}
	return []byte{0x00}, nil
}

func (booleanConverter) Decode(name string, raw []byte) (Value, []byte, error) {
	b, rest, err := take(name, raw, 1)
	if err != nil {
		return Value{}, nil, err
	}
	switch b[0] {
	case 0x00:
		return BooleanValue(false), rest, nil
	case 0x01:
		return BooleanValue(true), rest, nil
	default:
		return Value{}, nil, &MalformedValue{Name: name, Raw: b}
	}
}

// pulseConverter decodes the 4-byte composite in fixed field order. Unknown
// source bytes decode rather than error, per the protocol's tolerance for
// firmware it hasn't seen.
type pulseConverter struct{}

func (pulseConverter) Width() int { return 4 }

func (pulseConverter) Encode(name string, v Value) ([]byte, error) {
	p := v.Pulse()
	return []byte{p.CurrentBPM, p.AverageBPM, p.SampleCount, p.Source.Raw()}, nil
}

func (pulseConverter) Decode(name string, raw []byte) (Value, []byte, error) {
	b, rest, err := take(name, raw, 4)
	if err != nil {
		return Value{}, nil, err
	}
	return PulseValueOf(PulseValue{
		CurrentBPM:  b[0],
		AverageBPM:  b[1],
		SampleCount: b[2],
		Source:      NewPulseSource(b[3]),
	}), rest, nil
}

// Shared converter instances; the catalog references these by value, the
// fixed set enumerated in SPEC_FULL.md §4.2.
var (
	ConvUInt8    Converter = uint8Converter{}
	ConvUInt16   Converter = uint16Converter{}
	ConvUInt32   Converter = uint32Converter{}
	ConvDouble   Converter = doubleConverter{}
	ConvScaled32 Converter = scaled32Converter{}
	ConvBoolean  Converter = booleanConverter{}
	ConvPulse    Converter = pulseConverter{}
)
