package ifit

import (
	"bytes"
	"testing"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	cases := []Envelope{
		{Equipment: EquipmentGeneral, Command: CommandWriteAndRead, Payload: nil},
		{Equipment: EquipmentTreadmill, Command: CommandSupportedCapabilities, Payload: []byte{1, 2, 3}},
		{Equipment: EquipmentTreadmill, Command: CommandEquipmentFirmware, Payload: bytes.Repeat([]byte{0xAB}, 200)},
	}
	for _, e := range cases {
		encoded := EncodeEnvelope(e)
		decoded, err := DecodeEnvelope(encoded)
		if err != nil {
			t.Fatalf("decode: %s", err)
		}
		if decoded.Equipment != e.Equipment || decoded.Command != e.Command || !bytes.Equal(decoded.Payload, e.Payload) {
			t.Fatalf("round trip mismatch: got %+v want %+v", decoded, e)
		}
	}
}

func TestEnvelopeS1SetKph(t *testing.T) {
	payload := []byte{0x01, 0x01, 0x00, 0xE8, 0x03}
	e := Envelope{Equipment: EquipmentTreadmill, Command: CommandWriteAndRead, Payload: payload}
	got := EncodeEnvelope(e)
	want := []byte{0x02, 0x04, 0x02, 0x09, 0x04, 0x09, 0x02, 0x01, 0x01, 0x00, 0xE8, 0x03, 0x05}
	if !bytes.Equal(got, want) {
		t.Fatalf("got % x want % x", got, want)
	}
}

func TestEnvelopeAcceptsBothSignatures(t *testing.T) {
	e := Envelope{Equipment: EquipmentTreadmill, Command: CommandEnable, Payload: []byte{0x02}}
	encoded := EncodeEnvelope(e)
	// flip the signature to the response marker and confirm it still decodes
	alt := append([]byte(nil), encoded...)
	alt[0] = 0x01
	decoded, err := DecodeEnvelope(alt)
	if err != nil {
		t.Fatalf("response signature should decode: %s", err)
	}
	if decoded.Command != CommandEnable {
		t.Fatalf("got %+v", decoded)
	}
}

func TestEnvelopeEncodeAlwaysEmitsRequestSignature(t *testing.T) {
	e := Envelope{Equipment: EquipmentGeneral, Command: CommandCalibrate}
	encoded := EncodeEnvelope(e)
	if encoded[0] != 0x02 || encoded[1] != 0x04 || encoded[2] != 0x02 {
		t.Fatalf("encode must always use 02 04 02, got % x", encoded[:3])
	}
}

func TestEnvelopeBadSignature(t *testing.T) {
	raw := EncodeEnvelope(Envelope{Equipment: EquipmentGeneral, Command: CommandCalibrate})
	raw[0] = 0x99
	_, err := DecodeEnvelope(raw)
	if _, ok := err.(*BadSignature); !ok {
		t.Fatalf("expected *BadSignature, got %T (%v)", err, err)
	}
}

func TestEnvelopeBadChecksum(t *testing.T) {
	raw := EncodeEnvelope(Envelope{Equipment: EquipmentGeneral, Command: CommandCalibrate, Payload: []byte{1, 2, 3}})
	raw[len(raw)-1] ^= 0xFF
	_, err := DecodeEnvelope(raw)
	if _, ok := err.(*BadChecksum); !ok {
		t.Fatalf("expected *BadChecksum, got %T (%v)", err, err)
	}
}

func TestEnvelopeLengthMismatch(t *testing.T) {
	raw := EncodeEnvelope(Envelope{Equipment: EquipmentGeneral, Command: CommandCalibrate, Payload: []byte{1, 2, 3}})
	raw[5] ^= 0x01
	_, err := DecodeEnvelope(raw)
	if _, ok := err.(*LengthMismatch); !ok {
		t.Fatalf("expected *LengthMismatch, got %T (%v)", err, err)
	}
}

// TestEnvelopeChecksumSoundness flips every single bit outside the 3-byte
// prefix and confirms decode never silently returns a wrong-but-valid
// envelope (property 3 in SPEC_FULL.md §8).
func TestEnvelopeChecksumSoundness(t *testing.T) {
	base := EncodeEnvelope(Envelope{Equipment: EquipmentTreadmill, Command: CommandWriteAndRead, Payload: []byte{0x01, 0x01, 0x00, 0xE8, 0x03}})
	for i := 3; i < len(base); i++ {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), base...)
			mutated[i] ^= 1 << uint(bit)
			decoded, err := DecodeEnvelope(mutated)
			if err == nil {
				if decoded.Equipment == EquipmentTreadmill && decoded.Command == CommandWriteAndRead && bytes.Equal(decoded.Payload, []byte{0x01, 0x01, 0x00, 0xE8, 0x03}) {
					t.Fatalf("bit flip at byte %d bit %d silently produced the original envelope", i, bit)
				}
			}
		}
	}
}

func TestEnvelopeShortRejected(t *testing.T) {
	_, err := DecodeEnvelope([]byte{0x02, 0x04, 0x02})
	if err == nil {
		t.Fatal("expected error on truncated envelope")
	}
}
