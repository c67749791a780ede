package session

import (
	"context"

	"github.com/ianchi/ifit"
)

// Offsets into the inner payload of the three fixed-layout metadata
// responses. These are magic numbers inherited from the wire format
// (SPEC_FULL.md §9 design note); centralizing them here is the one place a
// future firmware revision would need updating.
const (
	equipmentReferenceOffset  = 15
	equipmentSerialLengthByte = 8

	// equipmentFirmwareOffset is 4, not the 11 spec.md's prose names: S3's
	// literal scenario bytes measure that 11 from the start of the raw
	// envelope (including the 7-byte signature/length/equipment/command
	// header already stripped by the time Session sees env.Payload), so in
	// env.Payload coordinates the string starts at 11-7=4. See DESIGN.md.
	equipmentFirmwareOffset = 4
)

// responseOK is the RESPONSE_OK byte Enable checks for.
const responseOK = 0x02

// EquipmentInformation reports the set of characteristic IDs the connected
// equipment exposes.
func (s *Session) EquipmentInformation(ctx context.Context) ([]byte, error) {
	env, err := s.call(ctx, ifit.CommandEquipmentInformation, ifit.CommandEquipmentInformation, nil)
	if err != nil {
		return nil, err
	}
	ids, _, err := ifit.DecodeBitmap(env.Payload)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SupportedCapabilities reports the equipment's advertised capability IDs.
func (s *Session) SupportedCapabilities(ctx context.Context) ([]byte, error) {
	env, err := s.call(ctx, ifit.CommandSupportedCapabilities, ifit.CommandSupportedCapabilities, nil)
	if err != nil {
		return nil, err
	}
	return decodeCountPrefixed(env.Payload)
}

// SupportedCommands reports the set of command codes the equipment accepts.
func (s *Session) SupportedCommands(ctx context.Context) ([]ifit.Command, error) {
	env, err := s.call(ctx, ifit.CommandSupportedCommands, ifit.CommandSupportedCommands, nil)
	if err != nil {
		return nil, err
	}
	raw, err := decodeCountPrefixed(env.Payload)
	if err != nil {
		return nil, err
	}
	commands := make([]ifit.Command, len(raw))
	for i, b := range raw {
		commands[i] = ifit.Command(b)
	}
	return commands, nil
}

func decodeCountPrefixed(payload []byte) ([]byte, error) {
	if len(payload) < 1 {
		return nil, &ifit.MalformedValue{Name: "count_prefixed", Raw: payload}
	}
	n := int(payload[0])
	if len(payload) < 1+n {
		return nil, &ifit.MalformedValue{Name: "count_prefixed", Raw: payload}
	}
	return append([]byte(nil), payload[1:1+n]...), nil
}

// EquipmentReference reads the little-endian u32 reference id fixed at
// equipmentReferenceOffset..+4 of the response.
func (s *Session) EquipmentReference(ctx context.Context) (uint32, error) {
	env, err := s.call(ctx, ifit.CommandEquipmentReference, ifit.CommandEquipmentReference, []byte{0x00, 0x00})
	if err != nil {
		return 0, err
	}
	if len(env.Payload) < equipmentReferenceOffset+4 {
		return 0, &ifit.MalformedValue{Name: "equipment_reference", Raw: env.Payload}
	}
	b := env.Payload[equipmentReferenceOffset : equipmentReferenceOffset+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

// EquipmentFirmware reads the ASCII firmware string starting at
// equipmentFirmwareOffset, terminated by the first 0x00 or 0x01 byte.
func (s *Session) EquipmentFirmware(ctx context.Context) (string, error) {
	env, err := s.call(ctx, ifit.CommandEquipmentFirmware, ifit.CommandEquipmentFirmware, []byte{0x00, 0x00})
	if err != nil {
		return "", err
	}
	if len(env.Payload) < equipmentFirmwareOffset {
		return "", &ifit.MalformedValue{Name: "equipment_firmware", Raw: env.Payload}
	}
	field := env.Payload[equipmentFirmwareOffset:]
	end := len(field)
	for i, b := range field {
		if b == 0x00 || b == 0x01 {
			end = i
			break
		}
	}
	return string(field[:end]), nil
}

// EquipmentSerial reads the length-prefixed ASCII serial string at
// equipmentSerialLengthByte.
func (s *Session) EquipmentSerial(ctx context.Context) (string, error) {
	env, err := s.call(ctx, ifit.CommandEquipmentSerial, ifit.CommandEquipmentSerial, []byte{0x00, 0x00})
	if err != nil {
		return "", err
	}
	if len(env.Payload) < equipmentSerialLengthByte+1 {
		return "", &ifit.MalformedValue{Name: "equipment_serial", Raw: env.Payload}
	}
	n := int(env.Payload[equipmentSerialLengthByte])
	start := equipmentSerialLengthByte + 1
	if len(env.Payload) < start+n {
		return "", &ifit.MalformedValue{Name: "equipment_serial", Raw: env.Payload}
	}
	return string(env.Payload[start : start+n]), nil
}
