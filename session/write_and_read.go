package session

import (
	"context"
	"sort"

	"github.com/ianchi/ifit"
)

// WriteAndRead implements the write_and_read algorithm from SPEC_FULL.md
// §4.5: writes is applied in ascending characteristic ID order, reads is
// decoded from the response in the same order writes/reads were validated
// against the catalog. write_and_read with an empty writes map is read-only
// monitoring and is permitted from Connected; any non-empty writes requires
// Authenticated.
func (s *Session) WriteAndRead(ctx context.Context, writes map[byte]ifit.Value, reads []byte) (map[byte]ifit.Value, error) {
	if len(writes) > 0 {
		if !s.atLeast(Authenticated) {
			return nil, s.notConnected(Authenticated)
		}
	} else if !s.atLeast(Connected) {
		return nil, s.notConnected(Connected)
	}

	writeIDs := make([]byte, 0, len(writes))
	for id := range writes {
		writeIDs = append(writeIDs, id)
	}
	sort.Slice(writeIDs, func(i, j int) bool { return writeIDs[i] < writeIDs[j] })

	readIDs := append([]byte(nil), reads...)
	sort.Slice(readIDs, func(i, j int) bool { return readIDs[i] < readIDs[j] })

	for _, id := range writeIDs {
		ch, ok := s.catalog.ByID(id)
		if !ok {
			return nil, &ifit.UnknownCharacteristic{ID: id}
		}
		if !ch.Writable {
			return nil, &ifit.NotWritable{ID: id, Name: ch.Name}
		}
	}
	for _, id := range readIDs {
		if _, ok := s.catalog.ByID(id); !ok {
			return nil, &ifit.UnknownCharacteristic{ID: id}
		}
	}

	payload := ifit.EncodeBitmap(writeIDs)
	payload = append(payload, ifit.EncodeBitmap(readIDs)...)
	for _, id := range writeIDs {
		ch, _ := s.catalog.ByID(id)
		encoded, err := ch.Converter.Encode(ch.Name, writes[id])
		if err != nil {
			return nil, err
		}
		payload = append(payload, encoded...)
	}

	envelope, err := s.call(ctx, ifit.CommandWriteAndRead, ifit.CommandWriteAndRead, payload)
	if err != nil {
		return nil, err
	}

	values := make(map[byte]ifit.Value, len(readIDs))
	rest := envelope.Payload
	for _, id := range readIDs {
		ch, _ := s.catalog.ByID(id)
		var v ifit.Value
		v, rest, err = ch.Converter.Decode(ch.Name, rest)
		if err != nil {
			return nil, err
		}
		values[id] = v
		if s.cache != nil {
			s.cache.Add(id, v)
		}
	}
	// Trailing bytes beyond the requested reads are occasional device padding
	// and are intentionally not interpreted (SPEC_FULL.md §4.5).
	return values, nil
}

// LastKnown returns the most recently decoded value for id, if any
// write_and_read response has ever included it. It is a read-through view of
// the recent-value cache described in SPEC_FULL.md's C5 addition, not a
// substitute for an explicit read.
func (s *Session) LastKnown(id byte) (ifit.Value, bool) {
	if s.cache == nil {
		return ifit.Value{}, false
	}
	v, ok := s.cache.Get(id)
	if !ok {
		return ifit.Value{}, false
	}
	return v.(ifit.Value), true
}
