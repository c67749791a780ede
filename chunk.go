package ifit

// ChunkPayloadSize is the maximum number of envelope bytes carried by a
// single payload chunk; the MTU is fixed at 20 bytes total regardless of
// what the BLE stack negotiates (SPEC_FULL.md §9).
const ChunkPayloadSize = 18

// MaxGATTWrite is the largest single GATT write the chunker ever emits.
const MaxGATTWrite = 20

const chunkHeaderMarker = 0xFE
const chunkEOFIndex = 0xFF

// ChunkEnvelope splits encoded (an already-built envelope) into a header
// chunk followed by ceil(len(encoded)/ChunkPayloadSize) payload chunks, each
// at most MaxGATTWrite bytes. The final payload chunk is marked with the EOF
// index 0xFF regardless of its ordinal.
func ChunkEnvelope(encoded []byte) ([][]byte, error) {
	l := len(encoded)
	if l > 255 {
		return nil, &EnvelopeTooLong{Length: l}
	}

	numPayloadChunks := (l + ChunkPayloadSize - 1) / ChunkPayloadSize
	total := 1 + numPayloadChunks

	chunks := make([][]byte, 0, total)
	chunks = append(chunks, []byte{chunkHeaderMarker, 0x02, byte(l), byte(total)})

	for i := 0; i < numPayloadChunks; i++ {
		start := i * ChunkPayloadSize
		end := start + ChunkPayloadSize
		if end > l {
			end = l
		}
		piece := encoded[start:end]

		index := byte(i)
		if i == numPayloadChunks-1 {
			index = chunkEOFIndex
		}
		chunk := make([]byte, 0, 2+len(piece))
		chunk = append(chunk, index, byte(len(piece)))
		chunk = append(chunk, piece...)
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

// Reassembler reconstructs one inbound envelope from a stream of GATT
// notification chunks. It owns exactly one reassembly buffer, per the
// single-owner discipline in SPEC_FULL.md §5; a Reassembler must not be used
// from more than one goroutine concurrently.
type Reassembler struct {
	started       bool
	totalLength   int
	totalChunks   int
	nextIndex     int
	buf           []byte
}

// NewReassembler returns an empty reassembler ready to receive a header
// chunk.
func NewReassembler() *Reassembler { return &Reassembler{} }

// Reset discards any in-progress reassembly.
func (r *Reassembler) Reset() {
	r.started = false
	r.totalLength = 0
	r.totalChunks = 0
	r.nextIndex = 0
	r.buf = nil
}

// Feed consumes one chunk as delivered by the transport. It returns the
// complete envelope bytes and done=true once totalLength bytes have been
// reassembled. A new header chunk arriving mid-reassembly resets the buffer
// (tolerating device-side retries) rather than erroring; reset=true on that
// return tells the caller a reset happened, as distinct from an ordinary
// fresh header starting the first reassembly of a Reassembler's life.
func (r *Reassembler) Feed(chunk []byte) (envelope []byte, done bool, reset bool, err error) {
	if len(chunk) > 0 && chunk[0] == chunkHeaderMarker {
		// A fresh header while a buffer is in progress resets it, tolerating
		// device-side retries (spec.md:125, SPEC_FULL.md §4.4).
		wasStarted := r.started
		if len(chunk) < 4 {
			r.Reset()
			return nil, false, false, &FramingError{Reason: "short header chunk"}
		}
		if wasStarted {
			log.Warningf("ifit: reassembly reset: new header chunk arrived mid-stream (%d of %d bytes received)", len(r.buf), r.totalLength)
		}
		r.started = true
		r.totalLength = int(chunk[2])
		r.totalChunks = int(chunk[3])
		r.nextIndex = 0
		r.buf = r.buf[:0]
		return nil, false, wasStarted, nil
	}

	if !r.started {
		return nil, false, false, &FramingError{ChunkIndex: firstByte(chunk), Reason: "chunk received before header"}
	}

	if len(chunk) < 2 {
		return nil, false, false, r.fail("short payload chunk")
	}

	index := chunk[0]
	length := int(chunk[1])
	if len(chunk) < 2+length {
		return nil, false, false, r.fail("payload chunk shorter than declared length")
	}
	payload := chunk[2 : 2+length]

	expectedPayloadChunks := r.totalChunks - 1
	isLast := index == chunkEOFIndex
	wantLast := r.nextIndex == expectedPayloadChunks-1
	if isLast != wantLast {
		return nil, false, false, r.fail("chunk order violation")
	}
	if !isLast && int(index) != r.nextIndex {
		return nil, false, false, r.fail("chunk order violation")
	}

	r.buf = append(r.buf, payload...)
	r.nextIndex++

	if len(r.buf) > r.totalLength {
		return nil, false, false, r.fail("reassembled payload exceeds declared length")
	}

	if len(r.buf) == r.totalLength {
		out := append([]byte(nil), r.buf...)
		r.Reset()
		return out, true, false, nil
	}
	return nil, false, false, nil
}

func firstByte(b []byte) byte {
	if len(b) == 0 {
		return 0
	}
	return b[0]
}

// fail resets the reassembler and returns a FramingError tagged with the
// chunk index that was in progress when the violation was detected.
func (r *Reassembler) fail(reason string) error {
	idx := byte(r.nextIndex)
	r.Reset()
	return &FramingError{ChunkIndex: idx, Reason: reason}
}
