// Package transport defines the boundary contract between the protocol
// session and the BLE stack that carries it. SPEC_FULL.md §6 treats the BLE
// transport itself -- scanning, GATT service discovery, characteristic
// subscription -- as an external collaborator; this package is that
// boundary's interface, plus the two implementations the module ships:
// mocktransport (a deterministic test double) and bletransport (a real
// binding against github.com/currantlabs/ble).
package transport

import "context"

// Transport is everything the session layer needs from a connected GATT
// link to one piece of equipment. A Transport is owned exclusively by a
// single Session for its lifetime (SPEC_FULL.md §5).
type Transport interface {
	// Connect establishes the link and discovers the iFit service, failing
	// if ctx is cancelled first.
	Connect(ctx context.Context) error

	// Subscribe begins delivering TX characteristic notifications on the
	// channel returned by Notifications. It must be called before any
	// request is sent.
	Subscribe(ctx context.Context) error

	// WriteChunk performs one RX characteristic write and blocks until it
	// completes, enforcing the single-writer ordering SPEC_FULL.md §5
	// requires between successive chunks of the same request.
	WriteChunk(ctx context.Context, chunk []byte) error

	// Notifications returns the channel of raw TX characteristic
	// notification payloads, in the exact order the transport produced
	// them. The channel is closed when the transport disconnects.
	Notifications() <-chan []byte

	// Disconnect tears down the link. It is safe to call more than once.
	Disconnect() error
}
