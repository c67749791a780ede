// Package bletransport binds a session to a real piece of iFit equipment
// over github.com/currantlabs/ble, the same BLE library the teacher vendors
// for its own peripheral/central pairing transport. It is the concrete
// instance of the transport.Transport boundary described in SPEC_FULL.md §6;
// scanning and service discovery are delegated to the ble package itself.
package bletransport

import (
	"context"
	"fmt"

	"github.com/currantlabs/ble"
	uuid "github.com/satori/go.uuid"
)

// Transport connects to one iFit GATT peripheral, identified by its BLE
// address, and exposes the RX/TX characteristics through transport.Transport.
type Transport struct {
	addr ble.Addr

	client ble.Client
	rx     *ble.Characteristic
	tx     *ble.Characteristic

	notifyCh chan []byte
}

// New returns a Transport bound to addr. Connect must be called before use.
func New(addr ble.Addr) *Transport {
	return &Transport{addr: addr, notifyCh: make(chan []byte, 64)}
}

func toBLEUUID(u uuid.UUID) ble.UUID {
	return ble.UUID(reverse(u.Bytes()))
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}

// Connect dials the peripheral and discovers the iFit service and its two
// characteristics.
func (t *Transport) Connect(ctx context.Context) error {
	client, err := ble.Dial(ctx, t.addr)
	if err != nil {
		return fmt.Errorf("bletransport: dial: %w", err)
	}
	t.client = client

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		return fmt.Errorf("bletransport: discover profile: %w", err)
	}

	serviceUUID := toBLEUUID(ifitServiceUUID)
	rxUUID := toBLEUUID(ifitRXUUID)
	txUUID := toBLEUUID(ifitTXUUID)

	for _, s := range profile.Services {
		if !s.UUID.Equal(serviceUUID) {
			continue
		}
		for _, c := range s.Characteristics {
			switch {
			case c.UUID.Equal(rxUUID):
				t.rx = c
			case c.UUID.Equal(txUUID):
				t.tx = c
			}
		}
	}
	if t.rx == nil || t.tx == nil {
		return fmt.Errorf("bletransport: iFit service %s not found on %s", serviceUUID, t.addr)
	}
	return nil
}

// Subscribe registers for TX characteristic notifications and forwards each
// one onto the channel returned by Notifications, preserving delivery order.
func (t *Transport) Subscribe(ctx context.Context) error {
	return t.client.Subscribe(t.tx, false, func(req []byte) {
		cp := append([]byte(nil), req...)
		t.notifyCh <- cp
	})
}

// WriteChunk writes one chunk to the RX characteristic with response, so the
// next chunk is not sent until this one completes -- the ordering guarantee
// SPEC_FULL.md §5 requires between successive writes of one request.
func (t *Transport) WriteChunk(ctx context.Context, chunk []byte) error {
	return t.client.WriteCharacteristic(t.rx, chunk, false)
}

// Notifications returns the channel of raw TX notification payloads.
// Disconnect does not close this channel.
func (t *Transport) Notifications() <-chan []byte { return t.notifyCh }

// Disconnect cancels the BLE connection.
func (t *Transport) Disconnect() error {
	if t.client == nil {
		return nil
	}
	return t.client.CancelConnection()
}
