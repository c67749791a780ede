// Package mocktransport is a deterministic transport.Transport test double,
// in the spirit of the teacher's transport_mock_response.go / transport_mock_pair.go
// fakes: it records what the session wrote and lets a test script exactly
// which notification chunks arrive and when.
package mocktransport

import (
	"context"
	"errors"
	"sync"
)

// Mock records every chunk written to the RX characteristic and replays a
// scripted sequence of TX notifications back to the session.
type Mock struct {
	mu sync.Mutex

	connected    bool
	subscribed   bool
	notifyCh     chan []byte
	written      [][]byte
	failNextConn error
	failNextSub  error
	failNextWrite error
}

// New returns a Mock with a buffered notification channel large enough for
// typical test scripts.
func New() *Mock {
	return &Mock{notifyCh: make(chan []byte, 64)}
}

func (m *Mock) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNextConn != nil {
		err := m.failNextConn
		m.failNextConn = nil
		return err
	}
	m.connected = true
	return nil
}

func (m *Mock) Subscribe(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return errors.New("mocktransport: subscribe before connect")
	}
	if m.failNextSub != nil {
		err := m.failNextSub
		m.failNextSub = nil
		return err
	}
	m.subscribed = true
	return nil
}

func (m *Mock) WriteChunk(ctx context.Context, chunk []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.subscribed {
		return errors.New("mocktransport: write before subscribe")
	}
	if m.failNextWrite != nil {
		err := m.failNextWrite
		m.failNextWrite = nil
		return err
	}
	cp := append([]byte(nil), chunk...)
	m.written = append(m.written, cp)
	return nil
}

func (m *Mock) Notifications() <-chan []byte { return m.notifyCh }

func (m *Mock) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.connected {
		close(m.notifyCh)
		m.connected = false
	}
	return nil
}

// PushNotification enqueues one raw TX notification chunk, as if the
// equipment had just written it. A push racing a Disconnect is dropped
// rather than panicking on a closed channel.
func (m *Mock) PushNotification(chunk []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return
	}
	m.notifyCh <- append([]byte(nil), chunk...)
}

// Written returns every chunk written to the RX characteristic so far, in
// order.
func (m *Mock) Written() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.written))
	copy(out, m.written)
	return out
}

// FailNextConnect arranges for the next Connect call to fail with err.
func (m *Mock) FailNextConnect(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextConn = err
}

// FailNextSubscribe arranges for the next Subscribe call to fail with err.
func (m *Mock) FailNextSubscribe(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextSub = err
}

// FailNextWrite arranges for the next WriteChunk call to fail with err.
func (m *Mock) FailNextWrite(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNextWrite = err
}
