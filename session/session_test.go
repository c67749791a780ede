package session_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.uber.org/goleak"

	"github.com/ianchi/ifit"
	"github.com/ianchi/ifit/internal/obs"
	"github.com/ianchi/ifit/session"
	"github.com/ianchi/ifit/transport/mocktransport"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	dm := &dto.Metric{}
	if err := c.Write(dm); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return dm.GetCounter().GetValue()
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testTimeouts() ifit.Timeouts {
	return ifit.Timeouts{
		ResponseTimeout: 2 * time.Second,
		ConnectTimeout:  2 * time.Second,
		MonitorInterval: 20 * time.Millisecond,
	}
}

// pushResponse chunks and pushes a single response envelope onto mt.
func pushResponse(t *testing.T, mt *mocktransport.Mock, command ifit.Command, payload []byte) {
	t.Helper()
	env := ifit.Envelope{Equipment: ifit.EquipmentTreadmill, Command: command, Payload: payload}
	chunks, err := ifit.ChunkEnvelope(ifit.EncodeEnvelope(env))
	if err != nil {
		t.Fatalf("ChunkEnvelope: %v", err)
	}
	for _, c := range chunks {
		mt.PushNotification(c)
	}
}

func connectAndEnable(t *testing.T, mt *mocktransport.Mock, s *session.Session, ctx context.Context) {
	t.Helper()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	pushResponse(t, mt, ifit.CommandEnable, []byte{0x02})
	var code [session.ActivationCodeSize]byte
	if err := s.Enable(ctx, code); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if s.State() != session.Authenticated {
		t.Fatalf("state after Enable = %s, want Authenticated", s.State())
	}
}

func TestConnectDisconnectLifecycle(t *testing.T) {
	mt := mocktransport.New()
	s := session.New(mt, testTimeouts())
	ctx := context.Background()

	if s.State() != session.Disconnected {
		t.Fatalf("initial state = %s, want Disconnected", s.State())
	}
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if s.State() != session.Connected {
		t.Fatalf("state after Connect = %s, want Connected", s.State())
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if s.State() != session.Disconnected {
		t.Fatalf("state after Disconnect = %s, want Disconnected", s.State())
	}
}

func TestEnableWrongCodeStaysConnected(t *testing.T) {
	mt := mocktransport.New()
	s := session.New(mt, testTimeouts())
	ctx := context.Background()

	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect()

	pushResponse(t, mt, ifit.CommandEnable, []byte{0x00})
	var code [session.ActivationCodeSize]byte
	err := s.Enable(ctx, code)
	if _, ok := err.(*ifit.AuthenticationFailed); !ok {
		t.Fatalf("Enable error = %v (%T), want *ifit.AuthenticationFailed", err, err)
	}
	if s.State() != session.Connected {
		t.Fatalf("state after failed Enable = %s, want Connected", s.State())
	}
}

func TestWriteAndReadS1SetKph(t *testing.T) {
	mt := mocktransport.New()
	s := session.New(mt, testTimeouts())
	ctx := context.Background()
	connectAndEnable(t, mt, s, ctx)
	defer s.Disconnect()

	pushResponse(t, mt, ifit.CommandWriteAndRead, nil)

	// Skip the chunks Enable already wrote; only this request's are checked.
	before := len(mt.Written())
	_, err := s.WriteAndRead(ctx, map[byte]ifit.Value{0: ifit.DoubleValue(10.0)}, nil)
	if err != nil {
		t.Fatalf("WriteAndRead: %v", err)
	}

	written := mt.Written()[before:]
	if len(written) != 2 {
		t.Fatalf("wrote %d chunks, want 2", len(written))
	}
	wantHeader := []byte{0xFE, 0x02, 0x0D, 0x02}
	wantPayload := []byte{0xFF, 0x0D, 0x02, 0x04, 0x02, 0x09, 0x04, 0x09, 0x02, 0x01, 0x01, 0x00, 0xE8, 0x03, 0x05}
	if string(written[0]) != string(wantHeader) {
		t.Errorf("header chunk = % x, want % x", written[0], wantHeader)
	}
	if string(written[1]) != string(wantPayload) {
		t.Errorf("payload chunk = % x, want % x", written[1], wantPayload)
	}
}

func TestWriteAndReadS2MultiRead(t *testing.T) {
	mt := mocktransport.New()
	s := session.New(mt, testTimeouts())
	ctx := context.Background()
	connectAndEnable(t, mt, s, ctx)
	defer s.Disconnect()

	responsePayload := []byte{0x40, 0xE2, 0x01, 0x00, 0x78, 0x50, 0x0A, 0x04, 0x2C, 0x01, 0x58, 0x02, 0x78, 0x00, 0x00, 0x00}
	pushResponse(t, mt, ifit.CommandWriteAndRead, responsePayload)

	reads := []byte{4, 10, 16, 17, 20}
	values, err := s.WriteAndRead(ctx, nil, reads)
	if err != nil {
		t.Fatalf("WriteAndRead: %v", err)
	}

	if got := values[4].UInt32(); got != 123456 {
		t.Errorf("id4 = %d, want 123456", got)
	}
	pulse := values[10].Pulse()
	if pulse.CurrentBPM != 120 || pulse.AverageBPM != 80 || pulse.SampleCount != 10 || pulse.Source != ifit.PulseSourceBLEHRM {
		t.Errorf("id10 = %+v, want {120 80 10 BLE_HRM}", pulse)
	}
	if got := values[16].Double(); got != 3.0 {
		t.Errorf("id16 = %v, want 3.0", got)
	}
	if got := values[17].Double(); got != 6.0 {
		t.Errorf("id17 = %v, want 6.0", got)
	}
	if got := values[20].UInt32(); got != 120 {
		t.Errorf("id20 = %d, want 120", got)
	}

	if v, ok := s.LastKnown(16); !ok || v.Double() != 3.0 {
		t.Errorf("LastKnown(16) = %v, %v, want 3.0, true", v, ok)
	}
}

func TestWriteAndReadRejectsNotWritable(t *testing.T) {
	mt := mocktransport.New()
	s := session.New(mt, testTimeouts())
	ctx := context.Background()
	connectAndEnable(t, mt, s, ctx)
	defer s.Disconnect()

	_, err := s.WriteAndRead(ctx, map[byte]ifit.Value{4: ifit.UInt32Value(1)}, nil)
	if _, ok := err.(*ifit.NotWritable); !ok {
		t.Fatalf("err = %v (%T), want *ifit.NotWritable", err, err)
	}
}

func TestWriteAndReadRejectsUnknownCharacteristic(t *testing.T) {
	mt := mocktransport.New()
	s := session.New(mt, testTimeouts())
	ctx := context.Background()
	connectAndEnable(t, mt, s, ctx)
	defer s.Disconnect()

	_, err := s.WriteAndRead(ctx, nil, []byte{200})
	if _, ok := err.(*ifit.UnknownCharacteristic); !ok {
		t.Fatalf("err = %v (%T), want *ifit.UnknownCharacteristic", err, err)
	}
}

func TestReadOnlyMonitoringPermittedWithoutAuthentication(t *testing.T) {
	mt := mocktransport.New()
	s := session.New(mt, testTimeouts())
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect()

	pushResponse(t, mt, ifit.CommandWriteAndRead, []byte{0x00, 0x00})
	_, err := s.WriteAndRead(ctx, nil, []byte{0})
	if err != nil {
		t.Fatalf("read-only WriteAndRead from Connected: %v", err)
	}
}

func TestWriteAndReadRequiresAuthenticationForWrites(t *testing.T) {
	mt := mocktransport.New()
	s := session.New(mt, testTimeouts())
	ctx := context.Background()
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect()

	_, err := s.WriteAndRead(ctx, map[byte]ifit.Value{0: ifit.DoubleValue(1)}, nil)
	if err == nil {
		t.Fatal("expected an error writing from Connected (not Authenticated)")
	}
}

func TestTimeout(t *testing.T) {
	mt := mocktransport.New()
	timeouts := testTimeouts()
	timeouts.ResponseTimeout = 30 * time.Millisecond
	s := session.New(mt, timeouts)
	ctx := context.Background()
	connectAndEnable(t, mt, s, ctx)
	defer s.Disconnect()

	// No response pushed: the session must time out rather than hang.
	_, err := s.WriteAndRead(ctx, nil, []byte{0})
	if _, ok := err.(*ifit.Timeout); !ok {
		t.Fatalf("err = %v (%T), want *ifit.Timeout", err, err)
	}
}

func TestMonitorEmitsUntilCancelled(t *testing.T) {
	mt := mocktransport.New()
	s := session.New(mt, testTimeouts())
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer s.Disconnect()

	// Queue enough responses for a few ticks.
	for i := 0; i < 3; i++ {
		pushResponse(t, mt, ifit.CommandWriteAndRead, []byte{0x00, 0x00})
	}

	ch, err := s.Monitor(ctx, []byte{0})
	if err != nil {
		t.Fatalf("Monitor: %v", err)
	}

	received := 0
	for received < 2 {
		select {
		case _, ok := <-ch:
			if !ok {
				t.Fatal("channel closed before two ticks observed")
			}
			received++
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for monitor tick")
		}
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for monitor channel to close")
		}
	}
}

// TestChunkResetMetricFiresOnMidStreamHeader asserts ifit_chunk_resets_total
// increments on the specific event it documents -- a header chunk arriving
// while a reassembly is already in progress -- and not on an unrelated
// framing error such as a short or out-of-order chunk.
func TestChunkResetMetricFiresOnMidStreamHeader(t *testing.T) {
	mt := mocktransport.New()
	metrics := obs.NewUnregisteredMetrics()
	s := session.New(mt, testTimeouts(), session.WithMetrics(metrics))
	ctx := context.Background()
	connectAndEnable(t, mt, s, ctx)
	defer s.Disconnect()

	// An abandoned request: a header claiming two payload chunks, followed
	// by only the first one.
	abandoned := ifit.Envelope{Equipment: ifit.EquipmentTreadmill, Command: ifit.CommandWriteAndRead, Payload: make([]byte, 30)}
	abandonedChunks, err := ifit.ChunkEnvelope(ifit.EncodeEnvelope(abandoned))
	if err != nil {
		t.Fatalf("ChunkEnvelope: %v", err)
	}
	if len(abandonedChunks) < 3 {
		t.Fatalf("expected an abandoned request with multiple payload chunks, got %d chunks", len(abandonedChunks))
	}
	mt.PushNotification(abandonedChunks[0])
	mt.PushNotification(abandonedChunks[1])

	if got := counterValue(t, metrics.ChunkResets); got != 0 {
		t.Fatalf("ChunkResets = %v before the reset header arrives, want 0", got)
	}

	// The real response: Kph (id 0) = 5.0, encoded per doubleConverter.
	pushResponse(t, mt, ifit.CommandWriteAndRead, []byte{0xF4, 0x01})
	values, err := s.WriteAndRead(ctx, nil, []byte{0})
	if err != nil {
		t.Fatalf("WriteAndRead: %v", err)
	}
	if got := values[0].Double(); got != 5.0 {
		t.Fatalf("id0 = %v, want 5.0", got)
	}

	if got := counterValue(t, metrics.ChunkResets); got != 1 {
		t.Fatalf("ChunkResets = %v after the mid-stream header, want 1", got)
	}

	// An unrelated framing error (a payload chunk with no preceding header,
	// since serve() resets the reassembler at the start of every request)
	// must not move ChunkResets.
	valid := ifit.Envelope{Equipment: ifit.EquipmentTreadmill, Command: ifit.CommandWriteAndRead, Payload: []byte{0xF4, 0x01}}
	validChunks, err := ifit.ChunkEnvelope(ifit.EncodeEnvelope(valid))
	if err != nil {
		t.Fatalf("ChunkEnvelope: %v", err)
	}
	mt.PushNotification(validChunks[1]) // a payload chunk with no header first: a framing error, not a reset
	if _, err := s.WriteAndRead(ctx, nil, []byte{0}); err == nil {
		t.Fatal("expected a framing error from the chunk arriving before any header")
	}
	if got := counterValue(t, metrics.ChunkResets); got != 1 {
		t.Fatalf("ChunkResets = %v after an unrelated framing error, want unchanged at 1", got)
	}
}
