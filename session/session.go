// Package session implements C5: request/response correlation, at-most-one
// RX write in flight, authentication, and the high-level operations built on
// top of the envelope/chunk/catalog/converter layers in the root ifit
// package. The owner-goroutine-plus-FIFO design follows the teacher's
// request/response correlation pattern (krd's ackedRequestIDs cache and its
// single dispatcher loop), adapted from a callback map to a one-shot reply
// channel per SPEC_FULL.md §5's threaded mapping of the source's cooperative
// scheduler.
package session

import (
	"context"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/op/go-logging"
	"golang.org/x/sync/semaphore"

	"github.com/ianchi/ifit"
	"github.com/ianchi/ifit/internal/obs"
	"github.com/ianchi/ifit/transport"
)

var log = logging.MustGetLogger("ifit.session")

const defaultCacheSize = 128

// requestJob is one outstanding request handed to the owner goroutine.
type requestJob struct {
	ctx      context.Context
	chunks   [][]byte
	expected ifit.Command
	replyCh  chan requestResult

	// doneCh closes when the owner goroutine has fully finished with this
	// job -- including draining any late chunks after a cancellation --
	// distinct from replyCh, which may fire earlier so a cancelled caller
	// doesn't wait out the drain itself.
	doneCh chan struct{}
}

type requestResult struct {
	envelope ifit.Envelope
	err      error
}

func (j *requestJob) reply(r requestResult) {
	select {
	case j.replyCh <- r:
	default:
	}
}

// Session owns one transport for the lifetime of a connection and serializes
// every request issued against it.
type Session struct {
	transport transport.Transport
	catalog   *ifit.Catalog
	equipment ifit.Equipment
	metrics   *obs.Metrics

	mu       sync.Mutex
	state    State
	timeouts ifit.Timeouts

	sem       *semaphore.Weighted
	jobs      chan *requestJob
	stopCh    chan struct{}
	stopOnce  sync.Once
	ownerDone chan struct{}

	cache *lru.Cache
}

// Option configures a Session constructed by New.
type Option func(*Session)

// WithCatalog overrides the characteristic catalog; defaults to ifit.DefaultCatalog.
func WithCatalog(c *ifit.Catalog) Option { return func(s *Session) { s.catalog = c } }

// WithEquipment overrides the Equipment value stamped on outgoing envelopes;
// defaults to ifit.EquipmentTreadmill.
func WithEquipment(e ifit.Equipment) Option { return func(s *Session) { s.equipment = e } }

// WithMetrics attaches a Prometheus collector; without it, metrics are a no-op.
func WithMetrics(m *obs.Metrics) Option { return func(s *Session) { s.metrics = m } }

// WithCacheSize overrides the recent-value cache capacity (default 128).
func WithCacheSize(n int) Option {
	return func(s *Session) {
		c, err := lru.New(n)
		if err != nil {
			return
		}
		s.cache = c
	}
}

// New returns a Disconnected Session bound to t. Call Connect before issuing
// any operation.
func New(t transport.Transport, timeouts ifit.Timeouts, opts ...Option) *Session {
	cache, _ := lru.New(defaultCacheSize)
	s := &Session{
		transport: t,
		catalog:   ifit.DefaultCatalog,
		equipment: ifit.EquipmentTreadmill,
		timeouts:  timeouts,
		sem:       semaphore.NewWeighted(1),
		jobs:      make(chan *requestJob),
		stopCh:    make(chan struct{}),
		ownerDone: make(chan struct{}),
		cache:     cache,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) atLeast(min State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state >= min
}

// Connect dials the transport, discovers the GATT characteristics, subscribes
// to notifications, and starts the owner goroutine. On failure the session
// stays Disconnected.
func (s *Session) Connect(ctx context.Context) error {
	s.setState(Connecting)

	connectCtx := ctx
	var cancel context.CancelFunc
	if s.timeouts.ConnectTimeout > 0 {
		connectCtx, cancel = context.WithTimeout(ctx, s.timeouts.ConnectTimeout)
		defer cancel()
	}

	if err := s.transport.Connect(connectCtx); err != nil {
		s.setState(Disconnected)
		return &ifit.TransportError{Cause: err}
	}
	if err := s.transport.Subscribe(connectCtx); err != nil {
		s.setState(Disconnected)
		return &ifit.TransportError{Cause: err}
	}

	s.setState(Connected)
	go s.run()
	return nil
}

// Disconnect tears down the transport and stops the owner goroutine,
// blocking until it has exited.
func (s *Session) Disconnect() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	err := s.transport.Disconnect()
	<-s.ownerDone
	s.setState(Disconnected)
	if err != nil {
		return &ifit.TransportError{Cause: err}
	}
	return nil
}

// run is the owner goroutine: it serializes RX writes and owns the single
// reassembly buffer, matching the single-writer discipline of SPEC_FULL.md §5.
func (s *Session) run() {
	defer close(s.ownerDone)
	reassembler := ifit.NewReassembler()
	for {
		select {
		case <-s.stopCh:
			return
		case job := <-s.jobs:
			s.serve(job, reassembler)
		}
	}
}

func (s *Session) serve(job *requestJob, reassembler *ifit.Reassembler) {
	defer close(job.doneCh)

	for _, chunk := range job.chunks {
		if err := s.transport.WriteChunk(job.ctx, chunk); err != nil {
			job.reply(requestResult{err: &ifit.TransportError{Cause: err}})
			s.afterError(&ifit.TransportError{Cause: err})
			return
		}
	}

	reassembler.Reset()
	timer := time.NewTimer(s.timeouts.ResponseTimeout)
	defer timer.Stop()

	delivered := false
	ctxDone := job.ctx.Done()
	for {
		select {
		case <-ctxDone:
			ctxDone = nil
			if !delivered {
				delivered = true
				job.reply(requestResult{err: &ifit.Cancelled{}})
			}

		case chunk, ok := <-s.transport.Notifications():
			if !ok {
				if !delivered {
					job.reply(requestResult{err: &ifit.TransportLost{}})
				}
				s.afterError(&ifit.TransportLost{})
				return
			}
			complete, done, reset, err := reassembler.Feed(chunk)
			if reset && s.metrics != nil {
				s.metrics.ChunkResets.Inc()
			}
			if err != nil {
				log.Debugf("session: reassembly failure for %s: %s", job.expected, err)
				if !delivered {
					delivered = true
					job.reply(requestResult{err: err})
				}
				return
			}
			if done {
				env, decErr := ifit.DecodeEnvelope(complete)
				if !delivered {
					delivered = true
					switch {
					case decErr != nil:
						if s.metrics != nil {
							if _, ok := decErr.(*ifit.BadChecksum); ok {
								s.metrics.ChecksumFailures.Inc()
							}
						}
						job.reply(requestResult{err: decErr})
					case env.Command != job.expected:
						job.reply(requestResult{err: &ifit.UnexpectedCommand{Got: env.Command, Expected: job.expected}})
					default:
						job.reply(requestResult{envelope: env})
					}
				}
				return
			}

		case <-timer.C:
			if !delivered {
				job.reply(requestResult{err: &ifit.Timeout{Command: job.expected}})
			}
			return
		}
	}
}

// afterError applies SPEC_FULL.md §7's state-transition policy: transport
// failures disconnect the session, every other error kind leaves it as is.
func (s *Session) afterError(err error) {
	switch err.(type) {
	case *ifit.TransportError, *ifit.TransportLost:
		log.Warningf("session: transport failure, disconnecting: %s", err)
		s.setState(Disconnected)
	}
}

// call sends one request envelope and waits for its matching response,
// enforcing the at-most-one-in-flight rule via sem and recording metrics.
func (s *Session) call(ctx context.Context, command, expected ifit.Command, payload []byte) (ifit.Envelope, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return ifit.Envelope{}, &ifit.Cancelled{}
	}

	envelope := ifit.Envelope{Equipment: s.equipment, Command: command, Payload: payload}
	encoded := ifit.EncodeEnvelope(envelope)
	chunks, err := ifit.ChunkEnvelope(encoded)
	if err != nil {
		s.sem.Release(1)
		return ifit.Envelope{}, err
	}

	replyCh := make(chan requestResult, 1)
	job := &requestJob{ctx: ctx, chunks: chunks, expected: expected, replyCh: replyCh, doneCh: make(chan struct{})}

	start := time.Now()
	select {
	case s.jobs <- job:
	case <-ctx.Done():
		s.sem.Release(1)
		return ifit.Envelope{}, &ifit.Cancelled{}
	case <-s.stopCh:
		s.sem.Release(1)
		return ifit.Envelope{}, &ifit.TransportLost{}
	}

	// The owner now owns job. A cancelled caller gets its reply as soon as
	// serve() sends one, but the slot stays held until the owner is fully
	// done with the job -- including draining any late chunks -- so the
	// next call() can't be dispatched to a still-busy owner. That wait runs
	// off the critical path, not in front of this caller's own return.
	go func() {
		<-job.doneCh
		s.sem.Release(1)
	}()

	result := <-replyCh
	s.recordMetrics(command, time.Since(start), result.err)
	if result.err != nil {
		s.afterError(result.err)
		return ifit.Envelope{}, result.err
	}
	return result.envelope, nil
}

func (s *Session) recordMetrics(command ifit.Command, elapsed time.Duration, err error) {
	if s.metrics == nil {
		return
	}
	label := command.String()
	if err == nil {
		s.metrics.RequestsTotal.WithLabelValues(label).Inc()
		s.metrics.RequestDuration.WithLabelValues(label).Observe(elapsed.Seconds())
	}
}

// notConnected builds an *ifit.NotConnected describing the state the caller
// needed versus the session's actual state at the time of the call.
func (s *Session) notConnected(required State) error {
	return &ifit.NotConnected{Required: required.String(), Actual: s.State().String()}
}
