package session

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ianchi/ifit"
)

// Monitor composes repeated read-only write_and_read calls into a stream: it
// issues write_and_read(nil, reads) every MonitorInterval until ctx is
// canceled or a non-recoverable error occurs, emitting one map per tick and
// closing the returned channel on exit (SPEC_FULL.md's C5 monitor addition).
// It introduces no wire behavior beyond write_and_read itself.
func (s *Session) Monitor(ctx context.Context, reads []byte) (<-chan map[byte]ifit.Value, error) {
	if !s.atLeast(Connected) {
		return nil, s.notConnected(Connected)
	}

	out := make(chan map[byte]ifit.Value)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(out)

		ticker := time.NewTicker(s.timeouts.MonitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case <-ticker.C:
				values, err := s.WriteAndRead(gctx, nil, reads)
				if err != nil {
					if isRecoverable(err) {
						log.Warningf("monitor: recoverable error, continuing: %s", err)
						continue
					}
					return err
				}
				select {
				case out <- values:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		}
	})

	go func() {
		if err := g.Wait(); err != nil {
			log.Debugf("monitor: loop exited: %s", err)
		}
	}()

	return out, nil
}

// isRecoverable reports whether err leaves the session usable for a retry on
// the next monitor tick, per SPEC_FULL.md §7's state-transition policy.
func isRecoverable(err error) bool {
	switch err.(type) {
	case *ifit.TransportError, *ifit.TransportLost:
		return false
	default:
		return true
	}
}
