package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"shaderworkshop/broadcast"
	"shaderworkshop/watch"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

var ErrSessionClosed = errors.New("session closed")

// Recorder persists session transitions. Implementations must be safe for concurrent use.
type Recorder interface {
	RecordSessionEvent(sessionID, kind, shader string) error
}

// Session is one live client: a reactor plus its private event queue and inbox.
type Session struct {
	ID string

	reactor *Reactor
	inbox   chan []byte
	queue   *broadcast.Queue[watch.Event]
	bcast   *broadcast.Broadcaster[watch.Event]

	lastSeen atomic.Int64 // unix nanos of the last inbound message
	cancel   context.CancelFunc
	done     chan struct{}
	leave    sync.Once
}

// Deliver hands an inbound client message to the session.
func (s *Session) Deliver(raw []byte) error {
	s.Touch()
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.inbox <- raw:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// Touch records client activity.
func (s *Session) Touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

// Idle returns the time since the last client activity.
func (s *Session) Idle() time.Duration {
	return time.Since(time.Unix(0, s.lastSeen.Load()))
}

// Done is closed once the session task has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close cancels the session and waits for its task to exit.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

// unsubscribe leaves the broadcaster exactly once and discards undelivered events.
func (s *Session) unsubscribe() {
	s.leave.Do(func() {
		s.bcast.Unsubscribe(s.queue)
		s.queue.Close()
	})
}

// run services inbound messages and filesystem events, whichever arrives first,
// until ctx is cancelled or the client can no longer be reached.
func (s *Session) run(ctx context.Context) error {
	defer close(s.done)
	defer s.unsubscribe()

	if err := s.reactor.Refresh(); err != nil {
		return serr.Wrap(err, "failed to send initial shader list", "session", s.ID)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case raw := <-s.inbox:
			if err := s.reactor.HandleMessage(raw); err != nil {
				var pe *ProtocolError
				if errors.As(err, &pe) {
					logger.LogErr(err, "ignoring client message", "session", s.ID)
					continue
				}
				return err
			}

		case <-s.queue.Ready():
			for _, e := range s.queue.Drain() {
				if err := s.reactor.HandleEvent(e); err != nil {
					return serr.Wrap(err, "failed to push to client", "session", s.ID)
				}
			}
		}
	}
}
