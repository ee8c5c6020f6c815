package session

import (
	"context"
	"io/fs"
	"sync"
	"time"

	"shaderworkshop/broadcast"
	"shaderworkshop/watch"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/serr"
)

// Registry owns the live sessions of a server, keyed by client-chosen id.
type Registry struct {
	fsys  fs.FS
	bcast *broadcast.Broadcaster[watch.Event]
	rec   Recorder // optional

	mu       sync.Mutex
	sessions map[string]*Session
	wg       sync.WaitGroup
}

func NewRegistry(fsys fs.FS, bcast *broadcast.Broadcaster[watch.Event], rec Recorder) *Registry {
	return &Registry{
		fsys:     fsys,
		bcast:    bcast,
		rec:      rec,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session for id pushing to out. An existing session with the
// same id (a reconnecting client) is displaced and closed.
func (r *Registry) Open(id string, out Sender) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:      id,
		reactor: NewReactor(r.fsys, out),
		inbox:   make(chan []byte, 16),
		queue:   broadcast.NewQueue[watch.Event](),
		bcast:   r.bcast,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.reactor.observe = func(kind, shader string) { r.record(id, kind, shader) }
	s.Touch()

	// subscribe before the initial listing so no change slips in between
	r.bcast.Subscribe(s.queue)

	r.mu.Lock()
	prev := r.sessions[id]
	r.sessions[id] = s
	r.wg.Add(1)
	r.mu.Unlock()

	r.record(id, "open", "")
	logger.Info("Session opened", "session", id, "subscribers", r.bcast.Len())

	go func() {
		defer r.wg.Done()
		if err := s.run(ctx); err != nil {
			logger.LogErr(err, "session ended with error", "session", id)
		}
		r.forget(s)
		r.record(id, "close", "")
		logger.Info("Session closed", "session", id)
	}()

	if prev != nil {
		logger.Debug("Session replaced by reconnect", "session", id)
		prev.Close()
	}
	return s
}

// Get returns the live session for id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Deliver routes an inbound client message to session id.
func (r *Registry) Deliver(id string, raw []byte) error {
	s, ok := r.Get(id)
	if !ok {
		return serr.F("session %q not found", id)
	}
	return s.Deliver(raw)
}

// Touch marks session id as alive.
func (r *Registry) Touch(id string) error {
	s, ok := r.Get(id)
	if !ok {
		return serr.F("session %q not found", id)
	}
	s.Touch()
	return nil
}

// Close ends session id and waits for it to unsubscribe. Reports whether it existed.
func (r *Registry) Close(id string) bool {
	s, ok := r.Get(id)
	if !ok {
		return false
	}
	s.Close()
	r.forget(s)
	return true
}

// CloseIdle ends every session without client activity for longer than maxIdle.
func (r *Registry) CloseIdle(maxIdle time.Duration) int {
	r.mu.Lock()
	var stale []*Session
	for _, s := range r.sessions {
		if s.Idle() > maxIdle {
			stale = append(stale, s)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		logger.Info("Closing idle session", "session", s.ID, "idle", s.Idle().String())
		s.Close()
		r.forget(s)
	}
	return len(stale)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run reaps idle sessions every interval until ctx is done, then closes all sessions.
func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer r.Shutdown()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.CloseIdle(maxIdle); n > 0 {
				logger.F("Reaped %d idle sessions, %d remaining", n, r.Len())
			}
		}
	}
}

// Shutdown closes every session and waits for their tasks.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.mu.Unlock()

	for _, s := range all {
		s.Close()
		r.forget(s)
	}
	r.wg.Wait()
}

// forget removes s from the registry unless id was already taken over by a newer session.
func (r *Registry) forget(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[s.ID]; ok && cur == s {
		delete(r.sessions, s.ID)
	}
}

func (r *Registry) record(id, kind, shader string) {
	if r.rec == nil {
		return
	}
	if err := r.rec.RecordSessionEvent(id, kind, shader); err != nil {
		logger.LogErr(err, "failed to record session event", "session", id, "kind", kind)
	}
}
