package inbox

import (
	"context"
	"sync"
	"time"
)

const DefaultIdleTimeout = 30 * time.Minute

// Registry keeps one live session per signed-in user. Sessions nobody has
// asked for within the idle timeout are closed by Sweep.
type Registry struct {
	deps Deps
	idle time.Duration

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session  *Session
	lastUsed time.Time
}

type RegistryOption func(*Registry)

// WithIdleTimeout sets how long an unused session stays open. Zero keeps
// sessions until sign-out.
func WithIdleTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) { r.idle = d }
}

func NewRegistry(deps Deps, opts ...RegistryOption) *Registry {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	r := &Registry{deps: deps, idle: DefaultIdleTimeout, sessions: make(map[string]*entry)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Session returns the session for uid, opening its listeners on first use.
func (r *Registry) Session(ctx context.Context, uid string) (*Session, error) {
	if uid == "" {
		return nil, ErrNoIdentity
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.deps.Now()
	if e, ok := r.sessions[uid]; ok {
		e.lastUsed = now
		return e.session, nil
	}
	s := NewSession(r.deps)
	if err := s.SetupListeners(ctx, uid); err != nil {
		s.Close()
		return nil, err
	}
	r.sessions[uid] = &entry{session: s, lastUsed: now}
	return s, nil
}

// SignOut closes the session for uid, if any.
func (r *Registry) SignOut(uid string) {
	r.mu.Lock()
	e, ok := r.sessions[uid]
	delete(r.sessions, uid)
	r.mu.Unlock()
	if ok {
		e.session.Close()
	}
}

// Sweep closes every session idle for at least the idle timeout and returns
// how many it closed.
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	now := r.deps.Now()
	var idle []*Session
	r.mu.Lock()
	for uid, e := range r.sessions {
		if now.Sub(e.lastUsed) >= r.idle {
			idle = append(idle, e.session)
			delete(r.sessions, uid)
		}
	}
	r.mu.Unlock()
	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 && r.deps.Log != nil {
		r.deps.Log.Info("closed idle inbox sessions", "count", len(idle))
	}
	return len(idle)
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, every time.Duration) {
	if every <= 0 || r.idle <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()
	for _, e := range sessions {
		e.session.Close()
	}
}
