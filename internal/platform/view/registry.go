package view

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Mounted is a screen held by the Registry.
type Mounted interface {
	Unmount()
}

type session struct {
	screens  map[string]Mounted
	lastSeen time.Time
}

// Registry holds the mounted screens of every browser session. Sessions idle
// for longer than the TTL are unmounted by Sweep.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session
	ttl      time.Duration
	now      func() time.Time
	logger   zerolog.Logger
}

// NewRegistry creates a Registry. A zero ttl keeps sessions until dropped.
func NewRegistry(ttl time.Duration, logger zerolog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		ttl:      ttl,
		now:      time.Now,
		logger:   logger,
	}
}

// Mount returns the session's screen called name, creating it with create on
// first use.
func Mount[S Mounted](r *Registry, sessionID, name string, create func() S) (S, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		sess = &session{screens: make(map[string]Mounted)}
		r.sessions[sessionID] = sess
	}
	sess.lastSeen = r.now()

	if m, ok := sess.screens[name]; ok {
		s, ok := m.(S)
		if !ok {
			var zero S
			return zero, fmt.Errorf("screen %s is mounted as %T", name, m)
		}
		return s, nil
	}
	s := create()
	sess.screens[name] = s
	return s, nil
}

// Lookup returns the session's screen called name if mounted.
func (r *Registry) Lookup(sessionID, name string) (Mounted, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}
	m, ok := sess.screens[name]
	return m, ok
}

// Unmount drops one screen of a session. It reports whether it was mounted.
func (r *Registry) Unmount(sessionID, name string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[sessionID]
	var m Mounted
	if ok {
		m, ok = sess.screens[name]
		delete(sess.screens, name)
		if len(sess.screens) == 0 {
			delete(r.sessions, sessionID)
		}
	}
	r.mu.Unlock()
	if ok {
		m.Unmount()
	}
	return ok
}

// Sweep unmounts the screens of sessions idle longer than the TTL and returns
// how many sessions were dropped.
func (r *Registry) Sweep() int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.Lock()
	now := r.now()
	var idle []Mounted
	dropped := 0
	for id, sess := range r.sessions {
		if now.Sub(sess.lastSeen) <= r.ttl {
			continue
		}
		for _, m := range sess.screens {
			idle = append(idle, m)
		}
		delete(r.sessions, id)
		dropped++
	}
	r.mu.Unlock()

	for _, m := range idle {
		m.Unmount()
	}
	return dropped
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Info().Int("sessions", n).Msg("unmounted idle sessions")
			}
		}
	}
}

// Sessions returns the number of sessions with mounted screens.
func (r *Registry) Sessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
