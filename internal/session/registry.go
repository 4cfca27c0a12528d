package session

import (
	"context"
	"log"
	"sync"
	"time"
)

const DefaultSweepInterval = 10 * time.Minute

// Registry maps user identity to that user's session, creating one lazily on
// first contact. Its lock covers only the lookup-or-create step; handling a
// message happens on the session's own lock, so one user's slow completion
// call never blocks another user.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	llm      Completer
	idleTTL  time.Duration
}

// NewRegistry builds a registry. idleTTL of zero disables eviction: sessions
// then live for the process lifetime.
func NewRegistry(llm Completer, idleTTL time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		llm:      llm,
		idleTTL:  idleTTL,
	}
}

// GetOrCreate returns the user's session, constructing it with the default
// prompt on first contact. Subsequent calls for the same user return the
// same instance.
func (r *Registry) GetOrCreate(userID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if !ok {
		s = New(r.llm)
		r.sessions[userID] = s
	}
	return s
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// StartSweeper evicts sessions idle longer than the configured TTL. A no-op
// when eviction is disabled.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	if r.idleTTL <= 0 {
		return
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go r.sweepLoop(ctx, interval)
}

func (r *Registry) sweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.sweep(time.Now()); n > 0 {
				log.Printf("evicted %d idle session(s)", n)
			}
		}
	}
}

func (r *Registry) sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var evicted int
	for userID, s := range r.sessions {
		if s.idleSince(now) > r.idleTTL {
			delete(r.sessions, userID)
			evicted++
		}
	}
	return evicted
}
