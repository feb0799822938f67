package scanner

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Registry tracks scan sessions opened over the API and drops idle ones.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	opts   Options
	ttl    time.Duration
	logger *slog.Logger
}

func NewRegistry(opts Options, ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		opts:     opts,
		ttl:      ttl,
		logger:   logger.With("component", "scan_registry"),
	}
}

func (r *Registry) Open() *Session {
	s := NewSession(r.opts, r.logger)

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.logger.Debug("scan session opened", "session_id", s.ID, "total", r.Count())
	return s
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *Registry) Close(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Run sweeps idle sessions until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	if r.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(r.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Sweep(now); n > 0 {
				r.logger.Info("dropped idle scan sessions", "count", n)
			}
		}
	}
}

// Sweep removes sessions unused since now-ttl and returns how many it removed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := now.Add(-r.ttl)
	removed := 0
	for id, s := range r.sessions {
		if s.LastUsed().Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
