package session

import (
	"context"
	"log"
	"sync"
	"time"

	"tabchat/ai"
	"tabchat/domain/core"
	"tabchat/internal/export"
)

// Registry owns every live session. Lookups expire sessions lazily, and a
// background sweeper reclaims idle ones so memory is bounded even when
// clients never come back.
type Registry struct {
	mu          sync.RWMutex
	sessions    map[core.SessionID]*Session
	timeout     time.Duration
	maxSessions int

	resolver    *ai.Resolver
	coordinator *export.Coordinator
}

// NewRegistry builds a registry that hands out sessions wired to the given
// resolver and export coordinator.
func NewRegistry(resolver *ai.Resolver, coordinator *export.Coordinator, timeout time.Duration, maxSessions int) *Registry {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	if maxSessions <= 0 {
		maxSessions = 100
	}
	return &Registry{
		sessions:    make(map[core.SessionID]*Session),
		timeout:     timeout,
		maxSessions: maxSessions,
		resolver:    resolver,
		coordinator: coordinator,
	}
}

// Create registers a new session. When the registry is at capacity the
// longest-idle session is evicted to make room.
func (r *Registry) Create() *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.sessions) >= r.maxSessions {
		r.evictOldestLocked()
	}

	s := NewSession(core.NewSessionID(), r.resolver, r.coordinator)
	r.sessions[s.ID()] = s
	log.Printf("[SessionRegistry] Created session %s (%d active)", s.ID(), len(r.sessions))
	return s
}

// Get returns the session and refreshes its activity timestamp. A session
// past its inactivity timeout is expired on access and reported as such; a
// later Create always yields a distinct id, never a resurrected session.
func (r *Registry) Get(id core.SessionID) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	if s.IsExpired(time.Now(), r.timeout) {
		r.expire(id, s)
		return nil, core.ErrSessionExpired
	}

	s.Touch()
	return s, nil
}

// Delete closes the session and removes it from the registry
func (r *Registry) Delete(id core.SessionID) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	if !ok {
		return core.ErrSessionNotFound
	}
	s.Close()
	log.Printf("[SessionRegistry] Deleted session %s", id)
	return nil
}

// Count returns the number of registered sessions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep expires and removes every session idle past the timeout. Returns
// how many sessions were reclaimed.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.IsExpired(now, r.timeout) {
			delete(r.sessions, id)
			stale = append(stale, s)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.MarkExpired()
	}
	if len(stale) > 0 {
		log.Printf("[SessionRegistry] Swept %d expired sessions", len(stale))
	}
	return len(stale)
}

// StartSweeper sweeps on a fixed interval until ctx is done
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				r.Sweep(now)
			}
		}
	}()
}

// CloseAll closes every session, for server shutdown
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		sessions = append(sessions, s)
		delete(r.sessions, id)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

func (r *Registry) expire(id core.SessionID, s *Session) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
	s.MarkExpired()
	log.Printf("[SessionRegistry] Session %s expired", id)
}

// evictOldestLocked must be called with r.mu held
func (r *Registry) evictOldestLocked() {
	var oldestID core.SessionID
	var oldest *Session
	var oldestActivity time.Time
	for id, s := range r.sessions {
		info := s.Summary()
		if oldest == nil || info.LastActivity.Before(oldestActivity) {
			oldestID, oldest, oldestActivity = id, s, info.LastActivity
		}
	}
	if oldest == nil {
		return
	}
	delete(r.sessions, oldestID)
	oldest.Close()
	log.Printf("[SessionRegistry] Evicted session %s to stay under the %d session cap", oldestID, r.maxSessions)
}
