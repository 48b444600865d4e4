package memory

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// SessionLockRegistry serializes appends per chat session so concurrent
// turns for the same session cannot be assigned colliding or out-of-order
// timestamps. Locks for idle sessions expire and are recreated on demand.
type SessionLockRegistry struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewSessionLockRegistry() *SessionLockRegistry {
	// Create a cache with a default expiration time of 1 hour, and which
	// purges expired items every 10 minutes
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &SessionLockRegistry{
		cache: c,
	}
}

type sessionLock struct {
	mu sync.Mutex

	// lastAppend is the timestamp handed out by the previous append,
	// guarded by mu.
	lastAppend time.Time
}

func (r *SessionLockRegistry) get(sessionID string) *sessionLock {
	r.mu.Lock()
	defer r.mu.Unlock()

	if x, found := r.cache.Get(sessionID); found {
		// Refresh the TTL so an active session never loses its lock.
		r.cache.Set(sessionID, x, cache.DefaultExpiration)
		return x.(*sessionLock)
	}
	l := &sessionLock{}
	r.cache.Set(sessionID, l, cache.DefaultExpiration)
	return l
}

// WithAppend runs fn while holding the session's append lock. fn receives a
// timestamp strictly after every timestamp handed to earlier appends of the
// same session, which keeps the per-session timeline totally ordered.
func (r *SessionLockRegistry) WithAppend(sessionID string, fn func(now time.Time) error) error {
	l := r.get(sessionID)
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if !now.After(l.lastAppend) {
		now = l.lastAppend.Add(time.Microsecond)
	}
	l.lastAppend = now

	return fn(now)
}

func (r *SessionLockRegistry) Delete(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Delete(sessionID)
}
