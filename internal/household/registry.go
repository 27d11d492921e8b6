package household

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
)

// ErrUnknownSession is returned for a session ID that was never issued,
// has expired, has been evicted, or belongs to another principal.
var ErrUnknownSession = errors.New("unknown or expired session")

type registryEntry struct {
	session *Session
	expires time.Time
}

// Registry keeps open sessions addressable by an opaque ID between RPCs.
// It is bounded: the least recently used session is closed and dropped
// when the registry is full. Sessions also expire after a fixed TTL.
type Registry struct {
	cache *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewRegistry creates a registry holding at most size sessions for at
// most ttl each.
func NewRegistry(size int, ttl time.Duration, now func() time.Time) (*Registry, error) {
	if now == nil {
		now = time.Now
	}
	cache, err := lru.NewWithEvict(size, func(_, value interface{}) {
		value.(*registryEntry).session.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session registry: %w", err)
	}
	return &Registry{cache: cache, ttl: ttl, now: now}, nil
}

// Add registers s and returns its session ID.
func (r *Registry) Add(s *Session) string {
	id := uuid.New().String()
	r.cache.Add(id, &registryEntry{session: s, expires: r.now().Add(r.ttl)})
	return id
}

// Get returns the session registered under id for principalID.
func (r *Registry) Get(id, principalID string) (*Session, error) {
	value, ok := r.cache.Get(id)
	if !ok {
		return nil, ErrUnknownSession
	}
	entry := value.(*registryEntry)
	if !r.now().Before(entry.expires) || entry.session.Closed() {
		r.cache.Remove(id)
		return nil, ErrUnknownSession
	}
	if entry.session.PrincipalID() != principalID {
		return nil, ErrUnknownSession
	}
	return entry.session, nil
}

// Remove closes and drops the session registered under id, if it belongs
// to principalID.
func (r *Registry) Remove(id, principalID string) error {
	value, ok := r.cache.Peek(id)
	if !ok {
		return ErrUnknownSession
	}
	if value.(*registryEntry).session.PrincipalID() != principalID {
		return ErrUnknownSession
	}
	r.cache.Remove(id)
	return nil
}

// CloseFor closes and drops every session principalID holds on
// householdID, returning how many it removed.
func (r *Registry) CloseFor(householdID, principalID string) int {
	removed := 0
	for _, key := range r.cache.Keys() {
		value, ok := r.cache.Peek(key)
		if !ok {
			continue
		}
		s := value.(*registryEntry).session
		if s.HouseholdID() != householdID || s.PrincipalID() != principalID {
			continue
		}
		r.cache.Remove(key)
		removed++
	}
	return removed
}

// Sweep closes and drops expired sessions, returning how many it removed.
func (r *Registry) Sweep() int {
	now := r.now()
	removed := 0
	for _, key := range r.cache.Keys() {
		value, ok := r.cache.Peek(key)
		if !ok {
			continue
		}
		entry := value.(*registryEntry)
		if now.Before(entry.expires) && !entry.session.Closed() {
			continue
		}
		r.cache.Remove(key)
		removed++
	}
	return removed
}

// Len returns the number of registered sessions, expired ones included
// until the next Get or Sweep touches them.
func (r *Registry) Len() int {
	return r.cache.Len()
}

// Close closes every registered session.
func (r *Registry) Close() {
	r.cache.Purge()
}
