// Package chat implements the conversation layer: session state, the
// question refiner, and the state machine that routes inbound messages.
package chat

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"

	"github.com/emsight-ai/emsight-engine/pkg/models"
)

// DefaultSessionTTL is how long an idle conversation survives before its
// state is evicted. Every access slides the window.
const DefaultSessionTTL = 2 * time.Hour

// SessionStore hands out sessions by id. Idle sessions expire after the
// configured TTL so the map stays bounded across process lifetime.
type SessionStore struct {
	cache  *ttlcache.Cache[string, *models.Session]
	logger *zap.Logger
}

// NewSessionStore creates a store with the given idle TTL. A zero ttl uses
// DefaultSessionTTL.
func NewSessionStore(ttl time.Duration, logger *zap.Logger) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	cache := ttlcache.New[string, *models.Session](
		ttlcache.WithTTL[string, *models.Session](ttl),
	)
	go cache.Start()

	return &SessionStore{
		cache:  cache,
		logger: logger.Named("sessions"),
	}
}

// GetOrCreate returns the session for id, creating it on first contact.
// Access extends the session's TTL.
func (s *SessionStore) GetOrCreate(id string) *models.Session {
	if item := s.cache.Get(id); item != nil {
		return item.Value()
	}
	session := models.NewSession(id)
	s.cache.Set(id, session, ttlcache.DefaultTTL)
	s.logger.Debug("session created", zap.String("session_id", id))
	return session
}

// Len reports the number of live sessions.
func (s *SessionStore) Len() int {
	return s.cache.Len()
}

// Stop halts the background eviction loop.
func (s *SessionStore) Stop() {
	s.cache.Stop()
}
