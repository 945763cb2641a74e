package platform

import (
	"errors"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/newsroom-scraper/internal/config"
	"github.com/xkilldash9x/newsroom-scraper/internal/registry"
)

// Sessions stores authenticated clients under opaque ids. Evicted and expired clients are
// closed exactly once.
type Sessions[C io.Closer] struct {
	reg *registry.Registry[C]
}

// NewSessions builds a store bounded by cfg.SessionTTL and cfg.MaxSessions. clock may be nil.
func NewSessions[C io.Closer](cfg config.PlatformConfig, clock registry.Clock, logger *zap.Logger) *Sessions[C] {
	return &Sessions[C]{reg: registry.New(registry.Options[C]{
		TTL:      cfg.SessionTTL,
		Capacity: cfg.MaxSessions,
		Clock:    clock,
		Logger:   logger,
		Release: func(id string, c C) {
			if err := c.Close(); err != nil {
				logger.Debug("Closing platform client failed.", zap.String("session_id", id), zap.Error(err))
			}
		},
	})}
}

// Open stores c and returns its new session id.
func (s *Sessions[C]) Open(c C) string {
	s.reg.Sweep()
	id := uuid.NewString()
	s.reg.Put(id, c)
	return id
}

// Get returns the client for id, or ErrSessionNotFound / ErrSessionExpired.
func (s *Sessions[C]) Get(id string) (C, error) {
	c, err := s.reg.Get(id)
	switch {
	case errors.Is(err, registry.ErrNotFound):
		return c, ErrSessionNotFound
	case errors.Is(err, registry.ErrExpired):
		return c, ErrSessionExpired
	}
	return c, err
}

// Close drops and closes the session. Unknown ids are ignored.
func (s *Sessions[C]) Close(id string) { s.reg.Remove(id) }

// Len reports the number of live sessions.
func (s *Sessions[C]) Len() int { return s.reg.Len() }

// Shutdown closes every session.
func (s *Sessions[C]) Shutdown() { s.reg.Clear() }
