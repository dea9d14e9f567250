package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// State is derived lazily from the clock; nothing evicts sessions in the
// background. A freshly issued session is Active.
type State string

const (
	StateActive  State = "active"
	StateExpired State = "expired"
	StateRevoked State = "revoked"
)

type Session struct {
	ID        uuid.UUID
	AccountID uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

func New(accountID uuid.UUID, now time.Time, ttl time.Duration) *Session {
	now = now.UTC().Truncate(time.Second)
	return &Session{
		ID:        uuid.New(),
		AccountID: accountID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func (s *Session) State(now time.Time) State {
	if s.RevokedAt != nil {
		return StateRevoked
	}
	if !now.Before(s.ExpiresAt) {
		return StateExpired
	}
	return StateActive
}

// Revoke marks the session revoked. Revoking twice keeps the first timestamp.
func (s *Session) Revoke(at time.Time) {
	if s.RevokedAt != nil {
		return
	}
	at = at.UTC()
	s.RevokedAt = &at
}

type Store interface {
	// Save persists a session until its expiry
	Save(ctx context.Context, s *Session) error

	// Get returns ErrSessionNotFound for unknown or evicted sessions
	Get(ctx context.Context, id uuid.UUID) (*Session, error)

	// Revoke is a no-op for unknown sessions
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
}
