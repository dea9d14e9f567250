package memory

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/cassiomorais/wallet/internal/domain/session"
	"github.com/google/uuid"
)

const minSweepSize = 1024

// SessionStore keeps sessions in a map. Sessions past their expiry are
// dropped in one pass whenever the map doubles since the last pass.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session.Session
	sweepAt  int
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uuid.UUID]*session.Session),
		sweepAt:  minSweepSize,
		now:      time.Now,
	}
}

func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) >= s.sweepAt {
		s.sweep()
	}
	cp := *sess
	s.sessions[sess.ID] = &cp
	return nil
}

// sweep must be called with mu held.
func (s *SessionStore) sweep() {
	now := s.now()
	for id, existing := range s.sessions {
		if !now.Before(existing.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
	s.sweepAt = max(minSweepSize, 2*len(s.sessions))
}

// Len reports how many sessions are held, expired ones included.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domainErrors.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (s *SessionStore) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Revoke(at)
	}
	return nil
}

func (s *SessionStore) Ping(context.Context) error {
	return nil
}
