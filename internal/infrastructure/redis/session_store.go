package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/cassiomorais/wallet/internal/domain/session"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const DefaultSessionPrefix = "wallet:session:"

// HSETNX on a missing key would recreate it without a TTL, so revoke checks
// existence in the same script.
var revokeSessionScript = redis.NewScript(`
	if redis.call("exists", KEYS[1]) == 1 then
		return redis.call("hsetnx", KEYS[1], "revoked_at", ARGV[1])
	else
		return 0
	end
`)

// SessionStore keeps each session in a hash that expires with the session.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

func NewSessionStore(client redis.UniversalClient, prefix string) *SessionStore {
	if prefix == "" {
		prefix = DefaultSessionPrefix
	}
	return &SessionStore{client: client, prefix: prefix}
}

func (s *SessionStore) key(id uuid.UUID) string {
	return s.prefix + id.String()
}

func (s *SessionStore) Save(ctx context.Context, sess *session.Session) error {
	key := s.key(sess.ID)
	fields := map[string]any{
		"account_id": sess.AccountID.String(),
		"issued_at":  sess.IssuedAt.UTC().Format(time.RFC3339Nano),
		"expires_at": sess.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	if sess.RevokedAt != nil {
		fields["revoked_at"] = sess.RevokedAt.UTC().Format(time.RFC3339Nano)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.ExpireAt(ctx, key, sess.ExpiresAt)
		return nil
	})
	if err != nil {
		return unavailable("save session", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id uuid.UUID) (*session.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, unavailable("get session", err)
	}
	if len(fields) == 0 {
		return nil, domainErrors.ErrSessionNotFound
	}
	return decodeSession(id, fields)
}

// Revoke is a no-op for sessions that are unknown or already evicted.
func (s *SessionStore) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := revokeSessionScript.Run(ctx, s.client, []string{s.key(id)}, at.UTC().Format(time.RFC3339Nano)).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable("revoke session", err)
	}
	return nil
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeSession(id uuid.UUID, fields map[string]string) (*session.Session, error) {
	accountID, err := uuid.Parse(fields["account_id"])
	if err != nil {
		return nil, fmt.Errorf("decode session %s: account_id: %w", id, err)
	}
	issuedAt, err := time.Parse(time.RFC3339Nano, fields["issued_at"])
	if err != nil {
		return nil, fmt.Errorf("decode session %s: issued_at: %w", id, err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, fields["expires_at"])
	if err != nil {
		return nil, fmt.Errorf("decode session %s: expires_at: %w", id, err)
	}

	sess := &session.Session{
		ID:        id,
		AccountID: accountID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	if raw, ok := fields["revoked_at"]; ok {
		revokedAt, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("decode session %s: revoked_at: %w", id, err)
		}
		sess.RevokedAt = &revokedAt
	}
	return sess, nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domainErrors.ErrServiceUnavailable, err)
}
