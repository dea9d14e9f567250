package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/wallet/internal/domain/account"
	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/cassiomorais/wallet/internal/domain/session"
	"github.com/cassiomorais/wallet/internal/infrastructure/observability"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type AuthConfig struct {
	Secret     []byte
	Issuer     string
	SessionTTL time.Duration
}

// AuthService verifies credentials and owns the session lifecycle. Tokens
// are HS256 JWTs whose jti is the session id; a token is only valid while
// its session record is active.
type AuthService struct {
	accountRepo account.Repository
	sessions    session.Store
	hasher      PasswordHasher
	cfg         AuthConfig
	now         func() time.Time
	logger      zerolog.Logger
	metrics     *observability.Metrics

	// compared against when the identifier is unknown so both failure
	// paths cost one hash comparison
	dummyHash string
}

func NewAuthService(
	accountRepo account.Repository,
	sessions session.Store,
	hasher PasswordHasher,
	cfg AuthConfig,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) (*AuthService, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("auth: empty signing secret")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		return nil, err
	}
	return &AuthService{
		accountRepo: accountRepo,
		sessions:    sessions,
		hasher:      hasher,
		cfg:         cfg,
		now:         time.Now,
		logger:      observability.Component(logger, "auth"),
		metrics:     metrics,
		dummyHash:   dummy,
	}, nil
}

// Login checks the identifier and password. Every credential failure is
// the same ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*IssuedSession, error) {
	acct, err := s.authenticate(ctx, identifier, password)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUnauthorized) {
			s.metrics.AuthAttempt("login", "rejected")
		} else {
			s.metrics.AuthAttempt("login", "error")
		}
		return nil, err
	}
	s.metrics.AuthAttempt("login", "accepted")
	return s.Issue(ctx, acct)
}

func (s *AuthService) authenticate(ctx context.Context, identifier, password string) (*account.Account, error) {
	kind, value, err := account.ParseIdentifier(identifier)
	if err != nil {
		_ = s.hasher.Compare(s.dummyHash, password)
		return nil, domainErrors.ErrUnauthorized
	}

	var acct *account.Account
	if kind == account.IdentifierEmail {
		acct, err = s.accountRepo.GetByEmail(ctx, value)
	} else {
		acct, err = s.accountRepo.GetByNationalID(ctx, value)
	}
	if errors.Is(err, domainErrors.ErrAccountNotFound) {
		_ = s.hasher.Compare(s.dummyHash, password)
		return nil, domainErrors.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	if err := s.hasher.Compare(acct.PasswordHash, password); err != nil {
		if errors.Is(err, domainErrors.ErrUnauthorized) {
			return nil, domainErrors.ErrUnauthorized
		}
		return nil, err
	}
	return acct, nil
}

// Issue opens a new session for acct and signs its token.
func (s *AuthService) Issue(ctx context.Context, acct *account.Account) (*IssuedSession, error) {
	sess := session.New(acct.ID, s.now(), s.cfg.SessionTTL)
	token, err := s.sign(sess)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	s.logger.Debug().
		Str("account_id", acct.ID.String()).
		Str("session_id", sess.ID.String()).
		Time("expires_at", sess.ExpiresAt).
		Msg("Session issued")

	return &IssuedSession{Token: token, Session: sess, Account: acct}, nil
}

func (s *AuthService) sign(sess *session.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        sess.ID.String(),
		Subject:   sess.AccountID.String(),
		Issuer:    s.cfg.Issuer,
		IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Validate resolves a bearer token to its account. Unknown, expired and
// revoked tokens all yield ErrUnauthorized.
func (s *AuthService) Validate(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := s.parse(token, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
	if err != nil {
		return uuid.Nil, domainErrors.ErrUnauthorized
	}
	sessionID, accountID, err := claimIDs(claims)
	if err != nil {
		return uuid.Nil, domainErrors.ErrUnauthorized
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if errors.Is(err, domainErrors.ErrSessionNotFound) {
		return uuid.Nil, domainErrors.ErrUnauthorized
	}
	if err != nil {
		return uuid.Nil, err
	}
	if sess.AccountID != accountID || sess.State(s.now()) != session.StateActive {
		return uuid.Nil, domainErrors.ErrUnauthorized
	}
	return accountID, nil
}

// Revoke ends the token's session. Unknown, malformed, expired or already
// revoked tokens are a no-op.
func (s *AuthService) Revoke(ctx context.Context, token string) error {
	claims, err := s.parse(token, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil
	}
	sessionID, _, err := claimIDs(claims)
	if err != nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sessionID, s.now()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	s.metrics.AuthAttempt("logout", "accepted")
	return nil
}

func (s *AuthService) parse(token string, opts ...jwt.ParserOption) (*jwt.RegisteredClaims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

func claimIDs(claims *jwt.RegisteredClaims) (sessionID, accountID uuid.UUID, err error) {
	sessionID, err = uuid.Parse(claims.ID)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	accountID, err = uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return sessionID, accountID, nil
}
