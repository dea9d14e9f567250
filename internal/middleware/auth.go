package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	accountIDKey contextKey = "account_id"
	tokenKey     contextKey = "session_token"
)

// TokenValidator resolves a bearer token to the account that owns its session.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (uuid.UUID, error)
}

func RequireAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, "missing or malformed bearer token", "unauthorized")
				return
			}

			accountID, err := validator.Validate(r.Context(), token)
			if err != nil {
				if errors.Is(err, domainErrors.ErrUnauthorized) {
					writeAuthError(w, http.StatusUnauthorized, "invalid or expired session", "unauthorized")
					return
				}
				log.Error().Err(err).Msg("Session validation failed")
				writeAuthError(w, http.StatusServiceUnavailable, "session store unavailable", "service_unavailable")
				return
			}

			trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("wallet.account_id", accountID.String()))

			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AccountID returns the authenticated caller set by RequireAuth.
func AccountID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountIDKey).(uuid.UUID)
	return id, ok
}

// SessionToken returns the raw bearer token the request authenticated with.
func SessionToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenKey).(string)
	return token, ok
}

// WithAccountID is used by handler tests that skip RequireAuth.
func WithAccountID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, accountIDKey, id)
}

func writeAuthError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer realm="wallet"`)
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  code,
	})
}
