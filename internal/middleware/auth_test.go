package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubValidator struct {
	tokens map[string]uuid.UUID
	err    error
}

func (s stubValidator) Validate(_ context.Context, token string) (uuid.UUID, error) {
	if s.err != nil {
		return uuid.Nil, s.err
	}
	id, ok := s.tokens[token]
	if !ok {
		return uuid.Nil, domainErrors.ErrUnauthorized
	}
	return id, nil
}

func TestRequireAuth(t *testing.T) {
	owner := uuid.New()
	validator := stubValidator{tokens: map[string]uuid.UUID{"good-token": owner}}

	tests := []struct {
		name       string
		header     string
		validator  TokenValidator
		wantStatus int
		wantCode   string
	}{
		{"valid token", "Bearer good-token", validator, http.StatusOK, ""},
		{"lower-case scheme", "bearer good-token", validator, http.StatusOK, ""},
		{"missing header", "", validator, http.StatusUnauthorized, "unauthorized"},
		{"wrong scheme", "Basic good-token", validator, http.StatusUnauthorized, "unauthorized"},
		{"empty token", "Bearer ", validator, http.StatusUnauthorized, "unauthorized"},
		{"unknown token", "Bearer other", validator, http.StatusUnauthorized, "unauthorized"},
		{
			"store down",
			"Bearer good-token",
			stubValidator{err: errors.New("dial tcp: connection refused")},
			http.StatusServiceUnavailable,
			"service_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotID uuid.UUID
			var gotToken string
			handler := RequireAuth(tt.validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotID, _ = AccountID(r.Context())
				gotToken, _ = SessionToken(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, owner, gotID)
				assert.Equal(t, "good-token", gotToken)
				return
			}
			assert.Contains(t, w.Body.String(), `"code":"`+tt.wantCode+`"`)
			assert.Equal(t, uuid.Nil, gotID)
		})
	}
}

func TestRequireAuth_ChallengeHeader(t *testing.T) {
	handler := RequireAuth(stubValidator{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Bearer realm="wallet"`, w.Header().Get("WWW-Authenticate"))
}

func TestAccountID_Missing(t *testing.T) {
	_, ok := AccountID(context.Background())
	assert.False(t, ok)

	id := uuid.New()
	got, ok := AccountID(WithAccountID(context.Background(), id))
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
