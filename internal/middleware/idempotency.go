package middleware

import (
	"context"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const IdempotencyHeader = "Idempotency-Key"

const idempotencyKey contextKey = "idempotency_key"

// Idempotency puts the request's idempotency key in the context. Clients
// that send no Idempotency-Key header get a nonce scoped to this request, so
// only an explicit key makes a retried request collapse onto its first commit.
func Idempotency() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyHeader)
			if key != "" {
				w.Header().Set(IdempotencyHeader, key)
			} else {
				key = requestNonce(r.Context())
			}
			ctx := context.WithValue(r.Context(), idempotencyKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestNonce(ctx context.Context) string {
	// chi request ids are "<host>/<prefix>-<seq>"; unique per process only,
	// so a uuid suffix keeps nonces from repeating across restarts
	nonce := "req-" + uuid.NewString()
	if reqID := chimw.GetReqID(ctx); reqID != "" {
		nonce = "req-" + reqID + "-" + uuid.NewString()[:8]
	}
	if len(nonce) > 128 {
		nonce = nonce[:128]
	}
	return nonce
}

// IdempotencyKey returns the key set by Idempotency.
func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKey).(string)
	return key
}
