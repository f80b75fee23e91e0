// Package middleware provides HTTP middlewares for authentication, CORS,
// request IDs and logging.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/commlog/internal/auth"
	"github.com/atinyakov/commlog/internal/models"
)

type ctxKey string

const (
	identityKey     ctxKey = "identity"
	identitySlotKey ctxKey = "identity_slot"
)

// identitySlot carries the identity resolved by BearerAuth back out to
// middlewares that wrap it, such as the request logger.
type identitySlot struct {
	id  models.Identity
	set bool
}

func withIdentitySlot(ctx context.Context) (context.Context, *identitySlot) {
	slot := &identitySlot{}
	return context.WithValue(ctx, identitySlotKey, slot), slot
}

// Authenticator resolves a bearer credential to an Identity.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (models.Identity, error)
}

// BearerAuth rejects requests without a valid bearer credential in the
// Authorization header. "Bearer <token>" and a bare token are both accepted.
// On success the Identity is stored in the request context.
func BearerAuth(a Authenticator, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			credential, err := auth.ParseBearer(r.Header.Get("Authorization"))
			if err != nil {
				unauthenticated(w)
				return
			}

			id, err := a.Authenticate(r.Context(), credential)
			if errors.Is(err, models.ErrUnauthenticated) {
				unauthenticated(w)
				return
			}
			if err != nil {
				log.Error("failed to authenticate request",
					zap.String("request_id", RequestIDFromContext(r.Context())),
					zap.Error(err),
				)
				writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
				return
			}

			if slot, ok := r.Context().Value(identitySlotKey).(*identitySlot); ok {
				slot.id, slot.set = id, true
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the authenticated Identity from ctx.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok
}

func unauthenticated(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED")
}

func writeError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}
