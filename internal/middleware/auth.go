package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type contextKey string

const (
	OwnerKey       contextKey = "owner"
	ownerHolderKey contextKey = "owner-holder"
)

// ownerHolder is placed on the context by Logging before the auth layer runs,
// so the owner resolved further down the chain is visible to the log line.
type ownerHolder struct {
	owner string
}

func recordOwner(ctx context.Context, owner string) {
	if h, ok := ctx.Value(ownerHolderKey).(*ownerHolder); ok && h.owner == "" {
		h.owner = owner
	}
}

// APIKeyAuth maps the Authorization header to an owner. keys is owner -> key.
// An empty map disables authentication.
func APIKeyAuth(keys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if apiKey == "" {
				writeError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}

			// constant-time, dan cek semua key supaya waktu tidak bocor
			var owner string
			for o, key := range keys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					owner = o
				}
			}
			if owner == "" {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			recordOwner(r.Context(), owner)
			ctx := context.WithValue(r.Context(), OwnerKey, owner)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerFromContext returns the authenticated owner, or "" when auth is off.
func OwnerFromContext(ctx context.Context) string {
	if owner, ok := ctx.Value(OwnerKey).(string); ok {
		return owner
	}
	return ""
}

// RequireOwner rejects requests whose {owner} URL segment is malformed or
// differs from the authenticated owner.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		urlOwner := chi.URLParam(r, "owner")
		if err := ValidateOwner(urlOwner); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if authOwner := OwnerFromContext(r.Context()); authOwner != "" && authOwner != urlOwner {
			writeError(w, http.StatusForbidden, "owner does not match API key")
			return
		}
		// auth mati: owner dari URL
		recordOwner(r.Context(), urlOwner)
		next.ServeHTTP(w, r)
	})
}
