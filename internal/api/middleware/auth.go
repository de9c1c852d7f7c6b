package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/kartikrao/pulse/internal/api/response"
	"github.com/kartikrao/pulse/internal/auth"
	"github.com/kartikrao/pulse/internal/store"
)

// APIKeyHeader carries the tenant key on event-collection requests.
const APIKeyHeader = "x-api-key"

// KeyAuth validates the x-api-key header against the store and attaches the
// resolved app id and key record to the request context.
type KeyAuth struct {
	store store.Store
}

// NewKeyAuth creates a new KeyAuth middleware.
func NewKeyAuth(s store.Store) *KeyAuth {
	return &KeyAuth{store: s}
}

// Authenticate rejects requests without a usable API key. A key is usable
// when it exists, is active, and has no expiry in the past. The lookup has no
// side effects.
func (a *KeyAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(APIKeyHeader)
		if raw == "" {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_API_KEY", "API key is required in x-api-key header", nil)
			return
		}

		key, app, err := a.store.GetAPIKeyByValue(r.Context(), raw)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_API_KEY", "Invalid or inactive API key", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}

		if !key.Active {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_API_KEY", "Invalid or inactive API key", nil)
			return
		}
		if key.ExpiresAt != nil && key.ExpiresAt.Before(time.Now()) {
			response.Error(w, http.StatusUnauthorized,
				"INVALID_API_KEY", "API key has expired", nil)
			return
		}

		ctx := SetAppID(r.Context(), app.ID)
		ctx = SetAPIKey(ctx, key)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionAuth resolves the dashboard user from the session cookie on every
// request. The cookie only carries the user id; the full record is re-read
// from the store so revoked or deleted users fail immediately.
type SessionAuth struct {
	sessions *auth.SessionManager
	store    store.Store
}

// NewSessionAuth creates a new SessionAuth middleware.
func NewSessionAuth(sessions *auth.SessionManager, s store.Store) *SessionAuth {
	return &SessionAuth{sessions: sessions, store: s}
}

func (a *SessionAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := a.sessions.UserID(r)
		if err != nil {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHENTICATED", "Not authenticated", nil)
			return
		}

		user, err := a.store.GetUserByID(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHENTICATED", "Not authenticated", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetUser(r.Context(), user)))
	})
}
