package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	mw "github.com/kartikrao/pulse/internal/api/middleware"
	"github.com/kartikrao/pulse/internal/api/response"
	"github.com/kartikrao/pulse/internal/auth"
	"github.com/kartikrao/pulse/pkg/models"
)

const stateCookie = "pulse_oauth_state"

// OAuthProvider defines the identity-provider interface the login handlers
// depend on.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	FetchProfile(ctx context.Context, code string) (*auth.Profile, error)
}

// UserResolver resolves an OAuth profile to a dashboard user.
type UserResolver interface {
	ResolveUser(ctx context.Context, p *auth.Profile) (*models.User, error)
}

// NewGoogleLoginHandler returns an http.HandlerFunc for GET /api/v1/auth/google.
// It stashes a random state value in a short-lived cookie and redirects to
// the Google consent page.
func NewGoogleLoginHandler(provider OAuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 16)
		rand.Read(buf)
		state := hex.EncodeToString(buf)

		http.SetCookie(w, &http.Cookie{
			Name:     stateCookie,
			Value:    state,
			Path:     "/",
			MaxAge:   300,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})

		http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
	}
}

// NewGoogleCallbackHandler returns an http.HandlerFunc for
// GET /api/v1/auth/google/callback. On success it resolves (or creates) the
// user and sets the session cookie.
func NewGoogleCallbackHandler(provider OAuthProvider, users UserResolver, sessions *auth.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := r.URL.Query().Get("state")
		c, err := r.Cookie(stateCookie)
		if err != nil || state == "" || c.Value != state {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "OAuth state mismatch", nil)
			return
		}

		code := r.URL.Query().Get("code")
		if code == "" {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication failed", nil)
			return
		}

		profile, err := provider.FetchProfile(r.Context(), code)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Authentication failed", nil)
			return
		}

		user, err := users.ResolveUser(r.Context(), profile)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to resolve user", nil)
			return
		}

		if err := sessions.Issue(w, user.ID); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to create session", nil)
			return
		}

		response.JSON(w, map[string]any{
			"message": "Authentication successful",
			"user":    user,
		})
	}
}

// NewMeHandler returns an http.HandlerFunc for GET /api/v1/me.
func NewMeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Not authenticated", nil)
			return
		}
		response.JSON(w, map[string]any{"user": user})
	}
}

// NewLogoutHandler returns an http.HandlerFunc for POST /api/v1/logout.
func NewLogoutHandler(sessions *auth.SessionManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessions.Clear(w)
		response.JSON(w, map[string]string{"message": "Logged out successfully"})
	}
}
