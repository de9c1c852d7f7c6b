package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kartikrao/pulse/internal/api/handler"
	mw "github.com/kartikrao/pulse/internal/api/middleware"
	"github.com/kartikrao/pulse/internal/auth"
	"github.com/kartikrao/pulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	profile  *auth.Profile
	fetchErr error
	gotCode  string
}

func (s *stubProvider) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (s *stubProvider) FetchProfile(_ context.Context, code string) (*auth.Profile, error) {
	s.gotCode = code
	return s.profile, s.fetchErr
}

type stubResolver struct {
	user *models.User
	err  error
}

func (s *stubResolver) ResolveUser(_ context.Context, _ *auth.Profile) (*models.User, error) {
	return s.user, s.err
}

func testSessions() *auth.SessionManager {
	return auth.NewSessionManager("0123456789abcdef0123456789abcdef", time.Hour, false)
}

func stateCookieFrom(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == "pulse_oauth_state" {
			return c
		}
	}
	t.Fatal("state cookie not set")
	return nil
}

// --- login ---

func TestGoogleLogin_RedirectsWithState(t *testing.T) {
	h := handler.NewGoogleLoginHandler(&stubProvider{})

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/api/v1/auth/google", nil))

	assert.Equal(t, http.StatusFound, w.Code)

	cookie := stateCookieFrom(t, w)
	assert.NotEmpty(t, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	location := w.Header().Get("Location")
	assert.Contains(t, location, "state="+cookie.Value)
}

// --- callback ---

func callbackRequest(state string, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest("GET",
		"/api/v1/auth/google/callback?code=the-code&state="+state, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func TestGoogleCallback_Success(t *testing.T) {
	provider := &stubProvider{profile: &auth.Profile{ID: "google-123", Email: "dev@example.com", Name: "Dev"}}
	user := &models.User{ID: uuid.New(), Email: "dev@example.com", Name: "Dev"}
	h := handler.NewGoogleCallbackHandler(provider, &stubResolver{user: user}, testSessions())

	cookie := &http.Cookie{Name: "pulse_oauth_state", Value: "state-abc"}
	w := httptest.NewRecorder()
	h(w, callbackRequest("state-abc", cookie))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "the-code", provider.gotCode)

	data := dataField(t, w)
	assert.Equal(t, "Authentication successful", data["message"])

	var sessionSet bool
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie && c.Value != "" {
			sessionSet = true
		}
	}
	assert.True(t, sessionSet, "session cookie must be set on success")
}

func TestGoogleCallback_StateMismatch(t *testing.T) {
	h := handler.NewGoogleCallbackHandler(&stubProvider{}, &stubResolver{}, testSessions())

	cookie := &http.Cookie{Name: "pulse_oauth_state", Value: "expected"}
	w := httptest.NewRecorder()
	h(w, callbackRequest("forged", cookie))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", errCode(t, w))
}

func TestGoogleCallback_MissingStateCookie(t *testing.T) {
	h := handler.NewGoogleCallbackHandler(&stubProvider{}, &stubResolver{}, testSessions())

	w := httptest.NewRecorder()
	h(w, callbackRequest("state-abc", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGoogleCallback_ExchangeFails(t *testing.T) {
	provider := &stubProvider{fetchErr: errors.New("bad code")}
	h := handler.NewGoogleCallbackHandler(provider, &stubResolver{}, testSessions())

	cookie := &http.Cookie{Name: "pulse_oauth_state", Value: "state-abc"}
	w := httptest.NewRecorder()
	h(w, callbackRequest("state-abc", cookie))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHENTICATED", errCode(t, w))
}

func TestGoogleCallback_ResolveFails(t *testing.T) {
	provider := &stubProvider{profile: &auth.Profile{ID: "google-123"}}
	h := handler.NewGoogleCallbackHandler(provider, &stubResolver{err: errors.New("db down")}, testSessions())

	cookie := &http.Cookie{Name: "pulse_oauth_state", Value: "state-abc"}
	w := httptest.NewRecorder()
	h(w, callbackRequest("state-abc", cookie))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// --- me ---

func TestMe_Success(t *testing.T) {
	h := handler.NewMeHandler()
	user := &models.User{ID: uuid.New(), Email: "dev@example.com", Name: "Dev"}

	req := httptest.NewRequest("GET", "/api/v1/me", nil)
	req = req.WithContext(mw.SetUser(req.Context(), user))
	w := httptest.NewRecorder()
	h(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	got := dataField(t, w)["user"].(map[string]any)
	assert.Equal(t, "dev@example.com", got["email"])
	assert.Equal(t, "Dev", got["name"])
	// Provider subject id never leaves the server
	_, leaked := got["google_id"]
	assert.False(t, leaked)
}

func TestMe_RequiresAuth(t *testing.T) {
	h := handler.NewMeHandler()

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("GET", "/api/v1/me", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- logout ---

func TestLogout_ClearsSession(t *testing.T) {
	h := handler.NewLogoutHandler(testSessions())

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("POST", "/api/v1/logout", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Logged out successfully", dataField(t, w)["message"])

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.SessionCookie, cookies[0].Name)
	assert.Negative(t, cookies[0].MaxAge)
}
