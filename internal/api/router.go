package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kartikrao/pulse/internal/api/middleware"
	"github.com/kartikrao/pulse/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	KeyAuth     *mw.KeyAuth
	SessionAuth *mw.SessionAuth
	CollectRate *mw.RateLimit
	QueryRate   *mw.RateLimit
	Metrics     *mw.Metrics

	HealthHandler http.HandlerFunc

	// Ingestion
	CollectHandler http.HandlerFunc

	// Aggregation reads
	EventSummaryHandler http.HandlerFunc
	UserStatsHandler    http.HandlerFunc
	DashboardHandler    http.HandlerFunc

	// Tenant management
	RegisterAppHandler   http.HandlerFunc
	APIKeyHandler        http.HandlerFunc
	RevokeKeyHandler     http.HandlerFunc
	RegenerateKeyHandler http.HandlerFunc
	ListAppsHandler      http.HandlerFunc

	// Auth
	GoogleLoginHandler    http.HandlerFunc
	GoogleCallbackHandler http.HandlerFunc
	MeHandler             http.HandlerFunc
	LogoutHandler         http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Instrument)
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	// Public routes
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))
	r.Get("/api/v1/auth/google", orNotImplemented(deps.GoogleLoginHandler))
	r.Get("/api/v1/auth/google/callback", orNotImplemented(deps.GoogleCallbackHandler))

	// Ingestion routes, authenticated by API key
	r.Group(func(r chi.Router) {
		r.Use(deps.KeyAuth.Authenticate)
		r.Use(deps.CollectRate.Limit)

		r.Post("/api/v1/collect", orNotImplemented(deps.CollectHandler))
	})

	// Dashboard routes, authenticated by session cookie
	r.Group(func(r chi.Router) {
		r.Use(deps.SessionAuth.Authenticate)
		r.Use(deps.QueryRate.Limit)

		r.Get("/api/v1/event-summary", orNotImplemented(deps.EventSummaryHandler))
		r.Get("/api/v1/user-stats", orNotImplemented(deps.UserStatsHandler))
		r.Get("/api/v1/dashboard", orNotImplemented(deps.DashboardHandler))

		r.Post("/api/v1/register", orNotImplemented(deps.RegisterAppHandler))
		r.Get("/api/v1/api-key", orNotImplemented(deps.APIKeyHandler))
		r.Post("/api/v1/revoke", orNotImplemented(deps.RevokeKeyHandler))
		r.Post("/api/v1/regenerate", orNotImplemented(deps.RegenerateKeyHandler))
		r.Get("/api/v1/apps", orNotImplemented(deps.ListAppsHandler))

		r.Get("/api/v1/me", orNotImplemented(deps.MeHandler))
		r.Post("/api/v1/logout", orNotImplemented(deps.LogoutHandler))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
