package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kartikrao/pulse/internal/analytics"
	mw "github.com/kartikrao/pulse/internal/api/middleware"
	"github.com/kartikrao/pulse/internal/api/response"
)

// Aggregator defines the interface the read handlers depend on.
type Aggregator interface {
	EventSummary(ctx context.Context, p analytics.SummaryParams) (*analytics.Summary, error)
	UserStats(ctx context.Context, p analytics.StatsParams) (*analytics.UserStats, error)
	Dashboard(ctx context.Context, p analytics.DashboardParams) (*analytics.Dashboard, error)
}

// NewEventSummaryHandler returns an http.HandlerFunc for GET /api/v1/event-summary.
func NewEventSummaryHandler(svc Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Not authenticated", nil)
			return
		}

		event := r.URL.Query().Get("event")
		if event == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "event parameter is required", nil)
			return
		}

		appID, ok := parseAppID(w, r)
		if !ok {
			return
		}
		start, end, ok := parseDateRange(w, r)
		if !ok {
			return
		}

		summary, err := svc.EventSummary(r.Context(), analytics.SummaryParams{
			OwnerID: user.ID,
			Event:   event,
			AppID:   appID,
			Start:   start,
			End:     end,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to fetch event summary", nil)
			return
		}

		response.JSON(w, summary)
	}
}

// NewUserStatsHandler returns an http.HandlerFunc for GET /api/v1/user-stats.
func NewUserStatsHandler(svc Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Not authenticated", nil)
			return
		}

		endUserID := r.URL.Query().Get("userId")
		if endUserID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "userId parameter is required", nil)
			return
		}

		appID, ok := parseAppID(w, r)
		if !ok {
			return
		}

		stats, err := svc.UserStats(r.Context(), analytics.StatsParams{
			OwnerID:   user.ID,
			EndUserID: endUserID,
			AppID:     appID,
		})
		if errors.Is(err, analytics.ErrNoEvents) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "No events found for this user", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to fetch user stats", nil)
			return
		}

		response.JSON(w, stats)
	}
}

// NewDashboardHandler returns an http.HandlerFunc for GET /api/v1/dashboard.
func NewDashboardHandler(svc Aggregator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Not authenticated", nil)
			return
		}

		appID, ok := parseAppID(w, r)
		if !ok {
			return
		}
		start, end, ok := parseDateRange(w, r)
		if !ok {
			return
		}

		dashboard, err := svc.Dashboard(r.Context(), analytics.DashboardParams{
			OwnerID: user.ID,
			AppID:   appID,
			Start:   start,
			End:     end,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to fetch dashboard data", nil)
			return
		}

		response.JSON(w, dashboard)
	}
}

// parseAppID reads the optional app_id query parameter. Writes a 400 and
// returns false when the value is present but malformed.
func parseAppID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("app_id")
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "app_id must be a valid UUID", nil)
		return uuid.Nil, false
	}
	return id, true
}

// parseDateRange reads the optional startDate/endDate query parameters.
func parseDateRange(w http.ResponseWriter, r *http.Request) (start, end time.Time, ok bool) {
	var err error
	if raw := r.URL.Query().Get("startDate"); raw != "" {
		start, err = parseDate(raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"startDate must be an RFC3339 timestamp or YYYY-MM-DD date", nil)
			return time.Time{}, time.Time{}, false
		}
	}
	if raw := r.URL.Query().Get("endDate"); raw != "" {
		end, err = parseDate(raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"endDate must be an RFC3339 timestamp or YYYY-MM-DD date", nil)
			return time.Time{}, time.Time{}, false
		}
	}
	return start, end, true
}

func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
