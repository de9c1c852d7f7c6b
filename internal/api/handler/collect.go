package handler

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	mw "github.com/kartikrao/pulse/internal/api/middleware"
	"github.com/kartikrao/pulse/internal/api/response"
	"github.com/kartikrao/pulse/internal/ingest"
)

// Collector defines the interface the collect handler depends on.
type Collector interface {
	Collect(ctx context.Context, p ingest.Params) error
}

// NewCollectHandler returns an http.HandlerFunc for POST /api/v1/collect.
func NewCollectHandler(svc Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appID, ok := mw.GetAppID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_API_KEY", "Missing app", nil)
			return
		}

		var req struct {
			Event     string         `json:"event"`
			URL       string         `json:"url"`
			Referrer  string         `json:"referrer"`
			Device    string         `json:"device"`
			IPAddress string         `json:"ipAddress"`
			UserID    string         `json:"userId"`
			Metadata  map[string]any `json:"metadata"`
			Timestamp string         `json:"timestamp"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.Event == "" || req.URL == "" || req.Device == "" || req.Timestamp == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"event, url, device, and timestamp are required", nil)
			return
		}

		// Unparseable timestamps are rejected, not coerced.
		ts, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"timestamp must be a valid RFC3339 timestamp", nil)
			return
		}

		err = svc.Collect(r.Context(), ingest.Params{
			AppID:     appID,
			Event:     req.Event,
			URL:       req.URL,
			Referrer:  req.Referrer,
			Device:    req.Device,
			IPAddress: req.IPAddress,
			EndUserID: req.UserID,
			Metadata:  req.Metadata,
			Timestamp: ts,
			UserAgent: r.Header.Get("User-Agent"),
			RemoteIP:  remoteIP(r),
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to collect event", nil)
			return
		}

		response.Created(w, map[string]string{"message": "Event collected successfully"})
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
