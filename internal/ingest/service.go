// Package ingest validates, normalizes, and persists incoming analytics
// events, and invalidates cached aggregates for the owning app.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kartikrao/pulse/internal/cache"
	"github.com/kartikrao/pulse/internal/store"
	"github.com/kartikrao/pulse/pkg/models"
	"github.com/mileusna/useragent"
)

// Params is a validated collection request. AppID comes from the API key
// guard, never from the client.
type Params struct {
	AppID     uuid.UUID
	Event     string
	URL       string
	Device    string
	Referrer  string
	EndUserID string
	IPAddress string // client-supplied override
	Metadata  map[string]any
	Timestamp time.Time
	UserAgent string // raw User-Agent header
	RemoteIP  string
}

// Service persists events and keeps the cache coherent.
type Service struct {
	store store.Store
	cache cache.Cache
}

func NewService(s store.Store, c cache.Cache) *Service {
	return &Service{store: s, cache: c}
}

// Collect stores one event. On success every cached aggregate naming the app
// is invalidated; invalidation is best-effort and never fails the request.
func (s *Service) Collect(ctx context.Context, p Params) error {
	browser, os := parseUserAgent(p.UserAgent)

	// Client metadata fills in what the User-Agent didn't yield.
	if browser == "" {
		browser = metaString(p.Metadata, "browser")
	}
	if os == "" {
		os = metaString(p.Metadata, "os")
	}
	screenSize := metaString(p.Metadata, "screenSize")

	ip := p.IPAddress
	if ip == "" {
		ip = p.RemoteIP
	}

	metadata := p.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	event := &models.AnalyticsEvent{
		ID:         uuid.New(),
		AppID:      p.AppID,
		Event:      p.Event,
		URL:        p.URL,
		Referrer:   p.Referrer,
		Device:     p.Device,
		IPAddress:  ip,
		UserID:     p.EndUserID,
		Browser:    browser,
		OS:         os,
		ScreenSize: screenSize,
		Metadata:   metadata,
		Timestamp:  p.Timestamp.UTC(),
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.store.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	// Stale entries are bounded by the cache TTL, so a failed invalidation
	// is logged and swallowed rather than rolling back the insert.
	pattern := cache.AppInvalidationPattern(p.AppID)
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		slog.Warn("cache invalidation failed", "app_id", p.AppID, "error", err)
	}

	return nil
}

func parseUserAgent(raw string) (browser, os string) {
	if raw == "" {
		return "", ""
	}
	ua := useragent.Parse(raw)
	return ua.Name, ua.OS
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}
