// Package analytics answers the read-side aggregation queries. Every query
// is cache-aside over Redis with a fixed TTL: results are recomputed from the
// store on a miss and the cache is never a source of truth.
package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kartikrao/pulse/internal/cache"
	"github.com/kartikrao/pulse/internal/store"
)

// ErrNoEvents is returned by UserStats when the end-user has no events.
var ErrNoEvents = errors.New("no events found for user")

const topEventsLimit = 10

// Service computes aggregates over the event store.
type Service struct {
	store store.Store
	cache cache.Cache
	ttl   time.Duration
}

func NewService(s store.Store, c cache.Cache, ttl time.Duration) *Service {
	return &Service{store: s, cache: c, ttl: ttl}
}

// SummaryParams scopes an event-summary query. AppID of uuid.Nil means all
// of the owner's apps; zero Start/End mean unbounded.
type SummaryParams struct {
	OwnerID uuid.UUID
	Event   string
	AppID   uuid.UUID
	Start   time.Time
	End     time.Time
}

// Summary aggregates one event name across the owner's apps.
type Summary struct {
	Event       string         `json:"event"`
	Count       int            `json:"count"`
	UniqueUsers int            `json:"uniqueUsers"`
	DeviceData  map[string]int `json:"deviceData"`
}

func (s *Service) EventSummary(ctx context.Context, p SummaryParams) (*Summary, error) {
	key := cache.EventSummaryKey(p.OwnerID, appScope(p.AppID), p.Event,
		dateScope(p.Start), dateScope(p.End))

	var cached Summary
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	events, err := s.store.QueryEvents(ctx, store.EventFilter{
		OwnerID: p.OwnerID,
		AppID:   p.AppID,
		Event:   p.Event,
		Start:   p.Start,
		End:     p.End,
	})
	if err != nil {
		return nil, fmt.Errorf("event summary query: %w", err)
	}

	unique := make(map[string]struct{})
	devices := make(map[string]int)
	for _, e := range events {
		if e.UserID != "" {
			unique[e.UserID] = struct{}{}
		}
		if e.Device != "" {
			devices[e.Device]++
		}
	}

	summary := &Summary{
		Event:       p.Event,
		Count:       len(events),
		UniqueUsers: len(unique),
		DeviceData:  devices,
	}
	s.toCache(ctx, key, summary)
	return summary, nil
}

// StatsParams scopes a user-stats query.
type StatsParams struct {
	OwnerID   uuid.UUID
	EndUserID string
	AppID     uuid.UUID
}

// UserStats describes one end-user's activity. Device details and the ip
// address come from the chronologically latest event.
type UserStats struct {
	UserID        string        `json:"userId"`
	TotalEvents   int           `json:"totalEvents"`
	DeviceDetails DeviceDetails `json:"deviceDetails"`
	IPAddress     string        `json:"ipAddress"`
}

type DeviceDetails struct {
	Browser string `json:"browser"`
	OS      string `json:"os"`
}

func (s *Service) UserStats(ctx context.Context, p StatsParams) (*UserStats, error) {
	key := cache.UserStatsKey(p.OwnerID, appScope(p.AppID), p.EndUserID)

	var cached UserStats
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	events, err := s.store.QueryEvents(ctx, store.EventFilter{
		OwnerID:     p.OwnerID,
		AppID:       p.AppID,
		EndUserID:   p.EndUserID,
		NewestFirst: true,
	})
	if err != nil {
		return nil, fmt.Errorf("user stats query: %w", err)
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}

	latest := events[0]
	stats := &UserStats{
		UserID:      p.EndUserID,
		TotalEvents: len(events),
		DeviceDetails: DeviceDetails{
			Browser: latest.Browser,
			OS:      latest.OS,
		},
		IPAddress: latest.IPAddress,
	}
	s.toCache(ctx, key, stats)
	return stats, nil
}

// DashboardParams scopes a dashboard query.
type DashboardParams struct {
	OwnerID uuid.UUID
	AppID   uuid.UUID
	Start   time.Time
	End     time.Time
}

// Dashboard is the tenant-wide aggregate view.
type Dashboard struct {
	TotalEvents     int            `json:"totalEvents"`
	UniqueUsers     int            `json:"uniqueUsers"`
	TopEvents       []EventCount   `json:"topEvents"`
	EventBreakdown  map[string]int `json:"eventBreakdown"`
	DeviceBreakdown map[string]int `json:"deviceBreakdown"`
	AppBreakdown    map[string]int `json:"appBreakdown"`
}

type EventCount struct {
	Event string `json:"event"`
	Count int    `json:"count"`
}

func (s *Service) Dashboard(ctx context.Context, p DashboardParams) (*Dashboard, error) {
	key := cache.DashboardKey(p.OwnerID, appScope(p.AppID), dateScope(p.Start), dateScope(p.End))

	var cached Dashboard
	if s.fromCache(ctx, key, &cached) {
		return &cached, nil
	}

	events, err := s.store.QueryEvents(ctx, store.EventFilter{
		OwnerID: p.OwnerID,
		AppID:   p.AppID,
		Start:   p.Start,
		End:     p.End,
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard query: %w", err)
	}

	unique := make(map[string]struct{})
	eventCounts := make(map[string]int)
	deviceCounts := make(map[string]int)
	appCounts := make(map[string]int)
	for _, e := range events {
		if e.UserID != "" {
			unique[e.UserID] = struct{}{}
		}
		eventCounts[e.Event]++
		deviceCounts[e.Device]++
		appCounts[e.AppName]++
	}

	dashboard := &Dashboard{
		TotalEvents:     len(events),
		UniqueUsers:     len(unique),
		TopEvents:       topEvents(eventCounts, topEventsLimit),
		EventBreakdown:  eventCounts,
		DeviceBreakdown: deviceCounts,
		AppBreakdown:    appCounts,
	}
	s.toCache(ctx, key, dashboard)
	return dashboard, nil
}

// topEvents ranks event names by count descending, capped at limit. Ties are
// broken by event name ascending so the ranking is deterministic.
func topEvents(counts map[string]int, limit int) []EventCount {
	ranked := make([]EventCount, 0, len(counts))
	for event, count := range counts {
		ranked = append(ranked, EventCount{Event: event, Count: count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Event < ranked[j].Event
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// fromCache attempts a cache read. Errors count as a miss.
func (s *Service) fromCache(ctx context.Context, key string, dst any) bool {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		slog.Warn("cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

// toCache stores the computed aggregate, best-effort.
func (s *Service) toCache(ctx context.Context, key string, v any) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		slog.Warn("cache write failed", "key", key, "error", err)
	}
}

func appScope(appID uuid.UUID) string {
	if appID == uuid.Nil {
		return "all"
	}
	return appID.String()
}

func dateScope(t time.Time) string {
	if t.IsZero() {
		return "none"
	}
	return t.UTC().Format(time.RFC3339)
}
