package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalyticsEvent is one behavioral event submitted by a tenant app.
// Append-only: events are never updated or deleted.
type AnalyticsEvent struct {
	ID         uuid.UUID      `db:"id"          json:"id"`
	AppID      uuid.UUID      `db:"app_id"      json:"app_id"`
	Event      string         `db:"event"       json:"event"`
	URL        string         `db:"url"         json:"url"`
	Referrer   string         `db:"referrer"    json:"referrer,omitempty"`
	Device     string         `db:"device"      json:"device"`
	IPAddress  string         `db:"ip_address"  json:"ip_address,omitempty"`
	UserID     string         `db:"user_id"     json:"user_id,omitempty"`
	Browser    string         `db:"browser"     json:"browser,omitempty"`
	OS         string         `db:"os"          json:"os,omitempty"`
	ScreenSize string         `db:"screen_size" json:"screen_size,omitempty"`
	Metadata   map[string]any `db:"metadata"    json:"metadata"`
	Timestamp  time.Time      `db:"timestamp"   json:"timestamp"`
	CreatedAt  time.Time      `db:"created_at"  json:"created_at"`
}

// EventRow is an event joined with the name of its owning app, as returned by
// the aggregation queries.
type EventRow struct {
	AnalyticsEvent
	AppName string `db:"app_name" json:"-"`
}
