package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey authenticates event collection for one app. The raw value is stored
// retrievably: GET /api-key returns it and revocation looks keys up by raw
// value, so a hash-at-rest scheme cannot serve this contract.
//
// A key is usable for ingestion iff Active is true and ExpiresAt is unset or
// in the future.
type APIKey struct {
	ID        uuid.UUID  `db:"id"         json:"id"`
	AppID     uuid.UUID  `db:"app_id"     json:"app_id"`
	Key       string     `db:"key"        json:"-"`
	Active    bool       `db:"is_active"  json:"is_active"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	RevokedAt *time.Time `db:"revoked_at" json:"-"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Usable reports whether the key currently authenticates ingestion.
func (k *APIKey) Usable(now time.Time) bool {
	if !k.Active {
		return false
	}
	if k.ExpiresAt != nil && k.ExpiresAt.Before(now) {
		return false
	}
	return true
}
