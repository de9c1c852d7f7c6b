package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a dashboard owner, created on first Google login. Distinct from the
// opaque end-user ids that tenant apps attach to events.
type User struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	GoogleID  string    `db:"google_id"  json:"-"`
	Email     string    `db:"email"      json:"email"`
	Name      string    `db:"name"       json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
