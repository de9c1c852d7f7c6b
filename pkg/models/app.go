package models

import (
	"time"

	"github.com/google/uuid"
)

// App is a registered tenant application. Events and API keys belong to an app.
type App struct {
	ID        uuid.UUID `db:"id"         json:"id"`
	UserID    uuid.UUID `db:"user_id"    json:"user_id"`
	Name      string    `db:"name"       json:"name"`
	Domain    string    `db:"domain"     json:"domain"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
