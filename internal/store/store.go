package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kartikrao/pulse/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUserProfile(ctx context.Context, id uuid.UUID, email, name string) error

	CreateAppWithKey(ctx context.Context, app *models.App, key *models.APIKey) error
	GetAppForUser(ctx context.Context, appID, userID uuid.UUID) (*models.App, error)
	ListAppsByUser(ctx context.Context, userID uuid.UUID) ([]*models.App, error)

	GetAPIKeyByValue(ctx context.Context, raw string) (*models.APIKey, *models.App, error)
	GetActiveKeyForApp(ctx context.Context, appID uuid.UUID) (*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
	RotateAPIKeys(ctx context.Context, appID uuid.UUID, newKey *models.APIKey) error

	InsertEvent(ctx context.Context, event *models.AnalyticsEvent) error
	QueryEvents(ctx context.Context, filter EventFilter) ([]*models.EventRow, error)
}

// EventFilter scopes an event query. OwnerID is mandatory: events are always
// restricted to apps owned by the requesting dashboard user.
type EventFilter struct {
	OwnerID     uuid.UUID
	AppID       uuid.UUID // uuid.Nil means all of the owner's apps
	Event       string
	EndUserID   string
	Start       time.Time // zero means unbounded; bounds are inclusive
	End         time.Time
	NewestFirst bool
}
