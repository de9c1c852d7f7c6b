// Package apps manages tenant registration and API key issuance, revocation,
// and rotation. Raw key values are returned to the caller only at issuance.
package apps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kartikrao/pulse/internal/store"
	"github.com/kartikrao/pulse/pkg/models"
)

var ErrNotFound = errors.New("app not found")
var ErrForbidden = errors.New("not the owner of this app")

// Service implements tenant and key management on top of the store.
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Register creates an app and its initial active API key in one transaction.
// Returns the app and the raw key value; the raw value is not retrievable
// again except through ActiveKey.
func (s *Service) Register(ctx context.Context, ownerID uuid.UUID, name, domain string) (*models.App, string, error) {
	now := time.Now().UTC()
	app := &models.App{
		ID:        uuid.New(),
		UserID:    ownerID,
		Name:      name,
		Domain:    domain,
		CreatedAt: now,
		UpdatedAt: now,
	}
	key := newKey(app.ID)

	if err := s.store.CreateAppWithKey(ctx, app, key); err != nil {
		return nil, "", fmt.Errorf("register app: %w", err)
	}
	return app, key.Key, nil
}

// ActiveKey returns the most recently created active key for an app owned by
// ownerID. ErrNotFound covers both a missing app and a foreign owner, so the
// response doesn't leak which apps exist.
func (s *Service) ActiveKey(ctx context.Context, ownerID, appID uuid.UUID) (*models.APIKey, error) {
	if _, err := s.store.GetAppForUser(ctx, appID, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("verify app ownership: %w", err)
	}

	key, err := s.store.GetActiveKeyForApp(ctx, appID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch active key: %w", err)
	}
	return key, nil
}

// Revoke deactivates the key with the given raw value. Fails with
// ErrForbidden when the key's app belongs to a different user.
func (s *Service) Revoke(ctx context.Context, ownerID uuid.UUID, rawKey string) error {
	key, app, err := s.store.GetAPIKeyByValue(ctx, rawKey)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("look up key: %w", err)
	}

	if app.UserID != ownerID {
		return ErrForbidden
	}

	if err := s.store.RevokeAPIKey(ctx, key.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Already revoked between lookup and update.
			return ErrNotFound
		}
		return fmt.Errorf("revoke key: %w", err)
	}
	return nil
}

// Rotate deactivates every active key for the app and issues exactly one new
// one, atomically. Returns the new key with its raw value populated.
func (s *Service) Rotate(ctx context.Context, ownerID, appID uuid.UUID) (*models.APIKey, error) {
	if _, err := s.store.GetAppForUser(ctx, appID, ownerID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("verify app ownership: %w", err)
	}

	key := newKey(appID)
	if err := s.store.RotateAPIKeys(ctx, appID, key); err != nil {
		return nil, fmt.Errorf("rotate keys: %w", err)
	}
	return key, nil
}

// List returns the owner's apps, newest first.
func (s *Service) List(ctx context.Context, ownerID uuid.UUID) ([]*models.App, error) {
	apps, err := s.store.ListAppsByUser(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	if apps == nil {
		apps = []*models.App{}
	}
	return apps, nil
}

func newKey(appID uuid.UUID) *models.APIKey {
	return &models.APIKey{
		ID:        uuid.New(),
		AppID:     appID,
		Key:       GenerateKey(),
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
}
