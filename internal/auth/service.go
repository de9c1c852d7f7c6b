// Package auth integrates the external identity provider: the Google OAuth
// handshake, the user record it resolves to, and the session cookie that
// carries the user id between requests.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kartikrao/pulse/internal/store"
	"github.com/kartikrao/pulse/pkg/models"
)

// Service resolves OAuth profiles to dashboard users.
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// ResolveUser finds or creates the user for an OAuth profile, keyed by the
// provider subject id. Name and email are refreshed on every login.
func (s *Service) ResolveUser(ctx context.Context, p *Profile) (*models.User, error) {
	user, err := s.store.GetUserByGoogleID(ctx, p.ID)
	if errors.Is(err, store.ErrNotFound) {
		now := time.Now().UTC()
		user = &models.User{
			ID:        uuid.New(),
			GoogleID:  p.ID,
			Email:     p.Email,
			Name:      p.Name,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.store.CreateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return user, nil
	}
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	if user.Email != p.Email || user.Name != p.Name {
		if err := s.store.UpdateUserProfile(ctx, user.ID, p.Email, p.Name); err != nil {
			return nil, fmt.Errorf("refresh user profile: %w", err)
		}
		user.Email = p.Email
		user.Name = p.Name
	}
	return user, nil
}
