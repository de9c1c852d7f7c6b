package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/kartikrao/pulse/pkg/models"
)

type contextKey string

const (
	appIDKey  contextKey = "app_id"
	apiKeyKey contextKey = "api_key"
	userKey   contextKey = "user"
)

func SetAppID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, appIDKey, id)
}

func GetAppID(r *http.Request) (uuid.UUID, bool) {
	id, ok := r.Context().Value(appIDKey).(uuid.UUID)
	return id, ok
}

func SetAPIKey(ctx context.Context, key *models.APIKey) context.Context {
	return context.WithValue(ctx, apiKeyKey, key)
}

func GetAPIKey(r *http.Request) (*models.APIKey, bool) {
	key, ok := r.Context().Value(apiKeyKey).(*models.APIKey)
	return key, ok
}

func SetUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func GetUser(r *http.Request) (*models.User, bool) {
	user, ok := r.Context().Value(userKey).(*models.User)
	return user, ok
}
