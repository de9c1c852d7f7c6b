package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	mw "github.com/kartikrao/pulse/internal/api/middleware"
	"github.com/kartikrao/pulse/internal/api/response"
	"github.com/kartikrao/pulse/internal/apps"
	"github.com/kartikrao/pulse/pkg/models"
)

// AppManager defines the interface the tenant-management handlers depend on.
type AppManager interface {
	Register(ctx context.Context, ownerID uuid.UUID, name, domain string) (*models.App, string, error)
	ActiveKey(ctx context.Context, ownerID, appID uuid.UUID) (*models.APIKey, error)
	Revoke(ctx context.Context, ownerID uuid.UUID, rawKey string) error
	Rotate(ctx context.Context, ownerID, appID uuid.UUID) (*models.APIKey, error)
	List(ctx context.Context, ownerID uuid.UUID) ([]*models.App, error)
}

// NewRegisterAppHandler returns an http.HandlerFunc for POST /api/v1/register.
func NewRegisterAppHandler(svc AppManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Not authenticated", nil)
			return
		}

		var req struct {
			Name   string `json:"name"`
			Domain string `json:"domain"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.Name == "" || req.Domain == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name and domain are required", nil)
			return
		}

		app, rawKey, err := svc.Register(r.Context(), user.ID, req.Name, req.Domain)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to register app", nil)
			return
		}

		response.Created(w, map[string]any{
			"message": "App registered successfully",
			"app":     app,
			"apiKey":  rawKey,
		})
	}
}

// NewAPIKeyHandler returns an http.HandlerFunc for GET /api/v1/api-key.
func NewAPIKeyHandler(svc AppManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Not authenticated", nil)
			return
		}

		raw := r.URL.Query().Get("app_id")
		if raw == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "app_id is required", nil)
			return
		}
		appID, err := uuid.Parse(raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "app_id must be a valid UUID", nil)
			return
		}

		key, err := svc.ActiveKey(r.Context(), user.ID, appID)
		if errors.Is(err, apps.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "App or active key not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to fetch API key", nil)
			return
		}

		response.JSON(w, map[string]any{
			"apiKey":     key.Key,
			"app_id":     key.AppID,
			"created_at": key.CreatedAt,
			"expires_at": key.ExpiresAt,
		})
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for POST /api/v1/revoke.
func NewRevokeKeyHandler(svc AppManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Not authenticated", nil)
			return
		}

		var req struct {
			APIKey string `json:"api_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.APIKey == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "api_key is required", nil)
			return
		}

		err := svc.Revoke(r.Context(), user.ID, req.APIKey)
		switch {
		case errors.Is(err, apps.ErrNotFound):
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "API key not found", nil)
		case errors.Is(err, apps.ErrForbidden):
			response.Error(w, http.StatusForbidden, "FORBIDDEN", "Not authorized to revoke this API key", nil)
		case err != nil:
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to revoke API key", nil)
		default:
			response.JSON(w, map[string]string{"message": "API key revoked successfully"})
		}
	}
}

// NewRegenerateKeyHandler returns an http.HandlerFunc for POST /api/v1/regenerate.
func NewRegenerateKeyHandler(svc AppManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Not authenticated", nil)
			return
		}

		var req struct {
			AppID string `json:"app_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}
		if req.AppID == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "app_id is required", nil)
			return
		}
		appID, err := uuid.Parse(req.AppID)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "app_id must be a valid UUID", nil)
			return
		}

		key, err := svc.Rotate(r.Context(), user.ID, appID)
		if errors.Is(err, apps.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "App not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to regenerate API key", nil)
			return
		}

		response.JSON(w, map[string]any{
			"message":    "API key regenerated successfully",
			"apiKey":     key.Key,
			"created_at": key.CreatedAt,
		})
	}
}

// NewListAppsHandler returns an http.HandlerFunc for GET /api/v1/apps.
func NewListAppsHandler(svc AppManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := mw.GetUser(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Not authenticated", nil)
			return
		}

		list, err := svc.List(r.Context(), user.ID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to fetch apps", nil)
			return
		}

		response.JSON(w, map[string]any{"apps": list})
	}
}
