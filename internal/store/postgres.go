package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kartikrao/pulse/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

const userColumns = `id, google_id, email, name, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.GoogleID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE google_id = $1`, googleID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get user by google id: %w", err)
	}
	return u, err
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, google_id, email, name, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.GoogleID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserProfile(ctx context.Context, id uuid.UUID, email, name string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET email = $2, name = $3, updated_at = NOW() WHERE id = $1`,
		id, email, name)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Apps ---

const appColumns = `id, user_id, name, domain, created_at, updated_at`

func scanApp(row pgx.Row) (*models.App, error) {
	var a models.App
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Domain, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAppWithKey inserts the app and its initial active API key in a single
// transaction so a key-insert failure never leaves an orphan app.
func (s *PostgresStore) CreateAppWithKey(ctx context.Context, app *models.App, key *models.APIKey) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create app: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO apps (id, user_id, name, domain, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		app.ID, app.UserID, app.Name, app.Domain, app.CreatedAt, app.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	if err := insertAPIKey(ctx, tx, key); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create app: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAppForUser(ctx context.Context, appID, userID uuid.UUID) (*models.App, error) {
	a, err := scanApp(s.pool.QueryRow(ctx,
		`SELECT `+appColumns+` FROM apps WHERE id = $1 AND user_id = $2`, appID, userID))
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("get app for user: %w", err)
	}
	return a, err
}

func (s *PostgresStore) ListAppsByUser(ctx context.Context, userID uuid.UUID) ([]*models.App, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appColumns+` FROM apps WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list apps: %w", err)
	}
	defer rows.Close()

	var apps []*models.App
	for rows.Next() {
		var a models.App
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Domain, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan app: %w", err)
		}
		apps = append(apps, &a)
	}
	return apps, rows.Err()
}

// --- API Keys ---

const keyColumns = `id, app_id, key, is_active, expires_at, revoked_at, created_at`

func insertAPIKey(ctx context.Context, tx pgx.Tx, key *models.APIKey) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO api_keys (id, app_id, key, is_active, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		key.ID, key.AppID, key.Key, key.Active, key.ExpiresAt, key.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

// GetAPIKeyByValue looks a key up by its raw value, joined with its owning
// app. Active and revoked keys are both returned; callers decide usability.
func (s *PostgresStore) GetAPIKeyByValue(ctx context.Context, raw string) (*models.APIKey, *models.App, error) {
	var k models.APIKey
	var a models.App
	err := s.pool.QueryRow(ctx,
		`SELECT k.id, k.app_id, k.key, k.is_active, k.expires_at, k.revoked_at, k.created_at,
		        a.id, a.user_id, a.name, a.domain, a.created_at, a.updated_at
		 FROM api_keys k JOIN apps a ON a.id = k.app_id
		 WHERE k.key = $1`, raw,
	).Scan(&k.ID, &k.AppID, &k.Key, &k.Active, &k.ExpiresAt, &k.RevokedAt, &k.CreatedAt,
		&a.ID, &a.UserID, &a.Name, &a.Domain, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get api key by value: %w", err)
	}
	return &k, &a, nil
}

func (s *PostgresStore) GetActiveKeyForApp(ctx context.Context, appID uuid.UUID) (*models.APIKey, error) {
	var k models.APIKey
	err := s.pool.QueryRow(ctx,
		`SELECT `+keyColumns+` FROM api_keys
		 WHERE app_id = $1 AND is_active = TRUE
		 ORDER BY created_at DESC LIMIT 1`, appID,
	).Scan(&k.ID, &k.AppID, &k.Key, &k.Active, &k.ExpiresAt, &k.RevokedAt, &k.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active key: %w", err)
	}
	return &k, nil
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET is_active = FALSE, revoked_at = NOW()
		 WHERE id = $1 AND is_active = TRUE`, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RotateAPIKeys deactivates every active key for the app and inserts exactly
// one replacement, atomically.
func (s *PostgresStore) RotateAPIKeys(ctx context.Context, appID uuid.UUID, newKey *models.APIKey) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rotate keys: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`UPDATE api_keys SET is_active = FALSE, revoked_at = NOW()
		 WHERE app_id = $1 AND is_active = TRUE`, appID)
	if err != nil {
		return fmt.Errorf("deactivate keys: %w", err)
	}

	if err := insertAPIKey(ctx, tx, newKey); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit rotate keys: %w", err)
	}
	return nil
}

// --- Analytics Events ---

func (s *PostgresStore) InsertEvent(ctx context.Context, event *models.AnalyticsEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO analytics_events
		   (id, app_id, event, url, referrer, device, ip_address, user_id, browser, os, screen_size, metadata, timestamp, created_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, NULLIF($7,''), NULLIF($8,''), NULLIF($9,''), NULLIF($10,''), NULLIF($11,''), $12, $13, $14)`,
		event.ID, event.AppID, event.Event, event.URL, event.Referrer, event.Device,
		event.IPAddress, event.UserID, event.Browser, event.OS, event.ScreenSize,
		event.Metadata, event.Timestamp, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *PostgresStore) QueryEvents(ctx context.Context, filter EventFilter) ([]*models.EventRow, error) {
	// Build WHERE clause dynamically
	conditions := []string{"a.user_id = $1"}
	args := []any{filter.OwnerID}
	argIdx := 2

	if filter.AppID != uuid.Nil {
		conditions = append(conditions, fmt.Sprintf("e.app_id = $%d", argIdx))
		args = append(args, filter.AppID)
		argIdx++
	}
	if filter.Event != "" {
		conditions = append(conditions, fmt.Sprintf("e.event = $%d", argIdx))
		args = append(args, filter.Event)
		argIdx++
	}
	if filter.EndUserID != "" {
		conditions = append(conditions, fmt.Sprintf("e.user_id = $%d", argIdx))
		args = append(args, filter.EndUserID)
		argIdx++
	}
	if !filter.Start.IsZero() {
		conditions = append(conditions, fmt.Sprintf("e.timestamp >= $%d", argIdx))
		args = append(args, filter.Start)
		argIdx++
	}
	if !filter.End.IsZero() {
		conditions = append(conditions, fmt.Sprintf("e.timestamp <= $%d", argIdx))
		args = append(args, filter.End)
		argIdx++
	}

	order := "ORDER BY e.timestamp ASC"
	if filter.NewestFirst {
		order = "ORDER BY e.timestamp DESC"
	}

	query := fmt.Sprintf(
		`SELECT e.id, e.app_id, e.event, e.url, COALESCE(e.referrer,''), e.device,
		        COALESCE(e.ip_address,''), COALESCE(e.user_id,''), COALESCE(e.browser,''),
		        COALESCE(e.os,''), COALESCE(e.screen_size,''), e.metadata, e.timestamp,
		        e.created_at, a.name
		 FROM analytics_events e JOIN apps a ON a.id = e.app_id
		 WHERE %s %s`, strings.Join(conditions, " AND "), order)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*models.EventRow
	for rows.Next() {
		var e models.EventRow
		if err := rows.Scan(&e.ID, &e.AppID, &e.Event, &e.URL, &e.Referrer, &e.Device,
			&e.IPAddress, &e.UserID, &e.Browser, &e.OS, &e.ScreenSize, &e.Metadata,
			&e.Timestamp, &e.CreatedAt, &e.AppName); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
