package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kartikrao/pulse/internal/store"
	"github.com/kartikrao/pulse/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("pulse_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

// --- fixtures ---

func createTestUser(t *testing.T, s store.Store) *models.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &models.User{
		ID:        uuid.New(),
		GoogleID:  "google-" + uuid.NewString()[:8],
		Email:     uuid.NewString()[:8] + "@example.com",
		Name:      "Test User",
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateUser(context.Background(), user))
	return user
}

func createTestApp(t *testing.T, s store.Store, userID uuid.UUID) (*models.App, *models.APIKey) {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	app := &models.App{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      "app-" + uuid.NewString()[:4],
		Domain:    "app.example.com",
		CreatedAt: now,
		UpdatedAt: now,
	}
	key := &models.APIKey{
		ID:        uuid.New(),
		AppID:     app.ID,
		Key:       "pk_" + uuid.NewString(),
		Active:    true,
		CreatedAt: now,
	}
	require.NoError(t, s.CreateAppWithKey(context.Background(), app, key))
	return app, key
}

func insertTestEvent(t *testing.T, s store.Store, appID uuid.UUID, event, endUserID string, ts time.Time) {
	t.Helper()
	require.NoError(t, s.InsertEvent(context.Background(), &models.AnalyticsEvent{
		ID:        uuid.New(),
		AppID:     appID,
		Event:     event,
		URL:       "https://app.example.com/",
		Device:    "desktop",
		UserID:    endUserID,
		Browser:   "Chrome",
		OS:        "macOS",
		Timestamp: ts,
		CreatedAt: ts,
	}))
}

// --- User Tests ---

func TestUser_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)

	got, err := s.GetUserByGoogleID(ctx, user.GoogleID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, user.Email, got.Email)

	got, err = s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.GoogleID, got.GoogleID)
}

func TestUser_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetUserByGoogleID(context.Background(), "no-such-google-id")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.GetUserByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUser_DuplicateGoogleID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)

	dup := *user
	dup.ID = uuid.New()
	err := s.CreateUser(ctx, &dup)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestUser_UpdateProfile(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)

	err := s.UpdateUserProfile(ctx, user.ID, "new@example.com", "New Name")
	require.NoError(t, err)

	got, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Equal(t, "New Name", got.Name)
}

func TestUser_UpdateProfileNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.UpdateUserProfile(context.Background(), uuid.New(), "x@example.com", "X")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- App Tests ---

func TestApp_CreateWithKeyAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)
	app, key := createTestApp(t, s, user.ID)

	got, err := s.GetAppForUser(ctx, app.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, app.Name, got.Name)
	assert.Equal(t, app.Domain, got.Domain)

	gotKey, err := s.GetActiveKeyForApp(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, key.Key, gotKey.Key)
	assert.True(t, gotKey.Active)
}

func TestApp_CreateWithDuplicateKeyRollsBack(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)
	_, existing := createTestApp(t, s, user.ID)

	now := time.Now().UTC().Truncate(time.Microsecond)
	app := &models.App{
		ID: uuid.New(), UserID: user.ID, Name: "doomed", Domain: "d.example.com",
		CreatedAt: now, UpdatedAt: now,
	}
	dup := &models.APIKey{
		ID: uuid.New(), AppID: app.ID, Key: existing.Key, Active: true, CreatedAt: now,
	}
	err := s.CreateAppWithKey(ctx, app, dup)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	// The app insert must have rolled back with the failed key insert
	_, err = s.GetAppForUser(ctx, app.ID, user.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestApp_GetForWrongUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	owner := createTestUser(t, s)
	other := createTestUser(t, s)
	app, _ := createTestApp(t, s, owner.ID)

	_, err := s.GetAppForUser(ctx, app.ID, other.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestApp_ListByUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)
	for i := 0; i < 3; i++ {
		createTestApp(t, s, user.ID)
	}

	list, err := s.ListAppsByUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	list, err = s.ListAppsByUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, list)
}

// --- API Key Tests ---

func TestAPIKey_GetByValue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)
	app, key := createTestApp(t, s, user.ID)

	gotKey, gotApp, err := s.GetAPIKeyByValue(ctx, key.Key)
	require.NoError(t, err)
	assert.Equal(t, key.ID, gotKey.ID)
	assert.Equal(t, app.ID, gotApp.ID)
	assert.Equal(t, user.ID, gotApp.UserID)
}

func TestAPIKey_GetByValueNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, _, err := s.GetAPIKeyByValue(context.Background(), "pk_missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKey_Revoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)
	app, key := createTestApp(t, s, user.ID)

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID))

	gotKey, _, err := s.GetAPIKeyByValue(ctx, key.Key)
	require.NoError(t, err)
	assert.False(t, gotKey.Active)
	assert.NotNil(t, gotKey.RevokedAt)

	// No active key left for the app
	_, err = s.GetActiveKeyForApp(ctx, app.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKey_RevokeAlreadyRevoked(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)
	_, key := createTestApp(t, s, user.ID)

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID))
	err := s.RevokeAPIKey(ctx, key.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKey_Rotate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)
	app, old := createTestApp(t, s, user.ID)

	now := time.Now().UTC().Truncate(time.Microsecond)
	replacement := &models.APIKey{
		ID: uuid.New(), AppID: app.ID, Key: "pk_" + uuid.NewString(), Active: true,
		CreatedAt: now,
	}
	require.NoError(t, s.RotateAPIKeys(ctx, app.ID, replacement))

	// Old key deactivated, new key is the single active one
	gotOld, _, err := s.GetAPIKeyByValue(ctx, old.Key)
	require.NoError(t, err)
	assert.False(t, gotOld.Active)

	active, err := s.GetActiveKeyForApp(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, replacement.Key, active.Key)
}

// --- Analytics Event Tests ---

func TestEvent_InsertAndQuery(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)
	app, _ := createTestApp(t, s, user.ID)
	now := time.Now().UTC().Truncate(time.Microsecond)

	insertTestEvent(t, s, app.ID, "page_view", "visitor-1", now)
	insertTestEvent(t, s, app.ID, "signup", "visitor-2", now.Add(time.Minute))

	events, err := s.QueryEvents(ctx, store.EventFilter{OwnerID: user.ID})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "page_view", events[0].Event)
	assert.Equal(t, app.Name, events[0].AppName)
}

func TestEvent_QueryScopedToOwner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	owner := createTestUser(t, s)
	other := createTestUser(t, s)
	ownerApp, _ := createTestApp(t, s, owner.ID)
	otherApp, _ := createTestApp(t, s, other.ID)
	now := time.Now().UTC().Truncate(time.Microsecond)

	insertTestEvent(t, s, ownerApp.ID, "page_view", "v1", now)
	insertTestEvent(t, s, otherApp.ID, "page_view", "v2", now)

	events, err := s.QueryEvents(ctx, store.EventFilter{OwnerID: owner.ID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ownerApp.ID, events[0].AppID)
}

func TestEvent_QueryFilters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)
	app1, _ := createTestApp(t, s, user.ID)
	app2, _ := createTestApp(t, s, user.ID)
	base := time.Now().UTC().Truncate(time.Microsecond).Add(-time.Hour)

	insertTestEvent(t, s, app1.ID, "page_view", "visitor-1", base)
	insertTestEvent(t, s, app1.ID, "signup", "visitor-1", base.Add(10*time.Minute))
	insertTestEvent(t, s, app2.ID, "page_view", "visitor-2", base.Add(20*time.Minute))

	// By app
	events, err := s.QueryEvents(ctx, store.EventFilter{OwnerID: user.ID, AppID: app1.ID})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// By event name
	events, err = s.QueryEvents(ctx, store.EventFilter{OwnerID: user.ID, Event: "page_view"})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// By end-user id
	events, err = s.QueryEvents(ctx, store.EventFilter{OwnerID: user.ID, EndUserID: "visitor-1"})
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// By inclusive time window
	events, err = s.QueryEvents(ctx, store.EventFilter{
		OwnerID: user.ID,
		Start:   base.Add(5 * time.Minute),
		End:     base.Add(20 * time.Minute),
	})
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestEvent_QueryNewestFirst(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)
	app, _ := createTestApp(t, s, user.ID)
	base := time.Now().UTC().Truncate(time.Microsecond).Add(-time.Hour)

	insertTestEvent(t, s, app.ID, "first", "v", base)
	insertTestEvent(t, s, app.ID, "second", "v", base.Add(time.Minute))

	events, err := s.QueryEvents(ctx, store.EventFilter{OwnerID: user.ID, NewestFirst: true})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "second", events[0].Event)
}

func TestEvent_NullableFieldsRoundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	user := createTestUser(t, s)
	app, _ := createTestApp(t, s, user.ID)
	now := time.Now().UTC().Truncate(time.Microsecond)

	// Empty optional fields are stored as NULL and read back as ""
	require.NoError(t, s.InsertEvent(ctx, &models.AnalyticsEvent{
		ID: uuid.New(), AppID: app.ID, Event: "bare", URL: "https://x.example.com/",
		Device: "mobile", Metadata: map[string]any{"plan": "free"},
		Timestamp: now, CreatedAt: now,
	}))

	events, err := s.QueryEvents(ctx, store.EventFilter{OwnerID: user.ID})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].Referrer)
	assert.Empty(t, events[0].IPAddress)
	assert.Empty(t, events[0].UserID)
	assert.Equal(t, "free", events[0].Metadata["plan"])
}

// --- Ping Test ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.Ping(context.Background())
	assert.NoError(t, err)
}
