package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// getTestConfig returns a minimal config for testing
func getTestConfig() *config.Config {
	return &config.Config{
		DefaultAdminPassword: "", // Use random password in tests
	}
}

// TestStoreWithSQLite tests store operations with SQLite
func TestStoreWithSQLite(t *testing.T) {
	testBasicOperations(t, "sqlite", nil)
}

// TestStoreWithPostgres tests store operations with PostgreSQL
func TestStoreWithPostgres(t *testing.T) {
	// Skip if running short tests or Docker is not available
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	// Recover from panic if Docker is not available
	defer func() {
		if r := recover(); r != nil {
			t.Skipf("Skipping PostgreSQL test: Docker not available (panic: %v)", r)
		}
	}()

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: Docker not available (%v)", err)
		return
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	testBasicOperations(t, "postgres", pgContainer)
}

// createFreshStore creates a new store instance for test isolation
// For SQLite, each call creates a fresh :memory: database
// For PostgreSQL, each call creates a uniquely-named database in the container
func createFreshStore(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) *Store {
	t.Helper()

	var dsn string
	switch driver {
	case "sqlite":
		dsn = ":memory:"
	case "postgres":
		dbName := "test_" + uuid.New().String()[:8]
		ctx := context.Background()

		createDBCmd := fmt.Sprintf("CREATE DATABASE %s", dbName)
		_, _, err := pgContainer.Exec(
			ctx,
			[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", createDBCmd},
		)
		require.NoError(t, err)

		host, err := pgContainer.Host(ctx)
		require.NoError(t, err)
		port, err := pgContainer.MappedPort(ctx, "5432")
		require.NoError(t, err)
		dsn = fmt.Sprintf(
			"host=%s port=%s user=testuser password=testpass dbname=%s sslmode=disable",
			host, port.Port(), dbName,
		)

		t.Cleanup(func() {
			dropDBCmd := fmt.Sprintf("DROP DATABASE IF EXISTS %s", dbName)
			_, _, _ = pgContainer.Exec(
				context.Background(),
				[]string{"psql", "-U", "testuser", "-d", "testdb", "-c", dropDBCmd},
			)
		})
	default:
		t.Fatalf("unsupported driver: %s", driver)
	}

	store, err := New(context.Background(), driver, dsn, getTestConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, store)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func newTestToken(pairID, category string, expiresAt time.Time) *models.AccessToken {
	id := uuid.New().String()
	return &models.AccessToken{
		ID:            id,
		TokenHash:     "hash-" + id,
		TokenCategory: category,
		Status:        models.TokenStatusActive,
		PairID:        pairID,
		UserID:        "user-1",
		ClientID:      "client-1",
		Scopes:        "mcp",
		ExpiresAt:     expiresAt,
	}
}

// testBasicOperations tests basic CRUD operations on the store
// Each subtest creates a fresh store instance for isolation
func testBasicOperations(t *testing.T, driver string, pgContainer *postgres.PostgresContainer) {
	ctx := context.Background()

	t.Run("SeedsAdminUser", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		admin, err := store.GetUserByUsername(ctx, "admin")
		require.NoError(t, err)
		assert.True(t, admin.IsAdmin())
	})

	t.Run("CreateUserConflict", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		user := &models.User{ID: uuid.New().String(), Username: "bob", Email: "bob@test", PasswordHash: "x"}
		require.NoError(t, store.CreateUser(ctx, user))

		dup := &models.User{ID: uuid.New().String(), Username: "bob", Email: "bob2@test", PasswordHash: "x"}
		assert.ErrorIs(t, store.CreateUser(ctx, dup), ErrUsernameConflict)

		got, err := store.GetUserByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "bob", got.Username)
	})

	t.Run("CreateAndGetClient", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		client := &models.OAuthClient{
			ID:           uuid.New().String(),
			SecretHash:   "hash",
			Name:         "Test Client",
			RedirectURIs: models.StringArray{"https://a.test/cb"},
			Grants:       models.StringArray{"authorization_code", "refresh_token"},
			Scope:        models.StringArray{"mcp"},
		}
		require.NoError(t, store.CreateClient(ctx, client))

		got, err := store.GetClient(ctx, client.ID)
		require.NoError(t, err)
		assert.Equal(t, client.Name, got.Name)
		assert.Equal(t, client.RedirectURIs, got.RedirectURIs)
		assert.Equal(t, client.Grants, got.Grants)

		_, err = store.GetClient(ctx, "missing")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("AuthorizationCodeSingleUse", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		code := &models.AuthorizationCode{
			CodeHash:    "code-hash",
			CodePrefix:  "abcdefgh",
			ClientID:    "client-1",
			UserID:      "user-1",
			RedirectURI: "https://a.test/cb",
			Scopes:      "mcp",
			ExpiresAt:   time.Now().Add(time.Minute),
		}
		require.NoError(t, store.CreateAuthorizationCode(ctx, code))

		got, err := store.GetAuthorizationCodeByHash(ctx, "code-hash")
		require.NoError(t, err)
		assert.False(t, got.IsUsed())

		require.NoError(t, store.MarkAuthorizationCodeUsed(ctx, got.ID, time.Now()))
		assert.ErrorIs(t, store.MarkAuthorizationCodeUsed(ctx, got.ID, time.Now()), ErrAuthCodeAlreadyUsed)

		got, err = store.GetAuthorizationCodeByHash(ctx, "code-hash")
		require.NoError(t, err)
		assert.True(t, got.IsUsed())
	})

	t.Run("AuthorizationCodeConcurrentRedemption", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		code := &models.AuthorizationCode{
			CodeHash: "race", CodePrefix: "race", ClientID: "c", UserID: "u",
			RedirectURI: "https://a.test/cb", Scopes: "mcp", ExpiresAt: time.Now().Add(time.Minute),
		}
		require.NoError(t, store.CreateAuthorizationCode(ctx, code))

		const workers = 8
		var wg sync.WaitGroup
		results := make(chan error, workers)
		for range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results <- store.MarkAuthorizationCodeUsed(ctx, code.ID, time.Now())
			}()
		}
		wg.Wait()
		close(results)

		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
			} else {
				assert.ErrorIs(t, err, ErrAuthCodeAlreadyUsed)
			}
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("DeleteStaleAuthorizationCodes", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		expired := &models.AuthorizationCode{
			CodeHash: "old", CodePrefix: "old", ClientID: "c", UserID: "u",
			RedirectURI: "x", Scopes: "mcp", ExpiresAt: time.Now().Add(-time.Hour),
		}
		fresh := &models.AuthorizationCode{
			CodeHash: "new", CodePrefix: "new", ClientID: "c", UserID: "u",
			RedirectURI: "x", Scopes: "mcp", ExpiresAt: time.Now().Add(time.Hour),
		}
		require.NoError(t, store.CreateAuthorizationCode(ctx, expired))
		require.NoError(t, store.CreateAuthorizationCode(ctx, fresh))

		n, err := store.DeleteStaleAuthorizationCodes(ctx, time.Now())
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = store.GetAuthorizationCodeByHash(ctx, "new")
		assert.NoError(t, err)
	})

	t.Run("TokenPairRevocation", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		pairID := uuid.New().String()
		access := newTestToken(pairID, models.TokenCategoryAccess, time.Now().Add(time.Hour))
		refresh := newTestToken(pairID, models.TokenCategoryRefresh, time.Now().Add(24*time.Hour))
		require.NoError(t, store.CreateTokens(ctx, access, refresh))

		n, err := store.RevokeTokenPair(ctx, pairID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		got, err := store.GetTokenByHash(ctx, access.TokenHash)
		require.NoError(t, err)
		assert.False(t, got.IsActive())
	})

	t.Run("ReissueTokenPair", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		oldPair := uuid.New().String()
		access := newTestToken(oldPair, models.TokenCategoryAccess, time.Now().Add(time.Hour))
		refresh := newTestToken(oldPair, models.TokenCategoryRefresh, time.Now().Add(24*time.Hour))
		require.NoError(t, store.CreateTokens(ctx, access, refresh))

		newPair := uuid.New().String()
		newAccess := newTestToken(newPair, models.TokenCategoryAccess, time.Now().Add(time.Hour))
		newRefresh := newTestToken(newPair, models.TokenCategoryRefresh, time.Now().Add(24*time.Hour))
		require.NoError(t, store.ReissueTokenPair(ctx, refresh, newAccess, newRefresh))

		old, err := store.GetTokenByHash(ctx, access.TokenHash)
		require.NoError(t, err)
		assert.False(t, old.IsActive())

		// A second rotation with the same refresh token loses.
		another := newTestToken(uuid.New().String(), models.TokenCategoryAccess, time.Now().Add(time.Hour))
		assert.ErrorIs(t, store.ReissueTokenPair(ctx, refresh, another), ErrTokenNotActive)
	})

	t.Run("RotateAccessToken", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		pairID := uuid.New().String()
		access := newTestToken(pairID, models.TokenCategoryAccess, time.Now().Add(time.Hour))
		refresh := newTestToken(pairID, models.TokenCategoryRefresh, time.Now().Add(24*time.Hour))
		require.NoError(t, store.CreateTokens(ctx, access, refresh))

		next := newTestToken(pairID, models.TokenCategoryAccess, time.Now().Add(time.Hour))
		require.NoError(t, store.RotateAccessToken(ctx, refresh, next, time.Now()))

		old, err := store.GetTokenByHash(ctx, access.TokenHash)
		require.NoError(t, err)
		assert.False(t, old.IsActive())

		kept, err := store.GetTokenByHash(ctx, refresh.TokenHash)
		require.NoError(t, err)
		assert.True(t, kept.IsActive())
		assert.NotNil(t, kept.LastUsedAt)

		count, err := store.CountActiveTokensByCategory(ctx, models.TokenCategoryAccess)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("ConnectionUpsertAndCAS", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		conn := &models.AppConnection{
			ID:          uuid.New().String(),
			AppName:     "github",
			OwnerID:     "user-1",
			DisplayName: "GitHub",
			Type:        models.ConnectionTypeOAuth2,
			Status:      models.ConnectionStatusActive,
			Value:       models.EncryptedObject{IV: "01", Data: "aa"},
		}
		require.NoError(t, store.UpsertConnection(ctx, conn))
		assert.Equal(t, int64(1), conn.Version)
		firstID := conn.ID

		replacement := &models.AppConnection{
			ID:          uuid.New().String(),
			AppName:     "github",
			OwnerID:     "user-1",
			DisplayName: "GitHub",
			Type:        models.ConnectionTypeOAuth2,
			Status:      models.ConnectionStatusActive,
			Value:       models.EncryptedObject{IV: "02", Data: "bb"},
		}
		require.NoError(t, store.UpsertConnection(ctx, replacement))
		assert.Equal(t, firstID, replacement.ID)
		assert.Equal(t, int64(2), replacement.Version)

		got, err := store.GetConnection(ctx, firstID, "user-1")
		require.NoError(t, err)
		assert.Equal(t, "bb", got.Value.Data)

		_, err = store.GetConnection(ctx, firstID, "someone-else")
		assert.ErrorIs(t, err, ErrRecordNotFound)

		v, err := store.UpdateConnectionValue(ctx, firstID, 2, models.EncryptedObject{IV: "03", Data: "cc"}, models.ConnectionStatusActive)
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)

		_, err = store.UpdateConnectionValue(ctx, firstID, 2, models.EncryptedObject{IV: "04", Data: "dd"}, models.ConnectionStatusActive)
		assert.ErrorIs(t, err, ErrVersionConflict)

		require.NoError(t, store.UpdateConnectionStatus(ctx, firstID, models.ConnectionStatusError))
		counts, err := store.CountConnectionsByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), counts[models.ConnectionStatusError])

		list, err := store.ListConnections(ctx, "user-1")
		require.NoError(t, err)
		assert.Len(t, list, 1)

		assert.ErrorIs(t, store.DeleteConnection(ctx, firstID, "someone-else"), ErrRecordNotFound)
		require.NoError(t, store.DeleteConnection(ctx, firstID, "user-1"))
	})

	t.Run("AuditLogs", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)

		logs := []*models.AuditLog{
			{ID: uuid.New().String(), EventType: models.EventClientRegistered, Severity: models.SeverityInfo, Action: "a", Success: true, CreatedAt: time.Now().Add(-48 * time.Hour)},
			{ID: uuid.New().String(), EventType: models.EventTokenRevoked, Severity: models.SeverityInfo, Action: "b", Success: true, CreatedAt: time.Now()},
		}
		require.NoError(t, store.CreateAuditLogBatch(ctx, logs))

		n, err := store.DeleteOldAuditLogs(ctx, time.Now().Add(-24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		remaining, err := store.ListAuditLogs(ctx, AuditLogFilter{Limit: 10})
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, models.EventTokenRevoked, remaining[0].EventType)

		filtered, err := store.ListAuditLogs(ctx, AuditLogFilter{EventType: models.EventClientRegistered})
		require.NoError(t, err)
		assert.Empty(t, filtered)
	})

	t.Run("Health", func(t *testing.T) {
		store := createFreshStore(t, driver, pgContainer)
		assert.NoError(t, store.Health(ctx))
	})
}

func TestGormLogsThroughZap(t *testing.T) {
	core, observed := observer.New(zapcore.DebugLevel)
	s, err := New(context.Background(), "sqlite", ":memory:", getTestConfig(), zap.New(core))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	gormEntries := func() []observer.LoggedEntry {
		return observed.Filter(func(e observer.LoggedEntry) bool {
			return e.LoggerName == "gorm"
		}).All()
	}

	_, err = s.GetUserByID(context.Background(), uuid.New().String())
	require.ErrorIs(t, err, ErrRecordNotFound)
	assert.Empty(t, gormEntries(), "a missed lookup is not logged")

	require.Error(t, s.DB().Exec("SELECT * FROM no_such_table").Error)
	entries := gormEntries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "no_such_table")
}
