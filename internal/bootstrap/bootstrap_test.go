package bootstrap

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/mocks"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/util"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

const (
	testEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"
	testAdminPassword = "admin-password-for-tests"
	testRedirectURI   = "https://assistant.test/callback"
)

func testConfig(appsPath string) *config.Config {
	return &config.Config{
		ServerAddr:             ":0",
		BaseURL:                "http://mcpgate.test",
		Environment:            "test",
		LogLevel:               "debug",
		SessionSecret:          "test-session-secret",
		SessionMaxAge:          3600,
		DatabaseDriver:         "sqlite",
		DatabaseDSN:            ":memory:",
		DBInitTimeout:          10 * time.Second,
		DefaultAdminPassword:   testAdminPassword,
		AuthCodeExpiration:     10 * time.Minute,
		AccessTokenExpiration:  time.Hour,
		RefreshTokenExpiration: 24 * time.Hour,
		RefreshTokenRotation:   config.RotationReissue,
		PKCERequiredForPublic:  true,
		SupportedScopes:        []string{"mcp", "connections:read", "connections:write"},
		EncryptionKey:          testEncryptionKey,
		AppsConfigPath:         appsPath,
		OAuthTimeout:           5 * time.Second,
		RedisConnTimeout:       time.Second,
		EnableRateLimit:        true,
		RateLimitStore:         config.RateLimitStoreMemory,
		TokenRateLimit:         100,
		RegisterRateLimit:      100,
		ClientCacheType:        config.ClientCacheTypeMemory,
		ClientCacheTTL:         time.Minute,
		CleanupInterval:        time.Hour,
		EnableAuditLogging:     true,
		AuditLogBufferSize:     100,
	}
}

func writeApps(t *testing.T, tokenURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apps.yaml")
	raw := "apps:\n" +
		"  - name: github\n" +
		"    displayName: GitHub\n" +
		"    clientId: gh-client\n" +
		"    clientSecret: gh-secret\n" +
		"    authUrl: https://github.test/login/oauth/authorize\n" +
		"    tokenUrl: " + tokenURL + "\n" +
		"    scope: [repo]\n" +
		"  - name: openai\n" +
		"    authType: SECRET_TEXT\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))
	return path
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *config.Config)
		errorMsg string
	}{
		{"valid", func(c *config.Config) {}, ""},
		{"bad key", func(c *config.Config) { c.EncryptionKey = "abc" }, "ENCRYPTION_KEY"},
		{"postgres without dsn", func(c *config.Config) {
			c.DatabaseDriver = "postgres"
			c.DatabaseDSN = ""
		}, "DATABASE_DSN is required"},
		{"postgres with dsn", func(c *config.Config) {
			c.DatabaseDriver = "postgres"
			c.DatabaseDSN = "postgres://localhost/mcpgate"
		}, ""},
		{"unknown driver", func(c *config.Config) { c.DatabaseDriver = "mysql" }, "invalid DATABASE_DRIVER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("apps.yaml")
			tt.mutate(cfg)
			err := validateConfiguration(cfg)
			if tt.errorMsg == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorMsg)
		})
	}
}

func TestInitializeRedisClient(t *testing.T) {
	cfg := testConfig("")
	client, err := initializeRedisClient(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, client)

	mr := miniredis.RunT(t)
	cfg.RedisAddr = mr.Addr()
	client, err = initializeRedisClient(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.NoError(t, client.Close())

	mr.Close()
	_, err = initializeRedisClient(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestInitializeClientCache(t *testing.T) {
	cfg := testConfig("")
	c, err := initializeClientCache(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, c.Health(context.Background()))
	assert.NoError(t, c.Close())

	mr := miniredis.RunT(t)
	cfg.ClientCacheType = config.ClientCacheTypeRedis
	cfg.RedisAddr = mr.Addr()
	c, err = initializeClientCache(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "c1", models.OAuthClient{ID: "c1"}, time.Minute))
	assert.True(t, mr.Exists(clientCachePrefix+"c1"))
}

func TestSetupRateLimiting(t *testing.T) {
	gin.SetMode(gin.TestMode)

	serve := func(h gin.HandlerFunc, n int) int {
		r := gin.New()
		r.Use(util.IPMiddleware())
		r.POST("/token", h, func(c *gin.Context) { c.Status(http.StatusOK) })
		var last int
		for range n {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/token", nil)
			req.RemoteAddr = "192.0.2.1:1234"
			r.ServeHTTP(w, req)
			last = w.Code
		}
		return last
	}

	t.Run("disabled", func(t *testing.T) {
		cfg := testConfig("")
		cfg.EnableRateLimit = false
		cfg.TokenRateLimit = 1
		limiters, err := setupRateLimiting(cfg, nil, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, serve(limiters.token, 3))
	})

	t.Run("memory", func(t *testing.T) {
		cfg := testConfig("")
		cfg.TokenRateLimit = 2
		limiters, err := setupRateLimiting(cfg, nil, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, http.StatusTooManyRequests, serve(limiters.token, 3))
	})

	t.Run("redis without client", func(t *testing.T) {
		cfg := testConfig("")
		cfg.RateLimitStore = config.RateLimitStoreRedis
		_, err := setupRateLimiting(cfg, nil, zap.NewNop())
		require.Error(t, err)
	})

	t.Run("invalid limit", func(t *testing.T) {
		cfg := testConfig("")
		cfg.RegisterRateLimit = 0
		_, err := setupRateLimiting(cfg, nil, zap.NewNop())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "register")
	})
}

func TestCreateHTTPServer(t *testing.T) {
	cfg := testConfig("")
	srv := createHTTPServer(cfg, http.NewServeMux())
	assert.Equal(t, ":0", srv.Addr)
	assert.Equal(t, 10*time.Second, srv.ReadHeaderTimeout)
	assert.Greater(t, srv.WriteTimeout, 3*cfg.OAuthTimeout)
}

func TestGinModeMap(t *testing.T) {
	assert.Equal(t, gin.ReleaseMode, ginModeMap[true])
	assert.Equal(t, gin.DebugMode, ginModeMap[false])
}

func TestErrorLogger(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e := newErrorLogger(zaptest.NewLogger(t))
	e.now = func() time.Time { return now }

	assert.True(t, e.logIfNeeded("count_access_tokens", errors.New("boom")))
	assert.False(t, e.logIfNeeded("count_access_tokens", errors.New("boom")))
	assert.True(t, e.logIfNeeded("count_connections", errors.New("boom")))

	now = now.Add(6 * time.Minute)
	assert.True(t, e.logIfNeeded("count_access_tokens", errors.New("boom")))
}

type fakeHousekeeping struct {
	cutoffs map[string]time.Time
	fail    string
}

func (f *fakeHousekeeping) record(name string, cutoff time.Time) (int64, error) {
	if f.fail == name {
		return 0, errors.New("db down")
	}
	f.cutoffs[name] = cutoff
	return 1, nil
}

func (f *fakeHousekeeping) DeleteStaleAuthorizationCodes(_ context.Context, cutoff time.Time) (int64, error) {
	return f.record("codes", cutoff)
}

func (f *fakeHousekeeping) DeleteExpiredTokens(_ context.Context, cutoff time.Time) (int64, error) {
	return f.record("tokens", cutoff)
}

func (f *fakeHousekeeping) DeleteOldAuditLogs(_ context.Context, cutoff time.Time) (int64, error) {
	return f.record("audit", cutoff)
}

func TestRunCleanup(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := testConfig("")
	cfg.AuditLogRetention = 30 * 24 * time.Hour

	db := &fakeHousekeeping{cutoffs: map[string]time.Time{}, fail: "tokens"}
	runCleanup(context.Background(), cfg, db, now, zaptest.NewLogger(t))

	assert.Equal(t, now.Add(-10*time.Minute), db.cutoffs["codes"])
	assert.NotContains(t, db.cutoffs, "tokens")
	assert.Equal(t, now.Add(-30*24*time.Hour), db.cutoffs["audit"])

	cfg.AuditLogRetention = 0
	db = &fakeHousekeeping{cutoffs: map[string]time.Time{}}
	runCleanup(context.Background(), cfg, db, now, zaptest.NewLogger(t))
	assert.Equal(t, now, db.cutoffs["tokens"])
	assert.NotContains(t, db.cutoffs, "audit")
}

type fakeGaugeStore struct {
	tokens      map[string]int64
	connections map[models.ConnectionStatus]int64
	tokenErr    error
}

func (f *fakeGaugeStore) CountActiveTokensByCategory(_ context.Context, category string) (int64, error) {
	if f.tokenErr != nil && category == models.TokenCategoryRefresh {
		return 0, f.tokenErr
	}
	return f.tokens[category], nil
}

func (f *fakeGaugeStore) CountConnectionsByStatus(context.Context) (map[models.ConnectionStatus]int64, error) {
	return f.connections, nil
}

func TestUpdateGaugeMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	recorder := mocks.NewMockRecorder(ctrl)

	db := &fakeGaugeStore{
		tokens:      map[string]int64{models.TokenCategoryAccess: 7},
		connections: map[models.ConnectionStatus]int64{models.ConnectionStatusActive: 3},
		tokenErr:    errors.New("timeout"),
	}

	recorder.EXPECT().SetActiveTokensCount(models.TokenCategoryAccess, 7)
	recorder.EXPECT().RecordDatabaseQueryError("count_refresh_tokens")
	recorder.EXPECT().SetConnectionsCount("ACTIVE", 3)
	recorder.EXPECT().SetConnectionsCount("MISSING", 0)
	recorder.EXPECT().SetConnectionsCount("ERROR", 0)

	updateGaugeMetrics(context.Background(), db, recorder, newErrorLogger(zap.NewNop()))
}

// The full authorization code flow followed by a connection and an MCP
// call, all through the production router.
func TestApplicationEndToEnd(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"AT1","refresh_token":"RT1","expires_in":3600,"token_type":"Bearer"}`))
	}))
	t.Cleanup(upstream.Close)

	cfg := testConfig(writeApps(t, upstream.URL+"/token"))
	app, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(app.Close)
	gin.SetMode(gin.TestMode)

	do := func(method, target string, body string, mutate func(*http.Request)) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		if mutate != nil {
			mutate(req)
		}
		w := httptest.NewRecorder()
		app.Router.ServeHTTP(w, req)
		return w
	}
	jsonBody := func(r *http.Request) { r.Header.Set("Content-Type", "application/json") }
	decode := func(w *httptest.ResponseRecorder) map[string]any {
		var out map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
		return out
	}

	w := do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(w)["status"])

	w = do(http.MethodGet, "/.well-known/oauth-authorization-server", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://mcpgate.test/api/oauth/token", decode(w)["token_endpoint"])

	// Anonymous MCP calls are pointed at the resource metadata.
	w = do(http.MethodPost, "/mcp", `{}`, jsonBody)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), "resource_metadata=")

	// Register a confidential client.
	w = do(http.MethodPost, "/api/oauth/register",
		`{"client_name":"Desktop Assistant","redirect_uris":["`+testRedirectURI+`"]}`, jsonBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reg := decode(w)
	clientID, _ := reg["client_id"].(string)
	clientSecret, _ := reg["client_secret"].(string)
	require.NotEmpty(t, clientID)
	require.NotEmpty(t, clientSecret)

	// Sign in as the seeded admin.
	w = do(http.MethodPost, "/api/auth/login",
		`{"username":"admin","password":"`+testAdminPassword+`"}`, jsonBody)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cookies := w.Result().Cookies()
	withSession := func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}

	// Authorize with PKCE.
	verifier := strings.Repeat("v", 43)
	params := url.Values{
		"client_id":             {clientID},
		"redirect_uri":          {testRedirectURI},
		"response_type":         {"code"},
		"state":                 {"s1"},
		"code_challenge":        {util.S256Challenge(verifier)},
		"code_challenge_method": {"S256"},
	}
	w = do(http.MethodGet, "/authorize?"+params.Encode(), "", withSession)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	csrf, _ := decode(w)["csrf_token"].(string)
	require.NotEmpty(t, csrf)
	if fresh := w.Result().Cookies(); len(fresh) > 0 {
		cookies = fresh
	}

	// Approve on the consent screen.
	params.Set("csrf_token", csrf)
	params.Set("action", "approve")
	w = do(http.MethodPost, "/authorize", params.Encode(), func(r *http.Request) {
		withSession(r)
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	})
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)
	assert.Equal(t, "s1", loc.Query().Get("state"))

	// Exchange the code.
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {testRedirectURI},
		"code_verifier": {verifier},
	}
	w = do(http.MethodPost, "/api/oauth/token", form.Encode(), func(r *http.Request) {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.SetBasicAuth(clientID, clientSecret)
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	accessToken, _ := decode(w)["access_token"].(string)
	require.NotEmpty(t, accessToken)
	bearer := func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+accessToken)
		r.Header.Set("Content-Type", "application/json")
		r.Header.Set("Accept", "application/json, text/event-stream")
	}

	// Connect GitHub with the access token.
	w = do(http.MethodPost, "/api/connections",
		`{"appName":"github","code":"good-code","redirectUrl":"https://app.test/cb"}`, bearer)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotContains(t, w.Body.String(), "RT1")

	// The MCP tool sees the same connection, sanitized.
	w = do(http.MethodPost, "/mcp",
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"list_connections","arguments":{}}}`, bearer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `\"access_token\":\"AT1\"`)
	assert.NotContains(t, w.Body.String(), "RT1")

	// Revoking the token closes both surfaces.
	w = do(http.MethodPost, "/api/oauth/revoke", url.Values{"token": {accessToken}}.Encode(), func(r *http.Request) {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		r.SetBasicAuth(clientID, clientSecret)
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(http.MethodGet, "/api/connections", "", bearer)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(http.MethodPost, "/mcp", `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`, bearer)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// The admin can read the audit trail once it is flushed.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.Services.audit.Shutdown(ctx))

	w = do(http.MethodGet, "/api/admin/audit", "", withSession)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(w)["data"])
}

func TestNewRejectsMissingCatalog(t *testing.T) {
	cfg := testConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "app catalog")
}
