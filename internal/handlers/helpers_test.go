package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-authgate/mcpgate/internal/apps"
	"github.com/go-authgate/mcpgate/internal/config"
	"github.com/go-authgate/mcpgate/internal/encryption"
	"github.com/go-authgate/mcpgate/internal/lock"
	"github.com/go-authgate/mcpgate/internal/metrics"
	"github.com/go-authgate/mcpgate/internal/middleware"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/oauthapp"
	"github.com/go-authgate/mcpgate/internal/services"
	"github.com/go-authgate/mcpgate/internal/store"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	testRedirectURI = "https://client.test/callback"
	testPassword    = "correct horse"
)

type testEnv struct {
	cfg         *config.Config
	store       *store.Store
	router      *gin.Engine
	users       *services.UserService
	clients     *services.ClientService
	authz       *services.AuthorizationService
	tokens      *services.TokenService
	connections *services.ConnectionService
	upstream    *httptest.Server
	user        *models.User
}

// newTestEnv wires the services over an in-memory SQLite store and mounts
// every handler on a router with a cookie session. The "github" app's token
// endpoint is a local fake that accepts the code "good-code".
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	log := zap.NewNop()
	m := metrics.NewNoopMetrics()

	cfg := &config.Config{
		BaseURL:                "http://localhost:8080",
		AuthCodeExpiration:     10 * time.Minute,
		AccessTokenExpiration:  time.Hour,
		RefreshTokenExpiration: 24 * time.Hour,
		RefreshTokenRotation:   config.RotationReissue,
		PKCERequiredForPublic:  true,
		SupportedScopes:        []string{"mcp", "connections:read", "connections:write"},
		OAuthTimeout:           5 * time.Second,
		ClientCacheTTL:         time.Minute,
	}

	s, err := store.New(ctx, "sqlite", ":memory:", &config.Config{}, log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	require.NoError(t, err)
	user := &models.User{
		ID:           uuid.New().String(),
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: string(hash),
		Role:         "user",
	}
	require.NoError(t, s.CreateUser(ctx, user))

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"bad code"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"AT1","refresh_token":"RT1","expires_in":3600,"token_type":"Bearer"}`))
	}))
	t.Cleanup(upstream.Close)

	catalog, err := apps.New(
		apps.App{
			Name:         "github",
			DisplayName:  "GitHub",
			AuthType:     models.ConnectionTypeOAuth2,
			ClientID:     "gh-client",
			ClientSecret: "gh-secret",
			AuthURL:      "https://github.test/login/oauth/authorize",
			TokenURL:     upstream.URL + "/token",
			Scope:        []string{"repo"},
		},
		apps.App{Name: "openai", DisplayName: "OpenAI", AuthType: models.ConnectionTypeSecretText},
	)
	require.NoError(t, err)

	codec, err := encryption.NewCodecFromHex(strings.Repeat("ab", 32))
	require.NoError(t, err)

	users := services.NewUserService(s, m, nil, log)
	clients := services.NewClientService(s, cfg, nil, m, nil, log)
	authz := services.NewAuthorizationService(s, clients, cfg, m, nil, log)
	tokens := services.NewTokenService(s, cfg, m, nil, log)
	oauth := oauthapp.NewService(upstream.Client(), m, log)
	connections := services.NewConnectionService(s, codec, catalog, oauth, lock.Local{}, cfg, m, nil, log)

	env := &testEnv{
		cfg:         cfg,
		store:       s,
		users:       users,
		clients:     clients,
		authz:       authz,
		tokens:      tokens,
		connections: connections,
		upstream:    upstream,
		user:        user,
	}
	env.router = env.newRouter(catalog, log)
	return env
}

func (e *testEnv) newRouter(catalog *apps.Catalog, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(sessions.Sessions("mcpgate", cookie.NewStore([]byte("test-session-secret"))))

	metaURL := ProtectedResourceMetadataURL(e.cfg)
	wk := NewWellKnownHandler(e.cfg)
	auth := NewAuthHandler(e.users, e.cfg.BaseURL, log)
	authorize := NewAuthorizationHandler(e.authz, log)
	token := NewTokenHandler(e.tokens, e.authz, e.clients, log)
	client := NewClientHandler(e.clients, log)
	conns := NewConnectionHandler(e.connections, log)
	audit := NewAuditHandler(e.store, log)

	r.GET(PathAuthorizationServerMeta, wk.AuthorizationServer)
	r.GET(PathAuthorizationServerMeta+"/*suffix", wk.AuthorizationServer)
	r.GET(PathProtectedResourceMetadata, wk.ProtectedResource)
	r.GET(PathProtectedResourceMetadata+"/*suffix", wk.ProtectedResource)

	r.POST("/api/auth/login", auth.Login)
	session := r.Group("/api/auth", middleware.RequireAuth(), middleware.CSRFMiddleware())
	session.GET("/me", auth.Me)
	session.POST("/logout", auth.Logout)

	r.GET(PathAuthorize, middleware.RequireAuth(), middleware.CSRFMiddleware(), authorize.Authorize)
	r.POST(PathAuthorize, middleware.RequireAuth(), middleware.CSRFMiddleware(), authorize.Consent)
	r.POST(PathToken, token.Token)
	r.POST(PathRevoke, token.Revoke)
	r.POST(PathRegister, client.Register)
	r.GET("/api/oauth/client", client.Info)

	api := r.Group("/api", middleware.RequireUser(e.tokens, metaURL), middleware.CSRFMiddleware())
	api.GET("/apps", NewAppHandler(catalog).List)
	api.GET("/connections", middleware.RequireScope("connections:read"), conns.List)
	api.POST("/connections", middleware.RequireScope("connections:write"), conns.Upsert)
	api.GET("/connections/:id", middleware.RequireScope("connections:read"), conns.Get)
	api.DELETE("/connections/:id", middleware.RequireScope("connections:write"), conns.Delete)

	r.GET("/api/admin/audit", middleware.RequireAuth(), middleware.RequireAdmin(e.users), audit.ListAuditLogs)
	return r
}

// do sends a request through the router. body may be url.Values (form),
// any other non-nil value (JSON) or nil.
func (e *testEnv) do(
	t *testing.T,
	method, target string,
	body any,
	mutate func(*http.Request),
) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, target, nil)
	case url.Values:
		req = httptest.NewRequest(method, target, strings.NewReader(b.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		req = httptest.NewRequest(method, target, strings.NewReader(string(raw)))
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// login signs alice in and returns her session cookies.
func (e *testEnv) login(t *testing.T) []*http.Cookie {
	t.Helper()
	w := e.do(t, http.MethodPost, "/api/auth/login",
		map[string]string{"username": "alice", "password": testPassword}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return w.Result().Cookies()
}

// mergeCookies overlays fresh Set-Cookie values on the cookies already held.
func mergeCookies(held, fresh []*http.Cookie) []*http.Cookie {
	byName := map[string]*http.Cookie{}
	for _, c := range held {
		byName[c.Name] = c
	}
	for _, c := range fresh {
		byName[c.Name] = c
	}
	out := make([]*http.Cookie, 0, len(byName))
	for _, c := range byName {
		out = append(out, c)
	}
	return out
}

func withCookies(cookies []*http.Cookie) func(*http.Request) {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func withBearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

// register creates a client through the registration endpoint.
func (e *testEnv) register(t *testing.T, method string) (clientID, clientSecret string) {
	t.Helper()
	w := e.do(t, http.MethodPost, PathRegister, map[string]any{
		"client_name":                "Test Assistant",
		"redirect_uris":              []string{testRedirectURI},
		"token_endpoint_auth_method": method,
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	clientID, _ = resp["client_id"].(string)
	clientSecret, _ = resp["client_secret"].(string)
	return clientID, clientSecret
}

// bearerFor mints an access token for alice with the given scopes.
func (e *testEnv) bearerFor(t *testing.T, scopes string) string {
	t.Helper()
	clientID, _ := e.register(t, models.AuthMethodClientSecretBasic)
	client, err := e.clients.GetClient(context.Background(), clientID)
	require.NoError(t, err)
	pair, err := e.tokens.SaveToken(context.Background(), client, e.user.ID, scopes)
	require.NoError(t, err)
	return pair.AccessToken.RawToken
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func newFormContext(form url.Values) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, PathToken, strings.NewReader(form.Encode()))
	c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c, w
}
