package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/services"

	"github.com/gin-gonic/gin"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeConnections struct {
	conns map[string]*models.Connection
	err   error
}

func (f *fakeConnections) List(_ context.Context, ownerID string) ([]*models.Connection, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Connection
	for _, c := range f.conns {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConnections) GetSanitized(_ context.Context, id, ownerID string) (*models.Connection, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.conns[id]
	if !ok || c.OwnerID != ownerID {
		return nil, core.NewError(core.ErrNotFound, "connection not found")
	}
	return services.Sanitize(c), nil
}

func newFake() *fakeConnections {
	return &fakeConnections{conns: map[string]*models.Connection{
		"c1": {
			ID:      "c1",
			OwnerID: "user-1",
			AppName: "github",
			Type:    models.ConnectionTypeOAuth2,
			Status:  models.ConnectionStatusActive,
			Value: &models.OAuth2Value{
				Type:         models.ConnectionTypeOAuth2,
				AccessToken:  "AT1",
				RefreshToken: "RT1",
				ClientSecret: "app-secret",
			},
		},
	}}
}

func callTool(name string, args map[string]any) mcpgo.CallToolRequest {
	var req mcpgo.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := mcpgo.AsTextContent(res.Content[0])
	require.True(t, ok)
	return text.Text
}

func TestGetConnectionTool(t *testing.T) {
	s := NewServer(newFake(), "test", zaptest.NewLogger(t))
	ctx := WithUserID(context.Background(), "user-1")

	res, err := s.handleGetConnection(ctx, callTool("get_connection", map[string]any{"id": "c1"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var conn map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &conn))
	value := conn["value"].(map[string]any)
	assert.Equal(t, "AT1", value["access_token"])
	assert.NotContains(t, value, "refresh_token")
	assert.NotContains(t, value, "client_secret")

	tests := []struct {
		name string
		ctx  context.Context
		args map[string]any
		want string
	}{
		{"no user", context.Background(), map[string]any{"id": "c1"}, "unauthenticated"},
		{"missing id", ctx, map[string]any{}, "id argument is required"},
		{"other owner", WithUserID(context.Background(), "user-2"), map[string]any{"id": "c1"}, "connection not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.handleGetConnection(tt.ctx, callTool("get_connection", tt.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), tt.want)
		})
	}
}

func TestListConnectionsTool(t *testing.T) {
	fake := newFake()
	s := NewServer(fake, "test", zaptest.NewLogger(t))

	res, err := s.handleListConnections(WithUserID(context.Background(), "user-1"), callTool("list_connections", nil))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), `"id":"c1"`)

	res, err = s.handleListConnections(WithUserID(context.Background(), "user-2"), callTool("list_connections", nil))
	require.NoError(t, err)
	assert.Equal(t, "[]", resultText(t, res))

	fake.err = errors.New("db down")
	res, err = s.handleListConnections(WithUserID(context.Background(), "user-1"), callTool("list_connections", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "internal error", resultText(t, res))
}

func TestToolErrors(t *testing.T) {
	s := NewServer(newFake(), "test", zaptest.NewLogger(t))
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"exchange", &core.OAuth2ExchangeError{App: "github", StatusCode: 400, Code: "invalid_grant"}, "invalid_grant"},
		{"decryption", core.NewError(core.ErrDecryption, "bad tag"), "reconnect"},
		{"validation", core.Validationf("no refresh token"), "no refresh token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := s.toolError("get_connection", tt.err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), tt.want)
		})
	}
}

func TestGinHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer(newFake(), "test", zaptest.NewLogger(t))

	r := gin.New()
	r.POST("/mcp", func(c *gin.Context) {
		c.Set("user_id", "user-1")
		c.Next()
	}, s.GinHandler())

	body := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"get_connection","arguments":{"id":"c1"}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `\"access_token\":\"AT1\"`)
	assert.NotContains(t, w.Body.String(), "RT1")

	list := `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`
	req = httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(list))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "list_connections")
	assert.Contains(t, w.Body.String(), "get_connection")
}
