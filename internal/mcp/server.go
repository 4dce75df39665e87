// Package mcp exposes the caller's connections to MCP clients over the
// streamable HTTP transport.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-authgate/mcpgate/internal/core"
	"github.com/go-authgate/mcpgate/internal/middleware"
	"github.com/go-authgate/mcpgate/internal/models"

	"github.com/gin-gonic/gin"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

const serverName = "mcpgate"

// ConnectionReader is the part of the connection manager the tools use.
type ConnectionReader interface {
	List(ctx context.Context, ownerID string) ([]*models.Connection, error)
	GetSanitized(ctx context.Context, id, ownerID string) (*models.Connection, error)
}

type userKey struct{}

// WithUserID returns ctx carrying the authenticated user for tool calls.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserIDFromContext returns the user set by WithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userKey{}).(string)
	return id, ok && id != ""
}

// Server is the MCP endpoint. Authentication happens in front of it; every
// request must reach ServeHTTP with a user in its context.
type Server struct {
	mcpServer   *server.MCPServer
	httpServer  *server.StreamableHTTPServer
	connections ConnectionReader
	log         *zap.Logger
}

func NewServer(connections ConnectionReader, version string, log *zap.Logger) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			serverName,
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
			server.WithInstructions("Read the credentials the user has connected to third-party apps."),
		),
		connections: connections,
		log:         log.Named("mcp"),
	}
	s.registerTools()
	// Stateless: identity comes from the bearer token on every request, so
	// there is no session state worth keeping between calls.
	s.httpServer = server.NewStreamableHTTPServer(s.mcpServer, server.WithStateLess(true))
	return s
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcpgo.NewTool("list_connections",
			mcpgo.WithDescription("List the caller's connections. Secrets that allow minting new tokens are omitted."),
			mcpgo.WithReadOnlyHintAnnotation(true),
		),
		s.handleListConnections,
	)
	s.mcpServer.AddTool(
		mcpgo.NewTool("get_connection",
			mcpgo.WithDescription("Get one connection with a usable credential. Expired OAuth2 tokens are refreshed first."),
			mcpgo.WithString("id",
				mcpgo.Required(),
				mcpgo.Description("Connection ID as returned by list_connections"),
			),
		),
		s.handleGetConnection,
	)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.ServeHTTP(w, r)
}

// GinHandler serves MCP for a request already authenticated by the bearer
// middleware.
func (s *Server) GinHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithUserID(c.Request.Context(), middleware.UserID(c))
		s.ServeHTTP(c.Writer, c.Request.WithContext(ctx))
	}
}

func (s *Server) handleListConnections(
	ctx context.Context,
	_ mcpgo.CallToolRequest,
) (*mcpgo.CallToolResult, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return mcpgo.NewToolResultError("unauthenticated"), nil
	}

	conns, err := s.connections.List(ctx, userID)
	if err != nil {
		return s.toolError("list_connections", err), nil
	}
	if conns == nil {
		conns = []*models.Connection{}
	}
	return jsonResult(conns)
}

func (s *Server) handleGetConnection(
	ctx context.Context,
	request mcpgo.CallToolRequest,
) (*mcpgo.CallToolResult, error) {
	userID, ok := UserIDFromContext(ctx)
	if !ok {
		return mcpgo.NewToolResultError("unauthenticated"), nil
	}
	id, err := request.RequireString("id")
	if err != nil {
		return mcpgo.NewToolResultError("id argument is required"), nil
	}

	conn, err := s.connections.GetSanitized(ctx, id, userID)
	if err != nil {
		return s.toolError("get_connection", err), nil
	}
	return jsonResult(conn)
}

// toolError turns a service error into a tool-level error result. Messages
// of classified errors are safe to show; anything else is logged.
func (s *Server) toolError(tool string, err error) *mcpgo.CallToolResult {
	switch {
	case errors.Is(err, core.ErrNotFound),
		errors.Is(err, core.ErrValidation),
		errors.Is(err, core.ErrExchange):
		return mcpgo.NewToolResultError(err.Error())
	case errors.Is(err, core.ErrDecryption):
		return mcpgo.NewToolResultError("stored credentials could not be decrypted; reconnect the app")
	default:
		s.log.Error("tool call failed", zap.String("tool", tool), zap.Error(err))
		return mcpgo.NewToolResultError("internal error")
	}
}

func jsonResult(v any) (*mcpgo.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcpgo.NewToolResultText(string(data)), nil
}
