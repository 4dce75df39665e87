package handlers

import (
	"net/http"

	"github.com/go-authgate/mcpgate/internal/middleware"
	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ConnectionHandler exposes the caller's third-party connections. The owner
// is always the authenticated user, whether by session or bearer token.
type ConnectionHandler struct {
	connectionService *services.ConnectionService
	log               *zap.Logger
}

func NewConnectionHandler(cs *services.ConnectionService, log *zap.Logger) *ConnectionHandler {
	return &ConnectionHandler{connectionService: cs, log: log.Named("connection")}
}

type upsertConnectionRequest struct {
	AppName      string                `json:"appName" binding:"required"`
	DisplayName  string                `json:"displayName"`
	Type         models.ConnectionType `json:"type"`
	Code         string                `json:"code"`
	CodeVerifier string                `json:"codeVerifier"`
	RedirectURL  string                `json:"redirectUrl"`
	Scope        string                `json:"scope"`
	Props        map[string]any        `json:"props"`
	SecretText   string                `json:"secretText"`
}

// List handles GET /api/connections.
func (h *ConnectionHandler) List(c *gin.Context) {
	conns, err := h.connectionService.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": conns})
}

// Upsert handles POST /api/connections. OAUTH2 connections are claimed with
// the authorization code the user obtained from the app.
func (h *ConnectionHandler) Upsert(c *gin.Context) {
	var req upsertConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		oauthError(c, http.StatusBadRequest, errInvalidRequest, "appName is required")
		return
	}

	conn, err := h.connectionService.Upsert(c.Request.Context(), services.UpsertParams{
		OwnerID:      middleware.UserID(c),
		AppName:      req.AppName,
		DisplayName:  req.DisplayName,
		Type:         req.Type,
		Code:         req.Code,
		CodeVerifier: req.CodeVerifier,
		RedirectURL:  req.RedirectURL,
		Scope:        req.Scope,
		Props:        req.Props,
		SecretText:   req.SecretText,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": services.Sanitize(conn)})
}

// Get handles GET /api/connections/:id. Expired OAuth2 tokens are refreshed
// before the connection is returned.
func (h *ConnectionHandler) Get(c *gin.Context) {
	conn, err := h.connectionService.GetSanitized(c.Request.Context(), c.Param("id"), middleware.UserID(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": conn})
}

// Delete handles DELETE /api/connections/:id.
func (h *ConnectionHandler) Delete(c *gin.Context) {
	if err := h.connectionService.Delete(c.Request.Context(), c.Param("id"), middleware.UserID(c)); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
