package handlers

import (
	"net/http"

	"github.com/go-authgate/mcpgate/internal/apps"

	"github.com/gin-gonic/gin"
)

// AppHandler lists the catalog so a dashboard can start an upstream
// authorization. Client secrets are never exposed.
type AppHandler struct {
	catalog *apps.Catalog
}

func NewAppHandler(catalog *apps.Catalog) *AppHandler {
	return &AppHandler{catalog: catalog}
}

// List handles GET /api/apps.
func (h *AppHandler) List(c *gin.Context) {
	out := make([]gin.H, 0, len(h.catalog.Names()))
	for _, name := range h.catalog.Names() {
		app, err := h.catalog.Lookup(name)
		if err != nil {
			continue
		}
		entry := gin.H{
			"name":        app.Name,
			"displayName": app.DisplayName,
			"authType":    app.AuthType,
		}
		if app.ClientID != "" {
			entry["clientId"] = app.ClientID
			entry["authUrl"] = app.AuthURL
			entry["pkce"] = app.PKCE
			entry["scope"] = app.Scope
		}
		out = append(out, entry)
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}
