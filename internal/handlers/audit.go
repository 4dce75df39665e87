package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-authgate/mcpgate/internal/models"
	"github.com/go-authgate/mcpgate/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxAuditPageSize = 500

// AuditLogReader reads persisted audit entries.
type AuditLogReader interface {
	ListAuditLogs(ctx context.Context, filter store.AuditLogFilter) ([]models.AuditLog, error)
}

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	logs AuditLogReader
	log  *zap.Logger
}

func NewAuditHandler(logs AuditLogReader, log *zap.Logger) *AuditHandler {
	return &AuditHandler{logs: logs, log: log.Named("audit")}
}

// ListAuditLogs handles GET /api/admin/audit. Filters: event_type,
// actor_user_id, severity, since (RFC 3339) and limit.
func (h *AuditHandler) ListAuditLogs(c *gin.Context) {
	filter := store.AuditLogFilter{
		EventType:   models.EventType(c.Query("event_type")),
		ActorUserID: c.Query("actor_user_id"),
		Severity:    models.EventSeverity(c.Query("severity")),
	}

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			oauthError(c, http.StatusBadRequest, errInvalidRequest, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}
	if limit := c.Query("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			oauthError(c, http.StatusBadRequest, errInvalidRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(n, maxAuditPageSize)
	}

	logs, err := h.logs.ListAuditLogs(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}
