package store

import (
	"context"
	"time"

	"github.com/go-authgate/mcpgate/internal/models"
)

// CreateAuditLogBatch inserts a batch of audit entries.
func (s *Store) CreateAuditLogBatch(ctx context.Context, logs []*models.AuditLog) error {
	if len(logs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(logs, 100).Error
}

// AuditLogFilter narrows ListAuditLogs. Zero fields match everything.
type AuditLogFilter struct {
	EventType   models.EventType
	ActorUserID string
	Severity    models.EventSeverity
	Since       time.Time
	Limit       int
}

// ListAuditLogs returns the most recent matching entries, newest first.
func (s *Store) ListAuditLogs(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})
	if filter.EventType != "" {
		query = query.Where("event_type = ?", filter.EventType)
	}
	if filter.ActorUserID != "" {
		query = query.Where("actor_user_id = ?", filter.ActorUserID)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	var logs []models.AuditLog
	err := query.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}

// DeleteOldAuditLogs removes entries older than the cutoff.
func (s *Store) DeleteOldAuditLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	return result.RowsAffected, result.Error
}
