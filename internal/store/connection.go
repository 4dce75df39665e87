package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-authgate/mcpgate/internal/models"

	"gorm.io/gorm"
)

// UpsertConnection inserts conn, or replaces the value of the existing row with
// the same (owner, app, display name). conn is updated with the stored ID and
// version.
func (s *Store) UpsertConnection(ctx context.Context, conn *models.AppConnection) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.AppConnection
		err := tx.Where("owner_id = ? AND app_name = ? AND display_name = ?",
			conn.OwnerID, conn.AppName, conn.DisplayName).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			conn.Version = 1
			return tx.Create(conn).Error
		}
		if err != nil {
			return err
		}

		conn.ID = existing.ID
		conn.CreatedAt = existing.CreatedAt
		conn.Version = existing.Version + 1
		return tx.Model(&models.AppConnection{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"type":       conn.Type,
				"status":     conn.Status,
				"value":      conn.Value,
				"version":    conn.Version,
				"updated_at": time.Now(),
			}).Error
	})
}

// GetConnection fetches a connection scoped to its owner.
func (s *Store) GetConnection(ctx context.Context, id, ownerID string) (*models.AppConnection, error) {
	var conn models.AppConnection
	if err := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&conn).Error; err != nil {
		return nil, notFound(err)
	}
	return &conn, nil
}

func (s *Store) ListConnections(ctx context.Context, ownerID string) ([]models.AppConnection, error) {
	var conns []models.AppConnection
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&conns).Error
	return conns, err
}

// UpdateConnectionValue writes a new sealed value if the row is still at
// expectedVersion. It returns the new version, or ErrVersionConflict when
// another writer got there first.
func (s *Store) UpdateConnectionValue(
	ctx context.Context,
	id string,
	expectedVersion int64,
	value models.EncryptedObject,
	status models.ConnectionStatus,
) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.AppConnection{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"value":      value,
			"status":     status,
			"version":    expectedVersion + 1,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, ErrVersionConflict
	}
	return expectedVersion + 1, nil
}

// UpdateConnectionStatus changes status without touching the value or version.
func (s *Store) UpdateConnectionStatus(
	ctx context.Context,
	id string,
	status models.ConnectionStatus,
) error {
	return s.db.WithContext(ctx).
		Model(&models.AppConnection{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now()}).Error
}

func (s *Store) DeleteConnection(ctx context.Context, id, ownerID string) error {
	result := s.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&models.AppConnection{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// CountConnectionsByStatus returns the number of connections per status.
func (s *Store) CountConnectionsByStatus(ctx context.Context) (map[models.ConnectionStatus]int64, error) {
	var rows []struct {
		Status models.ConnectionStatus
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.AppConnection{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[models.ConnectionStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
