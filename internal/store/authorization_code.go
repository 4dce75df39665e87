package store

import (
	"context"
	"time"

	"github.com/go-authgate/mcpgate/internal/models"
)

func (s *Store) CreateAuthorizationCode(ctx context.Context, code *models.AuthorizationCode) error {
	return s.db.WithContext(ctx).Create(code).Error
}

// GetAuthorizationCodeByHash looks a code up by SHA256(plainCode).
func (s *Store) GetAuthorizationCodeByHash(
	ctx context.Context,
	codeHash string,
) (*models.AuthorizationCode, error) {
	var code models.AuthorizationCode
	if err := s.db.WithContext(ctx).Where("code_hash = ?", codeHash).First(&code).Error; err != nil {
		return nil, notFound(err)
	}
	return &code, nil
}

// MarkAuthorizationCodeUsed consumes a code. The conditional update makes
// redemption atomic: of several concurrent callers exactly one succeeds and
// the rest get ErrAuthCodeAlreadyUsed.
func (s *Store) MarkAuthorizationCodeUsed(ctx context.Context, id uint, usedAt time.Time) error {
	result := s.db.WithContext(ctx).
		Model(&models.AuthorizationCode{}).
		Where("id = ? AND used_at IS NULL", id).
		Update("used_at", usedAt)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAuthCodeAlreadyUsed
	}
	return nil
}

// DeleteStaleAuthorizationCodes removes codes that expired or were consumed
// before the cutoff.
func (s *Store) DeleteStaleAuthorizationCodes(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ? OR (used_at IS NOT NULL AND used_at < ?)", cutoff, cutoff).
		Delete(&models.AuthorizationCode{})
	return result.RowsAffected, result.Error
}
