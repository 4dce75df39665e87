package store

import (
	"context"
	"time"

	"github.com/go-authgate/mcpgate/internal/models"

	"gorm.io/gorm"
)

// CreateTokens inserts the given tokens in one transaction.
func (s *Store) CreateTokens(ctx context.Context, tokens ...*models.AccessToken) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, t := range tokens {
			if err := tx.Create(t).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetTokenByHash looks a token up by SHA256(rawToken), in either category.
func (s *Store) GetTokenByHash(ctx context.Context, tokenHash string) (*models.AccessToken, error) {
	var token models.AccessToken
	if err := s.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&token).Error; err != nil {
		return nil, notFound(err)
	}
	return &token, nil
}

// RevokeTokenPair revokes every active token minted with pairID.
func (s *Store) RevokeTokenPair(ctx context.Context, pairID string) (int64, error) {
	result := s.db.WithContext(ctx).
		Model(&models.AccessToken{}).
		Where("pair_id = ? AND status = ?", pairID, models.TokenStatusActive).
		Update("status", models.TokenStatusRevoked)
	return result.RowsAffected, result.Error
}

// ReissueTokenPair revokes the pair that refresh belongs to and inserts the
// replacement tokens. It fails with ErrTokenNotActive when a concurrent
// request already consumed refresh.
func (s *Store) ReissueTokenPair(
	ctx context.Context,
	refresh *models.AccessToken,
	tokens ...*models.AccessToken,
) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.AccessToken{}).
			Where("id = ? AND status = ?", refresh.ID, models.TokenStatusActive).
			Update("status", models.TokenStatusRevoked)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTokenNotActive
		}

		if err := tx.Model(&models.AccessToken{}).
			Where("pair_id = ? AND status = ?", refresh.PairID, models.TokenStatusActive).
			Update("status", models.TokenStatusRevoked).Error; err != nil {
			return err
		}

		for _, t := range tokens {
			if err := tx.Create(t).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// RotateAccessToken keeps refresh and replaces the access tokens of its pair
// with access. The refresh token's last_used_at is bumped.
func (s *Store) RotateAccessToken(
	ctx context.Context,
	refresh *models.AccessToken,
	access *models.AccessToken,
	now time.Time,
) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.AccessToken{}).
			Where("id = ? AND status = ?", refresh.ID, models.TokenStatusActive).
			Update("last_used_at", now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrTokenNotActive
		}

		if err := tx.Model(&models.AccessToken{}).
			Where("pair_id = ? AND token_category = ? AND status = ?",
				refresh.PairID, models.TokenCategoryAccess, models.TokenStatusActive).
			Update("status", models.TokenStatusRevoked).Error; err != nil {
			return err
		}

		return tx.Create(access).Error
	})
}

// DeleteExpiredTokens removes tokens that expired before the cutoff.
func (s *Store) DeleteExpiredTokens(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&models.AccessToken{})
	return result.RowsAffected, result.Error
}

// CountActiveTokensByCategory counts unexpired active tokens of a category.
func (s *Store) CountActiveTokensByCategory(ctx context.Context, category string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.AccessToken{}).
		Where("token_category = ? AND status = ? AND expires_at > ?",
			category, models.TokenStatusActive, time.Now()).
		Count(&count).Error
	return count, err
}
