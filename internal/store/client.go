package store

import (
	"context"

	"github.com/go-authgate/mcpgate/internal/models"
)

func (s *Store) CreateClient(ctx context.Context, client *models.OAuthClient) error {
	return s.db.WithContext(ctx).Create(client).Error
}

func (s *Store) GetClient(ctx context.Context, clientID string) (*models.OAuthClient, error) {
	var client models.OAuthClient
	if err := s.db.WithContext(ctx).Where("id = ?", clientID).First(&client).Error; err != nil {
		return nil, notFound(err)
	}
	return &client, nil
}

func (s *Store) CountClients(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.OAuthClient{}).Count(&count).Error
	return count, err
}
