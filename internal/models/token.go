package models

import (
	"time"
)

// Token categories
const (
	TokenCategoryAccess  = "access"
	TokenCategoryRefresh = "refresh"
)

// Token statuses
const (
	TokenStatusActive  = "active"
	TokenStatusRevoked = "revoked"
)

// AccessToken stores both access and refresh tokens. Tokens minted together
// share a PairID so that revoking one revokes the other.
type AccessToken struct {
	ID            string `gorm:"primaryKey;size:36"`
	TokenHash     string `gorm:"uniqueIndex;not null"`
	RawToken      string `gorm:"-"`                               // In-memory only; never persisted to DB
	TokenCategory string `gorm:"not null;default:'access';index"` // 'access' or 'refresh'
	Status        string `gorm:"not null;default:'active';index"` // 'active' or 'revoked'
	PairID        string `gorm:"not null;index;size:36"`
	UserID        string `gorm:"not null;index"`
	ClientID      string `gorm:"not null;index"`
	Scopes        string `gorm:"not null"` // space-separated scopes
	ExpiresAt     time.Time
	CreatedAt     time.Time
	LastUsedAt    *time.Time
}

func (AccessToken) TableName() string {
	return "access_tokens"
}

func (t *AccessToken) IsExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsActive returns true if token status is 'active'
func (t *AccessToken) IsActive() bool {
	return t.Status == TokenStatusActive
}

// IsRefreshToken returns true if token category is 'refresh'
func (t *AccessToken) IsRefreshToken() bool {
	return t.TokenCategory == TokenCategoryRefresh
}
