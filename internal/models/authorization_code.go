package models

import "time"

// AuthorizationCode is a pending grant issued by /authorize. The plaintext
// code is never stored: CodeHash is its SHA-256 and CodePrefix keeps the
// first characters for log correlation. A code is single-use; UsedAt is set
// by a conditional update so concurrent exchanges cannot both win.
type AuthorizationCode struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	CodeHash   string `gorm:"uniqueIndex;not null"`
	CodePrefix string `gorm:"index;not null;size:8"`

	ClientID    string `gorm:"not null;index"`
	UserID      string `gorm:"not null;index"`
	RedirectURI string `gorm:"not null"`
	Scopes      string `gorm:"not null"`

	// Empty CodeChallenge means the client did not use PKCE.
	CodeChallenge       string `gorm:"default:''"`
	CodeChallengeMethod string `gorm:"default:''"`

	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

func (AuthorizationCode) TableName() string { return "authorization_codes" }

func (a *AuthorizationCode) IsUsed() bool { return a.UsedAt != nil }

func (a *AuthorizationCode) IsExpiredAt(now time.Time) bool { return now.After(a.ExpiresAt) }

// UsesPKCE reports whether the exchange must present a code_verifier.
func (a *AuthorizationCode) UsesPKCE() bool { return a.CodeChallenge != "" }
