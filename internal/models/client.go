package models

import (
	"context"
	"encoding/base32"
	"time"

	"github.com/go-authgate/mcpgate/internal/util"

	"golang.org/x/crypto/bcrypt"
)

// Token endpoint authentication methods (RFC 7591 §2)
const (
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
	AuthMethodNone              = "none"
)

var base32Lower = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// OAuthClient is a consumer of this server registered through dynamic client
// registration. It is immutable once issued.
type OAuthClient struct {
	ID                      string `gorm:"primaryKey;size:36"`
	SecretHash              string `gorm:"not null"` // bcrypt; empty for public clients
	Name                    string `gorm:"not null"`
	URI                     string
	RedirectURIs            StringArray `gorm:"type:json"`
	Grants                  StringArray `gorm:"type:json"`
	Scope                   StringArray `gorm:"type:json"`
	TokenEndpointAuthMethod string      `gorm:"not null;default:'client_secret_basic'"`
	AccessTokenLifetime     int         // seconds, 0 = server default
	RefreshTokenLifetime    int         // seconds, 0 = server default
	CreatedAt               time.Time
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

// IsPublic reports whether the client authenticates without a secret.
func (c *OAuthClient) IsPublic() bool {
	return c.TokenEndpointAuthMethod == AuthMethodNone
}

// AllowsGrant reports whether grant was accepted at registration.
func (c *OAuthClient) AllowsGrant(grant string) bool {
	return c.Grants.Contains(grant)
}

// HasRedirectURI reports whether uri exactly matches a registered redirect URI.
func (c *OAuthClient) HasRedirectURI(uri string) bool {
	return c.RedirectURIs.Contains(uri)
}

// GenerateSecret creates a new client secret, stores its bcrypt hash and
// returns the plaintext.
func (c *OAuthClient) GenerateSecret(ctx context.Context) (string, error) {
	rBytes, err := util.RandomBytes(32)
	if err != nil {
		return "", err
	}
	// Prefixed so secret scanners can recognise leaked values.
	secret := "mcs_" + base32Lower.EncodeToString(rBytes)

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	c.SecretHash = string(hashed)
	return secret, nil
}

// ValidateSecret compares secret against the stored bcrypt hash.
func (c *OAuthClient) ValidateSecret(secret []byte) bool {
	if c.SecretHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.SecretHash), secret) == nil
}
