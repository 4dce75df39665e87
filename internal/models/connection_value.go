package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"
)

// AuthorizationMethod selects how client credentials reach an external token endpoint.
type AuthorizationMethod string

const (
	AuthorizationMethodHeader AuthorizationMethod = "HEADER" // HTTP Basic
	AuthorizationMethodBody   AuthorizationMethod = "BODY"   // client_id/client_secret form fields
)

// ErrValueTypeMismatch is returned when a decrypted value's tag does not match
// the expected connection type.
var ErrValueTypeMismatch = errors.New("connection value type mismatch")

// ConnectionValue is the tagged variant held inside an encrypted connection.
// Implementations: *OAuth2Value, *SecretTextValue, *NoAuthValue.
type ConnectionValue interface {
	ConnectionType() ConnectionType
}

// OAuth2Value holds tokens claimed from an external app.
// ClaimedAt is Unix seconds, ExpiresIn is seconds.
type OAuth2Value struct {
	Type                ConnectionType      `json:"type"`
	AccessToken         string              `json:"access_token"`
	RefreshToken        string              `json:"refresh_token,omitempty"`
	ExpiresIn           int64               `json:"expires_in,omitempty"`
	TokenType           string              `json:"token_type,omitempty"`
	ClaimedAt           int64               `json:"claimed_at"`
	TokenURL            string              `json:"token_url"`
	ClientID            string              `json:"client_id"`
	ClientSecret        string              `json:"client_secret,omitempty"`
	Scope               string              `json:"scope,omitempty"`
	AuthorizationMethod AuthorizationMethod `json:"authorization_method,omitempty"`
	Data                map[string]any      `json:"data,omitempty"`
	Props               map[string]any      `json:"props,omitempty"`
}

func (*OAuth2Value) ConnectionType() ConnectionType { return ConnectionTypeOAuth2 }

// ExpiresAt returns the access token expiry, or the zero time when the
// upstream did not report a lifetime.
func (v *OAuth2Value) ExpiresAt() time.Time {
	if v.ExpiresIn <= 0 {
		return time.Time{}
	}
	return time.Unix(v.ClaimedAt+v.ExpiresIn, 0)
}

// Clone returns a deep copy of v.
func (v *OAuth2Value) Clone() *OAuth2Value {
	out := *v
	out.Data = maps.Clone(v.Data)
	out.Props = maps.Clone(v.Props)
	return &out
}

// SecretTextValue holds a user-supplied API key or token.
type SecretTextValue struct {
	Type       ConnectionType `json:"type"`
	SecretText string         `json:"secret_text"`
}

func (*SecretTextValue) ConnectionType() ConnectionType { return ConnectionTypeSecretText }

// NoAuthValue marks an app that needs no credentials.
type NoAuthValue struct {
	Type ConnectionType `json:"type"`
}

func (*NoAuthValue) ConnectionType() ConnectionType { return ConnectionTypeNoAuth }

// DecodeConnectionValue parses a decrypted payload and checks that its tag
// matches want.
func DecodeConnectionValue(raw []byte, want ConnectionType) (ConnectionValue, error) {
	var envelope struct {
		Type ConnectionType `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode connection value: %w", err)
	}
	if envelope.Type != want {
		return nil, fmt.Errorf("%w: stored %q, row %q", ErrValueTypeMismatch, envelope.Type, want)
	}

	var value ConnectionValue
	switch want {
	case ConnectionTypeOAuth2:
		value = &OAuth2Value{}
	case ConnectionTypeSecretText:
		value = &SecretTextValue{}
	case ConnectionTypeNoAuth:
		value = &NoAuthValue{}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrValueTypeMismatch, want)
	}
	if err := json.Unmarshal(raw, value); err != nil {
		return nil, fmt.Errorf("decode connection value: %w", err)
	}
	return value, nil
}
