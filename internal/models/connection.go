package models

import (
	"database/sql/driver"
	"time"
)

// ConnectionType tags the payload stored inside an AppConnection value.
type ConnectionType string

const (
	ConnectionTypeOAuth2     ConnectionType = "OAUTH2"
	ConnectionTypeSecretText ConnectionType = "SECRET_TEXT"
	ConnectionTypeNoAuth     ConnectionType = "NO_AUTH"
)

// Valid reports whether t is a known connection type.
func (t ConnectionType) Valid() bool {
	switch t {
	case ConnectionTypeOAuth2, ConnectionTypeSecretText, ConnectionTypeNoAuth:
		return true
	}
	return false
}

// ConnectionStatus is the health of a stored connection.
type ConnectionStatus string

const (
	ConnectionStatusActive  ConnectionStatus = "ACTIVE"
	ConnectionStatusMissing ConnectionStatus = "MISSING"
	ConnectionStatusError   ConnectionStatus = "ERROR"
)

// EncryptedObject is a sealed connection value. Only the encryption codec
// interprets it.
type EncryptedObject struct {
	IV   string `json:"iv"`
	Data string `json:"data"`
}

func (e *EncryptedObject) Scan(src any) error {
	var out EncryptedObject
	if _, err := scanJSON("EncryptedObject", src, &out); err != nil {
		return err
	}
	*e = out
	return nil
}

func (e EncryptedObject) Value() (driver.Value, error) {
	type plain EncryptedObject
	return jsonValue(plain(e))
}

// AppConnection is a user's stored credential for one third-party app.
// Version increments on every value write and guards refresh updates.
type AppConnection struct {
	ID          string           `gorm:"primaryKey;size:36"`
	AppName     string           `gorm:"not null;uniqueIndex:idx_conn_owner_app_name"`
	OwnerID     string           `gorm:"not null;index;uniqueIndex:idx_conn_owner_app_name"`
	DisplayName string           `gorm:"not null;uniqueIndex:idx_conn_owner_app_name"`
	Type        ConnectionType   `gorm:"not null;size:20"`
	Status      ConnectionStatus `gorm:"not null;size:20;default:'ACTIVE'"`
	Value       EncryptedObject  `gorm:"type:json;not null"`
	Version     int64            `gorm:"not null;default:1"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (AppConnection) TableName() string {
	return "app_connections"
}

// Connection is an AppConnection with its value decrypted. It is the shape
// returned to API and MCP callers, always after sanitizing.
type Connection struct {
	ID          string           `json:"id"`
	AppName     string           `json:"appName"`
	OwnerID     string           `json:"ownerId"`
	DisplayName string           `json:"displayName"`
	Type        ConnectionType   `json:"type"`
	Status      ConnectionStatus `json:"status"`
	Value       ConnectionValue  `json:"value"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`

	version int64
}

// NewConnection pairs a stored row with its decrypted value.
func NewConnection(row *AppConnection, value ConnectionValue) *Connection {
	return &Connection{
		ID:          row.ID,
		AppName:     row.AppName,
		OwnerID:     row.OwnerID,
		DisplayName: row.DisplayName,
		Type:        row.Type,
		Status:      row.Status,
		Value:       value,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
		version:     row.Version,
	}
}

// Version is the row version the value was read at.
func (c *Connection) Version() int64 {
	return c.version
}
