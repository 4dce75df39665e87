package models

import (
	"database/sql/driver"
	"time"
)

// EventType names what happened. Values are stable strings stored in audit_logs.event_type.
type EventType string

const (
	// Platform session events
	EventAuthenticationSuccess EventType = "AUTHENTICATION_SUCCESS"
	EventAuthenticationFailure EventType = "AUTHENTICATION_FAILURE"
	EventLogout                EventType = "LOGOUT"

	// Authorization server events (RFC 6749)
	EventClientRegistered           EventType = "CLIENT_REGISTERED"
	EventAuthorizationCodeGenerated EventType = "AUTHORIZATION_CODE_GENERATED"
	EventAuthorizationCodeExchanged EventType = "AUTHORIZATION_CODE_EXCHANGED"
	EventAuthorizationCodeReplayed  EventType = "AUTHORIZATION_CODE_REPLAYED"
	EventAuthorizationDenied        EventType = "AUTHORIZATION_DENIED"
	EventAccessTokenIssued          EventType = "ACCESS_TOKEN_ISSUED"
	EventTokenRefreshed             EventType = "TOKEN_REFRESHED"
	EventTokenRevoked               EventType = "TOKEN_REVOKED"

	// Third-party connection events
	EventConnectionCreated       EventType = "CONNECTION_CREATED"
	EventConnectionRefreshed     EventType = "CONNECTION_REFRESHED"
	EventConnectionRefreshFailed EventType = "CONNECTION_REFRESH_FAILED"
	EventConnectionDeleted       EventType = "CONNECTION_DELETED"
)

type EventSeverity string

const (
	SeverityInfo     EventSeverity = "INFO"
	SeverityWarning  EventSeverity = "WARNING"
	SeverityError    EventSeverity = "ERROR"
	SeverityCritical EventSeverity = "CRITICAL"
)

// ResourceType qualifies AuditLog.ResourceID.
type ResourceType string

const (
	ResourceUser          ResourceType = "USER"
	ResourceClient        ResourceType = "CLIENT"
	ResourceToken         ResourceType = "TOKEN"
	ResourceAuthorization ResourceType = "AUTHORIZATION"
	ResourceConnection    ResourceType = "CONNECTION"
)

// AuditDetails is free-form event context, stored as a JSON object.
type AuditDetails map[string]any

func (a AuditDetails) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil //nolint:nilnil // SQL NULL
	}
	return jsonValue(map[string]any(a))
}

func (a *AuditDetails) Scan(src any) error {
	var out map[string]any
	ok, err := scanJSON("AuditDetails", src, &out)
	if err != nil {
		return err
	}
	if !ok {
		*a = nil
		return nil
	}
	*a = out
	return nil
}

// AuditLog is one append-only audit entry. Rows are only ever inserted or
// removed by the retention sweep.
type AuditLog struct {
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`

	EventType EventType     `gorm:"type:varchar(50);index;not null" json:"event_type"`
	Severity  EventSeverity `gorm:"type:varchar(20);not null"       json:"severity"`

	ActorUserID string `gorm:"type:varchar(36);index" json:"actor_user_id"`
	ActorIP     string `gorm:"type:varchar(45)"       json:"actor_ip"`

	ResourceType ResourceType `gorm:"type:varchar(50);index" json:"resource_type"`
	ResourceID   string       `gorm:"type:varchar(64);index" json:"resource_id"`

	Action       string       `gorm:"type:varchar(255);not null" json:"action"`
	Details      AuditDetails `gorm:"type:json"                  json:"details"`
	Success      bool         `gorm:"index;not null"             json:"success"`
	ErrorMessage string       `gorm:"type:text"                  json:"error_message,omitempty"`

	CreatedAt time.Time `gorm:"index;not null" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }
