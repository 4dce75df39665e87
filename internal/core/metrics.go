package core

import "time"

// Recorder defines the interface for recording application metrics.
// Implementations include Metrics (Prometheus-based) and NoopMetrics (no-op).
type Recorder interface {
	// Authorization server
	RecordClientRegistered()
	RecordAuthorizationCode(result string) // issued, exchanged, invalid, replayed, denied
	RecordTokenIssued(tokenType, grantType string)
	RecordTokenRevoked(reason string)
	RecordTokenRefresh(success bool)
	RecordTokenValidation(result string)

	// Platform sessions
	RecordLogin(success bool)

	// Third-party connections
	RecordConnectionClaim(app string, success bool)
	RecordConnectionRefresh(app, result string) // success, error, shared
	RecordExternalTokenCall(app string, duration time.Duration)

	// Gauge setters (for periodic updates)
	SetActiveTokensCount(category string, count int)
	SetConnectionsCount(status string, count int)

	RecordDatabaseQueryError(operation string)
}
