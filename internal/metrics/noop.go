package metrics

import "time"

// NoopMetrics is a no-operation implementation of Recorder
// All methods are empty and do nothing, providing zero overhead when metrics are disabled
type NoopMetrics struct{}

// Ensure NoopMetrics implements Recorder interface at compile time
var _ Recorder = (*NoopMetrics)(nil)

// NewNoopMetrics creates a new no-operation metrics recorder
func NewNoopMetrics() Recorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordClientRegistered()                                   {}
func (n *NoopMetrics) RecordAuthorizationCode(result string)                     {}
func (n *NoopMetrics) RecordTokenIssued(tokenType, grantType string)             {}
func (n *NoopMetrics) RecordTokenRevoked(reason string)                          {}
func (n *NoopMetrics) RecordTokenRefresh(success bool)                           {}
func (n *NoopMetrics) RecordTokenValidation(result string)                       {}
func (n *NoopMetrics) RecordLogin(success bool)                                  {}
func (n *NoopMetrics) RecordConnectionClaim(app string, success bool)            {}
func (n *NoopMetrics) RecordConnectionRefresh(app, result string)                {}
func (n *NoopMetrics) RecordExternalTokenCall(app string, duration time.Duration) {}
func (n *NoopMetrics) SetActiveTokensCount(category string, count int)           {}
func (n *NoopMetrics) SetConnectionsCount(status string, count int)              {}
func (n *NoopMetrics) RecordDatabaseQueryError(operation string)                 {}
