package metrics

import "time"

func outcome(ok bool, failed string) string {
	if ok {
		return "success"
	}
	return failed
}

func (m *Metrics) RecordClientRegistered() { m.ClientsRegisteredTotal.Inc() }

// RecordAuthorizationCode counts one code lifecycle event: issued,
// exchanged, invalid or replayed.
func (m *Metrics) RecordAuthorizationCode(result string) {
	m.AuthorizationCodesTotal.WithLabelValues(result).Inc()
}

// RecordTokenIssued bumps both the issuance counter and the live gauge; the
// gauge is corrected on the next periodic recount.
func (m *Metrics) RecordTokenIssued(tokenType, grantType string) {
	m.TokensIssuedTotal.WithLabelValues(tokenType, grantType).Inc()
	m.TokensActive.WithLabelValues(tokenType).Inc()
}

func (m *Metrics) RecordTokenRevoked(reason string) {
	m.TokensRevokedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) RecordTokenRefresh(success bool) {
	m.TokensRefreshedTotal.WithLabelValues(outcome(success, "error")).Inc()
}

func (m *Metrics) RecordTokenValidation(result string) {
	m.TokenValidationTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordLogin(success bool) {
	m.LoginsTotal.WithLabelValues(outcome(success, "failure")).Inc()
}

func (m *Metrics) RecordConnectionClaim(app string, success bool) {
	m.ConnectionClaimsTotal.WithLabelValues(app, outcome(success, "error")).Inc()
}

// RecordConnectionRefresh counts a refresh of an upstream credential; result
// is success, error or shared (another caller already refreshed it).
func (m *Metrics) RecordConnectionRefresh(app, result string) {
	m.ConnectionRefreshesTotal.WithLabelValues(app, result).Inc()
}

func (m *Metrics) RecordExternalTokenCall(app string, d time.Duration) {
	m.ExternalTokenDuration.WithLabelValues(app).Observe(d.Seconds())
}

func (m *Metrics) SetActiveTokensCount(category string, count int) {
	m.TokensActive.WithLabelValues(category).Set(float64(count))
}

func (m *Metrics) SetConnectionsCount(status string, count int) {
	m.Connections.WithLabelValues(status).Set(float64(count))
}

func (m *Metrics) RecordDatabaseQueryError(operation string) {
	m.DatabaseQueryErrorsTotal.WithLabelValues(operation).Inc()
}
