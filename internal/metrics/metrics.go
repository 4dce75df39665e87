package metrics

import (
	"sync"

	"github.com/go-authgate/mcpgate/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder is the metrics port used across the application.
type Recorder = core.Recorder

var _ Recorder = (*Metrics)(nil)

const namespace = "mcpgate"

// Metrics is the Prometheus-backed Recorder. Every series is registered
// once with the default registry under the mcpgate_ namespace.
type Metrics struct {
	// oauth subsystem
	ClientsRegisteredTotal  prometheus.Counter
	AuthorizationCodesTotal *prometheus.CounterVec
	TokensIssuedTotal       *prometheus.CounterVec
	TokensRevokedTotal      *prometheus.CounterVec
	TokensRefreshedTotal    *prometheus.CounterVec
	TokenValidationTotal    *prometheus.CounterVec
	TokensActive            *prometheus.GaugeVec

	LoginsTotal *prometheus.CounterVec

	// connection subsystem
	ConnectionClaimsTotal    *prometheus.CounterVec
	ConnectionRefreshesTotal *prometheus.CounterVec
	ExternalTokenDuration    *prometheus.HistogramVec
	Connections              *prometheus.GaugeVec

	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	DatabaseQueryErrorsTotal *prometheus.CounterVec
}

var (
	registered *Metrics
	register   sync.Once
)

// Init returns the shared Prometheus recorder, or a no-op one when metrics
// are disabled.
func Init(enabled bool) Recorder {
	if !enabled {
		return NewNoopMetrics()
	}
	return GetMetrics()
}

// GetMetrics registers the collectors on first use and returns them.
func GetMetrics() *Metrics {
	register.Do(func() { registered = newMetrics(promauto.With(prometheus.DefaultRegisterer)) })
	return registered
}

type family struct {
	f         promauto.Factory
	subsystem string
}

func (s family) counter(name, help string) prometheus.Counter {
	return s.f.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: s.subsystem, Name: name, Help: help,
	})
}

func (s family) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return s.f.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: s.subsystem, Name: name, Help: help,
	}, labels)
}

func (s family) gauge(name, help string) prometheus.Gauge {
	return s.f.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: s.subsystem, Name: name, Help: help,
	})
}

func (s family) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return s.f.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: s.subsystem, Name: name, Help: help,
	}, labels)
}

func (s family) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return s.f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: s.subsystem, Name: name, Help: help,
		Buckets: prometheus.DefBuckets,
	}, labels)
}

func newMetrics(f promauto.Factory) *Metrics {
	oauth := family{f, "oauth"}
	conn := family{f, "connection"}
	http := family{f, "http"}
	db := family{f, "db"}

	return &Metrics{
		ClientsRegisteredTotal: oauth.counter("clients_registered_total",
			"Clients created through dynamic registration."),
		AuthorizationCodesTotal: oauth.counterVec("authorization_codes_total",
			"Authorization code events: issued, exchanged, invalid, replayed, denied.", "result"),
		TokensIssuedTotal: oauth.counterVec("tokens_issued_total",
			"Tokens issued by the token endpoint.", "token_type", "grant_type"),
		TokensRevokedTotal: oauth.counterVec("tokens_revoked_total",
			"Token pairs revoked.", "reason"),
		TokensRefreshedTotal: oauth.counterVec("tokens_refreshed_total",
			"refresh_token grants.", "result"),
		TokenValidationTotal: oauth.counterVec("token_validations_total",
			"Bearer token checks: valid, invalid, expired, revoked.", "result"),
		TokensActive: oauth.gaugeVec("tokens_active",
			"Unexpired, unrevoked tokens.", "token_type"),
		LoginsTotal: oauth.counterVec("logins_total",
			"Platform password logins.", "result"),

		ConnectionClaimsTotal: conn.counterVec("claims_total",
			"Authorization code exchanges against third-party apps.", "app", "result"),
		ConnectionRefreshesTotal: conn.counterVec("refreshes_total",
			"Refreshes of stored connections: success, error, shared.", "app", "result"),
		ExternalTokenDuration: conn.histogramVec("token_endpoint_duration_seconds",
			"Latency of third-party token endpoint calls.", "app"),
		Connections: conn.gaugeVec("stored",
			"Stored connections by status.", "status"),

		HTTPRequestsTotal: http.counterVec("requests_total",
			"HTTP requests by route pattern.", "method", "path", "status"),
		HTTPRequestDuration: http.histogramVec("request_duration_seconds",
			"HTTP request latency by route pattern.", "method", "path"),
		HTTPRequestsInFlight: http.gauge("requests_in_flight",
			"HTTP requests currently being served."),

		DatabaseQueryErrorsTotal: db.counterVec("query_errors_total",
			"Database errors during periodic metric collection.", "operation"),
	}
}
