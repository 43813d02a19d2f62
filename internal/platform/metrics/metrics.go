package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	AccountsRegistered prometheus.Counter
	LoginAttempts      *prometheus.CounterVec
	AuthFailures       prometheus.Counter
	TokensIssued       prometheus.Counter
	TOTPSetups         prometheus.Counter

	CredentialsIssued   prometheus.Counter
	CredentialsVerified *prometheus.CounterVec

	ActiveWalletSessions prometheus.Gauge
	LedgerDegradations   prometheus.Counter

	EndpointLatency *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AccountsRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "persona_accounts_registered_total",
			Help: "Total number of accounts registered",
		}),
		LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "persona_login_attempts_total",
			Help: "Total number of login attempts, labeled by step (password, totp)",
		}, []string{"step"}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "persona_auth_failures_total",
			Help: "Total number of authentication failures",
		}),
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "persona_tokens_issued_total",
			Help: "Total number of session tokens issued",
		}),
		TOTPSetups: promauto.NewCounter(prometheus.CounterOpts{
			Name: "persona_totp_setups_total",
			Help: "Total number of TOTP enrollments (including re-enrollments)",
		}),
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "persona_credentials_issued_total",
			Help: "Total number of verifiable credentials issued",
		}),
		CredentialsVerified: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "persona_credentials_verified_total",
			Help: "Total number of credential verifications, labeled by result",
		}, []string{"result"}),
		ActiveWalletSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "persona_active_wallet_sessions",
			Help: "Current number of connected wallet sessions",
		}),
		LedgerDegradations: promauto.NewCounter(prometheus.CounterOpts{
			Name: "persona_ledger_degradations_total",
			Help: "Total number of ledger status requests served from the degraded cache",
		}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "persona_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// IncrementAccountsRegistered increments the registration counter by 1.
func (m *Metrics) IncrementAccountsRegistered() {
	m.AccountsRegistered.Inc()
}

// IncrementLoginAttempt counts a login attempt for the given step.
func (m *Metrics) IncrementLoginAttempt(step string) {
	m.LoginAttempts.WithLabelValues(step).Inc()
}

// IncrementAuthFailures increments the auth failures counter by 1.
func (m *Metrics) IncrementAuthFailures() {
	m.AuthFailures.Inc()
}

// IncrementTokensIssued increments the tokens issued counter by 1.
func (m *Metrics) IncrementTokensIssued() {
	m.TokensIssued.Inc()
}

// IncrementTOTPSetups increments the TOTP enrollment counter by 1.
func (m *Metrics) IncrementTOTPSetups() {
	m.TOTPSetups.Inc()
}

// IncrementCredentialsIssued increments the credentials issued counter by 1.
func (m *Metrics) IncrementCredentialsIssued() {
	m.CredentialsIssued.Inc()
}

// IncrementCredentialsVerified counts a verification outcome ("valid",
// "expired", "bad_signature", "unknown_issuer").
func (m *Metrics) IncrementCredentialsVerified(result string) {
	m.CredentialsVerified.WithLabelValues(result).Inc()
}

// SetActiveWalletSessions updates the connected-session gauge.
func (m *Metrics) SetActiveWalletSessions(n int) {
	m.ActiveWalletSessions.Set(float64(n))
}

// IncrementLedgerDegradations increments the degraded-cache counter by 1.
func (m *Metrics) IncrementLedgerDegradations() {
	m.LedgerDegradations.Inc()
}

// ObserveEndpointLatency records endpoint latency in seconds.
func (m *Metrics) ObserveEndpointLatency(endpoint string, seconds float64) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(seconds)
}
