package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcomes used as label values.
const (
	OutcomeSuccess  = "success"
	OutcomeReplayed = "replayed"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// LedgerMetrics records coordinator and token sweeper activity.
type LedgerMetrics struct {
	operations    *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	conflicts     *prometheus.CounterVec
	tokensExpired prometheus.Counter
	sweepRuns     *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
// A nil registerer yields a recorder whose methods are no-ops.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_operations_total",
		Help: "Ledger operations by name and outcome.",
	}, []string{"op", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_operation_duration_seconds",
		Help:    "Duration of ledger operations including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_version_conflicts_total",
		Help: "Optimistic version conflicts that triggered a retry.",
	}, []string{"op"})
	tokensExpired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "payment_tokens_expired_total",
		Help: "Payment tokens transitioned to expired by the sweeper.",
	})
	sweepRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_token_sweeps_total",
		Help: "Token sweeper ticks by result.",
	}, []string{"result"})
	reg.MustRegister(operations, duration, conflicts, tokensExpired, sweepRuns)
	return &LedgerMetrics{
		operations:    operations,
		duration:      duration,
		conflicts:     conflicts,
		tokensExpired: tokensExpired,
		sweepRuns:     sweepRuns,
	}
}

// ObserveOperation records one finished operation.
func (m *LedgerMetrics) ObserveOperation(op, outcome string, d time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	op = normalizeLabel(op)
	m.operations.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// IncConflict counts a version conflict that caused a retry.
func (m *LedgerMetrics) IncConflict(op string) {
	if m == nil || m.conflicts == nil {
		return
	}
	m.conflicts.WithLabelValues(normalizeLabel(op)).Inc()
}

// AddExpiredTokens counts tokens expired by one sweep.
func (m *LedgerMetrics) AddExpiredTokens(n int64) {
	if m == nil || m.tokensExpired == nil || n <= 0 {
		return
	}
	m.tokensExpired.Add(float64(n))
}

// IncSweep counts a sweeper tick; result is "ran", "skipped" or "failed".
func (m *LedgerMetrics) IncSweep(result string) {
	if m == nil || m.sweepRuns == nil {
		return
	}
	m.sweepRuns.WithLabelValues(normalizeLabel(result)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
