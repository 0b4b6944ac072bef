package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the proof registry.
type Metrics struct {
	ProofsMinted  prometheus.Counter
	Mutations     *prometheus.CounterVec // op: lock, revoke, restore, content_uri
	Rejections    *prometheus.CounterVec // op, code
	Verifications *prometheus.CounterVec // by: fingerprint, id; result: active, inactive, missing
	OpLatency     *prometheus.HistogramVec

	CacheLookups *prometheus.CounterVec // tier: local, redis, store; result: hit, miss

	AuditEmitted *prometheus.CounterVec // event
	AuditDropped *prometheus.CounterVec
	AuditFailed  *prometheus.CounterVec

	OutboxPublished prometheus.Counter
	OutboxFailures  prometheus.Counter
}

// New registers the registry metrics with reg. Pass prometheus.DefaultRegisterer
// in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ProofsMinted: f.NewCounter(prometheus.CounterOpts{
			Name: "attest_proofs_minted_total",
			Help: "Total number of committed proof mints",
		}),
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_proof_mutations_total",
			Help: "Committed proof lifecycle changes by operation",
		}, []string{"op"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_proof_rejections_total",
			Help: "Rejected registry operations by operation and error code",
		}, []string{"op", "code"}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_proof_verifications_total",
			Help: "Verification lookups by key kind and result",
		}, []string{"by", "result"}),
		OpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attest_proof_operation_duration_seconds",
			Help:    "Duration of registry operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_fingerprint_cache_lookups_total",
			Help: "Fingerprint resolution lookups by cache tier and result",
		}, []string{"tier", "result"}),
		AuditEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_audit_events_emitted_total",
			Help: "Audit events accepted by a publisher",
		}, []string{"event"}),
		AuditDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_audit_events_dropped_total",
			Help: "Audit events dropped because the async buffer was full",
		}, []string{"event"}),
		AuditFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attest_audit_events_failed_total",
			Help: "Audit events that could not be stored",
		}, []string{"event"}),
		OutboxPublished: f.NewCounter(prometheus.CounterOpts{
			Name: "attest_outbox_published_total",
			Help: "Outbox entries delivered to the event stream",
		}),
		OutboxFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "attest_outbox_publish_failures_total",
			Help: "Outbox batches that failed to publish",
		}),
	}
}

func (m *Metrics) IncMinted() {
	if m != nil {
		m.ProofsMinted.Inc()
	}
}

func (m *Metrics) IncMutation(op string) {
	if m != nil {
		m.Mutations.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) IncRejection(op, code string) {
	if m != nil {
		m.Rejections.WithLabelValues(op, code).Inc()
	}
}

func (m *Metrics) IncVerification(by, result string) {
	if m != nil {
		m.Verifications.WithLabelValues(by, result).Inc()
	}
}

func (m *Metrics) ObserveLatency(op string, d time.Duration) {
	if m != nil {
		m.OpLatency.WithLabelValues(op).Observe(d.Seconds())
	}
}

func (m *Metrics) IncCacheLookup(tier, result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(tier, result).Inc()
	}
}

// IncAuditEmitted, IncAuditDropped and IncAuditFailed satisfy publisher.Metrics.
func (m *Metrics) IncAuditEmitted(action string) {
	if m != nil {
		m.AuditEmitted.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncAuditDropped(action string) {
	if m != nil {
		m.AuditDropped.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncAuditFailed(action string) {
	if m != nil {
		m.AuditFailed.WithLabelValues(action).Inc()
	}
}

// IncOutboxPublished and IncOutboxFailure satisfy outbox.Metrics.
func (m *Metrics) IncOutboxPublished(n int) {
	if m != nil {
		m.OutboxPublished.Add(float64(n))
	}
}

func (m *Metrics) IncOutboxFailure() {
	if m != nil {
		m.OutboxFailures.Inc()
	}
}
