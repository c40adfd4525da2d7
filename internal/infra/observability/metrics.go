package observability

import (
	"time"

	"github.com/boddenberg/client-portal-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the portal.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	notifications     *prometheus.CounterVec
	approvals         *prometheus.CounterVec
	logins            *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portal_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_store_errors_total",
				Help: "Total record store failures by collection.",
			},
			[]string{"collection"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_notifications_created_total",
				Help: "Total notifications created by type.",
			},
			[]string{"type"},
		),
		approvals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_approval_transitions_total",
				Help: "Total payment plan decisions by resulting status.",
			},
			[]string{"status"},
		),
		logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portal_logins_total",
				Help: "Total login attempts by method and result.",
			},
			[]string{"method", "result"},
		),
	}
}

// RecordOperation records the duration of a service operation.
func (m *Metrics) RecordOperation(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the record store error counter.
func (m *Metrics) IncrStoreError(collection string) {
	m.storeErrors.WithLabelValues(collection).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrNotification counts a created notification.
func (m *Metrics) IncrNotification(t domain.NotificationType) {
	m.notifications.WithLabelValues(string(t)).Inc()
}

// IncrApproval counts a payment plan decision.
func (m *Metrics) IncrApproval(status domain.ApprovalStatus) {
	m.approvals.WithLabelValues(string(status)).Inc()
}

// IncrLogin counts a login attempt; result is "success" or "failure".
func (m *Metrics) IncrLogin(method, result string) {
	m.logins.WithLabelValues(method, result).Inc()
}

// Summary returns cumulative counters for GET /v1/admin/metrics.
func (m *Metrics) Summary() *domain.MetricsSummary {
	hits := getCounterValue(m.cacheHits.WithLabelValues("snapshot"))
	misses := getCounterValue(m.cacheMisses.WithLabelValues("snapshot"))
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	var notifications float64
	for _, t := range []domain.NotificationType{
		domain.NotifyProjectUpdate, domain.NotifyApprovalRequest, domain.NotifyPayment,
		domain.NotifySystem, domain.NotifyAlert,
	} {
		notifications += getCounterValue(m.notifications.WithLabelValues(string(t)))
	}

	var loginsOK, loginsFailed float64
	for _, method := range []string{"access_code", "admin"} {
		loginsOK += getCounterValue(m.logins.WithLabelValues(method, "success"))
		loginsFailed += getCounterValue(m.logins.WithLabelValues(method, "failure"))
	}

	return &domain.MetricsSummary{
		LoginsSucceeded:      int64(loginsOK),
		LoginsFailed:         int64(loginsFailed),
		ApprovalsApproved:    int64(getCounterValue(m.approvals.WithLabelValues(string(domain.ApprovalApproved)))),
		ApprovalsRejected:    int64(getCounterValue(m.approvals.WithLabelValues(string(domain.ApprovalRejected)))),
		ChangeRequests:       int64(getCounterValue(m.approvals.WithLabelValues(string(domain.ApprovalChangeRequested)))),
		NotificationsCreated: int64(notifications),
		SnapshotHitRate:      hitRate,
		Period:               "all_time",
	}
}

// getCounterValue extracts the current float64 value of a counter.
func getCounterValue(counter prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
