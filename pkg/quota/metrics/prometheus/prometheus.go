// Package prommetrics implements quota.Metrics using Prometheus.
package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/revlinehq/scotty/pkg/quota"
)

// Metrics implements quota.Metrics using Prometheus.
type Metrics struct {
	checksTotal        *prometheus.CounterVec
	incrementsTotal    *prometheus.CounterVec
	storageOpsDuration *prometheus.HistogramVec
	storageOpsErrors   *prometheus.CounterVec
	failOpenTotal      *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		checksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_checks_total",
			Help:      "Total number of quota gate checks.",
		}, []string{"feature", "tier", "allowed"}),

		incrementsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_increments_total",
			Help:      "Total number of usage counter increments.",
		}, []string{"feature", "tier"}),

		storageOpsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_duration_seconds",
			Help:      "Latency of storage operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		storageOpsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operation_errors_total",
			Help:      "Total number of storage operation errors.",
		}, []string{"operation"}),

		failOpenTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_fail_open_total",
			Help:      "Total number of storage failures treated as zero usage.",
		}, []string{"feature"}),
	}
}

// RecordCheck implements quota.Metrics.
func (m *Metrics) RecordCheck(feature quota.Feature, tier quota.Tier, allowed bool) {
	m.checksTotal.WithLabelValues(string(feature), string(tier), strconv.FormatBool(allowed)).Inc()
}

// RecordIncrement implements quota.Metrics.
func (m *Metrics) RecordIncrement(feature quota.Feature, tier quota.Tier) {
	m.incrementsTotal.WithLabelValues(string(feature), string(tier)).Inc()
}

// RecordStorageOperation implements quota.Metrics.
func (m *Metrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
	m.storageOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.storageOpsErrors.WithLabelValues(operation).Inc()
	}
}

// RecordFailOpen implements quota.Metrics.
func (m *Metrics) RecordFailOpen(feature quota.Feature) {
	m.failOpenTotal.WithLabelValues(string(feature)).Inc()
}
