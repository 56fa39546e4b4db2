//go:build prometheus

// Package sessionmanager metrics collection, gated behind the
// "prometheus" build tag the same way pkg/dialog/metrics.go gates its
// MetricsCollector — the default build carries no Prometheus dependency
// at all.
package sessionmanager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sipcore/sipsession/sdpneg"
)

// MetricsCollector exports Prometheus counters/gauges for session
// lifecycle and reinvite outcomes (§4.3/§4.4). A MetricsConfig with
// Enabled == false disables collection entirely; every method is then a
// no-op. A nil *MetricsConfig applies DefaultMetricsConfig, which is
// enabled.
type MetricsCollector struct {
	enabled bool

	sessionsTotal    prometheus.Counter
	sessionsActive   prometheus.Gauge
	sessionsFailed   prometheus.Counter
	reinvitesTotal   *prometheus.CounterVec
	reinviteOutcomes *prometheus.CounterVec
}

// MetricsConfig configures a MetricsCollector.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
	Subsystem string
}

// DefaultMetricsConfig mirrors pkg/dialog.DefaultMetricsConfig's shape.
func DefaultMetricsConfig() *MetricsConfig {
	return &MetricsConfig{Enabled: true, Namespace: "sipcore", Subsystem: "session"}
}

// NewMetricsCollector builds a MetricsCollector; config == nil applies
// DefaultMetricsConfig.
func NewMetricsCollector(config *MetricsConfig) *MetricsCollector {
	if config == nil {
		config = DefaultMetricsConfig()
	}
	if !config.Enabled {
		return &MetricsCollector{enabled: false}
	}
	return &MetricsCollector{
		enabled: true,
		sessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.Subsystem,
			Name: "sessions_total", Help: "Total number of sessions created",
		}),
		sessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace, Subsystem: config.Subsystem,
			Name: "sessions_active", Help: "Number of sessions currently in flight",
		}),
		sessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.Subsystem,
			Name: "sessions_failed_total", Help: "Total number of sessions that ended in failure",
		}),
		reinvitesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.Subsystem,
			Name: "reinvites_total", Help: "Total number of locally-initiated reinvites by kind and outcome",
		}, []string{"kind", "outcome"}),
		reinviteOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace, Subsystem: config.Subsystem,
			Name: "reinvites_received_total", Help: "Total number of remote reinvites by negotiation outcome",
		}, []string{"outcome"}),
	}
}

// SessionCreated records a new Session (outgoing or incoming).
func (mc *MetricsCollector) SessionCreated() {
	if !mc.enabled {
		return
	}
	mc.sessionsTotal.Inc()
	mc.sessionsActive.Inc()
}

// SessionEnded records a Session reaching TERMINATED.
func (mc *MetricsCollector) SessionEnded(failed bool) {
	if !mc.enabled {
		return
	}
	mc.sessionsActive.Dec()
	if failed {
		mc.sessionsFailed.Inc()
	}
}

// ReinviteCompleted records the outcome of a locally-initiated reinvite.
func (mc *MetricsCollector) ReinviteCompleted(kind string, succeeded bool) {
	if !mc.enabled {
		return
	}
	outcome := "failed"
	if succeeded {
		outcome = "succeeded"
	}
	mc.reinvitesTotal.WithLabelValues(kind, outcome).Inc()
}

// ReinviteReceived records a remote reinvite's negotiation outcome.
func (mc *MetricsCollector) ReinviteReceived(outcome sdpneg.ReinviteOutcome) {
	if !mc.enabled {
		return
	}
	mc.reinviteOutcomes.WithLabelValues(reinviteOutcomeLabel(outcome)).Inc()
}

func reinviteOutcomeLabel(o sdpneg.ReinviteOutcome) string {
	switch o {
	case sdpneg.OutcomeReject488:
		return "reject_488"
	case sdpneg.OutcomeReassertCurrent:
		return "reassert_current"
	case sdpneg.OutcomeAutoAnswer:
		return "auto_answer"
	case sdpneg.OutcomeProposal:
		return "proposal"
	default:
		return "unknown"
	}
}
