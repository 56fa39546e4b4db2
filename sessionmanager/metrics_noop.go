//go:build !prometheus

package sessionmanager

import "github.com/sipcore/sipsession/sdpneg"

// MetricsCollector is the inert default build: no Prometheus dependency
// is linked in unless built with -tags prometheus, matching how
// pkg/dialog/metrics.go gates its own collector.
type MetricsCollector struct{}

// MetricsConfig configures a MetricsCollector. Unused in the default
// build; kept so callers compile unchanged under either build tag.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
	Subsystem string
}

// DefaultMetricsConfig returns the zero MetricsConfig.
func DefaultMetricsConfig() *MetricsConfig { return &MetricsConfig{} }

// NewMetricsCollector returns a no-op collector.
func NewMetricsCollector(*MetricsConfig) *MetricsCollector { return &MetricsCollector{} }

func (mc *MetricsCollector) SessionCreated()                                     {}
func (mc *MetricsCollector) SessionEnded(failed bool)                            {}
func (mc *MetricsCollector) ReinviteCompleted(kind string, succeeded bool)       {}
func (mc *MetricsCollector) ReinviteReceived(outcome sdpneg.ReinviteOutcome)     {}
