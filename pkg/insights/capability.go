// Package insights implements the optional ML-backed analytics:
// anomaly detection over per-scan feature vectors, statistical
// correlation between finding attributes, and remediation
// prioritization. Each insight sits behind a Capability chosen once at
// startup; a disabled capability reports its reason instead of
// attempting a degraded computation.
package insights

import (
	"time"

	"github.com/mcpguard/mcpguard/pkg/errors"
	"github.com/mcpguard/mcpguard/pkg/finding"
)

// Capability is the runtime switch for one optional insight. Callers
// branch on the variant rather than on boolean flags scattered through
// the request path.
type Capability interface {
	// Enabled reports whether the insight may run.
	Enabled() bool
	// Reason explains why the insight is off; empty when enabled.
	Reason() string
}

type enabledCapability struct{}

func (enabledCapability) Enabled() bool { return true }

func (enabledCapability) Reason() string { return "" }

type disabledCapability struct {
	reason string
}

func (disabledCapability) Enabled() bool { return false }

func (d disabledCapability) Reason() string { return d.reason }

// Enable returns the enabled capability variant.
func Enable() Capability { return enabledCapability{} }

// Disable returns a disabled capability carrying the operator-facing
// reason, e.g. "ml insights disabled by configuration".
func Disable(reason string) Capability {
	if reason == "" {
		reason = "capability disabled"
	}
	return disabledCapability{reason: reason}
}

// Config selects which insights are available. Built from server
// configuration at startup.
type Config struct {
	AnomalyDetection bool   `yaml:"anomaly_detection"`
	Correlation      bool   `yaml:"correlation"`
	Prioritization   bool   `yaml:"prioritization"`
	DisabledReason   string `yaml:"disabled_reason"`
}

// Service routes insight requests through their capabilities.
type Service struct {
	anomaly        Capability
	correlation    Capability
	prioritization Capability
}

// NewService builds a Service from config.
func NewService(cfg Config) *Service {
	pick := func(on bool) Capability {
		if on {
			return Enable()
		}
		return Disable(cfg.DisabledReason)
	}
	return &Service{
		anomaly:        pick(cfg.AnomalyDetection),
		correlation:    pick(cfg.Correlation),
		prioritization: pick(cfg.Prioritization),
	}
}

// NewServiceWith builds a Service from explicit capability variants.
func NewServiceWith(anomaly, correlation, prioritization Capability) *Service {
	return &Service{anomaly: anomaly, correlation: correlation, prioritization: prioritization}
}

// Anomalies scores each scan for outlier behavior. Returns a
// CapabilityDisabled error when anomaly detection is off; it never
// fabricates scores.
func (s *Service) Anomalies(scans []finding.Scan) (*AnomalyReport, error) {
	if !s.anomaly.Enabled() {
		return nil, errors.CapabilityDisabled("insights.Anomalies", s.anomaly.Reason())
	}
	report := DetectAnomalies(scans)
	return &report, nil
}

// Correlations computes attribute associations over the findings.
func (s *Service) Correlations(findings []finding.Finding) ([]Association, error) {
	if !s.correlation.Enabled() {
		return nil, errors.CapabilityDisabled("insights.Correlations", s.correlation.Reason())
	}
	return Correlations(findings), nil
}

// Prioritization ranks open findings for remediation.
func (s *Service) Prioritization(findings []finding.Finding, now time.Time) ([]Recommendation, error) {
	if !s.prioritization.Enabled() {
		return nil, errors.CapabilityDisabled("insights.Prioritization", s.prioritization.Reason())
	}
	return Prioritize(findings, now), nil
}
