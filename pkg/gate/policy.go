package gate

import (
	"github.com/mcpguard/mcpguard/pkg/errors"
	"github.com/mcpguard/mcpguard/pkg/severity"
)

// Thresholds are the per-severity finding ceilings, inclusive. A
// threshold of zero means zero tolerance at that severity. Info findings
// never gate and have no threshold.
type Thresholds struct {
	CriticalMax int `json:"critical_max" yaml:"critical_max"`
	HighMax     int `json:"high_max" yaml:"high_max"`
	MediumMax   int `json:"medium_max" yaml:"medium_max"`
	LowMax      int `json:"low_max" yaml:"low_max"`
}

// Max returns the ceiling for a gating severity level.
func (t Thresholds) Max(level severity.Level) int {
	switch level {
	case severity.Critical:
		return t.CriticalMax
	case severity.High:
		return t.HighMax
	case severity.Medium:
		return t.MediumMax
	case severity.Low:
		return t.LowMax
	default:
		return 0
	}
}

// PassCriteria tune how the gate combines and filters findings.
type PassCriteria struct {
	// RequireAllScannersPass evaluates each scanner's findings against
	// the thresholds separately and fails the scan if any scanner fails,
	// even when the combined counts would pass.
	RequireAllScannersPass bool `json:"require_all_scanners_pass" yaml:"require_all_scanners_pass"`
	// AllowWarnings excludes warning-level findings from the threshold
	// comparison. They are still counted and reported.
	AllowWarnings bool `json:"allow_warnings" yaml:"allow_warnings"`
}

// Policy is a tenant's gate configuration. It is a plain value object:
// the evaluator never reads ambient state, so callers snapshot the
// policy once per evaluation and results stay reproducible.
type Policy struct {
	TenantID     string       `json:"tenant_id" yaml:"tenant_id"`
	Thresholds   Thresholds   `json:"gate_thresholds" yaml:"gate_thresholds"`
	PassCriteria PassCriteria `json:"pass_criteria" yaml:"pass_criteria"`
	// WarningSeverities is the tenant-configurable set of severities
	// treated as warnings when AllowWarnings is set. Empty means the
	// default of low and info.
	WarningSeverities []severity.Level `json:"warning_severities,omitempty" yaml:"warning_severities,omitempty"`
}

// DefaultWarningSeverities is used when a policy does not configure its
// own warning set.
var DefaultWarningSeverities = []severity.Level{severity.Low, severity.Info}

// DefaultPolicy returns the policy applied to tenants that have not
// saved one: zero tolerance for critical findings, generous ceilings
// below that.
func DefaultPolicy(tenantID string) Policy {
	return Policy{
		TenantID: tenantID,
		Thresholds: Thresholds{
			CriticalMax: 0,
			HighMax:     10,
			MediumMax:   50,
			LowMax:      100,
		},
	}
}

// warningSet returns the effective warning severities as a lookup set.
func (p Policy) warningSet() map[severity.Level]bool {
	levels := p.WarningSeverities
	if len(levels) == 0 {
		levels = DefaultWarningSeverities
	}
	set := make(map[severity.Level]bool, len(levels))
	for _, l := range levels {
		set[l] = true
	}
	return set
}

// Validate rejects malformed policies before evaluation. Negative
// thresholds are an error, never clamped.
func (p Policy) Validate() error {
	const op = "gate.Policy.Validate"
	checks := []struct {
		name  string
		value int
	}{
		{"critical_max", p.Thresholds.CriticalMax},
		{"high_max", p.Thresholds.HighMax},
		{"medium_max", p.Thresholds.MediumMax},
		{"low_max", p.Thresholds.LowMax},
	}
	for _, c := range checks {
		if c.value < 0 {
			return errors.Validationf(op, "%s must be non-negative, got %d", c.name, c.value)
		}
	}
	for _, l := range p.WarningSeverities {
		if !l.Valid() {
			return errors.Validationf(op, "unknown warning severity %q", l)
		}
	}
	return nil
}
