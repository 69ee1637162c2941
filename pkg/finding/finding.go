// Package finding holds the canonical finding and scan value types that
// the gate evaluator and all analytics components consume. Normalizer
// adapters produce these shapes; nothing downstream ever sees a
// scanner-specific field.
package finding

import (
	"time"

	"github.com/mcpguard/mcpguard/pkg/severity"
)

// Finding is a single detected security issue. Findings are created once
// by the normalizer and never mutated; ResolvedAt is the only field the
// storage layer sets afterwards.
type Finding struct {
	ID          string         `json:"id"`
	ScanID      string         `json:"scan_id"`
	Severity    severity.Level `json:"severity"`
	Category    string         `json:"category"`
	Scanner     string         `json:"scanner"`
	Location    string         `json:"location"`
	Description string         `json:"description"`
	Remediation string         `json:"remediation,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	ResolvedAt  *time.Time     `json:"resolved_at,omitempty"`
}

// Resolved reports whether the finding has been remediated.
func (f *Finding) Resolved() bool {
	return f.ResolvedAt != nil
}

// AgeDays returns the whole days elapsed between the finding's creation
// and now. Negative ages clamp to zero so clock skew cannot produce a
// negative weight.
func (f *Finding) AgeDays(now time.Time) int {
	d := int(now.Sub(f.CreatedAt).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// Scan is a single scanner run with its findings.
type Scan struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenant_id"`
	ScanType   string    `json:"scan_type"`
	CreatedAt  time.Time `json:"created_at"`
	DurationMS int64     `json:"duration_ms"`
	Passed     bool      `json:"passed"`
	Findings   []Finding `json:"findings"`
}

// SeverityCounts is a per-severity tally. Total always equals
// Critical+High+Medium+Low; info findings are tallied separately and
// never contribute to Total.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// Add tallies one finding at the given level.
func (c *SeverityCounts) Add(level severity.Level) {
	switch level {
	case severity.Critical:
		c.Critical++
		c.Total++
	case severity.High:
		c.High++
		c.Total++
	case severity.Medium:
		c.Medium++
		c.Total++
	case severity.Low:
		c.Low++
		c.Total++
	default:
		c.Info++
	}
}

// Merge adds other into c.
func (c *SeverityCounts) Merge(other SeverityCounts) {
	c.Critical += other.Critical
	c.High += other.High
	c.Medium += other.Medium
	c.Low += other.Low
	c.Info += other.Info
	c.Total += other.Total
}

// Count returns the tally for a single level.
func (c *SeverityCounts) Count(level severity.Level) int {
	switch level {
	case severity.Critical:
		return c.Critical
	case severity.High:
		return c.High
	case severity.Medium:
		return c.Medium
	case severity.Low:
		return c.Low
	default:
		return c.Info
	}
}

// CountSeverities tallies a set of findings.
func CountSeverities(findings []Finding) SeverityCounts {
	var counts SeverityCounts
	for i := range findings {
		counts.Add(findings[i].Severity)
	}
	return counts
}
