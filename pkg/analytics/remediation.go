package analytics

import (
	"time"

	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/severity"
)

// Age bucket labels for open findings. Boundaries are
// inclusive-exclusive: [0,7) new, [7,30) recent, [30,inf) old.
const (
	AgeNew    = "new"
	AgeRecent = "recent"
	AgeOld    = "old"
)

// AgeBucket classifies a finding age in whole days.
func AgeBucket(ageDays int) string {
	switch {
	case ageDays < 7:
		return AgeNew
	case ageDays < 30:
		return AgeRecent
	default:
		return AgeOld
	}
}

// SeverityProgress tracks remediation for one severity level.
type SeverityProgress struct {
	Open     int `json:"open"`
	Resolved int `json:"resolved"`
}

// Progress is the remediation view over a finding population.
type Progress struct {
	TotalFindings    int `json:"total_findings"`
	OpenFindings     int `json:"open_findings"`
	ResolvedFindings int `json:"resolved_findings"`
	// RemediationRate is resolved/total as a fraction in [0,1]; zero
	// for an empty population.
	RemediationRate float64                     `json:"remediation_rate"`
	BySeverity      map[string]SeverityProgress `json:"by_severity"`
	// ByAge buckets open findings by age.
	ByAge map[string]int `json:"by_age"`
}

// RemediationProgress computes open/resolved breakdowns for findings.
// Age is measured from each finding's creation to now.
func RemediationProgress(findings []finding.Finding, now time.Time) Progress {
	progress := Progress{
		BySeverity: make(map[string]SeverityProgress, len(severity.Levels())),
		ByAge:      map[string]int{AgeNew: 0, AgeRecent: 0, AgeOld: 0},
	}
	for _, level := range severity.Levels() {
		progress.BySeverity[level.String()] = SeverityProgress{}
	}

	for i := range findings {
		f := &findings[i]
		progress.TotalFindings++
		bySev := progress.BySeverity[f.Severity.String()]
		if f.Resolved() {
			progress.ResolvedFindings++
			bySev.Resolved++
		} else {
			progress.OpenFindings++
			bySev.Open++
			progress.ByAge[AgeBucket(f.AgeDays(now))]++
		}
		progress.BySeverity[f.Severity.String()] = bySev
	}

	if progress.TotalFindings > 0 {
		progress.RemediationRate = float64(progress.ResolvedFindings) / float64(progress.TotalFindings)
	}
	return progress
}
