// Package gate computes the pass/fail decision for a scan by comparing
// its finding counts to tenant policy thresholds. Evaluate is a pure
// function: identical inputs always produce an identical result, which
// keeps gate decisions reproducible for audit.
package gate

import (
	"sort"

	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/severity"
)

// ScannerResult is the gate outcome for one scanner's share of a scan.
type ScannerResult struct {
	Scanner string                 `json:"scanner"`
	Passed  bool                   `json:"passed"`
	Counts  finding.SeverityCounts `json:"counts"`
}

// Result is the gate decision for one scan.
type Result struct {
	Passed bool                   `json:"passed"`
	Counts finding.SeverityCounts `json:"counts"`
	// PerScanner is populated only when the policy requires every
	// scanner to pass independently, ordered by scanner name.
	PerScanner []ScannerResult `json:"per_scanner,omitempty"`
}

// TotalFindings returns the gating finding count (info excluded, per
// the severity count invariant).
func (r Result) TotalFindings() int {
	return r.Counts.Total
}

// Evaluate computes the gate decision for the findings of one scan under
// the given policy. An invalid policy is fatal to the decision: there is
// no silent pass default.
func Evaluate(findings []finding.Finding, policy Policy) (Result, error) {
	if err := policy.Validate(); err != nil {
		return Result{}, err
	}

	result := Result{
		Counts: finding.CountSeverities(findings),
	}
	result.Passed = countsPass(result.Counts, policy)

	if policy.PassCriteria.RequireAllScannersPass {
		result.PerScanner = evaluatePerScanner(findings, policy)
		for _, sr := range result.PerScanner {
			if !sr.Passed {
				result.Passed = false
			}
		}
	}
	return result, nil
}

// countsPass compares one severity tally to the thresholds. An empty
// tally always passes; a zero threshold fails on the first finding at
// that severity.
func countsPass(counts finding.SeverityCounts, policy Policy) bool {
	warnings := policy.warningSet()
	for _, level := range gatingLevels {
		if policy.PassCriteria.AllowWarnings && warnings[level] {
			continue
		}
		if counts.Count(level) > policy.Thresholds.Max(level) {
			return false
		}
	}
	return true
}

// gatingLevels are the severities compared against thresholds. Info is
// counted and reported but never gates.
var gatingLevels = []severity.Level{
	severity.Critical,
	severity.High,
	severity.Medium,
	severity.Low,
}

// evaluatePerScanner applies the same thresholds to each scanner's own
// findings. Output is ordered by scanner name for determinism.
func evaluatePerScanner(findings []finding.Finding, policy Policy) []ScannerResult {
	byScanner := make(map[string][]finding.Finding)
	for i := range findings {
		byScanner[findings[i].Scanner] = append(byScanner[findings[i].Scanner], findings[i])
	}

	names := make([]string, 0, len(byScanner))
	for name := range byScanner {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]ScannerResult, 0, len(names))
	for _, name := range names {
		counts := finding.CountSeverities(byScanner[name])
		results = append(results, ScannerResult{
			Scanner: name,
			Passed:  countsPass(counts, policy),
			Counts:  counts,
		})
	}
	return results
}
