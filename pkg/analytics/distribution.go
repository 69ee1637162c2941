package analytics

import (
	"math"

	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/severity"
)

// Distribution is the severity breakdown of a finding population.
// Percentages are over every finding including info, rounded to one
// decimal, and sum to 100 within rounding error. An empty population
// reports all zeros rather than NaN.
type Distribution struct {
	Counts finding.SeverityCounts `json:"counts"`
	// Overall is the full population size including info findings.
	Overall     int                `json:"overall"`
	Percentages map[string]float64 `json:"percentages"`
}

// SeverityDistribution computes the severity distribution for findings.
func SeverityDistribution(findings []finding.Finding) Distribution {
	counts := finding.CountSeverities(findings)
	dist := Distribution{
		Counts:      counts,
		Overall:     counts.Total + counts.Info,
		Percentages: make(map[string]float64, len(severity.Levels())),
	}
	for _, level := range severity.Levels() {
		dist.Percentages[level.String()] = percentage(counts.Count(level), dist.Overall)
	}
	return dist
}

// percentage returns part/whole as a 0-100 value rounded to one
// decimal, and 0 when the whole is empty.
func percentage(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 10
}
