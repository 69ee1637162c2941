package analytics

import (
	"sort"
	"time"

	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/severity"
)

// recencyCapDays bounds the age contribution so a single ancient
// finding cannot dominate the score forever.
const recencyCapDays = 90

// recencyFactor grows linearly with age from 1.0 to 2.0 at the cap.
// It is monotonically non-decreasing in age.
func recencyFactor(ageDays int) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	if ageDays > recencyCapDays {
		ageDays = recencyCapDays
	}
	return 1 + float64(ageDays)/recencyCapDays
}

// FindingRisk is the risk contribution of a single finding:
// severity weight times recency factor. Unremediated findings weigh
// more the longer they stay open.
func FindingRisk(f *finding.Finding, now time.Time) float64 {
	return f.Severity.Weight() * recencyFactor(f.AgeDays(now))
}

// CategoryRisk is the summed risk of one finding category.
type CategoryRisk struct {
	Category     string  `json:"category"`
	Score        float64 `json:"score"`
	FindingCount int     `json:"finding_count"`
}

// RiskReport is the risk-scores response for a finding population.
type RiskReport struct {
	TotalScore float64            `json:"total_score"`
	BySeverity map[string]float64 `json:"by_severity"`
	// TopRisks lists categories by descending score; ties break by
	// category name ascending so output is deterministic.
	TopRisks []CategoryRisk `json:"top_risks"`
}

// RiskScores aggregates per-finding risk into category and severity
// totals. Pure over its inputs; no state survives between calls.
func RiskScores(findings []finding.Finding, now time.Time) RiskReport {
	report := RiskReport{
		BySeverity: make(map[string]float64, len(severity.Levels())),
	}
	for _, level := range severity.Levels() {
		report.BySeverity[level.String()] = 0
	}

	byCategory := make(map[string]*CategoryRisk)
	for i := range findings {
		f := &findings[i]
		risk := FindingRisk(f, now)
		report.TotalScore += risk
		report.BySeverity[f.Severity.String()] += risk

		cat, ok := byCategory[f.Category]
		if !ok {
			cat = &CategoryRisk{Category: f.Category}
			byCategory[f.Category] = cat
		}
		cat.Score += risk
		cat.FindingCount++
	}

	report.TopRisks = make([]CategoryRisk, 0, len(byCategory))
	for _, cat := range byCategory {
		report.TopRisks = append(report.TopRisks, *cat)
	}
	sort.Slice(report.TopRisks, func(i, j int) bool {
		a, b := report.TopRisks[i], report.TopRisks[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.Category < b.Category
	})
	return report
}
