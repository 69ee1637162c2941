package insights

import (
	"sort"
	"time"

	"github.com/mcpguard/mcpguard/pkg/analytics"
	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/severity"
)

// ageWeightCapDays bounds the age contribution to a priority score at a
// 4x multiplier.
const ageWeightCapDays = 90

// ageWeight grows linearly from 1.0 at age zero to 4.0 at the cap.
// Monotonically non-decreasing in age.
func ageWeight(ageDays int) float64 {
	if ageDays < 0 {
		ageDays = 0
	}
	if ageDays > ageWeightCapDays {
		ageDays = ageWeightCapDays
	}
	return 1 + float64(ageDays)/30
}

// Recommendation is one (category, severity) remediation group ranked
// by composite priority.
type Recommendation struct {
	Category string `json:"category"`
	Severity string `json:"severity"`
	// Frequency is the number of open findings in the group.
	Frequency int `json:"frequency"`
	// AgeDays is measured from the group's earliest open finding.
	AgeDays       int     `json:"age_days"`
	AgeBucket     string  `json:"age_bucket"`
	PriorityScore float64 `json:"priority_score"`
}

// Prioritize ranks still-open findings for remediation. Score is
// severity weight times group frequency times age weight. Output is
// sorted by descending score; ties break by frequency descending, then
// category name ascending.
func Prioritize(findings []finding.Finding, now time.Time) []Recommendation {
	type groupKey struct {
		category string
		severity severity.Level
	}
	type group struct {
		frequency int
		firstSeen time.Time
	}

	groups := make(map[groupKey]*group)
	for i := range findings {
		f := &findings[i]
		if f.Resolved() {
			continue
		}
		key := groupKey{category: f.Category, severity: f.Severity}
		g, ok := groups[key]
		if !ok {
			g = &group{firstSeen: f.CreatedAt}
			groups[key] = g
		}
		g.frequency++
		if f.CreatedAt.Before(g.firstSeen) {
			g.firstSeen = f.CreatedAt
		}
	}

	recommendations := make([]Recommendation, 0, len(groups))
	for key, g := range groups {
		age := int(now.Sub(g.firstSeen).Hours() / 24)
		if age < 0 {
			age = 0
		}
		recommendations = append(recommendations, Recommendation{
			Category:      key.category,
			Severity:      key.severity.String(),
			Frequency:     g.frequency,
			AgeDays:       age,
			AgeBucket:     analytics.AgeBucket(age),
			PriorityScore: key.severity.Weight() * float64(g.frequency) * ageWeight(age),
		})
	}

	sort.Slice(recommendations, func(i, j int) bool {
		a, b := recommendations[i], recommendations[j]
		if a.PriorityScore != b.PriorityScore {
			return a.PriorityScore > b.PriorityScore
		}
		if a.Frequency != b.Frequency {
			return a.Frequency > b.Frequency
		}
		return a.Category < b.Category
	})
	return recommendations
}
