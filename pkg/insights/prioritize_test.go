package insights

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/severity"
)

func TestPrioritizeRanking(t *testing.T) {
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	resolved := now.AddDate(0, 0, -1)
	findings := []finding.Finding{
		// Three old criticals: 4 * 3 * ageWeight(60 days = 3.0) = 36.
		{Severity: severity.Critical, Category: "hardcoded_secret", CreatedAt: now.AddDate(0, 0, -60)},
		{Severity: severity.Critical, Category: "hardcoded_secret", CreatedAt: now.AddDate(0, 0, -10)},
		{Severity: severity.Critical, Category: "hardcoded_secret", CreatedAt: now.AddDate(0, 0, -5)},
		// One fresh low: 1 * 1 * 1 = 1.
		{Severity: severity.Low, Category: "weak_tls", CreatedAt: now},
		// Resolved findings never rank.
		{Severity: severity.Critical, Category: "rce", CreatedAt: now.AddDate(0, 0, -80), ResolvedAt: &resolved},
	}

	recs := Prioritize(findings, now)
	require.Len(t, recs, 2)

	top := recs[0]
	require.Equal(t, "hardcoded_secret", top.Category)
	require.Equal(t, "critical", top.Severity)
	require.Equal(t, 3, top.Frequency)
	require.Equal(t, 60, top.AgeDays, "group age comes from the earliest occurrence")
	require.Equal(t, "old", top.AgeBucket)
	require.InDelta(t, 36.0, top.PriorityScore, 1e-9)

	require.Equal(t, "weak_tls", recs[1].Category)
	require.InDelta(t, 1.0, recs[1].PriorityScore, 1e-9)
}

func TestPrioritizeTieBreaks(t *testing.T) {
	now := time.Now()
	// Two groups with equal scores: medium x2 fresh (2*2*1=4) and a
	// group crafted to the same score with higher frequency... use two
	// same-score same-frequency groups to exercise the name tie-break.
	findings := []finding.Finding{
		{Severity: severity.Medium, Category: "beta", CreatedAt: now},
		{Severity: severity.Medium, Category: "alpha", CreatedAt: now},
	}
	recs := Prioritize(findings, now)
	require.Len(t, recs, 2)
	require.Equal(t, "alpha", recs[0].Category, "equal score and frequency break by name ascending")

	// Frequency breaks before name.
	findings = []finding.Finding{
		{Severity: severity.Low, Category: "zzz", CreatedAt: now},
		{Severity: severity.Low, Category: "zzz", CreatedAt: now},
		{Severity: severity.Medium, Category: "aaa", CreatedAt: now},
	}
	recs = Prioritize(findings, now)
	require.Len(t, recs, 2)
	require.Equal(t, "zzz", recs[0].Category, "score 2 vs 2: higher frequency wins")
	require.Equal(t, 2, recs[0].Frequency)
}

func TestAgeWeightMonotonicAndCapped(t *testing.T) {
	var prev float64
	for _, age := range []int{0, 10, 30, 89, 90, 400} {
		w := ageWeight(age)
		require.GreaterOrEqual(t, w, prev, "age %d", age)
		prev = w
	}
	require.Equal(t, 4.0, ageWeight(90))
	require.Equal(t, 4.0, ageWeight(1000), "weight is capped")
	require.Equal(t, 1.0, ageWeight(0))
}

func TestPrioritizeEmpty(t *testing.T) {
	require.Empty(t, Prioritize(nil, time.Now()))
}
