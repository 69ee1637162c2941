package insights

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/severity"
)

func TestPearsonPerfectCorrelation(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	y := []float64{2, 4, 6, 8, 10}
	r, ok := pearson(x, y)
	require.True(t, ok)
	require.InDelta(t, 1.0, r, 1e-12)

	inverse := []float64{10, 8, 6, 4, 2}
	r, ok = pearson(x, inverse)
	require.True(t, ok)
	require.InDelta(t, -1.0, r, 1e-12)
}

func TestPearsonDegenerateInputs(t *testing.T) {
	if _, ok := pearson([]float64{1, 2}, []float64{3, 4}); ok {
		t.Error("two observations must be rejected")
	}
	if _, ok := pearson([]float64{5, 5, 5, 5}, []float64{1, 2, 3, 4}); ok {
		t.Error("zero-variance series must be rejected")
	}
}

func TestPearsonPValue(t *testing.T) {
	// Known reference: r = 0.9, n = 20 gives p ~ 8.0e-8.
	p := pearsonPValue(0.9, 20)
	require.Less(t, p, 1e-6)
	require.Greater(t, p, 0.0)

	// Weak correlation over few samples is not significant.
	p = pearsonPValue(0.2, 10)
	require.Greater(t, p, 0.05)

	// Symmetric in the sign of r.
	require.InDelta(t, pearsonPValue(0.5, 15), pearsonPValue(-0.5, 15), 1e-12)
}

func TestRegIncBeta(t *testing.T) {
	// I_x(1,1) is the identity on [0,1].
	for _, x := range []float64{0, 0.25, 0.5, 0.75, 1} {
		require.InDelta(t, x, regIncBeta(1, 1, x), 1e-10, "x=%v", x)
	}
	// I_0.5(a,a) = 0.5 by symmetry.
	require.InDelta(t, 0.5, regIncBeta(3, 3, 0.5), 1e-10)
	require.True(t, regIncBeta(2, 5, 0.3) > regIncBeta(2, 5, 0.1), "monotone in x")
}

func TestCorrelationsComputesDeclaredPairs(t *testing.T) {
	findings := []finding.Finding{
		{Severity: severity.Critical, Category: "hardcoded_secret", Scanner: "mcp"},
		{Severity: severity.Critical, Category: "hardcoded_secret", Scanner: "mcp"},
		{Severity: severity.High, Category: "prompt_injection", Scanner: "mcp"},
		{Severity: severity.Low, Category: "weak_tls", Scanner: "model"},
		{Severity: severity.Low, Category: "weak_tls", Scanner: "model"},
		{Severity: severity.Info, Category: "metadata", Scanner: "model"},
	}
	associations := Correlations(findings)
	require.Len(t, associations, 2)

	names := []string{associations[0].Pair, associations[1].Pair}
	require.Contains(t, names, "severity:category")
	require.Contains(t, names, "severity:scanner")
	for _, a := range associations {
		require.Equal(t, len(findings), a.SampleSize)
		require.False(t, math.IsNaN(a.Coefficient))
		require.True(t, a.PValue >= 0 && a.PValue <= 1)
		require.Equal(t, a.PValue < 0.05, a.Significant)
	}
}

func TestCorrelationsOmitsDegeneratePairs(t *testing.T) {
	// A single distinct severity leaves nothing to correlate; both
	// pairs must be omitted without an error.
	findings := []finding.Finding{
		{Severity: severity.High, Category: "a", Scanner: "mcp"},
		{Severity: severity.High, Category: "b", Scanner: "model"},
		{Severity: severity.High, Category: "c", Scanner: "mcp"},
	}
	require.Empty(t, Correlations(findings))
	require.Empty(t, Correlations(nil))
}

func TestCorrelationsReproducible(t *testing.T) {
	findings := []finding.Finding{
		{Severity: severity.Critical, Category: "x", Scanner: "mcp"},
		{Severity: severity.Medium, Category: "y", Scanner: "model"},
		{Severity: severity.Low, Category: "x", Scanner: "mcp"},
		{Severity: severity.High, Category: "z", Scanner: "model"},
	}
	if diff := cmp.Diff(Correlations(findings), Correlations(findings)); diff != "" {
		t.Errorf("Correlations not reproducible:\n%s", diff)
	}
}
