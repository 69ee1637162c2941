package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/severity"
)

func TestScannerEffectiveness(t *testing.T) {
	now := time.Now()
	scans := []finding.Scan{
		{ScanType: "mcp", CreatedAt: now, DurationMS: 100, Passed: true},
		{ScanType: "mcp", CreatedAt: now, DurationMS: 300, Passed: false,
			Findings: []finding.Finding{{Severity: severity.High}}},
		{ScanType: "model", CreatedAt: now, DurationMS: 50, Passed: true},
	}
	stats := ScannerEffectiveness(scans)

	require.Len(t, stats, 2)
	require.Equal(t, "mcp", stats[0].Scanner, "output ordered by scanner name")
	require.Equal(t, 2, stats[0].ScanCount)
	require.Equal(t, 50.0, stats[0].PassRate, "pass_rate is a 0-100 percentage")
	require.Equal(t, 200.0, stats[0].AvgDurationMS)
	require.Equal(t, 1, stats[0].Counts.High)

	require.Equal(t, "model", stats[1].Scanner)
	require.Equal(t, 100.0, stats[1].PassRate)
}

func TestScannerEffectivenessNoScans(t *testing.T) {
	require.Empty(t, ScannerEffectiveness(nil))
}

func TestPassRateNeverNaN(t *testing.T) {
	// A stats entry can only exist for an observed scan, but guard the
	// division anyway by checking the computed values.
	for _, stats := range ScannerEffectiveness([]finding.Scan{{ScanType: "mcp"}}) {
		if math.IsNaN(stats.PassRate) || math.IsNaN(stats.AvgDurationMS) {
			t.Errorf("NaN in stats for %s: %+v", stats.Scanner, stats)
		}
	}
}
