package analytics

import (
	"sort"

	"github.com/mcpguard/mcpguard/pkg/finding"
)

// ScannerStats is the effectiveness view for one scanner engine,
// keyed by the scan's engine type.
type ScannerStats struct {
	Scanner     string                 `json:"scanner"`
	ScanCount   int                    `json:"scan_count"`
	PassedCount int                    `json:"passed_count"`
	// PassRate is a 0-100 percentage, not a fraction. This matches the
	// documented contract for this endpoint and deliberately differs
	// from every other rate in the API. Zero when ScanCount is zero.
	PassRate      float64                `json:"pass_rate"`
	AvgDurationMS float64                `json:"avg_duration_ms"`
	Counts        finding.SeverityCounts `json:"counts"`
}

// ScannerEffectiveness aggregates scans per engine, ordered by engine
// name for stable output.
func ScannerEffectiveness(scans []finding.Scan) []ScannerStats {
	byScanner := make(map[string]*ScannerStats)
	durations := make(map[string]int64)
	for i := range scans {
		scan := &scans[i]
		stats, ok := byScanner[scan.ScanType]
		if !ok {
			stats = &ScannerStats{Scanner: scan.ScanType}
			byScanner[scan.ScanType] = stats
		}
		stats.ScanCount++
		if scan.Passed {
			stats.PassedCount++
		}
		durations[scan.ScanType] += scan.DurationMS
		stats.Counts.Merge(finding.CountSeverities(scan.Findings))
	}

	names := make([]string, 0, len(byScanner))
	for name := range byScanner {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ScannerStats, 0, len(names))
	for _, name := range names {
		stats := byScanner[name]
		if stats.ScanCount > 0 {
			stats.PassRate = float64(stats.PassedCount) / float64(stats.ScanCount) * 100
			stats.AvgDurationMS = float64(durations[name]) / float64(stats.ScanCount)
		}
		out = append(out, *stats)
	}
	return out
}
