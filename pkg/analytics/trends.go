// Package analytics provides read-only aggregations over scan and
// finding snapshots: time-bucketed trends, severity distribution,
// scanner effectiveness, remediation progress, and risk scoring. Every
// function is pure over the data it is handed; callers own the window
// query and any tenant scoping.
package analytics

import (
	"fmt"
	"time"

	"github.com/mcpguard/mcpguard/pkg/errors"
	"github.com/mcpguard/mcpguard/pkg/finding"
)

// Granularity is a trend bucketing period.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity validates a group_by query value.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case Day, Week, Month:
		return Granularity(s), nil
	case "":
		return Day, nil
	}
	return "", errors.Validationf("analytics.ParseGranularity", "unknown granularity %q", s)
}

// TrendBucket is the aggregate for one period. Buckets with no scans
// still appear so charts render gaps instead of eliding them.
type TrendBucket struct {
	Period      string                 `json:"period"`
	Start       time.Time              `json:"start"`
	ScanCount   int                    `json:"scan_count"`
	PassedCount int                    `json:"passed_count"`
	Counts      finding.SeverityCounts `json:"counts"`
}

// TrendSummary summarizes the whole requested range.
type TrendSummary struct {
	TotalScans         int     `json:"total_scans"`
	TotalFindings      int     `json:"total_findings"`
	AvgFindingsPerScan float64 `json:"avg_findings_per_scan"`
	// PassRate is a fraction in [0,1]; zero when there are no scans.
	PassRate float64 `json:"pass_rate"`
}

// TrendReport is the full trends response.
type TrendReport struct {
	GroupBy Granularity   `json:"group_by"`
	Buckets []TrendBucket `json:"periods"`
	Summary TrendSummary  `json:"summary"`
}

// Trends partitions scans created in [start, end) into granularity
// buckets. Bucket boundaries are UTC truncations; labels are ISO-8601
// period strings. With day granularity and midnight-aligned bounds the
// report holds exactly end-start days of buckets.
func Trends(scans []finding.Scan, start, end time.Time, granularity Granularity) TrendReport {
	start, end = start.UTC(), end.UTC()
	report := TrendReport{GroupBy: granularity}

	index := make(map[string]int)
	for t := truncate(start, granularity); t.Before(end); t = step(t, granularity) {
		index[periodLabel(t, granularity)] = len(report.Buckets)
		report.Buckets = append(report.Buckets, TrendBucket{
			Period: periodLabel(t, granularity),
			Start:  t,
		})
	}

	for i := range scans {
		scan := &scans[i]
		created := scan.CreatedAt.UTC()
		if created.Before(start) || !created.Before(end) {
			continue
		}
		idx, ok := index[periodLabel(truncate(created, granularity), granularity)]
		if !ok {
			continue
		}
		bucket := &report.Buckets[idx]
		bucket.ScanCount++
		if scan.Passed {
			bucket.PassedCount++
		}
		bucket.Counts.Merge(finding.CountSeverities(scan.Findings))
	}

	var passed int
	for _, bucket := range report.Buckets {
		report.Summary.TotalScans += bucket.ScanCount
		report.Summary.TotalFindings += bucket.Counts.Total
		passed += bucket.PassedCount
	}
	if report.Summary.TotalScans > 0 {
		report.Summary.AvgFindingsPerScan = float64(report.Summary.TotalFindings) / float64(report.Summary.TotalScans)
		report.Summary.PassRate = float64(passed) / float64(report.Summary.TotalScans)
	}
	return report
}

// truncate snaps t down to its period boundary in UTC. Weeks start on
// Monday per ISO-8601.
func truncate(t time.Time, granularity Granularity) time.Time {
	t = t.UTC()
	switch granularity {
	case Week:
		day := t.Truncate(24 * time.Hour)
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case Month:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return t.Truncate(24 * time.Hour)
	}
}

// step advances a bucket start to the next period boundary.
func step(t time.Time, granularity Granularity) time.Time {
	switch granularity {
	case Week:
		return t.AddDate(0, 0, 7)
	case Month:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// periodLabel formats an ISO-8601 period label for a bucket start.
func periodLabel(t time.Time, granularity Granularity) string {
	switch granularity {
	case Week:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%02d", year, week)
	case Month:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
