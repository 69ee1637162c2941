package finding

import (
	"testing"
	"time"

	"github.com/mcpguard/mcpguard/pkg/severity"
)

func TestCountSeverities(t *testing.T) {
	findings := []Finding{
		{Severity: severity.Critical},
		{Severity: severity.High},
		{Severity: severity.High},
		{Severity: severity.Medium},
		{Severity: severity.Low},
		{Severity: severity.Info},
		{Severity: severity.Info},
	}
	counts := CountSeverities(findings)
	if counts.Critical != 1 || counts.High != 2 || counts.Medium != 1 || counts.Low != 1 || counts.Info != 2 {
		t.Errorf("unexpected counts: %+v", counts)
	}
	if counts.Total != counts.Critical+counts.High+counts.Medium+counts.Low {
		t.Errorf("Total = %d, want sum of non-info counts", counts.Total)
	}
}

func TestSeverityCountsMerge(t *testing.T) {
	a := SeverityCounts{Critical: 1, High: 2, Total: 3}
	b := SeverityCounts{Medium: 4, Info: 5, Total: 4}
	a.Merge(b)
	want := SeverityCounts{Critical: 1, High: 2, Medium: 4, Info: 5, Total: 7}
	if a != want {
		t.Errorf("Merge() = %+v, want %+v", a, want)
	}
}

func TestAgeDays(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		createdAt time.Time
		want      int
	}{
		{"ten days old", now.AddDate(0, 0, -10), 10},
		{"same instant", now, 0},
		{"future creation clamps to zero", now.Add(48 * time.Hour), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := Finding{CreatedAt: tt.createdAt}
			if got := f.AgeDays(now); got != tt.want {
				t.Errorf("AgeDays() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestResolved(t *testing.T) {
	f := Finding{}
	if f.Resolved() {
		t.Error("finding without ResolvedAt should not be resolved")
	}
	ts := time.Now()
	f.ResolvedAt = &ts
	if !f.Resolved() {
		t.Error("finding with ResolvedAt should be resolved")
	}
}
