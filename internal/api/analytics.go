package api

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mcpguard/mcpguard/pkg/analytics"
	"github.com/mcpguard/mcpguard/pkg/errors"
)

const (
	defaultWindowDays = 30
	maxWindowDays     = 365
)

// window parses the ?days query into a midnight-aligned [start, end)
// range. The end bound is the midnight after now so the current day is
// always included, and day-granularity trends hold exactly `days`
// buckets.
func (s *Server) window(r *http.Request) (start, end time.Time, err error) {
	const op = "api.window"
	days := defaultWindowDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days <= 0 {
			return time.Time{}, time.Time{}, errors.Validationf(op, "days must be a positive integer")
		}
		if days > maxWindowDays {
			return time.Time{}, time.Time{}, errors.Validationf(op, "days must not exceed %d", maxWindowDays)
		}
	}
	end = s.now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, 1)
	return end.AddDate(0, 0, -days), end, nil
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}
	start, end, err := s.window(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	granularity, err := analytics.ParseGranularity(r.URL.Query().Get("group_by"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	scans, err := s.store.ScansInRange(r.Context(), tenant, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analytics.Trends(scans, start, end, granularity))
}

func (s *Server) handleSeverityDistribution(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}
	start, end, err := s.window(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	findings, err := s.store.FindingsInRange(r.Context(), tenant, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analytics.SeverityDistribution(findings))
}

func (s *Server) handleScannerEffectiveness(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}
	start, end, err := s.window(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	scans, err := s.store.ScansInRange(r.Context(), tenant, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"scanners": analytics.ScannerEffectiveness(scans),
	})
}

func (s *Server) handleRemediationProgress(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}
	start, end, err := s.window(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	findings, err := s.store.FindingsInRange(r.Context(), tenant, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analytics.RemediationProgress(findings, s.now().UTC()))
}

func (s *Server) handleRiskScores(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}
	start, end, err := s.window(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	findings, err := s.store.OpenFindingsInRange(r.Context(), tenant, start, end)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, analytics.RiskScores(findings, s.now().UTC()))
}

// handleDashboard aggregates the analytics surfaces into one response.
// Each metric is scoped independently: a metric that cannot be
// computed reports its own error and the rest still render.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}
	start, end, err := s.window(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ctx := r.Context()
	now := s.now().UTC()
	body := make(map[string]any)

	scans, err := s.store.ScansInRange(ctx, tenant, start, end)
	if err != nil {
		s.logger.Error("dashboard: scans unavailable", zap.String("tenant", tenant), zap.Error(err))
		body["trends"] = metricError("scan data unavailable")
		body["scanner_effectiveness"] = metricError("scan data unavailable")
	} else {
		body["trends"] = analytics.Trends(scans, start, end, analytics.Day)
		body["scanner_effectiveness"] = analytics.ScannerEffectiveness(scans)
	}

	findings, err := s.store.FindingsInRange(ctx, tenant, start, end)
	if err != nil {
		s.logger.Error("dashboard: findings unavailable", zap.String("tenant", tenant), zap.Error(err))
		body["severity_distribution"] = metricError("finding data unavailable")
		body["remediation_progress"] = metricError("finding data unavailable")
	} else {
		body["severity_distribution"] = analytics.SeverityDistribution(findings)
		body["remediation_progress"] = analytics.RemediationProgress(findings, now)
	}

	open, err := s.store.OpenFindingsInRange(ctx, tenant, start, end)
	if err != nil {
		s.logger.Error("dashboard: open findings unavailable", zap.String("tenant", tenant), zap.Error(err))
		body["risk_scores"] = metricError("finding data unavailable")
	} else {
		body["risk_scores"] = analytics.RiskScores(open, now)
	}

	s.writeJSON(w, http.StatusOK, body)
}

func metricError(message string) map[string]string {
	return map[string]string{"error": message}
}
