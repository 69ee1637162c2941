package api

import (
	"net/http"

	"github.com/mcpguard/mcpguard/pkg/errors"
)

// disabledResponse is the 200 body returned when an insight is turned
// off. Disabled is an expected configuration, not a request failure.
type disabledResponse struct {
	Enabled bool   `json:"enabled"`
	Message string `json:"message"`
}

// writeInsight renders an insight result, translating a disabled
// capability into a 200 response carrying the reason.
func (s *Server) writeInsight(w http.ResponseWriter, r *http.Request, body any, err error) {
	if err != nil {
		if errors.KindOf(err) == errors.KindCapabilityDisabled {
			s.writeJSON(w, http.StatusOK, disabledResponse{Enabled: false, Message: err.Error()})
			return
		}
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"enabled": true, "result": body})
}

func (s *Server) handleAnomalies(w http.ResponseWriter, r *http.Request) {
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
	report, err := s.insights.Anomalies(scans)
	s.writeInsight(w, r, report, err)
}

func (s *Server) handleCorrelations(w http.ResponseWriter, r *http.Request) {
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
	associations, err := s.insights.Correlations(findings)
	s.writeInsight(w, r, associations, err)
}

func (s *Server) handlePrioritization(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}
	findings, err := s.store.OpenFindings(r.Context(), tenant)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	recommendations, err := s.insights.Prioritization(findings, s.now().UTC())
	s.writeInsight(w, r, recommendations, err)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
