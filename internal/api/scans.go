package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mcpguard/mcpguard/pkg/errors"
	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/gate"
	"github.com/mcpguard/mcpguard/pkg/normalize"
)

// ingestRequest is the POST /scans body. A scan carries one submission
// per scanner engine that ran.
type ingestRequest struct {
	ScanType    string                 `json:"scan_type"`
	DurationMS  int64                  `json:"duration_ms"`
	Submissions []normalize.Submission `json:"submissions"`
}

// ingestResponse reports the stored scan id and the gate verdict
// computed at ingest time.
type ingestResponse struct {
	ScanID string      `json:"scan_id"`
	Gate   gate.Result `json:"gate"`
}

// handleIngestScan accepts raw scanner output, normalizes it into
// canonical findings, evaluates the tenant's gate policy, and stores
// the scan with its verdict.
func (s *Server) handleIngestScan(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}

	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.Validationf("api.handleIngestScan", "invalid request body: %v", err))
		return
	}
	if len(req.Submissions) == 0 {
		s.writeError(w, r, errors.Validationf("api.handleIngestScan", "at least one submission is required"))
		return
	}
	if req.ScanType == "" {
		req.ScanType = req.Submissions[0].Scanner
	}

	ctx := r.Context()
	now := s.now().UTC()
	scanID := uuid.NewString()

	var findings []finding.Finding
	for i := range req.Submissions {
		produced, err := s.normalizer.Normalize(&req.Submissions[i], scanID, now)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		findings = append(findings, produced...)
	}

	policy, err := s.store.GetPolicy(ctx, tenant)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := gate.Evaluate(findings, policy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	scan := finding.Scan{
		ID:         scanID,
		TenantID:   tenant,
		ScanType:   req.ScanType,
		CreatedAt:  now,
		DurationMS: req.DurationMS,
		Passed:     result.Passed,
		Findings:   findings,
	}
	if err := s.store.InsertScan(ctx, &scan); err != nil {
		s.writeError(w, r, err)
		return
	}

	for i := range req.Submissions {
		_ = s.collector.AddCounter(ctx, "scans_ingested_total", 1, req.Submissions[i].Scanner) //nolint:errcheck
	}
	outcome := "failed"
	if result.Passed {
		outcome = "passed"
	}
	_ = s.collector.AddCounter(ctx, "gate_results_total", 1, outcome) //nolint:errcheck
	s.logger.Info("scan ingested",
		zap.String("scan", scanID),
		zap.String("tenant", tenant),
		zap.Int("findings", len(findings)),
		zap.Bool("passed", result.Passed))

	s.writeJSON(w, http.StatusCreated, ingestResponse{ScanID: scanID, Gate: result})
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}
	scan, err := s.store.GetScan(r.Context(), tenant, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, scan)
}

// handleGateResult re-evaluates a stored scan against the tenant's
// current policy. The verdict recorded at ingest time stays on the
// scan row; this endpoint answers "would it pass now".
func (s *Server) handleGateResult(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	scan, err := s.store.GetScan(ctx, tenant, r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	policy, err := s.store.GetPolicy(ctx, tenant)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := gate.Evaluate(scan.Findings, policy)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
