package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mcpguard/mcpguard/pkg/errors"
	"github.com/mcpguard/mcpguard/pkg/gate"
)

func (s *Server) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}
	policy, err := s.store.GetPolicy(r.Context(), tenant)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, policy)
}

// handlePutPolicy replaces the tenant's gate policy. The tenant id
// always comes from the request header; a tenant_id in the body is
// ignored rather than trusted.
func (s *Server) handlePutPolicy(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}

	var policy gate.Policy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		s.writeError(w, r, errors.Validationf("api.handlePutPolicy", "invalid request body: %v", err))
		return
	}
	policy.TenantID = tenant

	if err := s.store.SavePolicy(r.Context(), &policy); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("policy updated", zap.String("tenant", tenant))
	s.writeJSON(w, http.StatusOK, policy)
}
