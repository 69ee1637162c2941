package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/mcpguard/mcpguard/pkg/errors"
)

// errorResponse is the JSON body for every error status.
type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError maps the error's kind to an HTTP status. Internal error
// details stay in the log; the client sees the message only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		s.writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

// requireTenant rejects requests without a tenant header. Returns the
// tenant id and whether the request may proceed.
func (s *Server) requireTenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenant := tenantID(r)
	if tenant == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: tenantHeader + " header is required"})
		return "", false
	}
	return tenant, true
}
