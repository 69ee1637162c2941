package api

import (
	"net/http"
	"strconv"

	"github.com/mcpguard/mcpguard/internal/data/db"
	"github.com/mcpguard/mcpguard/pkg/errors"
)

// handleListFindings serves GET /findings. Sort and filter parameters
// go through the store's allow-list; unknown fields are a validation
// error, not a silent default.
func (s *Server) handleListFindings(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}

	query, err := listQueryFromRequest(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	findings, err := s.store.ListFindings(r.Context(), tenant, query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"findings": findings,
		"count":    len(findings),
	})
}

func listQueryFromRequest(r *http.Request) (*db.ListQuery, error) {
	const op = "api.listQueryFromRequest"
	params := r.URL.Query()

	query := &db.ListQuery{
		Severity:  params.Get("severity"),
		Category:  params.Get("category"),
		Scanner:   params.Get("scanner"),
		SortField: params.Get("sort"),
	}
	switch params.Get("order") {
	case "", "asc":
	case "desc":
		query.SortDesc = true
	default:
		return nil, errors.Validationf(op, "order must be asc or desc")
	}
	if raw := params.Get("resolved"); raw != "" {
		resolved, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.Validationf(op, "resolved must be a boolean")
		}
		query.Resolved = &resolved
	}
	for _, field := range []struct {
		name string
		dst  *int
	}{{"limit", &query.Limit}, {"offset", &query.Offset}} {
		if raw := params.Get(field.name); raw != "" {
			value, err := strconv.Atoi(raw)
			if err != nil {
				return nil, errors.Validationf(op, "%s must be an integer", field.name)
			}
			*field.dst = value
		}
	}
	return query, nil
}

// handleResolveFinding marks a finding remediated as of now.
func (s *Server) handleResolveFinding(w http.ResponseWriter, r *http.Request) {
	tenant, ok := s.requireTenant(w, r)
	if !ok {
		return
	}

	at := s.now().UTC()
	if err := s.store.ResolveFinding(r.Context(), tenant, r.PathValue("id"), at); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"id":          r.PathValue("id"),
		"resolved_at": at,
	})
}
