package db

import (
	"context"
	"fmt"

	"github.com/mcpguard/mcpguard/internal/data/model"
	"github.com/mcpguard/mcpguard/pkg/errors"
	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/severity"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// sortColumns maps the query-facing sort field names to the columns
// they are allowed to reach. Anything outside this map is rejected.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"severity":   "severity",
	"category":   "category",
	"scanner":    "scanner",
}

// ListQuery carries validated sort and filter parameters for finding
// listings. Field names outside the allow-list are rejected rather than
// interpolated into SQL.
type ListQuery struct {
	Severity string
	Category string
	Scanner  string
	Resolved *bool

	SortField string
	SortDesc  bool

	Limit  int
	Offset int
}

// Validate checks the query against the allow-lists and normalizes
// defaults in place.
func (q *ListQuery) Validate() error {
	const op = "db.ListQuery.Validate"
	if q.SortField == "" {
		q.SortField = "created_at"
	}
	if _, ok := sortColumns[q.SortField]; !ok {
		return errors.Validationf(op, "unsupported sort field %q", q.SortField)
	}
	if q.Severity != "" && !severity.Level(q.Severity).Valid() {
		return errors.Validationf(op, "unknown severity %q", q.Severity)
	}
	if q.Limit < 0 || q.Offset < 0 {
		return errors.Validationf(op, "limit and offset must be non-negative")
	}
	if q.Limit == 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	return nil
}

// ListFindings lists a tenant's findings filtered and sorted per the
// query. Severity sorting uses the ordinal rank, not lexicographic
// order.
func (s *GormStore) ListFindings(ctx context.Context, tenantID string, query *ListQuery) ([]finding.Finding, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx cannot be nil")
	}
	if query == nil {
		query = &ListQuery{}
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	tx := s.db.WithContext(ctx).Model(&model.Finding{}).Where("tenant_id = ?", tenantID)
	if query.Severity != "" {
		tx = tx.Where("severity = ?", query.Severity)
	}
	if query.Category != "" {
		tx = tx.Where("category = ?", query.Category)
	}
	if query.Scanner != "" {
		tx = tx.Where("scanner = ?", query.Scanner)
	}
	if query.Resolved != nil {
		if *query.Resolved {
			tx = tx.Where("resolved_at IS NOT NULL")
		} else {
			tx = tx.Where("resolved_at IS NULL")
		}
	}

	dir := "ASC"
	if query.SortDesc {
		dir = "DESC"
	}
	column := sortColumns[query.SortField]
	if query.SortField == "severity" {
		tx = tx.Order(severityRankOrder(query.SortDesc))
	} else {
		tx = tx.Order(fmt.Sprintf("%s %s", column, dir))
	}
	tx = tx.Order("finding_uid ASC")

	var rows []model.Finding
	if err := tx.Limit(query.Limit).Offset(query.Offset).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("error listing findings: %w", err)
	}

	findings := make([]finding.Finding, 0, len(rows))
	for i := range rows {
		findings = append(findings, rows[i].ToDomain())
	}
	return findings, nil
}

// severityRankOrder builds a CASE expression so severity sorting
// follows the ordinal scale. The levels are fixed constants, never
// user input.
func severityRankOrder(desc bool) string {
	expr := "CASE severity"
	for _, level := range severity.Levels() {
		expr += fmt.Sprintf(" WHEN '%s' THEN %d", level, level.Rank())
	}
	expr += " ELSE 0 END"
	if desc {
		return expr + " DESC"
	}
	return expr + " ASC"
}
