// Package model holds the gorm persistence models and their mapping to
// the canonical domain types.
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/severity"
)

// Scan represents one stored scanner run.
type Scan struct {
	ID         uint      `json:"ID" gorm:"primaryKey;autoIncrement"`
	ScanUID    string    `json:"ScanUID" gorm:"uniqueIndex;not null"`
	TenantID   string    `json:"TenantID" gorm:"index;not null"`
	ScanType   string    `json:"ScanType"`
	CreatedAt  time.Time `json:"CreatedAt" gorm:"index"`
	DurationMS int64     `json:"DurationMS"`
	Passed     bool      `json:"Passed"`
	Findings   []Finding `json:"Findings" gorm:"foreignKey:ScanID;constraint:OnDelete:CASCADE"`
}

// Finding represents one stored finding. ScanUID and TenantID are
// denormalized so finding-only queries need no join.
type Finding struct {
	ID          uint       `json:"ID" gorm:"primaryKey;autoIncrement"`
	FindingUID  string     `json:"FindingUID" gorm:"uniqueIndex;not null"`
	ScanID      uint       `json:"ScanID" gorm:"index"`
	ScanUID     string     `json:"ScanUID" gorm:"index"`
	TenantID    string     `json:"TenantID" gorm:"index;not null"`
	Severity    string     `json:"Severity" gorm:"index"`
	Category    string     `json:"Category" gorm:"index"`
	Scanner     string     `json:"Scanner" gorm:"index"`
	Location    string     `json:"Location"`
	Description string     `json:"Description"`
	Remediation string     `json:"Remediation"`
	CreatedAt   time.Time  `json:"CreatedAt" gorm:"index"`
	ResolvedAt  *time.Time `json:"ResolvedAt"`
}

// ToDomain converts a stored scan with its findings to the canonical
// shape.
func (s *Scan) ToDomain() finding.Scan {
	scan := finding.Scan{
		ID:         s.ScanUID,
		TenantID:   s.TenantID,
		ScanType:   s.ScanType,
		CreatedAt:  s.CreatedAt,
		DurationMS: s.DurationMS,
		Passed:     s.Passed,
	}
	scan.Findings = make([]finding.Finding, 0, len(s.Findings))
	for i := range s.Findings {
		scan.Findings = append(scan.Findings, s.Findings[i].ToDomain())
	}
	return scan
}

// ScanFromDomain builds the persistence rows for a canonical scan.
func ScanFromDomain(scan *finding.Scan) Scan {
	row := Scan{
		ScanUID:    scan.ID,
		TenantID:   scan.TenantID,
		ScanType:   scan.ScanType,
		CreatedAt:  scan.CreatedAt,
		DurationMS: scan.DurationMS,
		Passed:     scan.Passed,
	}
	row.Findings = make([]Finding, 0, len(scan.Findings))
	for i := range scan.Findings {
		row.Findings = append(row.Findings, FindingFromDomain(&scan.Findings[i], scan))
	}
	return row
}

// ToDomain converts a stored finding to the canonical shape.
func (f *Finding) ToDomain() finding.Finding {
	return finding.Finding{
		ID:          f.FindingUID,
		ScanID:      f.ScanUID,
		Severity:    severity.Level(f.Severity),
		Category:    f.Category,
		Scanner:     f.Scanner,
		Location:    f.Location,
		Description: f.Description,
		Remediation: f.Remediation,
		CreatedAt:   f.CreatedAt,
		ResolvedAt:  f.ResolvedAt,
	}
}

// FindingFromDomain builds a persistence row for a canonical finding.
func FindingFromDomain(f *finding.Finding, owner *finding.Scan) Finding {
	return Finding{
		FindingUID:  f.ID,
		ScanUID:     owner.ID,
		TenantID:    owner.TenantID,
		Severity:    f.Severity.String(),
		Category:    f.Category,
		Scanner:     f.Scanner,
		Location:    f.Location,
		Description: f.Description,
		Remediation: f.Remediation,
		CreatedAt:   f.CreatedAt,
		ResolvedAt:  f.ResolvedAt,
	}
}

// JSONStringArray is a custom type handling JSON serialization of
// string arrays in a single text column.
type JSONStringArray []string

// Value implements the driver.Valuer interface for database serialization.
func (j JSONStringArray) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database deserialization.
func (j *JSONStringArray) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("JSONStringArray Scan error: expected []byte or string, got %T", value)
	}
}
