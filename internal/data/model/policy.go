package model

import (
	"time"

	"github.com/mcpguard/mcpguard/pkg/gate"
	"github.com/mcpguard/mcpguard/pkg/severity"
)

// Policy is the stored per-tenant gate configuration. Versionless:
// last write wins.
type Policy struct {
	ID                     uint            `json:"ID" gorm:"primaryKey;autoIncrement"`
	TenantID               string          `json:"TenantID" gorm:"uniqueIndex;not null"`
	CriticalMax            int             `json:"CriticalMax"`
	HighMax                int             `json:"HighMax"`
	MediumMax              int             `json:"MediumMax"`
	LowMax                 int             `json:"LowMax"`
	RequireAllScannersPass bool            `json:"RequireAllScannersPass"`
	AllowWarnings          bool            `json:"AllowWarnings"`
	WarningSeverities      JSONStringArray `json:"WarningSeverities" gorm:"type:text"`
	CreatedAt              time.Time       `json:"CreatedAt" gorm:"autoCreateTime"`
	UpdatedAt              time.Time       `json:"UpdatedAt" gorm:"autoUpdateTime"`
}

// ToDomain converts the stored policy to the gate value object.
func (p *Policy) ToDomain() gate.Policy {
	policy := gate.Policy{
		TenantID: p.TenantID,
		Thresholds: gate.Thresholds{
			CriticalMax: p.CriticalMax,
			HighMax:     p.HighMax,
			MediumMax:   p.MediumMax,
			LowMax:      p.LowMax,
		},
		PassCriteria: gate.PassCriteria{
			RequireAllScannersPass: p.RequireAllScannersPass,
			AllowWarnings:          p.AllowWarnings,
		},
	}
	for _, s := range p.WarningSeverities {
		policy.WarningSeverities = append(policy.WarningSeverities, severity.Level(s))
	}
	return policy
}

// PolicyFromDomain builds a persistence row for a gate policy.
func PolicyFromDomain(policy *gate.Policy) Policy {
	row := Policy{
		TenantID:               policy.TenantID,
		CriticalMax:            policy.Thresholds.CriticalMax,
		HighMax:                policy.Thresholds.HighMax,
		MediumMax:              policy.Thresholds.MediumMax,
		LowMax:                 policy.Thresholds.LowMax,
		RequireAllScannersPass: policy.PassCriteria.RequireAllScannersPass,
		AllowWarnings:          policy.PassCriteria.AllowWarnings,
	}
	for _, s := range policy.WarningSeverities {
		row.WarningSeverities = append(row.WarningSeverities, s.String())
	}
	return row
}
