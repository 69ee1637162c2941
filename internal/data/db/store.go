// Package db implements tenant-scoped persistence for scans, findings,
// and gate policies on top of a GORM connection.
package db

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mcpguard/mcpguard/internal/data/model"
	"github.com/mcpguard/mcpguard/internal/log"
	"github.com/mcpguard/mcpguard/pkg/errors"
	"github.com/mcpguard/mcpguard/pkg/finding"
	"github.com/mcpguard/mcpguard/pkg/gate"
)

// Store defines the persistence operations the API layer depends on.
// Every operation is scoped to a tenant; the store never returns rows
// across tenant boundaries.
type Store interface {
	// InsertScan inserts a scan and its findings.
	InsertScan(ctx context.Context, scan *finding.Scan) error
	// GetScan retrieves one scan with its findings.
	GetScan(ctx context.Context, tenantID, scanUID string) (*finding.Scan, error)
	// ScansInRange lists scans created in [start, end) with findings.
	ScansInRange(ctx context.Context, tenantID string, start, end time.Time) ([]finding.Scan, error)
	// FindingsInRange lists findings created in [start, end).
	FindingsInRange(ctx context.Context, tenantID string, start, end time.Time) ([]finding.Finding, error)
	// ListFindings lists findings by a validated sort/filter query.
	ListFindings(ctx context.Context, tenantID string, query *ListQuery) ([]finding.Finding, error)
	// OpenFindings lists findings that have not been resolved.
	OpenFindings(ctx context.Context, tenantID string) ([]finding.Finding, error)
	// OpenFindingsInRange lists unresolved findings created in [start, end).
	OpenFindingsInRange(ctx context.Context, tenantID string, start, end time.Time) ([]finding.Finding, error)
	// ResolveFinding marks a finding remediated.
	ResolveFinding(ctx context.Context, tenantID, findingUID string, at time.Time) error
	// GetPolicy returns the tenant's policy, or the default when none
	// has been saved.
	GetPolicy(ctx context.Context, tenantID string) (gate.Policy, error)
	// SavePolicy upserts the tenant's policy. Last write wins.
	SavePolicy(ctx context.Context, policy *gate.Policy) error
}

// GormStore implements Store using a GORM DB connection.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GormStore.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	return &GormStore{db: db}, nil
}

// AutoMigrate creates or updates the schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Scan{}, &model.Finding{}, &model.Policy{}); err != nil {
		return fmt.Errorf("failed to auto-migrate models: %w", err)
	}
	return nil
}

// InsertScan inserts a scan and its findings in one transaction.
func (s *GormStore) InsertScan(ctx context.Context, scan *finding.Scan) error {
	if ctx == nil {
		return fmt.Errorf("ctx cannot be nil")
	}
	if scan == nil {
		return fmt.Errorf("scan cannot be nil")
	}
	logger := log.NewLogger(ctx)
	logger.Debug("InsertScan", zap.String("scan", scan.ID), zap.String("tenant", scan.TenantID))

	row := model.ScanFromDomain(scan)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("error creating scan: %w", err)
	}
	return nil
}

// GetScan retrieves a scan and its findings.
func (s *GormStore) GetScan(ctx context.Context, tenantID, scanUID string) (*finding.Scan, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx cannot be nil")
	}

	var row model.Scan
	err := s.db.WithContext(ctx).
		Preload("Findings").
		Where("tenant_id = ? AND scan_uid = ?", tenantID, scanUID).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFoundf("db.GetScan", "scan %s not found", scanUID)
		}
		return nil, fmt.Errorf("error retrieving scan: %w", err)
	}
	scan := row.ToDomain()
	return &scan, nil
}

// ScansInRange lists a tenant's scans created in [start, end),
// chronologically ascending, with findings preloaded.
func (s *GormStore) ScansInRange(ctx context.Context, tenantID string, start, end time.Time) ([]finding.Scan, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx cannot be nil")
	}

	var rows []model.Scan
	err := s.db.WithContext(ctx).
		Preload("Findings").
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantID, start, end).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error listing scans: %w", err)
	}

	scans := make([]finding.Scan, 0, len(rows))
	for i := range rows {
		scans = append(scans, rows[i].ToDomain())
	}
	return scans, nil
}

// FindingsInRange lists a tenant's findings created in [start, end).
func (s *GormStore) FindingsInRange(ctx context.Context, tenantID string, start, end time.Time) ([]finding.Finding, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx cannot be nil")
	}

	var rows []model.Finding
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantID, start, end).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error listing findings: %w", err)
	}

	findings := make([]finding.Finding, 0, len(rows))
	for i := range rows {
		findings = append(findings, rows[i].ToDomain())
	}
	return findings, nil
}

// OpenFindings lists a tenant's unresolved findings, oldest first.
func (s *GormStore) OpenFindings(ctx context.Context, tenantID string) ([]finding.Finding, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx cannot be nil")
	}

	var rows []model.Finding
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND resolved_at IS NULL", tenantID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error listing open findings: %w", err)
	}

	findings := make([]finding.Finding, 0, len(rows))
	for i := range rows {
		findings = append(findings, rows[i].ToDomain())
	}
	return findings, nil
}

// OpenFindingsInRange lists a tenant's unresolved findings created in
// [start, end), oldest first.
func (s *GormStore) OpenFindingsInRange(ctx context.Context, tenantID string, start, end time.Time) ([]finding.Finding, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx cannot be nil")
	}

	var rows []model.Finding
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND resolved_at IS NULL AND created_at >= ? AND created_at < ?", tenantID, start, end).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("error listing open findings: %w", err)
	}

	findings := make([]finding.Finding, 0, len(rows))
	for i := range rows {
		findings = append(findings, rows[i].ToDomain())
	}
	return findings, nil
}

// ResolveFinding stamps ResolvedAt on an open finding. Resolving an
// already-resolved finding is a no-op.
func (s *GormStore) ResolveFinding(ctx context.Context, tenantID, findingUID string, at time.Time) error {
	if ctx == nil {
		return fmt.Errorf("ctx cannot be nil")
	}

	result := s.db.WithContext(ctx).
		Model(&model.Finding{}).
		Where("tenant_id = ? AND finding_uid = ? AND resolved_at IS NULL", tenantID, findingUID).
		Update("resolved_at", at)
	if result.Error != nil {
		return fmt.Errorf("error resolving finding: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		err := s.db.WithContext(ctx).Model(&model.Finding{}).
			Where("tenant_id = ? AND finding_uid = ?", tenantID, findingUID).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("error checking finding: %w", err)
		}
		if count == 0 {
			return errors.NotFoundf("db.ResolveFinding", "finding %s not found", findingUID)
		}
	}
	return nil
}

// GetPolicy returns the tenant's saved policy, or the default policy
// when the tenant has never saved one.
func (s *GormStore) GetPolicy(ctx context.Context, tenantID string) (gate.Policy, error) {
	if ctx == nil {
		return gate.Policy{}, fmt.Errorf("ctx cannot be nil")
	}

	var row model.Policy
	err := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return gate.DefaultPolicy(tenantID), nil
		}
		return gate.Policy{}, fmt.Errorf("error retrieving policy: %w", err)
	}
	return row.ToDomain(), nil
}

// SavePolicy validates and upserts the tenant's policy.
func (s *GormStore) SavePolicy(ctx context.Context, policy *gate.Policy) error {
	if ctx == nil {
		return fmt.Errorf("ctx cannot be nil")
	}
	if policy == nil {
		return fmt.Errorf("policy cannot be nil")
	}
	if err := policy.Validate(); err != nil {
		return err
	}

	logger := log.NewLogger(ctx)
	logger.Debug("SavePolicy", zap.String("tenant", policy.TenantID))

	row := model.PolicyFromDomain(policy)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Policy
		findErr := tx.Where("tenant_id = ?", policy.TenantID).First(&existing).Error
		if findErr == gorm.ErrRecordNotFound {
			return tx.Create(&row).Error
		}
		if findErr != nil {
			return findErr
		}
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
		return tx.Save(&row).Error
	})
	if err != nil {
		return fmt.Errorf("error saving policy: %w", err)
	}
	return nil
}
