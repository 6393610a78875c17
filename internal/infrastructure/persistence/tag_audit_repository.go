package persistence

import (
	"context"
	"fmt"

	"github.com/storefront/backend/internal/domain/tagging"
	"github.com/storefront/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormTagAuditRepository implements tagging.AuditRepository using GORM
type GormTagAuditRepository struct {
	db *gorm.DB
}

// NewGormTagAuditRepository creates a new GormTagAuditRepository
func NewGormTagAuditRepository(db *gorm.DB) *GormTagAuditRepository {
	return &GormTagAuditRepository{db: db}
}

// Save stores a finished audit
func (r *GormTagAuditRepository) Save(ctx context.Context, report *tagging.AuditReport) error {
	var m models.TagAuditModel
	if err := m.FromDomain(report); err != nil {
		return fmt.Errorf("encode audit attempts: %w", err)
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("insert tag audit: %w", err)
	}
	return nil
}

// Recent returns the newest audits
func (r *GormTagAuditRepository) Recent(ctx context.Context, limit int) ([]tagging.AuditReport, error) {
	var rows []models.TagAuditModel
	if err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list tag audits: %w", err)
	}
	reports := make([]tagging.AuditReport, 0, len(rows))
	for i := range rows {
		report, err := rows[i].ToDomain()
		if err != nil {
			return nil, fmt.Errorf("decode tag audit %s: %w", rows[i].ID, err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

var _ tagging.AuditRepository = (*GormTagAuditRepository)(nil)
