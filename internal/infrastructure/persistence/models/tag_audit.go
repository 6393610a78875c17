package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/domain/tagging"
)

// TagAuditModel is the tag_audits row. Attempts are stored as a JSON array.
type TagAuditModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	URL            string    `gorm:"type:text;not null"`
	Installed      bool      `gorm:"not null"`
	Owner          string    `gorm:"type:varchar(32);not null;default:''"`
	BeaconFired    bool      `gorm:"not null"`
	ScriptRequests int       `gorm:"not null;default:0"`
	Attempts       string    `gorm:"type:jsonb;not null"`
	DurationMs     int64     `gorm:"not null"`
	StartedAt      time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (TagAuditModel) TableName() string {
	return "tag_audits"
}

// FromDomain populates the model from a report
func (m *TagAuditModel) FromDomain(r *tagging.AuditReport) error {
	attempts := r.Attempts
	if attempts == nil {
		attempts = []tagging.AuditAttempt{}
	}
	raw, err := json.Marshal(attempts)
	if err != nil {
		return err
	}
	m.ID = r.ID
	m.URL = r.URL
	m.Installed = r.Installed
	m.Owner = r.Owner
	m.BeaconFired = r.BeaconFired
	m.ScriptRequests = r.ScriptRequests
	m.Attempts = string(raw)
	m.DurationMs = r.Duration.Milliseconds()
	m.StartedAt = r.StartedAt
	return nil
}

// ToDomain converts the model to a report. Suppression counts are not kept.
func (m *TagAuditModel) ToDomain() (tagging.AuditReport, error) {
	r := tagging.AuditReport{
		ID:             m.ID,
		URL:            m.URL,
		Installed:      m.Installed,
		Owner:          m.Owner,
		BeaconFired:    m.BeaconFired,
		ScriptRequests: m.ScriptRequests,
		Duration:       time.Duration(m.DurationMs) * time.Millisecond,
		StartedAt:      m.StartedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(m.Attempts), &r.Attempts); err != nil {
		return r, err
	}
	return r, nil
}
