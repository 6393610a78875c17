package tagging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditAttempt is one strategy outcome observed during an audit
type AuditAttempt struct {
	Strategy   string    `json:"strategy"`
	Status     string    `json:"status"`
	RetryCount int       `json:"retry_count"`
	Timestamp  time.Time `json:"timestamp"`
	Error      string    `json:"error,omitempty"`
}

// AuditReport is the outcome of mounting a session on a live page
type AuditReport struct {
	ID                 uuid.UUID      `json:"id"`
	URL                string         `json:"url"`
	Installed          bool           `json:"installed"`
	Owner              string         `json:"owner,omitempty"`
	Attempts           []AuditAttempt `json:"attempts"`
	BeaconFired        bool           `json:"beacon_fired"`
	ScriptRequests     int            `json:"script_requests"`
	ActiveSuppressions int            `json:"active_suppressions"`
	Duration           time.Duration  `json:"duration"`
	StartedAt          time.Time      `json:"started_at"`
}

// AuditRepository keeps audit reports
type AuditRepository interface {
	Save(ctx context.Context, report *AuditReport) error
	// Recent returns up to limit reports, newest first
	Recent(ctx context.Context, limit int) ([]AuditReport, error)
}
