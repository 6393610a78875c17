// Package tagaudit mounts a page session on a live page and reports how the
// injection strategies fared there.
package tagaudit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/storefront/backend/internal/application/pagesession"
	apptagging "github.com/storefront/backend/internal/application/tagging"
	apptamper "github.com/storefront/backend/internal/application/tamper"
	"github.com/storefront/backend/internal/domain/page"
	"github.com/storefront/backend/internal/domain/shared"
	"github.com/storefront/backend/internal/domain/tagging"
	"github.com/storefront/backend/internal/infrastructure/clock"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	// DefaultWindow is how long an audit waits for the handle to install
	DefaultWindow = 5 * time.Second
	pollInterval  = 100 * time.Millisecond
)

// ErrDisabled is returned when no page opener is configured
var ErrDisabled = shared.NewDomainError("AUDIT_DISABLED", "Tag audits are disabled")

// Page is a live document the audit can inspect and close
type Page interface {
	page.Document
	Requests() []string
	Close() error
}

// Opener opens a page at a URL
type Opener interface {
	Open(ctx context.Context, url string) (Page, error)
}

// OpenerFunc adapts a function to Opener
type OpenerFunc func(ctx context.Context, url string) (Page, error)

// Open implements Opener
func (f OpenerFunc) Open(ctx context.Context, url string) (Page, error) {
	return f(ctx, url)
}

// Recorder receives audit outcomes and per-strategy attempts
type Recorder interface {
	apptagging.AttemptRecorder
	RecordAudit(ctx context.Context, d time.Duration, installed bool)
}

// Settings configures the mounted session
type Settings struct {
	Tagging       apptagging.Config
	Tamper        apptamper.Config
	QueueCapacity int
	ClaimTTL      time.Duration
	Window        time.Duration
}

// AttemptReport is one strategy outcome
type AttemptReport = tagging.AuditAttempt

// Report is the result of one audit
type Report = tagging.AuditReport

// Service runs tag audits
type Service struct {
	opener   Opener
	settings Settings
	recorder Recorder
	store    tagging.AuditRepository
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a Service. A nil opener disables audits.
func NewService(opener Opener, settings Settings, recorder Recorder, logger *zap.Logger) *Service {
	if settings.Window <= 0 {
		settings.Window = DefaultWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		opener:   opener,
		settings: settings,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// WithStore keeps finished reports in store
func (s *Service) WithStore(store tagging.AuditRepository) *Service {
	s.store = store
	return s
}

// Enabled reports whether audits can run
func (s *Service) Enabled() bool {
	return s.opener != nil
}

// Audit opens target, mounts a session and waits up to the configured window
// for the handle to install. The session is always unmounted and the page
// closed before returning.
func (s *Service) Audit(ctx context.Context, target string) (*Report, error) {
	if !s.Enabled() {
		return nil, ErrDisabled
	}
	if err := validateTarget(target); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "tagaudit", "Audit",
		telemetry.SpanAttrPageURL.String(target))

	var (
		report *Report
		err    error
	)
	telemetry.WithProfilingLabels(ctx, map[string]string{
		telemetry.ProfilingLabelOperation: "tag_audit",
	}, func(ctx context.Context) {
		report, err = s.run(ctx, target)
	})
	if err == nil {
		span.SetAttributes(telemetry.SpanAttrInstalled.Bool(report.Installed))
	}
	telemetry.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) run(ctx context.Context, target string) (*Report, error) {
	start := s.now()

	pg, err := s.opener.Open(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}
	defer func() { _ = pg.Close() }()

	opts := pagesession.Options{
		Tagging:       s.settings.Tagging,
		Tamper:        s.settings.Tamper,
		QueueCapacity: s.settings.QueueCapacity,
		ClaimTTL:      s.settings.ClaimTTL,
		Clock:         clock.New(),
		Logger:        s.logger.With(zap.String("url", target)),
	}
	if s.recorder != nil {
		opts.Recorder = s.recorder
	}

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sess, err := pagesession.Mount(sessCtx, pg, opts)
	if err != nil {
		return nil, fmt.Errorf("mount session: %w", err)
	}

	s.waitInstalled(ctx, sess.Handle())
	report := s.buildReport(target, start, sess, pg)

	if err := sess.Unmount(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("Audit teardown incomplete", zap.String("url", target), zap.Error(err))
	}

	report.Duration = s.now().Sub(start)
	if s.recorder != nil {
		s.recorder.RecordAudit(ctx, report.Duration, report.Installed)
	}
	if s.store != nil {
		if err := s.store.Save(context.WithoutCancel(ctx), report); err != nil {
			s.logger.Warn("Failed to store tag audit", zap.String("url", target), zap.Error(err))
		}
	}
	s.logger.Info("Tag audit finished",
		zap.String("url", target),
		zap.Bool("installed", report.Installed),
		zap.String("owner", report.Owner),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (s *Service) waitInstalled(ctx context.Context, h *tagging.TagHandle) {
	deadline := time.NewTimer(s.settings.Window)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for !h.Installed() {
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) buildReport(target string, start time.Time, sess *pagesession.Session, pg Page) *Report {
	report := &Report{
		ID:                 uuid.New(),
		URL:                target,
		Installed:          sess.Handle().Installed(),
		Owner:              string(sess.Handle().Owner()),
		ActiveSuppressions: sess.ActiveSuppressions(),
		StartedAt:          start,
	}
	for _, a := range sess.Attempts() {
		report.Attempts = append(report.Attempts, AttemptReport{
			Strategy:   string(a.Strategy),
			Status:     string(a.Status),
			RetryCount: a.RetryCount,
			Timestamp:  a.Timestamp,
			Error:      a.ErrorMessage(),
		})
	}

	scriptURL := apptagging.ExpandURL(s.settings.Tagging.ScriptURL, s.settings.Tagging.TrackingID)
	beaconBase := apptagging.ExpandURL(s.settings.Tagging.BeaconURL, s.settings.Tagging.TrackingID)
	for _, req := range pg.Requests() {
		switch {
		case scriptURL != "" && req == scriptURL:
			report.ScriptRequests++
		case beaconBase != "" && strings.HasPrefix(req, stripQuery(beaconBase)):
			report.BeaconFired = true
		}
	}
	return report
}

// Recent returns stored reports, newest first. Without a store it is empty.
func (s *Service) Recent(ctx context.Context, limit int) ([]Report, error) {
	if s.store == nil {
		return []Report{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.Recent(ctx, limit)
}

func stripQuery(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}
	return raw
}

func validateTarget(target string) error {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return shared.NewDomainError("INVALID_INPUT", "Audit URL must be an absolute http(s) URL")
	}
	return nil
}

// IsDisabled reports whether err means audits are not configured
func IsDisabled(err error) bool {
	return errors.Is(err, ErrDisabled)
}
