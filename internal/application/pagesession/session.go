// Package pagesession mounts the tag coordinator and the tamper detector onto
// one document and hands back a single teardown.
package pagesession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apptagging "github.com/storefront/backend/internal/application/tagging"
	apptamper "github.com/storefront/backend/internal/application/tamper"
	"github.com/storefront/backend/internal/domain/page"
	"github.com/storefront/backend/internal/domain/tagging"
	"github.com/storefront/backend/internal/domain/tamper"
	"github.com/storefront/backend/internal/infrastructure/clock"
	"go.uber.org/zap"
)

// Options configures a mount
type Options struct {
	Tagging       apptagging.Config
	Tamper        apptamper.Config
	QueueCapacity int
	ClaimTTL      time.Duration
	// DisableTamper mounts only the tag coordinator
	DisableTamper bool

	Clock    clock.Clock
	Logger   *zap.Logger
	Recorder apptagging.AttemptRecorder
}

// Session is one mounted page lifetime
type Session struct {
	handle      *tagging.TagHandle
	coordinator *apptagging.Coordinator
	detector    *apptamper.Detector
	logger      *zap.Logger

	unmountOnce sync.Once
	unmountErr  error
}

// Mount creates a fresh handle, starts the coordinator and then the detector.
// If the detector cannot start, the coordinator is stopped again.
func Mount(ctx context.Context, doc page.Document, opts Options) (*Session, error) {
	if doc == nil {
		return nil, errors.New("pagesession: document is nil")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	handleOpts := []tagging.TagHandleOption{
		tagging.WithNow(clk.Now),
		tagging.WithDeliveryErrorHandler(func(rec tagging.CallRecord, err error) {
			logger.Warn("Track call delivery failed", zap.String("event", rec.Event), zap.Error(err))
		}),
	}
	if opts.QueueCapacity > 0 {
		handleOpts = append(handleOpts, tagging.WithQueueCapacity(opts.QueueCapacity))
	}
	if opts.ClaimTTL > 0 {
		handleOpts = append(handleOpts, tagging.WithClaimTTL(opts.ClaimTTL))
	}
	handle := tagging.NewTagHandle(handleOpts...)

	coordOpts := []apptagging.Option{
		apptagging.WithClock(clk),
		apptagging.WithLogger(logger.Named("tagging")),
	}
	if opts.Recorder != nil {
		coordOpts = append(coordOpts, apptagging.WithRecorder(opts.Recorder))
	}
	s := &Session{
		handle:      handle,
		coordinator: apptagging.NewCoordinator(handle, doc, opts.Tagging, coordOpts...),
		logger:      logger,
	}

	if err := s.coordinator.Start(ctx); err != nil {
		return nil, fmt.Errorf("start tag coordinator: %w", err)
	}

	if !opts.DisableTamper {
		s.detector = apptamper.NewDetector(doc, opts.Tamper,
			apptamper.WithClock(clk),
			apptamper.WithLogger(logger.Named("tamper")),
		)
		if err := s.detector.Start(ctx); err != nil {
			s.coordinator.Stop()
			return nil, fmt.Errorf("start tamper detector: %w", err)
		}
	}

	logger.Debug("Page session mounted")
	return s, nil
}

// Unmount stops every timer and removes every listener the session created.
// Only the first call does any work; later calls return its result.
func (s *Session) Unmount(ctx context.Context) error {
	s.unmountOnce.Do(func() {
		s.coordinator.Stop()
		if s.detector != nil {
			s.unmountErr = s.detector.Stop(ctx)
		}
		s.logger.Debug("Page session unmounted", zap.Error(s.unmountErr))
	})
	return s.unmountErr
}

// Handle returns the session's tag handle
func (s *Session) Handle() *tagging.TagHandle {
	return s.handle
}

// Track queues or forwards an analytics call
func (s *Session) Track(event string, args ...any) {
	s.coordinator.Track(event, args...)
}

// Attempts returns the per-strategy attempt records
func (s *Session) Attempts() []tagging.InjectionAttempt {
	return s.coordinator.Attempts()
}

// Detection returns the detection state; clear when tamper detection is disabled
func (s *Session) Detection() tamper.DetectionState {
	if s.detector == nil {
		return tamper.DetectionState{}
	}
	return s.detector.State()
}

// ActiveSuppressions returns the number of registered suppression listeners
func (s *Session) ActiveSuppressions() int {
	if s.detector == nil {
		return 0
	}
	return s.detector.ActiveSuppressions()
}
