// Package tamper runs the inspection-tool heuristic and the input suppression
// handlers for a mounted page. Both are deterrents; neither blocks analytics.
package tamper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/storefront/backend/internal/domain/page"
	"github.com/storefront/backend/internal/domain/tamper"
	"github.com/storefront/backend/internal/infrastructure/clock"
	"go.uber.org/zap"
)

const (
	// DefaultPollInterval is how often the viewport is measured
	DefaultPollInterval = time.Second
	// DefaultReadTimeout bounds one viewport read
	DefaultReadTimeout = 500 * time.Millisecond
	// DefaultNotice is written to the page console on a clear to suspected edge
	DefaultNotice = "Developer tools detected. Page content is provided for shopping only."
)

var (
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("detector already started")
	// ErrStopped is returned by Start after Stop
	ErrStopped = errors.New("detector stopped")
)

// Config configures a Detector
type Config struct {
	Threshold    int
	PollInterval time.Duration
	ReadTimeout  time.Duration
	Notice       string
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = tamper.DefaultThreshold
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.Notice == "" {
		c.Notice = DefaultNotice
	}
	return c
}

// Detector polls the viewport for docked developer tools and keeps four
// suppression listeners registered while running
type Detector struct {
	cfg    Config
	doc    page.Document
	clock  clock.Clock
	logger *zap.Logger

	mu         sync.Mutex
	ctx        context.Context
	started    bool
	running    bool
	machine    *tamper.Machine
	registry   *tamper.SuppressionRegistry
	poll       clock.Timer
	suppressed map[page.EventKind]int
}

// Option configures a Detector
type Option func(*Detector)

// WithClock sets the clock that drives the poll
func WithClock(c clock.Clock) Option {
	return func(d *Detector) {
		d.clock = c
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// NewDetector creates a stopped detector in the clear state
func NewDetector(doc page.Document, cfg Config, opts ...Option) *Detector {
	cfg = cfg.withDefaults()
	d := &Detector{
		cfg:        cfg,
		doc:        doc,
		clock:      clock.New(),
		logger:     zap.NewNop(),
		machine:    tamper.NewMachine(cfg.Threshold),
		registry:   tamper.NewSuppressionRegistry(),
		suppressed: make(map[page.EventKind]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d
}

// Start registers the suppression listeners and arms the poll. If any
// listener fails to register, the ones already registered are removed.
func (d *Detector) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		if d.running {
			return ErrAlreadyStarted
		}
		return ErrStopped
	}
	d.started = true
	d.ctx = context.WithoutCancel(ctx)

	for _, l := range d.listeners() {
		id, err := d.doc.AddEventListener(ctx, l)
		if err != nil {
			rollback := d.removeAllLocked(ctx)
			return errors.Join(fmt.Errorf("register %s suppression: %w", l.Kind, err), rollback)
		}
		if err := d.registry.Register(l.Kind, id); err != nil {
			_ = d.doc.RemoveEventListener(ctx, id)
			return errors.Join(err, d.removeAllLocked(ctx))
		}
	}

	d.running = true
	d.poll = clock.Every(d.clock, d.cfg.PollInterval, d.tick)

	d.logger.Debug("Tamper detector started",
		zap.Int("threshold", d.cfg.Threshold),
		zap.Duration("poll_interval", d.cfg.PollInterval),
	)
	return nil
}

func (d *Detector) listeners() []page.Listener {
	out := make([]page.Listener, 0, 4)
	for _, kind := range tamper.SuppressedKinds() {
		l := page.Listener{Kind: kind, PreventDefault: true, Handler: d.onSuppressed}
		if kind == page.EventKeyDown {
			l.Chords = tamper.BlockedChords()
		}
		out = append(out, l)
	}
	return out
}

func (d *Detector) onSuppressed(e *page.Event) {
	d.mu.Lock()
	d.suppressed[e.Kind]++
	d.mu.Unlock()
	d.logger.Debug("Suppressed inspection gesture", zap.String("event", string(e.Kind)), zap.String("key", e.Key))
}

// tick measures the viewport once and advances the state machine
func (d *Detector) tick() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	ctx := d.ctx
	d.mu.Unlock()

	readCtx, cancel := context.WithTimeout(ctx, d.cfg.ReadTimeout)
	v, err := d.doc.Viewport(readCtx)
	cancel()
	if err != nil {
		d.logger.Warn("Viewport read failed, skipping detection tick", zap.Error(err))
		return
	}

	delta := tamper.DeltaOf(v)

	d.mu.Lock()
	// Stop may have run while the viewport was being read.
	if !d.running {
		d.mu.Unlock()
		return
	}
	edge := d.machine.Observe(delta)
	d.mu.Unlock()

	if !edge {
		return
	}
	d.logger.Info("Developer tools suspected",
		zap.Int("delta_width", delta.Width),
		zap.Int("delta_height", delta.Height),
	)
	if err := d.doc.ConsoleWarn(ctx, d.cfg.Notice); err != nil {
		d.logger.Warn("Failed to write console notice", zap.Error(err))
	}
}

// Stop cancels the poll and removes every suppression listener. After Stop
// returns no tick can change the detection state. Stop is idempotent.
func (d *Detector) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false
	if d.poll != nil {
		d.poll.Stop()
		d.poll = nil
	}
	err := d.removeAllLocked(ctx)
	d.logger.Debug("Tamper detector stopped")
	return err
}

func (d *Detector) removeAllLocked(ctx context.Context) error {
	var errs []error
	for kind, id := range d.registry.Drain() {
		if err := d.doc.RemoveEventListener(ctx, id); err != nil && !errors.Is(err, page.ErrListenerNotFound) {
			errs = append(errs, fmt.Errorf("remove %s suppression: %w", kind, err))
		}
	}
	return errors.Join(errs...)
}

// Running reports whether the detector is started and not stopped
func (d *Detector) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

// State returns a copy of the detection state
func (d *Detector) State() tamper.DetectionState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.machine.State()
}

// ActiveSuppressions returns the number of registered suppression listeners
func (d *Detector) ActiveSuppressions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.registry.Len()
}

// Suppressed returns how many events of kind were suppressed
func (d *Detector) Suppressed(kind page.EventKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.suppressed[kind]
}
