// Package tagging runs the injection strategies that race to install the
// analytics handle on a mounted page.
package tagging

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/storefront/backend/internal/domain/page"
	"github.com/storefront/backend/internal/domain/tagging"
	"github.com/storefront/backend/internal/infrastructure/clock"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("coordinator already started")
	// ErrStopped is returned by Start after Stop
	ErrStopped = errors.New("coordinator stopped")
)

// AttemptRecorder receives every terminal strategy outcome
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, strategy tagging.StrategyKind, status tagging.AttemptStatus)
}

type noopRecorder struct{}

func (noopRecorder) RecordAttempt(context.Context, tagging.StrategyKind, tagging.AttemptStatus) {}

// Coordinator fires every strategy against one document and keeps the
// per-strategy attempt records. Strategy failures never escape it: a failed
// claim holder releases its claim and the strategies that were waiting on that
// claim are re-attempted in priority order.
type Coordinator struct {
	cfg      Config
	handle   *tagging.TagHandle
	doc      page.Document
	clock    clock.Clock
	logger   *zap.Logger
	recorder AttemptRecorder

	mu          sync.Mutex
	ctx         context.Context
	started     bool
	stopped     bool
	attempts    map[tagging.StrategyKind]*tagging.InjectionAttempt
	executed    map[tagging.StrategyKind]bool
	generation  map[tagging.StrategyKind]int
	waiting     map[tagging.StrategyKind]bool
	loadTimers  map[tagging.StrategyKind]clock.Timer
	retryTimer  clock.Timer
	beaconFired bool
	stopWatch   func() bool
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithClock sets the clock used by the retry window and load timeouts
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) {
		co.clock = c
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(co *Coordinator) {
		co.logger = logger
	}
}

// WithRecorder sets the attempt recorder
func WithRecorder(r AttemptRecorder) Option {
	return func(co *Coordinator) {
		co.recorder = r
	}
}

// NewCoordinator creates a coordinator for one mount
func NewCoordinator(handle *tagging.TagHandle, doc page.Document, cfg Config, opts ...Option) *Coordinator {
	c := &Coordinator{
		cfg:        cfg.withDefaults(),
		handle:     handle,
		doc:        doc,
		clock:      clock.New(),
		logger:     zap.NewNop(),
		recorder:   noopRecorder{},
		executed:   make(map[tagging.StrategyKind]bool),
		generation: make(map[tagging.StrategyKind]int),
		waiting:    make(map[tagging.StrategyKind]bool),
		loadTimers: make(map[tagging.StrategyKind]clock.Timer),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.recorder == nil {
		c.recorder = noopRecorder{}
	}

	now := c.clock.Now()
	c.attempts = make(map[tagging.StrategyKind]*tagging.InjectionAttempt, len(c.cfg.Strategies))
	for _, d := range c.cfg.Strategies {
		c.attempts[d.Kind] = tagging.NewInjectionAttempt(d.Kind, now)
	}
	return c
}

// Start fires every strategy in priority order without waiting for script
// loads, then arms the retry window. Cancelling ctx stops the coordinator.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return ErrStopped
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.ctx = context.WithoutCancel(ctx)
	c.stopWatch = context.AfterFunc(ctx, c.Stop)
	c.mu.Unlock()

	c.logger.Info("Starting tag injection",
		zap.String("tracking_id", c.cfg.TrackingID),
		zap.Int("strategies", len(c.cfg.Strategies)),
	)

	for _, d := range c.cfg.Strategies {
		c.attempt(d)
	}

	if c.cfg.RetryDelay > 0 {
		c.RetryWindow(c.cfg.RetryDelay)
	}
	return nil
}

// RetryWindow schedules one more pass over the retryable strategies after delay.
// A pending window is replaced. The pass does nothing once the handle is installed.
func (c *Coordinator) RetryWindow(delay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.retryTimer != nil {
		c.retryTimer.Stop()
	}
	c.retryTimer = c.clock.AfterFunc(delay, c.retryPass)
}

func (c *Coordinator) retryPass() {
	if c.isStopped() || c.handle.Installed() {
		return
	}
	c.logger.Debug("Retry window elapsed, re-attempting strategies")
	for _, d := range c.cfg.Strategies {
		if d.Retryable {
			c.attempt(d)
		}
	}
}

// Stop cancels the retry window and pending load timeouts. Load callbacks that
// arrive afterwards are ignored. Stop is idempotent.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	if c.retryTimer != nil {
		c.retryTimer.Stop()
		c.retryTimer = nil
	}
	for kind, t := range c.loadTimers {
		t.Stop()
		delete(c.loadTimers, kind)
	}
	stopWatch := c.stopWatch
	c.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	c.logger.Debug("Tag injection stopped")
}

// Stopped reports whether Stop has run
func (c *Coordinator) Stopped() bool {
	return c.isStopped()
}

// Attempts returns a snapshot of the attempt records in priority order
func (c *Coordinator) Attempts() []tagging.InjectionAttempt {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]tagging.InjectionAttempt, 0, len(c.cfg.Strategies))
	for _, d := range c.cfg.Strategies {
		out = append(out, *c.attempts[d.Kind])
	}
	return out
}

// Attempt returns the record of one strategy
func (c *Coordinator) Attempt(kind tagging.StrategyKind) (tagging.InjectionAttempt, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.attempts[kind]
	if !ok {
		return tagging.InjectionAttempt{}, false
	}
	return *a, true
}

// Track queues an analytics call, or forwards it once the handle is installed
func (c *Coordinator) Track(event string, args ...any) {
	c.handle.EnqueueCall(tagging.CallRecord{Event: event, Args: args, EnqueuedAt: c.clock.Now()})
}

// Handle returns the handle the coordinator installs
func (c *Coordinator) Handle() *tagging.TagHandle {
	return c.handle
}

// attempt interprets one descriptor
func (c *Coordinator) attempt(d tagging.StrategyDescriptor) {
	if c.isStopped() {
		return
	}
	switch d.Guard {
	case tagging.GuardOncePerMount:
		c.fireBeacon(d)
	case tagging.GuardClaim:
		c.attemptClaim(d)
	default:
		c.logger.Warn("Unknown strategy guard", zap.String("strategy", string(d.Kind)), zap.String("guard", string(d.Guard)))
	}
}

func (c *Coordinator) attemptClaim(d tagging.StrategyDescriptor) {
	gen, reason, ok := c.claim(d.Kind)
	if reason != nil {
		c.logSkip(d.Kind, reason)
	}
	if !ok {
		return
	}

	if d.Kind == tagging.StrategyInline {
		c.runInline(d, gen)
		return
	}
	c.insertScript(d, gen)
}

// claim takes the handle claim for kind and starts a new try. The in-flight
// check, the claim and the attempt record change happen under one lock so a
// concurrent caller can never mark a running try as skipped. A non-nil reason
// means the strategy was recorded as skipped.
func (c *Coordinator) claim(kind tagging.StrategyKind) (gen int, reason error, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.inFlightLocked(kind) {
		return 0, nil, false
	}
	switch {
	case kind == tagging.StrategyInline && c.cfg.InlineSnippet == "":
		reason = tagging.ErrInlineUnavailable
	case !c.handle.TryClaim(kind):
		if c.handle.Installed() {
			reason = tagging.ErrAlreadyInstalled
		} else {
			reason = tagging.ErrClaimHeld
			c.waiting[kind] = true
		}
	}
	if reason != nil {
		c.attempts[kind].Skip(c.clock.Now(), reason)
		return 0, reason, false
	}
	return c.beginLocked(kind), nil, true
}

func (c *Coordinator) runInline(d tagging.StrategyDescriptor, gen int) {
	ctx := c.context()
	if err := c.doc.EvalInline(ctx, c.cfg.InlineSnippet); err != nil {
		c.fail(d.Kind, gen, err)
		return
	}
	c.bind(d.Kind, gen)
}

func (c *Coordinator) insertScript(d tagging.StrategyDescriptor, gen int) {
	src := ExpandURL(c.cfg.ScriptURL, c.cfg.TrackingID)
	script := page.Script{Src: src, Type: d.MediaType, Async: d.Async}

	c.mu.Lock()
	if !c.stopped {
		kind := d.Kind
		c.loadTimers[kind] = c.clock.AfterFunc(c.cfg.LoadTimeout, func() {
			c.fail(kind, gen, tagging.NewScriptLoadError(kind, src, tagging.ErrLoadTimeout))
		})
	}
	c.mu.Unlock()

	err := c.doc.InsertScript(c.context(), script, d.Placement, page.LoadCallbacks{
		OnLoad: func() {
			c.bind(d.Kind, gen)
		},
		OnError: func(err error) {
			c.fail(d.Kind, gen, tagging.NewScriptLoadError(d.Kind, src, err))
		},
	})
	if err != nil {
		c.fail(d.Kind, gen, tagging.NewScriptLoadError(d.Kind, src, err))
		return
	}
	c.logger.Debug("Inserted analytics script",
		zap.String("strategy", string(d.Kind)),
		zap.String("src", src),
		zap.String("placement", d.Placement.String()),
		zap.Bool("async", d.Async),
	)
}

// bind resolves the track global and installs it on the handle
func (c *Coordinator) bind(kind tagging.StrategyKind, gen int) {
	if !c.current(kind, gen) {
		return
	}
	ctx := c.context()
	fn, err := c.doc.LookupTrack(ctx, c.cfg.GlobalName)
	if err != nil {
		c.fail(kind, gen, err)
		return
	}

	err = c.handle.BindTrackFn(kind, func(rec tagging.CallRecord) error {
		return fn(ctx, rec.Event, rec.Args...)
	})
	switch {
	case err == nil:
		c.succeed(kind, gen)
	case errors.Is(err, tagging.ErrAlreadyInstalled), errors.Is(err, tagging.ErrNotClaimHolder):
		c.finishSkipped(kind, gen, err)
	default:
		c.fail(kind, gen, err)
	}
}

func (c *Coordinator) fireBeacon(d tagging.StrategyDescriptor) {
	c.mu.Lock()
	if c.beaconFired {
		c.mu.Unlock()
		return
	}
	c.beaconFired = true
	c.mu.Unlock()

	gen, ok := c.begin(d.Kind)
	if !ok {
		return
	}
	src := BeaconURL(c.cfg.BeaconURL, c.cfg.TrackingID, c.cfg.PageViewEvent)
	if err := c.doc.InsertImage(c.context(), page.Image{Src: src, Width: 1, Height: 1}, d.Placement); err != nil {
		c.fail(d.Kind, gen, err)
		return
	}
	c.succeed(d.Kind, gen)
}

// begin marks the strategy as running and returns the generation of this try
func (c *Coordinator) begin(kind tagging.StrategyKind) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return 0, false
	}
	return c.beginLocked(kind), true
}

func (c *Coordinator) beginLocked(kind tagging.StrategyKind) int {
	a := c.attempts[kind]
	if c.executed[kind] {
		a.Retry(c.clock.Now())
	} else {
		c.executed[kind] = true
		a.Status = tagging.AttemptPending
		a.Timestamp = c.clock.Now()
		a.Err = nil
	}
	delete(c.waiting, kind)
	c.generation[kind]++
	return c.generation[kind]
}

func (c *Coordinator) succeed(kind tagging.StrategyKind, gen int) {
	c.mu.Lock()
	if !c.currentLocked(kind, gen) {
		c.mu.Unlock()
		return
	}
	c.stopLoadTimerLocked(kind)
	c.attempts[kind].Succeed(c.clock.Now())
	c.waiting = make(map[tagging.StrategyKind]bool)
	ctx := c.ctx
	c.mu.Unlock()

	c.logger.Info("Injection strategy succeeded", zap.String("strategy", string(kind)))
	c.recorder.RecordAttempt(ctx, kind, tagging.AttemptSucceeded)
}

func (c *Coordinator) finishSkipped(kind tagging.StrategyKind, gen int, reason error) {
	c.mu.Lock()
	if !c.currentLocked(kind, gen) {
		c.mu.Unlock()
		return
	}
	c.stopLoadTimerLocked(kind)
	c.attempts[kind].Skip(c.clock.Now(), reason)
	ctx := c.ctx
	c.mu.Unlock()

	c.logger.Debug("Injection strategy lost the claim", zap.String("strategy", string(kind)), zap.Error(reason))
	c.recorder.RecordAttempt(ctx, kind, tagging.AttemptSkipped)
}

// fail records the failure, releases the claim and fails over to the
// strategies that were waiting on it
func (c *Coordinator) fail(kind tagging.StrategyKind, gen int, err error) {
	c.mu.Lock()
	if !c.currentLocked(kind, gen) {
		c.mu.Unlock()
		return
	}
	c.stopLoadTimerLocked(kind)
	c.attempts[kind].Fail(c.clock.Now(), err)
	ctx := c.ctx
	c.mu.Unlock()

	c.logger.Warn("Injection strategy failed", zap.String("strategy", string(kind)), zap.Error(err))
	c.recorder.RecordAttempt(ctx, kind, tagging.AttemptFailed)

	if !c.handle.Release(kind) {
		return
	}
	for _, d := range c.takeWaiting() {
		c.attempt(d)
	}
}

// takeWaiting returns, in priority order, the strategies skipped because of a
// claim and clears the set
func (c *Coordinator) takeWaiting() []tagging.StrategyDescriptor {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []tagging.StrategyDescriptor
	for _, d := range c.cfg.Strategies {
		if c.waiting[d.Kind] {
			out = append(out, d)
		}
	}
	c.waiting = make(map[tagging.StrategyKind]bool)
	return out
}

func (c *Coordinator) logSkip(kind tagging.StrategyKind, reason error) {
	c.logger.Debug("Injection strategy skipped", zap.String("strategy", string(kind)), zap.Error(reason))
	c.recorder.RecordAttempt(c.context(), kind, tagging.AttemptSkipped)
}

// inFlightLocked reports whether the strategy's current try is still running
func (c *Coordinator) inFlightLocked(kind tagging.StrategyKind) bool {
	return c.executed[kind] && c.attempts[kind].Status == tagging.AttemptPending
}

func (c *Coordinator) current(kind tagging.StrategyKind, gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked(kind, gen)
}

// currentLocked reports whether a callback belongs to the live try of a running coordinator
func (c *Coordinator) currentLocked(kind tagging.StrategyKind, gen int) bool {
	return !c.stopped && c.generation[kind] == gen && c.attempts[kind].Status == tagging.AttemptPending
}

func (c *Coordinator) stopLoadTimerLocked(kind tagging.StrategyKind) {
	if t, ok := c.loadTimers[kind]; ok {
		t.Stop()
		delete(c.loadTimers, kind)
	}
}

func (c *Coordinator) isStopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}

func (c *Coordinator) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}
