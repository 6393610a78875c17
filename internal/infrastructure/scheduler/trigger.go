package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default daily run time
const (
	DefaultHour   = 3
	DefaultMinute = 0
)

// ParseCronSchedule reads the minute and hour fields of a five-field cron
// expression such as "30 3 * * *". Day, month and weekday fields are
// ignored. An empty expression selects the default time.
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	parts := strings.Fields(cronExpr)
	if len(parts) == 0 {
		return DefaultHour, DefaultMinute, nil
	}
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("cron expression %q needs minute and hour fields", cronExpr)
	}

	minute, err = cronField(parts[0], DefaultMinute, 59)
	if err != nil {
		return 0, 0, fmt.Errorf("minute: %w", err)
	}
	hour, err = cronField(parts[1], DefaultHour, 23)
	if err != nil {
		return 0, 0, fmt.Errorf("hour: %w", err)
	}
	return hour, minute, nil
}

func cronField(s string, def, max int) (int, error) {
	if s == "*" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", s)
	}
	if v < 0 || v > max {
		return 0, fmt.Errorf("must be 0-%d, got %d", max, v)
	}
	return v, nil
}

// DailyTriggerConfig holds configuration for the daily trigger
type DailyTriggerConfig struct {
	Hour          int
	Minute        int
	CheckInterval time.Duration
	MaxRetries    int
}

// DailyTrigger submits one job a day once the configured time has passed
type DailyTrigger struct {
	config    DailyTriggerConfig
	name      string
	scheduler *Scheduler
	logger    *zap.Logger
	now       func() time.Time

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string
}

// NewDailyTrigger creates a trigger submitting jobs named name
func NewDailyTrigger(config DailyTriggerConfig, name string, scheduler *Scheduler, logger *zap.Logger) *DailyTrigger {
	if config.CheckInterval <= 0 {
		config.CheckInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DailyTrigger{
		config:    config,
		name:      name,
		scheduler: scheduler,
		logger:    logger,
		now:       time.Now,
	}
}

// Start starts the check loop
func (t *DailyTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isRunning {
		return nil
	}
	t.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Daily trigger started",
		zap.String("job", t.name),
		zap.Int("hour", t.config.Hour),
		zap.Int("minute", t.config.Minute),
	)
	return nil
}

// Stop stops the check loop
func (t *DailyTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	t.cancel()

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *DailyTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	ticker := time.NewTicker(t.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.checkAndTrigger()
		}
	}
}

// checkAndTrigger submits the day's job once the scheduled time is reached.
// It reports whether a job was submitted.
func (t *DailyTrigger) checkAndTrigger() bool {
	now := t.now()
	today := now.Format("2006-01-02")

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastRunDate == today {
		return false
	}
	scheduled := time.Date(now.Year(), now.Month(), now.Day(), t.config.Hour, t.config.Minute, 0, 0, now.Location())
	if now.Before(scheduled) {
		return false
	}

	if err := t.scheduler.SubmitJob(NewJob(t.name, t.config.MaxRetries)); err != nil {
		t.logger.Error("Failed to submit daily job", zap.String("job", t.name), zap.Error(err))
		return false
	}
	t.lastRunDate = today
	return true
}

// TriggerNow submits a job immediately, independent of the daily schedule
func (t *DailyTrigger) TriggerNow() error {
	return t.scheduler.SubmitJob(NewJob(t.name, t.config.MaxRetries))
}
