package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetentionJobName names order retention jobs
const RetentionJobName = "order_retention"

// OrderPurger deletes orders created before a cutoff
type OrderPurger interface {
	DeleteBefore(ctx context.Context, t time.Time) (int64, error)
}

// RetentionExecutor deletes orders older than maxAge
type RetentionExecutor struct {
	orders OrderPurger
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewRetentionExecutor creates a RetentionExecutor
func NewRetentionExecutor(orders OrderPurger, maxAge time.Duration, logger *zap.Logger) *RetentionExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetentionExecutor{
		orders: orders,
		maxAge: maxAge,
		logger: logger,
		now:    time.Now,
	}
}

// Execute implements Executor
func (e *RetentionExecutor) Execute(ctx context.Context, job *Job) error {
	if e.maxAge <= 0 {
		return fmt.Errorf("%w: retention max age must be positive", ErrInvalidConfig)
	}
	cutoff := e.now().UTC().Add(-e.maxAge)
	deleted, err := e.orders.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete orders before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	e.logger.Info("Order retention applied",
		zap.String("job_id", job.ID.String()),
		zap.Time("cutoff", cutoff),
		zap.Int64("deleted", deleted),
	)
	return nil
}
