package storefront

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Health statuses
const (
	HealthOK       = "ok"
	HealthDegraded = "degraded"
)

// DefaultHealthTimeout bounds one health run
const DefaultHealthTimeout = 3 * time.Second

// Checker is one named dependency check
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

// Name returns the check name
func (c CheckerFunc) Name() string { return c.CheckName }

// Check runs the function
func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// CheckResult is the outcome of one checker
type CheckResult struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// HealthReport aggregates all checks
type HealthReport struct {
	Status    string        `json:"status"`
	Checks    []CheckResult `json:"checks"`
	Timestamp time.Time     `json:"timestamp"`
}

// Healthy reports whether every check passed
func (r *HealthReport) Healthy() bool {
	return r.Status == HealthOK
}

// HealthService runs checkers concurrently
type HealthService struct {
	checkers []Checker
	timeout  time.Duration
}

// NewHealthService creates a HealthService
func NewHealthService(timeout time.Duration, checkers ...Checker) *HealthService {
	if timeout <= 0 {
		timeout = DefaultHealthTimeout
	}
	return &HealthService{checkers: checkers, timeout: timeout}
}

// Check runs every checker with the service timeout. A checker that does not
// return in time is reported degraded.
func (s *HealthService) Check(ctx context.Context) *HealthReport {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	results := make([]CheckResult, len(s.checkers))
	var wg sync.WaitGroup
	for i, c := range s.checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()
			results[i] = runCheck(ctx, c)
		}(i, c)
	}
	wg.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	report := &HealthReport{Status: HealthOK, Checks: results, Timestamp: time.Now().UTC()}
	for _, r := range results {
		if r.Status != HealthOK {
			report.Status = HealthDegraded
			break
		}
	}
	return report
}

func runCheck(ctx context.Context, c Checker) CheckResult {
	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- c.Check(ctx) }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	res := CheckResult{Name: c.Name(), Status: HealthOK, LatencyMs: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = HealthDegraded
		res.Error = err.Error()
	}
	return res
}
