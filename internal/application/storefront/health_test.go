package storefront

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthService_Check(t *testing.T) {
	ok := CheckerFunc{CheckName: "database", Fn: func(context.Context) error { return nil }}
	failing := CheckerFunc{CheckName: "redis", Fn: func(context.Context) error { return errors.New("connection refused") }}
	slow := CheckerFunc{CheckName: "storage", Fn: func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(time.Second)
		return nil
	}}

	t.Run("all healthy", func(t *testing.T) {
		report := NewHealthService(time.Second, ok).Check(context.Background())
		assert.True(t, report.Healthy())
		require.Len(t, report.Checks, 1)
		assert.Equal(t, HealthOK, report.Checks[0].Status)
	})

	t.Run("one failing", func(t *testing.T) {
		report := NewHealthService(time.Second, failing, ok).Check(context.Background())
		assert.Equal(t, HealthDegraded, report.Status)
		require.Len(t, report.Checks, 2)
		assert.Equal(t, "database", report.Checks[0].Name)
		assert.Equal(t, "redis", report.Checks[1].Name)
		assert.Equal(t, "connection refused", report.Checks[1].Error)
	})

	t.Run("timeout", func(t *testing.T) {
		start := time.Now()
		report := NewHealthService(50*time.Millisecond, ok, slow).Check(context.Background())
		assert.Less(t, time.Since(start), 500*time.Millisecond)
		assert.Equal(t, HealthDegraded, report.Status)
		assert.Equal(t, context.DeadlineExceeded.Error(), report.Checks[1].Error)
	})

	t.Run("no checkers", func(t *testing.T) {
		report := NewHealthService(0).Check(context.Background())
		assert.True(t, report.Healthy())
		assert.Empty(t, report.Checks)
	})
}
