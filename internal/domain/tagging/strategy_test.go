package tagging

import (
	"errors"
	"testing"
	"time"

	"github.com/storefront/backend/internal/domain/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStrategies(t *testing.T) {
	strategies := DefaultStrategies()
	require.Len(t, strategies, 4)

	kinds := make([]StrategyKind, len(strategies))
	for i, s := range strategies {
		kinds[i] = s.Kind
		assert.True(t, s.Kind.IsValid())
	}
	assert.Equal(t, AllStrategyKinds(), kinds)

	t.Run("only the beacon bypasses the claim", func(t *testing.T) {
		for _, s := range strategies {
			if s.Kind == StrategyBeacon {
				assert.False(t, s.ClaimsHandle())
				assert.False(t, s.Retryable)
				assert.Equal(t, MediaTypeGIF, s.MediaType)
				continue
			}
			assert.True(t, s.ClaimsHandle(), s.Kind)
			assert.True(t, s.Retryable, s.Kind)
		}
	})

	t.Run("head prepend is synchronous and first in head", func(t *testing.T) {
		s := strategies[1]
		assert.Equal(t, page.PlacementHeadFirst, s.Placement)
		assert.False(t, s.Async)
		assert.True(t, strategies[2].Async)
	})
}

func TestSortByPriority(t *testing.T) {
	in := []StrategyDescriptor{
		{Kind: StrategyBeacon, Priority: 3},
		{Kind: StrategyInline, Priority: 0},
		{Kind: StrategyAsyncExternal, Priority: 2},
		{Kind: StrategyHeadPrepend, Priority: 2},
	}
	out := SortByPriority(in)

	assert.Equal(t, StrategyInline, out[0].Kind)
	assert.Equal(t, StrategyAsyncExternal, out[1].Kind)
	assert.Equal(t, StrategyHeadPrepend, out[2].Kind)
	assert.Equal(t, StrategyBeacon, out[3].Kind)
	assert.Equal(t, StrategyBeacon, in[0].Kind, "input is not modified")
}

func TestInjectionAttempt_Lifecycle(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	a := NewInjectionAttempt(StrategyHeadPrepend, t0)
	assert.Equal(t, AttemptPending, a.Status)
	assert.False(t, a.Status.IsTerminal())

	cause := NewScriptLoadError(StrategyHeadPrepend, "https://cdn.example/t.js", errors.New("net::ERR_BLOCKED"))
	a.Fail(t0.Add(time.Second), cause)
	assert.Equal(t, AttemptFailed, a.Status)
	assert.ErrorIs(t, a.Err, ErrScriptLoad)
	assert.Contains(t, a.ErrorMessage(), "ERR_BLOCKED")

	a.Retry(t0.Add(2 * time.Second))
	assert.Equal(t, 1, a.RetryCount)
	assert.Equal(t, AttemptPending, a.Status)
	assert.Empty(t, a.ErrorMessage())

	a.Succeed(t0.Add(3 * time.Second))
	a.Skip(t0.Add(4*time.Second), ErrAlreadyInstalled)
	assert.Equal(t, AttemptSucceeded, a.Status, "skip never downgrades a success")
	assert.Equal(t, t0.Add(3*time.Second), a.Timestamp)
}
