package tagging

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects delivered call records
type recorder struct {
	mu    sync.Mutex
	calls []CallRecord
}

func (r *recorder) track(rec CallRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, rec)
	return nil
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	for i, c := range r.calls {
		out[i] = c.Event
	}
	return out
}

func TestTagHandle_TryClaim(t *testing.T) {
	t.Run("exactly one of many concurrent claimers wins", func(t *testing.T) {
		for _, n := range []int{1, 2, 16, 256} {
			h := NewTagHandle()
			var wins atomic.Int32
			var wg sync.WaitGroup
			start := make(chan struct{})

			for i := 0; i < n; i++ {
				wg.Add(1)
				kind := AllStrategyKinds()[i%3]
				go func() {
					defer wg.Done()
					<-start
					if h.TryClaim(kind) {
						wins.Add(1)
					}
				}()
			}
			close(start)
			wg.Wait()

			assert.Equal(t, int32(1), wins.Load(), "n=%d", n)
		}
	})

	t.Run("holder cannot claim twice", func(t *testing.T) {
		h := NewTagHandle()
		require.True(t, h.TryClaim(StrategyHeadPrepend))
		assert.False(t, h.TryClaim(StrategyHeadPrepend))
		assert.Equal(t, StrategyHeadPrepend, h.Owner())
	})

	t.Run("released claim can be taken by another strategy", func(t *testing.T) {
		h := NewTagHandle()
		require.True(t, h.TryClaim(StrategyHeadPrepend))

		assert.False(t, h.Release(StrategyAsyncExternal), "non-holder cannot release")
		assert.True(t, h.Release(StrategyHeadPrepend))
		assert.True(t, h.TryClaim(StrategyAsyncExternal))
	})

	t.Run("claim is never granted after installation", func(t *testing.T) {
		h := NewTagHandle()
		require.True(t, h.TryClaim(StrategyInline))
		require.NoError(t, h.BindTrackFn(StrategyInline, func(CallRecord) error { return nil }))

		assert.False(t, h.Release(StrategyInline))
		assert.False(t, h.TryClaim(StrategyHeadPrepend))
		assert.True(t, h.Installed())
	})

	t.Run("stale claim expires after the TTL", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		h := NewTagHandle(
			WithClaimTTL(5*time.Second),
			WithNow(func() time.Time { return now }),
		)
		require.True(t, h.TryClaim(StrategyHeadPrepend))

		now = now.Add(4 * time.Second)
		assert.False(t, h.TryClaim(StrategyAsyncExternal))

		now = now.Add(time.Second)
		assert.Equal(t, StrategyKind(""), h.Owner())
		assert.True(t, h.TryClaim(StrategyAsyncExternal))

		err := h.BindTrackFn(StrategyHeadPrepend, func(CallRecord) error { return nil })
		assert.ErrorIs(t, err, ErrNotClaimHolder)
	})

	t.Run("zero TTL keeps claims forever", func(t *testing.T) {
		now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		h := NewTagHandle(WithClaimTTL(0), WithNow(func() time.Time { return now }))
		require.True(t, h.TryClaim(StrategyHeadPrepend))

		now = now.Add(24 * time.Hour)
		assert.False(t, h.TryClaim(StrategyAsyncExternal))
	})
}

func TestTagHandle_BindTrackFn(t *testing.T) {
	t.Run("flushes queued calls in enqueue order", func(t *testing.T) {
		h := NewTagHandle()
		for i := 0; i < 10; i++ {
			h.EnqueueCall(CallRecord{Event: fmt.Sprintf("e%d", i)})
		}
		require.Len(t, h.Pending(), 10)

		rec := &recorder{}
		require.True(t, h.TryClaim(StrategyAsyncExternal))
		require.NoError(t, h.BindTrackFn(StrategyAsyncExternal, rec.track))

		assert.Equal(t, []string{"e0", "e1", "e2", "e3", "e4", "e5", "e6", "e7", "e8", "e9"}, rec.events())
		assert.Empty(t, h.Pending())
		assert.Zero(t, h.Dropped())
	})

	t.Run("forwards calls made after installation immediately", func(t *testing.T) {
		h := NewTagHandle()
		h.EnqueueCall(CallRecord{Event: "before"})

		rec := &recorder{}
		require.True(t, h.TryClaim(StrategyInline))
		require.NoError(t, h.BindTrackFn(StrategyInline, rec.track))
		h.EnqueueCall(CallRecord{Event: "after"})

		assert.Equal(t, []string{"before", "after"}, rec.events())
		assert.Empty(t, h.Pending())
	})

	t.Run("stamps enqueue time when missing", func(t *testing.T) {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		h := NewTagHandle(WithNow(func() time.Time { return at }))
		h.EnqueueCall(CallRecord{Event: "PageView"})

		pending := h.Pending()
		require.Len(t, pending, 1)
		assert.Equal(t, at, pending[0].EnqueuedAt)
	})

	t.Run("rejects binds from non-holders and second binds", func(t *testing.T) {
		h := NewTagHandle()
		noop := func(CallRecord) error { return nil }

		assert.ErrorIs(t, h.BindTrackFn(StrategyInline, noop), ErrNotClaimHolder)
		assert.ErrorIs(t, h.BindTrackFn(StrategyInline, nil), ErrNilTrackFunc)

		require.True(t, h.TryClaim(StrategyInline))
		require.NoError(t, h.BindTrackFn(StrategyInline, noop))
		assert.ErrorIs(t, h.BindTrackFn(StrategyInline, noop), ErrAlreadyInstalled)
	})

	t.Run("no duplicates or drops with concurrent enqueues during bind", func(t *testing.T) {
		h := NewTagHandle(WithQueueCapacity(10000))
		rec := &recorder{}

		var wg sync.WaitGroup
		const producers, perProducer = 8, 200
		for p := 0; p < producers; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < perProducer; i++ {
					h.EnqueueCall(CallRecord{Event: fmt.Sprintf("p%d-%d", p, i)})
				}
			}(p)
		}

		require.True(t, h.TryClaim(StrategyHeadPrepend))
		require.NoError(t, h.BindTrackFn(StrategyHeadPrepend, rec.track))
		wg.Wait()

		events := rec.events()
		assert.Len(t, events, producers*perProducer)

		seen := make(map[string]bool, len(events))
		lastIndex := make(map[int]int)
		for _, e := range events {
			assert.False(t, seen[e], "duplicate %s", e)
			seen[e] = true

			var p, i int
			_, err := fmt.Sscanf(e, "p%d-%d", &p, &i)
			require.NoError(t, err)
			if last, ok := lastIndex[p]; ok {
				assert.Greater(t, i, last, "producer %d delivered out of order", p)
			}
			lastIndex[p] = i
		}
	})

	t.Run("track errors are reported and do not stop the flush", func(t *testing.T) {
		var failed []string
		h := NewTagHandle(WithDeliveryErrorHandler(func(rec CallRecord, err error) {
			failed = append(failed, rec.Event)
		}))
		h.EnqueueCall(CallRecord{Event: "a"})
		h.EnqueueCall(CallRecord{Event: "b"})
		h.EnqueueCall(CallRecord{Event: "c"})

		var delivered []string
		require.True(t, h.TryClaim(StrategyInline))
		require.NoError(t, h.BindTrackFn(StrategyInline, func(rec CallRecord) error {
			delivered = append(delivered, rec.Event)
			if rec.Event == "b" {
				return errors.New("boom")
			}
			return nil
		}))

		assert.Equal(t, []string{"a", "b", "c"}, delivered)
		assert.Equal(t, []string{"b"}, failed)
	})
}

func TestTagHandle_BoundedQueue(t *testing.T) {
	h := NewTagHandle(WithQueueCapacity(3))
	for i := 0; i < 5; i++ {
		h.EnqueueCall(CallRecord{Event: fmt.Sprintf("e%d", i)})
	}

	assert.Equal(t, 2, h.Dropped())

	rec := &recorder{}
	require.True(t, h.TryClaim(StrategyInline))
	require.NoError(t, h.BindTrackFn(StrategyInline, rec.track))
	assert.Equal(t, []string{"e2", "e3", "e4"}, rec.events())
}
