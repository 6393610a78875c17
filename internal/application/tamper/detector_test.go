package tamper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/storefront/backend/internal/domain/page"
	"github.com/storefront/backend/internal/domain/tamper"
	"github.com/storefront/backend/internal/infrastructure/clock"
	"github.com/storefront/backend/internal/infrastructure/headless"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func viewportWithDelta(height int) page.Viewport {
	return page.Viewport{OuterWidth: 1280, OuterHeight: 720 + height, InnerWidth: 1280, InnerHeight: 720}
}

func newTestDetector(t *testing.T) (*Detector, *headless.Page, *clock.Manual) {
	t.Helper()
	p := headless.New()
	t.Cleanup(func() { _ = p.Close() })
	mc := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	d := NewDetector(p, Config{}, WithClock(mc), WithLogger(zaptest.NewLogger(t)))
	return d, p, mc
}

func TestDetector_ThresholdEdge(t *testing.T) {
	d, p, mc := newTestDetector(t)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	t.Cleanup(func() { _ = d.Stop(ctx) })

	t.Run("one below threshold stays clear", func(t *testing.T) {
		p.SetViewport(viewportWithDelta(tamper.DefaultThreshold - 1))
		mc.Advance(DefaultPollInterval)
		assert.Equal(t, tamper.StateClear, d.State().State())
		assert.Equal(t, tamper.DefaultThreshold-1, d.State().LastMeasuredDelta.Height)
	})

	t.Run("one above threshold is suspected on the next tick", func(t *testing.T) {
		p.SetViewport(viewportWithDelta(tamper.DefaultThreshold + 1))
		assert.Equal(t, tamper.StateClear, d.State().State())

		mc.Advance(DefaultPollInterval)
		assert.Equal(t, tamper.StateSuspected, d.State().State())

		warns := p.Console()
		require.Len(t, warns, 1)
		assert.Equal(t, "warn", warns[0].Level)
		assert.Equal(t, DefaultNotice, warns[0].Message)
	})

	t.Run("notice is written once per edge", func(t *testing.T) {
		mc.Advance(3 * DefaultPollInterval)
		assert.Equal(t, tamper.StateSuspected, d.State().State())
		assert.Len(t, p.Console(), 1)
	})

	t.Run("closing tools clears", func(t *testing.T) {
		p.SetViewport(headless.DefaultViewport)
		mc.Advance(DefaultPollInterval)
		assert.Equal(t, tamper.StateClear, d.State().State())
	})
}

func TestDetector_Suppression(t *testing.T) {
	d, p, _ := newTestDetector(t)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))

	assert.Equal(t, 4, p.ListenerCount())
	assert.Equal(t, 4, d.ActiveSuppressions())

	tests := []struct {
		name      string
		event     page.Event
		prevented bool
	}{
		{"context menu", page.Event{Kind: page.EventContextMenu}, true},
		{"selection start", page.Event{Kind: page.EventSelectStart}, true},
		{"drag start", page.Event{Kind: page.EventDragStart}, true},
		{"F12", page.Event{Kind: page.EventKeyDown, Key: "F12"}, true},
		{"Ctrl+Shift+I", page.Event{Kind: page.EventKeyDown, Key: "I", Ctrl: true, Shift: true}, true},
		{"Cmd+Option+J", page.Event{Kind: page.EventKeyDown, Key: "j", Meta: true, Alt: true}, true},
		{"Ctrl+U", page.Event{Kind: page.EventKeyDown, Key: "u", Ctrl: true}, true},
		{"plain typing", page.Event{Kind: page.EventKeyDown, Key: "a"}, false},
		{"copy", page.Event{Kind: page.EventKeyDown, Key: "c", Ctrl: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := tt.event
			assert.Equal(t, tt.prevented, p.Dispatch(&e))
		})
	}
	assert.Equal(t, 4, d.Suppressed(page.EventKeyDown))
	assert.Equal(t, 1, d.Suppressed(page.EventContextMenu))

	require.NoError(t, d.Stop(ctx))
	e := page.Event{Kind: page.EventContextMenu}
	assert.False(t, p.Dispatch(&e))
}

func TestDetector_TeardownCompleteness(t *testing.T) {
	d, p, mc := newTestDetector(t)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	assert.Equal(t, 1, mc.Pending())

	require.NoError(t, d.Stop(ctx))
	require.NoError(t, d.Stop(ctx))

	assert.False(t, d.Running())
	assert.Equal(t, 0, p.ListenerCount())
	assert.Equal(t, 0, d.ActiveSuppressions())
	assert.Equal(t, 0, mc.Pending())

	p.SetViewport(viewportWithDelta(500))
	mc.Advance(time.Hour)
	assert.Equal(t, tamper.DetectionState{}, d.State())
	assert.Empty(t, p.Console())

	assert.ErrorIs(t, d.Start(ctx), ErrStopped)
}

func TestDetector_StartTwice(t *testing.T) {
	d, _, _ := newTestDetector(t)
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	t.Cleanup(func() { _ = d.Stop(ctx) })
	assert.ErrorIs(t, d.Start(ctx), ErrAlreadyStarted)
}

// failingDoc rejects listener registration after a number of successes
type failingDoc struct {
	*headless.Page
	allow int
}

func (f *failingDoc) AddEventListener(ctx context.Context, l page.Listener) (page.ListenerID, error) {
	if f.allow == 0 {
		return 0, errors.New("listener quota exceeded")
	}
	f.allow--
	return f.Page.AddEventListener(ctx, l)
}

// brokenViewport fails every viewport read
type brokenViewport struct {
	*headless.Page
}

func (brokenViewport) Viewport(context.Context) (page.Viewport, error) {
	return page.Viewport{}, errors.New("window gone")
}

func TestDetector_StartRollsBack(t *testing.T) {
	p := headless.New()
	t.Cleanup(func() { _ = p.Close() })
	mc := clock.NewManual(time.Now())
	d := NewDetector(&failingDoc{Page: p, allow: 2}, Config{}, WithClock(mc))

	err := d.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listener quota exceeded")
	assert.Equal(t, 0, p.ListenerCount())
	assert.Equal(t, 0, d.ActiveSuppressions())
	assert.Equal(t, 0, mc.Pending())
}

func TestDetector_ViewportErrorSkipsTick(t *testing.T) {
	p := headless.New()
	t.Cleanup(func() { _ = p.Close() })
	mc := clock.NewManual(time.Now())
	d := NewDetector(brokenViewport{Page: p}, Config{Threshold: 100, PollInterval: 250 * time.Millisecond}, WithClock(mc))
	ctx := context.Background()
	require.NoError(t, d.Start(ctx))
	t.Cleanup(func() { _ = d.Stop(ctx) })

	mc.Advance(time.Second)
	assert.Equal(t, tamper.DetectionState{}, d.State())
	assert.True(t, d.Running())
	assert.Equal(t, 1, mc.Pending(), "poll keeps running after a failed read")
}
