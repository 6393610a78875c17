package tagging

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storefront/backend/internal/domain/page"
	"github.com/storefront/backend/internal/domain/tagging"
	"github.com/storefront/backend/internal/infrastructure/clock"
	"github.com/storefront/backend/internal/infrastructure/headless"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	testScriptURL = "https://cdn.example.com/tag.js?id={id}"
	testBeaconURL = "https://px.example.com/tr?id={id}"
	testScriptSrc = "https://cdn.example.com/tag.js?id=T-1"
)

const trackScript = `
var calls = [];
function track(ev) {
	calls.push(ev);
}
`

var errBlocked = errors.New("blocked by client")

// MockRecorder is a mock implementation of AttemptRecorder
type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) RecordAttempt(ctx context.Context, strategy tagging.StrategyKind, status tagging.AttemptStatus) {
	m.Called(ctx, strategy, status)
}

type fixture struct {
	page   *headless.Page
	clock  *clock.Manual
	handle *tagging.TagHandle
	coord  *Coordinator
}

func newFixture(t *testing.T, cfg Config, pageOpts ...headless.Option) *fixture {
	t.Helper()
	if cfg.TrackingID == "" {
		cfg.TrackingID = "T-1"
	}
	if cfg.ScriptURL == "" {
		cfg.ScriptURL = testScriptURL
	}
	if cfg.BeaconURL == "" {
		cfg.BeaconURL = testBeaconURL
	}

	mc := clock.NewManual(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	opts := append([]headless.Option{headless.WithResource(testScriptSrc, trackScript)}, pageOpts...)
	p := headless.New(opts...)
	t.Cleanup(func() { _ = p.Close() })

	h := tagging.NewTagHandle(tagging.WithNow(mc.Now))
	c := NewCoordinator(h, p, cfg, WithClock(mc), WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(c.Stop)

	return &fixture{page: p, clock: mc, handle: h, coord: c}
}

func (f *fixture) calls(t *testing.T) []string {
	t.Helper()
	v, err := f.page.Eval(context.Background(), `calls.join(",")`)
	require.NoError(t, err)
	s := v.(string)
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func (f *fixture) status(t *testing.T, kind tagging.StrategyKind) tagging.AttemptStatus {
	t.Helper()
	a, ok := f.coord.Attempt(kind)
	require.True(t, ok)
	return a.Status
}

func countRequests(reqs []string, prefix string) int {
	n := 0
	for _, r := range reqs {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

// =============================================================================
// Start
// =============================================================================

func TestCoordinator_InlineWins(t *testing.T) {
	f := newFixture(t, Config{InlineSnippet: trackScript})
	ctx := context.Background()

	require.NoError(t, f.coord.Start(ctx))

	assert.True(t, f.handle.Installed())
	assert.Equal(t, tagging.AttemptSucceeded, f.status(t, tagging.StrategyInline))
	assert.Equal(t, tagging.AttemptSkipped, f.status(t, tagging.StrategyHeadPrepend))
	assert.Equal(t, tagging.AttemptSkipped, f.status(t, tagging.StrategyAsyncExternal))
	assert.Equal(t, tagging.AttemptSucceeded, f.status(t, tagging.StrategyBeacon))

	a, _ := f.coord.Attempt(tagging.StrategyHeadPrepend)
	assert.ErrorIs(t, a.Err, tagging.ErrAlreadyInstalled)

	reqs := f.page.Requests()
	assert.Equal(t, 0, countRequests(reqs, "https://cdn.example.com/"))
	assert.Equal(t, 1, countRequests(reqs, "https://px.example.com/"))

	f.coord.Track("PageView")
	assert.Equal(t, []string{"PageView"}, f.calls(t))
}

func TestCoordinator_HeadPrependInstallsAndFlushesInOrder(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	require.NoError(t, f.coord.Start(ctx))

	assert.Equal(t, tagging.AttemptSkipped, f.status(t, tagging.StrategyInline))
	assert.Equal(t, tagging.AttemptPending, f.status(t, tagging.StrategyHeadPrepend))
	assert.Equal(t, tagging.AttemptSkipped, f.status(t, tagging.StrategyAsyncExternal))
	assert.Equal(t, tagging.StrategyHeadPrepend, f.handle.Owner())

	head := f.page.Head()
	require.Len(t, head, 1, "only the claim holder inserts a script")
	assert.Equal(t, page.PlacementHeadFirst, head[0].Placement)
	assert.False(t, head[0].Async)
	assert.Equal(t, tagging.MediaTypeJavaScript, head[0].Type)

	f.coord.Track("PageView")
	f.coord.Track("ViewContent")
	assert.Len(t, f.handle.Pending(), 2)

	f.page.ProcessLoads(ctx)

	require.True(t, f.handle.Installed())
	assert.Equal(t, tagging.AttemptSucceeded, f.status(t, tagging.StrategyHeadPrepend))
	assert.Empty(t, f.handle.Pending())

	f.coord.Track("AddToCart")
	assert.Equal(t, []string{"PageView", "ViewContent", "AddToCart"}, f.calls(t))
}

func TestCoordinator_StartTwice(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.coord.Start(context.Background()))
	assert.ErrorIs(t, f.coord.Start(context.Background()), ErrAlreadyStarted)

	f.coord.Stop()
	g := newFixture(t, Config{})
	g.coord.Stop()
	assert.ErrorIs(t, g.coord.Start(context.Background()), ErrStopped)
}

// =============================================================================
// Strategy independence
// =============================================================================

func TestCoordinator_StrategyIndependence(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		blocker headless.Blocker
		failed  tagging.StrategyKind
		winner  tagging.StrategyKind
	}{
		{
			name:   "inline evaluation error",
			cfg:    Config{InlineSnippet: "function ("},
			failed: tagging.StrategyInline,
			winner: tagging.StrategyHeadPrepend,
		},
		{
			name:   "inline without track global",
			cfg:    Config{InlineSnippet: "var nothing = 1;"},
			failed: tagging.StrategyInline,
			winner: tagging.StrategyHeadPrepend,
		},
		{
			name: "head-prepend onerror",
			blocker: func(n headless.Node) error {
				if n.Placement == page.PlacementHeadFirst {
					return errBlocked
				}
				return nil
			},
			failed: tagging.StrategyHeadPrepend,
			winner: tagging.StrategyAsyncExternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []headless.Option
			if tt.blocker != nil {
				opts = append(opts, headless.WithBlocker(tt.blocker))
			}
			f := newFixture(t, tt.cfg, opts...)
			ctx := context.Background()

			require.NoError(t, f.coord.Start(ctx))
			f.page.ProcessLoads(ctx)
			f.page.ProcessLoads(ctx)

			assert.True(t, f.handle.Installed())
			assert.Equal(t, tagging.AttemptFailed, f.status(t, tt.failed))
			assert.Equal(t, tagging.AttemptSucceeded, f.status(t, tt.winner))
			assert.Equal(t, tt.winner, f.handle.Owner())
		})
	}
}

func TestCoordinator_AsyncFailureAfterFailover(t *testing.T) {
	var blockAll atomic.Bool
	blockAll.Store(true)
	f := newFixture(t, Config{RetryDelay: 3 * time.Second},
		headless.WithBlocker(func(headless.Node) error {
			if blockAll.Load() {
				return errBlocked
			}
			return nil
		}),
	)
	ctx := context.Background()

	require.NoError(t, f.coord.Start(ctx))
	f.page.ProcessLoads(ctx)
	f.page.ProcessLoads(ctx)

	assert.False(t, f.handle.Installed())
	assert.Equal(t, tagging.AttemptFailed, f.status(t, tagging.StrategyHeadPrepend))
	assert.Equal(t, tagging.AttemptFailed, f.status(t, tagging.StrategyAsyncExternal))
	assert.Equal(t, tagging.StrategyKind(""), f.handle.Owner())

	a, _ := f.coord.Attempt(tagging.StrategyAsyncExternal)
	assert.ErrorIs(t, a.Err, tagging.ErrScriptLoad)
	assert.ErrorIs(t, a.Err, errBlocked)

	t.Run("retry window reinstalls once unblocked", func(t *testing.T) {
		blockAll.Store(false)
		f.clock.Advance(3 * time.Second)
		f.page.ProcessLoads(ctx)

		assert.True(t, f.handle.Installed())
		head, _ := f.coord.Attempt(tagging.StrategyHeadPrepend)
		assert.Equal(t, tagging.AttemptSucceeded, head.Status)
		assert.Equal(t, 1, head.RetryCount)
		assert.Equal(t, 0, f.clock.Pending())
	})
}

func TestCoordinator_StalledLoadTimesOut(t *testing.T) {
	f := newFixture(t, Config{LoadTimeout: 5 * time.Second},
		headless.WithBlocker(func(n headless.Node) error {
			if n.Placement == page.PlacementHeadFirst {
				return headless.ErrStalled
			}
			return nil
		}),
	)
	ctx := context.Background()

	require.NoError(t, f.coord.Start(ctx))
	f.page.ProcessLoads(ctx)
	assert.Equal(t, 1, f.page.StalledLoads())
	assert.False(t, f.handle.Installed())

	f.clock.Advance(5 * time.Second)

	head, _ := f.coord.Attempt(tagging.StrategyHeadPrepend)
	assert.Equal(t, tagging.AttemptFailed, head.Status)
	assert.ErrorIs(t, head.Err, tagging.ErrLoadTimeout)
	assert.Equal(t, tagging.StrategyAsyncExternal, f.handle.Owner())

	f.page.ProcessLoads(ctx)
	assert.True(t, f.handle.Installed())
	assert.Equal(t, tagging.AttemptSucceeded, f.status(t, tagging.StrategyAsyncExternal))
}

func descriptorFor(t *testing.T, c *Coordinator, kind tagging.StrategyKind) tagging.StrategyDescriptor {
	t.Helper()
	for _, d := range c.cfg.Strategies {
		if d.Kind == kind {
			return d
		}
	}
	t.Fatalf("no descriptor for %s", kind)
	return tagging.StrategyDescriptor{}
}

func TestCoordinator_ConcurrentAttemptsKeepRunningTry(t *testing.T) {
	for i := 0; i < 50; i++ {
		f := newFixture(t, Config{})
		head := descriptorFor(t, f.coord, tagging.StrategyHeadPrepend)

		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				f.coord.attempt(head)
			}()
		}
		wg.Wait()

		require.Equal(t, tagging.AttemptPending, f.status(t, tagging.StrategyHeadPrepend))
		require.Len(t, f.page.Head(), 1)

		f.page.ProcessLoads(context.Background())

		require.True(t, f.handle.Installed())
		assert.Equal(t, tagging.AttemptSucceeded, f.status(t, tagging.StrategyHeadPrepend))
		assert.Equal(t, tagging.StrategyHeadPrepend, f.handle.Owner())
	}
}

func TestCoordinator_RepeatAttemptWhileLoading(t *testing.T) {
	f := newFixture(t, Config{})
	head := descriptorFor(t, f.coord, tagging.StrategyHeadPrepend)

	f.coord.attempt(head)
	f.coord.attempt(head)

	a, _ := f.coord.Attempt(tagging.StrategyHeadPrepend)
	assert.Equal(t, tagging.AttemptPending, a.Status)
	assert.Equal(t, 0, a.RetryCount)
	assert.Len(t, f.page.Head(), 1)
}

// =============================================================================
// Beacon
// =============================================================================

func TestCoordinator_BeaconFiresOnceWhenScriptsBlocked(t *testing.T) {
	f := newFixture(t, Config{RetryDelay: time.Second},
		headless.WithBlocker(func(headless.Node) error { return errBlocked }),
	)
	ctx := context.Background()

	require.NoError(t, f.coord.Start(ctx))
	f.page.ProcessLoads(ctx)
	f.page.ProcessLoads(ctx)
	f.clock.Advance(time.Second)
	f.page.ProcessLoads(ctx)
	f.page.ProcessLoads(ctx)

	assert.False(t, f.handle.Installed())
	assert.Equal(t, tagging.AttemptSucceeded, f.status(t, tagging.StrategyBeacon))

	body := f.page.Body()
	require.Len(t, body, 1)
	assert.Equal(t, "img", body[0].Tag)
	assert.Equal(t, 1, body[0].Width)
	assert.Equal(t, 1, body[0].Height)
	assert.Equal(t, "https://px.example.com/tr?ev=PageView&id=T-1", body[0].Src)
	assert.Equal(t, 1, countRequests(f.page.Requests(), "https://px.example.com/"))
}

// =============================================================================
// Stop
// =============================================================================

func TestCoordinator_StopCancelsRetryAndIgnoresLateLoads(t *testing.T) {
	f := newFixture(t, Config{RetryDelay: 3 * time.Second})
	ctx := context.Background()

	require.NoError(t, f.coord.Start(ctx))
	assert.Equal(t, 2, f.clock.Pending(), "retry window and load timeout armed")

	f.coord.Stop()
	f.coord.Stop()
	assert.True(t, f.coord.Stopped())
	assert.Equal(t, 0, f.clock.Pending())

	f.page.ProcessLoads(ctx)
	f.clock.Advance(time.Minute)

	assert.False(t, f.handle.Installed())
	assert.Equal(t, tagging.AttemptPending, f.status(t, tagging.StrategyHeadPrepend))
}

func TestCoordinator_ContextCancelStops(t *testing.T) {
	f := newFixture(t, Config{RetryDelay: 3 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, f.coord.Start(ctx))
	cancel()

	assert.Eventually(t, f.coord.Stopped, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, f.clock.Pending())
}

func TestCoordinator_RecordsOutcomes(t *testing.T) {
	rec := new(MockRecorder)
	rec.On("RecordAttempt", mock.Anything, tagging.StrategyInline, tagging.AttemptSucceeded).Once()
	rec.On("RecordAttempt", mock.Anything, tagging.StrategyHeadPrepend, tagging.AttemptSkipped).Once()
	rec.On("RecordAttempt", mock.Anything, tagging.StrategyAsyncExternal, tagging.AttemptSkipped).Once()
	rec.On("RecordAttempt", mock.Anything, tagging.StrategyBeacon, tagging.AttemptSucceeded).Once()

	p := headless.New()
	t.Cleanup(func() { _ = p.Close() })
	c := NewCoordinator(tagging.NewTagHandle(), p, Config{
		TrackingID:    "T-1",
		ScriptURL:     testScriptURL,
		BeaconURL:     testBeaconURL,
		InlineSnippet: trackScript,
	}, WithRecorder(rec), WithClock(clock.NewManual(time.Now())))
	t.Cleanup(c.Stop)

	require.NoError(t, c.Start(context.Background()))
	rec.AssertExpectations(t)

	attempts := c.Attempts()
	require.Len(t, attempts, 4)
	for i, kind := range tagging.AllStrategyKinds() {
		assert.Equal(t, kind, attempts[i].Strategy)
	}
}

// =============================================================================
// URLs
// =============================================================================

func TestExpandURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/tag.js?id=T-1", ExpandURL(testScriptURL, "T-1"))
	assert.Equal(t, "https://cdn.example.com/a%26b.js", ExpandURL("https://cdn.example.com/{id}.js", "a&b"))
	assert.Equal(t, "https://cdn.example.com/static.js", ExpandURL("https://cdn.example.com/static.js", "T-1"))
}

func TestBeaconURL(t *testing.T) {
	assert.Equal(t, "https://px.example.com/tr?ev=PageView&id=T-1", BeaconURL(testBeaconURL, "T-1", "PageView"))
	assert.Equal(t, "https://px.example.com/T-1.gif?ev=Purchase", BeaconURL("https://px.example.com/{id}.gif", "T-1", "Purchase"))
}
