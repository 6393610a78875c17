// Package browser implements page.Document against a real Chrome tab driven
// over the DevTools protocol by chromedp.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultConcurrency = 2
)

// ErrLauncherClosed is returned by Open after Close
var ErrLauncherClosed = errors.New("browser launcher is closed")

// Config contains configuration for the launcher
type Config struct {
	// RemoteURL is the DevTools websocket URL of a running Chrome. When empty a
	// local Chrome is started.
	RemoteURL string
	// ExecPath overrides the Chrome binary lookup
	ExecPath string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// Timeout bounds each DevTools round trip issued by a Page
	Timeout time.Duration
	// MaxConcurrency limits the number of open tabs
	MaxConcurrency int
	// Logger for debug output
	Logger *zap.Logger
}

// Launcher owns one browser process and hands out tabs as Pages
type Launcher struct {
	config        Config
	logger        *zap.Logger
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	slots         chan struct{}

	startOnce sync.Once
	startErr  error

	mu     sync.Mutex
	closed bool
}

// NewLauncher creates a launcher. Chrome is started lazily on the first Open.
func NewLauncher(cfg Config) *Launcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = defaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	l := &Launcher{
		config: cfg,
		logger: logger.Named("browser"),
		slots:  make(chan struct{}, cfg.MaxConcurrency),
	}

	if cfg.RemoteURL != "" {
		l.allocCtx, l.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
	} else {
		l.allocCtx, l.allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(cfg)...)
	}
	l.browserCtx, l.browserCancel = chromedp.NewContext(l.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			l.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	return l
}

func allocatorOptions(cfg Config) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.WindowSize(1280, 800),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

func (l *Launcher) start() error {
	l.startOnce.Do(func() {
		// Running with no actions starts the browser and its first tab.
		l.startErr = chromedp.Run(l.browserCtx)
		if l.startErr == nil {
			l.logger.Info("Chrome started", zap.Bool("remote", l.config.RemoteURL != ""))
		}
	})
	return l.startErr
}

// Open creates a tab, installs the page bindings and navigates to url. The
// tab occupies one concurrency slot until the Page is closed.
func (l *Launcher) Open(ctx context.Context, url string) (*Page, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, ErrLauncherClosed
	}

	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release := func() { <-l.slots }

	if err := l.start(); err != nil {
		release()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	tabCtx, tabCancel := chromedp.NewContext(l.browserCtx)
	p := newPage(tabCtx, func() {
		tabCancel()
		release()
	}, l.config.Timeout, l.logger)
	chromedp.ListenTarget(tabCtx, p.onTargetEvent)

	setup := chromedp.Tasks{
		network.Enable(),
		runtime.AddBinding(bindingName),
		chromedp.Navigate(url),
	}
	runCtx, cancel := p.runContext(ctx)
	defer cancel()
	if err := chromedp.Run(runCtx, setup); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("open %s: %w", url, err)
	}

	l.logger.Debug("Tab opened", zap.String("url", url))
	return p, nil
}

// Close stops the browser. Open pages become unusable.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.browserCancel()
	l.allocCancel()
	return nil
}
