// Command tagprobe audits tag installation on one page from the command line.
// It prints the report as JSON and exits 2 when no strategy installed the tag.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storefront/backend/internal/application/tagaudit"
	apptagging "github.com/storefront/backend/internal/application/tagging"
	apptamper "github.com/storefront/backend/internal/application/tamper"
	"github.com/storefront/backend/internal/infrastructure/browser"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

const exitNotInstalled = 2

func main() {
	var (
		configPath string
		logLevel   string
		remoteURL  string
		trackingID string
		window     time.Duration
		timeout    time.Duration
		noSandbox  bool
	)
	flag.StringVar(&configPath, "config", "", "Config file (default: ./config.toml)")
	flag.StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flag.StringVar(&remoteURL, "remote", "", "DevTools websocket URL of a running Chrome")
	flag.StringVar(&trackingID, "tracking-id", "", "Override tagging.tracking_id")
	flag.DurationVar(&window, "window", 0, "How long to wait for installation (default: browser.audit_window)")
	flag.DurationVar(&timeout, "timeout", 0, "Overall deadline (default: browser.audit_timeout)")
	flag.BoolVar(&noSandbox, "no-sandbox", false, "Run Chrome without sandbox")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: tagprobe [flags] <url>\n\nFlags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}
	target := flag.Arg(0)

	logCfg := logger.DefaultConfig()
	logCfg.Level = logLevel
	logCfg.Output = "stderr"
	log, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if trackingID != "" {
		cfg.Tagging.TrackingID = trackingID
	}
	if remoteURL != "" {
		cfg.Browser.RemoteURL = remoteURL
	}
	if noSandbox {
		cfg.Browser.NoSandbox = true
	}
	if window > 0 {
		cfg.Browser.AuditWindow = window
	}
	if timeout > 0 {
		cfg.Browser.AuditTimeout = timeout
	}

	report, err := probe(cfg, target, log)
	if err != nil {
		log.Error("Audit failed", zap.String("url", target), zap.Error(err))
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Error("Failed to write report", zap.Error(err))
		os.Exit(1)
	}
	if !report.Installed {
		os.Exit(exitNotInstalled)
	}
}

func probe(cfg *config.Config, target string, log *zap.Logger) (*tagaudit.Report, error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.Browser.AuditTimeout)
	defer cancel()

	launcher := browser.NewLauncher(browser.Config{
		RemoteURL:      cfg.Browser.RemoteURL,
		ExecPath:       cfg.Browser.ExecPath,
		NoSandbox:      cfg.Browser.NoSandbox,
		Timeout:        cfg.Browser.AuditTimeout,
		MaxConcurrency: 1,
		Logger:         log,
	})
	defer func() {
		if err := launcher.Close(); err != nil {
			log.Warn("Error closing browser", zap.Error(err))
		}
	}()

	opener := tagaudit.OpenerFunc(func(ctx context.Context, url string) (tagaudit.Page, error) {
		page, err := launcher.Open(ctx, url)
		if err != nil {
			return nil, err
		}
		return page, nil
	})

	svc := tagaudit.NewService(opener, tagaudit.Settings{
		Tagging: apptagging.Config{
			TrackingID:    cfg.Tagging.TrackingID,
			ScriptURL:     cfg.Tagging.ScriptURL,
			BeaconURL:     cfg.Tagging.BeaconURL,
			GlobalName:    cfg.Tagging.GlobalName,
			InlineSnippet: cfg.Tagging.InlineSnippet,
			PageViewEvent: cfg.Tagging.PageViewEvent,
			RetryDelay:    cfg.Tagging.RetryDelay,
			LoadTimeout:   cfg.Tagging.LoadTimeout,
		},
		Tamper: apptamper.Config{
			Threshold:    cfg.Tamper.Threshold,
			PollInterval: cfg.Tamper.PollInterval,
		},
		QueueCapacity: cfg.Tagging.QueueCapacity,
		ClaimTTL:      cfg.Tagging.ClaimTTL,
		Window:        cfg.Browser.AuditWindow,
	}, nil, log)

	return svc.Audit(ctx, target)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
