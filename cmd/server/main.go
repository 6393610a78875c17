package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/storefront/backend/internal/application/storefront"
	"github.com/storefront/backend/internal/application/tagaudit"
	apptagging "github.com/storefront/backend/internal/application/tagging"
	apptamper "github.com/storefront/backend/internal/application/tamper"
	"github.com/storefront/backend/internal/infrastructure/auth"
	"github.com/storefront/backend/internal/infrastructure/browser"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/scheduler"
	"github.com/storefront/backend/internal/infrastructure/storage"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/storefront/backend/internal/infrastructure/webhook"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
	"go.uber.org/zap"

	_ "github.com/storefront/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Version is set at build time with -ldflags "-X main.Version=..."
var Version = "dev"

//	@title			Storefront Backend API
//	@version		1.0
//	@description	Storefront orders, admin cleanup, image uploads and page tagging

//	@contact.name	API Support

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	ctx := context.Background()

	// Telemetry comes first so the database and HTTP layers pick up the
	// global providers.
	endpoint := func(enabled bool) telemetry.Endpoint {
		return telemetry.Endpoint{
			Enabled:           enabled,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}
	}
	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Endpoint:      endpoint(cfg.Telemetry.Enabled),
		SamplingRatio: cfg.Telemetry.SamplingRatio,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Endpoint:       endpoint(cfg.Telemetry.MetricsEnabled),
		ExportInterval: cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Endpoint: endpoint(cfg.Telemetry.LogsEnabled),
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log = lp.Bridge(log, logger.ParseLevel(cfg.Telemetry.LogsLevel))

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Profiling.ApplicationName,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		ProfileMutex:      cfg.Profiling.ProfileMutex,
		ProfileBlock:      cfg.Profiling.ProfileBlock,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Profiling.Enabled && cfg.Profiling.SpanProfiles {
		tp.EnableSpanProfiles()
	}

	log.Info("Starting storefront backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := db.EnableTracing(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		DBName:          cfg.Database.DBName,
		IncludeSQLVars:  cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
	}, log); err != nil {
		log.Fatal("Failed to enable database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	idempotency, redisClient, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	var blacklist auth.TokenBlacklist = auth.NewInMemoryTokenBlacklist()
	if redisClient != nil {
		blacklist = auth.NewRedisTokenBlacklist(redisClient)
	}

	var objects storage.ObjectStorage
	var s3 *storage.S3Storage
	if cfg.Storage.Enabled {
		s3, err = storage.NewS3Storage(ctx, &cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize object storage", zap.Error(err))
		}
		objects = s3
	}

	metrics, err := telemetry.NewStorefrontMetrics(mp.Meter("storefront"))
	if err != nil {
		log.Fatal("Failed to create metrics", zap.Error(err))
	}

	orderRepo := persistence.NewGormOrderRepository(db.DB)
	forwarder := webhook.NewSheetForwarder(cfg.Webhook.URL, cfg.Webhook.Timeout, log)

	orderService := storefront.NewOrderService(orderRepo, idempotency, forwarder, metrics, log)
	adminService := storefront.NewAdminService(
		orderRepo,
		auth.NewCredentials(cfg.Admin.Username, cfg.Admin.PasswordHash),
		auth.NewJWTService(cfg.JWT),
		blacklist,
		log,
	)
	uploadService := storefront.NewUploadService(objects, storefront.UploadOptions{
		MaxSize:       cfg.Upload.MaxSize,
		AllowedTypes:  cfg.Upload.AllowedTypes,
		KeyPrefix:     cfg.Storage.KeyPrefix,
		PresignExpiry: cfg.Storage.PresignExpiry,
	}, metrics, log)

	stopRetention, err := startRetention(cfg.Retention, orderRepo, log)
	if err != nil {
		log.Fatal("Failed to start order retention", zap.Error(err))
	}

	var launcher *browser.Launcher
	var opener tagaudit.Opener
	if cfg.Browser.Enabled {
		launcher = browser.NewLauncher(browser.Config{
			RemoteURL:      cfg.Browser.RemoteURL,
			ExecPath:       cfg.Browser.ExecPath,
			NoSandbox:      cfg.Browser.NoSandbox,
			Timeout:        cfg.Browser.AuditTimeout,
			MaxConcurrency: cfg.Browser.MaxConcurrency,
			Logger:         log,
		})
		opener = tagaudit.OpenerFunc(func(ctx context.Context, url string) (tagaudit.Page, error) {
			page, err := launcher.Open(ctx, url)
			if err != nil {
				return nil, err
			}
			return page, nil
		})
	}
	auditService := tagaudit.NewService(opener, auditSettings(cfg), metrics, log).
		WithStore(persistence.NewGormTagAuditRepository(db.DB))

	healthService := storefront.NewHealthService(storefront.DefaultHealthTimeout, healthCheckers(db, redisClient, s3)...)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	httpMetrics, err := middleware.HTTPMetrics(mp.Meter("storefront.http"))
	if err != nil {
		log.Fatal("Failed to create HTTP metrics", zap.Error(err))
	}

	// Middleware order:
	// 1. RequestID before everything that logs
	// 2. Recovery
	// 3. Tracing, then the span enricher that reads the request ID
	// 4. Request logging, profiling labels and metrics
	// 5. Security headers, CORS and the body limit
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, tp.IsEnabled()))
	engine.Use(middleware.SpanEnricher())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Profiling(profiler.IsEnabled()))
	engine.Use(httpMetrics)
	engine.Use(middleware.Secure(cfg.App.Env == "production"))
	engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowOrigins:  cfg.HTTP.CORSAllowOrigins,
		AllowMethods:  cfg.HTTP.CORSAllowMethods,
		AllowHeaders:  cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", handler.IdempotentReplayedHeader},
		MaxAge:        12 * time.Hour,
	}))
	// Uploads carry their own multipart limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize, "/api/v1/uploads"))

	systemHandler := handler.NewSystemHandler(healthService, cfg.App.Name, Version)
	engine.GET("/health", systemHandler.Health)
	engine.GET("/health/live", systemHandler.Live)

	adminAuth := middleware.AdminAuth(adminService)
	if cfg.Swagger.Enabled {
		engine.GET("/swagger/*any",
			middleware.SwaggerProtection(cfg.Swagger, adminAuth),
			ginSwagger.WrapHandler(swaggerFiles.Handler),
		)
	}

	guards := router.Guards{AdminAuth: adminAuth}
	var limiters []*middleware.RateLimiter
	if cfg.HTTP.OrderRateLimit > 0 {
		rl := middleware.NewRateLimiter(cfg.HTTP.OrderRateLimit, cfg.HTTP.RateLimitWindow)
		limiters = append(limiters, rl)
		guards.OrderLimit = middleware.RateLimit(rl)
	}
	if cfg.HTTP.LoginRateLimit > 0 {
		rl := middleware.NewRateLimiter(cfg.HTTP.LoginRateLimit, cfg.HTTP.RateLimitWindow)
		limiters = append(limiters, rl)
		guards.LoginLimit = middleware.RateLimit(rl)
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	for _, group := range router.StorefrontGroups(router.Handlers{
		Orders:  handler.NewOrderHandler(orderService),
		Admin:   handler.NewAdminHandler(adminService),
		Uploads: handler.NewUploadHandler(uploadService),
		System:  systemHandler,
		Tagging: handler.NewTaggingHandler(handler.NewTaggingConfigResponse(cfg.Tagging, cfg.Tamper), auditService),
	}, guards) {
		r.Register(group)
		log.Debug("Routes registered", zap.String("group", group.Name()), zap.Int("routes", len(group.Routes())))
	}
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Background order forwards finish before their dependencies close
	orderService.Wait()
	stopRetention(shutdownCtx)

	for _, rl := range limiters {
		rl.Stop()
	}
	if launcher != nil {
		if err := launcher.Close(); err != nil {
			log.Warn("Error closing browser", zap.Error(err))
		}
	}
	if err := idempotency.Close(); err != nil {
		log.Warn("Error closing idempotency store", zap.Error(err))
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}
	for name, shutdown := range map[string]func(context.Context) error{
		"tracer": tp.Shutdown,
		"meter":  mp.Shutdown,
		"logger": lp.Shutdown,
	} {
		if err := shutdown(shutdownCtx); err != nil {
			log.Warn("Error shutting down telemetry provider", zap.String("provider", name), zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}

// startRetention runs the nightly order purge when enabled and returns the
// function that stops it.
func startRetention(cfg config.RetentionConfig, orders scheduler.OrderPurger, log *zap.Logger) (func(context.Context), error) {
	if !cfg.Enabled {
		log.Info("Order retention disabled")
		return func(context.Context) {}, nil
	}

	hour, minute, err := scheduler.ParseCronSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}

	schedCfg := scheduler.DefaultConfig()
	schedCfg.JobTimeout = cfg.JobTimeout
	schedCfg.RetryAttempts = cfg.RetryAttempts

	sched, err := scheduler.NewScheduler(schedCfg, scheduler.NewRetentionExecutor(orders, cfg.MaxAge, log), log.Named("retention"))
	if err != nil {
		return nil, err
	}
	trigger := scheduler.NewDailyTrigger(scheduler.DailyTriggerConfig{
		Hour:       hour,
		Minute:     minute,
		MaxRetries: cfg.RetryAttempts,
	}, scheduler.RetentionJobName, sched, log.Named("retention"))

	ctx := context.Background()
	if err := sched.Start(ctx); err != nil {
		return nil, err
	}
	if err := trigger.Start(ctx); err != nil {
		return nil, err
	}

	return func(ctx context.Context) {
		if err := trigger.Stop(ctx); err != nil {
			log.Warn("Error stopping retention trigger", zap.Error(err))
		}
		if err := sched.Stop(ctx); err != nil {
			log.Warn("Error stopping retention scheduler", zap.Error(err))
		}
	}, nil
}

func auditSettings(cfg *config.Config) tagaudit.Settings {
	return tagaudit.Settings{
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
	}
}

func healthCheckers(db *persistence.Database, redisClient *redis.Client, s3 *storage.S3Storage) []storefront.Checker {
	checkers := []storefront.Checker{
		storefront.CheckerFunc{CheckName: "database", Fn: db.Ping},
	}
	if redisClient != nil {
		checkers = append(checkers, storefront.CheckerFunc{CheckName: "redis", Fn: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	if s3 != nil {
		checkers = append(checkers, storefront.CheckerFunc{CheckName: "storage", Fn: s3.CheckBucket})
	}
	return checkers
}
