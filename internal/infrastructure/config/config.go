package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
	apptagging "github.com/storefront/backend/internal/application/tagging"
	apptamper "github.com/storefront/backend/internal/application/tamper"
	"github.com/storefront/backend/internal/domain/tagging"
	"github.com/storefront/backend/internal/domain/tamper"
)

// EnvPrefix is the prefix of environment overrides (STORE_DATABASE_PASSWORD).
const EnvPrefix = "STORE"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Admin     AdminConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Swagger   SwaggerConfig
	Telemetry TelemetryConfig
	Profiling ProfilingConfig
	Storage   StorageConfig
	Upload    UploadConfig
	Webhook   WebhookConfig
	Tagging   TaggingConfig
	Tamper    TamperConfig
	Browser   BrowserConfig
	Retention RetentionConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// IsProduction reports whether production validation rules apply.
func (a AppConfig) IsProduction() bool {
	return a.Env == "production"
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	LogLevel        string // silent, error, warn, info
}

// RedisConfig holds Redis connection settings. An empty Host disables redis
// and the in-memory idempotency store is used instead.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds admin token settings
type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// AdminConfig holds the single admin credential used by the cleanup surface.
type AdminConfig struct {
	Username     string
	PasswordHash string // bcrypt
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxHeaderBytes   int
	MaxBodySize      int64
	CORSAllowOrigins []string
	CORSAllowMethods []string
	CORSAllowHeaders []string
	TrustedProxies   []string
	// Per-client limits on unauthenticated writes; negative disables
	OrderRateLimit  int
	LoginRateLimit  int
	RateLimitWindow time.Duration
}

// SwaggerConfig holds Swagger documentation endpoint configuration
type SwaggerConfig struct {
	Enabled     bool
	RequireAuth bool
	AllowedIPs  []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	LogsLevel         string
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// ProfilingConfig holds Pyroscope settings
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	ProfileMutex      bool
	ProfileBlock      bool
	SpanProfiles      bool
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Enabled         bool
	Bucket          string
	Region          string
	Endpoint        string // empty uses AWS
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PresignExpiry   time.Duration
	KeyPrefix       string
}

// UploadConfig limits product image uploads
type UploadConfig struct {
	MaxSize      int64
	AllowedTypes []string
}

// WebhookConfig holds the spreadsheet webhook settings. An empty URL disables
// forwarding.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// TaggingConfig mirrors the page-side injection settings served to pages and
// used by tag audits.
type TaggingConfig struct {
	TrackingID    string
	ScriptURL     string // {id} is replaced by TrackingID
	BeaconURL     string
	GlobalName    string
	InlineSnippet string
	PageViewEvent string
	RetryDelay    time.Duration
	LoadTimeout   time.Duration
	QueueCapacity int
	ClaimTTL      time.Duration
}

// TamperConfig holds the inspection detector settings
type TamperConfig struct {
	Enabled      bool
	Threshold    int
	PollInterval time.Duration
}

// BrowserConfig holds headless Chrome settings for tag audits
type BrowserConfig struct {
	Enabled        bool
	ExecPath       string // empty lets chromedp find Chrome
	RemoteURL      string // DevTools websocket of an existing browser
	NoSandbox      bool
	AuditTimeout   time.Duration
	AuditWindow    time.Duration
	MaxConcurrency int
}

// RetentionConfig holds the nightly order purge settings
type RetentionConfig struct {
	Enabled       bool
	MaxAge        time.Duration
	Schedule      string // cron minute and hour, e.g. "0 3 * * *"
	JobTimeout    time.Duration
	RetryAttempts int
}

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
// 1. Environment variables with STORE_ prefix
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	return load(v)
}

// LoadFile loads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetDuration("database.conn_max_idle_time"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Issuer:     v.GetString("jwt.issuer"),
			Expiration: v.GetDuration("jwt.expiration"),
		},
		Admin: AdminConfig{
			Username:     v.GetString("admin.username"),
			PasswordHash: v.GetString("admin.password_hash"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:      v.GetDuration("http.read_timeout"),
			WriteTimeout:     v.GetDuration("http.write_timeout"),
			IdleTimeout:      v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:  v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:   v.GetInt("http.max_header_bytes"),
			MaxBodySize:      v.GetInt64("http.max_body_size"),
			CORSAllowOrigins: v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods: v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders: v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:   v.GetStringSlice("http.trusted_proxies"),
			OrderRateLimit:   v.GetInt("http.order_rate_limit"),
			LoginRateLimit:   v.GetInt("http.login_rate_limit"),
			RateLimitWindow:  v.GetDuration("http.rate_limit_window"),
		},
		Swagger: SwaggerConfig{
			Enabled:     v.GetBool("swagger.enabled"),
			RequireAuth: v.GetBool("swagger.require_auth"),
			AllowedIPs:  v.GetStringSlice("swagger.allowed_ips"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			LogsLevel:         v.GetString("telemetry.logs_level"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		Profiling: ProfilingConfig{
			Enabled:           v.GetBool("profiling.enabled"),
			ServerAddress:     v.GetString("profiling.server_address"),
			ApplicationName:   v.GetString("profiling.application_name"),
			BasicAuthUser:     v.GetString("profiling.basic_auth_user"),
			BasicAuthPassword: v.GetString("profiling.basic_auth_password"),
			ProfileMutex:      v.GetBool("profiling.profile_mutex"),
			ProfileBlock:      v.GetBool("profiling.profile_block"),
			SpanProfiles:      v.GetBool("profiling.span_profiles"),
		},
		Storage: StorageConfig{
			Enabled:         v.GetBool("storage.enabled"),
			Bucket:          v.GetString("storage.bucket"),
			Region:          v.GetString("storage.region"),
			Endpoint:        v.GetString("storage.endpoint"),
			AccessKeyID:     v.GetString("storage.access_key_id"),
			SecretAccessKey: v.GetString("storage.secret_access_key"),
			UsePathStyle:    v.GetBool("storage.use_path_style"),
			PresignExpiry:   v.GetDuration("storage.presign_expiry"),
			KeyPrefix:       v.GetString("storage.key_prefix"),
		},
		Upload: UploadConfig{
			MaxSize:      v.GetInt64("upload.max_size"),
			AllowedTypes: v.GetStringSlice("upload.allowed_types"),
		},
		Webhook: WebhookConfig{
			URL:     v.GetString("webhook.url"),
			Timeout: v.GetDuration("webhook.timeout"),
		},
		Tagging: TaggingConfig{
			TrackingID:    v.GetString("tagging.tracking_id"),
			ScriptURL:     v.GetString("tagging.script_url"),
			BeaconURL:     v.GetString("tagging.beacon_url"),
			GlobalName:    v.GetString("tagging.global_name"),
			InlineSnippet: v.GetString("tagging.inline_snippet"),
			PageViewEvent: v.GetString("tagging.page_view_event"),
			RetryDelay:    v.GetDuration("tagging.retry_delay"),
			LoadTimeout:   v.GetDuration("tagging.load_timeout"),
			QueueCapacity: v.GetInt("tagging.queue_capacity"),
			ClaimTTL:      v.GetDuration("tagging.claim_ttl"),
		},
		Tamper: TamperConfig{
			Enabled:      !v.IsSet("tamper.enabled") || v.GetBool("tamper.enabled"),
			Threshold:    v.GetInt("tamper.threshold"),
			PollInterval: v.GetDuration("tamper.poll_interval"),
		},
		Browser: BrowserConfig{
			Enabled:        v.GetBool("browser.enabled"),
			ExecPath:       v.GetString("browser.exec_path"),
			RemoteURL:      v.GetString("browser.remote_url"),
			NoSandbox:      v.GetBool("browser.no_sandbox"),
			AuditTimeout:   v.GetDuration("browser.audit_timeout"),
			AuditWindow:    v.GetDuration("browser.audit_window"),
			MaxConcurrency: v.GetInt("browser.max_concurrency"),
		},
		Retention: RetentionConfig{
			Enabled:       v.GetBool("retention.enabled"),
			MaxAge:        v.GetDuration("retention.max_age"),
			Schedule:      v.GetString("retention.schedule"),
			JobTimeout:    v.GetDuration("retention.job_timeout"),
			RetryAttempts: v.GetInt("retention.retry_attempts"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "storefront-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}

	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "storefront"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = time.Hour
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30 * time.Minute
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Redis.Host != "" && cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "storefront-backend"
	}
	if cfg.JWT.Expiration == 0 {
		cfg.JWT.Expiration = 12 * time.Hour
	}
	if cfg.Admin.Username == "" {
		cfg.Admin.Username = "admin"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20
	}
	if cfg.HTTP.OrderRateLimit == 0 {
		cfg.HTTP.OrderRateLimit = 30
	}
	if cfg.HTTP.LoginRateLimit == 0 {
		cfg.HTTP.LoginRateLimit = 10
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	// CORS origins have no fallback; an empty list allows no cross-origin requests.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"}
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
	if cfg.Telemetry.LogsLevel == "" {
		cfg.Telemetry.LogsLevel = "info"
	}
	if cfg.Telemetry.DBSlowQueryThresh == 0 {
		cfg.Telemetry.DBSlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.Profiling.ApplicationName == "" {
		cfg.Profiling.ApplicationName = cfg.App.Name
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.PresignExpiry == 0 {
		cfg.Storage.PresignExpiry = 15 * time.Minute
	}
	if cfg.Storage.KeyPrefix == "" {
		cfg.Storage.KeyPrefix = "products/"
	}
	if cfg.Upload.MaxSize == 0 {
		cfg.Upload.MaxSize = 5 << 20
	}
	if len(cfg.Upload.AllowedTypes) == 0 {
		cfg.Upload.AllowedTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}
	}

	if cfg.Webhook.Timeout == 0 {
		cfg.Webhook.Timeout = 10 * time.Second
	}

	if cfg.Tagging.GlobalName == "" {
		cfg.Tagging.GlobalName = apptagging.DefaultGlobalName
	}
	if cfg.Tagging.PageViewEvent == "" {
		cfg.Tagging.PageViewEvent = apptagging.DefaultPageViewEvent
	}
	if cfg.Tagging.RetryDelay == 0 {
		cfg.Tagging.RetryDelay = apptagging.DefaultRetryDelay
	}
	if cfg.Tagging.LoadTimeout == 0 {
		cfg.Tagging.LoadTimeout = tagging.DefaultClaimTTL
	}
	if cfg.Tagging.QueueCapacity == 0 {
		cfg.Tagging.QueueCapacity = tagging.DefaultQueueCapacity
	}
	if cfg.Tagging.ClaimTTL == 0 {
		cfg.Tagging.ClaimTTL = tagging.DefaultClaimTTL
	}

	if cfg.Tamper.Threshold == 0 {
		cfg.Tamper.Threshold = tamper.DefaultThreshold
	}
	if cfg.Tamper.PollInterval == 0 {
		cfg.Tamper.PollInterval = apptamper.DefaultPollInterval
	}

	if cfg.Browser.AuditTimeout == 0 {
		cfg.Browser.AuditTimeout = 45 * time.Second
	}
	if cfg.Browser.AuditWindow == 0 {
		cfg.Browser.AuditWindow = 5 * time.Second
	}
	if cfg.Browser.MaxConcurrency == 0 {
		cfg.Browser.MaxConcurrency = 2
	}

	if cfg.Retention.MaxAge == 0 {
		cfg.Retention.MaxAge = 90 * 24 * time.Hour
	}
	if cfg.Retention.Schedule == "" {
		cfg.Retention.Schedule = "0 3 * * *"
	}
	if cfg.Retention.JobTimeout == 0 {
		cfg.Retention.JobTimeout = 5 * time.Minute
	}
	if cfg.Retention.RetryAttempts == 0 {
		cfg.Retention.RetryAttempts = 3
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if err := c.Tagging.validate(); err != nil {
		return err
	}
	if c.Tamper.Threshold < 0 {
		return fmt.Errorf("tamper.threshold cannot be negative")
	}
	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}
	if c.Retention.Enabled && c.Retention.MaxAge < 24*time.Hour {
		return fmt.Errorf("retention.max_age must be at least 24h, got %s", c.Retention.MaxAge)
	}
	if c.Webhook.URL != "" {
		if err := validateHTTPURL("webhook.url", c.Webhook.URL); err != nil {
			return err
		}
	}

	if c.App.IsProduction() {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Admin.PasswordHash == "" {
			return fmt.Errorf("admin.password_hash is required in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
		if c.Swagger.Enabled && !c.Swagger.RequireAuth && len(c.Swagger.AllowedIPs) == 0 {
			return fmt.Errorf("swagger endpoint must be disabled, require authentication, or have IP restriction in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}
	return nil
}

func (t TaggingConfig) validate() error {
	if t.ScriptURL != "" {
		if err := validateHTTPURL("tagging.script_url", strings.ReplaceAll(t.ScriptURL, "{id}", "x")); err != nil {
			return err
		}
	}
	if t.BeaconURL != "" {
		if err := validateHTTPURL("tagging.beacon_url", strings.ReplaceAll(t.BeaconURL, "{id}", "x")); err != nil {
			return err
		}
	}
	if (t.ScriptURL != "" || t.BeaconURL != "") && t.TrackingID == "" {
		return fmt.Errorf("tagging.tracking_id is required when script or beacon URLs are set")
	}
	if t.RetryDelay < 0 || t.LoadTimeout < 0 || t.ClaimTTL < 0 {
		return fmt.Errorf("tagging durations cannot be negative")
	}
	if t.QueueCapacity < 0 {
		return fmt.Errorf("tagging.queue_capacity cannot be negative")
	}
	// an expired claim lets a second script load while the first is still loading
	if t.ClaimTTL > 0 && t.ClaimTTL < t.LoadTimeout {
		return fmt.Errorf("tagging.claim_ttl (%s) must not be shorter than tagging.load_timeout (%s)", t.ClaimTTL, t.LoadTimeout)
	}
	return nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", field)
	}
	if u.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
