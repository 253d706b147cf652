// Package config handles loading and validating the application configuration
// from YAML files with environment variable substitution.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/donaldgifford/ebay-seller-sync/pkg/types"
)

// Config is the top-level application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Ebay          EbayConfig          `yaml:"ebay"`
	Vault         VaultConfig         `yaml:"vault"`
	Tokens        TokensConfig        `yaml:"tokens"`
	Worker        WorkerConfig        `yaml:"worker"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// ServerConfig defines the Echo HTTP server settings.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// DatabaseConfig defines PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	PoolSize int    `yaml:"pool_size"`
}

// DSN returns a PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.Password, d.SSLMode,
	)
}

// EbayConfig defines eBay OAuth and Sell API settings.
type EbayConfig struct {
	ClientID       string             `yaml:"client_id"`
	ClientSecret   string             `yaml:"client_secret"`
	Environment    domain.Environment `yaml:"environment"` // production, sandbox
	TokenURL       string             `yaml:"token_url"`
	APIURL         string             `yaml:"api_url"`
	FinancesURL    string             `yaml:"finances_url"`
	Marketplace    string             `yaml:"marketplace"`
	Scopes         []string           `yaml:"scopes"`
	ConnectTimeout time.Duration      `yaml:"connect_timeout"`
	RequestTimeout time.Duration      `yaml:"request_timeout"`
	RateLimit      RateLimitConfig    `yaml:"rate_limit"`
}

// RateLimitConfig defines eBay API rate limiting settings.
type RateLimitConfig struct {
	PerSecond  float64 `yaml:"per_second"`
	Burst      int     `yaml:"burst"`
	DailyLimit int64   `yaml:"daily_limit"`
}

// VaultConfig defines the credential vault secret.
type VaultConfig struct {
	Secret string `yaml:"secret"`
}

// TokensConfig defines token refresh behavior.
type TokensConfig struct {
	RefreshMargin time.Duration `yaml:"refresh_margin"`
	Lookahead     time.Duration `yaml:"lookahead"`
	Concurrency   int           `yaml:"concurrency"`
}

// WorkerConfig defines sync worker behavior.
type WorkerConfig struct {
	Families       []domain.APIFamily `yaml:"families"`
	Interval       time.Duration      `yaml:"interval"`
	StaleTimeout   time.Duration      `yaml:"stale_timeout"`
	RunTimeout     time.Duration      `yaml:"run_timeout"`
	Concurrency    int                `yaml:"concurrency"`
	PageSize       int                `yaml:"page_size"`
	MaxPages       int                `yaml:"max_pages"`
	BackfillWindow time.Duration      `yaml:"backfill_window"`
	RunRetention   time.Duration      `yaml:"run_retention"`
	LogRetention   time.Duration      `yaml:"log_retention"`
}

// ScheduleConfig defines cron intervals.
type ScheduleConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	SyncInterval    time.Duration `yaml:"sync_interval"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	JobTimeout      time.Duration `yaml:"job_timeout"`
}

// NotificationsConfig defines notification targets.
type NotificationsConfig struct {
	Discord DiscordConfig `yaml:"discord"`
}

// DiscordConfig defines Discord webhook settings.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// TelemetryConfig defines OpenTelemetry export settings. Export is
// disabled when Endpoint is empty.
type TelemetryConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	ServiceName string  `yaml:"service_name"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// Load reads and parses a YAML config file, performing environment variable
// substitution and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted CLI flag
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML config content, performing environment variable
// substitution, defaulting and validation.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	applyServerDefaults(&cfg.Server)
	applyDatabaseDefaults(&cfg.Database)
	applyEbayDefaults(&cfg.Ebay)
	applyTokensDefaults(&cfg.Tokens)
	applyWorkerDefaults(&cfg.Worker)
	applyScheduleDefaults(&cfg.Schedule)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyLoggingDefaults(&cfg.Logging)
}

func applyServerDefaults(s *ServerConfig) {
	if s.Host == "" {
		s.Host = "0.0.0.0"
	}
	if s.Port == 0 {
		s.Port = 8080
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		// Manual sync runs are answered synchronously.
		s.WriteTimeout = 10 * time.Minute
	}
}

func applyDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = 5432
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.PoolSize == 0 {
		d.PoolSize = 10
	}
}

func applyEbayDefaults(e *EbayConfig) {
	if e.Environment == "" {
		e.Environment = domain.EnvProduction
	}
	if e.Marketplace == "" {
		e.Marketplace = "EBAY_US"
	}
	if e.ConnectTimeout == 0 {
		e.ConnectTimeout = 5 * time.Second
	}
	if e.RequestTimeout == 0 {
		e.RequestTimeout = 20 * time.Second
	}
	applyRateLimitDefaults(&e.RateLimit)
}

func applyRateLimitDefaults(r *RateLimitConfig) {
	if r.PerSecond == 0 {
		r.PerSecond = 5.0
	}
	if r.Burst == 0 {
		r.Burst = 10
	}
	if r.DailyLimit == 0 {
		r.DailyLimit = 5000
	}
}

func applyTokensDefaults(t *TokensConfig) {
	if t.RefreshMargin == 0 {
		t.RefreshMargin = 5 * time.Minute
	}
	if t.Lookahead == 0 {
		t.Lookahead = 15 * time.Minute
	}
	if t.Concurrency == 0 {
		t.Concurrency = 4
	}
}

func applyWorkerDefaults(w *WorkerConfig) {
	if len(w.Families) == 0 {
		w.Families = []domain.APIFamily{domain.FamilyOrders, domain.FamilyFinances}
	}
	if w.Interval == 0 {
		w.Interval = 5 * time.Minute
	}
	if w.StaleTimeout == 0 {
		w.StaleTimeout = 15 * time.Minute
	}
	if w.RunTimeout == 0 {
		w.RunTimeout = 10 * time.Minute
	}
	if w.Concurrency == 0 {
		w.Concurrency = 4
	}
	if w.PageSize == 0 {
		w.PageSize = 50
	}
	if w.MaxPages == 0 {
		w.MaxPages = 20
	}
	if w.BackfillWindow == 0 {
		w.BackfillWindow = 90 * 24 * time.Hour
	}
	if w.RunRetention == 0 {
		w.RunRetention = 30 * 24 * time.Hour
	}
	if w.LogRetention == 0 {
		w.LogRetention = 90 * 24 * time.Hour
	}
}

func applyScheduleDefaults(s *ScheduleConfig) {
	if s.RefreshInterval == 0 {
		s.RefreshInterval = 10 * time.Minute
	}
	if s.SyncInterval == 0 {
		s.SyncInterval = 5 * time.Minute
	}
	if s.CleanupInterval == 0 {
		s.CleanupInterval = time.Hour
	}
	if s.JobTimeout == 0 {
		s.JobTimeout = 30 * time.Minute
	}
}

func applyTelemetryDefaults(t *TelemetryConfig) {
	if t.ServiceName == "" {
		t.ServiceName = "ebay-seller-sync"
	}
	if t.SampleRatio == 0 {
		t.SampleRatio = 1.0
	}
}

func applyLoggingDefaults(l *LoggingConfig) {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

func validate(cfg *Config) error {
	var errs []error

	if cfg.Database.Host == "" {
		errs = append(errs, errors.New("database.host is required"))
	}
	if cfg.Database.Name == "" {
		errs = append(errs, errors.New("database.name is required"))
	}
	if cfg.Database.User == "" {
		errs = append(errs, errors.New("database.user is required"))
	}

	if cfg.Ebay.ClientID == "" {
		errs = append(errs, errors.New("ebay.client_id is required"))
	}
	if cfg.Ebay.ClientSecret == "" {
		errs = append(errs, errors.New("ebay.client_secret is required"))
	}
	if !cfg.Ebay.Environment.Valid() {
		errs = append(errs, fmt.Errorf(
			"ebay.environment must be one of: production, sandbox (got %q)", cfg.Ebay.Environment,
		))
	}

	if cfg.Vault.Secret == "" {
		errs = append(errs, errors.New("vault.secret is required"))
	}

	if cfg.Tokens.Lookahead < cfg.Tokens.RefreshMargin {
		errs = append(errs, errors.New("tokens.lookahead must not be shorter than tokens.refresh_margin"))
	}

	for _, f := range cfg.Worker.Families {
		if !f.Valid() {
			errs = append(errs, fmt.Errorf("worker.families: unknown api family %q", f))
		}
	}
	if cfg.Worker.StaleTimeout <= cfg.Worker.RunTimeout {
		errs = append(errs, errors.New("worker.stale_timeout must exceed worker.run_timeout"))
	}

	for name, d := range map[string]time.Duration{
		"schedule.refresh_interval": cfg.Schedule.RefreshInterval,
		"schedule.sync_interval":    cfg.Schedule.SyncInterval,
		"schedule.cleanup_interval": cfg.Schedule.CleanupInterval,
	} {
		if d < time.Second {
			errs = append(errs, fmt.Errorf("%s must be at least 1s", name))
		}
	}

	if cfg.Notifications.Discord.Enabled && cfg.Notifications.Discord.WebhookURL == "" {
		errs = append(errs, errors.New("notifications.discord.webhook_url is required when discord is enabled"))
	}

	if cfg.Telemetry.SampleRatio < 0 || cfg.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("telemetry.sample_ratio must be between 0 and 1"))
	}

	if !slices.Contains([]string{"text", "json"}, cfg.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: text, json (got %q)", cfg.Logging.Format))
	}

	return errors.Join(errs...)
}
