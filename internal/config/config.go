// Package config reads settings from flags, the environment (prefixed with
// CLUBHUB_), an optional .env file and an optional config.toml, and refuses
// to start when something critical is wrong.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"clubhub/internal/models"
	"clubhub/internal/security"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	validLogLevels   = []string{"debug", "info", "warn", "error"}
	validEnvs        = []string{"development", "staging", "production"}
	validNotifyModes = []string{"asynq", "inline", "log"}
	validAuditSinks  = []string{"postgres", "amqp", "log"}
)

type AppConfig struct {
	Env      string
	LogLevel string
	Port     int
	BaseURL  string
}

type DatabaseConfig struct {
	URL              string
	SystemURL        string
	MaxConns         int32
	AcquireTimeout   time.Duration
	StatementTimeout time.Duration
	Migrate          bool
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

type TokenConfig struct {
	InviteTTL      time.Duration
	VerifyTTL      time.Duration
	SetPasswordTTL time.Duration
	ResetTTL       time.Duration
	BcryptCost     int
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type NotifyConfig struct {
	Mode        string
	Concurrency int
	MaxRetry    int
	Timeout     time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type AuditConfig struct {
	Backend string
	Buffer  int
	AMQPURL string
}

type RateLimitConfig struct {
	LoginAttempts int
	LoginWindow   time.Duration
	ResetRequests int
	ResetWindow   time.Duration
}

type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Tokens       TokenConfig
	Redis        RedisConfig
	Notify       NotifyConfig
	SMTP         SMTPConfig
	Audit        AuditConfig
	RateLimit    RateLimitConfig
	AllowedTiers []models.SubscriptionTier
	TokenSweep   time.Duration
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "production")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.base_url", "http://localhost:3000")

	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.acquire_timeout", "5s")
	v.SetDefault("database.statement_timeout", "10s")
	v.SetDefault("database.migrate", true)

	v.SetDefault("jwt.ttl", "1h")
	v.SetDefault("jwt.issuer", "clubhub")

	v.SetDefault("tokens.invite_ttl", "72h")
	v.SetDefault("tokens.verify_ttl", "24h")
	v.SetDefault("tokens.set_password_ttl", "72h")
	v.SetDefault("tokens.reset_ttl", "60m")
	v.SetDefault("tokens.bcrypt_cost", 12)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("notify.mode", "asynq")
	v.SetDefault("notify.concurrency", 5)
	v.SetDefault("notify.max_retry", 5)
	v.SetDefault("notify.timeout", "30s")

	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.from", "no-reply@clubhub.local")

	v.SetDefault("audit.backend", "postgres")
	v.SetDefault("audit.buffer", 1024)

	v.SetDefault("ratelimit.login_attempts", 10)
	v.SetDefault("ratelimit.login_window", "15m")
	v.SetDefault("ratelimit.reset_requests", 3)
	v.SetDefault("ratelimit.reset_window", "1h")

	v.SetDefault("clubs.allowed_tiers", []string{"FREE", "STARTER", "PRO", "ENTERPRISE"})
	v.SetDefault("jobs.token_sweep_interval", "1h")
}

// Flags registers the command line flags understood by Load.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("clubhub", pflag.ContinueOnError)
	fs.String("config", "", "path to a config.toml file")
	fs.String("env-file", ".env", "path to a .env file, ignored when missing")
	fs.Int("app.port", 8080, "HTTP listen port")
	fs.String("app.log_level", "info", "log level (debug, info, warn, error)")
	fs.Bool("database.migrate", true, "apply schema migrations at startup")
	return fs
}

// Load parses args and assembles the configuration.
func Load(args []string) (*Config, error) {
	fs := Flags()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	envFile, _ := fs.GetString("env-file")
	if envFile != "" {
		// A missing file is normal outside development.
		_ = godotenv.Load(envFile)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CLUBHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Keys without defaults must be bound explicitly for AutomaticEnv to see them.
	for _, key := range []string{"database.url", "database.system_url", "jwt.secret", "redis.password",
		"smtp.host", "smtp.username", "smtp.password", "amqp.url"} {
		_ = v.BindEnv(key)
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file, %w", err)
		}
	}

	// Only flags set explicitly override the environment.
	fs.Visit(func(f *pflag.Flag) {
		if f.Name != "config" && f.Name != "env-file" {
			_ = v.BindPFlag(f.Name, f)
		}
	})

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Env:      v.GetString("app.env"),
			LogLevel: strings.ToLower(v.GetString("app.log_level")),
			Port:     v.GetInt("app.port"),
			BaseURL:  v.GetString("app.base_url"),
		},
		Database: DatabaseConfig{
			URL:              v.GetString("database.url"),
			SystemURL:        v.GetString("database.system_url"),
			MaxConns:         v.GetInt32("database.max_conns"),
			AcquireTimeout:   v.GetDuration("database.acquire_timeout"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
			Migrate:          v.GetBool("database.migrate"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			TTL:    v.GetDuration("jwt.ttl"),
			Issuer: v.GetString("jwt.issuer"),
		},
		Tokens: TokenConfig{
			InviteTTL:      v.GetDuration("tokens.invite_ttl"),
			VerifyTTL:      v.GetDuration("tokens.verify_ttl"),
			SetPasswordTTL: v.GetDuration("tokens.set_password_ttl"),
			ResetTTL:       v.GetDuration("tokens.reset_ttl"),
			BcryptCost:     v.GetInt("tokens.bcrypt_cost"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Notify: NotifyConfig{
			Mode:        v.GetString("notify.mode"),
			Concurrency: v.GetInt("notify.concurrency"),
			MaxRetry:    v.GetInt("notify.max_retry"),
			Timeout:     v.GetDuration("notify.timeout"),
		},
		SMTP: SMTPConfig{
			Host:     v.GetString("smtp.host"),
			Port:     v.GetInt("smtp.port"),
			Username: v.GetString("smtp.username"),
			Password: v.GetString("smtp.password"),
			From:     v.GetString("smtp.from"),
		},
		Audit: AuditConfig{
			Backend: v.GetString("audit.backend"),
			Buffer:  v.GetInt("audit.buffer"),
			AMQPURL: v.GetString("amqp.url"),
		},
		RateLimit: RateLimitConfig{
			LoginAttempts: v.GetInt("ratelimit.login_attempts"),
			LoginWindow:   v.GetDuration("ratelimit.login_window"),
			ResetRequests: v.GetInt("ratelimit.reset_requests"),
			ResetWindow:   v.GetDuration("ratelimit.reset_window"),
		},
		TokenSweep: v.GetDuration("jobs.token_sweep_interval"),
	}
	for _, raw := range v.GetStringSlice("clubs.allowed_tiers") {
		tier, err := models.ParseSubscriptionTier(raw)
		if err != nil {
			return nil, fmt.Errorf("clubs.allowed_tiers: %w", err)
		}
		cfg.AllowedTiers = append(cfg.AllowedTiers, tier)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the service cannot run without.
func (c *Config) Validate() error {
	if !slices.Contains(validEnvs, c.App.Env) {
		return fmt.Errorf("invalid app.env %q", c.App.Env)
	}
	if !slices.Contains(validLogLevels, c.App.LogLevel) {
		return errors.New("invalid log level provided")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return errors.New("invalid port provided")
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	// The two pools must use different roles: the tenant role is filtered by
	// row level security, the system role owns the tables.
	if c.Database.SystemURL == "" {
		return errors.New("database.system_url is required")
	}
	if c.Database.SystemURL == c.Database.URL {
		return errors.New("database.system_url must connect as a different role than database.url")
	}
	if c.Database.MaxConns <= 0 {
		return errors.New("database.max_conns must be bigger than 0")
	}

	if c.JWT.Secret == "" {
		return security.ErrSigningKeyMissing
	}
	if len(c.JWT.Secret) < security.MinSigningKeyLength {
		return security.ErrSigningKeyTooShort
	}

	durations := map[string]time.Duration{
		"database.acquire_timeout":   c.Database.AcquireTimeout,
		"database.statement_timeout": c.Database.StatementTimeout,
		"jwt.ttl":                    c.JWT.TTL,
		"tokens.invite_ttl":          c.Tokens.InviteTTL,
		"tokens.verify_ttl":          c.Tokens.VerifyTTL,
		"tokens.set_password_ttl":    c.Tokens.SetPasswordTTL,
		"tokens.reset_ttl":           c.Tokens.ResetTTL,
		"notify.timeout":             c.Notify.Timeout,
		"ratelimit.login_window":     c.RateLimit.LoginWindow,
		"ratelimit.reset_window":     c.RateLimit.ResetWindow,
		"jobs.token_sweep_interval":  c.TokenSweep,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be a positive duration", key)
		}
	}

	if !slices.Contains(validNotifyModes, c.Notify.Mode) {
		return fmt.Errorf("invalid notify.mode %q", c.Notify.Mode)
	}
	if c.Notify.Concurrency <= 0 {
		return errors.New("notify.concurrency must be bigger than 0")
	}
	if !slices.Contains(validAuditSinks, c.Audit.Backend) {
		return fmt.Errorf("invalid audit.backend %q", c.Audit.Backend)
	}
	if c.Audit.Backend == "amqp" && c.Audit.AMQPURL == "" {
		return errors.New("amqp.url is required when audit.backend is amqp")
	}
	if len(c.AllowedTiers) == 0 {
		return errors.New("clubs.allowed_tiers cannot be empty")
	}
	return nil
}
