// Package config loads the server configuration from an optional YAML file,
// a .env file and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	"github.com/iudanet/accounts/internal/crypto"
)

// Storage drivers
const (
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
)

type (
	// Config is the immutable server configuration built once at startup
	Config struct {
		HTTP         HTTPConfig         `yaml:"http"`
		Log          LogConfig          `yaml:"log"`
		Token        TokenConfig        `yaml:"token"`
		Password     PasswordConfig     `yaml:"password"`
		Verification VerificationConfig `yaml:"verification"`
		Storage      StorageConfig      `yaml:"storage"`
		SMTP         SMTPConfig         `yaml:"smtp"`
		Admin        AdminConfig        `yaml:"admin"`
		RateLimit    RateLimitConfig    `yaml:"rate_limit"`
	}

	// HTTPConfig configures the listener
	HTTPConfig struct {
		Addr            string        `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" env:"HTTP_READ_TIMEOUT" env-default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" env:"HTTP_WRITE_TIMEOUT" env-default:"10s"`
		IdleTimeout     time.Duration `yaml:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"10s"`
	}

	// LogConfig configures slog
	LogConfig struct {
		Level  string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
	}

	// TokenConfig configures session tokens
	TokenConfig struct {
		Secret string        `yaml:"secret" env:"TOKEN_SECRET"`
		TTL    time.Duration `yaml:"ttl" env:"TOKEN_TTL" env-default:"24h"`
		Cipher string        `yaml:"cipher" env:"TOKEN_CIPHER" env-default:"aes-256-gcm"`
	}

	// PasswordConfig configures bcrypt
	PasswordConfig struct {
		BcryptCost int `yaml:"bcrypt_cost" env:"PASSWORD_BCRYPT_COST" env-default:"10"`
	}

	// VerificationConfig configures email verification
	VerificationConfig struct {
		TokenTTL time.Duration `yaml:"token_ttl" env:"VERIFICATION_TOKEN_TTL" env-default:"48h"`
		// NoExpiry issues verification tokens that never expire
		NoExpiry    bool   `yaml:"no_expiry" env:"VERIFICATION_NO_EXPIRY"`
		LinkBaseURL string `yaml:"link_base_url" env:"VERIFICATION_LINK_BASE_URL" env-default:"http://localhost:8080/user/verify-email"`
	}

	// StorageConfig selects the user storage backend
	StorageConfig struct {
		Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"sqlite"`
		Path   string `yaml:"path" env:"STORAGE_PATH" env-default:"accounts.db"`
	}

	// SMTPConfig configures outgoing mail. An empty host logs messages instead of sending them.
	SMTPConfig struct {
		Host     string        `yaml:"host" env:"SMTP_HOST"`
		Port     int           `yaml:"port" env:"SMTP_PORT" env-default:"587"`
		Username string        `yaml:"username" env:"SMTP_USERNAME"`
		Password string        `yaml:"password" env:"SMTP_PASSWORD"`
		From     string        `yaml:"from" env:"SMTP_FROM" env-default:"no-reply@localhost"`
		FromName string        `yaml:"from_name" env:"SMTP_FROM_NAME" env-default:"Accounts"`
		Timeout  time.Duration `yaml:"timeout" env:"SMTP_TIMEOUT" env-default:"10s"`
	}

	// AdminConfig configures admin-only behavior
	AdminConfig struct {
		// PurgeOnDump deletes every non-admin account after a dump has been served
		PurgeOnDump bool `yaml:"purge_on_dump" env:"ADMIN_PURGE_ON_DUMP"`
	}

	// RateLimitConfig configures per-IP limits on public endpoints
	RateLimitConfig struct {
		Disabled bool `yaml:"disabled" env:"RATE_LIMIT_DISABLED"`
		// TrustProxyHeaders keys clients on X-Forwarded-For / X-Real-IP.
		// Enable only behind a reverse proxy that overwrites these headers.
		TrustProxyHeaders bool          `yaml:"trust_proxy_headers" env:"RATE_LIMIT_TRUST_PROXY_HEADERS"`
		Login             RateLimitRule `yaml:"login" env-prefix:"RATE_LIMIT_LOGIN_"`
		Signup            RateLimitRule `yaml:"signup" env-prefix:"RATE_LIMIT_SIGNUP_"`
		Resend            RateLimitRule `yaml:"resend" env-prefix:"RATE_LIMIT_RESEND_"`
	}

	// RateLimitRule allows Requests per Window for a single client
	RateLimitRule struct {
		Requests int           `yaml:"requests" env:"REQUESTS" env-default:"10"`
		Window   time.Duration `yaml:"window" env:"WINDOW" env-default:"1m"`
	}
)

// Addr returns the SMTP server address in host:port form
func (s SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Enabled reports whether real mail delivery is configured
func (s SMTPConfig) Enabled() bool {
	return s.Host != ""
}

// EmailTokenTTL returns the verification token lifetime, zero meaning no expiry
func (v VerificationConfig) EmailTokenTTL() time.Duration {
	if v.NoExpiry {
		return 0
	}
	return v.TokenTTL
}

// Load reads .env (if present), then the YAML file at path (optional),
// then the environment, and validates the result.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error

	if c.Token.Secret == "" {
		errs = append(errs, errors.New("token.secret must be set"))
	}
	if c.Token.TTL <= 0 {
		errs = append(errs, errors.New("token.ttl must be positive"))
	}
	if !crypto.Supported(c.Token.Cipher) {
		errs = append(errs, fmt.Errorf("token.cipher %q is not supported", c.Token.Cipher))
	}

	switch c.Storage.Driver {
	case DriverSQLite, DriverBolt:
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	if c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.path must be set"))
	}

	if !c.Verification.NoExpiry && c.Verification.TokenTTL <= 0 {
		errs = append(errs, errors.New("verification.token_ttl must be positive"))
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not supported", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not supported", c.Log.Format))
	}

	if !c.RateLimit.Disabled {
		for name, rule := range map[string]RateLimitRule{
			"login":  c.RateLimit.Login,
			"signup": c.RateLimit.Signup,
			"resend": c.RateLimit.Resend,
		} {
			if rule.Requests <= 0 || rule.Window <= 0 {
				errs = append(errs, fmt.Errorf("rate_limit.%s needs positive requests and window", name))
			}
		}
	}

	return errors.Join(errs...)
}
