package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/platinummonkey/badge/pkg/auth"
	"github.com/platinummonkey/badge/pkg/storage"
)

// Authentication modes
const (
	ModeLocal    = "local"
	ModeOIDC     = "oidc"
	ModeFirebase = "firebase"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Redis         RedisConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
	Audit         AuditConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `env:"BADGE_HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"BADGE_PORT" envDefault:"8000"`
	ReadTimeout     time.Duration `env:"BADGE_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"BADGE_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout     time.Duration `env:"BADGE_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"BADGE_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// TrustProxy takes the client IP from X-Forwarded-For for rate limiting
	TrustProxy bool `env:"BADGE_TRUST_PROXY" envDefault:"false"`
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds credential store settings
type DatabaseConfig struct {
	Driver   string        `env:"BADGE_DATABASE_DRIVER" envDefault:"sqlite3"`
	URL      string        `env:"BADGE_DATABASE_URL,unset" envDefault:"badge.db"`
	MaxConns int           `env:"BADGE_DATABASE_MAX_CONNS" envDefault:"10"`
	Timeout  time.Duration `env:"BADGE_DATABASE_TIMEOUT" envDefault:"5s"`
}

// Storage converts the settings for storage.Open
func (d DatabaseConfig) Storage() (storage.Config, error) {
	dialect, err := storage.ParseDialect(d.Driver)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:   dialect,
		URL:      d.URL,
		MaxConns: d.MaxConns,
		Timeout:  d.Timeout,
	}, nil
}

// AuthConfig selects the authentication mode and its key material
type AuthConfig struct {
	Mode string `env:"BADGE_AUTH_MODE" envDefault:"local"`

	JWTAlgorithm      string        `env:"BADGE_JWT_ALGORITHM" envDefault:"HS256"`
	JWTSecret         string        `env:"BADGE_JWT_SECRET,unset"`
	JWTPrivateKeyPath string        `env:"BADGE_JWT_PRIVATE_KEY_PATH"`
	JWTIssuer         string        `env:"BADGE_JWT_ISSUER" envDefault:"badge"`
	TokenTTL          time.Duration `env:"BADGE_TOKEN_TTL" envDefault:"30m"`
	TokenLeeway       time.Duration `env:"BADGE_TOKEN_LEEWAY" envDefault:"0s"`
	BcryptCost        int           `env:"BADGE_BCRYPT_COST" envDefault:"12"`

	OIDCIssuerURL    string   `env:"BADGE_OIDC_ISSUER_URL"`
	OIDCClientID     string   `env:"BADGE_OIDC_CLIENT_ID"`
	OIDCClientSecret string   `env:"BADGE_OIDC_CLIENT_SECRET,unset"`
	OIDCAlgorithms   []string `env:"BADGE_OIDC_ALGORITHMS" envSeparator:"," envDefault:"RS256"`

	FirebaseCredentialsPath string `env:"BADGE_FIREBASE_CREDENTIALS_PATH"`
	FirebaseProjectID       string `env:"BADGE_FIREBASE_PROJECT_ID"`
	FirebaseAPIKey          string `env:"BADGE_FIREBASE_API_KEY,unset"`
}

// IsHMAC reports whether the local signing algorithm is symmetric
func (a AuthConfig) IsHMAC() bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(a.JWTAlgorithm)), "HS")
}

// SigningKey loads the key used by the local issuer and verifier
func (a AuthConfig) SigningKey() (*auth.SigningKey, error) {
	if a.IsHMAC() {
		return auth.NewSigningKey(a.JWTAlgorithm, []byte(a.JWTSecret), nil)
	}
	pemBytes, err := os.ReadFile(a.JWTPrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read private key: %v", auth.ErrMisconfigured, err)
	}
	return auth.NewSigningKey(a.JWTAlgorithm, nil, pemBytes)
}

// RedisConfig holds the optional Redis settings
type RedisConfig struct {
	URL                string `env:"BADGE_REDIS_URL,unset"`
	RateLimitPerMinute int    `env:"BADGE_RATE_LIMIT_PER_MINUTE" envDefault:"30"`
	RateLimitBurst     int    `env:"BADGE_RATE_LIMIT_BURST" envDefault:"5"`
}

// CacheConfig holds the user lookup cache settings
type CacheConfig struct {
	UserCacheSize int           `env:"BADGE_USER_CACHE_SIZE" envDefault:"1024"`
	UserCacheTTL  time.Duration `env:"BADGE_USER_CACHE_TTL" envDefault:"1m"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `env:"BADGE_LOG_LEVEL" envDefault:"info"`
	MetricsEnabled bool   `env:"BADGE_METRICS_ENABLED" envDefault:"true"`

	OTelEnabled     bool   `env:"BADGE_OTEL_ENABLED" envDefault:"false"`
	OTelEndpoint    string `env:"BADGE_OTEL_ENDPOINT" envDefault:"localhost:4317"`
	OTelServiceName string `env:"BADGE_OTEL_SERVICE_NAME" envDefault:"badge"`
	OTelInsecure    bool   `env:"BADGE_OTEL_INSECURE" envDefault:"true"`
}

// AuditConfig selects where authentication events are recorded. With no
// directory they go to the service log.
type AuditConfig struct {
	Dir       string `env:"BADGE_AUDIT_LOG_DIR"`
	MaxSizeMB int    `env:"BADGE_AUDIT_LOG_MAX_SIZE_MB" envDefault:"100"`
	MaxFiles  int    `env:"BADGE_AUDIT_LOG_MAX_FILES" envDefault:"10"`
}

// Load reads configuration from the process environment and validates it
func Load() (*Config, error) {
	return LoadEnvironment(nil)
}

// LoadEnvironment reads configuration from environ, or from the process
// environment when environ is nil, and validates it
func LoadEnvironment(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("%w: parse env: %v", auth.ErrMisconfigured, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate reports every problem at once; all of them wrap auth.ErrMisconfigured
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]interface{}{auth.ErrMisconfigured}, args...)...))
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("BADGE_PORT %d out of range", c.Server.Port)
	}

	if _, err := storage.ParseDialect(c.Database.Driver); err != nil {
		add("BADGE_DATABASE_DRIVER: %v", err)
	}
	if c.Database.URL == "" {
		add("BADGE_DATABASE_URL is required")
	}

	if _, err := logrus.ParseLevel(c.Observability.LogLevel); err != nil {
		add("BADGE_LOG_LEVEL: %v", err)
	}
	if c.Observability.OTelEnabled && c.Observability.OTelEndpoint == "" {
		add("BADGE_OTEL_ENDPOINT is required when tracing is enabled")
	}

	if c.Audit.Dir != "" && (c.Audit.MaxSizeMB <= 0 || c.Audit.MaxFiles <= 0) {
		add("BADGE_AUDIT_LOG_MAX_SIZE_MB and BADGE_AUDIT_LOG_MAX_FILES must be positive")
	}

	if c.Redis.RateLimitPerMinute < 0 || c.Redis.RateLimitBurst < 0 {
		add("rate limits must not be negative")
	}

	a := c.Auth
	switch a.Mode {
	case ModeLocal:
		if a.JWTIssuer == "" {
			add("BADGE_JWT_ISSUER is required")
		}
		if a.IsHMAC() {
			if len(a.JWTSecret) < auth.MinHMACSecretLength {
				add("BADGE_JWT_SECRET must be at least %d bytes for %s", auth.MinHMACSecretLength, a.JWTAlgorithm)
			}
		} else if a.JWTPrivateKeyPath == "" {
			add("BADGE_JWT_PRIVATE_KEY_PATH is required for %s", a.JWTAlgorithm)
		}
		if a.TokenTTL <= 0 || a.TokenTTL%time.Second != 0 {
			add("BADGE_TOKEN_TTL must be a positive whole number of seconds")
		}
		if a.TokenLeeway < 0 {
			add("BADGE_TOKEN_LEEWAY must not be negative")
		}
		if a.BcryptCost < bcrypt.MinCost || a.BcryptCost > bcrypt.MaxCost {
			add("BADGE_BCRYPT_COST %d outside [%d, %d]", a.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost)
		}
	case ModeOIDC:
		if a.OIDCIssuerURL == "" || a.OIDCClientID == "" {
			add("BADGE_OIDC_ISSUER_URL and BADGE_OIDC_CLIENT_ID are required in oidc mode")
		}
		if len(a.OIDCAlgorithms) == 0 {
			add("BADGE_OIDC_ALGORITHMS must name at least one algorithm")
		}
	case ModeFirebase:
		if a.FirebaseProjectID == "" && a.FirebaseCredentialsPath == "" {
			add("BADGE_FIREBASE_PROJECT_ID or BADGE_FIREBASE_CREDENTIALS_PATH is required in firebase mode")
		}
	default:
		add("BADGE_AUTH_MODE %q (must be local, oidc, or firebase)", a.Mode)
	}

	return errors.Join(errs...)
}
