// Package config loads and validates service configuration from the environment
// and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the service configuration. It is constructed once in main and
// passed by pointer.
type Config struct {
	// HTTPAddr is the address the HTTP API listens on.
	HTTPAddr string `mapstructure:"HRM_HTTP_ADDR"`
	// GRPCAddr is the gRPC health listener; empty disables it.
	GRPCAddr string `mapstructure:"HRM_GRPC_ADDR"`

	// SecretKey signs access tokens. Required.
	SecretKey string `mapstructure:"HRM_SECRET_KEY"`
	// Algorithm is the HMAC signing algorithm (HS256, HS384, HS512).
	Algorithm string `mapstructure:"HRM_ALGORITHM"`
	// AccessTokenExpireMinutes is the default token lifetime.
	AccessTokenExpireMinutes int `mapstructure:"HRM_ACCESS_TOKEN_EXPIRE_MINUTES"`

	DatabaseURL      string `mapstructure:"HRM_DATABASE_URL"`
	DatabaseUsername string `mapstructure:"HRM_DATABASE_USERNAME"`
	DatabasePassword string `mapstructure:"HRM_DATABASE_PASSWORD"`
	DatabaseHost     string `mapstructure:"HRM_DATABASE_HOST"`
	DatabasePort     int    `mapstructure:"HRM_DATABASE_PORT"`
	DatabaseName     string `mapstructure:"HRM_DATABASE_NAME"`

	SuperuserUsername string `mapstructure:"HRM_SUPERUSER_USERNAME"`
	SuperuserPassword string `mapstructure:"HRM_SUPERUSER_PASSWORD"`

	// PasswordHash selects the scheme for new hashes (argon2id or bcrypt).
	PasswordHash string `mapstructure:"HRM_PASSWORD_HASH"`
	BcryptCost   int    `mapstructure:"HRM_BCRYPT_COST"`

	// RateBurst and RatePerSec configure the per-IP limiter on POST /login.
	RateBurst  int `mapstructure:"HRM_RATE_BURST"`
	RatePerSec int `mapstructure:"HRM_RATE_PER_SEC"`
	// TrustProxy keys the limiter on X-Forwarded-For. Set only behind a proxy
	// that overwrites the header.
	TrustProxy bool `mapstructure:"HRM_TRUST_PROXY"`

	LogLevel string `mapstructure:"HRM_LOG_LEVEL"`
	SeedFile string `mapstructure:"HRM_SEED_FILE"`
}

var defaults = map[string]any{
	"HRM_HTTP_ADDR":                   ":8080",
	"HRM_GRPC_ADDR":                   ":9090",
	"HRM_SECRET_KEY":                  "",
	"HRM_ALGORITHM":                   "HS256",
	"HRM_ACCESS_TOKEN_EXPIRE_MINUTES": 30,
	"HRM_DATABASE_URL":                "",
	"HRM_DATABASE_USERNAME":           "",
	"HRM_DATABASE_PASSWORD":           "",
	"HRM_DATABASE_HOST":               "",
	"HRM_DATABASE_PORT":               5432,
	"HRM_DATABASE_NAME":               "",
	"HRM_SUPERUSER_USERNAME":          "",
	"HRM_SUPERUSER_PASSWORD":          "",
	"HRM_PASSWORD_HASH":               "argon2id",
	"HRM_BCRYPT_COST":                 12,
	"HRM_RATE_BURST":                  20,
	"HRM_RATE_PER_SEC":                10,
	"HRM_TRUST_PROXY":                 false,
	"HRM_LOG_LEVEL":                   "info",
	"HRM_SEED_FILE":                   "seed/permissions.yaml",
}

// Load reads .env from the working directory (if present), then overlays the
// environment. Missing .env is ignored.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		_ = v.ReadInConfig() // missing file is fine
	}
	v.AutomaticEnv()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return errors.New("config: HRM_HTTP_ADDR must be set")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("config: HRM_SECRET_KEY must be set")
	}
	c.Algorithm = strings.ToUpper(strings.TrimSpace(c.Algorithm))
	switch c.Algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return fmt.Errorf("config: HRM_ALGORITHM %q is not supported (HS256, HS384, HS512)", c.Algorithm)
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return errors.New("config: HRM_ACCESS_TOKEN_EXPIRE_MINUTES must be greater than zero")
	}
	c.PasswordHash = strings.ToLower(strings.TrimSpace(c.PasswordHash))
	if c.PasswordHash != "argon2id" && c.PasswordHash != "bcrypt" {
		return fmt.Errorf("config: HRM_PASSWORD_HASH %q must be argon2id or bcrypt", c.PasswordHash)
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: HRM_BCRYPT_COST must be between 4 and 31")
	}
	if c.RateBurst <= 0 || c.RatePerSec <= 0 {
		return errors.New("config: HRM_RATE_BURST and HRM_RATE_PER_SEC must be positive")
	}
	return nil
}

// AccessTTL returns the configured token lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMinutes) * time.Minute
}

// DSN returns HRM_DATABASE_URL, or a postgres URL assembled from the
// individual HRM_DATABASE_* fields when a host is set. Empty means no database.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	if c.DatabaseHost == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(c.DatabaseHost, fmt.Sprint(c.DatabasePort)),
		Path:     "/" + c.DatabaseName,
		RawQuery: "sslmode=disable",
	}
	if c.DatabaseUsername != "" {
		u.User = url.UserPassword(c.DatabaseUsername, c.DatabasePassword)
	}
	return u.String()
}
