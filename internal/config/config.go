// Package config loads the service configuration from struct defaults, an
// optional YAML file and AURA_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"aura/internal/logging"
	"aura/internal/validation"
	"aura/pkg/database"
)

const (
	EnvPrefix  = "AURA_"
	EnvFileVar = "AURA_CONFIG"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  database.Config `koanf:"database"`
	Auth      AuthConfig      `koanf:"auth"`
	CSRF      CSRFConfig      `koanf:"csrf"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
	GRPC      GRPCConfig      `koanf:"grpc"`
	Logging   logging.Config  `koanf:"logging"`
}

type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	TrustedProxies  []string      `koanf:"trusted_proxies"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
	SecureCookies   bool          `koanf:"secure_cookies"`
	Seed            bool          `koanf:"seed"`
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret" validate:"required,min=16"`
	Issuer    string        `koanf:"issuer" validate:"required"`
	TTL       time.Duration `koanf:"ttl" validate:"required"`
}

type CSRFConfig struct {
	CookieName string `koanf:"cookie_name" validate:"required"`
	HeaderName string `koanf:"header_name" validate:"required"`
}

type RateLimitConfig struct {
	// Creation requests per second allowed per user; 0 disables limiting.
	RPS   float64 `koanf:"rps" validate:"min=0"`
	Burst int     `koanf:"burst" validate:"min=0"`
}

type GRPCConfig struct {
	// Empty disables the gRPC health server.
	Addr string `koanf:"addr"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			TrustedProxies:  []string{"127.0.0.1"},
			ShutdownTimeout: 10 * time.Second,
			Seed:            true,
		},
		Database: database.DefaultConfig(),
		Auth: AuthConfig{
			JWTSecret: "dev-secret-change-me-please",
			Issuer:    "aura",
			TTL:       24 * time.Hour,
		},
		CSRF: CSRFConfig{
			CookieName: "aura_csrf",
			HeaderName: "X-CSRFToken",
		},
		RateLimit: RateLimitConfig{RPS: 5, Burst: 20},
		Logging:   logging.DefaultConfig(),
	}
}

// Load reads configuration from defaults, the file named by AURA_CONFIG
// (when set) and the environment.
func Load() (*Config, error) {
	return LoadFile(os.Getenv(EnvFileVar))
}

func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransformFunc maps AURA_SERVER__ADDR to server.addr. Variables that
// are not part of the config tree are dropped.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	if key == "config" {
		return ""
	}
	return strings.ReplaceAll(key, "__", ".")
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Database.Driver == database.DriverPostgres && c.Database.DSN == "" {
		return errors.New("invalid config: database.dsn is required for postgres")
	}
	if c.Database.Driver == database.DriverSQLite && c.Database.Path == "" {
		return errors.New("invalid config: database.path is required for sqlite")
	}
	return nil
}
