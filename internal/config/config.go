package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Runtime modes. Mode affects log formatting, log level defaults, and the
// response validator's failure behavior.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Runtime   RuntimeConfig   `koanf:"runtime"`
	Auth      AuthConfig      `koanf:"auth"`
	Admin     AdminConfig     `koanf:"admin"`
	Storage   StorageConfig   `koanf:"storage"`
	Resend    ResendConfig    `koanf:"resend"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
}

type ServerConfig struct {
	Port           int           `koanf:"port"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

type RuntimeConfig struct {
	Mode     string `koanf:"mode"`      // development or production
	LogLevel string `koanf:"log_level"` // debug, info, warn, error; empty = mode default
}

type AuthConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

type AdminConfig struct {
	Email    string `koanf:"email"`
	Password string `koanf:"password"`
}

type StorageConfig struct {
	Driver string `koanf:"driver"` // sqlite or postgres
	DSN    string `koanf:"dsn"`
}

type ResendConfig struct {
	APIKey string `koanf:"api_key"`
}

type RateLimitConfig struct {
	Requests int           `koanf:"requests"`
	Window   time.Duration `koanf:"window"`
}

// IsDevelopment reports whether the runtime mode is development.
// Any mode other than production counts as development.
func (r RuntimeConfig) IsDevelopment() bool {
	return r.Mode != ModeProduction
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from config.yaml (if present) and OPTIO_* environment
// variables, with env vars taking precedence. Double underscores in env var
// names map to nesting: OPTIO_AUTH__JWT_SECRET -> auth.jwt_secret.
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// Missing file is fine, env vars can carry the full config.
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("OPTIO_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "OPTIO_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	applyDefaults(k)

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute ${VAR} references so secrets can live outside config.yaml
	cfg.Auth.JWTSecret = substituteEnvVars(cfg.Auth.JWTSecret)
	cfg.Resend.APIKey = substituteEnvVars(cfg.Resend.APIKey)
	cfg.Admin.Password = substituteEnvVars(cfg.Admin.Password)
	cfg.Storage.DSN = substituteEnvVars(cfg.Storage.DSN)

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.request_timeout") {
		k.Set("server.request_timeout", "30s")
	}
	if !k.Exists("runtime.mode") {
		k.Set("runtime.mode", ModeDevelopment)
	}
	if !k.Exists("auth.token_ttl") {
		k.Set("auth.token_ttl", "24h")
	}
	if !k.Exists("storage.driver") {
		k.Set("storage.driver", "sqlite")
	}
	if !k.Exists("storage.dsn") {
		k.Set("storage.dsn", "./data/optiohire.db")
	}
	if !k.Exists("rate_limit.requests") {
		k.Set("rate_limit.requests", 10)
	}
	if !k.Exists("rate_limit.window") {
		k.Set("rate_limit.window", "1m")
	}
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
