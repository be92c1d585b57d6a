// Package config holds the contactbookd configuration: a YAML file with
// sensible defaults, overridable by environment variables for the
// secrets that should never land on disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all contactbookd configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Clerk  ClerkConfig  `yaml:"clerk"`
	Google GoogleConfig `yaml:"google"`
	Cache  CacheConfig  `yaml:"cache"`
	Sync   SyncConfig   `yaml:"sync"`
	Log    LogConfig    `yaml:"log"`
}

// ServerConfig configures the HTTP listener and the gRPC admin port.
type ServerConfig struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	AdminAddr   string   `yaml:"admin_addr"` // empty disables the gRPC health listener
	CORSOrigins []string `yaml:"cors_origins"`
}

// Addr returns the host:port the HTTP server binds to.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ClerkConfig configures token verification and the Clerk REST client.
type ClerkConfig struct {
	SecretKey      string `yaml:"secret_key"`
	PublishableKey string `yaml:"publishable_key"`
	APIBase        string `yaml:"api_base"`

	// InsecureSkipVerify parses bearer tokens without checking the
	// signature. Local development only.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// GoogleConfig configures the OAuth client used for account linking.
type GoogleConfig struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

// CacheConfig configures the per-user contact cache.
type CacheConfig struct {
	TTL        string `yaml:"ttl"`         // e.g. "1h"
	MaxEntries int64  `yaml:"max_entries"` // in-memory tier capacity (users)
	SQLitePath string `yaml:"sqlite_path"` // empty disables the durable tier
}

// TTLDuration parses the configured TTL, falling back to one hour.
func (c CacheConfig) TTLDuration() time.Duration {
	d, err := time.ParseDuration(c.TTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// SyncConfig configures the websocket sync hub.
type SyncConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the defaults the original deployment shipped
// with: Expo dev origins, one hour cache TTL, sync enabled.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
			CORSOrigins: []string{
				"http://localhost:8081",
				"exp://127.0.0.1:8081",
				"exp://localhost:8081",
			},
		},
		Clerk: ClerkConfig{
			APIBase: "https://api.clerk.com/v1",
		},
		Google: GoogleConfig{
			RedirectURL: "http://localhost:8000/api/auth/google/callback",
			Scopes: []string{
				"https://www.googleapis.com/auth/contacts.readonly",
				"https://www.googleapis.com/auth/userinfo.email",
				"https://www.googleapis.com/auth/userinfo.profile",
			},
		},
		Cache: CacheConfig{
			TTL:        "1h",
			MaxEntries: 10000,
			SQLitePath: "contactbook.db",
		},
		Sync: SyncConfig{Enabled: true},
		Log:  LogConfig{Level: "info"},
	}
}

// Load reads a config file, applies defaults for missing sections, and
// then applies environment overrides. A missing file is not an error:
// the defaults plus environment are enough to run.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to env overrides
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// Save writes the config as YAML, creating parent directories.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	return os.WriteFile(path, data, 0o600)
}

// applyEnv overrides config fields from the environment. Secrets are
// expected to arrive this way in deployed environments.
func (c *Config) applyEnv() {
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
	if v := os.Getenv("CLERK_SECRET_KEY"); v != "" {
		c.Clerk.SecretKey = v
	}
	if v := os.Getenv("CLERK_PUBLISHABLE_KEY"); v != "" {
		c.Clerk.PublishableKey = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		c.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		c.Google.ClientSecret = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		parts := strings.Split(v, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		c.Server.CORSOrigins = origins
	}
	if v := os.Getenv("CACHE_TTL"); v != "" {
		// Accept both Go durations ("1h") and bare seconds ("3600"),
		// the format the original deployment used.
		if secs, err := strconv.Atoi(v); err == nil {
			c.Cache.TTL = (time.Duration(secs) * time.Second).String()
		} else {
			c.Cache.TTL = v
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Cache.SQLitePath = v
	}
}

// Validate checks the fields the server cannot run without.
func (c *Config) Validate() error {
	if c.Clerk.SecretKey == "" && !c.Clerk.InsecureSkipVerify {
		return fmt.Errorf("clerk secret key required (set CLERK_SECRET_KEY)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	return nil
}
