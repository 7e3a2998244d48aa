package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alanyang/lead-pipeline/internal/domain/pipeline"
	"github.com/alanyang/lead-pipeline/internal/domain/stage"
)

const DefaultPath = "config/config.yaml"

// Backend kinds for the event bus and the idempotency store.
const (
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	// URL selects the Postgres store. Empty runs everything in memory.
	URL string `yaml:"url"`
}

type AuthConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

type EventBusConfig struct {
	Kind string `yaml:"kind"`
}

type IdempotencyConfig struct {
	Kind string `yaml:"kind"`
	// Retention is how long a stored response can be replayed.
	Retention time.Duration `yaml:"retention"`
	// PurgeInterval is how often the janitor drops expired Postgres records.
	PurgeInterval time.Duration `yaml:"purge_interval"`
}

// ClientConfig drives boardctl's HTTP client.
type ClientConfig struct {
	BaseURL   string         `yaml:"base_url"`
	Token     string         `yaml:"token"`
	Timeout   time.Duration  `yaml:"timeout"`
	RateLimit float64        `yaml:"rate_limit"`
	RateBurst int            `yaml:"rate_burst"`
	Shape     pipeline.Shape `yaml:"shape"`
}

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Auth        AuthConfig        `yaml:"auth"`
	Redis       RedisConfig       `yaml:"redis"`
	EventBus    EventBusConfig    `yaml:"event_bus"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Client      ClientConfig      `yaml:"client"`
	// Gates are the server-wide gate rules; tenants may override them.
	Gates pipeline.Gates `yaml:"gates"`
}

// Load reads the YAML file at CONFIG_PATH (DefaultPath when unset), then
// applies env overrides and defaults. A missing file is not an error.
func Load() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

func LoadFile(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Server.Port, "PORT")
	setString(&c.Auth.JWTSecret, "JWT_SECRET")
	setString(&c.EventBus.Kind, "EVENT_BUS")
	setString(&c.Idempotency.Kind, "IDEMPOTENCY_STORE")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Client.BaseURL, "LEAD_PIPELINE_URL")
	setString(&c.Client.Token, "LEAD_PIPELINE_TOKEN")
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = n
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Auth.TokenTTL <= 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.EventBus.Kind == "" {
		c.EventBus.Kind = c.storeBackend()
	}
	if c.Idempotency.Kind == "" {
		c.Idempotency.Kind = c.storeBackend()
	}
	if c.Idempotency.Retention <= 0 {
		c.Idempotency.Retention = 24 * time.Hour
	}
	if c.Idempotency.PurgeInterval <= 0 {
		c.Idempotency.PurgeInterval = time.Hour
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = "lead_pipeline"
	}
	if c.Client.BaseURL == "" {
		c.Client.BaseURL = "http://localhost:" + c.Server.Port
	}
	if c.Client.Shape == "" {
		c.Client.Shape = pipeline.ShapeGrouped
	}
	c.Gates = normalizeGates(c.Gates)
}

func (c *Config) storeBackend() string {
	if c.Database.URL != "" {
		return BackendPostgres
	}
	return BackendMemory
}

// normalizeGates upper-cases form types written in any case and layers
// the file's rules over DefaultGates.
func normalizeGates(in pipeline.Gates) pipeline.Gates {
	out := make(pipeline.Gates, len(pipeline.DefaultGates)+len(in))
	for ft, g := range pipeline.DefaultGates {
		out[ft] = g
	}
	for ft, g := range in {
		g.RedirectTo = stage.ParseFormType(string(g.RedirectTo))
		out[stage.ParseFormType(string(ft))] = g
	}
	return out
}

func (c *Config) validate() error {
	for _, kind := range []struct{ name, value string }{
		{"event_bus.kind", c.EventBus.Kind},
		{"idempotency.kind", c.Idempotency.Kind},
	} {
		switch kind.value {
		case BackendMemory, BackendRedis:
		case BackendPostgres:
			if c.Database.URL == "" {
				return fmt.Errorf("%s is postgres but DATABASE_URL is not set", kind.name)
			}
		default:
			return fmt.Errorf("%s: unknown backend %q", kind.name, kind.value)
		}
		if kind.value == BackendRedis && c.Redis.Addr == "" {
			return fmt.Errorf("%s is redis but REDIS_ADDR is not set", kind.name)
		}
	}
	switch c.Client.Shape {
	case pipeline.ShapeGrouped, pipeline.ShapeFlat:
	default:
		return fmt.Errorf("client.shape: %w: %q", pipeline.ErrUnknownShape, c.Client.Shape)
	}
	return nil
}
