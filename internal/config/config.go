// File: internal/config/config.go
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type ServerConfig struct {
	Port           int           `yaml:"port"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type BotConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Token    string `yaml:"token"`
	Workers  int    `yaml:"workers"`  // update handlers
	Language string `yaml:"language"` // locale of bot texts, falls back to en
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type AdminConfig struct {
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // memory|postgres|sqlite
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type SamplingConfig struct {
	Temperature *float64 `yaml:"temperature"` // nil takes the default, 0 is kept
	MaxTokens   int      `yaml:"max_tokens"`
}

type AIConfig struct {
	Provider        string         `yaml:"provider"` // openai|gemini|noop
	OpenAIKey       string         `yaml:"openai_key"`
	OpenAIBaseURL   string         `yaml:"openai_base_url"`
	GeminiKey       string         `yaml:"gemini_key"`
	GeminiBaseURL   string         `yaml:"gemini_base_url"`
	DefaultModel    string         `yaml:"default_model"`
	Temperature     *float64       `yaml:"temperature"` // nil takes the default, 0 is kept
	MaxTokens       int            `yaml:"max_tokens"`
	Timeout         time.Duration  `yaml:"timeout"`
	ConcurrentLimit int            `yaml:"concurrent_limit"` // max concurrent AI calls
	Stateless       SamplingConfig `yaml:"stateless"`
}

type SessionConfig struct {
	Lock             string        `yaml:"lock"` // local|redis
	LockTTL          time.Duration `yaml:"lock_ttl"`
	DeleteSuperseded bool          `yaml:"delete_superseded"`
	MaxMessageLength int           `yaml:"max_message_length"`
	CacheTTL         time.Duration `yaml:"cache_ttl"`
	IdleTTL          time.Duration `yaml:"idle_ttl"` // 0 keeps sessions forever
	JanitorInterval  time.Duration `yaml:"janitor_interval"`
}

type CatalogConfig struct {
	Path string `yaml:"path"` // empty uses the embedded catalog
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

type RateLimitConfig struct {
	PerMinute int `yaml:"per_minute"` // 0 disables
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Bot       BotConfig       `yaml:"bot"`
	Log       LogConfig       `yaml:"log"`
	Admin     AdminConfig     `yaml:"admin"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	AI        AIConfig        `yaml:"ai"`
	Session   SessionConfig   `yaml:"session"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig() (*Config, error) {
	var configPath string
	var dev bool
	flag.StringVar(&configPath, "config", "config.yaml", "path to config yaml")
	flag.BoolVar(&dev, "dev", false, "development mode")
	flag.Parse()
	return Load(configPath, dev)
}

// Load reads the yaml file at path, applies environment overrides and
// defaults, and validates the result.
func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b, dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.AI.GeminiKey = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.RequestTimeout <= 0 {
		cfg.Server.RequestTimeout = 60 * time.Second
	}
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Bot.Language == "" {
		cfg.Bot.Language = "en"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "memory"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)

	if cfg.AI.Provider == "" {
		cfg.AI.Provider = "openai"
	}
	if cfg.AI.DefaultModel == "" {
		switch cfg.AI.Provider {
		case "gemini":
			cfg.AI.DefaultModel = "gemini-2.0-flash"
		default:
			cfg.AI.DefaultModel = "gpt-4"
		}
	}
	if cfg.AI.Temperature == nil {
		cfg.AI.Temperature = float64Ptr(0.3)
	}
	if cfg.AI.MaxTokens <= 0 {
		cfg.AI.MaxTokens = 700
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 45 * time.Second
	}
	if cfg.AI.ConcurrentLimit <= 0 {
		cfg.AI.ConcurrentLimit = 16
	}
	if cfg.AI.Stateless.Temperature == nil {
		cfg.AI.Stateless.Temperature = float64Ptr(0.7)
	}
	if cfg.AI.Stateless.MaxTokens <= 0 {
		cfg.AI.Stateless.MaxTokens = 500
	}

	if cfg.Session.Lock == "" {
		cfg.Session.Lock = "local"
	}
	if cfg.Session.LockTTL <= 0 {
		// must outlive a model call
		cfg.Session.LockTTL = cfg.AI.Timeout + 15*time.Second
	}
	if cfg.Session.MaxMessageLength <= 0 {
		cfg.Session.MaxMessageLength = 1000
	}
	if cfg.Session.CacheTTL <= 0 {
		cfg.Session.CacheTTL = 30 * time.Minute
	}
	if cfg.Session.JanitorInterval <= 0 {
		cfg.Session.JanitorInterval = time.Hour
	}
	if cfg.Admin.TokenTTL <= 0 {
		cfg.Admin.TokenTTL = 24 * time.Hour
	}
}

// Minimal validation
func (cfg *Config) validate() error {
	switch cfg.Database.Driver {
	case "memory":
	case "postgres", "sqlite":
		if cfg.Database.URL == "" {
			return fmt.Errorf("database.url is required for driver %q", cfg.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database.driver %q", cfg.Database.Driver)
	}
	switch cfg.Session.Lock {
	case "local":
	case "redis":
		if cfg.Redis.URL == "" {
			return errors.New("redis.url is required when session.lock is redis")
		}
	default:
		return fmt.Errorf("unknown session.lock %q", cfg.Session.Lock)
	}
	switch cfg.AI.Provider {
	case "openai":
		if cfg.AI.OpenAIKey == "" {
			return errors.New("ai.openai_key (or OPENAI_API_KEY) is required")
		}
	case "gemini":
		if cfg.AI.GeminiKey == "" {
			return errors.New("ai.gemini_key (or GEMINI_API_KEY) is required")
		}
	case "noop":
	default:
		return fmt.Errorf("unknown ai.provider %q", cfg.AI.Provider)
	}
	for name, t := range map[string]*float64{"ai.temperature": cfg.AI.Temperature, "ai.stateless.temperature": cfg.AI.Stateless.Temperature} {
		if *t < 0 || *t > 2 {
			return fmt.Errorf("%s must be between 0 and 2", name)
		}
	}
	if cfg.Bot.Enabled && cfg.Bot.Token == "" {
		return errors.New("bot.token is required when bot.enabled is set")
	}
	if cfg.Session.IdleTTL > 0 && cfg.Redis.URL != "" && cfg.Session.IdleTTL <= cfg.Session.CacheTTL {
		// a cached copy must never outlive its purged row
		return errors.New("session.idle_ttl must exceed session.cache_ttl")
	}
	if cfg.RateLimit.PerMinute > 0 && cfg.Redis.URL == "" {
		return errors.New("redis.url is required when rate_limit.per_minute is set")
	}
	return nil
}

func float64Ptr(v float64) *float64 { return &v }

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
