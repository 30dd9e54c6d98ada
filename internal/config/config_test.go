//go:build !integration

package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PORT", "")
	cfg, err := Parse([]byte("ai:\n  openai_key: sk-test\n"), false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "memory" || cfg.Session.Lock != "local" {
		t.Errorf("unexpected store defaults: %s/%s", cfg.Database.Driver, cfg.Session.Lock)
	}
	if cfg.AI.DefaultModel != "gpt-4" || *cfg.AI.Temperature != 0.3 || cfg.AI.MaxTokens != 700 {
		t.Errorf("unexpected sampling defaults: %+v", cfg.AI)
	}
	if *cfg.AI.Stateless.Temperature != 0.7 || cfg.AI.Stateless.MaxTokens != 500 {
		t.Errorf("unexpected stateless defaults: %+v", cfg.AI.Stateless)
	}
	if cfg.Session.MaxMessageLength != 1000 {
		t.Errorf("expected max message length 1000, got %d", cfg.Session.MaxMessageLength)
	}
	if cfg.Session.LockTTL <= cfg.AI.Timeout {
		t.Errorf("lock ttl %s must outlive model timeout %s", cfg.Session.LockTTL, cfg.AI.Timeout)
	}
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("PORT", "8081")
	cfg, err := Parse([]byte("server:\n  port: 9000\n  request_timeout: 5s\n"), true)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.AI.OpenAIKey != "sk-env" || cfg.Server.Port != 8081 {
		t.Errorf("env not applied: key=%q port=%d", cfg.AI.OpenAIKey, cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.Server.RequestTimeout)
	}
	if !cfg.Runtime.Dev {
		t.Error("dev flag lost")
	}
}

func TestParse_Validation(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"missing key", "ai:\n  provider: openai\n", "openai_key"},
		{"postgres without url", "ai: {provider: noop}\ndatabase: {driver: postgres}\n", "database.url"},
		{"redis lock without redis", "ai: {provider: noop}\nsession: {lock: redis}\n", "redis.url"},
		{"unknown driver", "ai: {provider: noop}\ndatabase: {driver: mongo}\n", "database.driver"},
		{"bot without token", "ai: {provider: noop}\nbot: {enabled: true}\n", "bot.token"},
		{"idle ttl under cache ttl", "ai: {provider: noop}\nredis: {url: \"redis://localhost:6379\"}\nsession: {idle_ttl: 10m}\n", "idle_ttl"},
		{"temperature out of range", "ai: {provider: noop, temperature: 2.5}\n", "ai.temperature"},
		{"rate limit without redis", "ai: {provider: noop}\nrate_limit: {per_minute: 30}\n", "redis.url"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml), false)
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestParse_GeminiDefaultModel(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "g-key")
	cfg, err := Parse([]byte("ai:\n  provider: gemini\n"), false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.AI.DefaultModel != "gemini-2.0-flash" {
		t.Errorf("expected a gemini default model, got %q", cfg.AI.DefaultModel)
	}
}

func TestParse_ZeroTemperatureIsKept(t *testing.T) {
	cfg, err := Parse([]byte("ai:\n  provider: noop\n  temperature: 0\n  stateless:\n    temperature: 0\n"), false)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if *cfg.AI.Temperature != 0 || *cfg.AI.Stateless.Temperature != 0 {
		t.Errorf("explicit zero temperature replaced: %v / %v", *cfg.AI.Temperature, *cfg.AI.Stateless.Temperature)
	}
}
