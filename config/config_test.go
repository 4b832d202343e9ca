package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dockagent_config.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestLoadFromFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("DATABASE_URL", "")
	path := writeConfigFile(t, `{
		"llm": {
			"provider": "gemini",
			"gemini": {"api_key": "test-key-123"}
		},
		"agent": {"max_steps": 6},
		"server": {"address": ":9091"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "gemini" {
		t.Fatalf("provider = %q, want gemini", cfg.LLM.Provider)
	}
	if cfg.LLM.Gemini.APIKey != "test-key-123" {
		t.Fatalf("api key = %q", cfg.LLM.Gemini.APIKey)
	}
	if cfg.Agent.MaxSteps != 6 {
		t.Fatalf("max steps = %d, want 6", cfg.Agent.MaxSteps)
	}
	if cfg.Server.Address != ":9091" {
		t.Fatalf("address = %q", cfg.Server.Address)
	}
	// Untouched sections keep their defaults.
	if cfg.LLM.Gemini.Model != "gemini-1.5-pro" {
		t.Fatalf("default model = %q", cfg.LLM.Gemini.Model)
	}
	if cfg.LLM.Gemini.Temperature != 0.1 {
		t.Fatalf("default temperature = %v", cfg.LLM.Gemini.Temperature)
	}
	if cfg.Agent.ToolTimeoutFloor != 30*time.Second {
		t.Fatalf("default tool timeout floor = %v", cfg.Agent.ToolTimeoutFloor)
	}
	if cfg.Server.MaxConcurrentSessions != 4 {
		t.Fatalf("default max concurrent sessions = %d", cfg.Server.MaxConcurrentSessions)
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("DATABASE_URL", "postgres://env:env@db:5432/agent?sslmode=disable")
	path := writeConfigFile(t, `{
		"llm": {"gemini": {"api_key": "file-key"}}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Gemini.APIKey != "env-key" {
		t.Fatalf("api key = %q, want env-key", cfg.LLM.Gemini.APIKey)
	}
	if cfg.Storage.Postgres.URL == "" || cfg.Storage.Postgres.DSN() != "postgres://env:env@db:5432/agent?sslmode=disable" {
		t.Fatalf("postgres url = %q", cfg.Storage.Postgres.URL)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	path := writeConfigFile(t, `{
		"llm": {"provider": "llama"},
		"agent": {"max_steps": 0}
	}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var cfgErr *Error
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error type = %T, want *config.Error", err)
	}
	if len(cfgErr.Problems) < 2 {
		t.Fatalf("problems = %v, want at least provider and max_steps", cfgErr.Problems)
	}
	msg := err.Error()
	if !strings.Contains(msg, "llm.provider") || !strings.Contains(msg, "agent.max_steps") {
		t.Fatalf("error message missing problems: %s", msg)
	}
}

func TestValidateJanitorSchedule(t *testing.T) {
	cfg := &Config{}
	cfg.LLM.Provider = "gemini"
	cfg.LLM.Gemini.APIKey = "k"
	cfg.LLM.Gemini.Temperature = 0.1
	cfg.Agent.MaxSteps = 10
	cfg.Agent.ToolTimeoutMultiplier = 2
	cfg.Server.MaxConcurrentSessions = 4
	cfg.Server.Janitor.Enabled = true
	cfg.Server.Janitor.Schedule = "not a cron line"
	cfg.Server.Janitor.StaleAfter = time.Hour

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected janitor schedule problem")
	}
	if !strings.Contains(err.Error(), "server.janitor.schedule") {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Server.Janitor.Schedule = "@hourly"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid janitor config rejected: %v", err)
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: "5433", User: "agent", Password: "pw",
		DBName: "dockagent", SSLMode: "disable",
	}
	want := "postgres://agent:pw@db:5433/dockagent?sslmode=disable"
	if got := p.DSN(); got != want {
		t.Fatalf("DSN = %q, want %q", got, want)
	}
	p.URL = "postgres://other"
	if got := p.DSN(); got != "postgres://other" {
		t.Fatalf("explicit url ignored: %q", got)
	}
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: "6380"}
	if got := r.Addr(); got != "cache:6380" {
		t.Fatalf("Addr = %q", got)
	}
}

func TestActiveProvider(t *testing.T) {
	l := LLMConfig{Provider: "openai"}
	l.OpenAI.Model = "gpt-4o"
	l.Gemini.Model = "gemini-1.5-pro"
	if got := l.Active().Model; got != "gpt-4o" {
		t.Fatalf("active model = %q, want gpt-4o", got)
	}
	l.Provider = "gemini"
	if got := l.Active().Model; got != "gemini-1.5-pro" {
		t.Fatalf("active model = %q, want gemini-1.5-pro", got)
	}
}
