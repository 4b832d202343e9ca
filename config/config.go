package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/spf13/viper"
)

// Config holds all configuration for the docking agent system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug             bool          `mapstructure:"debug"`
	LogLevel          string        `mapstructure:"log_level"`
	MaxProcessingTime time.Duration `mapstructure:"max_processing_time"`
	DefaultTimeout    time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address               string        `mapstructure:"address"`
	JWTSecret             string        `mapstructure:"jwt_secret"`
	MaxConcurrentSessions int           `mapstructure:"max_concurrent_sessions"`
	Janitor               JanitorConfig `mapstructure:"janitor"`
}

// JanitorConfig controls the stale-session sweeper
type JanitorConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Schedule   string        `mapstructure:"schedule"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
}

// LLMConfig selects and configures the completion provider
type LLMConfig struct {
	Provider string         `mapstructure:"provider"` // gemini or openai
	Gemini   ProviderConfig `mapstructure:"gemini"`
	OpenAI   ProviderConfig `mapstructure:"openai"`
}

// ProviderConfig represents a single LLM provider configuration
type ProviderConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CostPer1KInput  float64       `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput float64       `mapstructure:"cost_per_1k_output"`
}

// Active returns the provider configuration selected by Provider.
func (l LLMConfig) Active() ProviderConfig {
	if strings.EqualFold(l.Provider, "openai") {
		return l.OpenAI
	}
	return l.Gemini
}

// AgentConfig contains orchestration loop settings
type AgentConfig struct {
	MaxSteps              int           `mapstructure:"max_steps"`
	ToolTimeoutMultiplier float64       `mapstructure:"tool_timeout_multiplier"`
	ToolTimeoutFloor      time.Duration `mapstructure:"tool_timeout_floor"`
}

// StorageConfig contains storage and persistence settings
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	File     FileConfig     `mapstructure:"file"`
}

// PostgresConfig contains Postgres connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DSN renders the connection string lib/pq expects.
func (p PostgresConfig) DSN() string {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Addr renders host:port for the redis client.
func (r RedisConfig) Addr() string { return r.Host + ":" + r.Port }

// FileConfig contains file storage settings
type FileConfig struct {
	DataDir string `mapstructure:"data_dir"`
	LogDir  string `mapstructure:"log_dir"`
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
	PeriodicLogs bool `mapstructure:"periodic_logs"`
}

// Error aggregates every configuration problem found during validation
// so a misconfigured deployment reports all of them at once.
type Error struct {
	Problems []string
}

func (e *Error) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the loaded configuration and returns a *Error listing
// every problem found, or nil when the configuration is usable.
func (c *Config) Validate() error {
	var problems []string

	provider := strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	switch provider {
	case "gemini":
		if strings.TrimSpace(c.LLM.Gemini.APIKey) == "" {
			problems = append(problems, "llm.gemini.api_key required (or set GEMINI_API_KEY)")
		}
	case "openai":
		if strings.TrimSpace(c.LLM.OpenAI.APIKey) == "" {
			problems = append(problems, "llm.openai.api_key required (or set OPENAI_API_KEY)")
		}
	default:
		problems = append(problems, fmt.Sprintf("llm.provider must be gemini or openai, got %q", c.LLM.Provider))
	}

	active := c.LLM.Active()
	if active.Temperature < 0 || active.Temperature > 2 {
		problems = append(problems, fmt.Sprintf("llm temperature must be in [0,2], got %v", active.Temperature))
	}

	if c.Agent.MaxSteps < 1 {
		problems = append(problems, fmt.Sprintf("agent.max_steps must be >= 1, got %d", c.Agent.MaxSteps))
	}
	if c.Agent.ToolTimeoutMultiplier <= 0 {
		problems = append(problems, "agent.tool_timeout_multiplier must be > 0")
	}

	if c.Server.MaxConcurrentSessions < 1 {
		problems = append(problems, fmt.Sprintf("server.max_concurrent_sessions must be >= 1, got %d", c.Server.MaxConcurrentSessions))
	}
	if c.Server.Janitor.Enabled {
		if _, err := cronexpr.Parse(c.Server.Janitor.Schedule); err != nil {
			problems = append(problems, fmt.Sprintf("server.janitor.schedule %q: %v", c.Server.Janitor.Schedule, err))
		}
		if c.Server.Janitor.StaleAfter <= 0 {
			problems = append(problems, "server.janitor.stale_after must be > 0 when the janitor is enabled")
		}
	}

	if len(problems) > 0 {
		return &Error{Problems: problems}
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.max_processing_time", 30*time.Minute)
	viper.SetDefault("general.default_timeout", time.Minute)

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("server.max_concurrent_sessions", 4)
	viper.SetDefault("server.janitor.enabled", false)
	viper.SetDefault("server.janitor.schedule", "@hourly")
	viper.SetDefault("server.janitor.stale_after", 2*time.Hour)
	viper.SetDefault("server.janitor.lock_ttl", 10*time.Minute)

	viper.SetDefault("llm.provider", "gemini")
	viper.SetDefault("llm.gemini.model", "gemini-1.5-pro")
	viper.SetDefault("llm.gemini.base_url", "https://generativelanguage.googleapis.com/v1beta")
	viper.SetDefault("llm.gemini.temperature", 0.1)
	viper.SetDefault("llm.gemini.max_tokens", 8192)
	viper.SetDefault("llm.gemini.timeout", 2*time.Minute)
	viper.SetDefault("llm.gemini.cost_per_1k_input", 0.00125)
	viper.SetDefault("llm.gemini.cost_per_1k_output", 0.005)
	viper.SetDefault("llm.openai.model", "gpt-4o")
	viper.SetDefault("llm.openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.openai.temperature", 0.1)
	viper.SetDefault("llm.openai.max_tokens", 8192)
	viper.SetDefault("llm.openai.timeout", 2*time.Minute)
	viper.SetDefault("llm.openai.cost_per_1k_input", 0.0025)
	viper.SetDefault("llm.openai.cost_per_1k_output", 0.01)

	viper.SetDefault("agent.max_steps", 10)
	viper.SetDefault("agent.tool_timeout_multiplier", 2.0)
	viper.SetDefault("agent.tool_timeout_floor", 30*time.Second)

	viper.SetDefault("storage.postgres.host", "localhost")
	viper.SetDefault("storage.postgres.port", "5432")
	viper.SetDefault("storage.postgres.user", "postgres")
	viper.SetDefault("storage.postgres.password", "postgres")
	viper.SetDefault("storage.postgres.dbname", "dockagent")
	viper.SetDefault("storage.postgres.sslmode", "disable")
	viper.SetDefault("storage.postgres.timeout", 5*time.Second)
	viper.SetDefault("storage.redis.host", "localhost")
	viper.SetDefault("storage.redis.port", "6379")
	viper.SetDefault("storage.redis.db", 0)
	viper.SetDefault("storage.redis.timeout", 5*time.Second)
	viper.SetDefault("storage.file.data_dir", "./data")
	viper.SetDefault("storage.file.log_dir", "./logs")

	viper.SetDefault("telemetry.enabled", true)
	viper.SetDefault("telemetry.cost_tracking", true)
	viper.SetDefault("telemetry.periodic_logs", false)
}

// overrideFromEnv applies the handful of bare environment variables the
// deployment scripts export, which do not follow the DOCKAGENT_ prefix.
func overrideFromEnv(config *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.LLM.Gemini.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		config.LLM.OpenAI.APIKey = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		config.Storage.Postgres.URL = v
	}
	if v := os.Getenv("POSTGRES_HOST"); v != "" {
		config.Storage.Postgres.Host = v
	}
	if v := os.Getenv("POSTGRES_PORT"); v != "" {
		config.Storage.Postgres.Port = v
	}
	if v := os.Getenv("POSTGRES_USER"); v != "" {
		config.Storage.Postgres.User = v
	}
	if v := os.Getenv("POSTGRES_PASSWORD"); v != "" {
		config.Storage.Postgres.Password = v
	}
	if v := os.Getenv("POSTGRES_DB"); v != "" {
		config.Storage.Postgres.DBName = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		config.Storage.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		config.Storage.Redis.Port = v
	}
}

// Load reads configuration from the given file (or the default search
// paths when path is empty), applies environment overrides and validates
// the result. A missing config file is not an error; defaults plus
// environment variables are enough to run.
func Load(path string) (*Config, error) {
	viper.SetConfigName("dockagent_config")
	viper.SetConfigType("json")
	setDefaults()

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("DOCKAGENT")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv() // read in environment variables that match (DOCKAGENT_*)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	overrideFromEnv(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// MustLoad is Load for main-path callers that cannot proceed without
// configuration.
func MustLoad(path string) *Config {
	config, err := Load(path)
	if err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return config
}
