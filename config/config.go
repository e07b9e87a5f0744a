package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the research agent system
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Search    SearchConfig    `mapstructure:"search"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Tasks     TasksConfig     `mapstructure:"tasks"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug      bool   `mapstructure:"debug"`
	LogLevel   string `mapstructure:"log_level"`
	StrictMode bool   `mapstructure:"strict_mode"` // fail hard when a provider credential is missing
}

// ServerConfig contains HTTP server and auth settings
type ServerConfig struct {
	Address   string `mapstructure:"address"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// LLMConfig contains LLM provider settings
type LLMConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	CompletionModel   string        `mapstructure:"completion_model"`
	DeepResearchModel string        `mapstructure:"deep_research_model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	CostPer1KInput    float64       `mapstructure:"cost_per_1k_input"`
	CostPer1KOutput   float64       `mapstructure:"cost_per_1k_output"`
}

// SearchConfig contains web search transport settings
type SearchConfig struct {
	Provider     string        `mapstructure:"provider"` // serper or brave
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	BraveAPIKey  string        `mapstructure:"brave_api_key"`
	MaxResults   int           `mapstructure:"max_results"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// RetryConfig contains stage execution retry settings
type RetryConfig struct {
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

func (r RetryConfig) Validate() error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be >= 1")
	}
	if r.BackoffFactor < 0 {
		return fmt.Errorf("retry.backoff_factor must be >= 0")
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("retry.timeout must be > 0")
	}
	return nil
}

// TasksConfig contains async task lifecycle settings
type TasksConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"`     // deep job polling cadence
	StreamInterval  time.Duration `mapstructure:"stream_interval"`   // SSE observer cadence
	DeepWaitTimeout time.Duration `mapstructure:"deep_wait_timeout"` // ceiling before falling back to the sync pipeline
	Retention       time.Duration `mapstructure:"retention"`
	SweepCron       string        `mapstructure:"sweep_cron"`
}

// StorageConfig contains persistence settings
type StorageConfig struct {
	Backend    string         `mapstructure:"backend"` // memory, sqlite or postgres
	SQLitePath string         `mapstructure:"sqlite_path"`
	Postgres   PostgresConfig `mapstructure:"postgres"`
	Redis      RedisConfig    `mapstructure:"redis"`
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

// DSN builds a connection string from either the url or the discrete fields.
func (p PostgresConfig) DSN() (string, error) {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL, nil
	}
	if strings.TrimSpace(p.Host) == "" || strings.TrimSpace(p.DBName) == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Addr returns host:port, or empty when redis is not configured.
func (r RedisConfig) Addr() string {
	if strings.TrimSpace(r.Host) == "" || strings.TrimSpace(r.Port) == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

// TelemetryConfig contains telemetry and monitoring settings
type TelemetryConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	CostTracking bool `mapstructure:"cost_tracking"`
}

func (s StorageConfig) Validate() error {
	switch s.Backend {
	case "", "memory", "sqlite":
	case "postgres":
		if _, err := s.Postgres.DSN(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.backend must be memory, sqlite or postgres (got %q)", s.Backend)
	}
	return nil
}

// LoadConfig loads config from file
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("llm.completion_model", "gpt-5.1")
	viper.SetDefault("llm.deep_research_model", "o3-deep-research")
	viper.SetDefault("llm.timeout", 120*time.Second)
	viper.SetDefault("search.provider", "serper")
	viper.SetDefault("search.max_results", 8)
	viper.SetDefault("search.cache_ttl", 5*time.Minute)
	viper.SetDefault("search.timeout", 20*time.Second)
	viper.SetDefault("retry.max_attempts", 3)
	viper.SetDefault("retry.backoff_factor", 0.5)
	viper.SetDefault("retry.timeout", 300*time.Second)
	viper.SetDefault("tasks.poll_interval", 2*time.Second)
	viper.SetDefault("tasks.stream_interval", 500*time.Millisecond)
	viper.SetDefault("tasks.deep_wait_timeout", 15*time.Minute)
	viper.SetDefault("tasks.retention", 72*time.Hour)
	viper.SetDefault("tasks.sweep_cron", "0 * * * *")
	viper.SetDefault("storage.backend", "sqlite")
	viper.SetDefault("storage.sqlite_path", "briefer_tasks.db")
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
		viper.AddConfigPath(filepath.Join(exeDir, "..", "config"))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("BRIEFER")
	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvKeyReplacer(replacer)

	viper.AutomaticEnv() // read in environment variables that match (BRIEFER_*)

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional; env vars and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.Retry.Validate(); err != nil {
		panic(err)
	}
	if err := config.Storage.Validate(); err != nil {
		panic(err)
	}
	return &config
}
