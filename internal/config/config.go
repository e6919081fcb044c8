package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AppDir is the per-user directory under $HOME holding config and state.
const AppDir = ".salesloom"

// Global configuration structure.
type Global struct {
	APIKey          string `mapstructure:"api_key" yaml:"api_key"`
	DefaultModel    string `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string `mapstructure:"default_provider" yaml:"default_provider"`
	OpenAIBaseURL   string `mapstructure:"openai_base_url" yaml:"openai_base_url,omitempty"`
	MaxTokens       int    `mapstructure:"max_tokens" yaml:"max_tokens"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	CallTimeoutSec   int `mapstructure:"call_timeout_sec" yaml:"call_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// Usage governor
	MaxDailyCalls  int     `mapstructure:"max_daily_calls" yaml:"max_daily_calls"`
	MaxWeeklyCalls int     `mapstructure:"max_weekly_calls" yaml:"max_weekly_calls"`
	CostPerCall    float64 `mapstructure:"cost_per_call" yaml:"cost_per_call"`

	// State, cache and agent
	DataDir           string `mapstructure:"data_dir" yaml:"data_dir"`
	CacheEnabled      bool   `mapstructure:"cache_enabled" yaml:"cache_enabled"`
	CacheClearOnStart bool   `mapstructure:"cache_clear_on_start" yaml:"cache_clear_on_start"`
	AgentMaxAttempts  int    `mapstructure:"agent_max_attempts" yaml:"agent_max_attempts"`
	AgentSampleRows   int    `mapstructure:"agent_sample_rows" yaml:"agent_sample_rows"`
	MaxFileSizeMB     int    `mapstructure:"max_file_size_mb" yaml:"max_file_size_mb"`

	// Logging and HTTP API
	LogLevel       string   `mapstructure:"log_level" yaml:"log_level"`
	ServeAddr      string   `mapstructure:"serve_addr" yaml:"serve_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

var defaults = map[string]any{
	"default_model":        "openai/gpt-4o-mini",
	"default_provider":     "openrouter",
	"max_tokens":           1024,
	"http_timeout_sec":     60,
	"call_timeout_sec":     60,
	"retry_max_attempts":   3,
	"retry_base_delay_ms":  500,
	"retry_max_delay_ms":   4000,
	"ollama_host":          "http://127.0.0.1:11434",
	"ollama_timeout_sec":   120,
	"max_daily_calls":      1000,
	"max_weekly_calls":     5000,
	"cost_per_call":        0.001,
	"cache_enabled":        true,
	"cache_clear_on_start": false,
	"agent_max_attempts":   3,
	"agent_sample_rows":    3,
	"max_file_size_mb":     10,
	"log_level":            "warn",
	"serve_addr":           "127.0.0.1:8080",
	"allowed_origins":      []string{"http://localhost:*", "http://127.0.0.1:*"},
}

// Home returns ~/.salesloom.
func Home() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, AppDir), nil
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.salesloom/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Home()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "config.yaml")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults; CLI flags are applied by the caller.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("SALESLOOM")
	v.AutomaticEnv()
	_ = v.BindEnv("api_key", "SALESLOOM_API_KEY", "OPENROUTER_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("data_dir")
	_ = v.BindEnv("openai_base_url")

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Home()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.DataDir == "" {
		dir, err := Home()
		if err != nil {
			return nil, err
		}
		c.DataDir = dir
	}
	return &c, nil
}

// UsagePath is the usage ledger file.
func (c *Global) UsagePath() string { return filepath.Join(c.DataDir, "usage.json") }

// CachePath is the answer cache file.
func (c *Global) CachePath() string { return filepath.Join(c.DataDir, "qa_cache.json") }

// MaxFileBytes converts max_file_size_mb to bytes.
func (c *Global) MaxFileBytes() int64 { return int64(c.MaxFileSizeMB) << 20 }

// Keys lists the settable keys in sorted order.
func Keys() []string {
	out := make([]string, 0, len(defaults)+3)
	for k := range defaults {
		out = append(out, k)
	}
	out = append(out, "api_key", "data_dir", "openai_base_url")
	sort.Strings(out)
	return out
}

// Set assigns a single key from its string form, validating the value.
func (c *Global) Set(key, val string) error {
	val = strings.TrimSpace(val)
	switch key {
	case "api_key":
		c.APIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		switch strings.ToLower(val) {
		case "openrouter":
			c.DefaultProvider = "openrouter"
		case "openai":
			c.DefaultProvider = "openai"
		case "ollama", "local":
			c.DefaultProvider = "ollama"
		default:
			return fmt.Errorf("invalid default_provider: %s (use openrouter, openai or ollama)", val)
		}
	case "openai_base_url":
		c.OpenAIBaseURL = val
	case "ollama_host":
		c.OllamaHost = val
	case "data_dir":
		c.DataDir = val
	case "log_level":
		switch strings.ToLower(val) {
		case "debug", "info", "warn", "error":
			c.LogLevel = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid log_level: %s (use debug, info, warn or error)", val)
		}
	case "serve_addr":
		c.ServeAddr = val
	case "allowed_origins":
		var origins []string
		for _, o := range strings.Split(val, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.AllowedOrigins = origins
	case "cache_enabled", "cache_clear_on_start":
		b, err := strconv.ParseBool(val)
		if err != nil {
			return fmt.Errorf("invalid bool for %s: %v", key, val)
		}
		if key == "cache_enabled" {
			c.CacheEnabled = b
		} else {
			c.CacheClearOnStart = b
		}
	case "cost_per_call":
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return fmt.Errorf("invalid float for cost_per_call: %v", val)
		}
		c.CostPerCall = f
	default:
		dst, ok := c.intFields()[key]
		if !ok {
			return fmt.Errorf("unknown key: %s (known: %s)", key, strings.Join(Keys(), ", "))
		}
		i, err := strconv.Atoi(val)
		if err != nil || i <= 0 {
			return fmt.Errorf("invalid positive int for %s: %v", key, val)
		}
		*dst = i
	}
	return nil
}

func (c *Global) intFields() map[string]*int {
	return map[string]*int{
		"max_tokens":          &c.MaxTokens,
		"http_timeout_sec":    &c.HTTPTimeoutSec,
		"call_timeout_sec":    &c.CallTimeoutSec,
		"retry_max_attempts":  &c.RetryMaxAttempts,
		"retry_base_delay_ms": &c.RetryBaseDelayMs,
		"retry_max_delay_ms":  &c.RetryMaxDelayMs,
		"ollama_timeout_sec":  &c.OllamaTimeoutSec,
		"max_daily_calls":     &c.MaxDailyCalls,
		"max_weekly_calls":    &c.MaxWeeklyCalls,
		"agent_max_attempts":  &c.AgentMaxAttempts,
		"agent_sample_rows":   &c.AgentSampleRows,
		"max_file_size_mb":    &c.MaxFileSizeMB,
	}
}
