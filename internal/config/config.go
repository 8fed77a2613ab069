// Package config loads service settings in three layers: built-in defaults,
// an optional YAML file, then environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"product-insights-go/internal/validation"
)

const ConfigPathEnvVar = "CONFIG_PATH"

var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	AI        AIConfig        `koanf:"ai"`
	Dataset   DatasetConfig   `koanf:"dataset"`
	Anthropic AnthropicConfig `koanf:"anthropic"`
	OpenAI    OpenAIConfig    `koanf:"openai"`
	LLM       LLMConfig       `koanf:"llm"`
	Breaker   BreakerConfig   `koanf:"breaker"`
}

type ServerConfig struct {
	Port              int           `koanf:"port" validate:"min=1,max=65535"`
	Environment       string        `koanf:"environment"`
	ReadTimeout       time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout       time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

type LogConfig struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

type AIConfig struct {
	// Mode picks the initial strategy set: mock or remote.
	Mode          string `koanf:"mode" validate:"oneof=mock remote"`
	DefaultUserID int    `koanf:"default_user_id" validate:"gte=1"`
}

type DatasetConfig struct {
	// Path is an optional XLSX workbook overlaying the built-in catalog.
	Path string `koanf:"path"`
}

// AnthropicConfig is endpoint A. A missing key is not an error; calls fail
// and the caller falls back.
type AnthropicConfig struct {
	URL       string `koanf:"url" validate:"required,url"`
	APIKey    string `koanf:"api_key"`
	Model     string `koanf:"model" validate:"required"`
	Version   string `koanf:"version" validate:"required"`
	MaxTokens int    `koanf:"max_tokens" validate:"gt=0"`
}

// OpenAIConfig is endpoint B.
type OpenAIConfig struct {
	URL         string  `koanf:"url" validate:"required,url"`
	APIKey      string  `koanf:"api_key"`
	Model       string  `koanf:"model" validate:"required"`
	Temperature float64 `koanf:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `koanf:"max_tokens" validate:"gt=0"`
}

type LLMConfig struct {
	Timeout    time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxRetries uint64        `koanf:"max_retries"`
}

type BreakerConfig struct {
	MaxFailures uint32        `koanf:"max_failures" validate:"gte=1"`
	Cooldown    time.Duration `koanf:"cooldown" validate:"gt=0"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			Environment:       "local",
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{"*"},
			RateLimitRequests: 120,
			RateLimitWindow:   time.Minute,
		},
		Log: LogConfig{Level: "info"},
		AI: AIConfig{
			Mode:          "mock",
			DefaultUserID: 1,
		},
		Anthropic: AnthropicConfig{
			URL:       "https://api.anthropic.com",
			Model:     "claude-3-sonnet-20240229",
			Version:   "2023-06-01",
			MaxTokens: 2000,
		},
		OpenAI: OpenAIConfig{
			URL:         "https://api.openai.com",
			Model:       "gpt-3.5-turbo",
			Temperature: 0.7,
			MaxTokens:   1000,
		},
		LLM: LLMConfig{
			Timeout:    30 * time.Second,
			MaxRetries: 0,
		},
		Breaker: BreakerConfig{
			MaxFailures: 5,
			Cooldown:    30 * time.Second,
		},
	}
}

// Load builds the configuration. Precedence: env > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	cfg.Server.CORSOrigins = splitOrigins(cfg.Server.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	return validation.Struct(c)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var envKeys = map[string]string{
	"port":                 "server.port",
	"environment":          "server.environment",
	"read_timeout":         "server.read_timeout",
	"write_timeout":        "server.write_timeout",
	"idle_timeout":         "server.idle_timeout",
	"shutdown_timeout":     "server.shutdown_timeout",
	"cors_origins":         "server.cors_origins",
	"rate_limit_requests":  "server.rate_limit_requests",
	"rate_limit_window":    "server.rate_limit_window",
	"log_level":            "log.level",
	"ai_mode":              "ai.mode",
	"default_user_id":      "ai.default_user_id",
	"dataset_path":         "dataset.path",
	"anthropic_url":        "anthropic.url",
	"anthropic_api_key":    "anthropic.api_key",
	"anthropic_model":      "anthropic.model",
	"anthropic_version":    "anthropic.version",
	"anthropic_max_tokens": "anthropic.max_tokens",
	"openai_url":           "openai.url",
	"openai_api_key":       "openai.api_key",
	"openai_model":         "openai.model",
	"openai_temperature":   "openai.temperature",
	"openai_max_tokens":    "openai.max_tokens",
	"llm_timeout":          "llm.timeout",
	"llm_max_retries":      "llm.max_retries",
	"breaker_max_failures": "breaker.max_failures",
	"breaker_cooldown":     "breaker.cooldown",
}

// envTransform maps PORT -> server.port and so on. Unknown variables are
// dropped.
func envTransform(key string) string {
	return envKeys[strings.ToLower(key)]
}

// splitOrigins flattens "a, b" entries that arrive as one string.
func splitOrigins(in []string) []string {
	var out []string
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
