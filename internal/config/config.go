// Package config loads the coach configuration from an optional YAML file,
// COACH_-prefixed environment variables and bound command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonathan/resume-coach/internal/extraction"
	"github.com/jonathan/resume-coach/internal/llm"
)

// AppName is the config file base name and the env prefix source.
const AppName = "resume-coach"

// EnvPrefix prefixes every environment override, e.g. COACH_DATABASE_URL.
const EnvPrefix = "COACH"

// Config is the full application configuration.
type Config struct {
	Debug       bool                         `mapstructure:"debug"`
	JSON        bool                         `mapstructure:"json"`
	Database    DatabaseConfig               `mapstructure:"database"`
	LLM         LLMConfig                    `mapstructure:"llm"`
	Server      ServerConfig                 `mapstructure:"server"`
	Queue       QueueConfig                  `mapstructure:"queue"`
	ObjectStore extraction.ObjectStoreConfig `mapstructure:"object_store"`
	Fetch       FetchConfig                  `mapstructure:"fetch"`
	Learning    LearningConfig               `mapstructure:"learning"`
}

// DatabaseConfig selects the storage engine.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// LLMConfig configures the language-model client.
type LLMConfig struct {
	Provider        string  `mapstructure:"provider"`
	APIKey          string  `mapstructure:"api_key"`
	LiteModel       string  `mapstructure:"lite_model"`
	StandardModel   string  `mapstructure:"standard_model"`
	AdvancedModel   string  `mapstructure:"advanced_model"`
	Temperature     float32 `mapstructure:"temperature"`
	MaxOutputTokens int32   `mapstructure:"max_output_tokens"`
	HistoryTurns    int     `mapstructure:"history_turns"`
	// ChatTier is the model tier used for conversation turns.
	ChatTier string `mapstructure:"chat_tier"`
	// JudgeTier is the model tier used to grade curriculum replies.
	JudgeTier string `mapstructure:"judge_tier"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string          `mapstructure:"addr"`
	JWT             JWTConfig       `mapstructure:"jwt"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
}

// RateLimitConfig configures the token-bucket limiter. Turn limits apply to
// the conversation endpoints, the default limit to everything else.
type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DefaultLimit    int           `mapstructure:"default_limit"`
	DefaultWindow   time.Duration `mapstructure:"default_window"`
	TurnLimit       int           `mapstructure:"turn_limit"`
	TurnWindow      time.Duration `mapstructure:"turn_window"`
	TurnBurst       int           `mapstructure:"turn_burst"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Whitelist       []string      `mapstructure:"whitelist"`
	Blacklist       []string      `mapstructure:"blacklist"`
}

// QueueConfig selects how learning jobs are dispatched. An empty AMQPURL
// runs them on an in-process worker pool.
type QueueConfig struct {
	AMQPURL string `mapstructure:"amqp_url"`
	Name    string `mapstructure:"name"`
	Workers int    `mapstructure:"workers"`
	Buffer  int    `mapstructure:"buffer"`
}

// FetchConfig configures profile import from URLs.
type FetchConfig struct {
	UseBrowser bool          `mapstructure:"use_browser"`
	Timeout    time.Duration `mapstructure:"timeout"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// LearningConfig tunes pattern injection.
type LearningConfig struct {
	MaxPatterns int `mapstructure:"max_patterns"`
}

var defaults = map[string]any{
	"debug":                              false,
	"json":                               false,
	"database.driver":                    "memory",
	"database.url":                       "",
	"llm.provider":                       string(llm.ProviderGemini),
	"llm.api_key":                        "",
	"llm.lite_model":                     "gemini-2.5-flash-lite",
	"llm.standard_model":                 "gemini-2.5-flash",
	"llm.advanced_model":                 "gemini-2.5-pro",
	"llm.temperature":                    0.4,
	"llm.max_output_tokens":              0,
	"llm.history_turns":                  12,
	"llm.chat_tier":                      string(llm.TierStandard),
	"llm.judge_tier":                     string(llm.TierLite),
	"server.addr":                        ":8080",
	"server.jwt.secret":                  "",
	"server.jwt.issuer":                  "",
	"server.jwt.expiration_hours":        24,
	"server.rate_limit.enabled":          true,
	"server.rate_limit.default_limit":    600,
	"server.rate_limit.default_window":   time.Minute,
	"server.rate_limit.turn_limit":       30,
	"server.rate_limit.turn_window":      time.Minute,
	"server.rate_limit.turn_burst":       5,
	"server.rate_limit.cleanup_interval": 5 * time.Minute,
	"server.rate_limit.whitelist":        []string{},
	"server.rate_limit.blacklist":        []string{},
	"server.shutdown_timeout":            30 * time.Second,
	"server.allowed_origins":             []string{"*"},
	"queue.amqp_url":                     "",
	"queue.name":                         "resume_coach.learning",
	"queue.workers":                      2,
	"queue.buffer":                       64,
	"object_store.bucket":                "",
	"object_store.region":                "",
	"object_store.endpoint":              "",
	"object_store.access_key":            "",
	"object_store.secret_key":            "",
	"fetch.use_browser":                  false,
	"fetch.timeout":                      30 * time.Second,
	"fetch.user_agent":                   "",
	"learning.max_patterns":              8,
}

// aliases maps keys to conventional unprefixed variables also honored.
var aliases = map[string]string{
	"llm.api_key":       "GEMINI_API_KEY",
	"database.url":      "DATABASE_URL",
	"server.jwt.secret": "JWT_SECRET",
	"queue.amqp_url":    "AMQP_URL",
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, alias := range aliases {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		_ = v.BindEnv(key, prefixed, alias)
	}
	return v
}

// Load reads the config file, if any, and decodes the merged configuration.
// An explicit file must exist; without one resume-coach.yaml in the working
// directory is used when present.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Requirement names a capability a command needs configured.
type Requirement int

// Requirements checked by Validate
const (
	NeedLLM Requirement = iota
	NeedQueue
	NeedDatabase
)

// Validate checks value ranges and the keys the given requirements need.
func (c *Config) Validate(needs ...Requirement) error {
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("config error: 'llm.temperature' must be within 0..2, got %v", c.LLM.Temperature)
	}
	if c.LLM.HistoryTurns < 0 {
		return fmt.Errorf("config error: 'llm.history_turns' must be non-negative")
	}
	for key, tier := range map[string]string{"llm.chat_tier": c.LLM.ChatTier, "llm.judge_tier": c.LLM.JudgeTier} {
		if _, err := llm.ParseTier(tier); err != nil {
			return fmt.Errorf("config error: '%s': %w", key, err)
		}
	}
	if c.Queue.Workers < 1 {
		return fmt.Errorf("config error: 'queue.workers' must be at least 1")
	}
	if c.Queue.Buffer < 0 {
		return fmt.Errorf("config error: 'queue.buffer' must be non-negative")
	}
	if c.Learning.MaxPatterns < 0 {
		return fmt.Errorf("config error: 'learning.max_patterns' must be non-negative")
	}
	rl := c.Server.RateLimit
	if rl.Enabled && (rl.DefaultLimit < 1 || rl.TurnLimit < 1 || rl.DefaultWindow <= 0 || rl.TurnWindow <= 0) {
		return fmt.Errorf("config error: rate limits and windows must be positive when rate limiting is enabled")
	}
	if c.Server.JWT.Secret != "" {
		if err := c.Server.JWT.normalize(); err != nil {
			return err
		}
	}

	for _, need := range needs {
		switch need {
		case NeedLLM:
			if c.LLM.APIKey == "" {
				return fmt.Errorf("config error: 'llm.api_key' is required (set %s_LLM_API_KEY or GEMINI_API_KEY)", EnvPrefix)
			}
		case NeedQueue:
			if c.Queue.AMQPURL == "" {
				return fmt.Errorf("config error: 'queue.amqp_url' is required (set %s_QUEUE_AMQP_URL or AMQP_URL)", EnvPrefix)
			}
		case NeedDatabase:
			if c.Database.Driver == "postgres" && c.Database.URL == "" {
				return fmt.Errorf("config error: 'database.url' is required for the postgres driver")
			}
		}
	}
	return nil
}

// ClientConfig converts the LLM section into the client configuration.
func (c LLMConfig) ClientConfig() *llm.Config {
	cfg := llm.DefaultConfig()
	if c.Provider != "" {
		cfg.Provider = llm.Provider(c.Provider)
	}
	for tier, model := range map[llm.ModelTier]string{
		llm.TierLite:     c.LiteModel,
		llm.TierStandard: c.StandardModel,
		llm.TierAdvanced: c.AdvancedModel,
	} {
		if model != "" {
			cfg = cfg.WithModel(tier, model)
		}
	}
	cfg.Temperature = c.Temperature
	cfg.MaxOutputTokens = c.MaxOutputTokens
	return cfg
}

// Tiers returns the validated chat and judge tiers.
func (c LLMConfig) Tiers() (chat, judge llm.ModelTier) {
	chat, _ = llm.ParseTier(c.ChatTier)
	judge, _ = llm.ParseTier(c.JudgeTier)
	return chat, judge
}
