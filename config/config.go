package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// PlaceholderAPIKey is the value shipped in sample config files.
const PlaceholderAPIKey = "SUA_CHAVE_DE_API_AQUI"

// Config holds everything the agent needs for one run.
type Config struct {
	Agent      AgentConfig      `mapstructure:"agent"`
	Oracle     OracleConfig     `mapstructure:"oracle"`
	Game       GameConfig       `mapstructure:"game"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Validation ValidationConfig `mapstructure:"validation"`
	Log        LogConfig        `mapstructure:"log"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Journal    JournalConfig    `mapstructure:"journal"`
}

type AgentConfig struct {
	ID string `mapstructure:"id"`
}

// OracleConfig points at the rule oracle serving GET /tools.
type OracleConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GameConfig points at the game server's websocket endpoint.
type GameConfig struct {
	URL            string        `mapstructure:"url"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	AckTimeout     time.Duration `mapstructure:"ack_timeout"`
}

type LLMConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ValidationConfig tunes the strategy sandbox. Probes maps a rule name to
// an expr condition evaluated against every dry run.
type ValidationConfig struct {
	Timeout time.Duration     `mapstructure:"timeout"`
	Probes  map[string]string `mapstructure:"probes"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"`
	Journal bool   `mapstructure:"journal"`
}

// TelemetryConfig enables the /metrics endpoint when MetricsAddr is set.
type TelemetryConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// JournalConfig enables the redis deployment journal when RedisAddr is set.
type JournalConfig struct {
	RedisAddr  string `mapstructure:"redis_addr"`
	Key        string `mapstructure:"key"`
	MaxEntries int64  `mapstructure:"max_entries"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("agent.id", "ai_agent_masp")
	v.SetDefault("oracle.url", "http://127.0.0.1:8000")
	v.SetDefault("oracle.timeout", 30*time.Second)
	v.SetDefault("game.url", "ws://localhost:3000/ws")
	v.SetDefault("game.connect_timeout", 10*time.Second)
	v.SetDefault("game.ack_timeout", 10*time.Second)
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-pro")
	v.SetDefault("llm.base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("llm.timeout", 30*time.Second)
	v.SetDefault("validation.timeout", time.Second)
	v.SetDefault("validation.probes", map[string]string{})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.journal", false)
	v.SetDefault("telemetry.metrics_addr", "")
	v.SetDefault("journal.redis_addr", "")
	v.SetDefault("journal.key", "masp:deployments")
	v.SetDefault("journal.max_entries", 1000)
}

// LoadConfig reads path (or config.{yaml,json,toml} from the usual places
// when path is empty) and overlays MASP_* environment variables. A missing
// config file is not an error; every key has a default.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path == "" {
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("MASP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The key is conventionally exported unprefixed.
	if err := v.BindEnv("llm.api_key", "MASP_LLM_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Oracle.URL = strings.TrimSpace(cfg.Oracle.URL)
	cfg.Game.URL = strings.TrimSpace(cfg.Game.URL)
	cfg.LLM.APIKey = strings.TrimSpace(cfg.LLM.APIKey)
	return &cfg, nil
}

// APIKeyConfigured reports whether a usable generation key is present.
func (c *Config) APIKeyConfigured() bool {
	return c.LLM.APIKey != "" && c.LLM.APIKey != PlaceholderAPIKey
}

// Validate rejects configurations the agent cannot start with.
func (c *Config) Validate() error {
	if !c.APIKeyConfigured() {
		return errors.New("llm.api_key is not configured: set GEMINI_API_KEY or MASP_LLM_API_KEY")
	}
	if c.Oracle.URL == "" {
		return errors.New("oracle.url is required")
	}
	if c.Game.URL == "" {
		return errors.New("game.url is required")
	}
	if c.Journal.RedisAddr != "" && c.Journal.MaxEntries <= 0 {
		return errors.New("journal.max_entries must be > 0 when the journal is enabled")
	}
	return nil
}

// Status is the configuration summary printed by `masp status`.
type Status struct {
	APIKeyConfigured bool   `json:"gemini_api_key_configured"`
	OracleURL        string `json:"oracle_url"`
	GameURL          string `json:"game_url"`
	Model            string `json:"model_name"`
	AgentID          string `json:"agent_id"`
}

func (c *Config) Status() Status {
	return Status{
		APIKeyConfigured: c.APIKeyConfigured(),
		OracleURL:        c.Oracle.URL,
		GameURL:          c.Game.URL,
		Model:            c.LLM.Model,
		AgentID:          c.Agent.ID,
	}
}
