package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("MASP_LLM_API_KEY", "")
}

func TestLoadConfigDefaults(t *testing.T) {
	clearKeyEnv(t)

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "ai_agent_masp", cfg.Agent.ID)
	assert.Equal(t, "http://127.0.0.1:8000", cfg.Oracle.URL)
	assert.Equal(t, 30*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Game.ConnectTimeout)
	assert.Equal(t, 10*time.Second, cfg.Game.AckTimeout)
	assert.Equal(t, "gemini-pro", cfg.LLM.Model)
	assert.Equal(t, time.Second, cfg.Validation.Timeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "masp:deployments", cfg.Journal.Key)
	assert.Equal(t, int64(1000), cfg.Journal.MaxEntries)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestLoadConfigFile(t *testing.T) {
	clearKeyEnv(t)

	path := filepath.Join(t.TempDir(), "masp.yaml")
	body := `
agent:
  id: tester
oracle:
  url: http://oracle:9000
  timeout: 5s
game:
  url: ws://game:3000/ws
  ack_timeout: 2s
llm:
  api_key: file-key
validation:
  probes:
    never_noop: "!IsNoop()"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "tester", cfg.Agent.ID)
	assert.Equal(t, "http://oracle:9000", cfg.Oracle.URL)
	assert.Equal(t, 5*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, "ws://game:3000/ws", cfg.Game.URL)
	assert.Equal(t, 2*time.Second, cfg.Game.AckTimeout)
	assert.Equal(t, 10*time.Second, cfg.Game.ConnectTimeout, "unset keys keep defaults")
	assert.Equal(t, "file-key", cfg.LLM.APIKey)
	assert.Equal(t, map[string]string{"never_noop": "!IsNoop()"}, cfg.Validation.Probes)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigEnv(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("MASP_ORACLE_URL", "http://env-oracle:8000")
	t.Setenv("MASP_GAME_ACK_TIMEOUT", "3s")

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.LLM.APIKey)
	assert.Equal(t, "http://env-oracle:8000", cfg.Oracle.URL)
	assert.Equal(t, 3*time.Second, cfg.Game.AckTimeout)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Oracle: OracleConfig{URL: "http://127.0.0.1:8000"},
			Game:   GameConfig{URL: "ws://localhost:3000/ws"},
			LLM:    LLMConfig{APIKey: "real-key"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"missing key", func(c *Config) { c.LLM.APIKey = "" }, true},
		{"placeholder key", func(c *Config) { c.LLM.APIKey = PlaceholderAPIKey }, true},
		{"missing oracle", func(c *Config) { c.Oracle.URL = "" }, true},
		{"missing game", func(c *Config) { c.Game.URL = "" }, true},
		{"journal without cap", func(c *Config) { c.Journal.RedisAddr = "localhost:6379" }, true},
		{"journal with cap", func(c *Config) {
			c.Journal.RedisAddr = "localhost:6379"
			c.Journal.MaxEntries = 10
		}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	cfg := &Config{
		Agent:  AgentConfig{ID: "a1"},
		Oracle: OracleConfig{URL: "http://o"},
		Game:   GameConfig{URL: "ws://g"},
		LLM:    LLMConfig{APIKey: PlaceholderAPIKey, Model: "gemini-pro"},
	}
	want := Status{OracleURL: "http://o", GameURL: "ws://g", Model: "gemini-pro", AgentID: "a1"}
	assert.Equal(t, want, cfg.Status())

	cfg.LLM.APIKey = "k"
	assert.True(t, cfg.Status().APIKeyConfigured)
}
