package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/CortexDash/models"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3*time.Second, cfg.ReconnectDelay())
	assert.Equal(t, models.ModeSummary, cfg.Mode())
	assert.Equal(t, models.LangEnglish, cfg.Lang())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CORTEXDASH_SERVER_URL", "wss://pipeline.example.com/ws")
	t.Setenv("CORTEXDASH_RECONNECT_DELAY_MS", "500")
	t.Setenv("CORTEXDASH_LANGUAGE", "th")
	t.Setenv("ANALYSTS", "market, news")
	t.Setenv("CORTEXDASH_DEBUG", "true")

	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.LoadEnv()

	assert.Equal(t, "wss://pipeline.example.com/ws", cfg.ServerURL)
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectDelay())
	assert.Equal(t, models.LangThai, cfg.Lang())
	assert.Equal(t, []string{"market", "news"}, cfg.Analysts)
	assert.True(t, cfg.Debug)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"scheme":   func(c *Config) { c.ServerURL = "http://localhost:8000/ws" },
		"host":     func(c *Config) { c.ServerURL = "ws:///ws" },
		"delay":    func(c *Config) { c.ReconnectDelayMs = 0 },
		"mode":     func(c *Config) { c.DisplayMode = "brief" },
		"language": func(c *Config) { c.Language = "fr" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfigWithRoot(t.TempDir())
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestDefaultRequestNormalizes(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	req, err := cfg.DefaultRequest("aapl", "2024-05-10").Normalize(time.Now())
	require.NoError(t, err)
	assert.Equal(t, "AAPL", req.Ticker)
	assert.Equal(t, "summary report", req.ReportLength)
	assert.Equal(t, cfg.QuickThinkLLM, req.ShallowThinker)
	assert.Len(t, req.Analysts, 4)
}
