package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/dyike/CortexDash/consts"
	"github.com/dyike/CortexDash/models"
)

type Config struct {
	DataDir    string `json:"data_dir"`
	ResultsDir string `json:"results_dir"`

	ServerURL          string `json:"server_url"`
	ReconnectDelayMs   int    `json:"reconnect_delay_ms"`
	HandshakeTimeoutMs int    `json:"handshake_timeout_ms"`

	DisplayMode    string `json:"display_mode"`
	Language       string `json:"language"`
	HistoryEnabled bool   `json:"history_enabled"`

	LogLevel string `json:"log_level"`
	Debug    bool   `json:"debug"`

	// Defaults for new analysis runs
	LLMProvider   string   `json:"llm_provider"`
	DeepThinkLLM  string   `json:"deep_think_llm"`
	QuickThinkLLM string   `json:"quick_think_llm"`
	BackendURL    string   `json:"backend_url"`
	ResearchDepth string   `json:"research_depth"`
	ReportLength  string   `json:"report_length"`
	Analysts      []string `json:"analysts"`
}

func DefaultConfig() *Config {
	currentDir, _ := os.Getwd()
	cfg := DefaultConfigWithRoot(currentDir)

	LoadDotEnv()
	cfg.LoadEnv()
	return cfg
}

// LoadDotEnv loads environment variables from a .env file in the working
// directory, if there is one.
func LoadDotEnv() {
	_ = godotenv.Load()
}

// DefaultConfigWithRoot returns the defaults with data kept under root.
func DefaultConfigWithRoot(root string) *Config {
	return &Config{
		DataDir:    filepath.Join(root, "data"),
		ResultsDir: filepath.Join(root, "results"),

		ServerURL:          "ws://localhost:8000/ws",
		ReconnectDelayMs:   3000,
		HandshakeTimeoutMs: 10000,

		DisplayMode:    consts.ModeSummary,
		Language:       string(models.LangEnglish),
		HistoryEnabled: true,

		LogLevel: "info",

		LLMProvider:   "openai",
		DeepThinkLLM:  "o4-mini",
		QuickThinkLLM: "gpt-4o-mini",
		BackendURL:    "https://api.openai.com/v1",
		ResearchDepth: consts.DepthShallow,
		ReportLength:  consts.ReportLengthSummary,
		Analysts:      append([]string(nil), consts.AnalystOrder...),
	}
}

// LoadEnv overrides fields with environment variables when they are set.
func (c *Config) LoadEnv() {
	if val := os.Getenv("DATA_DIR"); val != "" {
		c.DataDir = val
	}
	if val := os.Getenv("RESULTS_DIR"); val != "" {
		c.ResultsDir = val
	}

	if val := os.Getenv("CORTEXDASH_SERVER_URL"); val != "" {
		c.ServerURL = val
	}
	if val := os.Getenv("CORTEXDASH_RECONNECT_DELAY_MS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.ReconnectDelayMs = v
		}
	}
	if val := os.Getenv("CORTEXDASH_HANDSHAKE_TIMEOUT_MS"); val != "" {
		if v, err := strconv.Atoi(val); err == nil {
			c.HandshakeTimeoutMs = v
		}
	}
	if val := os.Getenv("CORTEXDASH_DISPLAY_MODE"); val != "" {
		c.DisplayMode = val
	}
	if val := os.Getenv("CORTEXDASH_LANGUAGE"); val != "" {
		c.Language = val
	}
	if val := os.Getenv("CORTEXDASH_HISTORY"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.HistoryEnabled = enabled
		}
	}

	if val := os.Getenv("CORTEXDASH_LOG_LEVEL"); val != "" {
		c.LogLevel = val
	}
	if val := os.Getenv("CORTEXDASH_DEBUG"); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			c.Debug = enabled
		}
	}

	if val := os.Getenv("LLM_PROVIDER"); val != "" {
		c.LLMProvider = val
	}
	if val := os.Getenv("DEEP_THINK_LLM"); val != "" {
		c.DeepThinkLLM = val
	}
	if val := os.Getenv("QUICK_THINK_LLM"); val != "" {
		c.QuickThinkLLM = val
	}
	if val := os.Getenv("BACKEND_URL"); val != "" {
		c.BackendURL = val
	}
	if val := os.Getenv("RESEARCH_DEPTH"); val != "" {
		c.ResearchDepth = val
	}
	if val := os.Getenv("REPORT_LENGTH"); val != "" {
		c.ReportLength = val
	}
	if val := os.Getenv("ANALYSTS"); val != "" {
		var analysts []string
		for _, a := range strings.Split(val, ",") {
			if a = strings.TrimSpace(a); a != "" {
				analysts = append(analysts, a)
			}
		}
		c.Analysts = analysts
	}
}

func (c Config) Validate() error {
	u, err := url.Parse(strings.TrimSpace(c.ServerURL))
	if err != nil {
		return fmt.Errorf("invalid server_url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid server_url %q: scheme must be ws or wss", c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid server_url %q: missing host", c.ServerURL)
	}
	if c.ReconnectDelayMs <= 0 {
		return fmt.Errorf("reconnect_delay_ms must be positive, got %d", c.ReconnectDelayMs)
	}
	if c.HandshakeTimeoutMs < 0 {
		return fmt.Errorf("handshake_timeout_ms must not be negative, got %d", c.HandshakeTimeoutMs)
	}
	if _, ok := models.ParseDisplayMode(c.DisplayMode); !ok {
		return fmt.Errorf("invalid display_mode %q", c.DisplayMode)
	}
	if _, ok := models.ParseLanguage(c.Language); !ok {
		return fmt.Errorf("invalid language %q", c.Language)
	}
	return nil
}

func (c Config) ReconnectDelay() time.Duration {
	return time.Duration(c.ReconnectDelayMs) * time.Millisecond
}

func (c Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMs) * time.Millisecond
}

// HistoryPath is the SQLite database holding past runs.
func (c Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}

// Mode returns the configured display mode, falling back to summary.
func (c Config) Mode() models.DisplayMode {
	if m, ok := models.ParseDisplayMode(c.DisplayMode); ok {
		return m
	}
	return models.ModeSummary
}

// Lang returns the configured report language, falling back to English.
func (c Config) Lang() models.Language {
	if l, ok := models.ParseLanguage(c.Language); ok {
		return l
	}
	return models.LangEnglish
}

// DefaultRequest builds a start request for ticker from the configured defaults.
func (c Config) DefaultRequest(ticker, date string) models.StartRequest {
	return models.StartRequest{
		Ticker:         ticker,
		AnalysisDate:   date,
		Analysts:       append([]string(nil), c.Analysts...),
		ResearchDepth:  c.ResearchDepth,
		LLMProvider:    c.LLMProvider,
		BackendURL:     c.BackendURL,
		ShallowThinker: c.QuickThinkLLM,
		DeepThinker:    c.DeepThinkLLM,
		ReportLength:   c.ReportLength,
	}
}

func (c *Config) EnsureDirectories() error {
	dirs := []string{c.DataDir, c.ResultsDir}
	for _, dir := range dirs {
		path := strings.TrimSpace(dir)
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", path, err)
		}
	}
	return nil
}
