// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For required credentials (e.g., the Telegram bot), use ValidateTelegramReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Telegram
	TelegramBotToken string
	BotNames         []string

	// Oracles
	AlloraBaseURL    string
	AlloraAPIKey     string
	AlloraChainSlug  string
	RouterBaseURL    string
	RouterAPIKey     string
	ImagegenBaseURL  string
	ImagegenAPIKey   string
	ImagegenModel    string
	OracleTimeout    time.Duration

	// Game engine
	DefaultTimeframe  string
	SettleMaxAttempts int

	// Database
	DBDsn string

	// HTTP server
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It doesn't fail if
// the Telegram token is missing; use ValidateTelegramReady() when you require
// the bot. Missing optional variables disable features (e.g., image
// generation, audit database).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if v := os.Getenv("BOT_NAMES"); v != "" {
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				cfg.BotNames = append(cfg.BotNames, name)
			}
		}
	}

	// Oracles
	cfg.AlloraBaseURL = os.Getenv("ALLORA_API_URL")
	if cfg.AlloraBaseURL == "" {
		cfg.AlloraBaseURL = "https://api.upshot.xyz"
	}
	cfg.AlloraAPIKey = os.Getenv("ALLORA_API_KEY")
	cfg.AlloraChainSlug = os.Getenv("ALLORA_CHAIN_SLUG")
	if cfg.AlloraChainSlug == "" {
		cfg.AlloraChainSlug = "mainnet"
	}
	cfg.RouterBaseURL = os.Getenv("ROUTER_API_URL")
	if cfg.RouterBaseURL == "" {
		cfg.RouterBaseURL = "https://state.gmika.io"
	}
	cfg.RouterAPIKey = os.Getenv("ROUTER_API_KEY")
	cfg.ImagegenBaseURL = os.Getenv("IMAGEGEN_API_URL")
	if cfg.ImagegenBaseURL == "" {
		cfg.ImagegenBaseURL = "https://api.together.xyz"
	}
	cfg.ImagegenAPIKey = os.Getenv("IMAGEGEN_API_KEY")
	cfg.ImagegenModel = os.Getenv("IMAGEGEN_MODEL")

	cfg.OracleTimeout = 5 * time.Second
	if v := os.Getenv("ORACLE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid ORACLE_TIMEOUT %q", v)
		}
		cfg.OracleTimeout = d
	}

	// Game engine
	cfg.DefaultTimeframe = os.Getenv("GAME_DEFAULT_TIMEFRAME")
	if cfg.DefaultTimeframe == "" {
		cfg.DefaultTimeframe = "5m"
	}
	if _, err := time.ParseDuration(cfg.DefaultTimeframe); err != nil {
		return nil, fmt.Errorf("invalid GAME_DEFAULT_TIMEFRAME %q: %w", cfg.DefaultTimeframe, err)
	}
	cfg.SettleMaxAttempts = 1
	if v := os.Getenv("SETTLE_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid SETTLE_MAX_ATTEMPTS %q", v)
		}
		cfg.SettleMaxAttempts = n
	}

	// DB is optional: empty DSN disables the audit store and retention job.
	cfg.DBDsn = os.Getenv("DB_DSN")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// ValidateTelegramReady checks required fields when the chat bot is enabled.
func (c *Config) ValidateTelegramReady() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("missing telegram env: require TELEGRAM_BOT_TOKEN")
	}
	return nil
}
