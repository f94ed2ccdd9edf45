package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GAME_DEFAULT_TIMEFRAME", "")
	t.Setenv("ORACLE_TIMEOUT", "")
	t.Setenv("SETTLE_MAX_ATTEMPTS", "")
	t.Setenv("HTTP_ADDR", "")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DefaultTimeframe != "5m" {
		t.Errorf("DefaultTimeframe = %q, want 5m", cfg.DefaultTimeframe)
	}
	if cfg.OracleTimeout != 5*time.Second {
		t.Errorf("OracleTimeout = %v, want 5s", cfg.OracleTimeout)
	}
	if cfg.SettleMaxAttempts != 1 {
		t.Errorf("SettleMaxAttempts = %d, want 1", cfg.SettleMaxAttempts)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GAME_DEFAULT_TIMEFRAME", "15m")
	t.Setenv("ORACLE_TIMEOUT", "10s")
	t.Setenv("SETTLE_MAX_ATTEMPTS", "3")
	t.Setenv("BOT_NAMES", "optionbot, obot ,")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.DefaultTimeframe != "15m" {
		t.Errorf("DefaultTimeframe = %q, want 15m", cfg.DefaultTimeframe)
	}
	if cfg.OracleTimeout != 10*time.Second {
		t.Errorf("OracleTimeout = %v, want 10s", cfg.OracleTimeout)
	}
	if cfg.SettleMaxAttempts != 3 {
		t.Errorf("SettleMaxAttempts = %d, want 3", cfg.SettleMaxAttempts)
	}
	if len(cfg.BotNames) != 2 || cfg.BotNames[0] != "optionbot" || cfg.BotNames[1] != "obot" {
		t.Errorf("BotNames = %v, want [optionbot obot]", cfg.BotNames)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("GAME_DEFAULT_TIMEFRAME", "soon")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for invalid DEFAULT_TIMEFRAME")
	}
	t.Setenv("GAME_DEFAULT_TIMEFRAME", "5m")
	t.Setenv("SETTLE_MAX_ATTEMPTS", "0")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for SETTLE_MAX_ATTEMPTS below 1")
	}
	t.Setenv("SETTLE_MAX_ATTEMPTS", "1")
	t.Setenv("ORACLE_TIMEOUT", "-2s")
	if _, err := Load(); err == nil {
		t.Errorf("expected error for negative ORACLE_TIMEOUT")
	}
}

func TestValidateTelegramReady(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	cfg, _ := Load()
	if err := cfg.ValidateTelegramReady(); err != nil {
		t.Errorf("expected valid telegram config, got %v", err)
	}
	if err := os.Unsetenv("TELEGRAM_BOT_TOKEN"); err != nil {
		t.Fatalf("failed to unset TELEGRAM_BOT_TOKEN: %v", err)
	}
	cfg, _ = Load()
	if err := cfg.ValidateTelegramReady(); err == nil {
		t.Errorf("expected error when TELEGRAM_BOT_TOKEN missing")
	}
}
