// Command optionbot is the main entrypoint for the prediction-game bot.
// It:
//   - Loads configuration and initializes structured logging.
//   - Optionally connects to Postgres and runs idempotent migrations for the
//     game audit store.
//   - Starts the Telegram update loop and the game lifecycle engine.
//   - Exposes a minimal HTTP server with /healthz, /status, /games and /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"github.com/okralab/optionbot/config"
	"github.com/okralab/optionbot/db"
	"github.com/okralab/optionbot/game"
	"github.com/okralab/optionbot/oracle"
	"github.com/okralab/optionbot/server"
	"github.com/okralab/optionbot/telegram"
	"github.com/okralab/optionbot/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		// unknown level -> keep info but note once using temporary logger
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()), slog.String("format", map[bool]string{true: "json", false: "text"}[format == "json"]))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := cfg.ValidateTelegramReady(); err != nil {
		slog.Error("telegram not configured", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("optionbot", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Audit DB is optional: no DSN means no audit trail and no retention job.
	var audit game.Auditor
	var database *sql.DB
	if cfg.DBDsn != "" {
		database, err = db.Connect(cfg.DBDsn)
		if err != nil {
			slog.Error("failed to open db", slog.Any("err", err))
			os.Exit(1)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.Migrate(ctx, database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
		audit = &db.Audit{DB: database}
		go db.StartRetentionJob(ctx, database)
	} else {
		slog.Info("audit db disabled (DB_DSN not set)")
	}

	// Oracles
	httpClient := &http.Client{Timeout: cfg.OracleTimeout}
	router := &oracle.RouterClient{BaseURL: cfg.RouterBaseURL, APIKey: cfg.RouterAPIKey, HTTPClient: httpClient}
	allora := &oracle.AlloraClient{BaseURL: cfg.AlloraBaseURL, APIKey: cfg.AlloraAPIKey, ChainSlug: cfg.AlloraChainSlug, HTTPClient: httpClient}
	var images *oracle.ImageClient
	if cfg.ImagegenAPIKey != "" {
		images = &oracle.ImageClient{BaseURL: cfg.ImagegenBaseURL, APIKey: cfg.ImagegenAPIKey, Model: cfg.ImagegenModel, HTTPClient: httpClient}
	}

	// Telegram
	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		slog.Error("telegram authorization failed", slog.Any("err", err))
		os.Exit(1)
	}
	slog.Info("telegram authorized", slog.String("bot", api.Self.UserName))

	// Game engine
	store := game.NewStore()
	manager := game.NewManager(store, &oracle.Feed{Router: router, Allora: allora}, telegram.NewTransport(api), audit, game.Options{
		DefaultTimeframe:  cfg.DefaultTimeframe,
		SettleMaxAttempts: cfg.SettleMaxAttempts,
	})
	defer manager.Shutdown()

	bot := telegram.NewBot(api, manager, router, images, cfg.BotNames)
	go bot.Run(ctx)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			// Use an http.Server with timeouts to satisfy G114 and avoid DoS risks
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/games/metrics)
	go func() {
		if err := server.Start(ctx, database, store, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
