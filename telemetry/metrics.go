// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	GamesStarted       prometheus.Counter
	GamesSettled       prometheus.Counter
	SettlementsFailed  prometheus.Counter
	PollsCreated       prometheus.Counter
	OracleErrors       *prometheus.CounterVec
	MessagesDispatched prometheus.Counter

	// Histograms (seconds)
	OracleRequestDuration prometheus.Observer
	SettleDuration        prometheus.Observer

	// Gauges
	ActiveGamesGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		GamesStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "optionbot_games_started_total", Help: "Number of prediction games started"})
		GamesSettled = promauto.NewCounter(prometheus.CounterOpts{Name: "optionbot_games_settled_total", Help: "Number of prediction games settled"})
		SettlementsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "optionbot_settlements_failed_total", Help: "Number of settlement attempts that failed"})
		PollsCreated = promauto.NewCounter(prometheus.CounterOpts{Name: "optionbot_polls_created_total", Help: "Number of chat polls created"})
		OracleErrors = promauto.NewCounterVec(prometheus.CounterOpts{Name: "optionbot_oracle_errors_total", Help: "Oracle call failures by oracle name"}, []string{"oracle"})
		MessagesDispatched = promauto.NewCounter(prometheus.CounterOpts{Name: "optionbot_messages_dispatched_total", Help: "Incoming chat messages routed to a handler"})
		OracleRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "optionbot_oracle_request_duration_seconds", Help: "Oracle request duration seconds", Buckets: prometheus.DefBuckets})
		SettleDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "optionbot_settle_duration_seconds", Help: "Settlement path duration seconds", Buckets: prometheus.DefBuckets})
		ActiveGamesGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "optionbot_active_games", Help: "Current number of non-settled games"})
	})
}

// SetActiveGames records the current non-settled game count.
func SetActiveGames(n int) {
	if ActiveGamesGauge != nil {
		ActiveGamesGauge.Set(float64(n))
	}
}

// IncOracleError counts a failed call against the named oracle.
func IncOracleError(oracle string) {
	if OracleErrors != nil {
		OracleErrors.WithLabelValues(oracle).Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
