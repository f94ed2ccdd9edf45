package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/shopspring/decimal"

	"github.com/okralab/optionbot/telemetry"
)

// PriceOracle supplies current and predicted prices for an asset. Both calls
// return the oracle's raw text payload; parsing is the engine's job so that
// an unparsable answer surfaces as ErrPriceParse, not a silent default.
type PriceOracle interface {
	Current(ctx context.Context, asset string) (string, error)
	Predict(ctx context.Context, asset, timeframe string) (string, error)
}

// Transport delivers game messages and polls to a chat.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error
	CreatePoll(ctx context.Context, chatID int64, question string, options []string) (int, error)
}

// Auditor records lifecycle events for offline inspection. Implementations
// are best-effort: they log their own failures and never block settlement.
type Auditor interface {
	GameStarted(ctx context.Context, g Game)
	GameSettled(ctx context.Context, g Game)
}

// Options tune the lifecycle manager.
type Options struct {
	// DefaultTimeframe is used when StartGame is called without one ("5m").
	DefaultTimeframe string
	// SettleMaxAttempts bounds price-oracle attempts during settlement.
	// 1 means no retry: an oracle failure ends the round with an error
	// notice and the game left Active.
	SettleMaxAttempts int
}

// Manager orchestrates the game lifecycle: start, poll creation, timer
// arming, and idempotent settlement. One Manager serves all chats.
type Manager struct {
	store     Store
	sched     *Scheduler
	prices    PriceOracle
	transport Transport
	audit     Auditor
	opts      Options
}

// NewManager wires the engine together. audit may be nil.
func NewManager(store Store, prices PriceOracle, transport Transport, audit Auditor, opts Options) *Manager {
	if opts.DefaultTimeframe == "" {
		opts.DefaultTimeframe = "5m"
	}
	if opts.SettleMaxAttempts < 1 {
		opts.SettleMaxAttempts = 1
	}
	m := &Manager{store: store, prices: prices, transport: transport, audit: audit, opts: opts}
	m.sched = NewScheduler(m.settleScheduled)
	return m
}

// Store exposes the underlying game store for read-only consumers (HTTP API).
func (m *Manager) Store() Store { return m.store }

// PendingTimers reports how many settlement timers are armed.
func (m *Manager) PendingTimers() int { return m.sched.Pending() }

// Shutdown cancels all armed settlement timers.
func (m *Manager) Shutdown() { m.sched.Stop() }

// CanonicalAsset uppercases and trims a ticker symbol.
func CanonicalAsset(asset string) string {
	return strings.ToUpper(strings.TrimSpace(asset))
}

// StartGame starts a prediction round for an asset in a chat: snapshots the
// current price, fetches the prediction for the timeframe, creates the poll,
// activates the game and arms its settlement timer. Any failure aborts the
// start with no game record and no armed timer; an error notice goes to the
// chat and the error to the caller.
func (m *Manager) StartGame(ctx context.Context, chatID int64, asset, timeframe string) (Result, error) {
	asset = CanonicalAsset(asset)
	if asset == "" {
		return failure("no asset given"), fmt.Errorf("empty asset")
	}
	if timeframe == "" {
		timeframe = m.opts.DefaultTimeframe
	}
	horizon, err := time.ParseDuration(timeframe)
	if err != nil || horizon <= 0 {
		return failure("invalid timeframe " + timeframe), fmt.Errorf("invalid timeframe %q: %w", timeframe, err)
	}

	ctx, span := telemetry.StartSpan(ctx, "game", "StartGame", telemetry.AssetAttr(asset))
	defer span.End()
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "game"), slog.String("asset", asset), slog.Int64("chat_id", chatID))

	startPrice, err := m.fetchCurrentPrice(ctx, asset)
	if err != nil {
		logger.Error("start aborted: current price", slog.Any("err", err))
		telemetry.RecordError(span, err)
		m.notifyError(ctx, chatID, "Could not fetch the current price of "+asset+".")
		return failure("current price unavailable for " + asset), err
	}

	predText, err := m.callOracle("allora", func() (string, error) { return m.prices.Predict(ctx, asset, timeframe) })
	if err != nil {
		logger.Error("start aborted: prediction", slog.Any("err", err))
		telemetry.RecordError(span, err)
		m.notifyError(ctx, chatID, "Could not fetch a price prediction for "+asset+".")
		return failure("prediction unavailable for " + asset), err
	}
	predicted, err := ParsePrice(predText)
	if err != nil {
		logger.Error("start aborted: prediction parse", slog.Any("err", err))
		telemetry.RecordError(span, err)
		m.notifyError(ctx, chatID, "The prediction oracle returned an unreadable price for "+asset+".")
		return failure("prediction unreadable for " + asset), err
	}

	g := Game{
		ChatID:         chatID,
		Asset:          asset,
		Timeframe:      timeframe,
		StartPrice:     startPrice,
		PredictedPrice: predicted,
		StartTime:      time.Now().UTC(),
		State:          StatePending,
	}
	id := m.store.Insert(g)
	span.SetAttributes(telemetry.GameIDAttr(id))
	logger = logger.With(slog.String("game_id", id))

	pollMsgID, err := m.transport.CreatePoll(ctx, chatID, pollQuestion(g), []string{"\u2197\ufe0f Higher", "\u2198\ufe0f Lower"})
	if err != nil {
		m.store.Delete(id)
		werr := fmt.Errorf("%w: create poll: %v", ErrTransport, err)
		logger.Error("start aborted: poll creation", slog.Any("err", werr))
		telemetry.RecordError(span, werr)
		m.notifyError(ctx, chatID, "Could not create the game poll.")
		return failure("poll creation failed"), werr
	}
	telemetry.PollsCreated.Inc()

	if err := m.store.Activate(id, pollMsgID); err != nil {
		m.store.Delete(id)
		logger.Error("start aborted: activate", slog.Any("err", err))
		return failure("game activation failed"), err
	}
	m.sched.Schedule(id, horizon)

	if err := m.transport.SendText(ctx, chatID, startMessage(g)); err != nil {
		// Abort entirely: tear down the timer and the record so no
		// unannounced settlement fires later.
		m.sched.Cancel(id)
		m.store.Delete(id)
		werr := fmt.Errorf("%w: send start message: %v", ErrTransport, err)
		logger.Error("start aborted: announcement", slog.Any("err", werr))
		telemetry.RecordError(span, werr)
		return failure("start announcement failed"), werr
	}

	telemetry.GamesStarted.Inc()
	telemetry.SetActiveGames(m.store.ActiveCount())
	if m.audit != nil {
		if rec, err := m.store.Get(id); err == nil {
			m.audit.GameStarted(ctx, rec)
		}
	}
	telemetry.SetSpanSuccess(span)
	logger.Info("game started",
		slog.String("timeframe", timeframe),
		slog.String("start_price", startPrice.String()),
		slog.String("predicted_price", predicted.String()))
	return success(fmt.Sprintf("game %s started for %s over %s", id, asset, timeframe), Payload{GameID: id}), nil
}

// CheckResults settles a game, invoked either by the settlement timer or by
// an explicit trigger. idOrAsset is resolved first as a game id, then as an
// asset with an active game. A game already settled yields a "nothing to
// settle" success with no message sent; an unknown id or asset yields
// ErrGameNotFound.
func (m *Manager) CheckResults(ctx context.Context, chatID int64, idOrAsset string) (Result, error) {
	g, err := m.store.Get(idOrAsset)
	if err != nil {
		g, err = m.store.FindActiveByAsset(CanonicalAsset(idOrAsset))
	}
	if err != nil {
		telemetry.LoggerWithCorr(ctx).Warn("nothing to settle",
			slog.String("component", "game"), slog.String("ref", idOrAsset), slog.Int64("chat_id", chatID))
		return failure("no game to settle for " + idOrAsset), err
	}
	if g.State == StateSettled {
		// Benign: a manual check raced the timer (or repeated a check).
		return success("game "+g.ID+" already settled", Payload{GameID: g.ID, WinningSide: g.WinningSide}), nil
	}

	ctx, span := telemetry.StartSpan(ctx, "game", "CheckResults", telemetry.GameIDAttr(g.ID), telemetry.AssetAttr(g.Asset))
	defer span.End()
	logger := telemetry.LoggerWithCorr(ctx).With(
		slog.String("component", "game"), slog.String("game_id", g.ID),
		slog.String("asset", g.Asset), slog.Int64("chat_id", g.ChatID))
	settleStart := time.Now()

	// Defensive: the caller may be the timer itself, in which case the
	// handle is already gone and this is a no-op.
	m.sched.Cancel(g.ID)

	endPrice, err := m.fetchEndPrice(ctx, g.Asset)
	if err != nil {
		telemetry.SettlementsFailed.Inc()
		telemetry.RecordError(span, err)
		logger.Error("settlement failed: end price", slog.Any("err", err))
		m.notifyError(ctx, g.ChatID, "Could not check results for "+g.Asset+": current price unavailable.")
		return failure("settlement failed for " + g.Asset), err
	}

	side := Resolve(endPrice, g.PredictedPrice)
	settled, err := m.store.TransitionToSettled(g.ID, endPrice, side)
	if errors.Is(err, ErrAlreadySettled) {
		// Lost the race; the winner already announced. Success, no message.
		logger.Info("settlement raced; already settled")
		return success("game "+g.ID+" already settled", Payload{GameID: g.ID}), nil
	}
	if err != nil {
		telemetry.SettlementsFailed.Inc()
		telemetry.RecordError(span, err)
		logger.Error("settlement failed: transition", slog.Any("err", err))
		return failure("settlement failed for " + g.Asset), err
	}

	telemetry.GamesSettled.Inc()
	telemetry.SetActiveGames(m.store.ActiveCount())
	telemetry.SettleDuration.Observe(time.Since(settleStart).Seconds())
	if m.audit != nil {
		m.audit.GameSettled(ctx, settled)
	}
	logger.Info("game settled",
		slog.String("end_price", endPrice.String()),
		slog.String("winning_side", string(side)))

	if err := m.transport.SendText(ctx, settled.ChatID, resultMessage(settled)); err != nil {
		werr := fmt.Errorf("%w: send result message: %v", ErrTransport, err)
		telemetry.RecordError(span, werr)
		logger.Error("result announcement failed", slog.Any("err", werr))
		return failure("result announcement failed for game " + g.ID), werr
	}
	telemetry.SetSpanSuccess(span)
	return success(fmt.Sprintf("game %s settled: %s", settled.ID, side), Payload{GameID: settled.ID, WinningSide: side}), nil
}

// settleScheduled is the scheduler's fire callback. It re-fetches the game
// from the store; the timer carries nothing but the id.
func (m *Manager) settleScheduled(id string) {
	ctx := context.Background()
	g, err := m.store.Get(id)
	if err != nil {
		slog.Warn("timer fired for unknown game", slog.String("game_id", id), slog.Any("err", err))
		return
	}
	if _, err := m.CheckResults(ctx, g.ChatID, id); err != nil {
		slog.Error("scheduled settlement failed", slog.String("game_id", id), slog.Any("err", err))
	}
}

// fetchCurrentPrice queries the spot oracle once and parses the payload.
func (m *Manager) fetchCurrentPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	text, err := m.callOracle("router", func() (string, error) { return m.prices.Current(ctx, asset) })
	if err != nil {
		return decimal.Decimal{}, err
	}
	return ParsePrice(text)
}

// fetchEndPrice queries the spot oracle under the settlement retry policy:
// up to SettleMaxAttempts tries with exponential backoff for retryable
// failures. Parse failures are permanent and stop the retry loop.
func (m *Manager) fetchEndPrice(ctx context.Context, asset string) (decimal.Decimal, error) {
	op := func() (decimal.Decimal, error) {
		p, err := m.fetchCurrentPrice(ctx, asset)
		if err != nil && !IsRetryable(err) {
			return decimal.Decimal{}, backoff.Permanent(err)
		}
		return p, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(m.opts.SettleMaxAttempts)))
}

// callOracle wraps an oracle call with duration and error metrics, mapping
// any failure to ErrOracleUnavailable.
func (m *Manager) callOracle(name string, call func() (string, error)) (string, error) {
	var text string
	var err error
	telemetry.TimeFunc(telemetry.OracleRequestDuration, func() { text, err = call() })
	if err != nil {
		telemetry.IncOracleError(name)
		return "", fmt.Errorf("%w: %s: %v", ErrOracleUnavailable, name, err)
	}
	return text, nil
}

// notifyError sends a best-effort error notice to the chat.
func (m *Manager) notifyError(ctx context.Context, chatID int64, text string) {
	if err := m.transport.SendText(ctx, chatID, "\u26a0\ufe0f "+text); err != nil {
		slog.Warn("error notice undeliverable", slog.Int64("chat_id", chatID), slog.Any("err", err))
	}
}

func pollQuestion(g Game) string {
	return fmt.Sprintf("Through %s the price of %s will be higher or lower than %s? Now: %s",
		g.Timeframe, g.Asset, g.PredictedPrice.String(), g.StartPrice.String())
}

func startMessage(g Game) string {
	return fmt.Sprintf("\U0001f3ae Option game for %s started!\n"+
		"\u23f1\ufe0f Current price: %s\n"+
		"\U0001f52e Prediction through %s: %s\n"+
		"\U0001f3af Choose your side in the poll above!\n"+
		"\U0001f552 Results will be announced in %s.",
		g.Asset, g.StartPrice.String(), g.Timeframe, g.PredictedPrice.String(), g.Timeframe)
}

func resultMessage(g Game) string {
	arrow := "\u2197\ufe0f"
	if g.WinningSide == SideLower {
		arrow = "\u2198\ufe0f"
	}
	return fmt.Sprintf("\U0001f3ae Option game results for %s:\n\n"+
		"\U0001f52e Prediction: %s\n"+
		"\U0001f4b0 Starting price: %s\n"+
		"\U0001f4b2 Final price: %s\n"+
		"\U0001f3c6 Winning side: %s %s",
		g.Asset, g.PredictedPrice.String(), g.StartPrice.String(), g.EndPrice.String(), arrow, g.WinningSide)
}
