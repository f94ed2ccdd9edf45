package db

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/okralab/optionbot/game"
)

// Audit mirrors game lifecycle events into the games table for offline
// inspection. Writes are best-effort: a failed insert or update is logged and
// never blocks the game engine.
type Audit struct{ DB *sql.DB }

// GameStarted records a newly started game.
func (a *Audit) GameStarted(ctx context.Context, g game.Game) {
	_, err := a.DB.ExecContext(ctx, `
		INSERT INTO games (id, chat_id, asset, timeframe, start_price, predicted_price, state, poll_message_id, started_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
		ON CONFLICT (id) DO NOTHING`,
		g.ID, g.ChatID, g.Asset, g.Timeframe, g.StartPrice.String(), g.PredictedPrice.String(),
		string(g.State), g.PollMessageID, g.StartTime)
	if err != nil {
		slog.Error("audit: failed to record game start",
			slog.String("component", "db_audit"), slog.String("game_id", g.ID), slog.Any("err", err))
	}
}

// GameSettled records the outcome of a settled game.
func (a *Audit) GameSettled(ctx context.Context, g game.Game) {
	_, err := a.DB.ExecContext(ctx, `
		UPDATE games SET state=$2, end_price=$3, winning_side=$4, settled_at=$5, updated_at=NOW()
		WHERE id=$1`,
		g.ID, string(g.State), g.EndPrice.String(), string(g.WinningSide), g.SettledAt)
	if err != nil {
		slog.Error("audit: failed to record game settlement",
			slog.String("component", "db_audit"), slog.String("game_id", g.ID), slog.Any("err", err))
	}
}
