// Package game implements the prediction-game engine: an in-memory store of
// game records, a one-shot settlement scheduler, and the lifecycle manager
// that starts games, arms their settlement timers, and settles them against
// the price oracles. The store is the single source of truth for lifecycle
// state; settlement is a one-way, settle-at-most-once transition.
package game

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is the lifecycle state of a game.
type State string

const (
	// StatePending means the game record exists but its poll has not been
	// confirmed by the chat transport yet.
	StatePending State = "pending"
	// StateActive means the poll is up and the settlement timer is armed.
	StateActive State = "active"
	// StateSettled is terminal.
	StateSettled State = "settled"
)

// Side is the winning side of a settled game.
type Side string

const (
	SideHigher Side = "Higher"
	SideLower  Side = "Lower"
)

// Game is one round of the prediction contest. StartPrice and PredictedPrice
// are snapshots taken at creation and never change; EndPrice and WinningSide
// are populated only on the transition to StateSettled.
type Game struct {
	ID             string          `json:"id"`
	ChatID         int64           `json:"chat_id"`
	Asset          string          `json:"asset"`
	Timeframe      string          `json:"timeframe"`
	StartPrice     decimal.Decimal `json:"start_price"`
	PredictedPrice decimal.Decimal `json:"predicted_price"`
	StartTime      time.Time       `json:"start_time"`
	State          State           `json:"state"`
	PollMessageID  int             `json:"poll_message_id,omitempty"`
	EndPrice       decimal.Decimal `json:"end_price,omitempty"`
	WinningSide    Side            `json:"winning_side,omitempty"`
	SettledAt      time.Time       `json:"settled_at,omitempty"`
}

// Horizon returns the settlement delay encoded in the game's timeframe.
// The delay is always derived from the same label the prediction oracle was
// queried with, so prediction horizon and settlement delay cannot diverge.
func (g *Game) Horizon() (time.Duration, error) {
	return time.ParseDuration(g.Timeframe)
}
