package game

import "errors"

// Sentinel errors for the failure kinds the engine distinguishes. Callers
// match with errors.Is; wrapped messages carry the asset/game context.
var (
	// ErrOracleUnavailable covers network or HTTP failures from a price
	// oracle adapter. Retryable at settlement time if a retry policy is
	// configured.
	ErrOracleUnavailable = errors.New("oracle unavailable")
	// ErrPriceParse means an oracle answered but the payload held no usable
	// number. Not retryable: the same payload would fail again.
	ErrPriceParse = errors.New("unparsable price")
	// ErrGameNotFound is returned when a settlement is requested for an
	// unknown id or an asset with no active game.
	ErrGameNotFound = errors.New("game not found")
	// ErrAlreadySettled marks the benign race where two settlement attempts
	// reach the store and one loses. Swallowed at the settlement boundary.
	ErrAlreadySettled = errors.New("game already settled")
	// ErrTransport covers chat send or poll creation failures.
	ErrTransport = errors.New("chat transport error")
)

// IsRetryable reports whether a settlement-time failure is worth retrying
// under the configured backoff policy. Only oracle availability problems
// qualify; parse failures are permanent for a given payload.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrOracleUnavailable)
}
