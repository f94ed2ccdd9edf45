package game

// Outcome tags a Result as success or failure.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Payload is the structured part of a Result. WinningSide is set only for
// settlement results.
type Payload struct {
	GameID      string `json:"game_id,omitempty"`
	WinningSide Side   `json:"winning_side,omitempty"`
}

// Result is what the engine hands back to its caller: an outcome tag, a
// human-readable summary, and a structured payload.
type Result struct {
	Outcome Outcome `json:"outcome"`
	Summary string  `json:"summary"`
	Payload Payload `json:"payload"`
}

func success(summary string, p Payload) Result {
	return Result{Outcome: OutcomeSuccess, Summary: summary, Payload: p}
}

func failure(summary string) Result {
	return Result{Outcome: OutcomeFailure, Summary: summary}
}
