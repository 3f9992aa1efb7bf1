package types

import "time"

// DuelOutcome is what a finished duel records for one participant.
type DuelOutcome string

const (
	DuelWin  DuelOutcome = "win"
	DuelLoss DuelOutcome = "loss"
	DuelTie  DuelOutcome = "tie"
)

// DuelStats aggregates recorded duel outcomes of one user.
type DuelStats struct {
	UserID string `json:"user_id"`
	Wins   int    `json:"wins"`
	Losses int    `json:"losses"`
	Ties   int    `json:"ties"`
}

// Total returns the number of recorded duels.
func (s DuelStats) Total() int {
	return s.Wins + s.Losses + s.Ties
}

// LedgerEntry is one append-only champion point change.
type LedgerEntry struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
