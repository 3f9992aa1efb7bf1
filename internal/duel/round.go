package duel

import (
	"context"
	"sync"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/matcher"
	"github.com/ichi0g0y/champion-bot/internal/types"
)

// Submission is one answer given in a round.
type Submission struct {
	Answer  string    `json:"answer"`
	At      time.Time `json:"at"`
	Correct bool      `json:"correct"`
}

// RoundResult is the outcome of one round. WinnerID is empty when nobody
// answered correctly or the earliest correct answers tie.
type RoundResult struct {
	Round       int                   `json:"round"`
	Question    types.Question        `json:"question"`
	Submissions map[string]Submission `json:"submissions"`
	WinnerID    string                `json:"winner_id,omitempty"`
}

// roundCollector gathers one answer per expected player until everyone
// answered or the round is finished.
type roundCollector struct {
	mu       sync.Mutex
	expected map[string]struct{}
	answers  []string
	subs     map[string]Submission
	finished bool
	done     chan struct{}
}

func newRoundCollector(players []string, answers []string) *roundCollector {
	expected := make(map[string]struct{}, len(players))
	for _, p := range players {
		expected[p] = struct{}{}
	}
	return &roundCollector{
		expected: expected,
		answers:  answers,
		subs:     make(map[string]Submission, len(players)),
		done:     make(chan struct{}),
	}
}

func (c *roundCollector) submit(userID, text string, at time.Time) (Submission, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.expected[userID]; !ok {
		return Submission{}, ErrNotParticipant
	}
	if c.finished {
		return Submission{}, ErrRoundFinished
	}
	if _, ok := c.subs[userID]; ok {
		return Submission{}, ErrAlreadySubmitted
	}

	sub := Submission{Answer: text, At: at, Correct: matcher.Matches(text, c.answers)}
	c.subs[userID] = sub
	if len(c.subs) == len(c.expected) {
		close(c.done)
	}
	return sub, nil
}

// wait blocks until all players answered, the timeout elapsed or ctx ended.
// The round is finished afterwards in every case.
func (c *roundCollector) wait(ctx context.Context, timeout time.Duration) (map[string]Submission, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var err error
	select {
	case <-c.done:
	case <-timer.C:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return c.finish(), err
}

func (c *roundCollector) finish() map[string]Submission {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finished = true

	subs := make(map[string]Submission, len(c.subs))
	for k, v := range c.subs {
		subs[k] = v
	}
	return subs
}

// roundWinner returns the player with the earliest correct submission. Equal
// earliest timestamps produce no winner.
func roundWinner(subs map[string]Submission) string {
	winner := ""
	var best time.Time
	tie := false
	for userID, sub := range subs {
		if !sub.Correct {
			continue
		}
		switch {
		case winner == "" || sub.At.Before(best):
			winner, best, tie = userID, sub.At, false
		case sub.At.Equal(best):
			tie = true
		}
	}
	if tie {
		return ""
	}
	return winner
}
