package duel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/champion"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

var errNoQuestion = errors.New("no question available")

// Session is a live duel between two escrowed players.
type Session struct {
	ID           string
	ChannelID    string
	ChallengerID string
	OpponentID   string
	Config       Config
	Pot          int
	Stake        int

	mu          sync.Mutex
	threadID    string
	status      Status
	scores      map[string]int
	lastCorrect map[string]time.Time
	winnerID    string
	draw        bool
	roundNo     int
	round       *roundCollector
	paid        map[string]bool
	released    bool
}

// Summary is a read-only snapshot of a Session.
type Summary struct {
	ID           string         `json:"id"`
	ChannelID    string         `json:"channel_id"`
	ThreadID     string         `json:"thread_id,omitempty"`
	ChallengerID string         `json:"challenger_id"`
	OpponentID   string         `json:"opponent_id"`
	Config       Config         `json:"config"`
	Pot          int            `json:"pot"`
	Scores       map[string]int `json:"scores"`
	Status       Status         `json:"status"`
	Round        int            `json:"round"`
	WinnerID     string         `json:"winner_id,omitempty"`
	Draw         bool           `json:"draw,omitempty"`
}

func newSession(inv Invite, opponentID string) *Session {
	return &Session{
		ID:           inv.ID,
		ChannelID:    inv.ChannelID,
		ChallengerID: inv.ChallengerID,
		OpponentID:   opponentID,
		Config:       inv.Config,
		Pot:          2 * inv.Config.Points,
		Stake:        inv.Config.Points,
		status:       StatusEscrowed,
		scores:       map[string]int{inv.ChallengerID: 0, opponentID: 0},
		lastCorrect:  make(map[string]time.Time),
		paid:         make(map[string]bool),
	}
}

func (s *Session) players() []string {
	return []string{s.ChallengerID, s.OpponentID}
}

func (s *Session) isPlayer(userID string) bool {
	return userID == s.ChallengerID || userID == s.OpponentID
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	scores := make(map[string]int, len(s.scores))
	for k, v := range s.scores {
		scores[k] = v
	}
	return Summary{
		ID:           s.ID,
		ChannelID:    s.ChannelID,
		ThreadID:     s.threadID,
		ChallengerID: s.ChallengerID,
		OpponentID:   s.OpponentID,
		Config:       s.Config,
		Pot:          s.Pot,
		Scores:       scores,
		Status:       s.status,
		Round:        s.roundNo,
		WinnerID:     s.winnerID,
		Draw:         s.draw,
	}
}

func (s *Session) setThread(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threadID = id
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Session) startRound(n int, c *roundCollector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roundNo = n
	s.round = c
}

func (s *Session) endRound() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.round = nil
}

func (s *Session) currentRound() *roundCollector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

func (s *Session) applyRound(result RoundResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result.WinnerID != "" {
		s.scores[result.WinnerID]++
	}
	for userID, sub := range result.Submissions {
		if sub.Correct && sub.At.After(s.lastCorrect[userID]) {
			s.lastCorrect[userID] = sub.At
		}
	}
}

func (s *Session) leaderWins() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	best := 0
	for _, wins := range s.scores {
		best = max(best, wins)
	}
	return best
}

// decide compares round wins. Dynamic duels break a tie by the later latest
// correct answer; box duels end in a draw.
func (s *Session) decide() (winner, loser string, draw bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, b := s.ChallengerID, s.OpponentID
	switch sa, sb := s.scores[a], s.scores[b]; {
	case sa > sb:
		return a, b, false
	case sb > sa:
		return b, a, false
	}
	if s.Config.Mode == ModeDynamic {
		la, lb := s.lastCorrect[a], s.lastCorrect[b]
		switch {
		case la.After(lb):
			return a, b, false
		case lb.After(la):
			return b, a, false
		}
	}
	return "", "", true
}

func (s *Session) markPaid(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paid[userID] = true
}

// claimRefund reports whether userID still has a stake to get back and marks
// it as returned.
func (s *Session) claimRefund(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paid[userID] {
		return false
	}
	s.paid[userID] = true
	return true
}

func (s *Session) finish(winnerID string, draw bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.winnerID = winnerID
	s.draw = draw
	s.status = StatusSettled
}

func (s *Session) markReleased() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return false
	}
	s.released = true
	return true
}

func (e *Engine) run(s *Session) {
	defer e.wg.Done()

	ctx, cancel := context.WithCancel(e.ctx)
	defer cancel()

	settled := false
	reason := ""
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic in duel", zap.String("duel_id", s.ID), zap.Any("panic", r))
			settled, reason = false, "internal error"
		}
		e.release(s, reason, settled)
	}()

	s.setStatus(StatusInProgress)
	if err := e.playRounds(ctx, s); err != nil {
		reason = abortReason(err)
		if !errors.Is(err, context.Canceled) {
			logger.Warn("Duel aborted", zap.String("duel_id", s.ID), zap.Error(err))
		}
		return
	}
	if err := e.settle(ctx, s); err != nil {
		logger.Error("Failed to settle duel", zap.String("duel_id", s.ID), zap.Error(err))
		reason = "settlement failed"
		return
	}
	settled = true
}

func abortReason(err error) string {
	switch {
	case errors.Is(err, errNoQuestion):
		return "no question available"
	case errors.Is(err, context.Canceled):
		return "bot is shutting down"
	default:
		return "chat platform error"
	}
}

func (e *Engine) playRounds(ctx context.Context, s *Session) error {
	if e.questions == nil {
		return errNoQuestion
	}
	area := s.Config.Area

	if s.Config.Mode == ModeDynamic {
		questions := e.questions.AllTypes(area)
		if len(questions) == 0 {
			return errNoQuestion
		}
		for i, q := range questions {
			e.questions.MarkAsked(area, q.ID)
			if err := e.playRound(ctx, s, i+1, q); err != nil {
				return err
			}
		}
		return nil
	}

	for round := 1; round <= s.Config.BestOf; round++ {
		q := e.questions.Generate(area)
		if q == nil {
			return errNoQuestion
		}
		if err := e.playRound(ctx, s, round, *q); err != nil {
			return err
		}
		if s.leaderWins() > s.Config.BestOf/2 {
			break
		}
	}
	return nil
}

func (e *Engine) playRound(ctx context.Context, s *Session, round int, q types.Question) error {
	collector := newRoundCollector(s.players(), q.Answers)
	s.startRound(round, collector)
	defer s.endRound()

	if e.presenter != nil {
		if err := e.presenter.AskRound(ctx, s.Summary(), round, q); err != nil {
			collector.finish()
			return fmt.Errorf("failed to ask round %d: %w", round, err)
		}
	}

	subs, err := collector.wait(ctx, s.Config.Timeout)
	if err != nil {
		return err
	}

	result := RoundResult{Round: round, Question: q, Submissions: subs, WinnerID: roundWinner(subs)}
	s.applyRound(result)

	logger.Debug("Duel round finished",
		zap.String("duel_id", s.ID), zap.Int("round", round), zap.String("winner_id", result.WinnerID))
	if e.presenter != nil {
		if err := e.presenter.RoundResult(ctx, s.Summary(), result); err != nil {
			logger.Warn("Failed to show round result", zap.String("duel_id", s.ID), zap.Error(err))
		}
	}
	return nil
}

// settle pays the pot. A player is marked paid only after the ledger accepted
// the credit, so release refunds whoever was not paid.
func (e *Engine) settle(ctx context.Context, s *Session) error {
	ctx = context.WithoutCancel(ctx)
	winner, loser, draw := s.decide()

	if draw {
		half := s.Pot / 2
		for _, p := range s.players() {
			if _, err := e.ledger.AddDelta(ctx, p, half, champion.ReasonDuelRefund); err != nil {
				return fmt.Errorf("failed to refund draw: %w", err)
			}
			s.markPaid(p)
		}
		for _, p := range s.players() {
			e.recordResult(ctx, p, types.DuelTie)
		}
	} else {
		if _, err := e.ledger.AddDelta(ctx, winner, s.Pot, champion.ReasonDuelWin); err != nil {
			return fmt.Errorf("failed to credit pot: %w", err)
		}
		s.markPaid(winner)
		s.markPaid(loser)
		e.recordResult(ctx, winner, types.DuelWin)
		e.recordResult(ctx, loser, types.DuelLoss)
	}

	s.finish(winner, draw)
	summary := s.Summary()
	logger.Info("Duel settled",
		zap.String("duel_id", s.ID),
		zap.String("winner_id", winner),
		zap.Bool("draw", draw),
		zap.Any("scores", summary.Scores))
	if e.presenter != nil {
		if err := e.presenter.Finished(ctx, summary); err != nil {
			logger.Warn("Failed to announce duel result", zap.String("duel_id", s.ID), zap.Error(err))
		}
	}
	return nil
}

func (e *Engine) recordResult(ctx context.Context, userID string, outcome types.DuelOutcome) {
	if err := e.ledger.RecordDuelResult(ctx, userID, outcome); err != nil {
		logger.Error("Failed to record duel result",
			zap.String("user_id", userID), zap.String("outcome", string(outcome)), zap.Error(err))
	}
}

// release ends a duel: unpaid stakes go back, both players leave the active
// set and the session is forgotten. It runs once per session.
func (e *Engine) release(s *Session, reason string, settled bool) {
	if !s.markReleased() {
		return
	}
	ctx := context.Background()

	for _, p := range s.players() {
		if !s.claimRefund(p) {
			continue
		}
		if e.ledger == nil {
			continue
		}
		if _, err := e.ledger.AddDelta(ctx, p, s.Stake, champion.ReasonDuelRefund); err != nil {
			logger.Error("Failed to refund duel stake",
				zap.String("duel_id", s.ID), zap.String("user_id", p), zap.Int("points", s.Stake), zap.Error(err))
			continue
		}
		logger.Info("Duel stake refunded", zap.String("duel_id", s.ID), zap.String("user_id", p), zap.Int("points", s.Stake))
	}

	e.mu.Lock()
	delete(e.sessions, s.ID)
	for _, p := range s.players() {
		if e.active[p] == s.ID {
			delete(e.active, p)
		}
	}
	e.mu.Unlock()

	if !settled {
		s.setStatus(StatusAborted)
		if e.presenter != nil {
			if err := e.presenter.Aborted(ctx, s.Summary(), reason); err != nil {
				logger.Warn("Failed to announce aborted duel", zap.String("duel_id", s.ID), zap.Error(err))
			}
		}
	}
	e.publish(EventDuelFinished, s.Summary())
}
