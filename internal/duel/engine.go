// Package duel runs head-to-head quiz duels with wagered champion points.
//
// An invite is accepted by a second player, both stakes are escrowed through
// the ledger and the duel plays its rounds in a dedicated thread. Every path
// that leaves a duel, settlement or abort, releases both players and returns
// each stake that was not paid out yet exactly once.
package duel

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/champion"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

var (
	ErrInvalidConfig     = errors.New("invalid duel config")
	ErrUnknownInvite     = errors.New("duel invite not found")
	ErrAlreadyAccepted   = errors.New("duel invite already accepted")
	ErrSelfAccept        = errors.New("cannot accept your own duel")
	ErrAlreadyInDuel     = errors.New("player is already in a duel")
	ErrLedgerUnavailable = errors.New("points ledger unavailable")
	ErrInsufficientFunds = errors.New("not enough champion points")
	ErrUnknownDuel       = errors.New("duel not found")
	ErrNotParticipant    = errors.New("not a participant of this duel")
	ErrNoRound           = errors.New("no round is running")
	ErrRoundFinished     = errors.New("round already finished")
	ErrAlreadySubmitted  = errors.New("answer already submitted for this round")
	ErrShuttingDown      = errors.New("duel engine is shutting down")
)

// Event types published to the EventSink.
const (
	EventDuelStarted  = "duel_started"
	EventDuelFinished = "duel_finished"
)

// DefaultInviteTimeout is how long an invite waits for an opponent.
const DefaultInviteTimeout = 60 * time.Second

// Ledger moves champion points. Every call is one atomic ledger operation.
type Ledger interface {
	Total(ctx context.Context, userID string) (int, error)
	AddDelta(ctx context.Context, userID string, delta int, reason string) (int, error)
	RecordDuelResult(ctx context.Context, userID string, outcome types.DuelOutcome) error
}

// QuestionSource hands out duel questions.
type QuestionSource interface {
	Generate(area string) *types.Question
	AllTypes(area string) []types.Question
	MarkAsked(area, questionID string)
}

// Presenter shows a duel to the players.
type Presenter interface {
	InviteExpired(ctx context.Context, inv Invite) error
	CreateThread(ctx context.Context, s Summary) (string, error)
	AskRound(ctx context.Context, s Summary, round int, q types.Question) error
	RoundResult(ctx context.Context, s Summary, result RoundResult) error
	Finished(ctx context.Context, s Summary) error
	Aborted(ctx context.Context, s Summary, reason string) error
}

// EventSink receives live events for dashboards.
type EventSink interface {
	Publish(eventType string, data any)
}

// Invite is an open challenge.
type Invite struct {
	ID           string    `json:"id"`
	ChannelID    string    `json:"channel_id"`
	ChallengerID string    `json:"challenger_id"`
	Config       Config    `json:"config"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type Options struct {
	Ledger        Ledger
	Questions     QuestionSource
	Presenter     Presenter
	Events        EventSink
	InviteTimeout time.Duration
}

// Engine owns invites, live duels and the active-duel membership of players.
type Engine struct {
	ledger        Ledger
	questions     QuestionSource
	presenter     Presenter
	events        EventSink
	inviteTimeout time.Duration

	mu       sync.Mutex
	invites  map[string]*Invite
	sessions map[string]*Session
	active   map[string]string
	closed   bool

	// escrowMu serializes the check-and-debit section of acceptance.
	escrowMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now   func() time.Time
	newID func() (string, error)
}

func NewEngine(opts Options) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	timeout := opts.InviteTimeout
	if timeout <= 0 {
		timeout = DefaultInviteTimeout
	}
	return &Engine{
		ledger:        opts.Ledger,
		questions:     opts.Questions,
		presenter:     opts.Presenter,
		events:        opts.Events,
		inviteTimeout: timeout,
		invites:       make(map[string]*Invite),
		sessions:      make(map[string]*Session),
		active:        make(map[string]string),
		ctx:           ctx,
		cancel:        cancel,
		now:           time.Now,
		newID:         generateID,
	}
}

func generateID() (string, error) {
	return gonanoid.New()
}

// Invite opens a challenge in channelID. It expires unless accepted in time.
func (e *Engine) Invite(ctx context.Context, channelID, challengerID string, cfg Config) (Invite, error) {
	cfg, err := cfg.normalized()
	if err != nil {
		return Invite{}, err
	}
	if e.ctx.Err() != nil {
		return Invite{}, ErrShuttingDown
	}
	if e.InDuel(challengerID) {
		return Invite{}, ErrAlreadyInDuel
	}
	if e.ledger != nil {
		total, err := e.ledger.Total(ctx, challengerID)
		if err != nil {
			logger.Error("Failed to read champion points", zap.String("user_id", challengerID), zap.Error(err))
			return Invite{}, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
		}
		if total < cfg.Points {
			return Invite{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, total, cfg.Points)
		}
	}

	id, err := e.newID()
	if err != nil {
		return Invite{}, fmt.Errorf("failed to generate ID: %w", err)
	}
	inv := &Invite{
		ID:           id,
		ChannelID:    channelID,
		ChallengerID: challengerID,
		Config:       cfg,
		Status:       StatusInvited,
		CreatedAt:    e.now(),
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Invite{}, ErrShuttingDown
	}
	e.invites[id] = inv
	snapshot := *inv
	e.wg.Add(1)
	e.mu.Unlock()

	go e.expireInvite(id)

	logger.Info("Duel invite created",
		zap.String("invite_id", id),
		zap.String("challenger_id", challengerID),
		zap.String("area", cfg.Area),
		zap.Int("points", cfg.Points),
		zap.String("mode", string(cfg.Mode)))
	return snapshot, nil
}

func (e *Engine) expireInvite(id string) {
	defer e.wg.Done()
	defer e.recoverTask("invite expiry", id)

	timer := time.NewTimer(e.inviteTimeout)
	defer timer.Stop()

	shutdown := false
	select {
	case <-e.ctx.Done():
		shutdown = true
	case <-timer.C:
	}

	e.mu.Lock()
	inv, ok := e.invites[id]
	delete(e.invites, id)
	if !ok || inv.Status != StatusInvited || shutdown {
		e.mu.Unlock()
		return
	}
	inv.Status = StatusAborted
	snapshot := *inv
	e.mu.Unlock()

	logger.Info("Duel invite expired", zap.String("invite_id", id))
	if e.presenter != nil {
		if err := e.presenter.InviteExpired(context.Background(), snapshot); err != nil {
			logger.Warn("Failed to announce expired invite", zap.String("invite_id", id), zap.Error(err))
		}
	}
}

// GetInvite returns an invite that is still listed. Aborted invites stay
// listed until their timer ends.
func (e *Engine) GetInvite(id string) (Invite, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inv, ok := e.invites[id]
	if !ok {
		return Invite{}, false
	}
	return *inv, true
}

// Accept lets opponentID take an invite. On success both stakes are escrowed,
// the duel thread exists and the rounds run in the background.
func (e *Engine) Accept(ctx context.Context, inviteID, opponentID string) (Summary, error) {
	e.mu.Lock()
	inv, ok := e.invites[inviteID]
	if !ok {
		e.mu.Unlock()
		return Summary{}, ErrUnknownInvite
	}
	switch {
	case inv.Status == StatusAborted:
		e.mu.Unlock()
		return Summary{}, ErrUnknownInvite
	case inv.ChallengerID == opponentID:
		e.mu.Unlock()
		return Summary{}, ErrSelfAccept
	case inv.Status != StatusInvited:
		e.mu.Unlock()
		return Summary{}, ErrAlreadyAccepted
	}
	inv.Status = StatusAccepted
	accepted := *inv
	e.mu.Unlock()

	// the accepted invite stays listed until its timer ends so late clicks
	// get ErrAlreadyAccepted
	s, err := e.escrow(ctx, accepted, opponentID)
	var rejected *opponentError
	reopen := errors.As(err, &rejected)
	e.setInviteStatus(inviteID, err, reopen)

	if reopen {
		logger.Info("Duel acceptance rejected",
			zap.String("invite_id", inviteID), zap.String("opponent_id", opponentID), zap.Error(err))
		return Summary{}, err
	}
	if err != nil {
		logger.Info("Duel aborted before start",
			zap.String("invite_id", inviteID), zap.String("opponent_id", opponentID), zap.Error(err))
		return Summary{}, err
	}

	threadID := ""
	if e.presenter != nil {
		threadID, err = e.presenter.CreateThread(ctx, s.Summary())
	}
	if err != nil {
		logger.Error("Failed to create duel thread", zap.String("duel_id", s.ID), zap.Error(err))
		e.release(s, "thread creation failed", false)
		return Summary{}, fmt.Errorf("failed to create duel thread: %w", err)
	}
	s.setThread(threadID)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.release(s, "bot is shutting down", false)
		return Summary{}, ErrShuttingDown
	}
	e.wg.Add(1)
	e.mu.Unlock()

	summary := s.Summary()
	e.publish(EventDuelStarted, summary)

	go e.run(s)
	logger.Info("Duel started",
		zap.String("duel_id", s.ID),
		zap.String("challenger_id", s.ChallengerID),
		zap.String("opponent_id", s.OpponentID),
		zap.String("thread_id", threadID))
	return summary, nil
}

func (e *Engine) setInviteStatus(id string, escrowErr error, reopen bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	inv, ok := e.invites[id]
	if !ok {
		return
	}
	switch {
	case escrowErr == nil:
		inv.Status = StatusEscrowed
	case reopen:
		inv.Status = StatusInvited
	default:
		inv.Status = StatusAborted
	}
}

// opponentError is an acceptance that failed on the accepting player's side.
// The invite stays open for somebody else.
type opponentError struct {
	err error
}

func (o *opponentError) Error() string { return o.err.Error() }
func (o *opponentError) Unwrap() error { return o.err }

// escrow debits both stakes and registers the players as active. Nothing is
// left debited when it fails.
func (e *Engine) escrow(ctx context.Context, inv Invite, opponentID string) (*Session, error) {
	e.escrowMu.Lock()
	defer e.escrowMu.Unlock()

	if e.ctx.Err() != nil {
		return nil, ErrShuttingDown
	}
	if e.ledger == nil {
		return nil, ErrLedgerUnavailable
	}

	players := []string{inv.ChallengerID, opponentID}
	e.mu.Lock()
	for _, p := range players {
		if _, busy := e.active[p]; busy {
			e.mu.Unlock()
			return nil, blame(p, opponentID, fmt.Errorf("%w: %s", ErrAlreadyInDuel, p))
		}
	}
	e.mu.Unlock()

	// funds move even if the caller goes away mid-escrow
	ctx = context.WithoutCancel(ctx)
	points := inv.Config.Points

	for _, p := range players {
		total, err := e.ledger.Total(ctx, p)
		if err != nil {
			logger.Error("Failed to read champion points", zap.String("user_id", p), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
		}
		if total < points {
			return nil, blame(p, opponentID, fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientFunds, p, total, points))
		}
	}

	if _, err := e.ledger.AddDelta(ctx, inv.ChallengerID, -points, champion.ReasonDuelStake); err != nil {
		return nil, fmt.Errorf("failed to escrow stake: %w", err)
	}
	if _, err := e.ledger.AddDelta(ctx, opponentID, -points, champion.ReasonDuelStake); err != nil {
		if _, rerr := e.ledger.AddDelta(ctx, inv.ChallengerID, points, champion.ReasonDuelRefund); rerr != nil {
			logger.Error("Failed to compensate escrowed stake",
				zap.String("user_id", inv.ChallengerID), zap.Int("points", points), zap.Error(rerr))
		}
		return nil, fmt.Errorf("failed to escrow stake: %w", err)
	}

	s := newSession(inv, opponentID)
	e.mu.Lock()
	e.sessions[s.ID] = s
	for _, p := range players {
		e.active[p] = s.ID
	}
	e.mu.Unlock()

	logger.Info("Duel stakes escrowed",
		zap.String("duel_id", s.ID), zap.Int("points", points), zap.Strings("players", players))
	return s, nil
}

func blame(userID, opponentID string, err error) error {
	if userID == opponentID {
		return &opponentError{err: err}
	}
	return err
}

// SubmitAnswer hands a player's answer to the running round of a duel.
func (e *Engine) SubmitAnswer(duelID, userID, text string) (Submission, error) {
	e.mu.Lock()
	s, ok := e.sessions[duelID]
	e.mu.Unlock()
	if !ok {
		return Submission{}, ErrUnknownDuel
	}
	if !s.isPlayer(userID) {
		return Submission{}, ErrNotParticipant
	}
	round := s.currentRound()
	if round == nil {
		return Submission{}, ErrNoRound
	}
	return round.submit(userID, text, e.now())
}

// Session returns a snapshot of a live duel.
func (e *Engine) Session(duelID string) (Summary, bool) {
	e.mu.Lock()
	s, ok := e.sessions[duelID]
	e.mu.Unlock()
	if !ok {
		return Summary{}, false
	}
	return s.Summary(), true
}

// Sessions returns snapshots of every live duel ordered by ID.
func (e *Engine) Sessions() []Summary {
	e.mu.Lock()
	live := make([]*Session, 0, len(e.sessions))
	for _, s := range e.sessions {
		live = append(live, s)
	}
	e.mu.Unlock()

	result := make([]Summary, 0, len(live))
	for _, s := range live {
		result = append(result, s.Summary())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// InDuel reports whether userID is part of a live duel.
func (e *Engine) InDuel(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[userID]
	return ok
}

// Wait blocks until every duel and invite timer returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Shutdown aborts running duels with refunds and waits for them. Invites and
// acceptances after it fail with ErrShuttingDown.
func (e *Engine) Shutdown() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

func (e *Engine) publish(eventType string, data any) {
	if e.events != nil {
		e.events.Publish(eventType, data)
	}
}

func (e *Engine) recoverTask(task, id string) {
	if r := recover(); r != nil {
		logger.Error("Recovered from panic in duel task",
			zap.String("task", task), zap.String("id", id), zap.Any("panic", r))
	}
}
