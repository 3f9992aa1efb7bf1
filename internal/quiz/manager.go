// Package quiz runs the per-area quiz: when to post a question, who answered
// it and when it closes.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/activity"
	"github.com/ichi0g0y/champion-bot/internal/champion"
	"github.com/ichi0g0y/champion-bot/internal/language"
	"github.com/ichi0g0y/champion-bot/internal/localdb"
	"github.com/ichi0g0y/champion-bot/internal/matcher"
	"github.com/ichi0g0y/champion-bot/internal/questionpool"
	"github.com/ichi0g0y/champion-bot/internal/quizstate"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

var (
	ErrUnknownArea         = errors.New("unknown quiz area")
	ErrNoChannel           = errors.New("quiz area has no channel")
	ErrQuestionActive      = errors.New("a question is already active")
	ErrNoActiveQuestion    = errors.New("no active question")
	ErrNoQuestion          = errors.New("no question available")
	ErrAlreadyAnswered     = errors.New("already answered this question")
	ErrInvalidWindow       = errors.New("invalid time window")
	ErrInvalidThreshold    = errors.New("invalid activity threshold")
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Event types published to the EventSink.
const (
	EventQuestionPosted = "question_posted"
	EventQuestionClosed = "question_closed"
)

// ChatMessage is one message of a channel history, newest first.
type ChatMessage struct {
	ID      string
	FromBot bool
}

// CloseResult describes how a question ended.
type CloseResult struct {
	TimedOut bool
	WinnerID string
	Answer   string
}

// Chat is the chat platform as seen by the quiz.
type Chat interface {
	PostQuestion(ctx context.Context, channelID, area string, q types.Question, end time.Time) (string, error)
	RevealQuestion(ctx context.Context, area string, info types.QuestionInfo, result CloseResult) error
	RecentMessages(ctx context.Context, channelID string, limit int) ([]ChatMessage, error)
}

// Ledger credits champion points.
type Ledger interface {
	AddDelta(ctx context.Context, userID string, delta int, reason string) (int, error)
}

// AreaStore persists area configuration.
type AreaStore interface {
	SaveArea(area types.Area) error
}

// AnswerRecorder stores submitted answers. RecordAnswer returns false when the
// user already answered the posting, which also covers answers given before a
// restart. PruneAnswers drops answers older than before, except those to the
// postings in keep.
type AnswerRecorder interface {
	RecordAnswer(row localdb.QuizAnswerRow) (bool, error)
	PruneAnswers(before time.Time, keep []string) (int64, error)
}

// EventSink receives live events for dashboards.
type EventSink interface {
	Publish(eventType string, data any)
}

// AnswerResult is returned for an accepted submission.
type AnswerResult struct {
	Correct bool `json:"correct"`
	Points  int  `json:"points"`
	Total   int  `json:"total"`
}

// Runtime is the mutable per-area state owned by the Manager. Its mutex keeps
// the operations of one area sequential.
type Runtime struct {
	mu          sync.Mutex
	area        types.Area
	messageID   string
	answered    map[string]struct{}
	cancelClose context.CancelFunc
}

type Options struct {
	Chat          Chat
	State         *quizstate.State
	Pool          *questionpool.Pool
	Tracker       *activity.Tracker
	Areas         AreaStore
	Ledger        Ledger
	Answers       AnswerRecorder
	Events        EventSink
	CorrectPoints int
	QuestionsDir  string

	// AnswerRetention is how long submitted answers are kept. Zero means a week.
	AnswerRetention time.Duration

	// DefaultLanguage is used for areas created by EnableArea.
	DefaultLanguage string
}

type Manager struct {
	chat          Chat
	state         *quizstate.State
	pool          *questionpool.Pool
	tracker       *activity.Tracker
	areas         AreaStore
	ledger        Ledger
	answers       AnswerRecorder
	events        EventSink
	correctPoints int
	questionsDir  string
	defaultLang   string
	retention     time.Duration

	mu       sync.RWMutex
	runtimes map[string]*Runtime

	timerCtx   context.Context
	stopTimers context.CancelFunc
	timers     sync.WaitGroup

	supervisor *Supervisor
	now        func() time.Time
}

func NewManager(opts Options, areas []types.Area) *Manager {
	timerCtx, stopTimers := context.WithCancel(context.Background())
	m := &Manager{
		chat:          opts.Chat,
		state:         opts.State,
		pool:          opts.Pool,
		tracker:       opts.Tracker,
		areas:         opts.Areas,
		ledger:        opts.Ledger,
		answers:       opts.Answers,
		events:        opts.Events,
		correctPoints: opts.CorrectPoints,
		questionsDir:  opts.QuestionsDir,
		defaultLang:   opts.DefaultLanguage,
		retention:     opts.AnswerRetention,
		runtimes:      make(map[string]*Runtime),
		timerCtx:      timerCtx,
		stopTimers:    stopTimers,
		now:           time.Now,
	}
	if m.tracker == nil {
		m.tracker = activity.NewTracker()
	}
	if m.defaultLang == "" {
		m.defaultLang = language.Default
	}
	if m.retention <= 0 {
		m.retention = defaultAnswerRetention
	}
	for _, area := range areas {
		m.runtimes[area.Name] = &Runtime{area: area}
	}
	return m
}

// Start launches a scheduler for every active area.
func (m *Manager) Start(ctx context.Context) {
	m.supervisor = NewSupervisor(ctx, func(ctx context.Context, area string) {
		NewScheduler(area, m, m.state).Run(ctx)
	})
	for _, area := range m.Areas() {
		if area.Active && area.ChannelID != "" {
			m.supervisor.Start(area.Name)
		}
	}

	m.timers.Add(1)
	go m.pruneLoop(ctx)
}

// Shutdown stops schedulers and auto-close timers and waits for them.
func (m *Manager) Shutdown() {
	if m.supervisor != nil {
		m.supervisor.Shutdown()
	}
	m.stopTimers()
	m.timers.Wait()
}

func (m *Manager) runtime(area string) *Runtime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runtimes[area]
}

// Area returns the configuration of an area.
func (m *Manager) Area(name string) (types.Area, bool) {
	rt := m.runtime(name)
	if rt == nil {
		return types.Area{}, false
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.area, true
}

// Areas returns every area ordered by name.
func (m *Manager) Areas() []types.Area {
	m.mu.RLock()
	rts := make([]*Runtime, 0, len(m.runtimes))
	for _, rt := range m.runtimes {
		rts = append(rts, rt)
	}
	m.mu.RUnlock()

	areas := make([]types.Area, 0, len(rts))
	for _, rt := range rts {
		rt.mu.Lock()
		areas = append(areas, rt.area)
		rt.mu.Unlock()
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].Name < areas[j].Name })
	return areas
}

// AreaForChannel returns the area posting into channelID.
func (m *Manager) AreaForChannel(channelID string) (string, bool) {
	for _, area := range m.Areas() {
		if area.ChannelID == channelID && channelID != "" {
			return area.Name, true
		}
	}
	return "", false
}

// ActiveQuestion returns the live question of an area, or nil.
func (m *Manager) ActiveQuestion(area string) *types.QuestionInfo {
	return m.state.Active(area)
}

// PrepareQuestion posts a question for the window ending at end, unless the
// channel is too quiet. A quiet channel gets an awaiting entry instead and the
// question is posted once enough messages arrive.
func (m *Manager) PrepareQuestion(ctx context.Context, area string, end time.Time) error {
	rt := m.runtime(area)
	if rt == nil {
		logger.Warn("PrepareQuestion for unknown area", zap.String("area", area))
		return nil
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	cfg := rt.area
	if !cfg.Active || cfg.ChannelID == "" {
		return nil
	}
	if m.state.Active(area) != nil {
		return nil
	}

	channel := cfg.ChannelID
	if !m.tracker.IsInitialized(channel) {
		logger.Info("First question since startup, skipping activity gate",
			zap.String("area", area), zap.String("channel_id", channel))
		m.tracker.MarkInitialized(channel)
		return m.askLocked(ctx, rt, area, end)
	}

	count := m.tracker.Get(channel)
	if count >= cfg.ActivityThreshold {
		return m.askLocked(ctx, rt, area, end)
	}

	m.tracker.SetAwaiting(channel, area, end, cfg.ActivityThreshold)
	logger.Info("Channel too quiet, question waits for activity",
		zap.String("area", area),
		zap.Int("messages", count),
		zap.Int("threshold", cfg.ActivityThreshold))
	return nil
}

// AskQuestion draws and posts a question that closes at end.
func (m *Manager) AskQuestion(ctx context.Context, area string, end time.Time) error {
	rt := m.runtime(area)
	if rt == nil {
		return ErrUnknownArea
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	return m.askLocked(ctx, rt, area, end)
}

func (m *Manager) askLocked(ctx context.Context, rt *Runtime, area string, end time.Time) error {
	cfg := rt.area
	if cfg.ChannelID == "" {
		logger.Warn("Quiz area has no channel", zap.String("area", area))
		return ErrNoChannel
	}
	if m.state.Active(area) != nil {
		return ErrQuestionActive
	}

	q := m.pool.Generate(area)
	if q == nil {
		logger.Warn("No question available", zap.String("area", area))
		return nil
	}

	messageID, err := m.chat.PostQuestion(ctx, cfg.ChannelID, area, *q, end)
	if err != nil {
		logger.Error("Failed to post question", zap.String("area", area), zap.Error(err))
		return fmt.Errorf("failed to post question: %w", err)
	}

	info := types.QuestionInfo{
		QuestionID: q.ID,
		MessageID:  messageID,
		ChannelID:  cfg.ChannelID,
		EndTime:    end,
		Answers:    q.Answers,
		Frage:      q.Text,
		Category:   q.Category,
	}
	if err := m.state.SetActive(area, info); err != nil {
		return err
	}

	m.tracker.Reset(cfg.ChannelID)
	m.tracker.ClearAwaiting(cfg.ChannelID)
	rt.messageID = messageID
	rt.answered = make(map[string]struct{})
	m.armCloseTimer(rt, area, messageID, end)

	logger.Info("Question posted",
		zap.String("area", area),
		zap.String("question_id", q.ID),
		zap.String("message_id", messageID),
		zap.Time("end_time", end))
	m.publish(EventQuestionPosted, map[string]any{
		"area":        area,
		"question_id": q.ID,
		"frage":       q.Text,
		"category":    q.Category,
		"end_time":    end,
	})
	return nil
}

// CloseQuestion reveals and clears the live question of an area. It returns
// false when there was nothing to close.
func (m *Manager) CloseQuestion(ctx context.Context, area string, timedOut bool, winnerID, answer string) (bool, error) {
	rt := m.runtime(area)
	if rt == nil {
		return false, nil
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()
	return m.closeLocked(ctx, rt, area, CloseResult{TimedOut: timedOut, WinnerID: winnerID, Answer: answer})
}

func (m *Manager) closeLocked(ctx context.Context, rt *Runtime, area string, result CloseResult) (bool, error) {
	info := m.state.Active(area)
	if info == nil {
		return false, nil
	}

	if err := m.chat.RevealQuestion(ctx, area, *info, result); err != nil {
		logger.Warn("Failed to reveal question", zap.String("area", area), zap.Error(err))
	}

	if _, err := m.state.ClearActive(area); err != nil {
		return false, err
	}

	if rt.cancelClose != nil {
		rt.cancelClose()
		rt.cancelClose = nil
	}
	m.tracker.MarkInitialized(info.ChannelID)
	m.tracker.Reset(info.ChannelID)
	rt.messageID = ""
	rt.answered = nil

	logger.Info("Question closed",
		zap.String("area", area),
		zap.String("question_id", info.QuestionID),
		zap.Bool("timed_out", result.TimedOut),
		zap.String("winner_id", result.WinnerID))
	m.publish(EventQuestionClosed, map[string]any{
		"area":        area,
		"question_id": info.QuestionID,
		"timed_out":   result.TimedOut,
		"winner_id":   result.WinnerID,
		"answers":     info.Answers,
	})
	return true, nil
}

// SubmitAnswer judges one answer. Every user gets one attempt per question.
func (m *Manager) SubmitAnswer(ctx context.Context, area, userID, username, text string) (AnswerResult, error) {
	rt := m.runtime(area)
	if rt == nil {
		return AnswerResult{}, ErrUnknownArea
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	info := m.state.Active(area)
	if info == nil {
		return AnswerResult{}, ErrNoActiveQuestion
	}

	// after a restart the bookkeeping belongs to no question yet
	if rt.messageID != info.MessageID || rt.answered == nil {
		rt.messageID = info.MessageID
		rt.answered = make(map[string]struct{})
	}
	if _, done := rt.answered[userID]; done {
		return AnswerResult{}, ErrAlreadyAnswered
	}
	rt.answered[userID] = struct{}{}

	correct := matcher.Matches(text, info.Answers)

	if m.answers != nil {
		inserted, err := m.answers.RecordAnswer(localdb.QuizAnswerRow{
			Area:       area,
			QuestionID: info.QuestionID,
			MessageID:  info.MessageID,
			UserID:     userID,
			Username:   username,
			Answer:     text,
			Correct:    correct,
			CreatedAt:  m.now().Unix(),
		})
		if err != nil {
			logger.Warn("Failed to record quiz answer", zap.String("area", area), zap.Error(err))
		} else if !inserted {
			return AnswerResult{}, ErrAlreadyAnswered
		}
	}

	if !correct {
		return AnswerResult{}, nil
	}

	if _, err := m.closeLocked(ctx, rt, area, CloseResult{WinnerID: userID, Answer: text}); err != nil {
		return AnswerResult{}, err
	}

	result := AnswerResult{Correct: true}
	if m.ledger != nil && m.correctPoints > 0 {
		total, err := m.ledger.AddDelta(context.WithoutCancel(ctx), userID, m.correctPoints, champion.ReasonQuizAnswer)
		if err != nil {
			logger.Error("Failed to credit quiz points", zap.String("user_id", userID), zap.Error(err))
		} else {
			result.Points = m.correctPoints
			result.Total = total
		}
	}
	return result, nil
}

// HandleMessage counts a chat message and posts a waiting question once the
// channel reached its activity threshold.
func (m *Manager) HandleMessage(ctx context.Context, channelID string, fromBot bool) {
	pending, ok := m.tracker.Register(channelID, fromBot)
	if !ok {
		return
	}

	if !pending.EndTime.After(m.now()) {
		logger.Debug("Awaiting question expired before activity threshold", zap.String("area", pending.Area))
		return
	}

	rt := m.runtime(pending.Area)
	if rt == nil {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if m.state.Active(pending.Area) != nil {
		return
	}
	logger.Info("Activity threshold reached, posting question", zap.String("area", pending.Area))
	if err := m.askLocked(ctx, rt, pending.Area, pending.EndTime); err != nil {
		logger.Error("Failed to post awaited question", zap.String("area", pending.Area), zap.Error(err))
	}
}

// ClearAwaiting drops a waiting question of the area's channel.
func (m *Manager) ClearAwaiting(area string) {
	if cfg, ok := m.Area(area); ok && cfg.ChannelID != "" {
		m.tracker.ClearAwaiting(cfg.ChannelID)
	}
}

func (m *Manager) armCloseTimer(rt *Runtime, area, messageID string, end time.Time) {
	if rt.cancelClose != nil {
		rt.cancelClose()
	}
	ctx, cancel := context.WithCancel(m.timerCtx)
	rt.cancelClose = cancel

	delay := end.Sub(m.now())
	m.timers.Add(1)
	go func() {
		defer m.timers.Done()
		defer recoverTask("auto-close", area)

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		m.closeIfCurrent(context.WithoutCancel(ctx), area, messageID)
	}()
}

func (m *Manager) closeIfCurrent(ctx context.Context, area, messageID string) {
	rt := m.runtime(area)
	if rt == nil {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	info := m.state.Active(area)
	if info == nil || info.MessageID != messageID {
		return
	}
	if _, err := m.closeLocked(ctx, rt, area, CloseResult{TimedOut: true}); err != nil {
		logger.Error("Auto-close failed", zap.String("area", area), zap.Error(err))
	}
}

func (m *Manager) publish(eventType string, data any) {
	if m.events != nil {
		m.events.Publish(eventType, data)
	}
}

func recoverTask(task, area string) {
	if r := recover(); r != nil {
		logger.Error("Recovered from panic in quiz task",
			zap.String("task", task), zap.String("area", area), zap.Any("panic", r))
	}
}
