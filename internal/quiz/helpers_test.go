package quiz

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/activity"
	"github.com/ichi0g0y/champion-bot/internal/localdb"
	"github.com/ichi0g0y/champion-bot/internal/questionpool"
	"github.com/ichi0g0y/champion-bot/internal/quizstate"
	"github.com/ichi0g0y/champion-bot/internal/types"
)

type postedQuestion struct {
	channelID string
	area      string
	question  types.Question
	end       time.Time
	messageID string
}

type fakeChat struct {
	mu         sync.Mutex
	posted     []postedQuestion
	revealed   []CloseResult
	history    map[string][]ChatMessage
	historyErr error
	postErr    error
}

func newFakeChat() *fakeChat {
	return &fakeChat{history: make(map[string][]ChatMessage)}
}

func (f *fakeChat) PostQuestion(_ context.Context, channelID, area string, q types.Question, end time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.postErr != nil {
		return "", f.postErr
	}
	id := fmt.Sprintf("msg-%d", len(f.posted)+1)
	f.posted = append(f.posted, postedQuestion{channelID: channelID, area: area, question: q, end: end, messageID: id})
	return id, nil
}

func (f *fakeChat) RevealQuestion(_ context.Context, _ string, _ types.QuestionInfo, result CloseResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revealed = append(f.revealed, result)
	return nil
}

func (f *fakeChat) RecentMessages(_ context.Context, channelID string, limit int) ([]ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	msgs := f.history[channelID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return append([]ChatMessage(nil), msgs...), nil
}

func (f *fakeChat) postCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.posted)
}

func (f *fakeChat) revealCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.revealed)
}

type fakeLedger struct {
	mu     sync.Mutex
	deltas map[string]int
	err    error
}

func (l *fakeLedger) AddDelta(_ context.Context, userID string, delta int, _ string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return 0, l.err
	}
	if l.deltas == nil {
		l.deltas = make(map[string]int)
	}
	l.deltas[userID] += delta
	return l.deltas[userID], nil
}

type memoryAreaStore struct {
	mu    sync.Mutex
	saved map[string]types.Area
	err   error
}

func (s *memoryAreaStore) SaveArea(area types.Area) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if s.saved == nil {
		s.saved = make(map[string]types.Area)
	}
	s.saved[area.Name] = area
	return nil
}

type memoryAnswers struct {
	mu   sync.Mutex
	seen map[string]bool
	rows []localdb.QuizAnswerRow
}

func (a *memoryAnswers) RecordAnswer(row localdb.QuizAnswerRow) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.seen == nil {
		a.seen = make(map[string]bool)
	}
	key := row.Area + "/" + row.MessageID + "/" + row.UserID
	if a.seen[key] {
		return false, nil
	}
	a.seen[key] = true
	a.rows = append(a.rows, row)
	return true, nil
}

func (a *memoryAnswers) PruneAnswers(before time.Time, keep []string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	kept := a.rows[:0]
	var deleted int64
	for _, row := range a.rows {
		if row.CreatedAt < before.Unix() && !slices.Contains(keep, row.MessageID) {
			delete(a.seen, row.Area+"/"+row.MessageID+"/"+row.UserID)
			deleted++
			continue
		}
		kept = append(kept, row)
	}
	a.rows = kept
	return deleted, nil
}

var errBoom = errors.New("boom")

func wcrArea() types.Area {
	return types.Area{
		Name:              "wcr",
		ChannelID:         "chan-wcr",
		TimeWindow:        15 * time.Minute,
		Language:          "deu",
		Active:            true,
		ActivityThreshold: 10,
	}
}

func testBank() questionpool.Bank {
	return questionpool.Bank{"units": {
		{ID: "q1", Text: "Welche Einheit fliegt?", Answers: []string{"Gargoyle"}},
		{ID: "q2", Text: "Welche Einheit ist aus Stein?", Answers: []string{"Gargoyle"}},
		{ID: "q3", Text: "Welche Einheit hat Flügel?", Answers: []string{"Gargoyle"}},
	}}
}

type testEnv struct {
	manager *Manager
	chat    *fakeChat
	state   *quizstate.State
	tracker *activity.Tracker
	ledger  *fakeLedger
	areas   *memoryAreaStore
}

func newTestEnv(t *testing.T, areas ...types.Area) *testEnv {
	t.Helper()

	state, err := quizstate.Open(quizstate.NewMemoryStore())
	if err != nil {
		t.Fatalf("quizstate.Open failed: %v", err)
	}
	pool := questionpool.New(state)
	for _, area := range areas {
		pool.SetBank(area.Name, testBank())
	}

	env := &testEnv{
		chat:    newFakeChat(),
		state:   state,
		tracker: activity.NewTracker(),
		ledger:  &fakeLedger{},
		areas:   &memoryAreaStore{},
	}
	env.manager = NewManager(Options{
		Chat:          env.chat,
		State:         state,
		Pool:          pool,
		Tracker:       env.tracker,
		Areas:         env.areas,
		Ledger:        env.ledger,
		Answers:       &memoryAnswers{},
		CorrectPoints: 5,
	}, areas)
	t.Cleanup(env.manager.Shutdown)
	return env
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
