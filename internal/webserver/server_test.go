package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/duel"
	"github.com/ichi0g0y/champion-bot/internal/localdb"
	"github.com/ichi0g0y/champion-bot/internal/quiz"
	"github.com/ichi0g0y/champion-bot/internal/types"
)

type fakeQuiz struct {
	areas []types.Area
}

func (f *fakeQuiz) Areas() []types.Area { return f.areas }

func (f *fakeQuiz) Remaining(name string) (quiz.Remaining, error) {
	if name == "wcr" {
		return quiz.Remaining{Area: name, Awaiting: true, Messages: 3, Threshold: 10}, nil
	}
	return quiz.Remaining{}, errors.New("unknown area")
}

type fakeBoards struct {
	err   error
	limit int
}

func (f *fakeBoards) Leaderboard(ctx context.Context, limit int) ([]localdb.ChampionTotal, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []localdb.ChampionTotal{{UserID: "u1", Total: 42}}, nil
}

func (f *fakeBoards) DuelLeaderboard(ctx context.Context, limit int) ([]types.DuelStats, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []types.DuelStats{{UserID: "u1", Wins: 3, Losses: 1}}, nil
}

func (f *fakeBoards) DuelStats(ctx context.Context, userID string) (types.DuelStats, error) {
	if f.err != nil {
		return types.DuelStats{}, f.err
	}
	return types.DuelStats{UserID: userID, Wins: 1}, nil
}

type fakeDuels struct {
	live []duel.Summary
}

func (f *fakeDuels) Sessions() []duel.Summary { return f.live }

func (f *fakeDuels) Session(duelID string) (duel.Summary, bool) {
	for _, s := range f.live {
		if s.ID == duelID {
			return s, true
		}
	}
	return duel.Summary{}, false
}

func setupTestDB(t *testing.T) {
	t.Helper()

	if localdb.DBClient != nil {
		_ = localdb.DBClient.Close()
		localdb.DBClient = nil
	}
	db, err := localdb.SetupDB(filepath.Join(t.TempDir(), "local.db"))
	if err != nil {
		t.Fatalf("SetupDB failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
		localdb.DBClient = nil
	})
}

func newTestServer(boards *fakeBoards) *Server {
	q := &fakeQuiz{areas: []types.Area{
		{Name: "wcr", ChannelID: "100", TimeWindow: time.Hour, Language: "de", Active: true, ActivityThreshold: 10},
		{Name: "other", ChannelID: "200", TimeWindow: 30 * time.Minute, Language: "en"},
	}}
	return NewServer(NewHub(), q, boards, &fakeDuels{})
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(&fakeBoards{}).Handler(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestQuizStatus(t *testing.T) {
	rec := get(t, newTestServer(&fakeBoards{}).Handler(), "/api/quiz/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("missing cors header: %q", got)
	}

	var body struct {
		Areas []areaStatus `json:"areas"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(body.Areas) != 2 {
		t.Fatalf("unexpected areas: %+v", body.Areas)
	}
	wcr := body.Areas[0]
	if wcr.WindowMinutes != 60 || wcr.Remaining == nil || wcr.Remaining.Messages != 3 {
		t.Fatalf("unexpected wcr status: %+v", wcr)
	}
	if body.Areas[1].Remaining != nil {
		t.Fatalf("remaining should be omitted on error: %+v", body.Areas[1])
	}
}

func TestQuizStatusWithoutManager(t *testing.T) {
	s := NewServer(nil, nil, nil, nil)
	rec := get(t, s.Handler(), "/api/quiz/status")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(&fakeBoards{}).Handler()
	for _, target := range []string{"/api/quiz/status", "/api/duels/leaderboard", "/api/champions/leaderboard"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: unexpected status: %d", target, rec.Code)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(&fakeBoards{}).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/quiz/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("preflight should have no body: %q", rec.Body.String())
	}
}

func TestLeaderboards(t *testing.T) {
	tests := []struct {
		name      string
		target    string
		wantLimit int
	}{
		{name: "duel default", target: "/api/duels/leaderboard", wantLimit: defaultLeaderboardLimit},
		{name: "duel limit", target: "/api/duels/leaderboard?limit=5", wantLimit: 5},
		{name: "champion out of range", target: "/api/champions/leaderboard?limit=1000", wantLimit: defaultLeaderboardLimit},
		{name: "champion invalid", target: "/api/champions/leaderboard?limit=abc", wantLimit: defaultLeaderboardLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			boards := &fakeBoards{}
			rec := get(t, newTestServer(boards).Handler(), tt.target)
			if rec.Code != http.StatusOK {
				t.Fatalf("unexpected status: %d", rec.Code)
			}
			if boards.limit != tt.wantLimit {
				t.Fatalf("unexpected limit: got=%d want=%d", boards.limit, tt.wantLimit)
			}
		})
	}
}

func TestLeaderboardError(t *testing.T) {
	rec := get(t, newTestServer(&fakeBoards{err: errors.New("boom")}).Handler(), "/api/duels/leaderboard")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestDuelStats(t *testing.T) {
	h := newTestServer(&fakeBoards{}).Handler()

	if rec := get(t, h, "/api/duels/stats"); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing user_id should be rejected: %d", rec.Code)
	}

	rec := get(t, h, "/api/duels/stats?user_id=u9")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var stats types.DuelStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if stats.UserID != "u9" || stats.Wins != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestLiveDuels(t *testing.T) {
	duels := &fakeDuels{live: []duel.Summary{
		{ID: "d1", ChallengerID: "u1", OpponentID: "u2", Pot: 20, Status: duel.StatusInProgress, Round: 2},
	}}
	h := NewServer(NewHub(), nil, nil, duels).Handler()

	tests := []struct {
		name   string
		target string
		status int
		want   string
	}{
		{name: "list", target: "/api/duels/live", status: http.StatusOK, want: `"count":1`},
		{name: "by id", target: "/api/duels/live?id=d1", status: http.StatusOK, want: `"pot":20`},
		{name: "unknown id", target: "/api/duels/live?id=nope", status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, tt.target)
			if rec.Code != tt.status {
				t.Fatalf("unexpected status: %d", rec.Code)
			}
			if tt.want != "" && !strings.Contains(rec.Body.String(), tt.want) {
				t.Fatalf("body %q does not contain %q", rec.Body.String(), tt.want)
			}
		})
	}

	rec := get(t, NewServer(nil, nil, nil, nil).Handler(), "/api/duels/live")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status without engine: %d", rec.Code)
	}
}

func TestQuizAnswers(t *testing.T) {
	setupTestDB(t)

	now := time.Now()
	rows := []localdb.QuizAnswerRow{
		{Area: "wcr", QuestionID: "q1", MessageID: "m2", UserID: "u1", Answer: "a", Correct: true, CreatedAt: now.Unix()},
		{Area: "wcr", QuestionID: "q1", MessageID: "m2", UserID: "u2", Answer: "b", CreatedAt: now.Add(-time.Hour).Unix()},
		{Area: "wcr", QuestionID: "q0", MessageID: "m1", UserID: "u1", Answer: "c", CreatedAt: now.AddDate(0, 0, -10).Unix()},
	}
	for _, row := range rows {
		if _, err := localdb.AddQuizAnswer(row); err != nil {
			t.Fatalf("AddQuizAnswer failed: %v", err)
		}
	}

	rec := get(t, newTestServer(&fakeBoards{}).Handler(), "/api/quiz/answers?days=7")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var body struct {
		Answers []localdb.QuizAnswerRow `json:"answers"`
		Count   int                     `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Count != 2 || len(body.Answers) != 2 {
		t.Fatalf("unexpected answers: %+v", body)
	}

	// reading with a short window must not delete anything
	rec = get(t, newTestServer(&fakeBoards{}).Handler(), "/api/quiz/answers?days=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	all, err := localdb.GetQuizAnswersSince(0, 0)
	if err != nil {
		t.Fatalf("GetQuizAnswersSince failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("GET must leave stored answers alone: %+v", all)
	}
}

func TestSettingsStatusWithoutDB(t *testing.T) {
	if localdb.DBClient != nil {
		t.Skip("database already initialized")
	}
	rec := get(t, newTestServer(&fakeBoards{}).Handler(), "/api/settings/status")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
}

func TestSettingsStatus(t *testing.T) {
	setupTestDB(t)

	rec := get(t, newTestServer(&fakeBoards{}).Handler(), "/api/settings/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var status map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if _, ok := status["discord_configured"]; !ok {
		t.Fatalf("unexpected body: %v", status)
	}
}
