package quiz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/types"
)

func TestActivityGateEndToEnd(t *testing.T) {
	env := newTestEnv(t, wcrArea())
	ctx := context.Background()
	channel := wcrArea().ChannelID

	// channel went through backfill already
	env.tracker.MarkInitialized(channel)

	end := time.Now().Add(15 * time.Minute)
	if err := env.manager.PrepareQuestion(ctx, "wcr", end); err != nil {
		t.Fatalf("PrepareQuestion failed: %v", err)
	}
	if env.chat.postCount() != 0 {
		t.Fatalf("question posted into a quiet channel")
	}
	if _, ok := env.tracker.Awaiting(channel); !ok {
		t.Fatalf("expected awaiting entry")
	}

	for i := 0; i < 9; i++ {
		env.manager.HandleMessage(ctx, channel, false)
	}
	// bot messages never count
	env.manager.HandleMessage(ctx, channel, true)
	if env.chat.postCount() != 0 {
		t.Fatalf("question posted after 9 messages")
	}

	env.manager.HandleMessage(ctx, channel, false)
	if env.chat.postCount() != 1 {
		t.Fatalf("unexpected post count after 10th message: got=%d want=1", env.chat.postCount())
	}
	if got := env.tracker.Get(channel); got != 0 {
		t.Fatalf("activity counter after post = %d, want 0", got)
	}
	if _, ok := env.tracker.Awaiting(channel); ok {
		t.Fatalf("awaiting entry should be cleared after posting")
	}
	info := env.state.Active("wcr")
	if info == nil || !info.EndTime.Equal(end) {
		t.Fatalf("unexpected active question: %+v", info)
	}
}

func TestPrepareQuestionFirstRunGrace(t *testing.T) {
	env := newTestEnv(t, wcrArea())
	ctx := context.Background()
	channel := wcrArea().ChannelID

	end := time.Now().Add(time.Minute)
	if err := env.manager.PrepareQuestion(ctx, "wcr", end); err != nil {
		t.Fatalf("PrepareQuestion failed: %v", err)
	}
	if env.chat.postCount() != 1 {
		t.Fatalf("uninitialized channel should skip the activity gate once")
	}
	if !env.tracker.IsInitialized(channel) {
		t.Fatalf("channel should be initialized after the grace post")
	}

	if _, err := env.manager.CloseQuestion(ctx, "wcr", true, "", ""); err != nil {
		t.Fatalf("CloseQuestion failed: %v", err)
	}

	if err := env.manager.PrepareQuestion(ctx, "wcr", end); err != nil {
		t.Fatalf("PrepareQuestion failed: %v", err)
	}
	if env.chat.postCount() != 1 {
		t.Fatalf("grace must only apply once per channel")
	}
}

func TestPrepareQuestionSkips(t *testing.T) {
	inactive := wcrArea()
	inactive.Active = false
	noChannel := wcrArea()
	noChannel.Name = "lore"
	noChannel.ChannelID = ""

	env := newTestEnv(t, inactive, noChannel)
	ctx := context.Background()
	end := time.Now().Add(time.Minute)

	for _, area := range []string{"wcr", "lore", "missing"} {
		if err := env.manager.PrepareQuestion(ctx, area, end); err != nil {
			t.Fatalf("PrepareQuestion(%s) failed: %v", area, err)
		}
	}
	if env.chat.postCount() != 0 {
		t.Fatalf("unexpected posts: %d", env.chat.postCount())
	}
}

func TestPrepareQuestionKeepsActiveQuestion(t *testing.T) {
	env := newTestEnv(t, wcrArea())
	ctx := context.Background()
	end := time.Now().Add(time.Minute)

	if err := env.manager.AskQuestion(ctx, "wcr", end); err != nil {
		t.Fatalf("AskQuestion failed: %v", err)
	}
	if err := env.manager.PrepareQuestion(ctx, "wcr", end); err != nil {
		t.Fatalf("PrepareQuestion failed: %v", err)
	}
	if env.chat.postCount() != 1 {
		t.Fatalf("at most one question may be live per area, posts=%d", env.chat.postCount())
	}
	if err := env.manager.AskQuestion(ctx, "wcr", end); !errors.Is(err, ErrQuestionActive) {
		t.Fatalf("second AskQuestion error = %v, want ErrQuestionActive", err)
	}
}

func TestAskQuestionPostFailure(t *testing.T) {
	env := newTestEnv(t, wcrArea())
	env.chat.postErr = errBoom

	err := env.manager.AskQuestion(context.Background(), "wcr", time.Now().Add(time.Minute))
	if !errors.Is(err, errBoom) {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.state.Active("wcr") != nil {
		t.Fatalf("failed post must not leave an active question")
	}
}

func TestSubmitAnswer(t *testing.T) {
	env := newTestEnv(t, wcrArea())
	ctx := context.Background()

	if err := env.manager.AskQuestion(ctx, "wcr", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("AskQuestion failed: %v", err)
	}

	res, err := env.manager.SubmitAnswer(ctx, "wcr", "u1", "alice", "Murloc")
	if err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	if res.Correct {
		t.Fatalf("wrong answer judged correct")
	}

	if _, err := env.manager.SubmitAnswer(ctx, "wcr", "u1", "alice", "Gargoyle"); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("second attempt error = %v, want ErrAlreadyAnswered", err)
	}

	res, err = env.manager.SubmitAnswer(ctx, "wcr", "u2", "bob", "gargoyle!")
	if err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	if !res.Correct || res.Points != 5 || res.Total != 5 {
		t.Fatalf("unexpected result: %+v", res)
	}

	if env.state.Active("wcr") != nil {
		t.Fatalf("correct answer should close the question")
	}
	if env.chat.revealCount() != 1 || env.chat.revealed[0].WinnerID != "u2" {
		t.Fatalf("unexpected reveals: %+v", env.chat.revealed)
	}
	if env.tracker.Get(wcrArea().ChannelID) != 0 || !env.tracker.IsInitialized(wcrArea().ChannelID) {
		t.Fatalf("close should reset and initialize the channel")
	}

	if _, err := env.manager.SubmitAnswer(ctx, "wcr", "u3", "carol", "Gargoyle"); !errors.Is(err, ErrNoActiveQuestion) {
		t.Fatalf("answer after close error = %v, want ErrNoActiveQuestion", err)
	}
}

func TestCloseQuestionIsIdempotent(t *testing.T) {
	env := newTestEnv(t, wcrArea())
	ctx := context.Background()

	closed, err := env.manager.CloseQuestion(ctx, "wcr", true, "", "")
	if err != nil || closed {
		t.Fatalf("CloseQuestion without question = (%v, %v), want (false, nil)", closed, err)
	}

	_ = env.manager.AskQuestion(ctx, "wcr", time.Now().Add(time.Minute))
	for i, want := range []bool{true, false} {
		closed, err := env.manager.CloseQuestion(ctx, "wcr", true, "", "")
		if err != nil || closed != want {
			t.Fatalf("CloseQuestion #%d = (%v, %v), want (%v, nil)", i+1, closed, err, want)
		}
	}
	if env.chat.revealCount() != 1 {
		t.Fatalf("question revealed %d times, want 1", env.chat.revealCount())
	}
}

func TestAutoCloseTimer(t *testing.T) {
	env := newTestEnv(t, wcrArea())

	if err := env.manager.AskQuestion(context.Background(), "wcr", time.Now().Add(30*time.Millisecond)); err != nil {
		t.Fatalf("AskQuestion failed: %v", err)
	}
	waitFor(t, "auto-close", func() bool { return env.state.Active("wcr") == nil })

	if env.chat.revealCount() != 1 || !env.chat.revealed[0].TimedOut {
		t.Fatalf("unexpected reveals: %+v", env.chat.revealed)
	}
}

func TestHandleMessageIgnoresExpiredAwaiting(t *testing.T) {
	area := wcrArea()
	area.ActivityThreshold = 1
	env := newTestEnv(t, area)

	env.tracker.SetAwaiting(area.ChannelID, "wcr", time.Now().Add(-time.Second), 1)
	env.manager.HandleMessage(context.Background(), area.ChannelID, false)
	if env.chat.postCount() != 0 {
		t.Fatalf("question posted for an expired window")
	}
}

func TestBackfillClosesOpenQuestion(t *testing.T) {
	env := newTestEnv(t, wcrArea())
	channel := wcrArea().ChannelID

	if err := env.state.SetActive("wcr", types.QuestionInfo{
		QuestionID: "q1", MessageID: "open-msg", ChannelID: channel,
		EndTime: time.Now().Add(time.Hour), Answers: []string{"Gargoyle"},
	}); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	env.chat.history[channel] = []ChatMessage{
		{ID: "m5"}, {ID: "m4", FromBot: true}, {ID: "m3"}, {ID: "open-msg", FromBot: true}, {ID: "m1"}, {ID: "m0"},
	}

	if err := env.manager.Backfill(context.Background()); err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if env.state.Active("wcr") != nil {
		t.Fatalf("open question found in history should be closed")
	}
	if got := env.tracker.Get(channel); got != 2 {
		t.Fatalf("backfilled count = %d, want 2", got)
	}
	if !env.tracker.IsInitialized(channel) {
		t.Fatalf("channel should be initialized after backfill")
	}
}

func TestBackfillCountsUpToTarget(t *testing.T) {
	env := newTestEnv(t, wcrArea())
	channel := wcrArea().ChannelID

	var history []ChatMessage
	for i := 0; i < 30; i++ {
		history = append(history, ChatMessage{ID: "m", FromBot: i%3 == 0})
	}
	env.chat.history[channel] = history

	if err := env.manager.Backfill(context.Background()); err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if got := env.tracker.Get(channel); got != backfillTarget {
		t.Fatalf("backfilled count = %d, want %d", got, backfillTarget)
	}
}

func TestBackfillHistoryFailureKeepsGrace(t *testing.T) {
	env := newTestEnv(t, wcrArea())
	env.chat.historyErr = errBoom

	if err := env.manager.Backfill(context.Background()); err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if env.tracker.IsInitialized(wcrArea().ChannelID) {
		t.Fatalf("channel with unreadable history must stay uninitialized")
	}
}

func TestBackfillClosesExpiredQuestionOutsideHistory(t *testing.T) {
	env := newTestEnv(t, wcrArea())
	channel := wcrArea().ChannelID

	_ = env.state.SetActive("wcr", types.QuestionInfo{
		QuestionID: "q1", MessageID: "old", ChannelID: channel, EndTime: time.Now().Add(-time.Minute),
	})

	if err := env.manager.Backfill(context.Background()); err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if env.state.Active("wcr") != nil {
		t.Fatalf("expired question should be closed on resume")
	}
}
