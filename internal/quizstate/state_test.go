package quizstate

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/localdb"
	"github.com/ichi0g0y/champion-bot/internal/types"
)

func TestStateRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	state, err := Open(store)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	end := time.Date(2026, 3, 1, 12, 15, 0, 0, time.UTC)
	if err := state.SetActive("wcr", types.QuestionInfo{
		QuestionID: "q1", MessageID: "m1", ChannelID: "c1", EndTime: end,
		Answers: []string{"Gargoyle"}, Frage: "Wer?", Category: "health",
	}); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}
	if err := state.MarkAsked("wcr", "q1"); err != nil {
		t.Fatalf("MarkAsked failed: %v", err)
	}
	if err := state.SetSchedule("wcr", types.ScheduleRecord{PostTime: end.Add(-10 * time.Minute), WindowEnd: end}); err != nil {
		t.Fatalf("SetSchedule failed: %v", err)
	}

	reopened, err := Open(store)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	info := reopened.Active("wcr")
	if info == nil || info.MessageID != "m1" || !info.EndTime.Equal(end) {
		t.Fatalf("unexpected active question after reopen: %+v", info)
	}
	if ids := reopened.AskedIDs("wcr"); len(ids) != 1 || ids[0] != "q1" {
		t.Fatalf("unexpected history after reopen: %v", ids)
	}
	rec := reopened.Schedule("wcr")
	if rec == nil || !rec.WindowEnd.Equal(end) {
		t.Fatalf("unexpected schedule after reopen: %+v", rec)
	}
}

func TestMarkAskedIgnoresDuplicates(t *testing.T) {
	store := NewMemoryStore()
	state, _ := Open(store)

	_ = state.MarkAsked("lore", "a")
	_ = state.MarkAsked("lore", "a")
	if ids := state.AskedIDs("lore"); len(ids) != 1 {
		t.Fatalf("unexpected history: %v", ids)
	}
	if store.Saves() != 1 {
		t.Fatalf("duplicate mark should not persist: saves=%d", store.Saves())
	}
}

func TestClearActiveIsIdempotent(t *testing.T) {
	state, _ := Open(NewMemoryStore())
	_ = state.SetActive("lore", types.QuestionInfo{QuestionID: "x"})

	existed, err := state.ClearActive("lore")
	if err != nil || !existed {
		t.Fatalf("first ClearActive = (%v, %v), want (true, nil)", existed, err)
	}
	existed, err = state.ClearActive("lore")
	if err != nil || existed {
		t.Fatalf("second ClearActive = (%v, %v), want (false, nil)", existed, err)
	}
}

func TestFailedSaveKeepsOldDocument(t *testing.T) {
	store := NewMemoryStore()
	state, _ := Open(store)
	_ = state.MarkAsked("lore", "a")

	store.FailWith(errors.New("disk full"))
	if err := state.MarkAsked("lore", "b"); err == nil {
		t.Fatalf("expected error from failing store")
	}
	if ids := state.AskedIDs("lore"); len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("failed write leaked into the document: %v", ids)
	}
}

func TestReturnedValuesAreCopies(t *testing.T) {
	state, _ := Open(NewMemoryStore())
	_ = state.SetActive("lore", types.QuestionInfo{Answers: []string{"a"}})

	info := state.Active("lore")
	info.Answers[0] = "mutated"
	if got := state.Active("lore").Answers[0]; got != "a" {
		t.Fatalf("caller mutation changed state: %q", got)
	}
}

func TestOpenWithCorruptDocument(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Save([]byte("{not json"))

	state, err := Open(store)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if state.Active("lore") != nil {
		t.Fatalf("expected empty document")
	}
}

func TestDBStore(t *testing.T) {
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

	state, err := Open(NewDBStore())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := state.MarkAsked("wcr", "health:a:b"); err != nil {
		t.Fatalf("MarkAsked failed: %v", err)
	}

	reopened, err := Open(NewDBStore())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if ids := reopened.AskedIDs("wcr"); len(ids) != 1 || ids[0] != "health:a:b" {
		t.Fatalf("unexpected history from db: %v", ids)
	}
}
