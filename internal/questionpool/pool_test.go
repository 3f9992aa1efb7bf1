package questionpool

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ichi0g0y/champion-bot/internal/types"
)

type memoryHistory struct {
	asked  map[string][]string
	resets int
}

func newMemoryHistory() *memoryHistory {
	return &memoryHistory{asked: make(map[string][]string)}
}

func (h *memoryHistory) AskedIDs(area string) []string {
	return append([]string(nil), h.asked[area]...)
}

func (h *memoryHistory) MarkAsked(area, id string) error {
	h.asked[area] = append(h.asked[area], id)
	return nil
}

func (h *memoryHistory) ResetHistory(area string) error {
	h.resets++
	delete(h.asked, area)
	return nil
}

type fixedProvider struct {
	question *types.Question
	all      []types.Question
	calls    int
}

func (p *fixedProvider) Generate() *types.Question {
	p.calls++
	if p.question == nil {
		return nil
	}
	q := *p.question
	return &q
}

type allTypesProvider struct {
	fixedProvider
}

func (p *allTypesProvider) GenerateAllTypes() []types.Question {
	return append([]types.Question(nil), p.all...)
}

func makeQuestions(category string, n int) []types.Question {
	qs := make([]types.Question, n)
	for i := range qs {
		qs[i] = types.Question{
			ID:      fmt.Sprintf("%s-%d", category, i),
			Text:    fmt.Sprintf("Frage %d?", i),
			Answers: []string{fmt.Sprintf("antwort %d", i)},
		}
	}
	return qs
}

func TestGenerateStaticCycle(t *testing.T) {
	const n = 7
	history := newMemoryHistory()
	pool := New(history)
	pool.SetBank("lore", Bank{"heroes": makeQuestions("heroes", n)})

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		q := pool.Generate("lore")
		if q == nil {
			t.Fatalf("Generate() returned nil on call %d", i+1)
		}
		if seen[q.ID] {
			t.Fatalf("question %q repeated before the category was exhausted", q.ID)
		}
		if q.Category != "heroes" {
			t.Fatalf("unexpected category: got=%q want=%q", q.Category, "heroes")
		}
		seen[q.ID] = true
	}
	if history.resets != 0 {
		t.Fatalf("history reset too early: resets=%d", history.resets)
	}

	q := pool.Generate("lore")
	if q == nil {
		t.Fatalf("Generate() after exhaustion returned nil, want a question")
	}
	if history.resets != 1 {
		t.Fatalf("unexpected reset count: got=%d want=1", history.resets)
	}
	if got := history.AskedIDs("lore"); len(got) != 1 || got[0] != q.ID {
		t.Fatalf("history after reset should only hold %q, got %v", q.ID, got)
	}
}

func TestGenerateStaticEmpty(t *testing.T) {
	pool := New(newMemoryHistory())
	if q := pool.Generate("missing"); q != nil {
		t.Fatalf("Generate() for unknown area = %+v, want nil", q)
	}
	pool.SetBank("empty", Bank{"none": nil})
	if q := pool.Generate("empty"); q != nil {
		t.Fatalf("Generate() for empty bank = %+v, want nil", q)
	}
}

func TestGenerateDynamicFallsBackToAllTypes(t *testing.T) {
	history := newMemoryHistory()
	_ = history.MarkAsked("wcr", "dup")
	_ = history.MarkAsked("wcr", "a")

	provider := &allTypesProvider{fixedProvider{
		question: &types.Question{ID: "dup"},
		all:      []types.Question{{ID: "a"}, {ID: "b"}, {ID: "dup"}},
	}}
	pool := New(history)
	pool.Register("wcr", provider)

	q := pool.Generate("wcr")
	if q == nil {
		t.Fatalf("Generate() = nil, want fallback question")
	}
	if q.ID != "b" {
		t.Fatalf("unexpected fallback question: got=%q want=%q", q.ID, "b")
	}
	if provider.calls != generateRetries {
		t.Fatalf("unexpected Generate attempts: got=%d want=%d", provider.calls, generateRetries)
	}

	if q := pool.Generate("wcr"); q != nil {
		t.Fatalf("Generate() after exhausting fallback = %+v, want nil", q)
	}
}

func TestGenerateDynamicWithoutAllTypes(t *testing.T) {
	history := newMemoryHistory()
	_ = history.MarkAsked("wcr", "dup")

	pool := New(history)
	pool.Register("wcr", &fixedProvider{question: &types.Question{ID: "dup"}})

	if q := pool.Generate("wcr"); q != nil {
		t.Fatalf("Generate() = %+v, want nil", q)
	}
}

func TestGenerateDynamicFresh(t *testing.T) {
	history := newMemoryHistory()
	pool := New(history)
	pool.Register("wcr", &fixedProvider{question: &types.Question{ID: "fresh"}})

	q := pool.Generate("wcr")
	if q == nil || q.ID != "fresh" {
		t.Fatalf("unexpected question: %+v", q)
	}
	if got := history.AskedIDs("wcr"); len(got) != 1 || got[0] != "fresh" {
		t.Fatalf("question was not marked asked: %v", got)
	}
}

func TestUnasked(t *testing.T) {
	history := newMemoryHistory()
	_ = history.MarkAsked("wcr", "b")
	pool := New(history)

	got := pool.unasked("wcr", []types.Question{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Fatalf("unexpected filtered questions: %+v", got)
	}
}

func TestLoadBank(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "lore"), 0755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	content := `{
		"Helden": [
			{"id": 1, "frage": "Wer ist der Lichkönig?", "antworten": ["Arthas", "Arthas Menethil"]},
			{"id": "h2", "frage": "Wer führt die Horde?", "antworten": ["Thrall"]},
			{"id": "broken", "frage": "", "antworten": ["x"]}
		],
		"Orte": [
			{"frage": "Wo steht der Eisthron?", "antworten": ["Eiskrone"]}
		]
	}`
	if err := os.WriteFile(filepath.Join(dir, "lore", "de.json"), []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	bank, err := LoadBank(dir, "lore", "deu")
	if err != nil {
		t.Fatalf("LoadBank failed: %v", err)
	}
	if bank.Size() != 3 {
		t.Fatalf("unexpected bank size: got=%d want=3", bank.Size())
	}
	heroes := bank["Helden"]
	if heroes[0].ID != "1" || heroes[1].ID != "h2" {
		t.Fatalf("unexpected ids: %q %q", heroes[0].ID, heroes[1].ID)
	}
	if bank["Orte"][0].ID != "Orte-0" {
		t.Fatalf("unexpected generated id: %q", bank["Orte"][0].ID)
	}
	if heroes[0].Category != "Helden" {
		t.Fatalf("unexpected category: %q", heroes[0].Category)
	}
}

func TestLoadBankMissing(t *testing.T) {
	_, err := LoadBank(t.TempDir(), "lore", "deu")
	if !errors.Is(err, ErrBankNotFound) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAllTypes(t *testing.T) {
	history := newMemoryHistory()
	_ = history.MarkAsked("wcr", "a")
	pool := New(history)

	if got := pool.AllTypes("wcr"); got != nil {
		t.Fatalf("AllTypes() without provider = %+v, want nil", got)
	}

	pool.Register("wcr", &allTypesProvider{fixedProvider{all: []types.Question{{ID: "a"}, {ID: "b"}}}})
	got := pool.AllTypes("wcr")
	if len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("unexpected all-types questions: %+v", got)
	}
	if len(history.AskedIDs("wcr")) != 1 {
		t.Fatalf("AllTypes must not mark questions asked")
	}
}
