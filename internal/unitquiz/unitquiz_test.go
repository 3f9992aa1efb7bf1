package unitquiz

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testUnits() []Unit {
	return []Unit{
		{ID: "gargoyle", Names: map[string]string{"de": "Gargoyle", "en": "Gargoyle"}, Cost: 2, Health: 100, Damage: 40, Speed: 3},
		{ID: "abomination", Names: map[string]string{"de": "Monstrosität", "en": "Abomination"}, Cost: 5, Health: 900, Damage: 40, Speed: 1},
	}
}

func TestNewProviderNeedsTwoUnits(t *testing.T) {
	_, err := NewProvider(testUnits()[:1], "deu")
	if !errors.Is(err, ErrNotEnoughUnits) {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerateAllTypesSkipsTies(t *testing.T) {
	p, err := NewProvider(testUnits(), "deu")
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	questions := p.GenerateAllTypes()
	// damage ties at 40
	if len(questions) != 3 {
		t.Fatalf("unexpected question count: got=%d want=3", len(questions))
	}

	byCategory := make(map[string][]string)
	for _, q := range questions {
		byCategory[q.Category] = q.Answers
		if !strings.HasPrefix(q.Text, "Welche Einheit") {
			t.Fatalf("unexpected question text: %q", q.Text)
		}
	}
	if got := byCategory["health"]; len(got) != 1 || got[0] != "Monstrosität" {
		t.Fatalf("unexpected health answer: %v", got)
	}
	if got := byCategory["speed"]; len(got) != 1 || got[0] != "Gargoyle" {
		t.Fatalf("unexpected speed answer: %v", got)
	}
}

func TestQuestionIDIsOrderIndependent(t *testing.T) {
	p, err := NewProvider(testUnits(), "eng")
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}
	units := testUnits()

	q1, ok1 := p.question(units[0], units[1], AttrHealth)
	q2, ok2 := p.question(units[1], units[0], AttrHealth)
	if !ok1 || !ok2 {
		t.Fatalf("expected both questions to be generated")
	}
	if q1.ID != q2.ID {
		t.Fatalf("question IDs differ: %q vs %q", q1.ID, q2.ID)
	}
	if q1.ID != "health:abomination:gargoyle" {
		t.Fatalf("unexpected id: %q", q1.ID)
	}
}

func TestGenerateReturnsNilOnTie(t *testing.T) {
	original := randIntn
	defer func() {
		randIntn = original
	}()

	p, err := NewProvider(testUnits(), "eng")
	if err != nil {
		t.Fatalf("NewProvider failed: %v", err)
	}

	// pair (0, 1), then attribute index 2 = damage
	draws := []int{0, 0, 2}
	randIntn = func(n int) int {
		v := draws[0]
		draws = draws[1:]
		return v
	}

	if q := p.Generate(); q != nil {
		t.Fatalf("Generate() = %+v, want nil for a tied attribute", q)
	}
}

func TestLoadUnits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "units.json")
	content := `[{"id":"a","name":"A","cost":1},{"id":"","name":"ghost"},{"id":"b","name":"B","cost":2}]`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	units, err := LoadUnits(path)
	if err != nil {
		t.Fatalf("LoadUnits failed: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("unexpected unit count: got=%d want=2", len(units))
	}
}
