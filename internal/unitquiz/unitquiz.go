// Package unitquiz generates comparison questions from unit reference data:
// "which of these two units has more health?".
package unitquiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"strings"

	"github.com/ichi0g0y/champion-bot/internal/language"
	"github.com/ichi0g0y/champion-bot/internal/types"
)

var ErrNotEnoughUnits = errors.New("at least two units are required")

// Attribute is a numeric unit stat a question can compare.
type Attribute string

const (
	AttrCost   Attribute = "cost"
	AttrHealth Attribute = "health"
	AttrDamage Attribute = "damage"
	AttrSpeed  Attribute = "speed"
)

// Attributes lists every comparable stat in question order.
var Attributes = []Attribute{AttrCost, AttrHealth, AttrDamage, AttrSpeed}

// Unit is one entry of the units file.
type Unit struct {
	ID     string            `json:"id"`
	Name   string            `json:"name"`
	Names  map[string]string `json:"names"`
	Cost   float64           `json:"cost"`
	Health float64           `json:"health"`
	Damage float64           `json:"damage"`
	Speed  float64           `json:"speed"`
}

func (u Unit) value(attr Attribute) float64 {
	switch attr {
	case AttrCost:
		return u.Cost
	case AttrHealth:
		return u.Health
	case AttrDamage:
		return u.Damage
	case AttrSpeed:
		return u.Speed
	}
	return 0
}

// DisplayName returns the unit name in lang, falling back to Name and ID.
func (u Unit) DisplayName(lang string) string {
	if name := u.Names[language.ShortCode(lang)]; name != "" {
		return name
	}
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

var templates = map[string]map[Attribute]string{
	"de": {
		AttrCost:   "Welche Einheit kostet mehr Elixier: %s oder %s?",
		AttrHealth: "Welche Einheit hat mehr Lebenspunkte: %s oder %s?",
		AttrDamage: "Welche Einheit verursacht mehr Schaden: %s oder %s?",
		AttrSpeed:  "Welche Einheit ist schneller: %s oder %s?",
	},
	"en": {
		AttrCost:   "Which unit costs more: %s or %s?",
		AttrHealth: "Which unit has more health: %s or %s?",
		AttrDamage: "Which unit deals more damage: %s or %s?",
		AttrSpeed:  "Which unit is faster: %s or %s?",
	},
}

var randIntn = rand.IntN

// Provider compares pairs of units. It implements questionpool.Provider and
// questionpool.AllTypesProvider.
type Provider struct {
	units []Unit
	lang  string
}

// NewProvider needs at least two units.
func NewProvider(units []Unit, lang string) (*Provider, error) {
	if len(units) < 2 {
		return nil, ErrNotEnoughUnits
	}
	sorted := append([]Unit(nil), units...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	short := language.ShortCode(lang)
	if _, ok := templates[short]; !ok {
		short = "en"
	}
	return &Provider{units: sorted, lang: short}, nil
}

// LoadUnits reads a JSON array of units.
func LoadUnits(path string) ([]Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read units file: %w", err)
	}

	var units []Unit
	if err := json.Unmarshal(data, &units); err != nil {
		return nil, fmt.Errorf("failed to parse units file: %w", err)
	}

	valid := units[:0]
	for _, u := range units {
		if strings.TrimSpace(u.ID) == "" {
			continue
		}
		valid = append(valid, u)
	}
	return valid, nil
}

// Generate returns one question for a random pair and attribute, or nil when
// the drawn pair ties on the drawn attribute.
func (p *Provider) Generate() *types.Question {
	a, b := p.pair()
	attr := Attributes[randIntn(len(Attributes))]
	q, ok := p.question(a, b, attr)
	if !ok {
		return nil
	}
	return &q
}

// GenerateAllTypes returns one question per attribute for a single random pair.
func (p *Provider) GenerateAllTypes() []types.Question {
	a, b := p.pair()
	questions := make([]types.Question, 0, len(Attributes))
	for _, attr := range Attributes {
		if q, ok := p.question(a, b, attr); ok {
			questions = append(questions, q)
		}
	}
	return questions
}

func (p *Provider) pair() (Unit, Unit) {
	i := randIntn(len(p.units))
	j := randIntn(len(p.units) - 1)
	if j >= i {
		j++
	}
	return p.units[i], p.units[j]
}

func (p *Provider) question(a, b Unit, attr Attribute) (types.Question, bool) {
	va, vb := a.value(attr), b.value(attr)
	if va == vb {
		return types.Question{}, false
	}

	winner := a
	if vb > va {
		winner = b
	}

	// the ID does not depend on the order the pair is shown in
	first, second := a.ID, b.ID
	if second < first {
		first, second = second, first
	}

	return types.Question{
		ID:       fmt.Sprintf("%s:%s:%s", attr, first, second),
		Text:     fmt.Sprintf(templates[p.lang][attr], a.DisplayName(p.lang), b.DisplayName(p.lang)),
		Answers:  []string{winner.DisplayName(p.lang)},
		Category: string(attr),
	}, true
}
