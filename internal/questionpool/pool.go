// Package questionpool hands out quiz questions per area, either from a static
// bank or from a dynamic provider, without repeating an asked question before
// the area's history is reset.
package questionpool

import (
	"math/rand/v2"
	"sort"
	"sync"

	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

// generateRetries is how often a dynamic provider is asked before falling back
// to its exhaustive question set.
const generateRetries = 5

// Provider synthesizes questions for one area.
type Provider interface {
	Generate() *types.Question
}

// AllTypesProvider is implemented by providers that can list every question
// variant they are able to produce right now.
type AllTypesProvider interface {
	GenerateAllTypes() []types.Question
}

// HistoryStore persists asked question IDs per area.
type HistoryStore interface {
	AskedIDs(area string) []string
	MarkAsked(area, questionID string) error
	ResetHistory(area string) error
}

// Bank is a static question bank keyed by category.
type Bank map[string][]types.Question

// Size returns the number of questions in the bank.
func (b Bank) Size() int {
	n := 0
	for _, qs := range b {
		n += len(qs)
	}
	return n
}

var randIntn = rand.IntN

// Pool is safe for concurrent use.
type Pool struct {
	mu        sync.Mutex
	history   HistoryStore
	banks     map[string]Bank
	providers map[string]Provider
}

func New(history HistoryStore) *Pool {
	return &Pool{
		history:   history,
		banks:     make(map[string]Bank),
		providers: make(map[string]Provider),
	}
}

// SetBank replaces the static bank of an area.
func (p *Pool) SetBank(area string, bank Bank) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.banks[area] = bank
}

// Register binds a dynamic provider to an area. Dynamic areas ignore their bank.
func (p *Pool) Register(area string, provider Provider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if provider == nil {
		delete(p.providers, area)
		return
	}
	p.providers[area] = provider
}

// Provider returns the dynamic provider of an area, or nil.
func (p *Pool) Provider(area string) Provider {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.providers[area]
}

// HasQuestions reports whether the area has a bank or a provider.
func (p *Pool) HasQuestions(area string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.providers[area]; ok {
		return true
	}
	return p.banks[area].Size() > 0
}

// Generate returns the next question of an area and marks it asked.
// nil means nothing is available right now.
func (p *Pool) Generate(area string) *types.Question {
	p.mu.Lock()
	defer p.mu.Unlock()

	if provider, ok := p.providers[area]; ok {
		return p.generateDynamic(area, provider)
	}
	return p.generateStatic(area)
}

// AllTypes returns the exhaustive question set of the area's dynamic provider
// without the questions already asked. nil when the area has no such provider.
func (p *Pool) AllTypes(area string) []types.Question {
	p.mu.Lock()
	defer p.mu.Unlock()

	all, ok := p.providers[area].(AllTypesProvider)
	if !ok {
		return nil
	}
	result := p.unasked(area, all.GenerateAllTypes())
	if len(result) == 0 {
		return nil
	}
	return result
}

// MarkAsked records a question handed out outside Generate (duel rounds).
func (p *Pool) MarkAsked(area, questionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markAsked(area, questionID)
}

// ResetHistory forgets every asked question of the area.
func (p *Pool) ResetHistory(area string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.history.ResetHistory(area)
}

func (p *Pool) generateStatic(area string) *types.Question {
	bank := p.banks[area]
	categories := make([]string, 0, len(bank))
	for name, qs := range bank {
		if len(qs) > 0 {
			categories = append(categories, name)
		}
	}
	if len(categories) == 0 {
		logger.Warn("No questions configured for area", zap.String("area", area))
		return nil
	}
	sort.Strings(categories)

	category := categories[randIntn(len(categories))]
	questions := bank[category]

	candidates := p.unasked(area, questions)
	if len(candidates) == 0 {
		logger.Info("Question category exhausted, resetting history",
			zap.String("area", area), zap.String("category", category))
		if err := p.history.ResetHistory(area); err != nil {
			logger.Error("Failed to reset question history", zap.String("area", area), zap.Error(err))
		}
		candidates = questions
	}

	picked := candidates[randIntn(len(candidates))]
	if picked.Category == "" {
		picked.Category = category
	}
	p.markAsked(area, picked.ID)
	return &picked
}

func (p *Pool) generateDynamic(area string, provider Provider) *types.Question {
	asked := p.askedSet(area)

	for attempt := 0; attempt < generateRetries; attempt++ {
		q := provider.Generate()
		if q == nil {
			continue
		}
		if _, seen := asked[q.ID]; seen {
			continue
		}
		p.markAsked(area, q.ID)
		return q
	}

	all, ok := provider.(AllTypesProvider)
	if !ok {
		logger.Debug("Dynamic provider exhausted", zap.String("area", area))
		return nil
	}

	candidates := p.unasked(area, all.GenerateAllTypes())
	if len(candidates) == 0 {
		logger.Debug("Dynamic provider fallback exhausted", zap.String("area", area))
		return nil
	}

	picked := candidates[randIntn(len(candidates))]
	p.markAsked(area, picked.ID)
	return &picked
}

// unasked filters questions already asked in the area. Callers hold p.mu.
func (p *Pool) unasked(area string, questions []types.Question) []types.Question {
	asked := p.askedSet(area)
	result := make([]types.Question, 0, len(questions))
	for _, q := range questions {
		if _, seen := asked[q.ID]; !seen {
			result = append(result, q)
		}
	}
	return result
}

func (p *Pool) askedSet(area string) map[string]struct{} {
	ids := p.history.AskedIDs(area)
	asked := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		asked[id] = struct{}{}
	}
	return asked
}

func (p *Pool) markAsked(area, questionID string) {
	if err := p.history.MarkAsked(area, questionID); err != nil {
		logger.Error("Failed to mark question as asked",
			zap.String("area", area), zap.String("question_id", questionID), zap.Error(err))
	}
}
