package questionpool

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ichi0g0y/champion-bot/internal/language"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

var ErrBankNotFound = errors.New("question bank not found")

type bankEntry struct {
	ID        json.RawMessage `json:"id"`
	Frage     string          `json:"frage"`
	Antworten []string        `json:"antworten"`
}

// BankPath returns the candidate files for an area bank, most specific first.
func BankPath(dir, area, lang string) []string {
	short := language.ShortCode(lang)
	paths := []string{filepath.Join(dir, area, short+".json")}
	if long := language.NormalizeLanguageCode(lang); long != "" && long != short {
		paths = append(paths, filepath.Join(dir, area, long+".json"))
	}
	return paths
}

// LoadBank reads the static bank of an area in the given language.
// The file maps category names to lists of {id, frage, antworten}.
func LoadBank(dir, area, lang string) (Bank, error) {
	var (
		data []byte
		path string
		err  error
	)
	for _, candidate := range BankPath(dir, area, lang) {
		data, err = os.ReadFile(candidate)
		if err == nil {
			path = candidate
			break
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read question bank %s: %w", candidate, err)
		}
	}
	if path == "" {
		return nil, fmt.Errorf("%w: area=%s lang=%s", ErrBankNotFound, area, lang)
	}

	var raw map[string][]bankEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse question bank %s: %w", path, err)
	}

	bank := make(Bank, len(raw))
	mismatches := 0
	for category, entries := range raw {
		questions := make([]types.Question, 0, len(entries))
		for i, entry := range entries {
			if strings.TrimSpace(entry.Frage) == "" || len(entry.Antworten) == 0 {
				logger.Warn("Skipping incomplete question",
					zap.String("area", area), zap.String("category", category), zap.Int("index", i))
				continue
			}

			id := parseEntryID(entry.ID)
			if id == "" {
				id = fmt.Sprintf("%s-%d", category, i)
			}

			if detected, mismatch := language.Mismatch(entry.Frage, lang); mismatch {
				mismatches++
				logger.Warn("Question language differs from area language",
					zap.String("area", area),
					zap.String("question_id", id),
					zap.String("expected", language.NormalizeLanguageCode(lang)),
					zap.String("detected", detected))
			}

			questions = append(questions, types.Question{
				ID:       id,
				Text:     entry.Frage,
				Answers:  entry.Antworten,
				Category: category,
			})
		}
		if len(questions) > 0 {
			bank[category] = questions
		}
	}

	logger.Info("Question bank loaded",
		zap.String("area", area),
		zap.String("path", path),
		zap.Int("categories", len(bank)),
		zap.Int("questions", bank.Size()),
		zap.Int("language_mismatches", mismatches))
	return bank, nil
}

// LoadArea loads and installs the bank of one area.
func (p *Pool) LoadArea(dir string, area types.Area) error {
	bank, err := LoadBank(dir, area.Name, area.Language)
	if err != nil {
		return err
	}
	p.SetBank(area.Name, bank)
	return nil
}

func parseEntryID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}
