package main

import (
	"github.com/ichi0g0y/champion-bot/internal/env"
	"github.com/ichi0g0y/champion-bot/internal/questionpool"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"github.com/ichi0g0y/champion-bot/internal/unitquiz"
	"go.uber.org/zap"
)

// unitArea is the area whose questions are generated from the unit file.
const unitArea = "wcr"

// loadQuestionSources installs the static banks of all configured areas and
// the unit comparison provider.
func loadQuestionSources(pool *questionpool.Pool, areas []types.Area) {
	unitLang := ""
	for _, area := range areas {
		if area.Name == unitArea {
			unitLang = area.Language
		}
		if err := pool.LoadArea(env.Value.QuestionsDir, area); err != nil {
			logger.Warn("Failed to load question bank", zap.String("area", area.Name), zap.Error(err))
		}
	}

	if env.Value.UnitsFile == "" {
		return
	}
	if unitLang == "" {
		unitLang = env.Value.QuizDefaultLanguage
	}

	units, err := unitquiz.LoadUnits(env.Value.UnitsFile)
	if err != nil {
		logger.Warn("Failed to load unit data", zap.String("path", env.Value.UnitsFile), zap.Error(err))
		return
	}
	provider, err := unitquiz.NewProvider(units, unitLang)
	if err != nil {
		logger.Warn("Unit quiz disabled", zap.Error(err))
		return
	}
	pool.Register(unitArea, provider)
	logger.Info("Unit quiz provider registered", zap.String("area", unitArea), zap.Int("units", len(units)))
}
