package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"go.uber.org/zap"
)

const (
	defaultAnswerRetention = 7 * 24 * time.Hour
	answerPruneInterval    = time.Hour
)

// PruneAnswers deletes answers older than the retention window. Answers to a
// live question are kept so a user still cannot answer it twice.
func (m *Manager) PruneAnswers() (int64, error) {
	if m.answers == nil {
		return 0, nil
	}

	var live []string
	for _, area := range m.Areas() {
		if info := m.state.Active(area.Name); info != nil && info.MessageID != "" {
			live = append(live, info.MessageID)
		}
	}

	deleted, err := m.answers.PruneAnswers(m.now().Add(-m.retention), live)
	if err != nil {
		return 0, fmt.Errorf("failed to prune quiz answers: %w", err)
	}
	return deleted, nil
}

func (m *Manager) pruneLoop(ctx context.Context) {
	defer m.timers.Done()
	defer recoverTask("answer-retention", "")

	ticker := time.NewTicker(answerPruneInterval)
	defer ticker.Stop()

	for {
		if deleted, err := m.PruneAnswers(); err != nil {
			logger.Warn("Answer retention failed", zap.Error(err))
		} else if deleted > 0 {
			logger.Info("Pruned old quiz answers", zap.Int64("deleted", deleted))
		}

		select {
		case <-ctx.Done():
			return
		case <-m.timerCtx.Done():
			return
		case <-ticker.C:
		}
	}
}
