package quiz

import (
	"context"

	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	backfillLookback = 20
	backfillTarget   = 10
	backfillWorkers  = 4
)

// Backfill restores per-channel activity after a restart and deals with
// questions left open by the previous process.
//
// For every configured channel the recent history is scanned newest first,
// counting non-bot messages until backfillTarget is reached. Meeting the still
// open question of the area stops the scan and closes that question as timed
// out; the messages counted so far stay on the counter. A channel whose history
// could not be read stays uninitialized, so its first question skips the
// activity gate.
func (m *Manager) Backfill(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(backfillWorkers)

	for _, area := range m.Areas() {
		if area.ChannelID == "" {
			continue
		}
		area := area
		g.Go(func() error {
			defer recoverTask("backfill", area.Name)
			m.backfillArea(gctx, area)
			return gctx.Err()
		})
	}
	return g.Wait()
}

func (m *Manager) backfillArea(ctx context.Context, area types.Area) {
	active := m.state.Active(area.Name)

	messages, err := m.chat.RecentMessages(ctx, area.ChannelID, backfillLookback)
	if err != nil {
		logger.Warn("Failed to read channel history for backfill",
			zap.String("area", area.Name), zap.String("channel_id", area.ChannelID), zap.Error(err))
		m.resumeActive(ctx, area.Name)
		return
	}

	count := 0
	foundOpen := false
	for _, msg := range messages {
		if active != nil && msg.ID == active.MessageID {
			foundOpen = true
			break
		}
		if msg.FromBot {
			continue
		}
		count++
		if count >= backfillTarget {
			break
		}
	}

	if foundOpen {
		logger.Info("Closing question left open before restart",
			zap.String("area", area.Name), zap.String("question_id", active.QuestionID))
		if _, err := m.CloseQuestion(ctx, area.Name, true, "", ""); err != nil {
			logger.Error("Failed to close stale question", zap.String("area", area.Name), zap.Error(err))
		}
	} else {
		m.resumeActive(ctx, area.Name)
	}

	m.tracker.Set(area.ChannelID, count)
	m.tracker.MarkInitialized(area.ChannelID)
	logger.Debug("Activity backfilled",
		zap.String("area", area.Name), zap.Int("messages", count), zap.Bool("closed_open_question", foundOpen))
}

// resumeActive re-arms the auto-close timer of a question that survived a
// restart, or closes it when its end time already passed.
func (m *Manager) resumeActive(ctx context.Context, area string) {
	rt := m.runtime(area)
	if rt == nil {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()

	info := m.state.Active(area)
	if info == nil {
		return
	}
	if !info.EndTime.After(m.now()) {
		if _, err := m.closeLocked(ctx, rt, area, CloseResult{TimedOut: true}); err != nil {
			logger.Error("Failed to close expired question", zap.String("area", area), zap.Error(err))
		}
		return
	}

	rt.messageID = info.MessageID
	rt.answered = make(map[string]struct{})
	m.armCloseTimer(rt, area, info.MessageID, info.EndTime)
	logger.Info("Resumed open question", zap.String("area", area), zap.Time("end_time", info.EndTime))
}
