package quiz

import (
	"context"
	"fmt"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/language"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

// Defaults for an area enabled for the first time.
const (
	DefaultWindow    = 15 * time.Minute
	DefaultThreshold = 10
	MaxWindowMinutes = 24 * 60
)

// Remaining describes the timing of an area for the "remaining" command.
type Remaining struct {
	Area           string    `json:"area"`
	QuestionActive bool      `json:"question_active"`
	QuestionEnds   time.Time `json:"question_ends,omitempty"`
	NextPost       time.Time `json:"next_post,omitempty"`
	WindowEnd      time.Time `json:"window_end,omitempty"`
	Awaiting       bool      `json:"awaiting_activity"`
	Messages       int       `json:"messages"`
	Threshold      int       `json:"threshold"`
}

// EnableArea activates an area in channelID and starts its scheduler.
// Unknown areas are created with default settings.
func (m *Manager) EnableArea(ctx context.Context, name, channelID string) (types.Area, error) {
	if name == "" {
		return types.Area{}, ErrUnknownArea
	}
	if channelID == "" {
		return types.Area{}, ErrNoChannel
	}

	m.mu.Lock()
	rt, ok := m.runtimes[name]
	if !ok {
		rt = &Runtime{area: types.Area{
			Name:              name,
			TimeWindow:        DefaultWindow,
			Language:          m.defaultLang,
			ActivityThreshold: DefaultThreshold,
		}}
		m.runtimes[name] = rt
	}
	m.mu.Unlock()

	area, err := m.mutateArea(rt, func(a *types.Area) error {
		a.ChannelID = channelID
		a.Active = true
		return nil
	})
	if err != nil {
		return types.Area{}, err
	}

	if m.pool.Provider(name) == nil && !m.pool.HasQuestions(name) && m.questionsDir != "" {
		if err := m.pool.LoadArea(m.questionsDir, area); err != nil {
			logger.Warn("Failed to load question bank", zap.String("area", name), zap.Error(err))
		}
	}

	if m.supervisor != nil {
		m.supervisor.Start(name)
	}
	logger.Info("Quiz area enabled", zap.String("area", name), zap.String("channel_id", channelID))
	return area, nil
}

// DisableArea deactivates an area and stops its scheduler. A live question is
// left to its auto-close timer.
func (m *Manager) DisableArea(ctx context.Context, name string) (types.Area, error) {
	rt := m.runtime(name)
	if rt == nil {
		return types.Area{}, ErrUnknownArea
	}

	area, err := m.mutateArea(rt, func(a *types.Area) error {
		a.Active = false
		return nil
	})
	if err != nil {
		return types.Area{}, err
	}

	if m.supervisor != nil {
		m.supervisor.Stop(name)
	}
	if area.ChannelID != "" {
		m.tracker.ClearAwaiting(area.ChannelID)
	}
	if err := m.state.ClearSchedule(name); err != nil {
		logger.Warn("Failed to clear schedule", zap.String("area", name), zap.Error(err))
	}
	logger.Info("Quiz area disabled", zap.String("area", name))
	return area, nil
}

// SetTimeWindow changes the window length. It applies from the next window on.
func (m *Manager) SetTimeWindow(name string, minutes int) (types.Area, error) {
	if minutes < 1 || minutes > MaxWindowMinutes {
		return types.Area{}, fmt.Errorf("%w: %d minutes", ErrInvalidWindow, minutes)
	}
	rt := m.runtime(name)
	if rt == nil {
		return types.Area{}, ErrUnknownArea
	}
	return m.mutateArea(rt, func(a *types.Area) error {
		a.TimeWindow = time.Duration(minutes) * time.Minute
		return nil
	})
}

// SetThreshold changes the number of messages required before a question posts.
func (m *Manager) SetThreshold(name string, threshold int) (types.Area, error) {
	if threshold < 0 {
		return types.Area{}, fmt.Errorf("%w: %d", ErrInvalidThreshold, threshold)
	}
	rt := m.runtime(name)
	if rt == nil {
		return types.Area{}, ErrUnknownArea
	}
	return m.mutateArea(rt, func(a *types.Area) error {
		a.ActivityThreshold = threshold
		return nil
	})
}

// SetLanguage switches the area language and reloads its static bank.
func (m *Manager) SetLanguage(name, code string) (types.Area, error) {
	if !language.IsSupported(code) {
		return types.Area{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	rt := m.runtime(name)
	if rt == nil {
		return types.Area{}, ErrUnknownArea
	}

	area, err := m.mutateArea(rt, func(a *types.Area) error {
		a.Language = language.NormalizeLanguageCode(code)
		return nil
	})
	if err != nil {
		return types.Area{}, err
	}

	if m.pool.Provider(name) == nil && m.questionsDir != "" {
		if err := m.pool.LoadArea(m.questionsDir, area); err != nil {
			logger.Warn("Failed to reload question bank", zap.String("area", name), zap.Error(err))
		}
	}
	return area, nil
}

// ForceAsk posts a question right away, bypassing the activity gate.
func (m *Manager) ForceAsk(ctx context.Context, name string) error {
	area, ok := m.Area(name)
	if !ok {
		return ErrUnknownArea
	}
	window := area.TimeWindow
	if window <= 0 {
		window = DefaultWindow
	}
	if err := m.AskQuestion(ctx, name, m.now().Add(window)); err != nil {
		return err
	}
	if m.state.Active(name) == nil {
		return ErrNoQuestion
	}
	return nil
}

// Reveal closes the live question as timed out.
func (m *Manager) Reveal(ctx context.Context, name string) error {
	if _, ok := m.Area(name); !ok {
		return ErrUnknownArea
	}
	closed, err := m.CloseQuestion(ctx, name, true, "", "")
	if err != nil {
		return err
	}
	if !closed {
		return ErrNoActiveQuestion
	}
	return nil
}

// Remaining reports the live question and schedule of an area.
func (m *Manager) Remaining(name string) (Remaining, error) {
	area, ok := m.Area(name)
	if !ok {
		return Remaining{}, ErrUnknownArea
	}

	r := Remaining{Area: name, Threshold: area.ActivityThreshold}
	if info := m.state.Active(name); info != nil {
		r.QuestionActive = true
		r.QuestionEnds = info.EndTime
	}
	if rec := m.state.Schedule(name); rec != nil {
		r.NextPost = rec.PostTime
		r.WindowEnd = rec.WindowEnd
	}
	if area.ChannelID != "" {
		r.Messages = m.tracker.Get(area.ChannelID)
		if p, ok := m.tracker.Awaiting(area.ChannelID); ok {
			r.Awaiting = true
			if r.WindowEnd.IsZero() {
				r.WindowEnd = p.EndTime
			}
		}
	}
	return r, nil
}

// ResetHistory forgets every asked question of an area.
func (m *Manager) ResetHistory(name string) error {
	if _, ok := m.Area(name); !ok {
		return ErrUnknownArea
	}
	return m.pool.ResetHistory(name)
}

func (m *Manager) mutateArea(rt *Runtime, mutate func(a *types.Area) error) (types.Area, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	next := rt.area
	if err := mutate(&next); err != nil {
		return types.Area{}, err
	}
	if m.areas != nil {
		if err := m.areas.SaveArea(next); err != nil {
			return types.Area{}, fmt.Errorf("failed to save area: %w", err)
		}
	}
	rt.area = next
	return next, nil
}
