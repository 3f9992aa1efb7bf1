package quiz

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/ichi0g0y/champion-bot/internal/quizstate"
	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"github.com/ichi0g0y/champion-bot/internal/types"
	"go.uber.org/zap"
)

// panicBackoff keeps a failing cycle from spinning.
const panicBackoff = 5 * time.Second

// scheduleTarget is what a Scheduler drives; *Manager implements it.
type scheduleTarget interface {
	Area(name string) (types.Area, bool)
	PrepareQuestion(ctx context.Context, area string, end time.Time) error
	CloseQuestion(ctx context.Context, area string, timedOut bool, winnerID, answer string) (bool, error)
	ClearAwaiting(area string)
}

// Scheduler posts at most one question per window for one area. The window
// start is the current minute; the post time is drawn from its first half and
// persisted before sleeping so a restart resumes the same window.
type Scheduler struct {
	area   string
	target scheduleTarget
	state  *quizstate.State

	now        func() time.Time
	sleepUntil func(ctx context.Context, t time.Time) bool
	randInt64N func(n int64) int64
}

func NewScheduler(area string, target scheduleTarget, state *quizstate.State) *Scheduler {
	s := &Scheduler{
		area:       area,
		target:     target,
		state:      state,
		now:        time.Now,
		randInt64N: rand.Int64N,
	}
	s.sleepUntil = s.sleepUntilTime
	return s
}

// Run loops until ctx is cancelled or the area is gone or inactive.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info("Quiz scheduler started", zap.String("area", s.area))
	defer logger.Info("Quiz scheduler stopped", zap.String("area", s.area))

	for {
		keepGoing, panicked := s.safeCycle(ctx)
		if !keepGoing {
			return
		}
		if panicked && !sleepCtx(ctx, panicBackoff) {
			return
		}
	}
}

func (s *Scheduler) safeCycle(ctx context.Context) (keepGoing, panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic in quiz scheduler", zap.String("area", s.area), zap.Any("panic", r))
			keepGoing, panicked = ctx.Err() == nil, true
		}
	}()
	return s.cycle(ctx), false
}

// cycle runs one window. It returns false when the loop should end.
func (s *Scheduler) cycle(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	cfg, ok := s.target.Area(s.area)
	if !ok || !cfg.Active {
		return false
	}

	rec := s.nextWindow(cfg)

	if !s.sleepUntil(ctx, rec.PostTime) {
		return false
	}
	s.guard("prepare", func() {
		if err := s.target.PrepareQuestion(ctx, s.area, rec.WindowEnd); err != nil {
			logger.Error("Failed to prepare question", zap.String("area", s.area), zap.Error(err))
		}
	})
	if err := s.state.ClearSchedule(s.area); err != nil {
		logger.Warn("Failed to clear schedule record", zap.String("area", s.area), zap.Error(err))
	}

	if !s.sleepUntil(ctx, rec.WindowEnd) {
		return false
	}
	s.guard("close", func() {
		if _, err := s.target.CloseQuestion(ctx, s.area, true, "", ""); err != nil {
			logger.Error("Failed to close question at window end", zap.String("area", s.area), zap.Error(err))
		}
	})
	s.target.ClearAwaiting(s.area)
	return true
}

// nextWindow returns the persisted resume point once, or draws a new window.
func (s *Scheduler) nextWindow(cfg types.Area) types.ScheduleRecord {
	now := s.now()

	if rec := s.state.Schedule(s.area); rec != nil {
		if rec.WindowEnd.After(now) {
			logger.Info("Resuming persisted quiz window",
				zap.String("area", s.area), zap.Time("post_time", rec.PostTime), zap.Time("window_end", rec.WindowEnd))
			return *rec
		}
		logger.Info("Discarding expired quiz window", zap.String("area", s.area), zap.Time("window_end", rec.WindowEnd))
	}

	window := cfg.TimeWindow
	if window < time.Minute {
		window = DefaultWindow
	}
	start := now.Truncate(time.Minute)
	offset := time.Duration(0)
	if half := int64(window / 2); half > 0 {
		offset = time.Duration(s.randInt64N(half))
	}
	rec := types.ScheduleRecord{
		PostTime:  start.Add(offset),
		WindowEnd: start.Add(window),
	}

	if err := s.state.SetSchedule(s.area, rec); err != nil {
		logger.Warn("Failed to persist schedule record", zap.String("area", s.area), zap.Error(err))
	}
	logger.Debug("New quiz window",
		zap.String("area", s.area), zap.Time("post_time", rec.PostTime), zap.Time("window_end", rec.WindowEnd))
	return rec
}

func (s *Scheduler) guard(step string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Recovered from panic in quiz step",
				zap.String("area", s.area), zap.String("step", step), zap.Any("panic", r))
		}
	}()
	fn()
}

func (s *Scheduler) sleepUntilTime(ctx context.Context, t time.Time) bool {
	return sleepCtx(ctx, t.Sub(s.now()))
}

// sleepCtx sleeps for d and reports false when ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
