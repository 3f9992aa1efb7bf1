package quiz

import (
	"context"
	"sync"

	"github.com/ichi0g0y/champion-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// Supervisor owns one background task per area. Tasks observe cancellation,
// panics are recovered and Shutdown waits for every task to return.
type Supervisor struct {
	ctx    context.Context
	cancel context.CancelFunc
	run    func(ctx context.Context, area string)

	mu    sync.Mutex
	tasks map[string]*task
	wg    sync.WaitGroup
}

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSupervisor(parent context.Context, run func(ctx context.Context, area string)) *Supervisor {
	ctx, cancel := context.WithCancel(parent)
	return &Supervisor{
		ctx:    ctx,
		cancel: cancel,
		run:    run,
		tasks:  make(map[string]*task),
	}
}

// Start launches the task of an area unless it is already running.
func (s *Supervisor) Start(area string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return false
	}
	if _, running := s.tasks[area]; running {
		return false
	}

	ctx, cancel := context.WithCancel(s.ctx)
	t := &task{cancel: cancel, done: make(chan struct{})}
	s.tasks[area] = t

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(t.done)
		defer s.forget(area, t)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("Recovered from panic in area task", zap.String("area", area), zap.Any("panic", r))
			}
		}()
		s.run(ctx, area)
	}()
	return true
}

// Stop cancels the task of an area and waits for it to return.
func (s *Supervisor) Stop(area string) {
	s.mu.Lock()
	t, ok := s.tasks[area]
	s.mu.Unlock()
	if !ok {
		return
	}
	t.cancel()
	<-t.done
}

// Running reports whether the area task is alive.
func (s *Supervisor) Running(area string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[area]
	return ok
}

// Shutdown cancels every task and waits for all of them.
func (s *Supervisor) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

func (s *Supervisor) forget(area string, t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks[area] == t {
		delete(s.tasks, area)
	}
	t.cancel()
}
