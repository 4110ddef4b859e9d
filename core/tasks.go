package core

import (
	"context"
	"sync"
)

// TaskGroup spawns goroutines bound to a single session's lifetime. Closing
// the group cancels the shared context and waits for every task to return,
// so session teardown never leaves orphaned background work behind.
type TaskGroup struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *Logger
}

func NewTaskGroup(parent context.Context, logger *Logger) *TaskGroup {
	if logger == nil {
		logger = GetLogger()
	}
	ctx, cancel := context.WithCancel(parent)
	return &TaskGroup{
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Context returns the group's context. Tasks should honor its cancellation.
func (g *TaskGroup) Context() context.Context {
	return g.ctx
}

// Go runs fn in a new goroutine tracked by the group. Panics are recovered
// and logged so one broken task cannot take down the session's process.
func (g *TaskGroup) Go(name string, fn func(ctx context.Context)) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.logger.Errorf("task %s panicked: %v", name, r)
			}
		}()
		fn(g.ctx)
	}()
}

// Close cancels the group's context and blocks until all tasks have returned.
// Safe to call more than once.
func (g *TaskGroup) Close() {
	g.cancel()
	g.wg.Wait()
}
