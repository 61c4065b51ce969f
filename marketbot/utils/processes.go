package utils

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ProcessGroup owns the bot's long-running goroutines (sweep loops, event
// publishers) and stops them together on shutdown.
type ProcessGroup struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	processes map[string]context.CancelFunc
}

func NewProcessGroup(parent context.Context) *ProcessGroup {
	ctx, cancel := context.WithCancel(parent)
	return &ProcessGroup{
		ctx:       ctx,
		cancel:    cancel,
		processes: make(map[string]context.CancelFunc),
	}
}

// Go starts fn under name. A process already running under the same name is
// cancelled first.
func (g *ProcessGroup) Go(name string, fn func(ctx context.Context)) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if stop, ok := g.processes[name]; ok {
		slog.Warn("Process already running, replacing it",
			slog.String("type", "sys"),
			slog.String("process", name))
		stop()
	}

	ctx, cancel := context.WithCancel(g.ctx)
	g.processes[name] = cancel

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Background process panic",
					slog.String("type", "sys"),
					slog.String("process", name),
					slog.Any("panic", r))
			}
		}()

		slog.Debug("Background process started",
			slog.String("type", "sys"),
			slog.String("process", name))
		fn(ctx)
		slog.Debug("Background process ended",
			slog.String("type", "sys"),
			slog.String("process", name))
	}()
}

// Shutdown cancels every process and waits up to timeout for them to return.
func (g *ProcessGroup) Shutdown(timeout time.Duration) error {
	g.cancel()

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		slog.Warn("Timeout waiting for background processes to stop",
			slog.String("type", "sys"),
			slog.Duration("timeout", timeout))
		return context.DeadlineExceeded
	}
}

// Every runs fn immediately and then on each interval until ctx is done.
func Every(ctx context.Context, interval time.Duration, fn func(ctx context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn(ctx)
	for {
		select {
		case <-ticker.C:
			fn(ctx)
		case <-ctx.Done():
			return
		}
	}
}
