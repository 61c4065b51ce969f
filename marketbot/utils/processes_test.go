package utils

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestProcessGroupShutdown(t *testing.T) {
	g := NewProcessGroup(context.Background())

	var stopped atomic.Int32
	for _, name := range []string{"sweep", "refresh"} {
		g.Go(name, func(ctx context.Context) {
			<-ctx.Done()
			stopped.Add(1)
		})
	}

	assert.NoError(t, g.Shutdown(time.Second))
	check.Equal(t, int32(2), stopped.Load())
}

func TestProcessGroupReplace(t *testing.T) {
	g := NewProcessGroup(context.Background())

	first := make(chan struct{})
	g.Go("sweep", func(ctx context.Context) {
		<-ctx.Done()
		close(first)
	})
	var second atomic.Bool
	g.Go("sweep", func(ctx context.Context) {
		<-ctx.Done()
		second.Store(true)
	})

	select {
	case <-first:
	case <-time.After(time.Second):
		t.Fatal("replaced process was not cancelled")
	}
	check.False(t, second.Load())

	assert.NoError(t, g.Shutdown(time.Second))
	check.True(t, second.Load())
}

func TestProcessGroupShutdownTimeout(t *testing.T) {
	g := NewProcessGroup(context.Background())
	release := make(chan struct{})
	g.Go("stuck", func(context.Context) { <-release })

	err := g.Shutdown(10 * time.Millisecond)
	check.Equal(t, context.DeadlineExceeded, err)
	close(release)
}

func TestEveryRunsImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		Every(ctx, time.Hour, func(context.Context) {
			calls.Add(1)
			cancel()
		})
		close(done)
	}()

	<-done
	check.Equal(t, int32(1), calls.Load())
}
