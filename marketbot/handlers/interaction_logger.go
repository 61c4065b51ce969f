package handlers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"

	"github.com/ellavondegurechaff/marketbot/marketbot/config"
)

// WrapWithLogging logs start, completion, slowness and timeout of a slash command.
func WrapWithLogging(name string, h handler.CommandHandler) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		return observe("Command", name, e.User(), func() error { return h(e) })
	}
}

// WrapComponentWithLogging is WrapWithLogging for buttons and menus.
func WrapComponentWithLogging(name string, h handler.ComponentHandler) handler.ComponentHandler {
	return func(e *handler.ComponentEvent) error {
		return observe("Component", name, e.User(), func() error { return h(e) })
	}
}

func observe(kind, name string, user discord.User, run func() error) error {
	return observeWithin(kind, name, user, config.CommandExecutionTimeout, run)
}

func observeWithin(kind, name string, user discord.User, timeout time.Duration, run func() error) error {
	start := time.Now()
	attrs := []any{
		slog.String("type", "cmd"),
		slog.String("name", name),
		slog.String("user_id", user.ID.String()),
		slog.String("user_name", user.Username),
	}

	slog.Debug(kind+" started", attrs...)

	done := make(chan error, 1)
	go func() {
		done <- run()
	}()

	select {
	case err := <-done:
		took := time.Since(start)
		attrs = append(attrs, slog.Duration("took", took))

		switch {
		case err != nil:
			slog.Error(kind+" failed", append(attrs,
				slog.String("error", err.Error()),
				slog.String("status", "failed"))...)
		case took > config.SlowCommandThreshold:
			slog.Warn(kind+" executed slowly", append(attrs, slog.String("status", "slow"))...)
		default:
			slog.Info(kind+" completed", append(attrs, slog.String("status", "success"))...)
		}
		return err

	case <-time.After(timeout):
		slog.Error(kind+" timed out", append(attrs,
			slog.String("status", "timeout"),
			slog.Duration("timeout", timeout))...)
		return fmt.Errorf("%s %s timed out after %s", kind, name, timeout)
	}
}
