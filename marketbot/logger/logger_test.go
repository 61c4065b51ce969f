package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo))

	log.Info("Bid accepted",
		slog.String("type", "sys"),
		slog.Int64("auction_id", 7),
		slog.Int64("amount", 150000))

	line := buf.String()
	check.True(t, strings.HasPrefix(line, "[Marketbot] ["))
	check.True(t, strings.Contains(line, "[INFO] [SYS] Bid accepted auction_id=7 amount=150000"))
	check.False(t, strings.Contains(line, "type="))
	check.False(t, strings.Contains(line, "\033["))
}

func TestHandlerLevelAndTypes(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelInfo))

	log.Debug("hidden")
	check.Equal(t, "", buf.String())

	log.Warn("Slow query", slog.String("type", "db"))
	check.True(t, strings.Contains(buf.String(), "[WARN] [DB] Slow query"))
	buf.Reset()

	log.Error("Command failed",
		slog.String("type", "cmd"),
		slog.String("name", "auction"),
		slog.String("user_name", "alice"),
		slog.String("error", errors.New("boom").Error()))
	line := buf.String()
	check.True(t, strings.Contains(line, "[ERROR] [CMD] Command failed ("))
	check.True(t, strings.Contains(line, ": boom [auction by alice]"))
	check.False(t, strings.Contains(line, "error=boom"))
}

func TestHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelDebug)).With(slog.String("component", "scheduler"))

	log.Debug("Auction sweep done", slog.Int("closed", 2))
	check.True(t, strings.Contains(buf.String(), "[DEBUG] [SYS] Auction sweep done component=scheduler closed=2"))
}

func TestSkipsGatewayNoise(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewHandler(&buf, slog.LevelDebug))

	log.Debug("sending heartbeat")
	log.Debug("New Request to discord")
	check.Equal(t, "", buf.String())
}
