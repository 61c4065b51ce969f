package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorWhite  = "\033[37m"
)

type LogType string

const (
	TypeCommand LogType = "CMD"
	TypeDB      LogType = "DB"
	TypeSystem  LogType = "SYS"
	TypeError   LogType = "ERR"
)

// CustomHandler prints one colored line per record:
// [Marketbot] [15:04:05] [INFO] [SYS] message key=value ...
type CustomHandler struct {
	level  slog.Leveler
	out    io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	groups []string
	color  bool
}

func NewHandler(w io.Writer, level slog.Leveler) *CustomHandler {
	return &CustomHandler{
		level: level,
		out:   w,
		mu:    &sync.Mutex{},
		color: w == os.Stdout || w == os.Stderr,
	}
}

// New returns the handler selected by format: "json" or the colored text default.
func New(format string, level slog.Level, addSource bool) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level, AddSource: addSource})
	}
	return NewHandler(os.Stdout, level)
}

func (h *CustomHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *CustomHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &c
}

func (h *CustomHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.groups = append(append([]string{}, h.groups...), name)
	return &c
}

func (h *CustomHandler) Handle(_ context.Context, r slog.Record) error {
	if shouldSkipLog(&r) {
		return nil
	}

	levelColor, levelText := colorGreen, "INFO"
	switch {
	case r.Level >= slog.LevelError:
		levelColor, levelText = colorRed, "ERROR"
	case r.Level >= slog.LevelWarn:
		levelColor, levelText = colorYellow, "WARN"
	case r.Level < slog.LevelInfo:
		levelColor, levelText = colorPurple, "DEBUG"
	}

	fields := recordFields(h.attrs, &r)

	message := r.Message
	if r.Level >= slog.LevelError {
		location := fields["error_location"]
		if location == "" {
			location = sourceLocation(r.PC)
		}
		if location != "" {
			message = fmt.Sprintf("%s (%s)", message, location)
		}
		if details := fields["error"]; details != "" {
			message = fmt.Sprintf("%s: %s", message, details)
		}
	}
	if cmd, user := fields["name"], fields["user_name"]; cmd != "" && user != "" {
		message = fmt.Sprintf("%s [%s by %s]", message, cmd, user)
	}
	if status := fields["status"]; status != "" {
		message = fmt.Sprintf("%s [Status: %s]", message, status)
	}

	var extra strings.Builder
	prefix := strings.Join(h.groups, ".")
	emit := func(a slog.Attr) {
		if isInternalAttr(a.Key) || (r.Level >= slog.LevelError && a.Key == "error") {
			return
		}
		key := a.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		fmt.Fprintf(&extra, " %s=%v", key, a.Value)
	}
	for _, a := range h.attrs {
		emit(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		emit(a)
		return true
	})

	white, reset, lc := colorWhite, colorReset, levelColor
	if !h.color {
		white, reset, lc = "", "", ""
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintf(h.out, "%s[Marketbot] [%s] [%s%s%s] [%s] %s%s%s\n",
		white,
		r.Time.Format(time.TimeOnly),
		lc, levelText, white,
		logType(fields["type"]),
		message,
		extra.String(),
		reset,
	)
	return err
}

// shouldSkipLog drops disgo's chatty gateway and rest bucket debug lines.
func shouldSkipLog(r *slog.Record) bool {
	skippedMessages := []string{
		"locking buckets",
		"unlocking buckets",
		"gateway event",
		"cleaning up bucket",
		"cleaned up rate limit buckets",
		"binary message received",
		"received gateway message",
		"locking gateway rate limiter",
		"unlocking gateway rate limiter",
		"sending gateway command",
		"new request",
		"new response",
		"locking rest bucket",
		"unlocking rest bucket",
		"rate limit response headers",
		"sending heartbeat",
	}

	msg := strings.ToLower(r.Message)
	for _, skip := range skippedMessages {
		if strings.Contains(msg, skip) {
			return true
		}
	}
	return false
}

func logType(value string) LogType {
	switch value {
	case "cmd":
		return TypeCommand
	case "db":
		return TypeDB
	case "error":
		return TypeError
	default:
		return TypeSystem
	}
}

func recordFields(attrs []slog.Attr, r *slog.Record) map[string]string {
	fields := make(map[string]string)
	for _, a := range attrs {
		fields[a.Key] = a.Value.String()
	}
	r.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.String()
		return true
	})
	return fields
}

func sourceLocation(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
}

func isInternalAttr(key string) bool {
	switch key {
	case "type", "name", "user_name", "status", "error_location":
		return true
	}
	return false
}
