// Package log is the process-wide structured logger. It keeps a small
// package-level API (Debug/Info/Error) on top of log/slog so call sites stay
// short, and offers attribute helpers for consistent key naming.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

// Common attribute keys.
const (
	KeyOperation = "operation"
	KeyDay       = "day"
	KeyError     = "err"
	KeyDuration  = "duration"
	KeySource    = "source"
)

var (
	mu       sync.RWMutex
	logger   *slog.Logger
	levelVar = new(slog.LevelVar)
	initOnce sync.Once
)

func initLogger() {
	initOnce.Do(func() {
		levelVar.Set(slog.LevelInfo)
		logger = newLogger(os.Stderr)
	})
}

func newLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}))
}

// SetLevel changes the minimum level. Unknown levels enable everything.
func SetLevel(l Level) {
	initLogger()
	levelVar.Set(toSlog(l))
}

// ParseLevel maps a case-insensitive level name; unknown names map to INFO.
func ParseLevel(s string) Level {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelError:
		return LevelError
	default:
		return LevelInfo
	}
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	initLogger()
	mu.Lock()
	logger = newLogger(w)
	mu.Unlock()
}

// Logger returns the underlying slog logger.
func Logger() *slog.Logger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) {
	Logger().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	Logger().Info(msg, kv...)
}

// Error logs at ERROR with err prepended to the key-value list.
func Error(msg string, err error, kv ...any) {
	extended := append([]any{Err(err)}, kv...)
	Logger().Error(msg, extended...)
}

func toSlog(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// Operation returns an attribute naming the current operation.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Day returns an attribute for a calendar date.
func Day(t time.Time) slog.Attr {
	return slog.String(KeyDay, t.Format("2006-01-02"))
}

// Since returns the elapsed time since start as an attribute.
func Since(start time.Time) slog.Attr {
	return slog.Duration(KeyDuration, time.Since(start))
}

// Err returns an error attribute. A nil error yields an empty group,
// which slog omits.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}
