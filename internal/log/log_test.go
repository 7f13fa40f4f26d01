package log

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetLevel(LevelInfo)

	SetLevel(LevelInfo)
	Debug("hidden debug")
	Info("visible info", "k", "v")
	assert.NotContains(t, buf.String(), "hidden debug")
	assert.Contains(t, buf.String(), "visible info")
	assert.Contains(t, buf.String(), "k=v")

	buf.Reset()
	SetLevel(LevelError)
	Info("hidden info")
	Error("boom", errors.New("bad thing"), "day", "2025-01-01")
	assert.NotContains(t, buf.String(), "hidden info")
	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "bad thing")

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("now visible")
	assert.Contains(t, buf.String(), "now visible")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":  LevelDebug,
		" ERROR": LevelError,
		"info":   LevelInfo,
		"bogus":  LevelInfo,
		"":       LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "input %q", in)
	}
}

func TestAttrs(t *testing.T) {
	assert.Equal(t, KeyOperation, Operation("render").Key)
	assert.Equal(t, "2025-03-04", Day(time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)).Value.String())

	attr := Err(errors.New("x"))
	assert.Equal(t, KeyError, attr.Key)
	assert.Equal(t, "x", attr.Value.String())
	assert.Equal(t, "", Err(nil).Key)
}
