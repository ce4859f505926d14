package logging

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/polyglot/pkg/errors"
)

func newTestLogger(buf *bytes.Buffer) Logger {
	return New(buf, &TextFormatter{DisableColors: true, DisableTimestamp: true})
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	logger.SetLevel(DebugLevel)

	logger.Debug("debug message", String("key", "value"))
	logger.Info("info message", Int("count", 42))
	logger.Warn("warning message", Bool("flag", true))
	logger.Error("error message", ErrorField(stderrors.New("test error")))

	output := buf.String()
	for _, want := range []string{
		"[DEBUG] debug message | key=value",
		"[INFO] info message | count=42",
		"[WARN] warning message | flag=true",
		`[ERROR] error message | error="test error"`,
	} {
		assert.Contains(t, output, want)
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)
	logger.SetLevel(WarnLevel)

	logger.Debug("debug")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 2)
	assert.Equal(t, WarnLevel, logger.GetLevel())
}

func TestDerivedLoggersShareLevel(t *testing.T) {
	var buf bytes.Buffer
	parent := newTestLogger(&buf)
	child := parent.WithFields(Component("dispatch"))

	parent.SetLevel(ErrorLevel)
	child.Info("hidden")
	assert.Empty(t, buf.String())
	assert.Equal(t, ErrorLevel, child.GetLevel())
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	base := newTestLogger(&buf)
	logger := base.WithFields(Component("registry"), String("operation", "build"))

	logger.Info("built", Int("languages", 3), Strings("order", []string{"go", "python"}))
	base.Info("plain")

	output := buf.String()
	assert.Contains(t, output, "registry/build: built | languages=3 order=[go,python]")
	assert.Contains(t, output, "[INFO] plain\n")
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	ctx := ContextWithRequestID(context.Background(), "req-42")
	logger.WithContext(ctx).Info("handled")
	assert.Contains(t, buf.String(), "[req-42] handled")

	assert.Equal(t, "", RequestIDFromContext(context.Background()))
	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, NewJSONFormatter())

	err := errors.UnsupportedLanguage("cobol", "/hover")
	logger.WithError(err).Error("dispatch failed")

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "ERROR", decoded["level"])
	assert.Equal(t, "dispatch failed", decoded["message"])
	assert.Equal(t, float64(errors.CodeUnsupportedLanguage), decoded["error_code"])
	assert.Equal(t, "not_found", decoded["error_category"])
	assert.Equal(t, "cobol", decoded["language"])
	assert.Contains(t, decoded["error"], "cobol")
}

func TestNop(t *testing.T) {
	logger := NewNop()
	logger.Error("nothing")
	logger.WithFields(String("a", "b")).Warn("still nothing")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		err  bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.err, err != nil)
		})
	}
}

func TestConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.WithFields(Int("worker", i)).Info("tick")
		}(i)
	}
	wg.Wait()

	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 20)
}

func TestTextValueQuoting(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"plain string", "value", "value"},
		{"string with space", "two words", `"two words"`},
		{"string with tab", "a\tb", `"a\tb"`},
		{"plain error", stderrors.New("boom"), "boom"},
		{"error with space", stderrors.New("test error"), `"test error"`},
		{"string list", []string{"go", "rust"}, "[go,rust]"},
		{"number", 42, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, textValue(tt.value))
		})
	}
}
