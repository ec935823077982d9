package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupHandlerText(t *testing.T) {
	tests := []struct {
		name          string
		logLevel      string
		expectedLevel log.Level
		expectCaller  bool
	}{
		{name: "trace level", logLevel: "trace", expectedLevel: log.DebugLevel, expectCaller: true},
		{name: "debug level", logLevel: "debug", expectedLevel: log.DebugLevel},
		{name: "info level", logLevel: "info", expectedLevel: log.InfoLevel},
		{name: "warning level", logLevel: "warning", expectedLevel: log.WarnLevel},
		{name: "uppercase level", logLevel: "ERROR", expectedLevel: log.ErrorLevel},
		{name: "unknown defaults to info", logLevel: "loud", expectedLevel: log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			handler := SetupHandlerText(tt.logLevel, buf)

			logger, ok := handler.(*log.Logger)
			require.True(t, ok)
			assert.Equal(t, tt.expectedLevel, logger.GetLevel())

			slog.New(handler).Error("job failed", "kind", "UserThrown")
			output := buf.String()
			assert.Contains(t, output, "job failed")
			assert.Contains(t, output, "UserThrown")
			if tt.expectCaller {
				assert.Contains(t, output, ".go:")
			}
		})
	}
}

func TestSetupHandlerJSON(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
		log      func(*slog.Logger)
		level    string
		caller   bool
	}{
		{name: "trace", logLevel: "trace", log: func(l *slog.Logger) { l.Debug("m", "k", "v") }, level: "DEBUG", caller: true},
		{name: "debug", logLevel: "debug", log: func(l *slog.Logger) { l.Debug("m", "k", "v") }, level: "DEBUG"},
		{name: "empty is info", logLevel: "", log: func(l *slog.Logger) { l.Info("m", "k", "v") }, level: "INFO"},
		{name: "warn", logLevel: "warn", log: func(l *slog.Logger) { l.Warn("m", "k", "v") }, level: "WARN"},
		{name: "error", logLevel: "error", log: func(l *slog.Logger) { l.Error("m", "k", "v") }, level: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.log(slog.New(SetupHandlerJSON(tt.logLevel, buf)))

			output := buf.String()
			assert.Contains(t, output, `"msg":"m"`)
			assert.Contains(t, output, `"k":"v"`)
			assert.Contains(t, output, `"level":"`+tt.level+`"`)
			if tt.caller {
				assert.Contains(t, output, `"source"`)
			} else {
				assert.NotContains(t, output, `"source"`)
			}
		})
	}
}

func TestSetupHandlerJSON_LevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := slog.New(SetupHandlerJSON("warn", buf))

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, "warn message")
	assert.Contains(t, output, "error message")
}

func TestSetup(t *testing.T) {
	t.Run("defaults to text on stderr", func(t *testing.T) {
		handler, w, err := Setup("", "info", "")
		require.NoError(t, err)
		assert.IsType(t, &log.Logger{}, handler)
		assert.Equal(t, os.Stderr, w)
	})

	t.Run("json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "runner.log")
		handler, w, err := Setup("JSON", "debug", "file://"+path)
		require.NoError(t, err)
		assert.IsType(t, &slog.JSONHandler{}, handler)

		slog.New(handler).Debug("to file")
		require.NoError(t, w.(*os.File).Close())

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, strings.Contains(string(content), `"msg":"to file"`))
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := Setup("xml", "info", "stderr")
		assert.ErrorContains(t, err, "unknown log format")
	})

	t.Run("bad output", func(t *testing.T) {
		_, _, err := Setup("text", "info", "udp://host")
		assert.Error(t, err)
	})
}

func TestSetupLogger(t *testing.T) {
	originalDefault := slog.Default()
	defer slog.SetDefault(originalDefault)

	SetupLogger("debug")
	assert.NotEqual(t, originalDefault, slog.Default())
	assert.True(t, slog.Default().Enabled(t.Context(), slog.LevelDebug))
}
