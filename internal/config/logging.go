package config

import (
	"fmt"
	"slices"
	"strings"
)

// LoggingConfig selects the log handler. Logs never go to stdout while serving.
type LoggingConfig struct {
	Format LogFormat
	Level  LogLevel
	// Output is "stderr", "stdout", "file:///path" or a path.
	Output string
}

type LogFormat string

type LogLevel string

const (
	LogFormatUnspecified LogFormat = ""
	LogFormatText        LogFormat = "text"
	LogFormatJSON        LogFormat = "json"
)

const (
	LogLevelUnspecified LogLevel = ""
	LogLevelTrace       LogLevel = "trace"
	LogLevelDebug       LogLevel = "debug"
	LogLevelInfo        LogLevel = "info"
	LogLevelWarn        LogLevel = "warn"
	LogLevelError       LogLevel = "error"
)

// Accepted spellings, including aliases.
var (
	logFormats = map[string]LogFormat{
		"":     LogFormatUnspecified,
		"text": LogFormatText,
		"txt":  LogFormatText,
		"json": LogFormatJSON,
	}
	logLevels = map[string]LogLevel{
		"":        LogLevelUnspecified,
		"trace":   LogLevelTrace,
		"debug":   LogLevelDebug,
		"info":    LogLevelInfo,
		"warn":    LogLevelWarn,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
	}
)

func (f LogFormat) String() string { return string(f) }

func (l LogLevel) String() string { return string(l) }

// IsValid reports whether f is a canonical format name.
func (f LogFormat) IsValid() bool {
	return slices.Contains([]LogFormat{LogFormatUnspecified, LogFormatText, LogFormatJSON}, f)
}

// IsValid reports whether l is a canonical level name.
func (l LogLevel) IsValid() bool {
	return slices.Contains([]LogLevel{
		LogLevelUnspecified, LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError,
	}, l)
}

// LogFormatFromString parses a format name, case-insensitively.
func LogFormatFromString(format string) (LogFormat, error) {
	if f, ok := logFormats[strings.ToLower(format)]; ok {
		return f, nil
	}
	return LogFormatUnspecified, fmt.Errorf("%w: unknown log format: %s", ErrInvalidValue, format)
}

// LogLevelFromString parses a level name, case-insensitively.
func LogLevelFromString(level string) (LogLevel, error) {
	if l, ok := logLevels[strings.ToLower(level)]; ok {
		return l, nil
	}
	return LogLevelUnspecified, fmt.Errorf("%w: unknown log level: %s", ErrInvalidValue, level)
}
