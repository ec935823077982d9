package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// file is the TOML document layout.
type file struct {
	Version          string      `toml:"version"`
	Deployment       string      `toml:"deployment"`
	Timeout          Duration    `toml:"timeout"`
	MaxCallStackSize int         `toml:"max_call_stack_size"`
	Filename         string      `toml:"filename"`
	Target           string      `toml:"target"`
	Console          bool        `toml:"console"`
	Logging          fileLogging `toml:"logging"`
}

type fileLogging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Output string `toml:"output"`
}

func toFile(c *Config) file {
	return file{
		Version:          c.Version,
		Deployment:       c.Deployment,
		Timeout:          c.Timeout,
		MaxCallStackSize: c.MaxCallStackSize,
		Filename:         c.Filename,
		Target:           c.Target,
		Console:          c.Console,
		Logging: fileLogging{
			Format: c.Logging.Format.String(),
			Level:  c.Logging.Level.String(),
			Output: c.Logging.Output,
		},
	}
}

func (f file) toConfig() (*Config, error) {
	format, fmtErr := LogFormatFromString(f.Logging.Format)
	level, lvlErr := LogLevelFromString(f.Logging.Level)
	if err := errors.Join(fmtErr, lvlErr); err != nil {
		return nil, err
	}
	return &Config{
		Version:          f.Version,
		Deployment:       f.Deployment,
		Timeout:          f.Timeout,
		MaxCallStackSize: f.MaxCallStackSize,
		Filename:         f.Filename,
		Target:           f.Target,
		Console:          f.Console,
		Logging: LoggingConfig{
			Format: format,
			Level:  level,
			Output: f.Logging.Output,
		},
	}, nil
}

// NewConfig loads configuration from a TOML file over the defaults.
func NewConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	return NewConfigFromBytes(data)
}

// NewConfigFromReader loads configuration from an io.Reader providing TOML data
func NewConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	return NewConfigFromBytes(data)
}

// NewConfigFromBytes loads configuration from TOML bytes over the defaults.
// Unknown keys are rejected.
func NewConfigFromBytes(data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: no source data provided to loader", ErrFailedToLoadConfig)
	}

	doc := toFile(NewDefault())
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("%w: %s", ErrFailedToLoadConfig, strict.String())
		}
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}

	cfg, err := doc.toConfig()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToValidateConfig, err)
	}
	return cfg, nil
}

// MarshalTOML renders the config as a TOML document NewConfigFromBytes accepts.
func (c *Config) MarshalTOML() ([]byte, error) {
	return toml.Marshal(toFile(c))
}
