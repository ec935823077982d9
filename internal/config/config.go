// Package config holds the runner configuration: which deployment to serve,
// the evaluation budget and the log destination.
package config

import (
	"time"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/sandbox"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/transpile"
)

const (
	VersionLatest  = "v1"
	VersionUnknown = "unknown"
)

// Deployment names, matching the deployment packages.
const (
	DeploymentScheduling  = "scheduling"
	DeploymentConstraints = "constraints"
	DeploymentExpansion   = "expansion"
)

// Config is the validated runner configuration.
type Config struct {
	Version    string
	Deployment string
	// Timeout is the wall-clock budget for one evaluation.
	Timeout          Duration
	MaxCallStackSize int
	// Filename is reported in frames when a request carries no display name.
	Filename string
	// Target is the esbuild language target.
	Target  string
	Console bool
	Logging LoggingConfig
}

// NewDefault returns the configuration used when no file is given.
func NewDefault() *Config {
	return &Config{
		Version:          VersionLatest,
		Deployment:       DeploymentScheduling,
		Timeout:          FromDuration(sandbox.DefaultTimeout),
		MaxCallStackSize: sandbox.DefaultMaxCallStackSize,
		Filename:         engine.DefaultFilename,
		Target:           transpile.DefaultTarget,
		Logging: LoggingConfig{
			Format: LogFormatText,
			Level:  LogLevelInfo,
			Output: "stderr",
		},
	}
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	return c.Timeout.AsDuration()
}

// Equals compares two configs field by field.
func (c *Config) Equals(other *Config) bool {
	if c == nil || other == nil {
		return c == other
	}
	return *c == *other
}
