package config

import (
	"errors"
	"fmt"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/transpile"
)

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	if c.Version == "" {
		c.Version = VersionUnknown
	}
	if c.Version != VersionLatest {
		return fmt.Errorf("%w: %s", ErrUnsupportedConfigVer, c.Version)
	}

	var errs []error

	switch c.Deployment {
	case DeploymentScheduling, DeploymentConstraints, DeploymentExpansion:
	default:
		errs = append(errs, fmt.Errorf("%w: deployment %q", ErrInvalidValue, c.Deployment))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidValue, c.Timeout))
	}
	if c.MaxCallStackSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_call_stack_size must be positive, got %d", ErrInvalidValue, c.MaxCallStackSize))
	}
	if c.Filename == "" {
		errs = append(errs, fmt.Errorf("%w: filename is empty", ErrInvalidValue))
	}
	if _, err := transpile.ParseTarget(c.Target); err != nil {
		errs = append(errs, err)
	}
	if !c.Logging.Format.IsValid() {
		errs = append(errs, fmt.Errorf("%w: log format %q", ErrInvalidValue, c.Logging.Format))
	}
	if !c.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("%w: log level %q", ErrInvalidValue, c.Logging.Level))
	}

	return errors.Join(errs...)
}
