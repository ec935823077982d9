package sandbox

import (
	"log/slog"
	"time"
)

type Option func(*Executor)

// WithLogger sets a custom logger for the Executor.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// WithTimeout sets the default evaluation budget used when a Script sets none.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithMaxCallStackSize limits call depth inside the runtime.
func WithMaxCallStackSize(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxCallStackSize = n
		}
	}
}
