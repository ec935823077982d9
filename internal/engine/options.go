package engine

import (
	"log/slog"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/sandbox"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/transpile"
)

type Option func(*Engine)

// WithLogger sets a custom logger for the Engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTranspiler replaces the default transpiler.
func WithTranspiler(t *transpile.Transpiler) Option {
	return func(e *Engine) {
		if t != nil {
			e.transpiler = t
		}
	}
}

// WithExecutor replaces the default sandbox executor.
func WithExecutor(x *sandbox.Executor) Option {
	return func(e *Engine) {
		if x != nil {
			e.executor = x
		}
	}
}

// WithDefaultFilename sets the display name used when a request carries none.
func WithDefaultFilename(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.filename = name
		}
	}
}

// WithConsole exposes a console binding whose output lands in the job log.
func WithConsole(enabled bool) Option {
	return func(e *Engine) {
		e.console = enabled
	}
}
