package transpile

import (
	"log/slog"
)

type Option func(*Transpiler)

// WithLogger sets a custom logger for the Transpiler.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transpiler) {
		t.logger = logger
	}
}
