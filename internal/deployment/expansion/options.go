package expansion

import (
	"log/slog"
)

type Option func(*Expander)

// WithLogger sets a custom logger for the Expander.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Expander) {
		x.logger = logger
	}
}

// WithDefaultFilename sets the display name used when a request has none.
func WithDefaultFilename(name string) Option {
	return func(x *Expander) {
		if name != "" {
			x.filename = name
		}
	}
}

// WithConcurrency bounds how many instances ExpandAll evaluates at once.
func WithConcurrency(n int) Option {
	return func(x *Expander) {
		if n > 0 {
			x.concurrency = n
		}
	}
}
