package stdioloop

import (
	"context"
	"log/slog"
)

type Option func(*Runner)

// WithLogger sets a custom logger for the Runner instance.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithLogHandler sets a custom log handler for the Runner instance.
func WithLogHandler(handler slog.Handler) Option {
	return func(r *Runner) {
		r.logger = slog.New(handler)
	}
}

// WithContext sets a custom parent context for the Runner instance.
func WithContext(ctx context.Context) Option {
	return func(r *Runner) {
		r.parentCtx = ctx
	}
}

// WithMaxLineSize bounds the size of one request line. Generated API text is
// carried inline, so lines are large.
func WithMaxLineSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxLine = n
		}
	}
}

// WithOnInputClosed registers fn to run after the loop stops because its input
// reached EOF. A supervisor uses it to end the process with the input stream.
func WithOnInputClosed(fn func()) Option {
	return func(r *Runner) {
		r.onInputClosed = fn
	}
}
