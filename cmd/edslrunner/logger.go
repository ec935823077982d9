package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/NASA-AMMOS/aerie-sub008/internal/config"
	"github.com/NASA-AMMOS/aerie-sub008/internal/logging"
)

// setupLogger installs the configured handler as the slog default. The
// returned func closes a file destination.
func setupLogger(cfg config.LoggingConfig) (*slog.Logger, func(), error) {
	handler, w, err := logging.Setup(cfg.Format.String(), cfg.Level.String(), cfg.Output)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	closeFn := func() {}
	if f, ok := w.(io.Closer); ok && w != os.Stderr && w != os.Stdout {
		closeFn = func() { _ = f.Close() }
	}
	return logger, closeFn, nil
}
