package main

import (
	"context"
	"fmt"

	"github.com/NASA-AMMOS/aerie-sub008/internal/logging/writers"
	"github.com/NASA-AMMOS/aerie-sub008/internal/server/runnables/stdioloop"
	"github.com/robbyt/go-supervisor/supervisor"
	"github.com/urfave/cli/v3"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "Answer requests read from stdin, one JSON object per line",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "max-line-size",
			Usage: "Largest request line accepted, in bytes",
			Value: stdioloop.DefaultMaxLineSize,
		},
	},
	Action: serveAction,
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cli.Exit(err, 1)
	}
	if writers.IsStdout(cfg.Logging.Output) {
		return cli.Exit("log output cannot be stdout while serving: stdout carries responses", 1)
	}

	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer closeLog()

	e, err := newEngine(cfg, logger)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create engine: %w", err), 1)
	}
	decoder, err := newDecoder(cfg, e, logger)
	if err != nil {
		return cli.Exit(err, 1)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	loop, err := stdioloop.NewRunner(decoder, e, cmd.Root().Reader, cmd.Root().Writer,
		stdioloop.WithContext(ctx),
		stdioloop.WithLogHandler(logger.Handler()),
		stdioloop.WithMaxLineSize(int(cmd.Int("max-line-size"))),
		stdioloop.WithOnInputClosed(cancel),
	)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create request loop: %w", err), 1)
	}

	super, err := supervisor.New(
		supervisor.WithContext(ctx),
		supervisor.WithLogHandler(logger.Handler()),
		supervisor.WithRunnables(loop),
	)
	if err != nil {
		return cli.Exit(fmt.Errorf("failed to create supervisor: %w", err), 1)
	}

	logger.Info("Serving", "deployment", cfg.Deployment, "timeout", cfg.Timeout)
	if err := super.Run(); err != nil {
		return cli.Exit(fmt.Errorf("failed to run request loop: %w", err), 1)
	}

	logger.Info("Request loop shutdown complete")
	return nil
}
