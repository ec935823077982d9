package main

import (
	"fmt"
	"log/slog"

	"github.com/NASA-AMMOS/aerie-sub008/internal/config"
	"github.com/NASA-AMMOS/aerie-sub008/internal/deployment/constraints"
	"github.com/NASA-AMMOS/aerie-sub008/internal/deployment/expansion"
	"github.com/NASA-AMMOS/aerie-sub008/internal/deployment/scheduling"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/artifact"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/sandbox"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/transpile"
	"github.com/NASA-AMMOS/aerie-sub008/internal/server/runnables/stdioloop"
)

// newEngine builds the pipeline from a validated config.
func newEngine(cfg *config.Config, logger *slog.Logger) (*engine.Engine, error) {
	tr, err := transpile.New(cfg.Target, transpile.WithLogger(logger.WithGroup("transpile")))
	if err != nil {
		return nil, err
	}
	x := sandbox.New(
		sandbox.WithLogger(logger.WithGroup("sandbox")),
		sandbox.WithTimeout(cfg.TimeoutDuration()),
		sandbox.WithMaxCallStackSize(cfg.MaxCallStackSize),
	)
	return engine.New(
		engine.WithLogger(logger.WithGroup("engine")),
		engine.WithTranspiler(tr),
		engine.WithExecutor(x),
		engine.WithDefaultFilename(cfg.Filename),
		engine.WithConsole(cfg.Console),
	)
}

// newDecoder returns the wire codec for the configured deployment.
func newDecoder(cfg *config.Config, e *engine.Engine, logger *slog.Logger) (stdioloop.Decoder, error) {
	switch cfg.Deployment {
	case config.DeploymentScheduling:
		return scheduling.NewDecoder(cfg.Filename), nil
	case config.DeploymentConstraints:
		return constraints.NewDecoder(cfg.Filename), nil
	case config.DeploymentExpansion:
		x := expansion.NewExpander(e,
			expansion.WithLogger(logger.WithGroup("expansion")),
			expansion.WithDefaultFilename(cfg.Filename),
		)
		return expansion.NewDecoder(x), nil
	default:
		return nil, fmt.Errorf("%w: deployment %q", config.ErrInvalidValue, cfg.Deployment)
	}
}

// profileFor returns how a deployment invokes scripts and what it expects back.
func profileFor(deployment string) (engine.Profile, artifact.Shape, error) {
	switch deployment {
	case config.DeploymentScheduling:
		return scheduling.Profile, artifact.Goal, nil
	case config.DeploymentConstraints:
		return constraints.Profile, artifact.Constraint, nil
	case config.DeploymentExpansion:
		return expansion.Profile, artifact.Commands, nil
	default:
		return engine.Profile{}, artifact.Shape{}, fmt.Errorf("%w: deployment %q", config.ErrInvalidValue, deployment)
	}
}
