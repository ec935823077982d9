package main

import (
	"errors"
	"fmt"

	"github.com/NASA-AMMOS/aerie-sub008/internal/config"
	"github.com/urfave/cli/v3"
)

const envPrefix = "EDSLRUNNER_"

const (
	flagConfig       = "config"
	flagDeployment   = "deployment"
	flagTimeout      = "timeout"
	flagMaxCallStack = "max-call-stack"
	flagFilename     = "filename"
	flagTarget       = "target"
	flagConsole      = "console"
	flagLogLevel     = "log-level"
	flagLogFormat    = "log-format"
	flagLogOutput    = "log-output"
)

func env(name string) cli.ValueSourceChain {
	return cli.EnvVars(envPrefix + name)
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfig,
			Aliases: []string{"c"},
			Usage:   "Path to a TOML configuration file",
			Sources: env("CONFIG"),
		},
		&cli.StringFlag{
			Name:    flagDeployment,
			Aliases: []string{"d"},
			Usage:   "Deployment to serve: scheduling, constraints or expansion",
			Sources: env("DEPLOYMENT"),
		},
		&cli.DurationFlag{
			Name:    flagTimeout,
			Usage:   "Wall-clock budget for one evaluation",
			Sources: env("TIMEOUT"),
		},
		&cli.IntFlag{
			Name:    flagMaxCallStack,
			Usage:   "Maximum script call stack depth",
			Sources: env("MAX_CALL_STACK"),
		},
		&cli.StringFlag{
			Name:    flagFilename,
			Usage:   "Display name for user source in diagnostics",
			Sources: env("FILENAME"),
		},
		&cli.StringFlag{
			Name:    flagTarget,
			Usage:   "Language target scripts are lowered to (es2015 to esnext)",
			Sources: env("TARGET"),
		},
		&cli.BoolFlag{
			Name:    flagConsole,
			Usage:   "Expose console to scripts, routed to the job log",
			Sources: env("CONSOLE"),
		},
		&cli.StringFlag{
			Name:    flagLogLevel,
			Usage:   "Log level: trace, debug, info, warn, error",
			Sources: env("LOG_LEVEL"),
		},
		&cli.StringFlag{
			Name:    flagLogFormat,
			Usage:   "Log format: text or json",
			Sources: env("LOG_FORMAT"),
		},
		&cli.StringFlag{
			Name:    flagLogOutput,
			Usage:   "Log destination: stderr, stdout, file:///path or a path",
			Sources: env("LOG_OUTPUT"),
		},
	}
}

// loadConfig layers the optional config file and then any set flags over the
// defaults, and validates the result.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.NewDefault()
	if path := cmd.String(flagConfig); path != "" {
		loaded, err := config.NewConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	var errs []error
	if cmd.IsSet(flagDeployment) {
		cfg.Deployment = cmd.String(flagDeployment)
	}
	if cmd.IsSet(flagTimeout) {
		cfg.Timeout = config.FromDuration(cmd.Duration(flagTimeout))
	}
	if cmd.IsSet(flagMaxCallStack) {
		cfg.MaxCallStackSize = int(cmd.Int(flagMaxCallStack))
	}
	if cmd.IsSet(flagFilename) {
		cfg.Filename = cmd.String(flagFilename)
	}
	if cmd.IsSet(flagTarget) {
		cfg.Target = cmd.String(flagTarget)
	}
	if cmd.IsSet(flagConsole) {
		cfg.Console = cmd.Bool(flagConsole)
	}
	if cmd.IsSet(flagLogLevel) {
		level, err := config.LogLevelFromString(cmd.String(flagLogLevel))
		errs = append(errs, err)
		cfg.Logging.Level = level
	}
	if cmd.IsSet(flagLogFormat) {
		format, err := config.LogFormatFromString(cmd.String(flagLogFormat))
		errs = append(errs, err)
		cfg.Logging.Format = format
	}
	if cmd.IsSet(flagLogOutput) {
		cfg.Logging.Output = cmd.String(flagLogOutput)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrFailedToValidateConfig, err)
	}
	return cfg, nil
}
