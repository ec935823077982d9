package main

import (
	"context"
	"fmt"

	"github.com/NASA-AMMOS/aerie-sub008/internal/config"
	"github.com/urfave/cli/v3"
)

var validateCmd = &cli.Command{
	Name:      "validate",
	Aliases:   []string{"lint"},
	Usage:     "Validate a configuration file",
	ArgsUsage: "<config.toml>",
	Action:    validateAction,
}

func validateAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.Args().First()
	if configPath == "" {
		configPath = cmd.String(flagConfig)
	}
	if configPath == "" {
		return cli.Exit("config file path required (use the --config flag, or provide the config file as positional argument)", 1)
	}

	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return cli.Exit(err, 1)
	}

	w := cmd.Root().Writer
	fmt.Fprintf(w, "Configuration file %s is valid\n\n", configPath)
	fmt.Fprintln(w, cfg)
	return nil
}
