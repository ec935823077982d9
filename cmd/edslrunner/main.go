package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "edslrunner",
		Version: Version,
		Usage:   "Evaluate mission scripts into commands, goals and constraints",
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			serveCmd,
			checkCmd,
			validateCmd,
			versionCmd,
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
