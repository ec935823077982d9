package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/NASA-AMMOS/aerie-sub008/internal/config"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/artifact"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/harness"
	"github.com/NASA-AMMOS/aerie-sub008/internal/fancy"
	"github.com/NASA-AMMOS/aerie-sub008/internal/logging"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

var checkCmd = &cli.Command{
	Name:      "check",
	Usage:     "Run one script and show its artifact or diagnostics",
	ArgsUsage: "<script.ts>",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "api",
			Aliases: []string{"a"},
			Usage:   "Generated API file placed before the script; repeat in dependency order",
		},
		&cli.StringFlag{
			Name:  "expect",
			Usage: "Expected return type (default depends on the deployment)",
		},
		&cli.StringFlag{
			Name:  "props",
			Usage: "JSON value bound to the expansion props argument",
		},
		&cli.StringFlag{
			Name:    "request",
			Aliases: []string{"r"},
			Usage:   "YAML or JSON document in the deployment's request format, instead of a script",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the raw artifact or diagnostics JSON",
		},
		&cli.BoolFlag{
			Name:  "show-logs",
			Usage: "Replay the job log after the result",
		},
	},
	Action: checkAction,
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cli.Exit(err, 1)
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

	var req engine.Request
	if path := cmd.String("request"); path != "" {
		req, err = requestFromDocument(cfg, e, logger, path)
	} else {
		req, err = requestFromScript(cfg, cmd)
	}
	if err != nil {
		return cli.Exit(err, 1)
	}

	out := e.Run(ctx, req)

	w := cmd.Root().Writer
	if err := report(w, out, req, cmd.Bool("json")); err != nil {
		return err
	}
	if cmd.Bool("show-logs") && out.Job != nil {
		fmt.Fprintln(w, fancy.HeaderStyle.Render("Job log"))
		if err := out.Job.PlayLogs(logging.SetupHandlerText("debug", w)); err != nil {
			return cli.Exit(fmt.Errorf("failed to replay job log: %w", err), 1)
		}
	}

	if !out.OK() {
		return cli.Exit(fmt.Sprintf("check failed: %s", out.Kind), 1)
	}
	return nil
}

func report(w io.Writer, out *engine.Outcome, req engine.Request, raw bool) error {
	if raw {
		var payload []byte
		var err error
		if out.OK() {
			payload = out.Artifact
		} else if payload, err = json.MarshalIndent(out.Diagnostics, "", "  "); err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", payload)
		return err
	}

	if out.OK() {
		_, err := fmt.Fprintln(w, fancy.ArtifactTree(req.Shape.Name, out.Artifact))
		return err
	}
	for _, d := range out.Diagnostics {
		if _, err := fmt.Fprintln(w, fancy.DiagnosticTree(d, req.Source.Text)); err != nil {
			return err
		}
	}
	return nil
}

// requestFromScript builds a request from a script file and API files.
func requestFromScript(cfg *config.Config, cmd *cli.Command) (engine.Request, error) {
	path := cmd.Args().First()
	if path == "" {
		return engine.Request{}, fmt.Errorf("script path required (or use --request)")
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return engine.Request{}, err
	}

	profile, shape, err := profileFor(cfg.Deployment)
	if err != nil {
		return engine.Request{}, err
	}
	if expect := cmd.String("expect"); expect != "" {
		if shape, err = artifact.Lookup(expect); err != nil {
			return engine.Request{}, err
		}
	}

	req := engine.Request{
		Source:  harness.SourceUnit{Text: string(src), Filename: filepath.Base(path)},
		Profile: profile,
		Shape:   shape,
	}
	for _, api := range cmd.StringSlice("api") {
		text, err := os.ReadFile(api)
		if err != nil {
			return engine.Request{}, err
		}
		req.Modules = append(req.Modules, harness.Module{Name: filepath.Base(api), Text: string(text)})
	}

	if props := cmd.String("props"); props != "" {
		if !json.Valid([]byte(props)) {
			return engine.Request{}, fmt.Errorf("--props is not valid JSON")
		}
		if len(profile.ArgNames) == 0 {
			return engine.Request{}, fmt.Errorf("the %s deployment takes no arguments", cfg.Deployment)
		}
		req.Args = map[string]json.RawMessage{profile.ArgNames[0]: json.RawMessage(props)}
	}
	return req, nil
}

// requestFromDocument decodes a request document with the deployment's codec.
// YAML is accepted so fixtures can hold multi-line scripts readably.
func requestFromDocument(cfg *config.Config, e *engine.Engine, logger *slog.Logger, path string) (engine.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Request{}, err
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return engine.Request{}, fmt.Errorf("failed to parse request document: %w", err)
	}
	line, err := json.Marshal(doc)
	if err != nil {
		return engine.Request{}, fmt.Errorf("failed to encode request document: %w", err)
	}

	decoder, err := newDecoder(cfg, e, logger)
	if err != nil {
		return engine.Request{}, err
	}
	return decoder.Decode(line)
}
