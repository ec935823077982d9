// Package transpile turns a TypeScript compilation unit into executable
// JavaScript with a position map back to the user's source.
package transpile

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/diagnostic"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/harness"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/posmap"
	"github.com/evanw/esbuild/pkg/api"
)

// DefaultTarget is the language level scripts are lowered to.
const DefaultTarget = "es2017"

var (
	ErrUnknownTarget = errors.New("unknown transpile target")
	ErrNoOutput      = errors.New("transpiler produced no output")
)

var targets = map[string]api.Target{
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ParseTarget validates a target name such as "es2020".
func ParseTarget(name string) (api.Target, error) {
	if name == "" {
		name = DefaultTarget
	}
	t, ok := targets[strings.ToLower(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTarget, name)
	}
	return t, nil
}

// Output is the executable text and its position map.
type Output struct {
	Code string
	Map  *posmap.Map
}

// Transpiler wraps the esbuild transform API with fixed settings.
type Transpiler struct {
	target api.Target
	logger *slog.Logger
}

// New creates a Transpiler for the named target.
func New(target string, opts ...Option) (*Transpiler, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	tr := &Transpiler{
		target: t,
		logger: slog.Default().WithGroup("transpile.Transpiler"),
	}
	for _, opt := range opts {
		opt(tr)
	}
	return tr, nil
}

// Transpile compiles the unit. Errors that block output are returned as a
// *diagnostic.Error of kind SyntaxError, positioned in the user's source when
// they fall inside it. Warnings are logged and otherwise ignored.
func (t *Transpiler) Transpile(unit *harness.Unit) (*Output, error) {
	result := api.Transform(unit.Text, api.TransformOptions{
		Loader:     api.LoaderTS,
		Format:     api.FormatCommonJS,
		Target:     t.target,
		Sourcemap:  api.SourceMapExternal,
		Sourcefile: unit.Filename,
		LogLevel:   api.LogLevelSilent,
	})

	if len(result.Errors) > 0 {
		diags := make([]diagnostic.Diagnostic, 0, len(result.Errors))
		for _, msg := range result.Errors {
			diags = append(diags, toDiagnostic(msg, unit))
		}
		return nil, diagnostic.NewError(diagnostic.KindSyntaxError, diags...)
	}
	if len(result.Warnings) > 0 {
		t.logger.Debug("Transpiler warnings ignored", "count", len(result.Warnings))
	}
	if len(result.Code) == 0 && strings.TrimSpace(unit.Text) != "" {
		return nil, ErrNoOutput
	}

	m, err := posmap.New(result.Map, unit.Filename, unit.Layout)
	if err != nil {
		return nil, err
	}

	return &Output{
		Code: string(result.Code),
		Map:  m,
	}, nil
}

func toDiagnostic(msg api.Message, unit *harness.Unit) diagnostic.Diagnostic {
	text := "SyntaxError: " + msg.Text
	if msg.Location == nil {
		return diagnostic.New(diagnostic.KindSyntaxError, text)
	}
	// esbuild columns are 0-based
	pos, ok := unit.Layout.ToOriginal(msg.Location.Line, msg.Location.Column+1)
	if !ok {
		region := unit.Layout.RegionOf(msg.Location.Line)
		return diagnostic.Newf(diagnostic.KindSyntaxError, "%s (in %s code)", text, region)
	}
	return diagnostic.At(diagnostic.KindSyntaxError, text, unit.Filename, pos)
}
