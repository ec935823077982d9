// Package engine drives one script through harness assembly, transpilation,
// sandboxed evaluation and artifact serialization, reporting failures as
// diagnostics in the user's source coordinates.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/artifact"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/diagnostic"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/finitestate"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/harness"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/posmap"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/sandbox"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/transpile"
	"github.com/gofrs/uuid/v5"
)

// DefaultFilename is the display name given to user source without one.
const DefaultFilename = "__user_file.ts"

// Profile describes how a deployment invokes user code.
type Profile struct {
	Name string
	// EntryPoint is the export called by the harness.
	EntryPoint string
	// ArgNames are the bindings passed to the entry point, in order.
	ArgNames []string
}

// Request is one evaluation.
type Request struct {
	Source  harness.SourceUnit
	Modules []harness.Module
	Profile Profile
	Shape   artifact.Shape
	// Args holds a JSON value for each of Profile.ArgNames. Missing names are
	// bound to null.
	Args map[string]json.RawMessage
	// Timeout overrides the executor budget when positive.
	Timeout time.Duration
}

// Outcome is the single result of a request. It succeeded when Diagnostics is
// empty.
type Outcome struct {
	JobID       uuid.UUID
	Job         *Job
	Artifact    json.RawMessage
	Diagnostics []diagnostic.Diagnostic
	Kind        diagnostic.Kind
	Duration    time.Duration
}

// OK reports whether an artifact was produced.
func (o *Outcome) OK() bool {
	return len(o.Diagnostics) == 0
}

// Err returns the failure as a *diagnostic.Error, or nil on success.
func (o *Outcome) Err() error {
	if o.OK() {
		return nil
	}
	return diagnostic.NewError(o.Kind, o.Diagnostics...)
}

// Program is a transpiled request that can be evaluated repeatedly with
// different arguments. Release it when done.
type Program struct {
	code     string
	filename string
	posMap   *posmap.Map
	profile  Profile
	shape    artifact.Shape
	timeout  time.Duration
}

// Filename is the display name frames are reported under.
func (p *Program) Filename() string {
	return p.filename
}

// Release drops the position map.
func (p *Program) Release() {
	if p == nil {
		return
	}
	p.posMap.Release()
}

// Engine is safe for concurrent use; each call builds its own runtime.
type Engine struct {
	transpiler *transpile.Transpiler
	executor   *sandbox.Executor
	filename   string
	console    bool
	logger     *slog.Logger
}

// New creates an Engine with the default transpiler and executor unless
// replaced by options.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		filename: DefaultFilename,
		logger:   slog.Default().WithGroup("engine.Engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.transpiler == nil {
		t, err := transpile.New(transpile.DefaultTarget, transpile.WithLogger(e.logger))
		if err != nil {
			return nil, err
		}
		e.transpiler = t
	}
	if e.executor == nil {
		e.executor = sandbox.New(sandbox.WithLogger(e.logger))
	}
	return e, nil
}

// Run evaluates a request from source to artifact.
func (e *Engine) Run(ctx context.Context, req Request) *Outcome {
	job, err := NewJob(req.Profile.Name, e.logger.Handler())
	if err != nil {
		return e.fault(err)
	}
	job.logger.Debug("Job started", "filename", req.Source.Filename, "shape", req.Shape.Name)

	prog, err := e.prepare(job, req)
	if err != nil {
		return e.finish(job, nil, err, nil)
	}
	defer prog.Release()

	art, err := e.evaluate(ctx, job, prog, req.Args)
	return e.finish(job, art, err, prog)
}

// Prepare assembles and transpiles a request without running it. A non-nil
// Outcome reports why preparation failed.
func (e *Engine) Prepare(req Request) (*Program, *Outcome) {
	job, err := NewJob(req.Profile.Name, e.logger.Handler())
	if err != nil {
		return nil, e.fault(err)
	}
	prog, err := e.prepare(job, req)
	if err != nil {
		return nil, e.finish(job, nil, err, nil)
	}
	return prog, nil
}

// Evaluate runs a prepared program with the given arguments in a fresh
// sandbox.
func (e *Engine) Evaluate(ctx context.Context, prog *Program, args map[string]json.RawMessage) *Outcome {
	job, err := NewJob(prog.profile.Name, e.logger.Handler())
	if err != nil {
		return e.fault(err)
	}
	art, err := e.evaluate(ctx, job, prog, args)
	return e.finish(job, art, err, prog)
}

func (e *Engine) prepare(job *Job, req Request) (*Program, error) {
	filename := req.Source.Filename
	if filename == "" {
		filename = e.filename
	}
	entry := req.Profile.EntryPoint
	if entry == "" {
		entry = harness.DefaultEntryPoint
	}

	unit, err := harness.Build(harness.Input{
		Source:     harness.SourceUnit{Text: req.Source.Text, Filename: filename},
		Modules:    req.Modules,
		EntryPoint: entry,
		Args:       req.Profile.ArgNames,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", diagnostic.ErrEngineFault, err)
	}

	job.enter(finitestate.JobTranspiling)
	start := time.Now()
	out, err := e.transpiler.Transpile(unit)
	if err != nil {
		return nil, err
	}
	job.logger.Debug("Transpiled", "duration", time.Since(start), "bytes", len(out.Code))

	return &Program{
		code:     out.Code,
		filename: filename,
		posMap:   out.Map,
		profile:  req.Profile,
		shape:    req.Shape,
		timeout:  req.Timeout,
	}, nil
}

func (e *Engine) evaluate(ctx context.Context, job *Job, prog *Program, args map[string]json.RawMessage) (json.RawMessage, error) {
	bindings := make(map[string]any, len(prog.profile.ArgNames))
	for _, name := range prog.profile.ArgNames {
		v, ok := args[name]
		if !ok || len(v) == 0 {
			v = json.RawMessage("null")
		}
		bindings[name] = v
	}

	script := sandbox.Script{
		Code:     prog.code,
		Filename: prog.filename,
		Bindings: bindings,
		Timeout:  prog.timeout,
		Regions:  prog.posMap,
	}
	if e.console {
		script.Console = job.logger.With("source", "console")
	}

	job.enter(finitestate.JobExecuting)
	start := time.Now()
	res, err := e.executor.Execute(ctx, script)
	if err != nil {
		return nil, err
	}
	defer res.Release()
	job.logger.Debug("Script evaluated", "duration", time.Since(start))

	job.enter(finitestate.JobSerializing)
	return artifact.Serialize(res, prog.shape)
}

// finish turns the pipeline result into an Outcome. The position map is used
// for translation here and released by the caller afterwards.
func (e *Engine) finish(job *Job, art json.RawMessage, err error, prog *Program) *Outcome {
	out := &Outcome{
		JobID:    job.ID,
		Job:      job,
		Duration: job.Duration(),
	}
	if err == nil {
		out.Artifact = art
		job.enter(finitestate.JobSucceeded)
		job.logger.Info("Job succeeded", "duration", out.Duration)
		return out
	}

	out.Kind, out.Diagnostics = e.diagnose(err, prog)
	job.enter(finitestate.JobFailed)
	job.logger.Info("Job failed", "kind", out.Kind, "duration", out.Duration, "error", err)
	return out
}

func (e *Engine) diagnose(err error, prog *Program) (diagnostic.Kind, []diagnostic.Diagnostic) {
	var (
		diagErr    *diagnostic.Error
		failure    *sandbox.Failure
		timeout    *sandbox.TimeoutError
		compileErr *sandbox.CompileError
	)

	switch {
	case errors.As(err, &diagErr):
		return diagErr.Kind, diagErr.Diagnostics

	case errors.As(err, &failure):
		var m diagnostic.Mapper
		name := ""
		if prog != nil {
			m, name = prog.posMap, prog.filename
		}
		return diagnostic.KindUserThrown, []diagnostic.Diagnostic{
			diagnostic.Translate(diagnostic.KindUserThrown, failure.Failure, m, name),
		}

	case errors.As(err, &timeout):
		return diagnostic.KindTimedOut, []diagnostic.Diagnostic{
			diagnostic.Newf(diagnostic.KindTimedOut, "TimeoutError: Execution timed out after %s", timeout.Budget),
		}

	case errors.As(err, &compileErr):
		msg := "SyntaxError: " + compileErr.Message
		if prog != nil && compileErr.Line > 0 {
			if pos, ok := prog.posMap.Lookup(compileErr.Line, compileErr.Column); ok {
				return diagnostic.KindSyntaxError, []diagnostic.Diagnostic{
					diagnostic.At(diagnostic.KindSyntaxError, msg, prog.filename, pos),
				}
			}
		}
		return diagnostic.KindSyntaxError, []diagnostic.Diagnostic{diagnostic.New(diagnostic.KindSyntaxError, msg)}

	default:
		e.logger.Error("Engine fault", "error", err)
		return diagnostic.KindEngineFault, []diagnostic.Diagnostic{
			diagnostic.New(diagnostic.KindEngineFault, "EngineFault: "+err.Error()),
		}
	}
}

// fault reports a failure that happened before a job could be created.
func (e *Engine) fault(err error) *Outcome {
	e.logger.Error("Failed to create job", "error", err)
	return &Outcome{
		Kind:        diagnostic.KindEngineFault,
		Diagnostics: []diagnostic.Diagnostic{diagnostic.New(diagnostic.KindEngineFault, "EngineFault: "+err.Error())},
	}
}
