// Package expansion turns activity instances into command sequences by
// running user expansion logic against generated command and activity types.
package expansion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/artifact"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/diagnostic"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/harness"
	"golang.org/x/sync/errgroup"
)

const (
	Name = "expansion"

	// PropsBinding is the single argument passed to expansion logic.
	PropsBinding = "props"
)

var (
	ErrInvalidRequest  = errors.New("invalid expansion request")
	ErrMissingField    = errors.New("missing field")
	ErrInvalidInstance = errors.New("activity instance is not valid JSON")
)

// Profile calls the default export with one props object.
var Profile = engine.Profile{
	Name:       Name,
	EntryPoint: harness.DefaultEntryPoint,
	ArgNames:   []string{PropsBinding},
}

// Request is one expansion of one activity instance.
type Request struct {
	ExpansionLogic   string          `json:"expansionLogic"`
	Filename         string          `json:"filename,omitempty"`
	CommandTypes     string          `json:"commandTypes"`
	ActivityTypes    string          `json:"activityTypes"`
	ActivityInstance json.RawMessage `json:"activityInstance"`
}

func (r *Request) Validate() error {
	var errs []error
	if r.ExpansionLogic == "" {
		errs = append(errs, fmt.Errorf("%w: expansionLogic", ErrMissingField))
	}
	if len(r.ActivityInstance) == 0 {
		errs = append(errs, fmt.Errorf("%w: activityInstance", ErrMissingField))
	} else if !json.Valid(r.ActivityInstance) {
		errs = append(errs, ErrInvalidInstance)
	}
	return errors.Join(errs...)
}

// Result is the successful expansion of one activity instance.
type Result struct {
	Commands json.RawMessage `json:"commands"`
}

// Batch expands many activity instances with the same logic.
type Batch struct {
	ExpansionLogic    string            `json:"expansionLogic"`
	Filename          string            `json:"filename,omitempty"`
	CommandTypes      string            `json:"commandTypes"`
	ActivityTypes     string            `json:"activityTypes"`
	ActivityInstances []json.RawMessage `json:"activityInstances"`
}

// InstanceResult is the outcome for one activity instance in a batch.
// Commands is null when Errors is not empty.
type InstanceResult struct {
	ActivityInstanceID json.RawMessage         `json:"activityInstanceId"`
	Commands           json.RawMessage         `json:"commands"`
	Errors             []diagnostic.Diagnostic `json:"errors"`
}

// Expander runs expansion logic in process.
type Expander struct {
	engine      *engine.Engine
	filename    string
	concurrency int
	logger      *slog.Logger
}

// NewExpander creates an Expander using e for every evaluation.
func NewExpander(e *engine.Engine, opts ...Option) *Expander {
	x := &Expander{
		engine:      e,
		filename:    engine.DefaultFilename,
		concurrency: runtime.GOMAXPROCS(0),
		logger:      slog.Default().WithGroup("expansion.Expander"),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

func (x *Expander) String() string {
	return Name
}

// Expand evaluates the logic against one activity instance. Failures are
// returned as a *diagnostic.Error.
func (x *Expander) Expand(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	out := x.engine.Run(ctx, x.request(req))
	if !out.OK() {
		return nil, out.Err()
	}
	return &Result{Commands: out.Artifact}, nil
}

// ExpandAll transpiles the logic once and evaluates it for every activity
// instance, each in its own sandbox. Results are in input order. Per-instance
// failures are reported in the results; the returned error is only set when
// the logic itself could not be prepared or the context ended.
func (x *Expander) ExpandAll(ctx context.Context, b Batch) ([]InstanceResult, error) {
	if b.ExpansionLogic == "" {
		return nil, fmt.Errorf("%w: %w: expansionLogic", ErrInvalidRequest, ErrMissingField)
	}

	prog, failed := x.engine.Prepare(x.request(Request{
		ExpansionLogic: b.ExpansionLogic,
		Filename:       b.Filename,
		CommandTypes:   b.CommandTypes,
		ActivityTypes:  b.ActivityTypes,
	}))
	if failed != nil {
		return nil, failed.Err()
	}
	defer prog.Release()

	results := make([]InstanceResult, len(b.ActivityInstances))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(x.concurrency, 1))

	for i, raw := range b.ActivityInstances {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = x.expandOne(gctx, prog, raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	x.logger.Debug("Batch expanded", "instances", len(results), "filename", prog.Filename())
	return results, nil
}

func (x *Expander) expandOne(ctx context.Context, prog *engine.Program, raw json.RawMessage) InstanceResult {
	inst := parseInstance(raw)
	res := InstanceResult{
		ActivityInstanceID: inst.ID,
		Commands:           json.RawMessage("null"),
		Errors:             []diagnostic.Diagnostic{},
	}
	if len(res.ActivityInstanceID) == 0 {
		res.ActivityInstanceID = json.RawMessage("null")
	}

	if !json.Valid(raw) {
		res.Errors = append(res.Errors, diagnostic.New(diagnostic.KindValidationFailed, ErrInvalidInstance.Error()))
		return res
	}
	if !inst.hasDuration() {
		res.Errors = append(res.Errors, diagnostic.New(diagnostic.KindValidationFailed, "Duration is null"))
		return res
	}

	out := x.engine.Evaluate(ctx, prog, props(raw))
	if !out.OK() {
		res.Errors = out.Diagnostics
		return res
	}
	res.Commands = out.Artifact
	return res
}

func (x *Expander) request(r Request) engine.Request {
	filename := r.Filename
	if filename == "" {
		filename = x.filename
	}
	return engine.Request{
		Source: harness.SourceUnit{Text: r.ExpansionLogic, Filename: filename},
		Modules: []harness.Module{
			{Name: "command-types.ts", Text: r.CommandTypes},
			{Name: "activity-types.ts", Text: r.ActivityTypes},
		},
		Profile: Profile,
		Shape:   artifact.Commands,
		Args:    props(r.ActivityInstance),
	}
}

// props wraps an activity instance as the argument expansion logic receives.
func props(instance json.RawMessage) map[string]json.RawMessage {
	if len(instance) == 0 {
		instance = json.RawMessage("null")
	}
	var b bytes.Buffer
	b.WriteString(`{"activityInstance":`)
	b.Write(instance)
	b.WriteString(`}`)
	return map[string]json.RawMessage{PropsBinding: b.Bytes()}
}

type instance struct {
	ID       json.RawMessage `json:"id"`
	Duration json.RawMessage `json:"duration"`
	EndTime  json.RawMessage `json:"endTime"`
}

func parseInstance(raw json.RawMessage) instance {
	var inst instance
	_ = json.Unmarshal(raw, &inst)
	return inst
}

// hasDuration is false when the simulation could not bound the activity,
// which leaves both duration and end time null.
func (i instance) hasDuration() bool {
	return !isNull(i.Duration) || !isNull(i.EndTime)
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || string(bytes.TrimSpace(v)) == "null"
}
