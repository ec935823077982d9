// Package scheduling compiles scheduling goals and global scheduling
// conditions.
package scheduling

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/artifact"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/harness"
)

const Name = "scheduling"

var (
	ErrInvalidRequest = errors.New("invalid scheduling request")
	ErrMissingField   = errors.New("missing field")
)

// Profile invokes the default export with no arguments.
var Profile = engine.Profile{
	Name:       Name,
	EntryPoint: harness.DefaultEntryPoint,
}

// Request is the wire form of one goal compilation.
type Request struct {
	GoalCode                 string `json:"goalCode"`
	SchedulerGeneratedCode   string `json:"schedulerGeneratedCode"`
	ConstraintsGeneratedCode string `json:"constraintsGeneratedCode"`
	ExpectedReturnType       string `json:"expectedReturnType"`
}

// Validate checks the request fields.
func (r *Request) Validate() error {
	var errs []error
	if r.GoalCode == "" {
		errs = append(errs, fmt.Errorf("%w: goalCode", ErrMissingField))
	}
	if r.ExpectedReturnType == "" {
		errs = append(errs, fmt.Errorf("%w: expectedReturnType", ErrMissingField))
	} else if _, err := artifact.Lookup(r.ExpectedReturnType); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Decoder turns request lines into engine requests.
type Decoder struct {
	filename string
}

// NewDecoder creates a Decoder reporting frames under filename, or the engine
// default when empty.
func NewDecoder(filename string) *Decoder {
	if filename == "" {
		filename = engine.DefaultFilename
	}
	return &Decoder{filename: filename}
}

func (d *Decoder) String() string {
	return Name
}

// Decode parses one JSON request. Constraint declarations precede the
// scheduler declarations that build on them.
func (d *Decoder) Decode(line []byte) (engine.Request, error) {
	var r Request
	if err := json.Unmarshal(line, &r); err != nil {
		return engine.Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := r.Validate(); err != nil {
		return engine.Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	shape, _ := artifact.Lookup(r.ExpectedReturnType)

	return engine.Request{
		Source: harness.SourceUnit{Text: r.GoalCode, Filename: d.filename},
		Modules: []harness.Module{
			{Name: "constraints-edsl-fluent-api.ts", Text: r.ConstraintsGeneratedCode},
			{Name: "scheduler-edsl-fluent-api.ts", Text: r.SchedulerGeneratedCode},
		},
		Profile: Profile,
		Shape:   shape,
	}, nil
}
