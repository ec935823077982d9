// Package constraints compiles constraint definitions.
package constraints

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/artifact"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/harness"
)

const Name = "constraints"

var (
	ErrInvalidRequest = errors.New("invalid constraints request")
	ErrMissingField   = errors.New("missing field")
)

var Profile = engine.Profile{
	Name:       Name,
	EntryPoint: harness.DefaultEntryPoint,
}

// Request is the wire form of one constraint compilation. An empty
// expectedReturnType means Constraint.
type Request struct {
	ConstraintCode           string `json:"constraintCode"`
	ConstraintsGeneratedCode string `json:"constraintsGeneratedCode"`
	ExpectedReturnType       string `json:"expectedReturnType"`
}

func (r *Request) Validate() error {
	var errs []error
	if r.ConstraintCode == "" {
		errs = append(errs, fmt.Errorf("%w: constraintCode", ErrMissingField))
	}
	if r.ExpectedReturnType != "" {
		if _, err := artifact.Lookup(r.ExpectedReturnType); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Decoder struct {
	filename string
}

func NewDecoder(filename string) *Decoder {
	if filename == "" {
		filename = engine.DefaultFilename
	}
	return &Decoder{filename: filename}
}

func (d *Decoder) String() string {
	return Name
}

func (d *Decoder) Decode(line []byte) (engine.Request, error) {
	var r Request
	if err := json.Unmarshal(line, &r); err != nil {
		return engine.Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if err := r.Validate(); err != nil {
		return engine.Request{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	shape := artifact.Constraint
	if r.ExpectedReturnType != "" {
		shape, _ = artifact.Lookup(r.ExpectedReturnType)
	}

	return engine.Request{
		Source: harness.SourceUnit{Text: r.ConstraintCode, Filename: d.filename},
		Modules: []harness.Module{
			{Name: "constraints-edsl-fluent-api.ts", Text: r.ConstraintsGeneratedCode},
		},
		Profile: Profile,
		Shape:   shape,
	}, nil
}
