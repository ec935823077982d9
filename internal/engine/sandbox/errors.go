package sandbox

import (
	"errors"
	"fmt"
	"time"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/diagnostic"
)

var (
	ErrTimedOut        = diagnostic.ErrTimedOut
	ErrCanceled        = errors.New("evaluation canceled")
	ErrEmptyFilename   = errors.New("script display name is empty")
	ErrReservedBinding = errors.New("binding name is reserved")
	ErrBinding         = errors.New("failed to inject binding")
	ErrMissingJSON     = errors.New("runtime has no JSON intrinsic")
	ErrNoResult        = errors.New("harness did not write a result")
	ErrNotSerializable = errors.New("value has no JSON representation")
	ErrRuntime         = errors.New("runtime error")
)

// TimeoutError reports an evaluation aborted because its budget elapsed.
type TimeoutError struct {
	Budget time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("script did not finish within %s", e.Budget)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimedOut
}

// Failure is an exception raised by evaluated code, with its raw stack in
// executable-text coordinates.
type Failure struct {
	diagnostic.Failure
}

func (f *Failure) Error() string {
	return f.Header()
}

func (f *Failure) Unwrap() error {
	return diagnostic.ErrUserThrown
}

// CompileError is returned when the runtime rejects the executable text.
// Line and Column are 1-based executable coordinates, zero when unknown.
type CompileError struct {
	Message string
	Line    int
	Column  int
}

func (e *CompileError) Error() string {
	if e.Line == 0 {
		return "compile: " + e.Message
	}
	return fmt.Sprintf("compile: %s (%d:%d)", e.Message, e.Line, e.Column)
}

func (e *CompileError) Unwrap() error {
	return diagnostic.ErrSyntax
}
