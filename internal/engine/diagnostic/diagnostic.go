// Package diagnostic holds the user-facing error report produced when a script
// fails, and translates raw runtime stacks into the user's source coordinates.
package diagnostic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/posmap"
)

// Kind categorizes a failure.
type Kind string

const (
	KindSyntaxError      Kind = "SyntaxError"
	KindUserThrown       Kind = "UserThrown"
	KindTimedOut         Kind = "TimedOut"
	KindValidationFailed Kind = "ValidationFailed"
	KindEngineFault      Kind = "EngineFault"
)

var (
	ErrSyntax           = errors.New("script could not be transpiled")
	ErrUserThrown       = errors.New("script raised an exception")
	ErrTimedOut         = errors.New("script exceeded its time budget")
	ErrValidationFailed = errors.New("script result failed validation")
	ErrEngineFault      = errors.New("engine fault")
)

// Sentinel returns the sentinel error matching the kind.
func (k Kind) Sentinel() error {
	switch k {
	case KindSyntaxError:
		return ErrSyntax
	case KindUserThrown:
		return ErrUserThrown
	case KindTimedOut:
		return ErrTimedOut
	case KindValidationFailed:
		return ErrValidationFailed
	default:
		return ErrEngineFault
	}
}

// Frame is one stack frame in the user's original coordinates.
type Frame struct {
	FunctionName *string `json:"functionName"`
	File         string  `json:"file"`
	Line         int     `json:"line"`
	Column       int     `json:"column"`
	IsAsync      bool    `json:"isAsync"`
}

// Diagnostic is a translated, user-file-scoped error report.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	// Stack is Message followed by one rendered line per frame.
	Stack    string           `json:"stack"`
	Location *posmap.Position `json:"location"`
	Frames   []Frame          `json:"frames"`
}

// New creates a frameless diagnostic.
func New(kind Kind, message string) Diagnostic {
	d := Diagnostic{
		Kind:    kind,
		Message: message,
		Frames:  []Frame{},
	}
	d.Stack = Render(d)
	return d
}

// Newf creates a frameless diagnostic with a formatted message.
func Newf(kind Kind, format string, args ...any) Diagnostic {
	return New(kind, fmt.Sprintf(format, args...))
}

// At creates a diagnostic with a single frame at a known user position, as
// reported by the transpiler.
func At(kind Kind, message, file string, pos posmap.Position) Diagnostic {
	d := Diagnostic{
		Kind:     kind,
		Message:  message,
		Location: &pos,
		Frames:   []Frame{{File: file, Line: pos.Line, Column: pos.Column}},
	}
	d.Stack = Render(d)
	return d
}

// Render formats the message followed by one line per frame.
func Render(d Diagnostic) string {
	var b strings.Builder
	b.WriteString(d.Message)
	for _, f := range d.Frames {
		b.WriteString("\n    at ")
		if f.IsAsync {
			b.WriteString("async ")
		}
		if f.FunctionName != nil && *f.FunctionName != "" {
			fmt.Fprintf(&b, "%s (%s:%d:%d)", *f.FunctionName, f.File, f.Line, f.Column)
			continue
		}
		fmt.Fprintf(&b, "%s:%d:%d", f.File, f.Line, f.Column)
	}
	return b.String()
}

// Error carries one or more diagnostics of the same kind through Go error returns.
type Error struct {
	Kind        Kind
	Diagnostics []Diagnostic
}

// NewError wraps diagnostics into an error.
func NewError(kind Kind, diags ...Diagnostic) *Error {
	return &Error{Kind: kind, Diagnostics: diags}
}

func (e *Error) Error() string {
	switch len(e.Diagnostics) {
	case 0:
		return e.Kind.Sentinel().Error()
	case 1:
		return e.Diagnostics[0].Message
	default:
		return fmt.Sprintf("%s (and %d more)", e.Diagnostics[0].Message, len(e.Diagnostics)-1)
	}
}

func (e *Error) Unwrap() error {
	return e.Kind.Sentinel()
}
