package diagnostic

import (
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/posmap"
)

// RawFrame is a frame as captured by the runtime, in executable-text coordinates.
type RawFrame struct {
	File     string
	Function string
	Line     int
	Column   int
	// Async marks a frame resumed from a suspended asynchronous call.
	Async bool
}

// Failure is a native failure captured from the sandbox, innermost frame first.
type Failure struct {
	Name    string
	Message string
	Frames  []RawFrame
}

// Header renders "<name>: <message>".
func (f Failure) Header() string {
	switch {
	case f.Name == "":
		return f.Message
	case f.Message == "":
		return f.Name
	default:
		return f.Name + ": " + f.Message
	}
}

// Mapper resolves executable positions to the user's source.
type Mapper interface {
	Lookup(genLine, genColumn int) (posmap.Position, bool)
}

// Translate rewrites a failure's stack into user coordinates. Frames from any
// file other than displayName, or without an original position, are dropped.
// An empty frame list is valid.
func Translate(kind Kind, f Failure, m Mapper, displayName string) Diagnostic {
	frames := make([]Frame, 0, len(f.Frames))
	for _, raw := range f.Frames {
		if raw.File != displayName || m == nil {
			continue
		}
		pos, ok := m.Lookup(raw.Line, raw.Column)
		if !ok {
			continue
		}
		frame := Frame{
			File:    displayName,
			Line:    pos.Line,
			Column:  pos.Column,
			IsAsync: raw.Async,
		}
		if raw.Function != "" {
			name := raw.Function
			frame.FunctionName = &name
		}
		frames = append(frames, frame)
	}

	d := Diagnostic{
		Kind:    kind,
		Message: f.Header(),
		Frames:  frames,
	}
	if len(frames) > 0 {
		d.Location = &posmap.Position{Line: frames[0].Line, Column: frames[0].Column}
	}
	d.Stack = Render(d)
	return d
}
