// Package harness composes a compilation unit from generated API modules, the
// user's script and a small invocation epilogue.
package harness

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/posmap"
)

const (
	// ModuleBinding is the CommonJS module object the transpiled unit assigns its exports to.
	ModuleBinding = "module"
	// ResultBinding is the object the epilogue writes the entry point's result into.
	ResultBinding = "exports"
	// ResultSlot is the property of ResultBinding holding the result promise.
	ResultSlot = "result"

	// DefaultEntryPoint is the export invoked when none is configured.
	DefaultEntryPoint = "default"
)

var (
	ErrEmptyEntryPoint = errors.New("entry point must not be empty")
	ErrInvalidArgument = errors.New("invalid harness argument")
	ErrEmptyFilename   = errors.New("source filename must not be empty")
)

var identifier = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// SourceUnit is the user-authored script.
type SourceUnit struct {
	Text     string
	Filename string
}

// Module is one generated API text blob, supplied by the caller and never modified.
type Module struct {
	Name string
	Text string
}

// Input describes one compilation unit.
type Input struct {
	Source  SourceUnit
	Modules []Module

	// EntryPoint names the export to invoke. Empty means DefaultEntryPoint.
	EntryPoint string

	// Args are binding names passed positionally to the entry point.
	Args []string
}

// Unit is the composed compilation unit.
type Unit struct {
	Text     string
	Filename string
	Layout   posmap.Layout

	// SourceStartOffset is the byte offset of the user's text within Text.
	SourceStartOffset int
}

// Build concatenates the generated modules, the verbatim user source and the
// epilogue. Only invalid harness parameters are reported; user source is never
// inspected here.
func Build(in Input) (*Unit, error) {
	if in.Source.Filename == "" {
		return nil, ErrEmptyFilename
	}

	entry := in.EntryPoint
	if entry == "" {
		entry = DefaultEntryPoint
	}
	if strings.TrimSpace(entry) == "" {
		return nil, ErrEmptyEntryPoint
	}
	for _, arg := range in.Args {
		if !identifier.MatchString(arg) {
			return nil, fmt.Errorf("%w: %q is not an identifier", ErrInvalidArgument, arg)
		}
	}

	var b strings.Builder
	for _, m := range in.Modules {
		b.WriteString(m.Text)
		if !strings.HasSuffix(m.Text, "\n") {
			b.WriteByte('\n')
		}
	}

	prefix := b.String()
	sourceStartLine := countLineBreaks(prefix) + 1
	sourceStartOffset := len(prefix)

	b.WriteString(in.Source.Text)
	b.WriteByte('\n')
	epilogueStartLine := sourceStartLine + countLineBreaks(in.Source.Text+"\n")
	b.WriteString(epilogue(entry, in.Args))

	return &Unit{
		Text:     b.String(),
		Filename: in.Source.Filename,
		Layout: posmap.Layout{
			SourceStartLine:   sourceStartLine,
			EpilogueStartLine: epilogueStartLine,
		},
		SourceStartOffset: sourceStartOffset,
	}, nil
}

// countLineBreaks counts ECMAScript line terminators: CRLF counts once, and
// a lone CR, LF, U+2028 or U+2029 each start a new line.
func countLineBreaks(s string) int {
	n := 0
	for i, r := range s {
		switch r {
		case '\n':
			if i > 0 && s[i-1] == '\r' {
				continue
			}
			n++
		case '\r', '\u2028', '\u2029':
			n++
		}
	}
	return n
}

// epilogue calls the entry point and stores the promise of its result in the
// result slot. The block keeps the harness names out of the unit's scope.
func epilogue(entry string, args []string) string {
	quoted, _ := json.Marshal(entry)
	return fmt.Sprintf(`;{
  const __entry = %[1]s.exports[%[2]s];
  if (typeof __entry !== "function") {
    throw new TypeError("script must export a function named " + %[2]s);
  }
  %[3]s.%[4]s = Promise.resolve(__entry(%[5]s));
}
`, ModuleBinding, quoted, ResultBinding, ResultSlot, strings.Join(args, ", "))
}
