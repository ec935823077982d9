// Package posmap maps positions in transpiled script text back to the user's
// original source lines.
//
// A Map is built once per compilation unit. Lookups answer in the user's own
// coordinates, or report that the position belongs to generated API text or
// to the invocation harness, neither of which has an original counterpart.
package posmap

import (
	"errors"
	"fmt"

	"github.com/go-sourcemap/sourcemap"
)

// ErrInvalidSourceMap is returned when the transpiler output map cannot be decoded.
var ErrInvalidSourceMap = errors.New("invalid source map")

// Position is a 1-based line and column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Region identifies which part of a compilation unit a line belongs to.
type Region int

const (
	RegionUnknown Region = iota
	RegionGenerated
	RegionUser
	RegionHarness
)

func (r Region) String() string {
	switch r {
	case RegionGenerated:
		return "generated"
	case RegionUser:
		return "user"
	case RegionHarness:
		return "harness"
	default:
		return "unknown"
	}
}

// Layout records where the user's source sits inside a compilation unit.
// Lines are 1-based and refer to the unit text before transpilation.
type Layout struct {
	// SourceStartLine is the unit line holding the first line of user source.
	SourceStartLine int
	// EpilogueStartLine is the first unit line of the invocation harness.
	EpilogueStartLine int
}

// RegionOf classifies a unit line.
func (l Layout) RegionOf(unitLine int) Region {
	switch {
	case unitLine < 1:
		return RegionUnknown
	case unitLine < l.SourceStartLine:
		return RegionGenerated
	case unitLine < l.EpilogueStartLine:
		return RegionUser
	default:
		return RegionHarness
	}
}

// ToOriginal converts a unit position to user source coordinates. ok is false
// when the position is outside the user's contribution.
func (l Layout) ToOriginal(unitLine, unitColumn int) (Position, bool) {
	if l.RegionOf(unitLine) != RegionUser {
		return Position{}, false
	}
	if unitColumn < 1 {
		unitColumn = 1
	}
	return Position{Line: unitLine - l.SourceStartLine + 1, Column: unitColumn}, true
}

// Map resolves positions in executable text to user source positions.
type Map struct {
	consumer   *sourcemap.Consumer
	sourceName string
	layout     Layout
}

// New decodes a v3 source map produced for a single compilation unit named sourceName.
func New(rawMap []byte, sourceName string, layout Layout) (*Map, error) {
	consumer, err := sourcemap.Parse("", rawMap)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSourceMap, err)
	}
	return &Map{
		consumer:   consumer,
		sourceName: sourceName,
		layout:     layout,
	}, nil
}

// resolve maps an executable-text position (1-based line and column) to a unit
// position, or reports false if the transpiler emitted no mapping for it.
func (m *Map) resolve(genLine, genColumn int) (int, int, bool) {
	if m == nil || m.consumer == nil || genLine < 1 {
		return 0, 0, false
	}
	if genColumn < 1 {
		genColumn = 1
	}
	source, _, line, column, ok := m.consumer.Source(genLine, genColumn-1)
	if !ok {
		return 0, 0, false
	}
	if m.sourceName != "" && source != m.sourceName {
		return 0, 0, false
	}
	return line, column + 1, true
}

// RegionOf reports which part of the unit produced the given executable position.
func (m *Map) RegionOf(genLine, genColumn int) Region {
	line, _, ok := m.resolve(genLine, genColumn)
	if !ok {
		return RegionUnknown
	}
	return m.layout.RegionOf(line)
}

// Lookup maps an executable position to the user's original coordinates. The
// second result is false for positions in generated API text, in the harness,
// or without any mapping.
func (m *Map) Lookup(genLine, genColumn int) (Position, bool) {
	line, column, ok := m.resolve(genLine, genColumn)
	if !ok {
		return Position{}, false
	}
	return m.layout.ToOriginal(line, column)
}

// Release drops the decoded mappings. Lookups after Release report no mapping.
func (m *Map) Release() {
	if m == nil {
		return
	}
	m.consumer = nil
}

// Released reports whether Release has been called.
func (m *Map) Released() bool {
	return m == nil || m.consumer == nil
}
