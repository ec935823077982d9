// Package artifact validates a settled script value against an expected shape
// and serializes it into the domain artifact.
package artifact

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrUnknownShape = errors.New("unknown expected return type")

// Shape describes what a script must resolve to.
type Shape struct {
	// Name is the expected-return-type tag used on the wire.
	Name string
	// Tags lists constructor names, any of which must appear in a leaf's
	// prototype chain.
	Tags []string
	// Collection shapes accept any number of leaves and serialize to an array.
	Collection bool
	// Member is the property holding the leaf's serializable form. When it
	// is a function it is called with the leaf as receiver.
	Member string
}

func (s Shape) String() string {
	return s.Name
}

var (
	Goal = Shape{
		Name:   "Goal",
		Tags:   []string{"Goal"},
		Member: "__astNode",
	}
	GlobalSchedulingCondition = Shape{
		Name:   "GlobalSchedulingCondition",
		Tags:   []string{"GlobalSchedulingCondition"},
		Member: "__astNode",
	}
	Constraint = Shape{
		Name:   "Constraint",
		Tags:   []string{"Constraint"},
		Member: "__astNode",
	}
	Commands = Shape{
		Name:       "Command[]",
		Tags:       []string{"CommandStem"},
		Collection: true,
		Member:     "toSeqJson",
	}
)

var registry = map[string]Shape{
	Goal.Name:                      Goal,
	GlobalSchedulingCondition.Name: GlobalSchedulingCondition,
	Constraint.Name:                Constraint,
	Commands.Name:                  Commands,
	"ExpansionReturn":              Commands,
}

// Lookup returns the shape registered under an expected-return-type tag.
func Lookup(name string) (Shape, error) {
	s, ok := registry[strings.TrimSpace(name)]
	if !ok {
		return Shape{}, fmt.Errorf("%w: %q (known: %s)", ErrUnknownShape, name, strings.Join(Names(), ", "))
	}
	return s, nil
}

// Names lists the registered tags in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
