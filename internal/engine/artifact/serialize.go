package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/diagnostic"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/sandbox"
	"github.com/dop251/goja"
)

var ErrCyclic = errors.New("array contains itself")

// Flatten expands arbitrarily nested arrays into a flat list of leaves in
// depth-first order. A value that is not an array is a single leaf.
func Flatten(v goja.Value) ([]goja.Value, error) {
	out := []goja.Value{}
	path := map[*goja.Object]bool{}

	var walk func(goja.Value) error
	walk = func(v goja.Value) error {
		arr, ok := v.(*goja.Object)
		if !ok || arr.ClassName() != "Array" {
			out = append(out, v)
			return nil
		}
		if path[arr] {
			return ErrCyclic
		}
		path[arr] = true
		defer delete(path, arr)

		n := arr.Get("length").ToInteger()
		for i := int64(0); i < n; i++ {
			if err := walk(arr.Get(strconv.FormatInt(i, 10))); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(v); err != nil {
		return nil, err
	}
	return out, nil
}

// Serialize checks the settled value against shape and returns the artifact.
//
// Shape violations are returned as a *diagnostic.Error of kind
// ValidationFailed. Exceptions raised by script code while serializing come
// back as *sandbox.Failure and budget expiry as *sandbox.TimeoutError.
func Serialize(res *sandbox.Result, shape Shape) (json.RawMessage, error) {
	var leaves []goja.Value
	var flatErr error
	if err := res.Guard(func() { leaves, flatErr = Flatten(res.Value) }); err != nil {
		return nil, err
	}
	if flatErr != nil {
		return nil, invalid("%s: %v", incorrect(shape, "cyclic array"), flatErr)
	}

	if !shape.Collection && len(leaves) != 1 {
		return nil, invalid("%s", incorrect(shape, fmt.Sprintf("%d values", len(leaves))))
	}

	parts := make([]json.RawMessage, 0, len(leaves))
	for _, leaf := range leaves {
		raw, err := serializeLeaf(res, shape, leaf)
		if err != nil {
			return nil, err
		}
		parts = append(parts, raw)
	}

	if !shape.Collection {
		return parts[0], nil
	}
	return json.Marshal(parts)
}

func serializeLeaf(res *sandbox.Result, shape Shape, leaf goja.Value) (json.RawMessage, error) {
	var (
		tagged bool
		actual string
		member goja.Value
	)
	err := res.Guard(func() {
		actual = typeName(leaf)
		obj, ok := leaf.(*goja.Object)
		if !ok {
			return
		}
		tagged = hasConstructor(obj, shape.Tags)
		if tagged {
			member = obj.Get(shape.Member)
		}
	})
	if err != nil {
		return nil, err
	}
	if !tagged {
		return nil, invalid("%s", incorrect(shape, actual))
	}
	if member == nil || goja.IsUndefined(member) {
		return nil, invalid("%s value has no %s", actual, shape.Member)
	}

	if fn, ok := goja.AssertFunction(member); ok {
		member, err = res.Call(fn, leaf)
		if err != nil {
			return nil, err
		}
	}

	text, err := res.Stringify(member)
	if err != nil {
		if errors.Is(err, sandbox.ErrNotSerializable) {
			return nil, invalid("%s value produced no JSON from %s", actual, shape.Member)
		}
		return nil, err
	}
	return json.RawMessage(text), nil
}

// hasConstructor walks the prototype chain looking for a constructor whose
// name is one of tags.
func hasConstructor(obj *goja.Object, tags []string) bool {
	for p := obj.Prototype(); p != nil; p = p.Prototype() {
		ctor, ok := p.Get("constructor").(*goja.Object)
		if !ok {
			continue
		}
		if name := ctor.Get("name"); name != nil && slices.Contains(tags, name.String()) {
			return true
		}
	}
	return false
}

// typeName names a value for error messages.
func typeName(v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	if obj, ok := v.(*goja.Object); ok {
		if ctor, ok := obj.Get("constructor").(*goja.Object); ok {
			if name := ctor.Get("name"); name != nil && name.String() != "" {
				return name.String()
			}
		}
		return "Object"
	}
	switch v.Export().(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	default:
		return v.ExportType().String()
	}
}

func incorrect(shape Shape, actual string) string {
	return fmt.Sprintf("Incorrect return type. Expected: '%s', Actual: '%s'.", shape.Name, actual)
}

func invalid(format string, args ...any) error {
	return diagnostic.NewError(diagnostic.KindValidationFailed,
		diagnostic.Newf(diagnostic.KindValidationFailed, "TypeError: "+format, args...))
}
