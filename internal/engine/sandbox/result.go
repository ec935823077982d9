package sandbox

import (
	"github.com/dop251/goja"
)

// Result is a settled script value together with the runtime that produced
// it. Calls made through it stay within the evaluation's budget.
type Result struct {
	Value goja.Value
	s     *session
}

// Runtime returns the runtime that owns Value.
func (r *Result) Runtime() *goja.Runtime {
	return r.s.vm
}

// Call invokes a script function.
func (r *Result) Call(fn goja.Callable, this goja.Value, args ...goja.Value) (goja.Value, error) {
	v, err := fn(this, args...)
	if err != nil {
		return nil, r.s.convert(err)
	}
	return v, nil
}

// Stringify serializes v with the JSON.stringify captured before any user code
// ran, so scripts cannot replace it.
func (r *Result) Stringify(v goja.Value) (string, error) {
	out, err := r.Call(r.s.stringify, goja.Undefined(), v)
	if err != nil {
		return "", err
	}
	if out == nil || goja.IsUndefined(out) {
		return "", ErrNotSerializable
	}
	return out.String(), nil
}

// Guard runs f, which may read script objects, converting exceptions and
// interrupts raised inside it into errors.
func (r *Result) Guard(f func()) error {
	return r.s.guard(f)
}

// Release stops the budget timer and drops the runtime. It is safe to call
// more than once and on a nil Result.
func (r *Result) Release() {
	if r == nil || r.s == nil {
		return
	}
	r.s.close()
}
