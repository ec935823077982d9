// Package sandbox evaluates executable text in a fresh, time-bounded
// JavaScript runtime that sees only an explicit set of bindings.
package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/diagnostic"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/harness"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/posmap"
	"github.com/dop251/goja"
)

const (
	DefaultTimeout          = 10 * time.Second
	DefaultMaxCallStackSize = 1024
)

// RegionClassifier tells which part of the compilation unit an executable
// position came from. *posmap.Map implements it.
type RegionClassifier interface {
	RegionOf(genLine, genColumn int) posmap.Region
}

// Script is one evaluation.
type Script struct {
	Code string
	// Filename is the display name stack frames are tagged with.
	Filename string
	// Bindings are injected as globals. json.RawMessage values are parsed
	// into plain script objects; anything else is wrapped as a host value.
	Bindings map[string]any
	// Timeout overrides the Executor default when positive.
	Timeout time.Duration
	Regions RegionClassifier
	// Console enables a console binding writing to this logger.
	Console *slog.Logger
}

// Executor runs scripts. It holds no per-evaluation state and is safe for
// concurrent use.
type Executor struct {
	timeout          time.Duration
	maxCallStackSize int
	logger           *slog.Logger
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{
		timeout:          DefaultTimeout,
		maxCallStackSize: DefaultMaxCallStackSize,
		logger:           slog.Default().WithGroup("sandbox.Executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timeout returns the default evaluation budget.
func (e *Executor) Timeout() time.Duration {
	return e.timeout
}

// Execute compiles and runs the script in a new runtime, drains its job queue
// and returns the settled value of the result slot. The returned Result keeps
// the runtime alive, and its budget running, until Release is called.
//
// User exceptions are returned as *Failure, budget expiry as *TimeoutError and
// runtime compile errors as *CompileError.
func (e *Executor) Execute(ctx context.Context, script Script) (*Result, error) {
	if script.Filename == "" {
		return nil, ErrEmptyFilename
	}
	for name := range script.Bindings {
		if reserved(name) {
			return nil, fmt.Errorf("%w: %s", ErrReservedBinding, name)
		}
	}

	prg, err := goja.Compile(script.Filename, script.Code, false)
	if err != nil {
		return nil, compileError(err)
	}

	budget := e.timeout
	if script.Timeout > 0 {
		budget = script.Timeout
	}
	s := e.newSession(ctx, budget, script)
	keep := false
	defer func() {
		if !keep {
			s.close()
		}
	}()

	if err := s.bind(script); err != nil {
		return nil, err
	}

	start := time.Now()
	_, err = s.vm.RunProgram(prg)
	if err != nil {
		err = s.convert(err)
		e.logger.Debug("Script failed", "filename", script.Filename, "duration", time.Since(start), "error", err)
		return nil, err
	}

	value, err := s.settle()
	if err != nil {
		e.logger.Debug("Script rejected", "filename", script.Filename, "duration", time.Since(start), "error", err)
		return nil, err
	}
	e.logger.Debug("Script settled", "filename", script.Filename, "duration", time.Since(start))

	keep = true
	return &Result{Value: value, s: s}, nil
}

func reserved(name string) bool {
	switch name {
	case harness.ModuleBinding, harness.ResultBinding, consoleBinding:
		return true
	}
	return false
}

type session struct {
	vm       *goja.Runtime
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	once     sync.Once
	budget   time.Duration
	filename string
	regions  RegionClassifier

	exports   *goja.Object
	stringify goja.Callable
	parse     goja.Callable
}

func (e *Executor) newSession(parent context.Context, budget time.Duration, script Script) *session {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	vm.SetMaxCallStackSize(e.maxCallStackSize)

	if deadline, ok := parent.Deadline(); ok {
		budget = min(budget, time.Until(deadline))
	}
	ctx, cancel := context.WithTimeout(parent, budget)

	s := &session{
		vm:       vm,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		budget:   budget,
		filename: script.Filename,
		regions:  script.Regions,
	}
	go s.watch()
	return s
}

// watch interrupts the runtime when the budget expires or the caller cancels.
func (s *session) watch() {
	select {
	case <-s.ctx.Done():
		s.vm.Interrupt(s.ctx.Err())
	case <-s.done:
	}
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.cancel()
	})
}

// bind captures the intrinsics used after user code has run, then installs
// the binding set. Nothing else is added to the global object.
func (s *session) bind(script Script) error {
	jsonObj, ok := s.vm.Get("JSON").(*goja.Object)
	if !ok {
		return ErrMissingJSON
	}
	stringify, ok := goja.AssertFunction(jsonObj.Get("stringify"))
	if !ok {
		return ErrMissingJSON
	}
	parse, ok := goja.AssertFunction(jsonObj.Get("parse"))
	if !ok {
		return ErrMissingJSON
	}
	s.stringify, s.parse = stringify, parse

	module := s.vm.NewObject()
	if err := module.Set("exports", s.vm.NewObject()); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBinding, harness.ModuleBinding, err)
	}
	s.exports = s.vm.NewObject()

	values := map[string]goja.Value{
		harness.ModuleBinding: module,
		harness.ResultBinding: s.exports,
	}
	for name, v := range script.Bindings {
		val, err := s.toValue(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrBinding, name, err)
		}
		values[name] = val
	}
	if script.Console != nil {
		console, err := newConsole(s.vm, script.Console)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrBinding, consoleBinding, err)
		}
		values[consoleBinding] = console
	}

	for name, val := range values {
		if err := s.vm.Set(name, val); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrBinding, name, err)
		}
	}
	return nil
}

func (s *session) toValue(v any) (goja.Value, error) {
	raw, ok := v.(json.RawMessage)
	if !ok {
		return s.vm.ToValue(v), nil
	}
	if len(raw) == 0 {
		return goja.Null(), nil
	}
	val, err := s.parse(goja.Undefined(), s.vm.ToValue(string(raw)))
	if err != nil {
		return nil, err
	}
	return val, nil
}

// settle reads the result slot written by the harness after the job queue has
// drained.
func (s *session) settle() (goja.Value, error) {
	slot := s.exports.Get(harness.ResultSlot)
	if slot == nil || goja.IsUndefined(slot) {
		return nil, ErrNoResult
	}
	p, ok := slot.Export().(*goja.Promise)
	if !ok {
		return slot, nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result(), nil
	case goja.PromiseStateRejected:
		return nil, s.rejection(p.Result())
	default:
		return nil, &Failure{diagnostic.Failure{Name: "Error", Message: "entry point did not settle"}}
	}
}

// rejection builds a Failure from a rejected entry-point promise. The stack is
// the one recorded when the error object was created.
func (s *session) rejection(reason goja.Value) error {
	f := s.describe(reason)
	frames := parseStack(s.stackOf(reason))
	s.markResumed(frames)
	f.Frames = limitFrames(frames)
	return &Failure{f}
}

// markResumed flags the outermost user frame as resumed from a suspended
// asynchronous call when the stack never reaches the harness, which means
// the error was created after the entry point first returned.
func (s *session) markResumed(frames []diagnostic.RawFrame) {
	if s.regions == nil {
		return
	}
	outer := -1
	for i, f := range frames {
		if f.File != s.filename {
			continue
		}
		switch s.regions.RegionOf(f.Line, f.Column) {
		case posmap.RegionHarness:
			return
		case posmap.RegionUser:
			outer = i
		}
	}
	if outer >= 0 {
		frames[outer].Async = true
	}
}

// convert maps runtime errors onto the package's error types.
func (s *session) convert(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return s.interruption()
	}

	var overflow *goja.StackOverflowError
	if errors.As(err, &overflow) {
		return &Failure{diagnostic.Failure{
			Name:    "RangeError",
			Message: "Maximum call stack size exceeded",
			Frames:  limitFrames(parseStack(overflow.String())),
		}}
	}

	var ex *goja.Exception
	if errors.As(err, &ex) {
		f := s.describe(ex.Value())
		text := s.stackOf(ex.Value())
		if text == "" {
			_ = s.guard(func() { text = ex.String() })
		}
		f.Frames = limitFrames(parseStack(text))
		return &Failure{f}
	}

	return fmt.Errorf("%w: %w", ErrRuntime, err)
}

func (s *session) interruption() error {
	if errors.Is(s.ctx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Budget: s.budget}
	}
	return fmt.Errorf("%w: %w", ErrCanceled, s.ctx.Err())
}

// describe reads name and message from a thrown value. Primitives are reported
// as an Error whose message is the value itself.
func (s *session) describe(v goja.Value) diagnostic.Failure {
	f := diagnostic.Failure{Name: "Error"}
	obj, ok := v.(*goja.Object)
	if !ok {
		if v == nil {
			f.Message = "undefined"
		} else {
			f.Message = v.String()
		}
		return f
	}
	_ = s.guard(func() {
		if name := obj.Get("name"); isString(name) {
			f.Name = name.String()
		}
		if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
			f.Message = msg.String()
		}
	})
	return f
}

// stackOf returns the stack text recorded on an error object, if any.
func (s *session) stackOf(v goja.Value) string {
	obj, ok := v.(*goja.Object)
	if !ok {
		return ""
	}
	var text string
	_ = s.guard(func() {
		if st := obj.Get("stack"); isString(st) {
			text = st.String()
		}
	})
	return text
}

// guard runs f, which may call back into the runtime, and turns script
// exceptions and interrupts raised inside it into errors.
func (s *session) guard(f func()) (err error) {
	defer func() {
		x := recover()
		if x == nil {
			return
		}
		var thrown goja.Value
		switch v := x.(type) {
		case *goja.Exception:
			thrown = v.Value()
		case goja.Value:
			thrown = v
		}
		if thrown != nil {
			f := s.describe(thrown)
			f.Frames = limitFrames(parseStack(s.stackOf(thrown)))
			err = &Failure{f}
			return
		}
		if s.ctx.Err() != nil {
			err = s.interruption()
			return
		}
		panic(x)
	}()
	f()
	return nil
}

func isString(v goja.Value) bool {
	if v == nil {
		return false
	}
	_, ok := v.Export().(string)
	return ok
}

func compileError(err error) error {
	ce := &CompileError{Message: err.Error()}
	var syntax *goja.CompilerSyntaxError
	if errors.As(err, &syntax) {
		ce.Message = syntax.Message
		if syntax.File != nil {
			pos := syntax.File.Position(syntax.Offset)
			ce.Line, ce.Column = pos.Line, pos.Column
		}
	}
	return ce
}
