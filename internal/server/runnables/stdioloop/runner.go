// Package stdioloop serves evaluation requests over a line protocol: one JSON
// request per input line, answered by a status line and one payload line.
package stdioloop

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/diagnostic"
	"github.com/NASA-AMMOS/aerie-sub008/internal/server/finitestate"
	"github.com/robbyt/go-supervisor/supervisor"
)

var _ supervisor.Runnable = (*Runner)(nil)

const (
	PingLine = "ping"
	PongLine = "pong"

	StatusSuccess = "success"
	StatusError   = "error"
	StatusPanic   = "panic"

	// DefaultMaxLineSize fits a request carrying several generated APIs.
	DefaultMaxLineSize = 64 << 20
)

// Decoder turns one request line into an engine request.
type Decoder interface {
	fmt.Stringer
	Decode(line []byte) (engine.Request, error)
}

// Evaluator runs a request to a single outcome.
type Evaluator interface {
	Run(ctx context.Context, req engine.Request) *engine.Outcome
}

// Runner reads requests from in and writes one response per request to out.
type Runner struct {
	decoder   Decoder
	evaluator Evaluator
	in        io.Reader
	out       io.Writer
	maxLine   int

	onInputClosed func()

	logger *slog.Logger
	fsm    finitestate.Machine

	mu        sync.Mutex
	runCancel context.CancelFunc
	parentCtx context.Context
}

// NewRunner creates a loop over the given streams.
func NewRunner(decoder Decoder, evaluator Evaluator, in io.Reader, out io.Writer, opts ...Option) (*Runner, error) {
	if decoder == nil || evaluator == nil {
		return nil, errors.New("decoder and evaluator are required")
	}
	r := &Runner{
		decoder:   decoder,
		evaluator: evaluator,
		in:        in,
		out:       out,
		maxLine:   DefaultMaxLineSize,
		logger:    slog.Default().WithGroup("stdioloop.Runner"),
		parentCtx: context.Background(),
	}

	for _, opt := range opts {
		opt(r)
	}

	fsmLogger := r.logger.WithGroup("fsm")
	machine, err := finitestate.New(fsmLogger.Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	r.fsm = machine

	return r, nil
}

// String implements the supervisor.Runnable interface
func (r *Runner) String() string {
	return "stdioloop.Runner(" + r.decoder.String() + ")"
}

// Run serves requests until the input is exhausted or the context ends.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Debug("Starting Runner", "deployment", r.decoder.String())

	if err := r.fsm.Transition(finitestate.StatusIdle); err != nil {
		return fmt.Errorf("failed to transition to idle state: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.mu.Lock()
	r.runCancel = cancel
	r.mu.Unlock()

	lines, readErr := r.read(runCtx)
	stopped := context.AfterFunc(r.parentCtx, cancel)
	defer stopped()

	var (
		loopErr error
		eof     bool
	)
	for loopErr == nil {
		if !r.advance(finitestate.StatusAwaitingLine, &loopErr) {
			break
		}

		var (
			req request
			ok  bool
		)
		select {
		case <-runCtx.Done():
			r.logger.Debug("Run context canceled")
		case req, ok = <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					loopErr = fmt.Errorf("failed to read request: %w", err)
				}
				eof = true
				r.logger.Debug("Input closed")
			}
		}
		if !ok {
			break
		}

		if !r.advance(finitestate.StatusProcessing, &loopErr) {
			break
		}
		resp := r.tooLong()
		if !req.tooLong {
			resp = r.respond(runCtx, req.line)
		}
		if err := r.write(resp); err != nil {
			loopErr = fmt.Errorf("failed to write response: %w", err)
			break
		}
		r.advance(finitestate.StatusIdle, &loopErr)
	}

	r.logger.Info("Runner shutting down")
	if r.fsm.GetState() != finitestate.StatusStopping {
		if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
			r.logger.Error("Failed to transition to stopping state", "error", err)
		}
	}
	if err := r.fsm.Transition(finitestate.StatusStopped); err != nil {
		loopErr = errors.Join(loopErr, fmt.Errorf("failed to transition to stopped state: %w", err))
	}
	if eof && r.onInputClosed != nil {
		r.onInputClosed()
	}
	return loopErr
}

// advance moves the loop forward unless Stop got there first.
func (r *Runner) advance(state string, errp *error) bool {
	if r.fsm.GetState() == finitestate.StatusStopping {
		return false
	}
	if err := r.fsm.Transition(state); err != nil {
		if r.fsm.GetState() == finitestate.StatusStopping {
			return false
		}
		*errp = fmt.Errorf("failed to transition to %s state: %w", state, err)
		return false
	}
	return true
}

// Stop implements the supervisor.Runnable interface. A read blocked on the
// input stream is abandoned rather than interrupted.
func (r *Runner) Stop() {
	r.logger.Debug("Stopping Runner")
	if finitestate.IsLive(r.fsm.GetState()) {
		if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
			r.logger.Error("Failed to transition to stopping state", "error", err)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.runCancel != nil {
		r.runCancel()
	}
}

// request is one input line. An overlong line is discarded up to its newline
// and arrives with tooLong set.
type request struct {
	line    []byte
	tooLong bool
}

// read delivers input lines until EOF or ctx ends. The error channel receives
// exactly one value once lines is closed.
func (r *Runner) read(ctx context.Context) (<-chan request, <-chan error) {
	lines := make(chan request)
	errCh := make(chan error, 1)

	br := bufio.NewReaderSize(r.in, min(r.maxLine, 64<<10))

	go func() {
		defer close(lines)
		for {
			req, err := readLine(br, r.maxLine)
			eof := errors.Is(err, io.EOF)
			if err != nil && !eof {
				errCh <- err
				return
			}
			if eof && len(req.line) == 0 && !req.tooLong {
				errCh <- nil
				return
			}
			select {
			case lines <- req:
			case <-ctx.Done():
				errCh <- nil
				return
			}
			if eof {
				errCh <- nil
				return
			}
		}
	}()
	return lines, errCh
}

// readLine reads up to the next newline, keeping at most maxLine bytes. A
// final line without a newline is returned together with io.EOF.
func readLine(br *bufio.Reader, maxLine int) (request, error) {
	var req request
	for {
		chunk, err := br.ReadSlice('\n')
		if !req.tooLong {
			if len(req.line)+len(bytes.TrimRight(chunk, "\r\n")) > maxLine {
				req.tooLong = true
				req.line = nil
			} else {
				req.line = append(req.line, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		req.line = bytes.TrimSuffix(bytes.TrimSuffix(req.line, []byte("\n")), []byte("\r"))
		return req, err
	}
}

// respond produces the full response for one line. It never panics.
func (r *Runner) respond(ctx context.Context, line []byte) (resp []byte) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Recovered panic while processing request", "panic", p)
			resp = panicResponse(fmt.Sprintf("panic: %v\n\n%s", p, debug.Stack()))
		}
	}()

	trimmed := bytes.TrimSpace(line)
	if string(trimmed) == PingLine {
		return []byte(PongLine + "\n")
	}

	req, err := r.decoder.Decode(trimmed)
	if err != nil {
		r.logger.Warn("Rejected request", "error", err)
		return errorResponse([]diagnostic.Diagnostic{
			diagnostic.New(diagnostic.KindValidationFailed, "invalid request: "+err.Error()),
		})
	}

	out := r.evaluator.Run(ctx, req)
	switch {
	case out.OK():
		var b bytes.Buffer
		if err := json.Compact(&b, out.Artifact); err != nil {
			panic(fmt.Sprintf("artifact is not valid JSON: %v", err))
		}
		return response(StatusSuccess, b.Bytes())
	case out.Kind == diagnostic.KindEngineFault:
		return panicResponse(out.Diagnostics[0].Stack)
	default:
		return errorResponse(out.Diagnostics)
	}
}

func (r *Runner) tooLong() []byte {
	r.logger.Warn("Rejected request line over size limit", "limit", r.maxLine)
	return errorResponse([]diagnostic.Diagnostic{
		diagnostic.Newf(diagnostic.KindValidationFailed, "invalid request: line exceeds %d bytes", r.maxLine),
	})
}

func (r *Runner) write(resp []byte) error {
	_, err := r.out.Write(resp)
	return err
}

func response(status string, payload []byte) []byte {
	b := make([]byte, 0, len(status)+len(payload)+2)
	b = append(b, status...)
	b = append(b, '\n')
	b = append(b, payload...)
	return append(b, '\n')
}

func errorResponse(diags []diagnostic.Diagnostic) []byte {
	payload, err := json.Marshal(diags)
	if err != nil {
		return panicResponse(fmt.Sprintf("failed to encode diagnostics: %v", err))
	}
	return response(StatusError, payload)
}

// panicResponse carries the stack as a JSON string so it stays on one line.
func panicResponse(stack string) []byte {
	payload, _ := json.Marshal(stack)
	return response(StatusPanic, payload)
}
