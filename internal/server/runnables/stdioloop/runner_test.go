package stdioloop

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/NASA-AMMOS/aerie-sub008/internal/deployment/scheduling"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/diagnostic"
	"github.com/NASA-AMMOS/aerie-sub008/internal/server/finitestate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDecoder struct{}

func (fakeDecoder) String() string { return "fake" }

func (fakeDecoder) Decode(line []byte) (engine.Request, error) {
	var v struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(line, &v); err != nil {
		return engine.Request{}, err
	}
	if v.Code == "" {
		return engine.Request{}, errors.New("missing field: code")
	}
	req := engine.Request{}
	req.Source.Text = v.Code
	return req, nil
}

type fakeEvaluator struct {
	calls atomic.Int32
	run   func(ctx context.Context, req engine.Request) *engine.Outcome
}

func (f *fakeEvaluator) Run(ctx context.Context, req engine.Request) *engine.Outcome {
	f.calls.Add(1)
	return f.run(ctx, req)
}

func byCode() *fakeEvaluator {
	return &fakeEvaluator{run: func(_ context.Context, req engine.Request) *engine.Outcome {
		switch req.Source.Text {
		case "ok":
			return &engine.Outcome{Artifact: json.RawMessage("{\n  \"kind\": \"goal\"\n}")}
		case "throw":
			return &engine.Outcome{
				Kind:        diagnostic.KindUserThrown,
				Diagnostics: []diagnostic.Diagnostic{diagnostic.New(diagnostic.KindUserThrown, "Error: boom")},
			}
		case "fault":
			return &engine.Outcome{
				Kind:        diagnostic.KindEngineFault,
				Diagnostics: []diagnostic.Diagnostic{diagnostic.New(diagnostic.KindEngineFault, "EngineFault: broken")},
			}
		default:
			panic("unexpected " + req.Source.Text)
		}
	}}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serve runs the loop over input and returns everything it wrote.
func serve(t *testing.T, ev Evaluator, input string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	r, err := NewRunner(fakeDecoder{}, ev, strings.NewReader(input), &out, WithLogger(quietLogger()))
	require.NoError(t, err)

	err = r.Run(t.Context())
	assert.Equal(t, finitestate.StatusStopped, r.GetState())
	return out.String(), err
}

func TestNewRunner(t *testing.T) {
	t.Parallel()

	t.Run("requires decoder and evaluator", func(t *testing.T) {
		_, err := NewRunner(nil, byCode(), strings.NewReader(""), io.Discard)
		assert.Error(t, err)
		_, err = NewRunner(fakeDecoder{}, nil, strings.NewReader(""), io.Discard)
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		r, err := NewRunner(fakeDecoder{}, byCode(), strings.NewReader(""), io.Discard)
		require.NoError(t, err)
		assert.Equal(t, DefaultMaxLineSize, r.maxLine)
		assert.Equal(t, "stdioloop.Runner(fake)", r.String())
		assert.Equal(t, finitestate.StatusNew, r.GetState())
		assert.False(t, r.IsRunning())
	})
}

func TestRunner_OnInputClosed(t *testing.T) {
	t.Parallel()
	var closed atomic.Bool
	r, err := NewRunner(fakeDecoder{}, byCode(), strings.NewReader("ping\n"), io.Discard,
		WithLogger(quietLogger()), WithOnInputClosed(func() { closed.Store(true) }))
	require.NoError(t, err)

	require.NoError(t, r.Run(t.Context()))
	assert.True(t, closed.Load())
}

func TestRunner_Ping(t *testing.T) {
	t.Parallel()
	ev := byCode()
	out, err := serve(t, ev, "ping\nping\n")
	require.NoError(t, err)
	assert.Equal(t, "pong\npong\n", out)
	assert.Zero(t, ev.calls.Load())
}

func TestRunner_Responses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		line   string
		status string
		check  func(t *testing.T, payload string)
	}{
		{
			name:   "success is compacted to one line",
			line:   `{"code":"ok"}`,
			status: StatusSuccess,
			check: func(t *testing.T, payload string) {
				t.Helper()
				assert.JSONEq(t, `{"kind":"goal"}`, payload)
			},
		},
		{
			name:   "user error",
			line:   `{"code":"throw"}`,
			status: StatusError,
			check: func(t *testing.T, payload string) {
				t.Helper()
				var diags []diagnostic.Diagnostic
				require.NoError(t, json.Unmarshal([]byte(payload), &diags))
				require.Len(t, diags, 1)
				assert.Equal(t, "Error: boom", diags[0].Message)
			},
		},
		{
			name:   "malformed request",
			line:   `{"code":`,
			status: StatusError,
			check: func(t *testing.T, payload string) {
				t.Helper()
				var diags []diagnostic.Diagnostic
				require.NoError(t, json.Unmarshal([]byte(payload), &diags))
				require.Len(t, diags, 1)
				assert.Equal(t, diagnostic.KindValidationFailed, diags[0].Kind)
				assert.True(t, strings.HasPrefix(diags[0].Message, "invalid request: "))
			},
		},
		{
			name:   "engine fault",
			line:   `{"code":"fault"}`,
			status: StatusPanic,
			check: func(t *testing.T, payload string) {
				t.Helper()
				var stack string
				require.NoError(t, json.Unmarshal([]byte(payload), &stack))
				assert.Contains(t, stack, "EngineFault: broken")
			},
		},
		{
			name:   "recovered panic",
			line:   `{"code":"explode"}`,
			status: StatusPanic,
			check: func(t *testing.T, payload string) {
				t.Helper()
				var stack string
				require.NoError(t, json.Unmarshal([]byte(payload), &stack))
				assert.Contains(t, stack, "unexpected explode")
				assert.Contains(t, stack, "goroutine")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			out, err := serve(t, byCode(), tc.line+"\n")
			require.NoError(t, err)

			lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
			require.Len(t, lines, 2, "%q", out)
			assert.Equal(t, tc.status, lines[0])
			tc.check(t, lines[1])
		})
	}
}

func TestRunner_SurvivesFailures(t *testing.T) {
	t.Parallel()
	input := strings.Join([]string{
		`{"code":"explode"}`,
		`not json`,
		`{"code":"throw"}`,
		`ping`,
		`{"code":"ok"}`,
	}, "\n")

	out, err := serve(t, byCode(), input)
	require.NoError(t, err)

	var statuses []string
	for i, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		if line == PongLine || i%2 == 0 {
			statuses = append(statuses, line)
		}
	}
	assert.Equal(t, []string{StatusPanic, StatusError, StatusError, PongLine}, statuses[:4])
	assert.True(t, strings.HasSuffix(out, "success\n{\"kind\":\"goal\"}\n"), out)
}

func TestRunner_LineTooLong(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"followed by more requests", strings.Repeat("x", 256) + "\nping\n{\"code\":\"ok\"}\n"},
		{"longer than the read buffer", strings.Repeat("y", 200<<10) + "\r\nping\n{\"code\":\"ok\"}"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var out bytes.Buffer
			r, err := NewRunner(fakeDecoder{}, byCode(), strings.NewReader(tc.input), &out,
				WithLogger(quietLogger()), WithMaxLineSize(64))
			require.NoError(t, err)
			require.NoError(t, r.Run(t.Context()))

			lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
			require.Len(t, lines, 5, out.String())
			assert.Equal(t, StatusError, lines[0])

			var diags []diagnostic.Diagnostic
			require.NoError(t, json.Unmarshal([]byte(lines[1]), &diags))
			require.Len(t, diags, 1)
			assert.Equal(t, diagnostic.KindValidationFailed, diags[0].Kind)
			assert.Equal(t, "invalid request: line exceeds 64 bytes", diags[0].Message)

			assert.Equal(t, PongLine, lines[2])
			assert.Equal(t, StatusSuccess, lines[3])
		})
	}

	t.Run("line at the limit is accepted", func(t *testing.T) {
		t.Parallel()
		line := `{"code":"ok"}`
		var out bytes.Buffer
		r, err := NewRunner(fakeDecoder{}, byCode(), strings.NewReader(line+"\r\n"), &out,
			WithLogger(quietLogger()), WithMaxLineSize(len(line)))
		require.NoError(t, err)
		require.NoError(t, r.Run(t.Context()))
		assert.True(t, strings.HasPrefix(out.String(), StatusSuccess+"\n"), out.String())
	})
}

func TestRunner_Stop(t *testing.T) {
	t.Parallel()
	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	t.Cleanup(func() {
		_ = inW.Close()
		_ = outR.Close()
	})

	r, err := NewRunner(fakeDecoder{}, byCode(), inR, outW, WithLogger(quietLogger()))
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(context.Background()) }()

	go func() { _, _ = inW.Write([]byte("ping\n")) }()
	resp, err := bufio.NewReader(outR).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "pong\n", resp)

	assert.Eventually(t, func() bool {
		return r.GetState() == finitestate.StatusAwaitingLine
	}, time.Second, 5*time.Millisecond)
	assert.True(t, r.IsRunning())

	r.Stop()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Runner did not stop")
	}
	assert.Equal(t, finitestate.StatusStopped, r.GetState())
}

func TestRunner_ContextCancel(t *testing.T) {
	t.Parallel()
	inR, inW := io.Pipe()
	t.Cleanup(func() { _ = inW.Close() })

	r, err := NewRunner(fakeDecoder{}, byCode(), inR, io.Discard, WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	assert.Eventually(t, r.IsRunning, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Runner did not stop")
	}
}

func TestRunner_Scheduling(t *testing.T) {
	t.Parallel()
	e, err := engine.New(engine.WithLogger(quietLogger()))
	require.NoError(t, err)

	api := "export class Goal {\n" +
		"  constructor(public readonly __astNode: unknown) {}\n" +
		"  static named(name: string) { return new Goal({ kind: 'named', name }); }\n" +
		"}\n"
	req := func(code string) string {
		b, err := json.Marshal(scheduling.Request{
			GoalCode:               code,
			SchedulerGeneratedCode: api,
			ExpectedReturnType:     "Goal",
		})
		require.NoError(t, err)
		return string(b)
	}

	input := strings.Join([]string{
		"ping",
		req("export default () => Goal.named('first');\n"),
		req("export default function goal() {\n  throw new Error('line two');\n}\n"),
	}, "\n") + "\n"

	var out bytes.Buffer
	r, err := NewRunner(scheduling.NewDecoder("goal.ts"), e, strings.NewReader(input), &out, WithLogger(quietLogger()))
	require.NoError(t, err)
	require.NoError(t, r.Run(t.Context()))

	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 5, out.String())
	assert.Equal(t, "pong", lines[0])
	assert.Equal(t, StatusSuccess, lines[1])
	assert.JSONEq(t, `{"kind":"named","name":"first"}`, lines[2])
	assert.Equal(t, StatusError, lines[3])

	var diags []diagnostic.Diagnostic
	require.NoError(t, json.Unmarshal([]byte(lines[4]), &diags))
	require.Len(t, diags, 1)
	assert.Equal(t, "Error: line two", diags[0].Message)
	require.NotEmpty(t, diags[0].Frames)
	assert.Equal(t, "goal.ts", diags[0].Frames[0].File)
	assert.Equal(t, 2, diags[0].Frames[0].Line)
}
