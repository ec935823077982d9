package scheduling

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/artifact"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/diagnostic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const constraintsAPI = `export class Windows {
  public readonly __astNode: { kind: string };
  constructor(kind: string) { this.__astNode = { kind }; }
}
`

const schedulerAPI = `export class Goal {
  public readonly __astNode: { kind: string; windows?: unknown };
  private constructor(node: { kind: string; windows?: unknown }) { this.__astNode = node; }
  public static CoexistenceGoal(opts: { forEach: Windows }): Goal {
    return new Goal({ kind: 'ActivityCoexistenceGoal', windows: opts.forEach.__astNode });
  }
}
export class GlobalSchedulingCondition {
  public readonly __astNode: { kind: string };
  constructor(kind: string) { this.__astNode = { kind }; }
}
`

func line(t *testing.T, r Request) []byte {
	t.Helper()
	b, err := json.Marshal(r)
	require.NoError(t, err)
	return b
}

func TestDecoder_Decode(t *testing.T) {
	t.Parallel()
	d := NewDecoder("")
	assert.Equal(t, Name, d.String())

	t.Run("valid goal request", func(t *testing.T) {
		req, err := d.Decode(line(t, Request{
			GoalCode:                 "export default () => null;",
			SchedulerGeneratedCode:   schedulerAPI,
			ConstraintsGeneratedCode: constraintsAPI,
			ExpectedReturnType:       "Goal",
		}))
		require.NoError(t, err)
		assert.Equal(t, engine.DefaultFilename, req.Source.Filename)
		assert.Equal(t, artifact.Goal.Name, req.Shape.Name)
		assert.Equal(t, Profile, req.Profile)
		require.Len(t, req.Modules, 2)
		assert.Equal(t, constraintsAPI, req.Modules[0].Text)
		assert.Equal(t, schedulerAPI, req.Modules[1].Text)
	})

	t.Run("global scheduling condition", func(t *testing.T) {
		req, err := NewDecoder("condition.ts").Decode(line(t, Request{
			GoalCode:           "export default () => null;",
			ExpectedReturnType: "GlobalSchedulingCondition",
		}))
		require.NoError(t, err)
		assert.Equal(t, "condition.ts", req.Source.Filename)
		assert.Equal(t, artifact.GlobalSchedulingCondition.Name, req.Shape.Name)
	})

	tests := []struct {
		name string
		line string
	}{
		{"malformed json", `{"goalCode":`},
		{"missing return type", `{"goalCode":"x"}`},
		{"missing goal code", `{"expectedReturnType":"Goal"}`},
		{"unknown return type", `{"goalCode":"x","expectedReturnType":"Windows"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Decode([]byte(tt.line))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	t.Run("validation reports every field", func(t *testing.T) {
		r := Request{}
		err := r.Validate()
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingField)
		assert.Contains(t, err.Error(), "goalCode")
		assert.Contains(t, err.Error(), "expectedReturnType")
	})
}

func TestDecoder_EndToEnd(t *testing.T) {
	t.Parallel()
	e, err := engine.New(engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	goal := "export default function myGoal(): Goal {\n  return Goal.CoexistenceGoal({\n    forEach: new Windows('during'),\n  });\n}\n"
	req, err := NewDecoder("goal.ts").Decode(line(t, Request{
		GoalCode:                 goal,
		SchedulerGeneratedCode:   schedulerAPI,
		ConstraintsGeneratedCode: constraintsAPI,
		ExpectedReturnType:       "Goal",
	}))
	require.NoError(t, err)

	out := e.Run(t.Context(), req)
	require.True(t, out.OK(), "%v", out.Diagnostics)
	assert.JSONEq(t, `{"kind":"ActivityCoexistenceGoal","windows":{"kind":"during"}}`, string(out.Artifact))

	req.Source.Text = "export default function myGoal(): Goal {\n  return new GlobalSchedulingCondition('x') as any;\n}\n"
	out = e.Run(t.Context(), req)
	assert.Equal(t, diagnostic.KindValidationFailed, out.Kind)
}
