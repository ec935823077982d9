package expansion

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/artifact"
	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/diagnostic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const commandTypes = `export class CommandStem {
  constructor(private readonly stem: string, private readonly args: unknown[]) {}
  public toSeqJson() {
    return { args: this.args, stem: this.stem, type: 'command' };
  }
}
export const FSW_CMD = (...args: unknown[]) => new CommandStem('FSW_CMD', args);
export const NOOP = new CommandStem('NOOP', []);
`

const activityTypes = `export interface PeelBanana {
  id: number;
  duration: string;
  attributes: { arguments: { peelDirection: string } };
}
`

const logic = `export default function PeelBananaExpansion(props: { activityInstance: PeelBanana }): ExpansionReturn {
  const { activityInstance } = props;
  if (activityInstance.attributes.arguments.peelDirection === 'never') {
    throw new Error('cannot peel ' + activityInstance.id);
  }
  return [FSW_CMD(1, 2), [NOOP]];
}

type ExpansionReturn = unknown;
`

func newExpander(t *testing.T, opts ...Option) *Expander {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e, err := engine.New(engine.WithLogger(logger))
	require.NoError(t, err)
	return NewExpander(e, append([]Option{WithLogger(logger)}, opts...)...)
}

func activity(id int, direction string, duration any) json.RawMessage {
	b, _ := json.Marshal(map[string]any{
		"id":         id,
		"duration":   duration,
		"endTime":    nil,
		"attributes": map[string]any{"arguments": map[string]any{"peelDirection": direction}},
	})
	return b
}

func TestExpander_Expand(t *testing.T) {
	t.Parallel()
	x := newExpander(t)

	t.Run("commands", func(t *testing.T) {
		res, err := x.Expand(t.Context(), Request{
			ExpansionLogic:   logic,
			Filename:         "PeelBanana.ts",
			CommandTypes:     commandTypes,
			ActivityTypes:    activityTypes,
			ActivityInstance: activity(1, "fromStem", "PT1M"),
		})
		require.NoError(t, err)
		assert.JSONEq(t, `[
			{"args":[1,2],"stem":"FSW_CMD","type":"command"},
			{"args":[],"stem":"NOOP","type":"command"}
		]`, string(res.Commands))

		raw, err := json.Marshal(res)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"commands":[`)
	})

	t.Run("user error is translated", func(t *testing.T) {
		_, err := x.Expand(t.Context(), Request{
			ExpansionLogic:   logic,
			Filename:         "PeelBanana.ts",
			CommandTypes:     commandTypes,
			ActivityTypes:    activityTypes,
			ActivityInstance: activity(9, "never", "PT1M"),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, diagnostic.ErrUserThrown)

		var diagErr *diagnostic.Error
		require.True(t, errors.As(err, &diagErr))
		d := diagErr.Diagnostics[0]
		assert.Equal(t, "Error: cannot peel 9", d.Message)
		require.NotEmpty(t, d.Frames)
		assert.Equal(t, "PeelBanana.ts", d.Frames[0].File)
		assert.Equal(t, 4, d.Frames[0].Line)
	})

	t.Run("invalid request", func(t *testing.T) {
		_, err := x.Expand(t.Context(), Request{ActivityInstance: json.RawMessage(`{`)})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.ErrorIs(t, err, ErrMissingField)
		assert.ErrorIs(t, err, ErrInvalidInstance)
	})
}

func TestExpander_ExpandAll(t *testing.T) {
	t.Parallel()
	x := newExpander(t, WithConcurrency(2), WithDefaultFilename("expansion.ts"))

	batch := Batch{
		ExpansionLogic: logic,
		CommandTypes:   commandTypes,
		ActivityTypes:  activityTypes,
		ActivityInstances: []json.RawMessage{
			activity(1, "fromStem", "PT1M"),
			activity(2, "never", "PT1M"),
			activity(3, "fromTip", nil),
			json.RawMessage(`not json`),
			activity(5, "fromTip", "PT2M"),
		},
	}

	results, err := x.ExpandAll(t.Context(), batch)
	require.NoError(t, err)
	require.Len(t, results, 5)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = string(r.ActivityInstanceID)
	}
	assert.Equal(t, []string{"1", "2", "3", "null", "5"}, ids)

	assert.Empty(t, results[0].Errors)
	assert.Contains(t, string(results[0].Commands), "FSW_CMD")

	require.Len(t, results[1].Errors, 1)
	assert.Equal(t, "null", string(results[1].Commands))
	assert.Equal(t, diagnostic.KindUserThrown, results[1].Errors[0].Kind)
	assert.Equal(t, "expansion.ts", results[1].Errors[0].Frames[0].File)

	require.Len(t, results[2].Errors, 1)
	assert.Equal(t, "Duration is null", results[2].Errors[0].Message)

	require.Len(t, results[3].Errors, 1)
	assert.Equal(t, diagnostic.KindValidationFailed, results[3].Errors[0].Kind)

	assert.Empty(t, results[4].Errors)

	raw, err := json.Marshal(results[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"errors":[]`)

	t.Run("logic that does not compile fails the batch", func(t *testing.T) {
		bad := batch
		bad.ExpansionLogic = "export default function ( {"
		_, err := x.ExpandAll(t.Context(), bad)
		assert.ErrorIs(t, err, diagnostic.ErrSyntax)
	})

	t.Run("empty logic", func(t *testing.T) {
		_, err := x.ExpandAll(t.Context(), Batch{})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("empty batch", func(t *testing.T) {
		results, err := x.ExpandAll(t.Context(), Batch{ExpansionLogic: logic, CommandTypes: commandTypes, ActivityTypes: activityTypes})
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestDecoder(t *testing.T) {
	t.Parallel()
	d := NewDecoder(newExpander(t))
	assert.Equal(t, Name, d.String())

	line, err := json.Marshal(Request{
		ExpansionLogic:   logic,
		CommandTypes:     commandTypes,
		ActivityTypes:    activityTypes,
		ActivityInstance: activity(1, "x", "PT1M"),
	})
	require.NoError(t, err)

	req, err := d.Decode(line)
	require.NoError(t, err)
	assert.Equal(t, engine.DefaultFilename, req.Source.Filename)
	assert.Equal(t, artifact.Commands.Name, req.Shape.Name)
	assert.Equal(t, Profile, req.Profile)
	require.Contains(t, req.Args, PropsBinding)
	assert.Contains(t, string(req.Args[PropsBinding]), `"activityInstance":{`)

	_, err = d.Decode([]byte(`{"expansionLogic":""}`))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
