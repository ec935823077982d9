package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCommand(t *testing.T) {
	api := writeFile(t, "scheduler-edsl-fluent-api.ts", goalAPI)

	t.Run("success renders the artifact", func(t *testing.T) {
		script := writeFile(t, "goal.ts", "export default () => Goal.named('first');\n")
		out, err := runApp(t, "", "--log-level", "error", "check", "--api", api, script)
		require.NoError(t, err)
		assert.Contains(t, out, "Goal")
		assert.Contains(t, out, "first")
	})

	t.Run("raw json", func(t *testing.T) {
		script := writeFile(t, "goal.ts", "export default () => Goal.named('first');\n")
		out, err := runApp(t, "", "--log-level", "error", "check", "--json", "-a", api, script)
		require.NoError(t, err)
		assert.JSONEq(t, `{"kind":"named","name":"first"}`, out)
	})

	t.Run("user error exits non-zero", func(t *testing.T) {
		script := writeFile(t, "goal.ts", "export default function goal() {\n  throw new Error('line two');\n}\n")
		out, err := runApp(t, "", "--log-level", "error", "check", "--json", "--api", api, script)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "UserThrown")

		var diags []struct {
			Message string `json:"message"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &diags))
		require.Len(t, diags, 1)
		assert.Equal(t, "Error: line two", diags[0].Message)
	})

	t.Run("diagnostic tree", func(t *testing.T) {
		script := writeFile(t, "goal.ts", "export default function goal() {\n  throw new Error('line two');\n}\n")
		out, err := runApp(t, "", "--log-level", "error", "check", "--api", api, script)
		require.Error(t, err)
		assert.Contains(t, out, "Error: line two")
		assert.Contains(t, out, "goal.ts")
	})

	t.Run("request document", func(t *testing.T) {
		doc := writeFile(t, "request.yaml", "goalCode: |\n  export default () => Goal.named('yaml');\n"+
			"expectedReturnType: Goal\n"+
			"schedulerGeneratedCode: |\n"+indent(goalAPI))
		out, err := runApp(t, "", "--log-level", "error", "check", "--json", "--request", doc)
		require.NoError(t, err)
		assert.JSONEq(t, `{"kind":"named","name":"yaml"}`, out)
	})

	t.Run("show logs", func(t *testing.T) {
		script := writeFile(t, "goal.ts", "export default () => Goal.named('first');\n")
		out, err := runApp(t, "", "--log-level", "error", "check", "--show-logs", "--api", api, script)
		require.NoError(t, err)
		assert.Contains(t, out, "Job log")
	})

	t.Run("missing script", func(t *testing.T) {
		_, err := runApp(t, "", "--log-level", "error", "check")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "script path required")
	})

	t.Run("unknown expected type", func(t *testing.T) {
		script := writeFile(t, "goal.ts", "export default () => 1;\n")
		_, err := runApp(t, "", "--log-level", "error", "check", "--expect", "Plan", script)
		require.Error(t, err)
	})

	t.Run("props need an argument binding", func(t *testing.T) {
		script := writeFile(t, "goal.ts", "export default () => 1;\n")
		_, err := runApp(t, "", "--log-level", "error", "check", "--props", "{}", script)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "takes no arguments")
	})
}

func indent(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimSuffix(s, "\n"), "\n") {
		b.WriteString("  " + line + "\n")
	}
	return b.String()
}
