package fancy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/NASA-AMMOS/aerie-sub008/internal/engine/diagnostic"
	"github.com/charmbracelet/lipgloss/tree"
)

// maxScalarWidth bounds how much of a long string value is shown.
const maxScalarWidth = 80

// DiagnosticTree renders a diagnostic with its frames. When src is the user's
// source text, the first frame's line is shown with a caret.
func DiagnosticTree(d diagnostic.Diagnostic, src string) string {
	t := Tree()
	t.Root(ErrorText(d.Message))
	t.Child(fmt.Sprintf("Kind: %s", ComponentText(string(d.Kind))))

	if len(d.Frames) > 0 {
		frames := Section("Frames", len(d.Frames))
		for _, f := range d.Frames {
			frames.Child(FrameText(frameText(f)))
		}
		t.Child(frames)
	}

	if src != "" {
		if snippet := diagnostic.Snippet(src, d); snippet != "" {
			t.Child(tree.Root(HeaderStyle.Render("Source")).Child(snippet))
		}
	}
	return t.String()
}

func frameText(f diagnostic.Frame) string {
	var b strings.Builder
	if f.IsAsync {
		b.WriteString("async ")
	}
	if f.FunctionName != nil && *f.FunctionName != "" {
		fmt.Fprintf(&b, "%s ", *f.FunctionName)
	}
	fmt.Fprintf(&b, "%s:%d:%d", f.File, f.Line, f.Column)
	return b.String()
}

// ArtifactTree renders a serialized artifact as a tree. Object keys are
// sorted; invalid JSON is shown as text.
func ArtifactTree(title string, raw json.RawMessage) string {
	t := Tree()
	t.Root(ValidText(title))

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil && err != io.EOF {
		t.Child(ErrorText(TruncateString(string(raw), maxScalarWidth)))
		return t.String()
	}

	addValue(t, v)
	return t.String()
}

func addValue(t *tree.Tree, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			addEntry(t, KeyText(k), val[k])
		}
	case []any:
		if len(val) == 0 {
			t.Child(SummaryText("(empty)"))
		}
		for i, item := range val {
			addEntry(t, KeyText(fmt.Sprintf("[%d]", i)), item)
		}
	default:
		t.Child(scalar(val))
	}
}

func addEntry(t *tree.Tree, label string, v any) {
	switch v.(type) {
	case map[string]any, []any:
		child := tree.Root(label)
		addValue(child, v)
		t.Child(child)
	default:
		t.Child(label + ": " + scalar(v))
	}
}

func scalar(v any) string {
	switch val := v.(type) {
	case nil:
		return SummaryText("null")
	case string:
		return TruncateString(fmt.Sprintf("%q", val), maxScalarWidth)
	default:
		return fmt.Sprint(val)
	}
}
