package diagnostic

import (
	"fmt"
	"strings"
)

// Snippet renders the source line at the diagnostic's location with one line of
// context on either side and a caret under the column. It returns "" when the
// diagnostic has no location.
//
//	   2 |   const x = 1;
//	   3 |   throw new Error("boom");
//	     |   ^
//	   4 | }
func Snippet(src string, d Diagnostic) string {
	if d.Location == nil {
		return ""
	}
	lines := strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n")
	if len(lines) == 0 {
		return ""
	}

	line := min(max(d.Location.Line, 1), len(lines))
	col := min(max(d.Location.Column, 1), len(lines[line-1])+1)

	width := len(fmt.Sprint(min(line+1, len(lines))))
	var b strings.Builder
	write := func(n int) {
		fmt.Fprintf(&b, "%*d | %s\n", width, n, lines[n-1])
	}

	if line > 1 {
		write(line - 1)
	}
	write(line)
	fmt.Fprintf(&b, "%s | %s^\n", strings.Repeat(" ", width), caretPad(lines[line-1], col))
	if line < len(lines) {
		write(line + 1)
	}
	return strings.TrimRight(b.String(), "\n")
}

// caretPad keeps tabs so the caret lines up with the rendered source.
func caretPad(line string, col int) string {
	var b strings.Builder
	for i := 0; i < col-1 && i < len(line); i++ {
		if line[i] == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}
