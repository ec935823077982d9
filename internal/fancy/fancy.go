// Package fancy renders diagnostics, artifacts and configs as lipgloss trees
// for the terminal.
package fancy

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

// Tree returns an empty tree with rounded guides.
func Tree() *tree.Tree {
	t := tree.New()
	t.EnumeratorStyle(BranchStyle)
	t.Enumerator(tree.RoundedEnumerator)
	return t
}

// Section returns a subtree headed by title and an item count.
func Section(title string, count int) *tree.Tree {
	return tree.New().Root(
		lipgloss.JoinHorizontal(
			lipgloss.Top,
			HeaderStyle.Render(title),
			" ",
			InfoStyle.Render(fmt.Sprintf("(%d)", count)),
		),
	)
}

// TruncateString shortens s to at most maxLength runes, marking the cut with
// an ellipsis when there is room for one.
func TruncateString(s string, maxLength int) string {
	r := []rune(s)
	if len(r) <= maxLength {
		return s
	}
	if maxLength <= 3 {
		return string(r[:maxLength])
	}
	return string(r[:maxLength-3]) + "..."
}
