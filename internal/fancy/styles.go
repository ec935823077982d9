package fancy

import (
	"github.com/charmbracelet/lipgloss"
)

// Common styles that can be used across the application
var (
	RootStyle = lipgloss.NewStyle().
			Foreground(ColorTitle).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorMuted).
			Italic(true)

	BranchStyle = lipgloss.NewStyle().
			Foreground(ColorGuide)

	ComponentStyle = lipgloss.NewStyle().
			Foreground(ColorKind)

	KeyStyle = lipgloss.NewStyle().
			Foreground(ColorKey)

	FrameStyle = lipgloss.NewStyle().
			Foreground(ColorFrame)

	ValidStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorFailure)
)

// ComponentText styles a component name (cyan)
func ComponentText(text string) string {
	return ComponentStyle.Render(text)
}

// KeyText styles an object key in an artifact (orange)
func KeyText(text string) string {
	return KeyStyle.Render(text)
}

// FrameText styles a stack frame (yellow)
func FrameText(text string) string {
	return FrameStyle.Render(text)
}

// ValidText styles valid status text (green)
func ValidText(text string) string {
	return ValidStyle.Render(text)
}

// ErrorText styles error text (red)
func ErrorText(text string) string {
	return ErrorStyle.Render(text)
}

// PathText styles file paths (gray)
func PathText(text string) string {
	return InfoStyle.Render(text)
}

// SummaryText styles summary information (dark gray)
func SummaryText(text string) string {
	return BranchStyle.Render(text)
}
