package fancy

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette for diagnostic and artifact trees. ANSI 256 codes.
var (
	ColorTitle   = lipgloss.Color("39")
	ColorKey     = lipgloss.Color("208")
	ColorSuccess = lipgloss.Color("82")
	ColorFrame   = lipgloss.Color("228")
	ColorKind    = lipgloss.Color("45")
	ColorFailure = lipgloss.Color("196")
	ColorMuted   = lipgloss.Color("250")
	ColorText    = lipgloss.Color("15")
	ColorGuide   = lipgloss.Color("240")
)
