package tui

import (
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Colors shared by the run views.
const (
	ColorSuccess = lipgloss.Color("42")
	ColorFailure = lipgloss.Color("196")
	ColorLabel   = lipgloss.Color("245")
	ColorHeader  = lipgloss.Color("39")
	ColorMuted   = lipgloss.Color("241")
)

//nolint:gochecknoglobals // Shared styles, read-only after init.
var (
	HeaderStyle  = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	FailureStyle = lipgloss.NewStyle().Foreground(ColorFailure).Bold(true)
	LabelStyle   = lipgloss.NewStyle().Foreground(ColorLabel)
	MutedStyle   = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)
	BoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

//nolint:gochecknoglobals // Global printer is idiomatic for x/text/message usage.
var printer = message.NewPrinter(language.English)

// FormatCount renders n with thousands separators.
func FormatCount(n int) string {
	return printer.Sprintf("%d", n)
}
