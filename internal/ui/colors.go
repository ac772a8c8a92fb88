package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Semantic colors for status indication.
const (
	ColorSuccess lipgloss.Color = "2" // Green
	ColorError   lipgloss.Color = "1" // Red
	ColorWarning lipgloss.Color = "3" // Yellow
	ColorInfo    lipgloss.Color = "6" // Cyan
)

// Text colors for content hierarchy.
const (
	ColorPrimary   lipgloss.Color = "7" // White/default
	ColorSecondary lipgloss.Color = "4" // Blue
	ColorMuted     lipgloss.Color = "8" // Gray (bright black)
)

// DisableColors switches lipgloss to monochrome output.
func DisableColors() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

// ConfigureColors disables colors when noColor is set or out is not a
// terminal. It reports whether colors stay enabled.
func ConfigureColors(noColor bool, out *os.File) bool {
	if noColor || out == nil || !term.IsTerminal(int(out.Fd())) {
		DisableColors()
		return false
	}
	return true
}

func style(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

// Success, Error, Warning, Info and Muted render text in the matching
// palette color.
func Success(s string) string { return style(ColorSuccess).Render(s) }
func Error(s string) string   { return style(ColorError).Render(s) }
func Warning(s string) string { return style(ColorWarning).Render(s) }
func Info(s string) string    { return style(ColorInfo).Render(s) }
func Muted(s string) string   { return style(ColorMuted).Render(s) }

// Bold renders s in bold.
func Bold(s string) string {
	return lipgloss.NewStyle().Bold(true).Render(s)
}
