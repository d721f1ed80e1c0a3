package pubguard

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/varalys/pubguard/internal/report"
	"github.com/varalys/pubguard/internal/types"
)

var (
	sevCriticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	sevHighStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	sevMedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	sevLowStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// colorEnabled is true when w is a terminal and --no-color is unset.
func colorEnabled(w io.Writer, noColor bool) bool {
	if noColor || os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func renderer(w io.Writer, noColor bool) report.Renderer {
	if !colorEnabled(w, noColor) {
		return report.Renderer{}
	}
	return report.Renderer{Heading: func(sev types.Severity, text string) string {
		return severityStyle(sev).Render(text)
	}}
}

func severityStyle(sev types.Severity) lipgloss.Style {
	switch sev {
	case types.SevCritical:
		return sevCriticalStyle
	case types.SevHigh:
		return sevHighStyle
	case types.SevMed:
		return sevMedStyle
	default:
		return sevLowStyle
	}
}
