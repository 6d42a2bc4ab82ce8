package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles holds the text-mode styles.
type Styles struct {
	Header1   lipgloss.Style
	Header2   lipgloss.Style
	TableName lipgloss.Style
	Path      lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
}

// NewStyles builds styles bound to w with the given colour profile.
// termenv.Ascii disables all colour.
func NewStyles(w io.Writer, profile termenv.Profile) *Styles {
	lr := lipgloss.NewRenderer(w)
	lr.SetColorProfile(profile)

	return &Styles{
		Header1:   lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2:   lr.NewStyle().Bold(true),
		TableName: lr.NewStyle().Foreground(lipgloss.Color("14")),
		Path:      lr.NewStyle().Foreground(lipgloss.Color("8")),
		Success:   lr.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:   lr.NewStyle().Foreground(lipgloss.Color("11")),
		Error:     lr.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Muted:     lr.NewStyle().Foreground(lipgloss.Color("8")),
		Bold:      lr.NewStyle().Bold(true),
	}
}
