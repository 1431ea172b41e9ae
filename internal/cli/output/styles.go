package output

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/leapstack-labs/colresolve/pkg/resolve"
)

// Styles holds the lipgloss styles used by the renderer.
type Styles struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Key     lipgloss.Style
	Bold    lipgloss.Style
	Path    lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

// NewStyles builds styles bound to r.
func NewStyles(r *lipgloss.Renderer) *Styles {
	return &Styles{
		Title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Underline(true),
		Header:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Key:     r.NewStyle().Foreground(lipgloss.Color("8")),
		Bold:    r.NewStyle().Bold(true),
		Path:    r.NewStyle().Foreground(lipgloss.Color("14")),
		Success: r.NewStyle().Foreground(lipgloss.Color("10")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")),
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Muted:   r.NewStyle().Foreground(lipgloss.Color("8")),
	}
}

// Confidence picks a style for a confidence level.
func (s *Styles) Confidence(c resolve.Confidence) lipgloss.Style {
	switch c {
	case resolve.QualifiedExact:
		return s.Success
	case resolve.AliasResolved:
		return s.Bold
	case resolve.HeuristicUnqualified:
		return s.Warning
	default:
		return s.Muted
	}
}
