package ui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles contains all the style definitions for the UI
type Styles struct {
	Title         lipgloss.Style
	Filter        lipgloss.Style
	Dim           lipgloss.Style
	ID            lipgloss.Style
	Instance      lipgloss.Style
	Highlight     lipgloss.Style
	Status        lipgloss.Style
	StatusError   lipgloss.Style
	StatusLoading lipgloss.Style
	Help          lipgloss.Style
	Main          lipgloss.Style
}

// NewStyles creates a new Styles instance with default values
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("99")).
			MarginBottom(1),
		Filter:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")), // yellow
		Dim:       lipgloss.NewStyle().Faint(true),
		ID:        lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(8).Align(lipgloss.Right),
		Instance:  lipgloss.NewStyle(),
		Highlight: lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true),
		Status: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1),
		StatusError:   lipgloss.NewStyle().Foreground(lipgloss.Color("203")), // red
		StatusLoading: lipgloss.NewStyle().Foreground(lipgloss.Color("241")), // gray
		Help:          lipgloss.NewStyle().Faint(true).MarginTop(1),
		Main:          lipgloss.NewStyle().Padding(1, 2),
	}
}
