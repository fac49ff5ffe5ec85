// Package ui provides the terminal rendering helpers used by the CLI.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	accentStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
)

// RenderPass renders a success marker.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders a warning marker.
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderAccent renders highlighted text.
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderDim renders de-emphasized text.
func RenderDim(s string) string { return dimStyle.Render(s) }
