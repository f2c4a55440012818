// Package ui holds the lipgloss styles shared by the CLI commands.
package ui

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
)

var (
	accentStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)
	passStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)
	warnStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorYellow)
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorGray)

	// HeaderStyle is used for report section headers.
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorBlue).
			Padding(0, 1).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(ColorGray)
)

// RenderAccent renders emphasized values (counts, dates, ids).
func RenderAccent(s string) string { return accentStyle.Render(s) }

// RenderPass renders success output.
func RenderPass(s string) string { return passStyle.Render(s) }

// RenderWarn renders warnings (pending writes, skips).
func RenderWarn(s string) string { return warnStyle.Render(s) }

// RenderFail renders failures and errors.
func RenderFail(s string) string { return failStyle.Render(s) }

// RenderMuted renders secondary detail.
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// PriorityStyle returns a color-coded style for a task priority.
func PriorityStyle(priority string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	switch priority {
	case "high":
		return base.Foreground(ColorRed)
	case "medium":
		return base.Foreground(ColorYellow)
	case "low":
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}
