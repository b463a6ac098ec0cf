// Package ui provides the terminal user interface of nudge.
package ui

import "github.com/charmbracelet/lipgloss"

// Colors defines the color scheme used throughout the application
type Colors struct {
	Subtle    lipgloss.AdaptiveColor
	Highlight lipgloss.AdaptiveColor
	Special   lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
}

var defaultColors = Colors{
	Subtle:    lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"},
	Highlight: lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"},
	Special:   lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"},
	Error:     lipgloss.AdaptiveColor{Light: "#FF0000", Dark: "#FF4040"},
}

// Style represents a collection of styles used in the application
type Style struct {
	Title                lipgloss.Style
	Version              lipgloss.Style
	Label                lipgloss.Style
	Value                lipgloss.Style
	ActiveStatus         lipgloss.Style
	InactiveStatus       lipgloss.Style
	Countdown            lipgloss.Style
	Notice               lipgloss.Style
	Error                lipgloss.Style
	Help                 lipgloss.Style
	ProgressBar          lipgloss.Style
	ProgressBarContainer lipgloss.Style
}

// DefaultStyle returns the default style configuration
func DefaultStyle() Style {
	base := lipgloss.NewStyle().
		PaddingLeft(1).
		PaddingRight(1)

	return Style{
		Title: base.
			Bold(true).
			Foreground(defaultColors.Highlight),

		Version: lipgloss.NewStyle().
			Foreground(defaultColors.Subtle),

		Label: base.
			Width(13).
			Foreground(defaultColors.Subtle),

		Value: lipgloss.NewStyle(),

		ActiveStatus: lipgloss.NewStyle().
			Bold(true).
			Foreground(defaultColors.Special),

		InactiveStatus: lipgloss.NewStyle().
			Foreground(defaultColors.Subtle),

		Countdown: lipgloss.NewStyle().
			Foreground(defaultColors.Highlight).
			Bold(true),

		Notice: base.
			Foreground(defaultColors.Highlight),

		Error: base.
			Foreground(defaultColors.Error),

		Help: base.
			Foreground(defaultColors.Subtle),

		ProgressBar: lipgloss.NewStyle().
			Background(lipgloss.AdaptiveColor{Light: "#DDDDDD", Dark: "#333333"}),

		ProgressBarContainer: base,
	}
}

// Current holds the current style configuration
var Current = DefaultStyle()
