package ui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the key bindings of the TUI.
type KeyMap struct {
	Toggle       key.Binding
	Start        key.Binding
	Stop         key.Binding
	NextDuration key.Binding
	PrevDuration key.Binding
	Permission   key.Binding
	Settings     key.Binding
	ToggleHelp   key.Binding
	Quit         key.Binding
}

// DefaultKeys returns the default key bindings for the application.
func DefaultKeys() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space/enter", "start/stop"),
		),
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop"),
		),
		NextDuration: key.NewBinding(
			key.WithKeys("right", "d"),
			key.WithHelp("→/d", "longer"),
		),
		PrevDuration: key.NewBinding(
			key.WithKeys("left"),
			key.WithHelp("←", "shorter"),
		),
		Permission: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "request permission"),
		),
		Settings: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open settings"),
		),
		ToggleHelp: key.NewBinding(
			key.WithKeys("h", "?"),
			key.WithHelp("h/?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// NewHelpModel returns a configured help model.
func NewHelpModel() help.Model {
	h := help.New()
	h.ShortSeparator = " • "
	return h
}

// contextKeyMap adapts bindings to the session for contextual help.
type contextKeyMap struct {
	keys            KeyMap
	active          bool
	needsPermission bool
	granted         bool
}

// ForSession returns a help.KeyMap showing the bindings that matter now.
func (k KeyMap) ForSession(active, needsPermission, granted bool) help.KeyMap {
	return contextKeyMap{keys: k, active: active, needsPermission: needsPermission, granted: granted}
}

// ShortHelp implements help.KeyMap for contextual help (compact).
func (c contextKeyMap) ShortHelp() []key.Binding {
	if c.needsPermission && !c.granted {
		return []key.Binding{c.keys.Permission, c.keys.Settings, c.keys.ToggleHelp, c.keys.Quit}
	}
	return []key.Binding{c.keys.Toggle, c.keys.NextDuration, c.keys.ToggleHelp, c.keys.Quit}
}

// FullHelp implements help.KeyMap for contextual help (expanded).
func (c contextKeyMap) FullHelp() [][]key.Binding {
	session := []key.Binding{c.keys.Toggle, c.keys.Start, c.keys.Stop}
	duration := []key.Binding{c.keys.NextDuration, c.keys.PrevDuration}
	general := []key.Binding{c.keys.ToggleHelp, c.keys.Quit}
	if c.needsPermission {
		return [][]key.Binding{session, duration, {c.keys.Permission, c.keys.Settings}, general}
	}
	return [][]key.Binding{session, duration, general}
}
