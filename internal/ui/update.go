package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/stigoleg/nudge/internal/app"
	"github.com/stigoleg/nudge/internal/config"
)

// commandTimeout bounds a service call made from a key press.
const commandTimeout = 10 * time.Second

// tickMsg is sent when the countdown timer ticks
type tickMsg time.Time

type eventMsg app.Event

// busClosedMsg means the process is shutting down.
type busClosedMsg struct{}

// resultMsg reports the outcome of a command.
type resultMsg struct {
	notice string
	err    error
}

// Update handles messages and updates the model accordingly.
func Update(msg tea.Msg, m Model) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case eventMsg:
		switch msg.Type {
		case app.ConfigChanged:
			m.cfg = msg.Config
		case app.StateChanged:
			m.state = msg.State
			if m.state.HasPermission && m.notice == permissionNotice {
				m.notice = ""
			}
		}
		m.now = m.clock.Now()
		return m, waitForEvent(m.events)

	case busClosedMsg:
		return m, tea.Quit

	case tickMsg:
		m.now = m.clock.Now()
		return m, tick()

	case resultMsg:
		m.notice = msg.notice
		m.ErrorMessage = ""
		if msg.err != nil {
			m.ErrorMessage = msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		return handleKey(msg, m)
	}

	return m, nil
}

func handleKey(msg tea.KeyMsg, m Model) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.ToggleHelp):
		m.ShowHelp = !m.ShowHelp
		m.help.ShowAll = m.ShowHelp
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		wasActive := m.state.IsActive
		return m, m.run(func(ctx context.Context) resultMsg {
			active, err := m.svc.Toggle(ctx)
			if wasActive {
				return resultMsg{err: err}
			}
			return startResult(active, err)
		})

	case key.Matches(msg, m.keys.Start):
		return m, m.run(func(ctx context.Context) resultMsg {
			active, err := m.svc.Start(ctx)
			return startResult(active, err)
		})

	case key.Matches(msg, m.keys.Stop):
		return m, m.run(func(ctx context.Context) resultMsg {
			return resultMsg{err: m.svc.Stop(ctx)}
		})

	case key.Matches(msg, m.keys.NextDuration):
		return m, m.setDuration(config.NextDuration(m.cfg.DurationMinutes))

	case key.Matches(msg, m.keys.PrevDuration):
		return m, m.setDuration(config.PrevDuration(m.cfg.DurationMinutes))

	case key.Matches(msg, m.keys.Permission):
		if !m.info.NeedsPermission {
			return m, nil
		}
		return m, m.run(func(ctx context.Context) resultMsg {
			if m.svc.RequestPermission(ctx) {
				return resultMsg{notice: m.info.PermissionName + " permission granted"}
			}
			return resultMsg{notice: permissionNotice}
		})

	case key.Matches(msg, m.keys.Settings):
		if !m.info.NeedsPermission {
			return m, nil
		}
		return m, m.run(func(ctx context.Context) resultMsg {
			m.svc.OpenPermissionSettings(ctx)
			return resultMsg{notice: "Opened " + m.info.PermissionName + " settings"}
		})
	}
	return m, nil
}

const permissionNotice = "Permission required: grant access, then start again"

// startResult turns a start outcome into a message. A false start without an
// error means the permission is missing.
func startResult(started bool, err error) resultMsg {
	if err != nil {
		return resultMsg{err: err}
	}
	if !started {
		return resultMsg{notice: permissionNotice}
	}
	return resultMsg{}
}

func (m Model) setDuration(minutes int) tea.Cmd {
	return m.run(func(context.Context) resultMsg {
		_, err := m.svc.SetConfig(config.Partial{DurationMinutes: &minutes})
		return resultMsg{err: err}
	})
}

// run executes fn off the UI goroutine.
func (m Model) run(fn func(context.Context) resultMsg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return fn(ctx)
	}
}

func waitForEvent(events <-chan app.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return busClosedMsg{}
		}
		return eventMsg(e)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
