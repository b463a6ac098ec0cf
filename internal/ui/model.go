package ui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/stigoleg/nudge/internal/app"
	"github.com/stigoleg/nudge/internal/clock"
	"github.com/stigoleg/nudge/internal/config"
	"github.com/stigoleg/nudge/internal/platform"
	"github.com/stigoleg/nudge/internal/session"
)

// Service is what the TUI drives.
type Service interface {
	Config() config.AppConfig
	SetConfig(config.Partial) (config.AppConfig, error)
	State() session.State
	Start(ctx context.Context) (bool, error)
	Stop(ctx context.Context) error
	Toggle(ctx context.Context) (bool, error)
	RequestPermission(ctx context.Context) bool
	OpenPermissionSettings(ctx context.Context)
	Platform() platform.Info
	Subscribe(buffer int) (<-chan app.Event, func())
}

// Options configures New.
type Options struct {
	Version string
	Clock   clock.Clock
}

// Model holds the TUI state. Session data arrives as bus events; the model
// never mutates it locally.
type Model struct {
	svc     Service
	clock   clock.Clock
	version string
	info    platform.Info

	events      <-chan app.Event
	unsubscribe func()

	cfg   config.AppConfig
	state session.State
	now   time.Time

	notice       string
	ErrorMessage string
	ShowHelp     bool

	keys KeyMap
	help help.Model
}

// New creates a Model subscribed to svc's events. Call Close when the
// program exits.
func New(svc Service, opts Options) Model {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	events, unsubscribe := svc.Subscribe(32)
	return Model{
		svc:         svc,
		clock:       opts.Clock,
		version:     opts.Version,
		info:        svc.Platform(),
		events:      events,
		unsubscribe: unsubscribe,
		cfg:         svc.Config(),
		state:       svc.State(),
		now:         opts.Clock.Now(),
		keys:        DefaultKeys(),
		help:        NewHelpModel(),
	}
}

// Close drops the event subscription.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick())
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return Update(msg, m)
}

// View implements tea.Model
func (m Model) View() string {
	return View(m)
}

// Remaining returns the time left in a bounded active session.
func (m Model) Remaining() time.Duration {
	if !m.state.IsActive || !m.state.Bounded() {
		return 0
	}
	left := m.state.EndAt.Sub(m.now)
	if left < 0 {
		return 0
	}
	return left
}

// Countdown returns the whole seconds until the next move, rounded up.
func (m Model) Countdown() int {
	if !m.state.IsActive || m.state.NextMoveAt.IsZero() {
		return 0
	}
	ms := m.state.NextMoveAt.Sub(m.now).Milliseconds()
	if ms <= 0 {
		return 0
	}
	return int((ms + 999) / 1000)
}
