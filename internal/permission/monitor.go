// Package permission tracks whether the process is allowed to synthesize
// pointer input and notifies when that changes.
package permission

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stigoleg/nudge/internal/clock"
	"github.com/stigoleg/nudge/internal/platform"
)

// PollInterval is how often the grant is re-checked while watching.
const PollInterval = 2 * time.Second

// Status is the last observed grant.
type Status int

const (
	Unknown Status = iota
	Granted
	Denied
)

func (s Status) String() string {
	switch s {
	case Granted:
		return "granted"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

func statusOf(granted bool) Status {
	if granted {
		return Granted
	}
	return Denied
}

const (
	guidanceTitle   = "Accessibility permission required"
	guidanceMessage = "nudge needs Accessibility access to move the pointer.\n\n" +
		"Open System Settings → Privacy & Security → Accessibility and enable nudge."
	guidanceAccept  = "Open Settings"
	guidanceDismiss = "Later"
)

// Options configures a Monitor.
type Options struct {
	Info       platform.Info
	Authorizer platform.Authorizer
	Prompter   platform.Prompter
	Clock      clock.Clock
	Logger     *zap.Logger
}

// Monitor observes the OS grant. On platforms without a permission model every
// query reports granted and no OS call is made.
type Monitor struct {
	info   platform.Info
	auth   platform.Authorizer
	prompt platform.Prompter
	clock  clock.Clock
	logger *zap.Logger

	mu       sync.Mutex
	status   Status
	settled  bool
	watching bool
	gen      uint64
	timer    clock.Timer

	notifyMu sync.Mutex
	obsMu    sync.Mutex
	onChange func(bool)
}

// New creates a Monitor in the Unknown state.
func New(opts Options) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Monitor{
		info:   opts.Info,
		auth:   opts.Authorizer,
		prompt: opts.Prompter,
		clock:  opts.Clock,
		logger: opts.Logger.Named("permission"),
	}
}

// NeedsPermission reports whether the platform has a permission model.
func (m *Monitor) NeedsPermission() bool {
	return m.info.NeedsPermission
}

// Name is the OS name of the grant, e.g. "Accessibility".
func (m *Monitor) Name() string {
	return m.info.PermissionName
}

// OnChange registers the transition callback, replacing any previous one.
func (m *Monitor) OnChange(fn func(granted bool)) {
	m.obsMu.Lock()
	defer m.obsMu.Unlock()
	m.onChange = fn
}

// Status returns the last observed grant without querying the OS.
func (m *Monitor) Status() Status {
	if !m.info.NeedsPermission {
		return Granted
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// CheckStatus queries the grant without prompting.
func (m *Monitor) CheckStatus(ctx context.Context) bool {
	return m.query(ctx, false)
}

// RequestStatus queries the grant and lets the OS show its consent prompt.
func (m *Monitor) RequestStatus(ctx context.Context) bool {
	return m.query(ctx, true)
}

func (m *Monitor) query(ctx context.Context, prompt bool) bool {
	if !m.info.NeedsPermission {
		return true
	}
	granted, err := m.auth.Trusted(ctx, prompt)
	if err != nil {
		// Keep the last known value so a failed query does not read as a revoke.
		m.logger.Warn("permission query failed", zap.Error(err), zap.Bool("prompt", prompt))
		m.mu.Lock()
		granted = m.status == Granted
		m.mu.Unlock()
		return granted
	}
	m.observe(granted)
	return granted
}

// observe records a query result and fires the callback once per transition.
// Leaving Unknown is a transition only once Init has reported a value, since
// a failed first query was reported as denied.
func (m *Monitor) observe(granted bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	prev := m.status
	next := statusOf(granted)
	m.status = next
	settled := m.settled
	m.mu.Unlock()

	if prev == next || (prev == Unknown && !settled) {
		return
	}

	m.logger.Info("permission changed", zap.Stringer("from", prev), zap.Stringer("to", next))
	m.obsMu.Lock()
	fn := m.onChange
	m.obsMu.Unlock()
	if fn != nil {
		fn(granted)
	}
}

// PromptUserGuidance asks the user whether to open the settings page and
// opens it when accepted. It reports whether settings were opened.
func (m *Monitor) PromptUserGuidance(ctx context.Context) bool {
	if !m.info.NeedsPermission {
		return true
	}
	ok, err := m.prompt.Confirm(ctx, guidanceTitle, guidanceMessage, guidanceAccept, guidanceDismiss)
	if err != nil {
		m.logger.Warn("guidance dialog failed", zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	m.OpenPlatformSettings(ctx)
	return true
}

// OpenPlatformSettings navigates to the settings page. Failures are logged.
func (m *Monitor) OpenPlatformSettings(ctx context.Context) {
	if !m.info.NeedsPermission {
		return
	}
	if err := m.auth.OpenSettings(ctx); err != nil {
		m.logger.Warn("open settings failed", zap.Error(err))
	}
}

// StartWatching polls the grant every PollInterval until StopWatching.
func (m *Monitor) StartWatching() {
	if !m.info.NeedsPermission {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watching {
		return
	}
	m.watching = true
	m.gen++
	m.armLocked()
	m.logger.Debug("watching", zap.Duration("interval", PollInterval))
}

// StopWatching cancels polling.
func (m *Monitor) StopWatching() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.watching {
		return
	}
	m.watching = false
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// Watching reports whether polling is active.
func (m *Monitor) Watching() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watching
}

func (m *Monitor) armLocked() {
	gen := m.gen
	m.timer = m.clock.AfterFunc(PollInterval, func() {
		m.poll(gen)
	})
}

func (m *Monitor) poll(gen uint64) {
	m.mu.Lock()
	if !m.watching || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), platform.CommandTimeout)
	m.CheckStatus(ctx)
	cancel()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.watching && gen == m.gen {
		m.armLocked()
	}
}

// Init performs one check. When denied it shows the guidance and starts
// watching for the grant. It returns the status seen before prompting.
func (m *Monitor) Init(ctx context.Context) bool {
	granted := m.CheckStatus(ctx)
	m.mu.Lock()
	m.settled = true
	m.mu.Unlock()
	if granted || !m.info.NeedsPermission {
		return granted
	}
	m.PromptUserGuidance(ctx)
	m.StartWatching()
	return granted
}
