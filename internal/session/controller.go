// Package session owns the keep-alive session: it gates starts on permission,
// enforces the configured duration and reconciles state after sleep.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/stigoleg/nudge/internal/clock"
	"github.com/stigoleg/nudge/internal/config"
	"github.com/stigoleg/nudge/internal/keepalive"
)

// ConfigStore is the persisted configuration the controller reads and writes.
type ConfigStore interface {
	Config() config.AppConfig
	SetConfig(config.Partial) (config.AppConfig, error)
}

// Runner moves the pointer while started.
type Runner interface {
	Start()
	Stop()
	State() keepalive.State
	OnStateChange(func(keepalive.State))
}

// Permissions reports and watches the OS input grant.
type Permissions interface {
	NeedsPermission() bool
	Init(ctx context.Context) bool
	PromptUserGuidance(ctx context.Context) bool
	StartWatching()
	OnChange(func(granted bool))
}

// Options configures a Controller.
type Options struct {
	Store       ConfigStore
	Runner      Runner
	Permissions Permissions
	Clock       clock.Clock
	Logger      *zap.Logger
}

// Controller serializes session commands and publishes one merged State.
type Controller struct {
	store  ConfigStore
	runner Runner
	perm   Permissions
	clock  clock.Clock
	logger *zap.Logger

	// opMu serializes commands. The runner's notification path never takes it.
	opMu sync.Mutex

	mu            sync.Mutex
	active        bool
	hasPermission bool
	endAt         time.Time
	durGen        uint64
	durTimer      clock.Timer
	sched         keepalive.State

	publishMu sync.Mutex
	obsMu     sync.Mutex
	observer  func(State)

	guiding atomic.Bool
}

// New creates an inactive Controller and subscribes it to the runner and
// permission notifications. Platforms without a permission model start
// out granted.
func New(opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	c := &Controller{
		store:         opts.Store,
		runner:        opts.Runner,
		perm:          opts.Permissions,
		clock:         opts.Clock,
		logger:        opts.Logger.Named("session"),
		hasPermission: !opts.Permissions.NeedsPermission(),
		sched:         opts.Runner.State(),
	}
	c.runner.OnStateChange(c.handleRunnerState)
	c.perm.OnChange(func(granted bool) {
		c.HandlePermissionChange(context.Background(), granted)
	})
	return c
}

// OnStateChange registers the single observer, replacing any previous one.
func (c *Controller) OnStateChange(fn func(State)) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observer = fn
}

// State returns the current snapshot with derived fields computed now.
func (c *Controller) State() State {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(now)
}

func (c *Controller) snapshotLocked(now time.Time) State {
	st := State{
		IsActive:      c.active,
		HasPermission: c.hasPermission,
		EndAt:         c.endAt,
		NextMoveAt:    c.sched.NextMoveAt,
		Countdown:     c.sched.CountdownSeconds(now),
		LastMoveAt:    c.sched.LastMoveAt,
	}
	if c.active && !c.endAt.IsZero() {
		st.RemainingSeconds = ceilSeconds(c.endAt.Sub(now))
	}
	return st
}

// Restore applies the persisted configuration at process start: it checks
// the permission (prompting when denied), keeps watching for changes and
// starts the session when it was enabled.
func (c *Controller) Restore(ctx context.Context) error {
	granted := c.perm.Init(ctx)
	c.setPermission(granted)
	c.perm.StartWatching()

	if !granted || !c.store.Config().Enabled {
		return nil
	}
	_, err := c.Start(ctx)
	return err
}

// Start begins a session with the configured duration. Without permission it
// shows the guidance asynchronously and reports false.
func (c *Controller) Start(ctx context.Context) (bool, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.startLocked(ctx)
}

func (c *Controller) startLocked(_ context.Context) (bool, error) {
	c.mu.Lock()
	granted := c.hasPermission
	c.mu.Unlock()
	if !granted {
		c.logger.Info("start refused, permission missing")
		c.guide()
		return false, nil
	}

	minutes := c.store.Config().DurationMinutes
	now := c.clock.Now()

	c.mu.Lock()
	c.active = true
	c.endAt = time.Time{}
	if minutes > 0 {
		c.endAt = now.Add(time.Duration(minutes) * time.Minute)
	}
	c.armDurationLocked(time.Duration(minutes) * time.Minute)
	endAt := c.endAt
	c.mu.Unlock()

	c.runner.Start()
	c.logger.Info("session started", zap.Int("duration_minutes", minutes), zap.Time("end_at", endAt))

	_, err := c.store.SetConfig(config.Partial{Enabled: ptr(true)})
	c.publish()
	if err != nil {
		return true, fmt.Errorf("persist enabled: %w", err)
	}
	return true, nil
}

// Stop ends the session and persists enabled=false. Stopping an inactive,
// disabled session changes nothing and publishes nothing.
func (c *Controller) Stop(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	active := c.active
	c.mu.Unlock()
	if !active && !c.store.Config().Enabled {
		return nil
	}
	return c.stopLocked(ctx, true)
}

func (c *Controller) stopLocked(_ context.Context, persist bool) error {
	c.mu.Lock()
	c.active = false
	c.endAt = time.Time{}
	c.cancelDurationLocked()
	c.mu.Unlock()

	c.runner.Stop()
	c.logger.Info("session stopped", zap.Bool("persist", persist))

	var err error
	if persist {
		_, err = c.store.SetConfig(config.Partial{Enabled: ptr(false)})
	}
	c.publish()
	if err != nil {
		return fmt.Errorf("persist enabled: %w", err)
	}
	return nil
}

// Toggle stops an active session or starts an inactive one. It reports
// whether a session is active afterwards.
func (c *Controller) Toggle(ctx context.Context) (bool, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	if active {
		return false, c.stopLocked(ctx, true)
	}
	return c.startLocked(ctx)
}

// HandlePermissionChange reacts to a grant transition. A revoke stops the
// session but keeps it enabled so that a later grant resumes it.
func (c *Controller) HandlePermissionChange(ctx context.Context, granted bool) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if !granted {
		c.mu.Lock()
		active := c.active
		c.mu.Unlock()
		if active {
			c.logger.Warn("permission revoked, stopping session")
			if err := c.stopLocked(ctx, false); err != nil {
				c.logger.Warn("stop after revoke failed", zap.Error(err))
			}
		}
		c.setPermission(false)
		return
	}

	c.setPermission(true)
	if !c.store.Config().Enabled {
		return
	}
	c.logger.Info("permission granted, resuming enabled session")
	if _, err := c.startLocked(ctx); err != nil {
		c.logger.Warn("resume after grant failed", zap.Error(err))
	}
}

// HandleResume reconciles the session after the system woke up. An enabled,
// permitted, active session resumes when its budget is not spent and stops
// otherwise.
func (c *Controller) HandleResume(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	enabled := c.store.Config().Enabled
	now := c.clock.Now()

	c.mu.Lock()
	if !enabled || !c.hasPermission || !c.active {
		c.mu.Unlock()
		return nil
	}
	endAt := c.endAt
	if !endAt.IsZero() && !endAt.After(now) {
		c.mu.Unlock()
		c.logger.Info("session expired during sleep", zap.Time("end_at", endAt))
		return c.stopLocked(ctx, true)
	}
	// Timers may not count suspended time, so re-arm against the wall clock.
	if !endAt.IsZero() {
		c.armDurationLocked(endAt.Sub(now))
	}
	c.mu.Unlock()

	c.logger.Info("resuming after sleep", zap.Time("end_at", endAt))
	c.runner.Start()
	c.publish()
	return nil
}

// Close cancels the duration timer and stops the runner without touching the
// persisted configuration, so the session is restored on next launch.
func (c *Controller) Close() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	c.cancelDurationLocked()
	c.mu.Unlock()
	c.runner.Stop()
	return nil
}

func (c *Controller) setPermission(granted bool) {
	c.mu.Lock()
	changed := c.hasPermission != granted
	c.hasPermission = granted
	c.mu.Unlock()
	if changed {
		c.publish()
	}
}

// guide shows the permission guidance unless it is already showing.
func (c *Controller) guide() {
	if !c.guiding.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer c.guiding.Store(false)
		c.perm.PromptUserGuidance(context.Background())
	}()
}

// armDurationLocked replaces the duration timer. d <= 0 leaves none armed.
func (c *Controller) armDurationLocked(d time.Duration) {
	c.cancelDurationLocked()
	if d <= 0 {
		return
	}
	gen := c.durGen
	c.durTimer = c.clock.AfterFunc(d, func() {
		c.expire(gen)
	})
}

func (c *Controller) cancelDurationLocked() {
	c.durGen++
	if c.durTimer != nil {
		c.durTimer.Stop()
		c.durTimer = nil
	}
}

func (c *Controller) expire(gen uint64) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.mu.Lock()
	current := gen == c.durGen && c.active
	c.mu.Unlock()
	if !current {
		return
	}
	c.logger.Info("session duration elapsed")
	if err := c.stopLocked(context.Background(), true); err != nil {
		c.logger.Warn("stop on expiry failed", zap.Error(err))
	}
}

func (c *Controller) handleRunnerState(st keepalive.State) {
	c.mu.Lock()
	c.sched = st
	c.mu.Unlock()
	c.publish()
}

// publish sends the current snapshot. publishMu keeps snapshots in order.
func (c *Controller) publish() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	st := c.State()
	c.obsMu.Lock()
	fn := c.observer
	c.obsMu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func ptr[T any](v T) *T {
	return &v
}
