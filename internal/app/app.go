// Package app wires the long-lived objects of a nudge process together and
// fans their changes out to the presentation surfaces.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stigoleg/nudge/internal/api"
	"github.com/stigoleg/nudge/internal/clock"
	"github.com/stigoleg/nudge/internal/config"
	"github.com/stigoleg/nudge/internal/keepalive"
	"github.com/stigoleg/nudge/internal/permission"
	"github.com/stigoleg/nudge/internal/platform"
	"github.com/stigoleg/nudge/internal/power"
	"github.com/stigoleg/nudge/internal/session"
	"github.com/stigoleg/nudge/internal/store"
)

// shutdownTimeout bounds Close.
const shutdownTimeout = 5 * time.Second

// Platform bundles the OS-facing pieces. A nil field is built for the
// running OS.
type Platform struct {
	Info       *platform.Info
	Backend    platform.Backend
	Authorizer platform.Authorizer
	Prompter   platform.Prompter
}

// Options configures New.
type Options struct {
	Version     string
	ConfigPath  string
	WatchConfig bool
	// Listen is the command API address. Empty disables the API.
	Listen string
	Token  string

	Platform Platform
	// Power reports resumes. Nil selects power.New.
	Power     power.Watcher
	Scheduler keepalive.Config
	Clock     clock.Clock
	Logger    *zap.Logger
}

// App owns every component of a running instance and implements
// api.Service.
type App struct {
	version string
	info    platform.Info
	logger  *zap.Logger

	store      *store.Store
	scheduler  *keepalive.Scheduler
	monitor    *permission.Monitor
	controller *session.Controller
	server     *api.Server
	power      power.Watcher
	bus        *Bus
	shutdown   *shutdown

	watchConfig bool

	cancel context.CancelFunc
	wg     sync.WaitGroup

	quit     chan struct{}
	quitOnce sync.Once
}

var _ api.Service = (*App)(nil)

// New builds all components. Nothing runs until Launch.
func New(opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	logger := opts.Logger

	path := opts.ConfigPath
	if path == "" {
		p, err := store.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	st, err := store.Open(path, store.Options{Clock: opts.Clock, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}

	info := platform.CurrentInfo()
	if opts.Platform.Info != nil {
		info = *opts.Platform.Info
	}
	backend := opts.Platform.Backend
	if backend == nil {
		backend, err = platform.NewBackend(logger)
		if err != nil {
			return nil, fmt.Errorf("input backend: %w", err)
		}
	}
	auth := opts.Platform.Authorizer
	if auth == nil {
		auth = platform.NewAuthorizer(logger)
	}
	prompter := opts.Platform.Prompter
	if prompter == nil {
		prompter = platform.NewPrompter()
	}

	schedCfg := opts.Scheduler
	schedCfg.Clock = opts.Clock
	schedCfg.Logger = logger
	sched := keepalive.New(backend, schedCfg)

	mon := permission.New(permission.Options{
		Info:       info,
		Authorizer: auth,
		Prompter:   prompter,
		Clock:      opts.Clock,
		Logger:     logger,
	})

	ctrl := session.New(session.Options{
		Store:       st,
		Runner:      sched,
		Permissions: mon,
		Clock:       opts.Clock,
		Logger:      logger,
	})

	pw := opts.Power
	if pw == nil {
		pw = power.New(logger)
	}

	a := &App{
		version:     opts.Version,
		info:        info,
		logger:      logger.Named("app"),
		store:       st,
		scheduler:   sched,
		monitor:     mon,
		controller:  ctrl,
		power:       pw,
		bus:         NewBus(),
		shutdown:    newShutdown(shutdownTimeout, logger),
		watchConfig: opts.WatchConfig,
		quit:        make(chan struct{}),
	}
	if opts.Listen != "" {
		a.server = api.NewServer(a, api.Options{Addr: opts.Listen, Token: opts.Token, Logger: logger})
	}

	st.OnChange(func(cfg config.AppConfig) {
		a.publish(Event{Type: ConfigChanged, Config: cfg})
	})
	ctrl.OnStateChange(func(s session.State) {
		a.publish(Event{Type: StateChanged, State: s})
	})

	// Added in start order, torn down in reverse.
	a.shutdown.add("config store", st.Close)
	a.shutdown.add("scheduler", sched.Close)
	a.shutdown.add("permission monitor", func() error {
		mon.StopWatching()
		return nil
	})
	a.shutdown.add("event bus", func() error {
		a.bus.Close()
		return nil
	})
	a.shutdown.add("session", ctrl.Close)
	a.shutdown.add("background tasks", func() error {
		if a.cancel != nil {
			a.cancel()
		}
		a.wg.Wait()
		return nil
	})

	return a, nil
}

func (a *App) publish(e Event) {
	a.bus.Publish(e)
	if a.server != nil {
		a.server.Broadcast(string(e.Type), e.Payload())
	}
}

// Startup describes what the command line asked for.
type Startup struct {
	// DurationMinutes is persisted when >= 0.
	DurationMinutes int
	// Start begins a session after the persisted state is restored.
	Start bool
}

// Launch restores the persisted session, applies su and starts the
// background tasks: command API, resume watcher and config watcher.
func (a *App) Launch(ctx context.Context, su Startup) error {
	if su.DurationMinutes >= 0 {
		if _, err := a.store.SetConfig(config.Partial{DurationMinutes: &su.DurationMinutes}); err != nil {
			return fmt.Errorf("save duration: %w", err)
		}
	}

	if err := a.controller.Restore(ctx); err != nil {
		a.logger.Warn("restore session", zap.Error(err))
	}
	if su.Start && !a.controller.State().IsActive {
		if _, err := a.controller.Start(ctx); err != nil {
			a.logger.Warn("start session", zap.Error(err))
		}
	}

	bg, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.server != nil {
		a.goTask("command api", func() error { return a.server.Run(bg) })
	}
	a.goTask("resume watcher", func() error {
		return a.power.Run(bg, func() {
			if err := a.controller.HandleResume(bg); err != nil {
				a.logger.Warn("resume", zap.Error(err))
			}
		})
	})
	if a.watchConfig {
		if err := a.store.Watch(bg); err != nil {
			a.logger.Warn("watch config", zap.Error(err))
		}
	}

	a.logger.Info("started",
		zap.String("version", a.version),
		zap.String("platform", string(a.info.Platform)),
		zap.String("config", a.store.Path()))
	return nil
}

// goTask runs fn until Close. A task error is logged and does not stop the
// process.
func (a *App) goTask(name string, fn func() error) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := fn(); err != nil {
			a.logger.Error("background task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

// Wait blocks until ctx is done or Quit is called.
func (a *App) Wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-a.quit:
	}
}

// Done is closed by Quit.
func (a *App) Done() <-chan struct{} {
	return a.quit
}

// Close stops everything. The persisted enabled flag is left as is so the
// session comes back on the next launch.
func (a *App) Close() error {
	return a.shutdown.run()
}

// Subscribe returns a channel of config and state events.
func (a *App) Subscribe(buffer int) (<-chan Event, func()) {
	return a.bus.Subscribe(buffer)
}

func (a *App) Config() config.AppConfig {
	return a.store.Config()
}

func (a *App) SetConfig(p config.Partial) (config.AppConfig, error) {
	return a.store.SetConfig(p)
}

func (a *App) State() session.State {
	return a.controller.State()
}

// Start begins a session. It reports false when the permission is missing.
func (a *App) Start(ctx context.Context) (bool, error) {
	return a.controller.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	return a.controller.Stop(ctx)
}

func (a *App) Toggle(ctx context.Context) (bool, error) {
	return a.controller.Toggle(ctx)
}

// CheckPermission queries the OS without prompting.
func (a *App) CheckPermission(ctx context.Context) bool {
	return a.monitor.CheckStatus(ctx)
}

// RequestPermission queries the OS and lets it show its own prompt.
func (a *App) RequestPermission(ctx context.Context) bool {
	return a.monitor.RequestStatus(ctx)
}

func (a *App) OpenPermissionSettings(ctx context.Context) {
	a.monitor.OpenPlatformSettings(ctx)
}

func (a *App) Platform() platform.Info {
	return a.info
}

func (a *App) Version() string {
	return a.version
}

// Quit asks the process to exit. It is safe to call more than once.
func (a *App) Quit() {
	a.quitOnce.Do(func() {
		a.logger.Info("quit requested")
		close(a.quit)
	})
}
