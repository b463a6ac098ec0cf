// Package tray shows the session in the system tray using getlantern/systray.
package tray

import (
	"context"
	"fmt"
	"time"

	"github.com/getlantern/systray"
	"go.uber.org/zap"

	"github.com/stigoleg/nudge/internal/app"
	"github.com/stigoleg/nudge/internal/config"
	"github.com/stigoleg/nudge/internal/platform"
	"github.com/stigoleg/nudge/internal/session"
)

// Service is what the tray drives.
type Service interface {
	Config() config.AppConfig
	SetConfig(config.Partial) (config.AppConfig, error)
	State() session.State
	Toggle(ctx context.Context) (bool, error)
	OpenPermissionSettings(ctx context.Context)
	Platform() platform.Info
	Subscribe(buffer int) (<-chan app.Event, func())
	Quit()
}

// Tray owns the menu. Run must be called from the main goroutine.
type Tray struct {
	svc    Service
	logger *zap.Logger

	status    *systray.MenuItem
	toggle    *systray.MenuItem
	durations map[int]*systray.MenuItem
	settings  *systray.MenuItem
	quit      *systray.MenuItem

	// active is the last state the icon was drawn for.
	active *bool
	done   chan struct{}
}

// New creates a Tray for svc.
func New(svc Service, logger *zap.Logger) *Tray {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tray{
		svc:       svc,
		logger:    logger.Named("tray"),
		durations: make(map[int]*systray.MenuItem),
		done:      make(chan struct{}),
	}
}

// Run shows the tray and blocks until Stop.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Stop removes the tray icon and makes Run return.
func (t *Tray) Stop() {
	systray.Quit()
}

func (t *Tray) onExit() {
	close(t.done)
}

func (t *Tray) onReady() {
	systray.SetTitle("")
	systray.SetTooltip("nudge")

	t.status = systray.AddMenuItem("", "")
	t.status.Disable()
	t.toggle = systray.AddMenuItem("", "Start or stop the session")
	systray.AddSeparator()

	durMenu := systray.AddMenuItem("Duration", "Session length")
	for _, minutes := range config.DurationOptions {
		item := durMenu.AddSubMenuItem(config.FormatDuration(minutes), "")
		t.durations[minutes] = item
		go t.watchDuration(item, minutes)
	}

	if info := t.svc.Platform(); info.NeedsPermission {
		t.settings = systray.AddMenuItem("Open "+info.PermissionName+" Settings", "")
	}
	systray.AddSeparator()
	t.quit = systray.AddMenuItem("Quit", "Quit nudge")

	t.renderConfig(t.svc.Config())
	t.renderState(t.svc.State(), time.Now())

	go t.loop()
}

func (t *Tray) watchDuration(item *systray.MenuItem, minutes int) {
	for {
		select {
		case <-item.ClickedCh:
			if _, err := t.svc.SetConfig(config.Partial{DurationMinutes: &minutes}); err != nil {
				t.logger.Warn("set duration", zap.Error(err))
			}
		case <-t.done:
			return
		}
	}
}

func (t *Tray) loop() {
	events, cancel := t.svc.Subscribe(16)
	defer cancel()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var settingsCh <-chan struct{}
	if t.settings != nil {
		settingsCh = t.settings.ClickedCh
	}

	for {
		select {
		case <-t.done:
			return

		case e, ok := <-events:
			if !ok {
				return
			}
			switch e.Type {
			case app.ConfigChanged:
				t.renderConfig(e.Config)
			case app.StateChanged:
				t.renderState(e.State, time.Now())
			}

		case now := <-ticker.C:
			t.renderState(t.svc.State(), now)

		case <-t.toggle.ClickedCh:
			if _, err := t.svc.Toggle(context.Background()); err != nil {
				t.logger.Warn("toggle", zap.Error(err))
			}

		case <-settingsCh:
			t.svc.OpenPermissionSettings(context.Background())

		case <-t.quit.ClickedCh:
			t.svc.Quit()
			return
		}
	}
}

func (t *Tray) renderConfig(cfg config.AppConfig) {
	for minutes, item := range t.durations {
		if minutes == cfg.DurationMinutes {
			item.Check()
		} else {
			item.Uncheck()
		}
	}
}

func (t *Tray) renderState(st session.State, now time.Time) {
	t.status.SetTitle(statusLine(st, now))
	t.toggle.SetTitle(toggleTitle(st.IsActive))
	if t.active == nil || *t.active != st.IsActive {
		active := st.IsActive
		t.active = &active
		systray.SetIcon(icon(active))
	}
}

func toggleTitle(active bool) string {
	if active {
		return "Stop"
	}
	return "Start"
}

// statusLine is the disabled first menu entry.
func statusLine(st session.State, now time.Time) string {
	switch {
	case !st.HasPermission:
		return "Permission required"
	case !st.IsActive:
		return "Idle"
	case st.Bounded():
		left := st.EndAt.Sub(now)
		if left < 0 {
			left = 0
		}
		return fmt.Sprintf("Active, %s left", clockFormat(left))
	default:
		return "Active, no time limit"
	}
}

// clockFormat renders d as h:mm:ss, or m:ss under an hour.
func clockFormat(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
