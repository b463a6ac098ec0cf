package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stigoleg/nudge/internal/app"
	"github.com/stigoleg/nudge/internal/config"
	"github.com/stigoleg/nudge/internal/instance"
	"github.com/stigoleg/nudge/internal/logging"
	"github.com/stigoleg/nudge/internal/tray"
	"github.com/stigoleg/nudge/internal/ui"
)

// runService runs a nudge instance in the foreground until it is quit or
// signalled.
func runService(cmd *cobra.Command, opts config.Options, version string) error {
	resolved, err := opts.Resolve(time.Now())
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{
		File:   opts.LogFile,
		Level:  opts.LogLevel,
		Stderr: opts.UI == config.UIModeNone,
	})
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	lockPath, err := instance.DefaultPath()
	if err != nil {
		return err
	}
	lock, err := instance.Acquire(lockPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release instance lock", zap.Error(err))
		}
	}()

	a, err := app.New(app.Options{
		Version:     version,
		ConfigPath:  opts.ConfigPath,
		WatchConfig: opts.WatchConfig,
		Listen:      opts.Listen,
		Token:       opts.Token,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("cleanup", zap.Error(err))
		}
	}()

	if !resolved.Until.IsZero() {
		logger.Info("session until", zap.Time("until", resolved.Until))
	}
	if err := a.Launch(cmd.Context(), app.Startup{
		DurationMinutes: resolved.DurationMinutes,
		Start:           resolved.Start,
	}); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, shutdownSignals()...)
	defer signal.Stop(sigCh)

	// stop is closed on the first signal or quit request.
	stop := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal", zap.String("signal", sig.String()))
		case <-a.Done():
		}
		close(stop)
	}()

	switch opts.UI {
	case config.UIModeTUI:
		return runTUI(a, version, stop)
	case config.UIModeTray:
		t := tray.New(a, logger)
		go func() {
			<-stop
			t.Stop()
		}()
		t.Run()
		return nil
	default:
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-stop
			cancel()
		}()
		a.Wait(ctx)
		return nil
	}
}

func runTUI(a *app.App, version string, stop <-chan struct{}) error {
	model := ui.New(a, ui.Options{Version: version})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithoutSignalHandler())
	go func() {
		<-stop
		p.Quit()
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("terminal ui: %w", err)
	}
	return nil
}
