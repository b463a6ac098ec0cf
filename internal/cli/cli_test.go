package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stigoleg/nudge/internal/api"
	"github.com/stigoleg/nudge/internal/config"
	"github.com/stigoleg/nudge/internal/platform"
	"github.com/stigoleg/nudge/internal/session"
)

type fakeService struct {
	mu      sync.Mutex
	cfg     config.AppConfig
	state   session.State
	granted bool
}

func newFakeService(granted bool) *fakeService {
	return &fakeService{
		cfg:     config.Default(),
		state:   session.State{HasPermission: granted},
		granted: granted,
	}
}

func (f *fakeService) Config() config.AppConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cfg
}

func (f *fakeService) SetConfig(p config.Partial) (config.AppConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = f.cfg.Apply(p)
	return f.cfg, nil
}

func (f *fakeService) State() session.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeService) Start(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.granted {
		return false, nil
	}
	f.state.IsActive = true
	f.state.EndAt = time.Now().Add(time.Hour)
	f.state.NextMoveAt = time.Now().Add(40 * time.Second)
	return true, nil
}

func (f *fakeService) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.IsActive = false
	f.state.EndAt = time.Time{}
	f.state.NextMoveAt = time.Time{}
	return nil
}

func (f *fakeService) Toggle(ctx context.Context) (bool, error) {
	if f.State().IsActive {
		return false, f.Stop(ctx)
	}
	return f.Start(ctx)
}

func (f *fakeService) CheckPermission(context.Context) bool   { return f.granted }
func (f *fakeService) RequestPermission(context.Context) bool { return f.granted }
func (f *fakeService) OpenPermissionSettings(context.Context) {}
func (f *fakeService) Platform() platform.Info                { return platform.InfoFor("darwin") }
func (f *fakeService) Version() string                        { return "1.2.3" }
func (f *fakeService) Quit()                                  {}

func serve(t *testing.T, svc api.Service) string {
	t.Helper()
	srv := api.NewServer(svc, api.Options{})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})
	return ln.Addr().String()
}

// run executes the command tree with args and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("1.0.0")
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "nudge 1.0.0\n", out)

	out, err = run(t, "version", "--json")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "1.0.0", v["version"])

	out, err = run(t, "--version")
	require.NoError(t, err)
	assert.Equal(t, "nudge 1.0.0\n", out)
}

func TestStatusCommand(t *testing.T) {
	svc := newFakeService(true)
	addr := serve(t, svc)

	out, err := run(t, "status", "--listen", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "idle")
	assert.Contains(t, out, "1 hour")
	assert.NotContains(t, out, "Remaining")

	_, err = svc.Start(context.Background())
	require.NoError(t, err)

	out, err = run(t, "status", "--listen", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "Remaining")
	assert.Contains(t, out, "Next move")

	out, err = run(t, "status", "--json", "--listen", addr)
	require.NoError(t, err)
	var body struct {
		Config config.AppConfig `json:"config"`
		State  session.State    `json:"state"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.True(t, body.State.IsActive)
	assert.Equal(t, config.DefaultDurationMinutes, body.Config.DurationMinutes)
}

func TestSessionCommands(t *testing.T) {
	svc := newFakeService(true)
	addr := serve(t, svc)

	out, err := run(t, "start", "--listen", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "active")
	assert.True(t, svc.State().IsActive)

	out, err = run(t, "toggle", "--listen", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "idle")
	assert.False(t, svc.State().IsActive)

	_, err = run(t, "toggle", "--listen", addr)
	require.NoError(t, err)
	out, err = run(t, "stop", "--listen", addr)
	require.NoError(t, err)
	assert.Contains(t, out, "idle")
	assert.False(t, svc.State().IsActive)
}

func TestStartWithoutPermission(t *testing.T) {
	svc := newFakeService(false)
	addr := serve(t, svc)

	_, err := run(t, "start", "--listen", addr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission required")

	_, err = run(t, "stop", "--listen", addr)
	assert.NoError(t, err)
}

func TestClientErrors(t *testing.T) {
	t.Run("nothing listening", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		addr := ln.Addr().String()
		require.NoError(t, ln.Close())

		_, err = run(t, "status", "--listen", addr)
		require.Error(t, err)
		assert.True(t, errors.Is(err, api.ErrNotRunning))
		assert.Contains(t, err.Error(), "start it with `nudge`")
	})

	t.Run("api disabled", func(t *testing.T) {
		_, err := run(t, "toggle", "--listen", "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "disabled")
	})
}

func TestInvalidOptionsFailEarly(t *testing.T) {
	_, err := run(t, "--ui", "desktop")
	require.Error(t, err)
	var cfgErr *config.Error
	assert.ErrorAs(t, err, &cfgErr)

	_, err = run(t, "-d", "1h", "-c", "17:00")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "together")

	_, err = run(t, "extra-arg")
	assert.Error(t, err)
}

func TestRenderStatus(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	cfg := config.AppConfig{DurationMinutes: 0}

	out := renderStatus(cfg, session.State{IsActive: true, HasPermission: true}, now)
	assert.Contains(t, out, "unlimited")
	assert.NotContains(t, out, "Remaining")

	out = renderStatus(config.Default(), session.State{
		IsActive:      true,
		HasPermission: true,
		EndAt:         now.Add(90 * time.Second),
	}, now)
	assert.Contains(t, out, "1m30s")

	out = renderStatus(config.Default(), session.State{}, now)
	assert.Contains(t, out, "missing")
}

func TestFormatError(t *testing.T) {
	assert.Contains(t, FormatError(errors.New("boom")), "boom")
	assert.Contains(t, FormatError(errors.New("boom")), "Error:")
}
