package integration

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stigoleg/nudge/internal/app"
	"github.com/stigoleg/nudge/internal/keepalive"
	"github.com/stigoleg/nudge/internal/platform"
)

// recordingBackend is a pointer that remembers every position it was sent to.
type recordingBackend struct {
	mu    sync.Mutex
	pos   platform.Position
	trail []platform.Position
}

func newRecordingBackend() *recordingBackend {
	return &recordingBackend{pos: platform.Position{X: 400, Y: 300}}
}

func (b *recordingBackend) Position(context.Context) (platform.Position, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pos, nil
}

func (b *recordingBackend) SetPosition(_ context.Context, x, y int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pos = platform.Position{X: x, Y: y}
	b.trail = append(b.trail, b.pos)
	return nil
}

func (b *recordingBackend) Trail() []platform.Position {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]platform.Position(nil), b.trail...)
}

// grantingAuthorizer reports whatever granted holds.
type grantingAuthorizer struct {
	mu      sync.Mutex
	granted bool
	opened  int
}

func (a *grantingAuthorizer) Trusted(context.Context, bool) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.granted, nil
}

func (a *grantingAuthorizer) OpenSettings(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.opened++
	return nil
}

func (a *grantingAuthorizer) grant() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.granted = true
}

// decliningPrompter dismisses every dialog.
type decliningPrompter struct{}

func (decliningPrompter) Confirm(context.Context, string, string, string, string) (bool, error) {
	return false, nil
}

// idlePower never reports a resume.
type idlePower struct{}

func (idlePower) Run(ctx context.Context, _ func()) error {
	<-ctx.Done()
	return nil
}

// fastScheduler nudges every few milliseconds.
func fastScheduler() keepalive.Config {
	return keepalive.Config{MinDelay: 5 * time.Millisecond, MaxDelay: 15 * time.Millisecond, NudgePixels: 1}
}

// freeAddr returns a loopback address nothing is listening on.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

type instanceOptions struct {
	configPath string
	listen     string
	info       platform.Info
	backend    platform.Backend
	auth       platform.Authorizer
}

func newInstance(t *testing.T, o instanceOptions) *app.App {
	t.Helper()
	if o.info.Platform == "" {
		o.info = platform.InfoFor("linux")
	}
	a, err := app.New(app.Options{
		Version:    "0.0.0-test",
		ConfigPath: o.configPath,
		Listen:     o.listen,
		Platform: app.Platform{
			Info:       &o.info,
			Backend:    o.backend,
			Authorizer: o.auth,
			Prompter:   decliningPrompter{},
		},
		Power:     idlePower{},
		Scheduler: fastScheduler(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}
