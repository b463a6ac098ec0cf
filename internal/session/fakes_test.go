package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/stigoleg/nudge/internal/clock"
	"github.com/stigoleg/nudge/internal/config"
	"github.com/stigoleg/nudge/internal/keepalive"
	"github.com/stigoleg/nudge/internal/platform"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

var errDiskFull = errors.New("disk full")

type memStore struct {
	mu     sync.Mutex
	cfg    config.AppConfig
	setErr error
	sets   int
}

func newMemStore(enabled bool, minutes int) *memStore {
	return &memStore{cfg: config.AppConfig{Enabled: enabled, DurationMinutes: minutes}}
}

func (s *memStore) Config() config.AppConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *memStore) SetConfig(p config.Partial) (config.AppConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.cfg, s.setErr
	}
	s.cfg = s.cfg.Apply(p)
	return s.cfg, nil
}

type countingBackend struct {
	mu    sync.Mutex
	moves int
}

func (b *countingBackend) Position(context.Context) (platform.Position, error) {
	return platform.Position{X: 100, Y: 100}, nil
}

func (b *countingBackend) SetPosition(context.Context, int, int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.moves++
	return nil
}

func (b *countingBackend) Moves() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.moves
}

type fakePermissions struct {
	mu       sync.Mutex
	needs    bool
	granted  bool
	watching bool
	onChange func(bool)
	prompts  chan struct{}
}

func newFakePermissions(needs, granted bool) *fakePermissions {
	return &fakePermissions{needs: needs, granted: granted, prompts: make(chan struct{}, 8)}
}

func (p *fakePermissions) NeedsPermission() bool { return p.needs }

func (p *fakePermissions) Init(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted
}

func (p *fakePermissions) PromptUserGuidance(context.Context) bool {
	p.prompts <- struct{}{}
	return false
}

func (p *fakePermissions) StartWatching() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.watching = true
}

func (p *fakePermissions) OnChange(fn func(bool)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChange = fn
}

// transition simulates the monitor observing a new grant.
func (p *fakePermissions) transition(granted bool) {
	p.mu.Lock()
	p.granted = granted
	fn := p.onChange
	p.mu.Unlock()
	fn(granted)
}

type fixture struct {
	clock     *clock.Fake
	store     *memStore
	backend   *countingBackend
	scheduler *keepalive.Scheduler
	perms     *fakePermissions
	ctrl      *Controller

	mu     sync.Mutex
	states []State
}

func newFixture(store *memStore, perms *fakePermissions) *fixture {
	clk := clock.NewFake(epoch)
	backend := &countingBackend{}
	cfg := keepalive.DefaultConfig()
	cfg.Clock = clk
	cfg.Rand = rand.New(rand.NewSource(7))
	sched := keepalive.New(backend, cfg)

	f := &fixture{
		clock:     clk,
		store:     store,
		backend:   backend,
		scheduler: sched,
		perms:     perms,
	}
	f.ctrl = New(Options{
		Store:       store,
		Runner:      sched,
		Permissions: perms,
		Clock:       clk,
	})
	f.ctrl.OnStateChange(func(s State) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.states = append(f.states, s)
	})
	return f
}

func (f *fixture) published() []State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]State(nil), f.states...)
}

func (f *fixture) close() {
	_ = f.ctrl.Close()
	_ = f.scheduler.Close()
}
