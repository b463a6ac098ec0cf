// Package keepalive schedules the periodic pointer nudges that keep the
// session from being reported idle.
package keepalive

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/stigoleg/nudge/internal/clock"
	"github.com/stigoleg/nudge/internal/platform"
)

// Health represents the runtime health of pointer simulation.
type Health int

const (
	HealthUnknown Health = iota
	HealthOK
	HealthFailed
)

func (h Health) String() string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Config tunes a Scheduler. Zero fields fall back to DefaultConfig.
type Config struct {
	MinDelay    time.Duration
	MaxDelay    time.Duration
	NudgePixels int

	Clock  clock.Clock
	Rand   *rand.Rand
	Logger *zap.Logger
}

// DefaultConfig returns the reference jitter window of 30 to 90 seconds.
func DefaultConfig() Config {
	return Config{
		MinDelay:    30 * time.Second,
		MaxDelay:    90 * time.Second,
		NudgePixels: 1,
	}
}

// State is a snapshot of the scheduler. Zero times mean unset.
type State struct {
	Running    bool
	NextMoveAt time.Time
	LastMoveAt time.Time
}

// CountdownSeconds returns the whole seconds until the next move, rounded up.
// It is zero when the scheduler is stopped or nothing is scheduled.
func (s State) CountdownSeconds(now time.Time) int {
	if !s.Running || s.NextMoveAt.IsZero() {
		return 0
	}
	remaining := s.NextMoveAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(float64(remaining.Milliseconds()) / 1000))
}

// Scheduler nudges the pointer at randomized intervals while running.
//
// A move that is already executing when Stop returns is allowed to finish
// both writes, but it does not schedule another move.
type Scheduler struct {
	backend platform.Backend
	cfg     Config
	clock   clock.Clock
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	rnd        *rand.Rand
	running    bool
	gen        uint64
	timer      clock.Timer
	nextMoveAt time.Time
	lastMoveAt time.Time

	// notifyMu keeps observer calls in transition order.
	notifyMu sync.Mutex
	obsMu    sync.Mutex
	observer func(State)

	// consecutive failed moves
	failCount int64
}

// New creates a stopped Scheduler.
func New(backend platform.Backend, cfg Config) *Scheduler {
	def := DefaultConfig()
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = def.MinDelay
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay
	}
	if cfg.NudgePixels <= 0 {
		cfg.NudgePixels = def.NudgePixels
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		backend: backend,
		cfg:     cfg,
		clock:   cfg.Clock,
		rnd:     cfg.Rand,
		logger:  cfg.Logger.Named("scheduler"),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// OnStateChange registers the single observer, replacing any previous one.
func (s *Scheduler) OnStateChange(fn func(State)) {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()
	s.observer = fn
}

// Start begins scheduling moves. It is a no-op when already running.
func (s *Scheduler) Start() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.gen++
	s.scheduleLocked()
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("started", zap.Time("next_move_at", st.NextMoveAt))
	s.emit(st)
}

// Stop cancels the pending move. It is a no-op when already stopped.
func (s *Scheduler) Stop() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.nextMoveAt = time.Time{}
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("stopped")
	s.emit(st)
}

// Close stops the scheduler and aborts any backend call in flight.
func (s *Scheduler) Close() error {
	s.Stop()
	s.cancel()
	return nil
}

// IsRunning reports whether moves are being scheduled.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// State returns the current snapshot.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// CountdownSeconds returns the seconds until the next move.
func (s *Scheduler) CountdownSeconds() int {
	return s.State().CountdownSeconds(s.clock.Now())
}

// Health reports whether the most recent moves reached the OS.
func (s *Scheduler) Health() Health {
	if atomic.LoadInt64(&s.failCount) > 0 {
		return HealthFailed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastMoveAt.IsZero() {
		return HealthUnknown
	}
	return HealthOK
}

func (s *Scheduler) snapshotLocked() State {
	return State{
		Running:    s.running,
		NextMoveAt: s.nextMoveAt,
		LastMoveAt: s.lastMoveAt,
	}
}

// randomDelayLocked draws a delay uniformly from [MinDelay, MaxDelay] at
// millisecond granularity.
func (s *Scheduler) randomDelayLocked() time.Duration {
	minMS := s.cfg.MinDelay.Milliseconds()
	span := s.cfg.MaxDelay.Milliseconds() - minMS
	if span <= 0 {
		return s.cfg.MinDelay
	}
	return time.Duration(minMS+s.rnd.Int63n(span+1)) * time.Millisecond
}

func (s *Scheduler) scheduleLocked() {
	delay := s.randomDelayLocked()
	s.nextMoveAt = s.clock.Now().Add(delay)
	gen := s.gen
	s.timer = s.clock.AfterFunc(delay, func() {
		s.fire(gen)
	})
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	dir := randomDirection(s.rnd)
	s.mu.Unlock()

	moved := s.nudge(dir)

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if !s.running || gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug("stopped during move, not rescheduling")
		return
	}
	if moved {
		s.lastMoveAt = s.clock.Now()
		st := s.snapshotLocked()
		s.mu.Unlock()
		s.emit(st)
		s.mu.Lock()
	}
	s.scheduleLocked()
	st := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(st)
}

// nudge moves the pointer one step in dir and back. Backend failures are
// logged and reported through the return value only.
func (s *Scheduler) nudge(dir Direction) bool {
	origin, err := s.backend.Position(s.ctx)
	if err != nil {
		s.logger.Warn("read position failed, using default", zap.Error(err))
		origin = platform.DefaultPosition
	}

	target := dir.Offset(origin, s.cfg.NudgePixels)
	if err := s.backend.SetPosition(s.ctx, target.X, target.Y); err != nil {
		s.recordFailure(err)
		return false
	}
	if err := s.backend.SetPosition(s.ctx, origin.X, origin.Y); err != nil {
		s.recordFailure(err)
		return false
	}

	atomic.StoreInt64(&s.failCount, 0)
	s.logger.Debug("moved",
		zap.Stringer("direction", dir),
		zap.Int("x", origin.X),
		zap.Int("y", origin.Y),
	)
	return true
}

func (s *Scheduler) recordFailure(err error) {
	n := atomic.AddInt64(&s.failCount, 1)
	s.logger.Warn("move failed", zap.Error(err), zap.Int64("consecutive_failures", n))
}

func (s *Scheduler) emit(st State) {
	s.obsMu.Lock()
	fn := s.observer
	s.obsMu.Unlock()
	if fn != nil {
		fn(st)
	}
}
