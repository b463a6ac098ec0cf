package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrShutdownTimeout is reported when a teardown step is still running at the
// deadline.
var ErrShutdownTimeout = errors.New("shutdown timed out")

type shutdownStep struct {
	name string
	fn   func() error
}

// shutdown tears an App down once: steps run last-added first, one at a time,
// under a shared deadline.
type shutdown struct {
	mu      sync.Mutex
	steps   []shutdownStep
	timeout time.Duration
	logger  *zap.Logger

	once sync.Once
	err  error
}

func newShutdown(timeout time.Duration, logger *zap.Logger) *shutdown {
	return &shutdown{timeout: timeout, logger: logger.Named("shutdown")}
}

// add registers a step. Steps are added in start order.
func (s *shutdown) add(name string, fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps = append(s.steps, shutdownStep{name: name, fn: fn})
}

// run executes the steps on the first call and returns the same result on
// every call.
func (s *shutdown) run() error {
	s.once.Do(func() { s.err = s.runSteps() })
	return s.err
}

type stepResult struct {
	name string
	err  error
}

func (s *shutdown) runSteps() error {
	s.mu.Lock()
	steps := append([]shutdownStep(nil), s.steps...)
	s.mu.Unlock()

	// Buffered so that a step finishing after the deadline does not block.
	results := make(chan stepResult, len(steps))
	go func() {
		defer close(results)
		for i := len(steps) - 1; i >= 0; i-- {
			results <- stepResult{name: steps[i].name, err: callStep(steps[i])}
		}
	}()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	var errs []error
	pending := len(steps) - 1
	for {
		select {
		case r, ok := <-results:
			if !ok {
				return errors.Join(errs...)
			}
			pending--
			if r.err != nil {
				s.logger.Warn("step failed", zap.String("step", r.name), zap.Error(r.err))
				errs = append(errs, fmt.Errorf("%s: %w", r.name, r.err))
				continue
			}
			s.logger.Debug("step done", zap.String("step", r.name))
		case <-timer.C:
			stuck := steps[pending].name
			s.logger.Error("shutdown deadline reached", zap.String("step", stuck), zap.Duration("timeout", s.timeout))
			errs = append(errs, fmt.Errorf("%w: %s still running after %s", ErrShutdownTimeout, stuck, s.timeout))
			return errors.Join(errs...)
		}
	}
}

func callStep(st shutdownStep) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return st.fn()
}
