// Package power reports when the machine wakes up from sleep.
package power

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Watcher calls onResume every time the system resumes, until ctx is done.
type Watcher interface {
	Run(ctx context.Context, onResume func()) error
}

const (
	// GapInterval is how often the gap detector samples the clocks.
	GapInterval = 5 * time.Second
	// GapThreshold is how far wall time must outrun monotonic time between
	// two samples to count as a sleep.
	GapThreshold = 30 * time.Second
)

// reading is one sample of both clocks. mono only advances while the
// machine is awake.
type reading struct {
	wall time.Time
	mono time.Duration
}

// GapDetector infers sleep from the difference between wall-clock and
// monotonic progress. It works on every platform.
type GapDetector struct {
	interval  time.Duration
	threshold time.Duration
	logger    *zap.Logger

	read func() reading
	tick func(time.Duration) (<-chan time.Time, func())
}

// NewGapDetector creates a GapDetector with the default interval and threshold.
func NewGapDetector(logger *zap.Logger) *GapDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := time.Now()
	return &GapDetector{
		interval:  GapInterval,
		threshold: GapThreshold,
		logger:    logger.Named("power"),
		read: func() reading {
			return reading{wall: time.Now().Round(0), mono: time.Since(base)}
		},
		tick: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

func (g *GapDetector) Run(ctx context.Context, onResume func()) error {
	ticks, stop := g.tick(g.interval)
	defer stop()

	prev := g.read()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticks:
			cur := g.read()
			wallDelta := cur.wall.Sub(prev.wall)
			monoDelta := cur.mono - prev.mono
			prev = cur
			if slept(wallDelta, monoDelta, g.threshold) {
				g.logger.Info("resume detected",
					zap.Duration("wall", wallDelta),
					zap.Duration("mono", monoDelta))
				onResume()
			}
		}
	}
}

// slept reports whether wall time advanced more than threshold beyond
// monotonic time.
func slept(wallDelta, monoDelta, threshold time.Duration) bool {
	return wallDelta-monoDelta > threshold
}
