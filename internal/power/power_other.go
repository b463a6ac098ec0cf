//go:build !linux

package power

import "go.uber.org/zap"

// New returns the gap detector.
func New(logger *zap.Logger) Watcher {
	return NewGapDetector(logger)
}
