//go:build linux

package power

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	logindInterface = "org.freedesktop.login1.Manager"
	logindMember    = "PrepareForSleep"
)

// Logind listens for the PrepareForSleep signal of systemd-logind.
type Logind struct {
	conn   *dbus.Conn
	logger *zap.Logger
}

// NewLogind connects to the system bus.
func NewLogind(logger *zap.Logger) (*Logind, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	return &Logind{conn: conn, logger: logger.Named("power")}, nil
}

// Run subscribes to PrepareForSleep and calls onResume when it reports false.
// The bus connection is closed when Run returns.
func (l *Logind) Run(ctx context.Context, onResume func()) error {
	defer l.conn.Close()

	if err := l.conn.AddMatchSignal(
		dbus.WithMatchInterface(logindInterface),
		dbus.WithMatchMember(logindMember),
	); err != nil {
		return fmt.Errorf("add match %s.%s: %w", logindInterface, logindMember, err)
	}

	signals := make(chan *dbus.Signal, 8)
	l.conn.Signal(signals)
	defer l.conn.RemoveSignal(signals)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("system bus closed")
			}
			if sig.Name != logindInterface+"."+logindMember || len(sig.Body) != 1 {
				continue
			}
			sleeping, ok := sig.Body[0].(bool)
			if !ok {
				continue
			}
			if sleeping {
				l.logger.Info("system going to sleep")
				continue
			}
			l.logger.Info("system resumed")
			onResume()
		}
	}
}

// New returns the logind watcher, or the gap detector when the system bus
// is unavailable.
func New(logger *zap.Logger) Watcher {
	l, err := NewLogind(logger)
	if err != nil {
		if logger != nil {
			logger.Info("logind unavailable, using clock gap detection", zap.Error(err))
		}
		return NewGapDetector(logger)
	}
	return l
}
