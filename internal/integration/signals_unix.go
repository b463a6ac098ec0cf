//go:build !windows

package integration

import (
	"os"
	"syscall"
)

// terminationSignals are the signals a running instance shuts down on.
func terminationSignals() []os.Signal {
	return []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP}
}
