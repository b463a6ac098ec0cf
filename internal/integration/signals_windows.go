//go:build windows

package integration

import (
	"os"
	"syscall"
)

// terminationSignals are the signals a running instance shuts down on.
// Windows cannot deliver them to another process, so the cleanup tests
// skip there.
func terminationSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM}
}
