package main

import (
	"os"
	"runtime"

	"github.com/stigoleg/nudge/internal/cli"
)

// appVersion is overridden at build time with -ldflags "-X main.appVersion=...".
var appVersion = "0.1.0"

func init() {
	// The tray event loop must run on the main OS thread.
	runtime.LockOSThread()
}

func main() {
	os.Exit(cli.Execute(appVersion))
}
