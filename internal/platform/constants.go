package platform

import "time"

const (
	// CommandTimeout bounds every external utility invocation.
	CommandTimeout = 3 * time.Second

	// fallbackWarnEvery rate-limits the warning logged when moves are blocked.
	fallbackWarnEvery = 60 * time.Second
)

// DefaultPosition substitutes an unreadable pointer position.
var DefaultPosition = Position{X: 500, Y: 500}

// Platform identifies the running OS.
type Platform string

const (
	Darwin  Platform = "darwin"
	Windows Platform = "windows"
	Linux   Platform = "linux"
)

// AccessibilitySettingsURL opens the Accessibility privacy pane on macOS.
const AccessibilitySettingsURL = "x-apple.systempreferences:com.apple.preference.security?Privacy_Accessibility"
