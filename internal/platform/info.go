package platform

import "runtime"

// Info describes what the running platform requires before input can be
// controlled.
type Info struct {
	Platform        Platform `json:"platform"`
	NeedsPermission bool     `json:"needsPermission"`
	PermissionName  string   `json:"permissionName"`
}

// CurrentInfo returns the Info of the OS the binary runs on.
func CurrentInfo() Info {
	return InfoFor(runtime.GOOS)
}

// InfoFor maps a GOOS value to its Info. It performs no I/O.
func InfoFor(goos string) Info {
	switch Platform(goos) {
	case Darwin:
		return Info{Platform: Darwin, NeedsPermission: true, PermissionName: "Accessibility"}
	case Windows:
		return Info{Platform: Windows}
	case Linux:
		return Info{Platform: Linux}
	default:
		return Info{Platform: Platform(goos)}
	}
}
