//go:build linux

// Package linux finds a pointer tool for the running Linux session and
// explains how to install one when none is present.
package linux

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Session is the kind of graphical session the process runs in.
type Session string

const (
	SessionWayland Session = "wayland"
	SessionX11     Session = "x11"
	SessionUnknown Session = "unknown"
)

// Env is what detection reads. Zero fields fall back to the process
// environment and /etc/os-release.
type Env struct {
	Getenv    func(string) string
	OSRelease string
}

// Environment is the result of Detect.
type Environment struct {
	Session Session
	Xdotool bool
	Ydotool bool
	Distro  Distro
}

// Detect inspects the session and the installed tools.
func Detect(env Env) Environment {
	if env.Getenv == nil {
		env.Getenv = os.Getenv
	}
	if env.OSRelease == "" {
		env.OSRelease = "/etc/os-release"
	}
	return Environment{
		Session: detectSession(env.Getenv),
		Xdotool: hasCommand("xdotool"),
		Ydotool: hasCommand("ydotool"),
		Distro:  readDistro(env.OSRelease),
	}
}

// XDG_SESSION_TYPE wins when set; the display sockets are the fallback.
func detectSession(getenv func(string) string) Session {
	switch Session(strings.ToLower(getenv("XDG_SESSION_TYPE"))) {
	case SessionWayland:
		return SessionWayland
	case SessionX11:
		return SessionX11
	}
	if getenv("WAYLAND_DISPLAY") != "" {
		return SessionWayland
	}
	if getenv("DISPLAY") != "" {
		return SessionX11
	}
	return SessionUnknown
}

// Pointer returns the tool to drive, or nil when none is installed. Wayland
// prefers ydotool but XWayland still honours xdotool.
func (e Environment) Pointer() Pointer {
	order := []Pointer{Xdotool{}, Ydotool{}}
	if e.Session == SessionWayland {
		order = []Pointer{Ydotool{}, Xdotool{}}
	}
	for _, p := range order {
		if (p.Name() == "xdotool" && e.Xdotool) || (p.Name() == "ydotool" && e.Ydotool) {
			return p
		}
	}
	return nil
}

// neededTool is the tool to install for the session.
func (e Environment) neededTool() string {
	if e.Session == SessionWayland {
		return "ydotool"
	}
	return "xdotool"
}

// InstallHint tells the user how to get a pointer tool. It is empty when one
// is already installed.
func (e Environment) InstallHint() string {
	if e.Xdotool || e.Ydotool {
		return ""
	}
	tool := e.neededTool()
	hint := fmt.Sprintf("install %s to move the pointer on %s: %s", tool, e.Session, e.Distro.InstallCommand(tool))
	if tool == "ydotool" {
		hint += " (the ydotoold service must be running)"
	}
	return hint
}

// Distro identifies the distribution and its package manager.
type Distro struct {
	ID             string
	Like           []string
	PackageManager string
}

// InstallCommand returns the shell command that installs pkg.
func (d Distro) InstallCommand(pkg string) string {
	switch d.PackageManager {
	case "apt":
		return "sudo apt install " + pkg
	case "dnf", "yum", "zypper":
		return fmt.Sprintf("sudo %s install %s", d.PackageManager, pkg)
	case "pacman":
		return "sudo pacman -S " + pkg
	case "apk":
		return "sudo apk add " + pkg
	default:
		return "install the " + pkg + " package with your package manager"
	}
}

var packageManagers = []struct {
	manager string
	ids     []string
}{
	{"apt", []string{"debian", "ubuntu", "pop", "linuxmint", "elementary"}},
	{"dnf", []string{"fedora", "rhel", "centos", "rocky", "almalinux"}},
	{"pacman", []string{"arch", "manjaro", "endeavouros"}},
	{"zypper", []string{"opensuse", "opensuse-leap", "opensuse-tumbleweed", "suse", "sles"}},
	{"apk", []string{"alpine"}},
}

func readDistro(path string) Distro {
	f, err := os.Open(path)
	if err != nil {
		return Distro{ID: "unknown", PackageManager: probePackageManager()}
	}
	defer f.Close()
	return parseOSRelease(f)
}

// parseOSRelease reads the ID and ID_LIKE keys of an os-release file.
func parseOSRelease(r io.Reader) Distro {
	d := Distro{ID: "unknown"}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(sc.Text()), "=")
		if !ok || strings.HasPrefix(key, "#") {
			continue
		}
		value = strings.ToLower(strings.Trim(value, `"'`))
		switch key {
		case "ID":
			if value != "" {
				d.ID = value
			}
		case "ID_LIKE":
			d.Like = strings.Fields(value)
		}
	}
	d.PackageManager = packageManagerFor(d)
	return d
}

func packageManagerFor(d Distro) string {
	for _, id := range append([]string{d.ID}, d.Like...) {
		for _, pm := range packageManagers {
			for _, known := range pm.ids {
				if id != known {
					continue
				}
				if pm.manager == "dnf" && !hasCommand("dnf") && hasCommand("yum") {
					return "yum"
				}
				return pm.manager
			}
		}
	}
	return probePackageManager()
}

func probePackageManager() string {
	for _, m := range []string{"apt", "dnf", "yum", "pacman", "zypper", "apk"} {
		if hasCommand(m) {
			return m
		}
	}
	return "unknown"
}
