//go:build linux

package linux

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrPositionUnavailable is returned by pointers that cannot read the cursor.
var ErrPositionUnavailable = errors.New("pointer position cannot be read on this display server")

// Pointer is a command line tool able to place the cursor.
type Pointer interface {
	Position(ctx context.Context) (x, y int, err error)
	MoveTo(ctx context.Context, x, y int) error
	TapShift(ctx context.Context) error
	Name() string
}

// Xdotool drives the X11 pointer through xdotool.
type Xdotool struct{}

func (Xdotool) Name() string { return "xdotool" }

func (Xdotool) Position(ctx context.Context) (int, int, error) {
	out, err := runVerbose(ctx, "xdotool", "getmouselocation", "--shell")
	if err != nil {
		return 0, 0, err
	}
	return ParseShellLocation(out)
}

func (Xdotool) MoveTo(ctx context.Context, x, y int) error {
	_, err := runVerbose(ctx, "xdotool", "mousemove", "--", strconv.Itoa(x), strconv.Itoa(y))
	return err
}

func (Xdotool) TapShift(ctx context.Context) error {
	_, err := runVerbose(ctx, "xdotool", "key", "shift")
	return err
}

// Ydotool drives the pointer through the ydotoold uinput daemon. It works on
// Wayland but cannot report the cursor location.
type Ydotool struct{}

func (Ydotool) Name() string { return "ydotool" }

func (Ydotool) Position(context.Context) (int, int, error) {
	return 0, 0, ErrPositionUnavailable
}

func (Ydotool) MoveTo(ctx context.Context, x, y int) error {
	_, err := runVerbose(ctx, "ydotool", "mousemove", "--absolute", "-x", strconv.Itoa(x), "-y", strconv.Itoa(y))
	return err
}

// TapShift presses and releases left shift (evdev keycode 42).
func (Ydotool) TapShift(ctx context.Context) error {
	_, err := runVerbose(ctx, "ydotool", "key", "42:1", "42:0")
	return err
}

// ParseShellLocation parses the X= and Y= lines of
// "xdotool getmouselocation --shell".
func ParseShellLocation(out string) (int, int, error) {
	x, y := -1, -1
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		switch key {
		case "X":
			x = n
		case "Y":
			y = n
		}
	}
	if x < 0 || y < 0 {
		return 0, 0, fmt.Errorf("unexpected xdotool output %q", out)
	}
	return x, y, nil
}
