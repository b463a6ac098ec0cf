//go:build darwin

package platform

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// promptTimeout bounds how long the guidance dialog may stay open.
const promptTimeout = 2 * time.Minute

const positionScript = `
ObjC.import('CoreGraphics');
var p = $.CGEventGetLocation($.CGEventCreate(null));
Math.round(p.x) + "," + Math.round(p.y);
`

const moveScript = `
ObjC.import('CoreGraphics');

function loc() {
	var p = $.CGEventGetLocation($.CGEventCreate(null));
	return {x: p.x, y: p.y};
}

var ev = $.CGEventCreateMouseEvent(null, $.kCGEventMouseMoved, {x: %d, y: %d}, $.kCGMouseButtonLeft);
$.CGEventPost($.kCGHIDEventTap, ev);
delay(0.02);

var now = loc();
if (Math.abs(now.x - %d) > 0.5 || Math.abs(now.y - %d) > 0.5) {
	throw new Error("mouse movement appears blocked (Accessibility not granted)");
}
"ok";
`

const shiftTapScript = `
ObjC.import('CoreGraphics');

var shiftKeyDown = $.CGEventCreateKeyboardEvent(null, 0x38, true);
var shiftKeyUp = $.CGEventCreateKeyboardEvent(null, 0x38, false);

$.CGEventPost($.kCGHIDEventTap, shiftKeyDown);
delay(0.01);
$.CGEventPost($.kCGHIDEventTap, shiftKeyUp);
"ok";
`

const trustedScript = `
ObjC.import('ApplicationServices');
String($.AXIsProcessTrusted());
`

const trustedPromptScript = `
ObjC.import('ApplicationServices');
String($.AXIsProcessTrustedWithOptions($({AXTrustedCheckOptionPrompt: true})));
`

func runJXAScript(ctx context.Context, script string) (string, error) {
	return runCommand(ctx, "osascript", "-l", "JavaScript", "-e", script)
}

// darwinBackend drives the pointer through CoreGraphics events posted by osascript.
type darwinBackend struct {
	logger *zap.Logger
	warner fallbackWarner
}

// NewBackend creates the macOS backend.
func NewBackend(logger *zap.Logger) (Backend, error) {
	if !hasCommand("osascript") {
		return nil, fmt.Errorf("osascript not found in PATH: %w", ErrUnsupportedPlatform)
	}
	return &darwinBackend{logger: logger.Named("darwin")}, nil
}

func (b *darwinBackend) Position(ctx context.Context) (Position, error) {
	out, err := runJXAScript(ctx, positionScript)
	if err != nil {
		return Position{}, backendErr("position", err)
	}
	pos, err := parsePair(out, ",")
	if err != nil {
		return Position{}, backendErr("position", err)
	}
	return pos, nil
}

func (b *darwinBackend) SetPosition(ctx context.Context, x, y int) error {
	_, err := runJXAScript(ctx, fmt.Sprintf(moveScript, x, y, x, y))
	if err == nil {
		return nil
	}

	b.warner.warn(b.logger, "mouse move blocked; on macOS enable Accessibility for the app or terminal running nudge in System Settings, Privacy and Security, Accessibility", err)
	if _, ferr := runJXAScript(ctx, shiftTapScript); ferr != nil {
		b.logger.Warn("shift key fallback failed", zap.Error(ferr))
	} else {
		b.logger.Debug("shift key fallback sent")
	}
	return backendErr("set position", err)
}

// parsePair parses "x<sep>y".
func parsePair(s, sep string) (Position, error) {
	parts := strings.SplitN(strings.TrimSpace(s), sep, 2)
	if len(parts) != 2 {
		return Position{}, fmt.Errorf("unexpected position output %q", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return Position{}, fmt.Errorf("parse x from %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return Position{}, fmt.Errorf("parse y from %q: %w", s, err)
	}
	return Position{X: x, Y: y}, nil
}

type darwinAuthorizer struct {
	logger *zap.Logger
}

// NewAuthorizer returns the Accessibility authorizer.
func NewAuthorizer(logger *zap.Logger) Authorizer {
	return &darwinAuthorizer{logger: logger.Named("darwin")}
}

func (a *darwinAuthorizer) Trusted(ctx context.Context, prompt bool) (bool, error) {
	script := trustedScript
	if prompt {
		script = trustedPromptScript
	}
	out, err := runJXAScript(ctx, script)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "true", nil
}

func (a *darwinAuthorizer) OpenSettings(ctx context.Context) error {
	_, err := runCommand(ctx, "open", AccessibilitySettingsURL)
	return err
}

type darwinPrompter struct{}

// NewPrompter returns a Prompter backed by an AppleScript dialog.
func NewPrompter() Prompter {
	return darwinPrompter{}
}

func (darwinPrompter) Confirm(ctx context.Context, title, message, accept, dismiss string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, promptTimeout)
	defer cancel()

	script := fmt.Sprintf(
		`display dialog "%s" with title "%s" buttons {"%s", "%s"} default button "%s" with icon caution giving up after %d`,
		appleScriptEscape(message), appleScriptEscape(title),
		appleScriptEscape(dismiss), appleScriptEscape(accept), appleScriptEscape(accept),
		int(promptTimeout/time.Second),
	)
	out, err := exec.CommandContext(ctx, "osascript", "-e", script).Output()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("display dialog: %w", err)
	}
	return strings.Contains(string(out), "button returned:"+accept), nil
}

func appleScriptEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
