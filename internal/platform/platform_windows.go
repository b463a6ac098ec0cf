//go:build windows

package platform

import (
	"context"
	"errors"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

const (
	vkShift         = 0x10
	keyeventfKeyUp  = 0x0002
	errNoErrorState = windows.Errno(0)
)

var (
	moduser32        = windows.NewLazySystemDLL("user32.dll")
	procGetCursorPos = moduser32.NewProc("GetCursorPos")
	procSetCursorPos = moduser32.NewProc("SetCursorPos")
	procKeybdEvent   = moduser32.NewProc("keybd_event")
)

type point struct {
	X, Y int32
}

// windowsBackend calls user32 directly, so no external process or timeout is
// involved.
type windowsBackend struct {
	logger *zap.Logger
	warner fallbackWarner
}

// NewBackend creates the Windows backend.
func NewBackend(logger *zap.Logger) (Backend, error) {
	if err := moduser32.Load(); err != nil {
		return nil, errors.Join(ErrUnsupportedPlatform, err)
	}
	return &windowsBackend{logger: logger.Named("windows")}, nil
}

func (b *windowsBackend) Position(ctx context.Context) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, backendErr("position", err)
	}
	var pt point
	r, _, err := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	if r == 0 {
		return Position{}, backendErr("position", callErr(err))
	}
	return Position{X: int(pt.X), Y: int(pt.Y)}, nil
}

func (b *windowsBackend) SetPosition(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return backendErr("set position", err)
	}
	r, _, err := procSetCursorPos.Call(uintptr(int32(x)), uintptr(int32(y)))
	if r != 0 {
		return nil
	}

	moveErr := callErr(err)
	b.warner.warn(b.logger, "SetCursorPos failed, tapping shift instead", moveErr)
	if ferr := tapShift(); ferr != nil {
		b.logger.Warn("shift key fallback failed", zap.Error(ferr))
	}
	return backendErr("set position", moveErr)
}

func tapShift() error {
	if err := procKeybdEvent.Find(); err != nil {
		return err
	}
	// keybd_event has no return value.
	procKeybdEvent.Call(vkShift, 0, 0, 0)
	procKeybdEvent.Call(vkShift, 0, keyeventfKeyUp, 0)
	return nil
}

func callErr(err error) error {
	if err == nil || errors.Is(err, errNoErrorState) {
		return errors.New("call failed without error code")
	}
	return err
}

// NewAuthorizer returns an Authorizer for a platform without a permission model.
func NewAuthorizer(*zap.Logger) Authorizer {
	return openAuthorizer{}
}

// NewPrompter returns a Prompter that never shows anything.
func NewPrompter() Prompter {
	return silentPrompter{}
}
