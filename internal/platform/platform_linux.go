//go:build linux

package platform

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/stigoleg/nudge/internal/platform/linux"
)

// linuxBackend delegates to xdotool on X11 or ydotool on Wayland.
type linuxBackend struct {
	pointer linux.Pointer
	logger  *zap.Logger
	warner  fallbackWarner
}

// NewBackend creates the Linux backend. A missing pointer tool is not fatal:
// the backend is returned and every call fails with an install hint.
func NewBackend(logger *zap.Logger) (Backend, error) {
	logger = logger.Named("linux")
	env := linux.Detect(linux.Env{})
	pointer := env.Pointer()
	session := zap.String("session", string(env.Session))

	if pointer == nil {
		logger.Warn("no pointer tool found", session, zap.String("distro", env.Distro.ID), zap.String("hint", env.InstallHint()))
	} else {
		logger.Info("pointer tool selected", zap.String("tool", pointer.Name()), session)
	}

	return &linuxBackend{pointer: pointer, logger: logger}, nil
}

var errNoPointerTool = errors.New("neither xdotool nor ydotool is installed")

func (b *linuxBackend) Position(ctx context.Context) (Position, error) {
	if b.pointer == nil {
		return Position{}, backendErr("position", errNoPointerTool)
	}

	ctx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()

	x, y, err := b.pointer.Position(ctx)
	if err != nil {
		return Position{}, backendErr("position", err)
	}
	return Position{X: x, Y: y}, nil
}

func (b *linuxBackend) SetPosition(ctx context.Context, x, y int) error {
	if b.pointer == nil {
		return backendErr("set position", errNoPointerTool)
	}

	moveCtx, cancel := context.WithTimeout(ctx, CommandTimeout)
	err := b.pointer.MoveTo(moveCtx, x, y)
	cancel()
	if err == nil {
		return nil
	}

	b.warner.warn(b.logger, fmt.Sprintf("%s move failed, tapping shift instead", b.pointer.Name()), err)

	tapCtx, cancel := context.WithTimeout(ctx, CommandTimeout)
	defer cancel()
	if ferr := b.pointer.TapShift(tapCtx); ferr != nil {
		b.logger.Warn("shift key fallback failed", zap.Error(ferr))
	}
	return backendErr("set position", err)
}

// NewAuthorizer returns an Authorizer for a platform without a permission model.
func NewAuthorizer(*zap.Logger) Authorizer {
	return openAuthorizer{}
}

// NewPrompter returns a Prompter that never shows anything.
func NewPrompter() Prompter {
	return silentPrompter{}
}
