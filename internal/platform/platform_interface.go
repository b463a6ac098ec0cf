package platform

import (
	"context"
	"errors"
	"fmt"
)

// Position is an absolute pointer location in screen pixels.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Backend reads and writes the pointer position through the OS.
type Backend interface {
	// Position returns the current pointer location.
	Position(ctx context.Context) (Position, error)

	// SetPosition moves the pointer. When the move is blocked, implementations
	// tap a modifier key instead so that activity is still registered, and
	// still report the original failure.
	SetPosition(ctx context.Context, x, y int) error
}

// Authorizer queries the OS authorization for synthetic input.
type Authorizer interface {
	// Trusted reports whether the process may control input. With prompt set,
	// platforms that support it show their consent dialog as a side effect.
	Trusted(ctx context.Context, prompt bool) (bool, error)

	// OpenSettings navigates to the OS page where the grant is managed.
	OpenSettings(ctx context.Context) error
}

// Prompter shows a two-button question to the user.
type Prompter interface {
	// Confirm returns true when the accept button was chosen.
	Confirm(ctx context.Context, title, message, accept, dismiss string) (bool, error)
}

// ErrUnsupportedPlatform is returned when no backend exists for the running OS.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// BackendError reports a failed OS call.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func backendErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Op: op, Err: err}
}
