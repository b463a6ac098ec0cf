//go:build !darwin && !windows && !linux

package platform

import "go.uber.org/zap"

// NewBackend reports that the running OS has no backend.
func NewBackend(*zap.Logger) (Backend, error) {
	return nil, ErrUnsupportedPlatform
}

// NewAuthorizer returns an Authorizer for a platform without a permission model.
func NewAuthorizer(*zap.Logger) Authorizer {
	return openAuthorizer{}
}

// NewPrompter returns a Prompter that never shows anything.
func NewPrompter() Prompter {
	return silentPrompter{}
}
