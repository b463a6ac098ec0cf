//go:build !darwin

package platform

import "context"

// openAuthorizer is used where synthetic input needs no grant.
type openAuthorizer struct{}

func (openAuthorizer) Trusted(context.Context, bool) (bool, error) {
	return true, nil
}

func (openAuthorizer) OpenSettings(context.Context) error {
	return nil
}

type silentPrompter struct{}

func (silentPrompter) Confirm(context.Context, string, string, string, string) (bool, error) {
	return false, nil
}
