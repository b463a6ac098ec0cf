//go:build darwin || linux

package platform

import (
	"context"

	"github.com/stigoleg/nudge/internal/util"
)

var hasCommand = util.HasCommand

// runCommand executes name under CommandTimeout and returns its trimmed
// combined output.
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	return util.Run(ctx, CommandTimeout, name, args...)
}
