//go:build linux

package linux

import (
	"context"

	"github.com/stigoleg/nudge/internal/util"
)

var hasCommand = util.HasCommand

// runVerbose executes a command bounded by the caller's context and returns
// the trimmed combined output.
func runVerbose(ctx context.Context, name string, args ...string) (string, error) {
	return util.Run(ctx, 0, name, args...)
}
