// Package cli builds the nudge command tree.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/stigoleg/nudge/internal/config"
)

var errorStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF0000", Dark: "#FF4040"}).Bold(true)

// FormatError renders err for the terminal.
func FormatError(err error) string {
	return errorStyle.Render("Error:") + " " + err.Error()
}

// Execute runs the command tree and returns the process exit code.
func Execute(version string) int {
	root := NewRootCmd(version)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, FormatError(err))
		return 1
	}
	return 0
}

// NewRootCmd returns the nudge command with every sub-command attached.
func NewRootCmd(version string) *cobra.Command {
	opts := config.DefaultOptions()

	root := &cobra.Command{
		Use:   "nudge",
		Short: "Keep your presence status active by nudging the pointer",
		Long: `nudge moves the mouse pointer by one pixel and back at random intervals
so that the OS and presence-tracking apps do not mark you as idle.

Without a sub-command nudge runs in the foreground with a terminal UI,
a tray icon or headless, and serves a local command API that the
status, start, stop and toggle sub-commands talk to.`,
		Example: `  nudge                  # interactive terminal UI
  nudge -d 2h30m         # run a session for 2 hours and 30 minutes
  nudge -c 17:30         # run a session until 17:30
  nudge --ui tray        # tray icon instead of the terminal UI
  nudge toggle           # start or stop the session of a running instance`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runService(cmd, opts, version)
		},
	}
	root.SetVersionTemplate("nudge {{.Version}}\n")

	opts.Register(root.Flags())
	opts.RegisterAPI(root.PersistentFlags())

	root.AddCommand(
		newStatusCmd(&opts),
		newCommandCmd(&opts, "start", "Start a session in the running instance"),
		newCommandCmd(&opts, "stop", "Stop the session of the running instance"),
		newCommandCmd(&opts, "toggle", "Start or stop the session of the running instance"),
		newVersionCmd(version),
	)
	return root
}

func newVersionCmd(version string) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printVersion(cmd.OutOrStdout(), version, jsonOutput)
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")
	return cmd
}

func printVersion(w io.Writer, version string, asJSON bool) error {
	if asJSON {
		return writeJSON(w, map[string]string{"version": version})
	}
	_, err := fmt.Fprintf(w, "nudge %s\n", version)
	return err
}
