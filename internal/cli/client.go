package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/stigoleg/nudge/internal/api"
	"github.com/stigoleg/nudge/internal/config"
	"github.com/stigoleg/nudge/internal/session"
)

// clientTimeout bounds one request to the running instance.
const clientTimeout = 15 * time.Second

var (
	labelStyle  = lipgloss.NewStyle().Width(12).Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"})
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"})
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"})
)

func newClient(opts *config.Options) (*api.Client, error) {
	if opts.Listen == "" {
		return nil, errors.New(`the command API is disabled (--listen "")`)
	}
	return api.NewClient(opts.Listen, opts.Token), nil
}

// explain adds a hint to ErrNotRunning.
func explain(err error) error {
	if errors.Is(err, api.ErrNotRunning) {
		return fmt.Errorf("%w; start it with `nudge`", err)
	}
	return err
}

func newStatusCmd(opts *config.Options) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the session of the running instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
			defer cancel()

			st, err := c.State(ctx)
			if err != nil {
				return explain(err)
			}
			cfg, err := c.Config(ctx)
			if err != nil {
				return explain(err)
			}
			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), struct {
					Config config.AppConfig `json:"config"`
					State  session.State    `json:"state"`
				}{cfg, st})
			}
			_, err = io.WriteString(cmd.OutOrStdout(), renderStatus(cfg, st, time.Now()))
			return err
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	return cmd
}

// newCommandCmd builds start, stop or toggle.
func newCommandCmd(opts *config.Options, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient(opts)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), clientTimeout)
			defer cancel()

			var res api.CommandResult
			switch name {
			case "start":
				res, err = c.Start(ctx)
			case "stop":
				res, err = c.Stop(ctx)
			default:
				res, err = c.Toggle(ctx)
			}
			if err != nil {
				return explain(err)
			}
			if name != "stop" && !res.Active && !res.State.HasPermission {
				return errors.New("permission required: grant access in the system settings, then try again")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), statusWord(res.State))
			return err
		},
	}
}

func statusWord(st session.State) string {
	if st.IsActive {
		return activeStyle.Render("active")
	}
	return idleStyle.Render("idle")
}

func renderStatus(cfg config.AppConfig, st session.State, now time.Time) string {
	var b strings.Builder
	line := func(label, value string) {
		b.WriteString(labelStyle.Render(label) + value + "\n")
	}

	line("Status", statusWord(st))
	if !st.HasPermission {
		line("Permission", "missing")
	}
	line("Duration", config.FormatDuration(cfg.DurationMinutes))
	if st.IsActive {
		if st.Bounded() {
			left := st.EndAt.Sub(now).Round(time.Second)
			if left < 0 {
				left = 0
			}
			line("Remaining", left.String())
			line("Ends at", st.EndAt.Local().Format("15:04:05"))
		}
		if !st.NextMoveAt.IsZero() {
			line("Next move", st.NextMoveAt.Local().Format("15:04:05"))
		}
	}
	if !st.LastMoveAt.IsZero() {
		line("Last move", st.LastMoveAt.Local().Format("15:04:05"))
	}
	return b.String()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
