package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/stigoleg/nudge/internal/config"
)

const progressWidth = 20

// gradientColors run from purple to green across the progress bar.
var gradientColors = []string{
	"#7D56F4", "#7857F4", "#7359F5", "#6E5AF5", "#695CF6",
	"#645DF6", "#5F5FF7", "#5A60F7", "#5562F8", "#5063F8",
	"#4B65F9", "#4666F9", "#4168FA", "#3C69FA", "#376BFB",
	"#326CFB", "#2D6EFC", "#286FFC", "#2371FD", "#1E72FD",
	"#1974FE", "#1475FE", "#0F77FF", "#0A78FF", "#057AFF",
	"#007BFF", "#007DFA", "#007FF5", "#0081F0", "#0083EB",
	"#0085E6", "#0087E1", "#0089DC", "#008BD7", "#008DD2",
	"#008FCD", "#0091C8", "#0093C3", "#0095BE", "#0097B9",
	"#0099B4", "#009BAF", "#009DAA", "#009FA5", "#00A1A0",
	"#00A39B", "#00A596", "#00A791", "#00A98C", "#00AB87",
	"#00AD82", "#00AF7D", "#00B178", "#00B373", "#00B56E",
	"#00B769", "#00B964", "#00BB5F", "#00BD5A", "#00BF55",
	"#43BF6D",
}

// View renders the current state of the model to a string.
func View(m Model) string {
	var b strings.Builder

	title := Current.Title.Render("nudge")
	if m.version != "" {
		title += Current.Version.Render("v" + m.version)
	}
	b.WriteString(title)
	b.WriteString("\n\n")

	row(&b, "Status", statusText(m))
	if m.info.NeedsPermission {
		row(&b, "Permission", permissionText(m))
	}
	row(&b, "Duration", Current.Value.Render(config.FormatDuration(m.cfg.DurationMinutes)))

	if m.state.IsActive {
		if m.state.Bounded() {
			remaining := m.Remaining()
			row(&b, "Remaining", Current.Countdown.Render(formatClock(remaining)))
			b.WriteString(Current.ProgressBarContainer.Render(progressBar(progress(remaining, m.cfg.DurationMinutes))))
			b.WriteString("\n")
		}
		row(&b, "Next move", Current.Value.Render(fmt.Sprintf("in %ds", m.Countdown())))
	}
	row(&b, "Last move", Current.Value.Render(lastMoveText(m)))

	if m.notice != "" {
		b.WriteString("\n" + Current.Notice.Render(m.notice))
	}
	if m.ErrorMessage != "" {
		b.WriteString("\n" + Current.Error.Render(m.ErrorMessage))
	}

	keys := m.keys.ForSession(m.state.IsActive, m.info.NeedsPermission, m.state.HasPermission)
	b.WriteString("\n\n" + Current.Help.Render(m.help.View(keys)))
	return b.String()
}

func row(b *strings.Builder, label, value string) {
	b.WriteString(Current.Label.Render(label+":") + value + "\n")
}

func statusText(m Model) string {
	if m.state.IsActive {
		return Current.ActiveStatus.Render("Active")
	}
	return Current.InactiveStatus.Render("Idle")
}

func permissionText(m Model) string {
	if m.state.HasPermission {
		return Current.ActiveStatus.Render("Granted")
	}
	return Current.Error.UnsetPadding().Render(m.info.PermissionName + " required")
}

func lastMoveText(m Model) string {
	if m.state.LastMoveAt.IsZero() {
		return "never"
	}
	return m.state.LastMoveAt.Local().Format("15:04:05")
}

// formatClock renders d as h:mm:ss, or m:ss under an hour.
func formatClock(d time.Duration) string {
	secs := int(d.Round(time.Second) / time.Second)
	h, mins, s := secs/3600, secs/60%60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%d:%02d", mins, s)
}

// progress is the elapsed fraction of a session of the given length.
func progress(remaining time.Duration, minutes int) float64 {
	total := time.Duration(minutes) * time.Minute
	if total <= 0 {
		return 0
	}
	p := 1.0 - float64(remaining)/float64(total)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

func progressBar(p float64) string {
	filled := int(p * float64(progressWidth))
	if filled > progressWidth {
		filled = progressWidth
	}

	var bar strings.Builder
	for i := 0; i < progressWidth; i++ {
		if i >= filled {
			bar.WriteString(Current.ProgressBar.Render(" "))
			continue
		}
		colorIndex := int(float64(i) / float64(progressWidth) * float64(len(gradientColors)-1))
		if colorIndex >= len(gradientColors) {
			colorIndex = len(gradientColors) - 1
		}
		bar.WriteString(lipgloss.NewStyle().
			Background(lipgloss.Color(gradientColors[colorIndex])).
			Render(" "))
	}
	return bar.String()
}
