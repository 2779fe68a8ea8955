package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dgnsrekt/voxd/internal/speaker"
	runewidth "github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
)

// StatusDisplay renders the pipeline status for the companion.
type StatusDisplay struct {
	status speaker.Status
	seen   bool
}

// NewStatusDisplay creates an empty status display.
func NewStatusDisplay() *StatusDisplay {
	return &StatusDisplay{}
}

// Update replaces the displayed status.
func (s *StatusDisplay) Update(st speaker.Status) {
	s.status = st
	s.seen = true
}

// Status returns the last status seen.
func (s *StatusDisplay) Status() speaker.Status {
	return s.status
}

// Active reports whether a batch is being delivered.
func (s *StatusDisplay) Active() bool {
	return s.seen && (s.status.Speaking || s.status.Phase != "idle")
}

// CompactStatus returns a one-line summary for the status bar.
func (s *StatusDisplay) CompactStatus() string {
	if !s.seen {
		return subtleStyle.Render("connecting" + ellipsis)
	}

	phase := lipgloss.NewStyle().Foreground(s.phaseColor()).
		Render(fmt.Sprintf("%s %s", s.phaseIcon(), s.status.Phase))

	parts := []string{phase, s.queueBar()}
	if s.status.Config.Muted {
		parts = append(parts, lipgloss.NewStyle().Foreground(red).Render("muted"))
	}
	return strings.Join(parts, "  ")
}

// DetailedStatus returns the settings panel, fitted to width.
func (s *StatusDisplay) DetailedStatus(width int) string {
	c := s.status.Config
	rows := [][2]string{
		{"engine", string(c.Engine)},
		{"voice", c.Voice},
		{"speed", fmt.Sprintf("%.2f×", c.Speed)},
		{"volume", fmt.Sprintf("%.0f%%", c.Volume*100)},
	}
	if c.PreCuePath != "" {
		rows = append(rows, [2]string{"pre cue", c.PreCuePath})
	}
	if c.PostCuePath != "" {
		rows = append(rows, [2]string{"post cue", c.PostCuePath})
	}

	labelWidth := 0
	for _, r := range rows {
		labelWidth = max(labelWidth, runewidth.StringWidth(r[0]))
	}

	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		label := runewidth.FillRight(r[0], labelWidth)
		value := r[1]
		if avail := width - labelWidth - 2; avail > 0 {
			value = truncate.StringWithTail(value, uint(avail), ellipsis) //nolint:gosec
		}
		lines = append(lines, subtleStyle.Render(label)+"  "+value)
	}
	return strings.Join(lines, "\n")
}

// queueBar shows queued batches against capacity, e.g. ▮▮▯.
func (s *StatusDisplay) queueBar() string {
	capacity := s.status.QueueCapacity
	if capacity <= 0 {
		return ""
	}
	depth := min(s.status.QueueDepth, capacity)
	filled := lipgloss.NewStyle().Foreground(s.queueColor()).Render(strings.Repeat("▮", depth))
	empty := dividerStyle.Render(strings.Repeat("▯", capacity-depth))
	return "queue " + filled + empty
}

func (s *StatusDisplay) queueColor() lipgloss.TerminalColor {
	if s.status.QueueDepth >= s.status.QueueCapacity {
		return red
	}
	return green
}

func (s *StatusDisplay) phaseColor() lipgloss.TerminalColor {
	switch s.status.Phase {
	case "speaking":
		return green
	case "duck", "unduck", "pre-cue", "post-cue", "check-mute":
		return yellow
	case "idle":
		return gray
	default:
		return red
	}
}

func (s *StatusDisplay) phaseIcon() string {
	switch s.status.Phase {
	case "speaking":
		return "▶"
	case "idle":
		return "■"
	case "pre-cue", "post-cue":
		return "♪"
	case "duck", "unduck", "check-mute":
		return "⟳"
	default:
		return "○"
	}
}
