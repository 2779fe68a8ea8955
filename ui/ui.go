// Package ui provides the interactive companion for voxd.
package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/voxd/internal/engine"
	"github.com/dgnsrekt/voxd/internal/speaker"
	"github.com/dgnsrekt/voxd/internal/state"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	te "github.com/muesli/termenv"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show messages like "muted"
	ellipsis             = "…"

	speedStep  = 0.1
	volumeStep = 0.1
)

// Backend is what the companion drives. *speaker.Speaker implements it.
type Backend interface {
	Submit(raw string) speaker.Result
	Configure(u state.Update) ([]string, error)
	Status() speaker.Status
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, b Backend) *tea.Program {
	log.Debug("Starting voxd tui", "refresh", cfg.RefreshInterval, "color", te.EnvColorProfile() != te.Ascii)

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, b), opts...)
}

type focus int

const (
	focusInput focus = iota
	focusControls
)

type (
	tickMsg                 time.Time
	statusMessageTimeoutMsg struct{}

	submittedMsg struct {
		text   string
		result speaker.Result
	}

	configuredMsg struct {
		changed []string
		err     error
	}
)

// entry is one line in the submission history.
type entry struct {
	text   string
	result speaker.Result
}

type model struct {
	cfg     Config
	backend Backend
	keys    keyMap

	width  int
	height int
	focus  focus

	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	status  *StatusDisplay
	history []entry

	statusMessage      string
	statusMessageIsErr bool
	statusMessageTimer *time.Timer
}

func newModel(cfg Config, b Backend) model {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 250 * time.Millisecond
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 8
	}

	ti := textinput.New()
	ti.Placeholder = "Type something to say"
	ti.Prompt = "> "
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = keyStyle

	return model{
		cfg:     cfg,
		backend: b,
		keys:    newKeyMap(),
		focus:   focusInput,
		input:   ti,
		spinner: sp,
		help:    help.New(),
		status:  NewStatusDisplay(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.pollStatus(), tick(m.cfg.RefreshInterval))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if m.cfg.MaxWidth > 0 && m.width > int(m.cfg.MaxWidth) { //nolint:gosec
			m.width = int(m.cfg.MaxWidth) //nolint:gosec
		}
		m.height = msg.Height
		m.input.Width = max(m.width-4, 10)
		m.help.Width = m.width

	case tickMsg:
		return m, tea.Batch(m.pollStatus(), tick(m.cfg.RefreshInterval))

	case speaker.Status:
		m.status.Update(msg)

	case submittedMsg:
		m.history = append([]entry{{text: msg.text, result: msg.result}}, m.history...)
		if len(m.history) > m.cfg.HistorySize {
			m.history = m.history[:m.cfg.HistorySize]
		}
		if msg.result.Outcome != speaker.Accepted {
			cmds = append(cmds, m.showStatusMessage(msg.result.Outcome.String()+": "+msg.result.Reason, true))
		}
		cmds = append(cmds, m.pollStatus())

	case configuredMsg:
		if msg.err != nil {
			cmds = append(cmds, m.showStatusMessage(msg.err.Error(), true))
		} else if len(msg.changed) > 0 {
			cmds = append(cmds, m.showStatusMessage("changed "+strings.Join(msg.changed, ", "), false))
		}
		cmds = append(cmds, m.pollStatus())

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		m.statusMessageIsErr = false

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tea.KeyMsg:
		if m.focus == focusInput {
			return m.updateInput(msg)
		}
		return m.updateControls(msg)
	}

	return m, tea.Batch(cmds...)
}

func (m model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.input.Reset()
		return m, m.submit(text)

	case key.Matches(msg, m.keys.Leave):
		m.focus = focusControls
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) updateControls(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cfg := m.status.Status().Config

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Type):
		m.focus = focusInput
		return m, m.input.Focus()

	case key.Matches(msg, m.keys.Mute):
		return m, m.configure(state.Update{state.FieldMuted: !cfg.Muted})

	case key.Matches(msg, m.keys.Faster):
		return m, m.configure(state.Update{state.FieldSpeed: step(cfg.Speed, speedStep, state.MinSpeed, state.MaxSpeed)})

	case key.Matches(msg, m.keys.Slower):
		return m, m.configure(state.Update{state.FieldSpeed: step(cfg.Speed, -speedStep, state.MinSpeed, state.MaxSpeed)})

	case key.Matches(msg, m.keys.Louder):
		return m, m.configure(state.Update{state.FieldVolume: step(cfg.Volume, volumeStep, state.MinVolume, state.MaxVolume)})

	case key.Matches(msg, m.keys.Quieter):
		return m, m.configure(state.Update{state.FieldVolume: step(cfg.Volume, -volumeStep, state.MinVolume, state.MaxVolume)})

	case key.Matches(msg, m.keys.NextEngine):
		return m, m.configure(state.Update{state.FieldEngine: string(nextEngine(cfg.Engine))})

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// step moves v by delta, rounded to two places and kept within bounds.
func step(v, delta, lo, hi float64) float64 {
	v = math.Round((v+delta)*100) / 100
	return math.Max(lo, math.Min(hi, v))
}

// nextEngine cycles through the real engines, skipping the mock.
func nextEngine(cur engine.Kind) engine.Kind {
	var kinds []engine.Kind
	for _, k := range engine.Kinds() {
		if k != engine.KindMock {
			kinds = append(kinds, k)
		}
	}
	for i, k := range kinds {
		if k == cur {
			return kinds[(i+1)%len(kinds)]
		}
	}
	return kinds[0]
}

func (m model) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}

	var b strings.Builder
	b.WriteString("\n  " + titleStyle.Render("voxd"))
	if m.status.Active() {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("  " + m.status.CompactStatus() + "\n\n")

	b.WriteString(indent(m.status.DetailedStatus(width-4), 2) + "\n\n")

	input := m.input.View()
	if m.focus != focusInput {
		input = subtleStyle.Render(input)
	}
	b.WriteString("  " + input + "\n\n")

	if len(m.history) > 0 {
		b.WriteString(indent(m.historyView(width-4), 2) + "\n\n")
	}

	if m.statusMessage != "" {
		style := statusMessageStyle
		if m.statusMessageIsErr {
			style = statusErrorStyle
		}
		msg := wordwrap.String(m.statusMessage, max(width-8, 20))
		b.WriteString(indent(style.Render(msg), 2) + "\n\n")
	}

	var helpView string
	if m.focus == focusInput {
		helpView = m.help.View(inputKeyMap{keys: m.keys})
	} else {
		helpView = m.help.View(m.keys)
	}
	b.WriteString(indent(helpView, 2))
	return b.String()
}

func (m model) historyView(width int) string {
	lines := make([]string, 0, len(m.history))
	for _, e := range m.history {
		outcome := e.result.Outcome.String()
		style, ok := outcomeStyles[outcome]
		if !ok {
			style = subtleStyle
		}
		label := style.Render(fmt.Sprintf("%-8s", outcome))

		detail := fmt.Sprintf("%d sentences", e.result.Sentences)
		if e.result.Reason != "" {
			detail = e.result.Reason
		}
		detail = subtleStyle.Render(" (" + detail + ")")

		avail := width - 30
		text := strings.Join(strings.Fields(e.text), " ")
		if avail > 0 {
			text = truncate.StringWithTail(text, uint(avail), ellipsis) //nolint:gosec
		}
		lines = append(lines, label+" "+text+detail)
	}
	return strings.Join(lines, "\n")
}

func (m *model) showStatusMessage(msg string, isErr bool) tea.Cmd {
	m.statusMessage = msg
	m.statusMessageIsErr = isErr
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

// COMMANDS

func (m model) pollStatus() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		return b.Status()
	}
}

func (m model) submit(text string) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		return submittedMsg{text: text, result: b.Submit(text)}
	}
}

func (m model) configure(u state.Update) tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		changed, err := b.Configure(u)
		return configuredMsg{changed: changed, err: err}
	}
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}

func indent(s string, n int) string {
	if n <= 0 || s == "" {
		return s
	}
	l := strings.Split(s, "\n")
	b := strings.Builder{}
	i := strings.Repeat(" ", n)
	for _, v := range l {
		fmt.Fprintf(&b, "%s%s\n", i, v)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
