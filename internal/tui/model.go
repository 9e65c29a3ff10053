// Package tui provides the Bubble Tea overlay host that drives a run from the keyboard.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/verte-zerg/splits/internal/clock"
	"github.com/verte-zerg/splits/internal/display"
	"github.com/verte-zerg/splits/internal/logging"
	"github.com/verte-zerg/splits/internal/model"
	"github.com/verte-zerg/splits/internal/records"
	"github.com/verte-zerg/splits/internal/splits"
	"github.com/verte-zerg/splits/internal/timer"
)

const (
	frameInterval = time.Second / 30
	// nearDistance is the distance reported when the player signals being close to a goal.
	nearDistance = 100.0
	labelWidth   = 10

	categoryInfoName = "category"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	labelStyle  = lipgloss.NewStyle().Width(labelWidth).Foreground(lipgloss.Color("#8C8C8C"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

type frameMsg time.Time

// SettingsMsg carries reloaded settings into the running program.
type SettingsMsg struct {
	Settings splits.Settings
}

// Options configure the overlay model.
type Options struct {
	Orchestrator *splits.Orchestrator
	Sinks        *Sinks
	// Game is the simulated clock the host advances every frame.
	Game     *clock.Manual
	Category model.Category
	Log      logrus.FieldLogger
}

// Model implements the Bubble Tea overlay.
type Model struct {
	orch     *splits.Orchestrator
	sinks    *Sinks
	game     *clock.Manual
	category model.Category
	log      logrus.FieldLogger

	keys    keyMap
	help    help.Model
	catSink *Sink
	catInfo *display.Info

	width  int
	height int

	paused    bool
	lastFrame time.Time
	pending   *splits.Settings
	status    string
	failed    bool
}

// NewModel constructs the overlay model.
func NewModel(opts Options) *Model {
	m := &Model{
		orch:     opts.Orchestrator,
		sinks:    opts.Sinks,
		game:     opts.Game,
		category: opts.Category,
		log:      logging.OrDiscard(opts.Log),
		keys:     defaultKeyMap(),
		help:     help.New(),
		status:   "press s to start a run",
		catSink:  NewSink(),
	}
	m.catInfo = display.NewInfo(display.InfoTemplate{
		Name: categoryInfoName,
		Text: m.categoryText,
	}, m.catSink)
	m.catInfo.SetText(m.label(m.category))
	return m
}

// categoryText labels the open run's category. Between runs there is no
// record to read, so the last label stays.
func (m *Model) categoryText() (string, bool) {
	if !m.orch.Settings().ShowCategory {
		return "", true
	}
	run, ok := m.orch.CurrentRun()
	if !ok {
		return "", false
	}
	return m.label(run.Category), true
}

func (m *Model) label(c model.Category) string {
	settings := m.orch.Settings()
	if !settings.ShowCategory {
		return ""
	}
	return records.CategoryLabel(settings.Categorize, c)
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return frame()
}

func frame() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg { return frameMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case frameMsg:
		m.advance(time.Time(msg))
		return m, frame()
	case SettingsMsg:
		m.applySettings(msg.Settings)
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) advance(now time.Time) {
	if !m.lastFrame.IsZero() && m.game != nil {
		m.game.Advance(now.Sub(m.lastFrame).Seconds())
	}
	m.lastFrame = now
	m.orch.Tick()
	m.catInfo.Update()
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	ctx := context.Background()
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Start):
		m.report(m.orch.StartRun(m.orch.Now(), m.category), "run started")
	case key.Matches(msg, m.keys.Split):
		m.split(ctx)
	case key.Matches(msg, m.keys.Near):
		if m.orch.NearGoal(nearDistance) {
			m.setStatus("near the goal", false)
		}
	case key.Matches(msg, m.keys.Finish):
		m.finish(ctx, true)
	case key.Matches(msg, m.keys.Abandon):
		m.finish(ctx, false)
	case key.Matches(msg, m.keys.Pause):
		m.paused = !m.paused
		if m.game != nil {
			m.game.SetPaused(m.paused)
		}
		if m.paused {
			m.setStatus("game clock paused", false)
		} else {
			m.setStatus("game clock running", false)
		}
	}
	return nil
}

// split enters the stage after the current one, or the terminal after the last.
func (m *Model) split(ctx context.Context) {
	st, ok := m.orch.Stage()
	if !ok {
		if m.orch.Closing() {
			m.setStatus("run not saved, press f to retry", true)
		} else if m.orch.Running() {
			m.setStatus("at the top, press f to finish", false)
		} else {
			m.setStatus("no run in progress", true)
		}
		return
	}
	next := m.orch.Terminal()
	stages := m.orch.Stages()
	for i, s := range stages {
		if s.Name == st.Name && i+1 < len(stages) {
			next = stages[i+1].Name
			break
		}
	}
	m.report(m.orch.EnterStage(ctx, next, m.orch.Now()), "entered "+next)
}

func (m *Model) finish(ctx context.Context, won bool) {
	err := m.orch.Finish(ctx, won, 0)
	if err != nil {
		m.report(err, "")
		if m.orch.Closing() {
			m.status += " (press f to retry)"
		}
		return
	}
	msg := "run abandoned"
	if won {
		msg = "run finished"
		if text, state, ok := m.orch.FinalPace(); ok {
			msg = fmt.Sprintf("run finished %s (%s)", text, state)
		}
	}
	m.setStatus(msg, false)
	if m.pending != nil {
		s := *m.pending
		m.pending = nil
		m.applySettings(s)
	}
}

func (m *Model) applySettings(s splits.Settings) {
	if m.orch.Running() {
		m.pending = &s
		m.setStatus("settings reloaded, applied after this run", false)
		return
	}
	m.report(m.orch.ApplySettings(s), "settings applied")
	if !m.orch.Settings().ShowCategory {
		m.catInfo.SetText("")
	} else if _, open := m.orch.CurrentRun(); !open {
		m.catInfo.SetText(m.label(m.category))
	}
}

func (m *Model) report(err error, ok string) {
	if err != nil {
		m.log.WithError(err).Warn("overlay action failed")
		m.setStatus(err.Error(), true)
		return
	}
	m.setStatus(ok, false)
}

func (m *Model) setStatus(msg string, failed bool) {
	m.status = msg
	m.failed = failed
}

// View implements tea.Model.
func (m *Model) View() string {
	lines := []string{m.renderTitle()}
	if text := m.catSink.Render(); text != "" {
		lines = append(lines, labelStyle.Render("Category")+text)
	}
	lines = append(lines, "")
	if line := m.renderTimer("Run", splits.MainTimerName); line != "" {
		lines = append(lines, line, "")
	}
	for _, s := range m.orch.Stages() {
		if line := m.renderTimer(s.Label, s.Name); line != "" {
			lines = append(lines, line)
		}
	}
	lines = append(lines, "", m.renderStatus(), m.help.View(m.keys))
	content := strings.Join(lines, "\n")
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderTitle() string {
	title := "SPLITS"
	settings := m.orch.Settings()
	clockName := clock.ModeFor(settings.RealTime).String()
	if m.paused {
		clockName += ", paused"
	}
	return titleStyle.Render(title) + statusStyle.Render(fmt.Sprintf("  [%s clock]", clockName))
}

func (m *Model) renderTimer(label, name string) string {
	var built bool
	if name == splits.MainTimerName {
		_, built = m.orch.Main()
	} else {
		_, built = m.orch.Timer(name)
	}
	text, ok := m.sinks.Text(name)
	if !built || !ok {
		return ""
	}
	line := labelStyle.Render(label) + text.Render()
	if pace, ok := m.sinks.Pace(name); ok {
		if p := pace.Render(); p != "" {
			line += "  " + p
		}
	}
	return line
}

func (m *Model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	if m.failed {
		return errorStyle.Render(m.status)
	}
	return statusStyle.Render(m.orch.Summary() + " · " + m.status)
}

// PaceLine reports the main timer pace as shown, for hosts that print it on exit.
func (m *Model) PaceLine() (string, timer.PaceState, bool) {
	return m.orch.FinalPace()
}
