// Package statsui provides the Bubble Tea history browser.
package statsui

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/splits/internal/model"
	"github.com/verte-zerg/splits/internal/records"
	"github.com/verte-zerg/splits/internal/stats"
	"github.com/verte-zerg/splits/internal/timer"
)

const (
	tabRecords = iota
	tabRuns
)

const maxTrendWindow = 50

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea history browser.
type Model struct {
	report stats.Report
	rules  records.Rules
	opts   stats.RenderOptions
	errMsg string

	tabs      []string
	activeTab int
	records   viewport.Model
	runs      table.Model

	width  int
	height int
}

// NewModel constructs a browser over report. rules label each run's category.
func NewModel(report stats.Report, rules records.Rules, opts stats.RenderOptions) *Model {
	m := &Model{
		report:  report,
		rules:   rules,
		opts:    opts,
		tabs:    []string{"Records", "Runs"},
		records: viewport.New(0, 0),
	}
	m.runs = buildRunTable(report.Runs, rules, opts.Precision)
	m.renderRecords()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderRecords()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l", "tab":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "=":
			m.setWindow(m.opts.Window + 1)
			return m, nil
		case "-":
			m.setWindow(m.opts.Window - 1)
			return m, nil
		case "g", "home":
			if m.activeTab == tabRuns {
				m.runs.GotoTop()
			} else {
				m.records.GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabRuns {
				m.runs.GotoBottom()
			} else {
				m.records.GotoBottom()
			}
			return m, nil
		default:
			var cmd tea.Cmd
			if m.activeTab == tabRuns {
				m.runs, cmd = m.runs.Update(msg)
			} else {
				m.records, cmd = m.records.Update(msg)
			}
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.records.Width = m.width
	m.records.Height = bodyHeight
	m.runs.SetWidth(m.width)
	m.runs.SetHeight(maxInt(1, bodyHeight-1))
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabRuns {
		m.runs.Focus()
	} else {
		m.runs.Blur()
	}
}

func (m *Model) setWindow(window int) {
	if window < 1 || window > maxTrendWindow {
		return
	}
	m.opts.Window = window
	m.renderRecords()
}

func (m *Model) renderRecords() {
	opts := m.opts
	if m.width > 0 {
		opts.Width = m.width
	}
	var buf bytes.Buffer
	if err := stats.Render(&buf, m.report, opts); err != nil {
		m.errMsg = err.Error()
		m.records.SetContent("Failed to render records.")
		return
	}
	m.errMsg = ""
	m.records.SetContent(buf.String())
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	summary := fmt.Sprintf("Runs: %d  Categories: %d  Trend window: %d", len(m.report.Runs), len(m.report.Groups), m.opts.Window)
	return tabs + "\n" + headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderBody() string {
	if m.activeTab == tabRuns {
		if len(m.report.Runs) == 0 {
			return "No runs found."
		}
		return tableMutedStyle.Render(m.runs.View())
	}
	return m.records.View()
}

func (m *Model) renderFooter() string {
	help := headerStyle.Render("Nav: left/right  Scroll: up/down/pgup/pgdn  Window: -/=  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func buildRunTable(runs []model.RunRecord, rules records.Rules, precision int) table.Model {
	columns := []table.Column{
		{Title: "Date", Width: 16},
		{Title: "Category", Width: 24},
		{Title: "Clock", Width: 5},
		{Title: "Final", Width: 10},
		{Title: "Done", Width: 4},
		{Title: "Splits", Width: 6},
	}
	f := timer.Format{Precision: precision}
	rows := make([]table.Row, 0, len(runs))
	// Newest first.
	for i := len(runs) - 1; i >= 0; i-- {
		rows = append(rows, runRow(runs[i], rules, f))
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	t.SetStyles(styles)
	return t
}

func runRow(run model.RunRecord, rules records.Rules, f timer.Format) table.Row {
	date := "-"
	if d, ok := run.Date(); ok {
		date = d.Local().Format("2006-01-02 15:04")
	}
	clockName := "game"
	if run.IsRealTime {
		clockName = "wall"
	}
	final := "-"
	if run.FinalTime > 0 {
		final = timer.FormatTime(run.FinalTime, f)
	}
	done := "no"
	if run.RunFinished {
		done = "yes"
	}
	splits := 0
	for _, name := range run.SegmentNames() {
		if run.Segment(name) > 0 {
			splits++
		}
	}
	return table.Row{date, stats.GroupLabel(rules, run.Category), clockName, final, done, strconv.Itoa(splits)}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
