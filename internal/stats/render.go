package stats

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/splits/internal/records"
	"github.com/verte-zerg/splits/internal/timer"
)

// RenderOptions control report output.
type RenderOptions struct {
	Stages    []string
	Precision int
	// Window is the moving average window for the trend line.
	Window int
	// Width caps the trend line; zero leaves it unbounded.
	Width int
	Color bool
}

const trendLabel = "Trend  "

// Render prints the summary followed by one table per group.
func Render(w io.Writer, r Report, opts RenderOptions) error {
	if err := RenderSummary(w, r); err != nil {
		return err
	}
	for _, g := range r.Groups {
		if err := RenderGroup(w, g, opts); err != nil {
			return err
		}
	}
	return nil
}

// RenderSummary prints run counts.
func RenderSummary(w io.Writer, r Report) error {
	if len(r.Runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs found.")
		return err
	}
	finished := len(FinishedTimes(r.Runs))
	if _, err := fmt.Fprintf(w, "Runs: %d  Finished: %d  Categories: %d\n\n", len(r.Runs), finished, len(r.Groups)); err != nil {
		return err
	}
	return nil
}

// RenderGroup prints a group's fastest and average split times and its trend.
func RenderGroup(w io.Writer, g Group, opts RenderOptions) error {
	title := fmt.Sprintf("%s (%d runs)", g.Label, len(g.Runs))
	if opts.Color {
		title = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(timer.GoldColor.Hex())).Render(title)
	}
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}

	f := timer.Format{Precision: opts.Precision}
	headers := []string{"Split", "Fastest", "Average", "Runs"}
	rows := make([][]string, 0, len(opts.Stages)+1)
	for _, name := range opts.Stages {
		rows = append(rows, dimRow(name, g.Aggregates.Segment(name), f))
	}
	rows = append(rows, dimRow("Run", g.Aggregates.Run, f))
	rightAlign := map[int]bool{1: true, 2: true, 3: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	if trend := TrendLine(FinishedTimes(g.Runs), opts.Window, opts.Width-len(trendLabel)); trend != "" {
		if opts.Color {
			trend = lipgloss.NewStyle().Foreground(lipgloss.Color(timer.AheadColor.Hex())).Render(trend)
		}
		if _, err := fmt.Fprintln(w, trendLabel+trend); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// TrendLine renders the moving average of times as a sparkline at most width wide.
func TrendLine(times []float64, window, width int) string {
	if len(times) < 2 {
		return ""
	}
	return Sparkline(Fit(MovingAverage(times, window), width))
}

func dimRow(name string, d records.Dim, f timer.Format) []string {
	if !d.Valid() {
		return []string{name, "-", "-", "0"}
	}
	return []string{
		name,
		timer.FormatTime(d.Fastest, f),
		timer.FormatTime(d.Average, f),
		fmt.Sprintf("%d", d.Count),
	}
}
