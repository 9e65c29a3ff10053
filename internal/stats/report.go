package stats

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/verte-zerg/splits/internal/errors"
	"github.com/verte-zerg/splits/internal/model"
	"github.com/verte-zerg/splits/internal/records"
	"github.com/verte-zerg/splits/internal/store"
)

// Query selects the runs a report covers and how they are grouped.
type Query struct {
	Rules records.Rules
	Since *time.Time
	Last  int
}

// Group is one category of runs with its records.
type Group struct {
	Label      string
	Category   model.Category
	Runs       []model.RunRecord
	Aggregates records.Aggregates
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Runs   []model.RunRecord
	Groups []Group
}

// BuildReport loads history from backend and prepares it for rendering.
// A missing history file gives an empty report.
func BuildReport(ctx context.Context, backend store.Backend, q Query) (Report, error) {
	history, err := backend.Load(ctx)
	if err != nil && !errors.Is(err, errors.ENotFound) {
		return Report{}, err
	}
	return Build(history, q), nil
}

// Build groups history by the query's category rules. Groups appear in the
// order their first run was recorded.
func Build(history []model.RunRecord, q Query) Report {
	runs := selectRuns(history, q)
	var groups []Group
	for _, run := range runs {
		placed := false
		for i := range groups {
			if records.CategoryFilter(q.Rules, groups[i].Category)(run) {
				groups[i].Runs = append(groups[i].Runs, run)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, Group{
				Label:    GroupLabel(q.Rules, run.Category),
				Category: run.Category,
				Runs:     []model.RunRecord{run},
			})
		}
	}
	for i := range groups {
		groups[i].Aggregates = records.Compute(groups[i].Runs, nil)
	}
	return Report{Runs: runs, Groups: groups}
}

func selectRuns(history []model.RunRecord, q Query) []model.RunRecord {
	runs := make([]model.RunRecord, 0, len(history))
	for _, run := range history {
		if q.Since != nil {
			date, ok := run.Date()
			if !ok || date.Before(*q.Since) {
				continue
			}
		}
		runs = append(runs, run)
	}
	if q.Last > 0 && len(runs) > q.Last {
		runs = runs[len(runs)-q.Last:]
	}
	return runs
}

// GroupLabel names a category for a report heading.
func GroupLabel(rules records.Rules, c model.Category) string {
	var parts []string
	if (rules.GameVersion || rules.Level) && c.GameVersion != "" {
		parts = append(parts, "v"+c.GameVersion)
	}
	if label := records.CategoryLabel(rules, c); label != "" {
		parts = append(parts, label)
	}
	if rules.Ascent {
		parts = append(parts, fmt.Sprintf("ASCENT %d", c.AscentDifficulty))
	}
	if rules.Seed && c.WasRandomized {
		parts = append(parts, fmt.Sprintf("SEED %d", c.Seed))
	}
	if len(parts) == 0 {
		return "ALL RUNS"
	}
	return strings.Join(parts, "  ")
}

// FinishedTimes returns the final times of finished runs in order.
func FinishedTimes(runs []model.RunRecord) []float64 {
	var out []float64
	for _, run := range runs {
		if run.RunFinished && run.FinalTime > 0 {
			out = append(out, run.FinalTime)
		}
	}
	return out
}
