package records

import (
	"context"
	stderrors "errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/splits/internal/errors"
	"github.com/verte-zerg/splits/internal/model"
	"github.com/verte-zerg/splits/internal/store"
)

func finished(final float64, segments map[string]float64) model.RunRecord {
	r := model.NewRunRecord()
	r.RunFinished = true
	r.FinalTime = final
	for k, v := range segments {
		r.SetSegment(k, v)
	}
	r.Category = model.Category{GameVersion: "1.0", PlayerCount: 1}
	return r
}

type flakyBackend struct {
	fails int
	saves int
	saved []model.RunRecord
}

func (f *flakyBackend) Load(context.Context) ([]model.RunRecord, error) { return nil, nil }

func (f *flakyBackend) Save(_ context.Context, runs []model.RunRecord) error {
	f.saves++
	if f.fails > 0 {
		f.fails--
		return stderrors.New("disk full")
	}
	f.saved = runs
	return nil
}

func (f *flakyBackend) Close() error { return nil }

func TestAverageCountsTies(t *testing.T) {
	s := New(nil)
	s.Ingest(finished(120.0, nil))
	s.Ingest(finished(95.5, nil))
	s.Ingest(finished(95.5, nil))

	agg := s.Recompute(nil)
	assert.Equal(t, 95.5, agg.Run.Fastest)
	assert.InDelta(t, 103.6667, agg.Run.Average, 1e-4)
	assert.Equal(t, 3, agg.Run.Count)
}

func TestFastestTieKeepsFirstSeen(t *testing.T) {
	first := finished(95.5, map[string]float64{"shore": 30})
	first.Seed = 1
	second := finished(95.5, map[string]float64{"shore": 31})
	second.Seed = 2

	agg := Compute([]model.RunRecord{finished(120, nil), first, second}, nil)
	assert.Equal(t, 1, agg.FastestRun.Seed)
}

func TestDimensionsAggregateIndependently(t *testing.T) {
	unfinished := model.NewRunRecord()
	unfinished.FinalTime = 10
	unfinished.SetSegment("shore", 20)
	unfinished.SetSegment("tropics", 0)

	done := finished(200, map[string]float64{"shore": 40, "tropics": model.Unset, "alpine": 55})

	agg := Compute([]model.RunRecord{unfinished, done}, IncludeAll)
	assert.Equal(t, 200.0, agg.Run.Fastest)
	assert.Equal(t, 1, agg.Run.Count)

	shore := agg.Segment("shore")
	assert.Equal(t, 20.0, shore.Fastest)
	assert.Equal(t, 30.0, shore.Average)

	tropics := agg.Segment("tropics")
	assert.False(t, tropics.Valid())
	assert.Equal(t, model.Unset, tropics.Fastest)
	assert.Equal(t, model.Unset, tropics.Average)

	assert.Equal(t, 55.0, agg.RecordFor("alpine", false))
	assert.Equal(t, model.Unset, agg.RecordFor("kiln", true))
}

func TestFastestBoundsEveryValidValue(t *testing.T) {
	history := []model.RunRecord{
		finished(300, map[string]float64{"shore": 50}),
		finished(250, map[string]float64{"shore": 70}),
		finished(-1, map[string]float64{"shore": 0}),
		finished(275, map[string]float64{"shore": 45}),
	}
	agg := Compute(history, nil)
	sum, n := 0.0, 0
	for _, r := range history {
		if r.FinalTime > 0 {
			assert.LessOrEqual(t, agg.Run.Fastest, r.FinalTime)
			sum += r.FinalTime
			n++
		}
	}
	assert.InDelta(t, sum/float64(n), agg.Run.Average, 1e-9)
	assert.Equal(t, 45.0, agg.Segment("shore").Fastest)
}

func TestEmptyAggregatesAreUnset(t *testing.T) {
	agg := New(nil).Aggregates()
	assert.Equal(t, model.Unset, agg.Run.Fastest)
	assert.Equal(t, model.Unset, agg.Run.Average)
	assert.Equal(t, model.Unset, agg.FastestRun.FinalTime)
	avg := agg.AverageRun()
	assert.False(t, avg.RunFinished)
	assert.Equal(t, model.Unset, avg.FinalTime)
}

func TestFilterResolution(t *testing.T) {
	s := New(nil)
	solo := finished(100, nil)
	duo := finished(80, nil)
	duo.PlayerCount = 2
	s.Ingest(solo)
	s.Ingest(duo)

	assert.Equal(t, 80.0, s.Recompute(nil).Run.Fastest, "no categorization means include all")

	s.SetCategorization(CategoryFilter(Rules{PlayerCount: true}, solo.Category))
	assert.Equal(t, 100.0, s.Recompute(nil).Run.Fastest)
	assert.Equal(t, 80.0, s.Recompute(IncludeAll).Run.Fastest)
	assert.Equal(t, 100.0, s.Recompute(func(r model.RunRecord) bool { return r.FinalTime > 90 }).Run.Fastest)
	assert.Equal(t, 100.0, s.Aggregates().Run.Fastest)
}

func TestAverageRunAndComparison(t *testing.T) {
	agg := Compute([]model.RunRecord{
		finished(100, map[string]float64{"shore": 20, "tropics": 30}),
		finished(120, map[string]float64{"shore": 30, "tropics": 40}),
	}, nil)

	avg := agg.Comparison(true)
	assert.True(t, avg.RunFinished)
	assert.Equal(t, 110.0, avg.FinalTime)
	assert.Equal(t, 25.0, avg.Segment("shore"))
	assert.Equal(t, 35.0, avg.Segment("tropics"))

	fast := agg.Comparison(false)
	assert.Equal(t, 100.0, fast.FinalTime)
	assert.Equal(t, 20.0, fast.Segment("shore"))
}

func TestCumulativeTargetsStopAtGap(t *testing.T) {
	cmp := finished(100, map[string]float64{"shore": 20, "tropics": 30, "caldera": 25})
	targets := CumulativeTargets(cmp, []string{"shore", "tropics", "alpine", "caldera"})
	assert.Equal(t, map[string]float64{"shore": 20, "tropics": 50}, targets)
}

func TestStartNewRunTwiceFails(t *testing.T) {
	s := New(nil, WithNow(func() time.Time { return time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC) }))
	run, err := s.StartNewRun(model.Category{PlayerCount: 1}, false)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-17T09:00:00Z", run.RunDate)
	require.NoError(t, s.UpdateCurrent(func(r *model.RunRecord) { r.SetSegment("shore", 42) }))

	_, err = s.StartNewRun(model.Category{PlayerCount: 4}, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ERunActive))

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, run.ID, cur.ID)
	assert.Equal(t, 42.0, cur.Segment("shore"))
	assert.Equal(t, 1, cur.PlayerCount)
	assert.Len(t, s.History(), 1)
}

func TestSaveWritesReservedSlot(t *testing.T) {
	s := New(nil)
	_, err := s.StartNewRun(model.Category{}, false)
	require.NoError(t, err)
	s.Ingest(finished(500, nil))
	require.NoError(t, s.UpdateCurrent(func(r *model.RunRecord) { r.SetSegment("shore", 9) }))
	require.NoError(t, s.SaveCurrentRun(context.Background()))

	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, 9.0, history[0].Segment("shore"))
	assert.Equal(t, 500.0, history[1].FinalTime)
}

func TestSaveAndFinishRequireOpenRun(t *testing.T) {
	s := New(nil)
	assert.True(t, errors.Is(s.SaveCurrentRun(context.Background()), errors.ENoActiveRun))
	assert.True(t, errors.Is(s.FinishRun(context.Background()), errors.ENoActiveRun))
	assert.True(t, errors.Is(s.UpdateCurrent(func(*model.RunRecord) {}), errors.ENoActiveRun))
}

func TestSaveSkipsPersistWithoutTimes(t *testing.T) {
	backend := &flakyBackend{}
	s := New(backend)
	_, err := s.StartNewRun(model.Category{}, false)
	require.NoError(t, err)

	require.NoError(t, s.SaveCurrentRun(context.Background()))
	assert.Equal(t, 0, backend.saves)

	require.NoError(t, s.UpdateCurrent(func(r *model.RunRecord) { r.SetSegment("shore", 12.5) }))
	require.NoError(t, s.SaveCurrentRun(context.Background()))
	assert.Equal(t, 1, backend.saves)
	require.Len(t, backend.saved, 1)
	assert.Equal(t, 12.5, backend.saved[0].Segment("shore"))
	assert.True(t, s.IsRunActive())
}

func TestFinishRunFailureKeepsRunOpen(t *testing.T) {
	backend := &flakyBackend{fails: 1}
	s := New(backend)
	s.Ingest(finished(90, nil))
	_, err := s.StartNewRun(model.Category{}, false)
	require.NoError(t, err)
	require.NoError(t, s.UpdateCurrent(func(r *model.RunRecord) {
		r.RunFinished = true
		r.FinalTime = 80
	}))

	err = s.FinishRun(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.EPersistFailed))
	assert.True(t, s.IsRunActive())
	history := s.History()
	require.Len(t, history, 2)
	assert.Equal(t, 80.0, history[1].FinalTime)

	require.NoError(t, s.FinishRun(context.Background()))
	assert.False(t, s.IsRunActive())
	assert.Len(t, backend.saved, 2)
	assert.Equal(t, 80.0, s.Recompute(nil).Run.Fastest)
}

func TestFinishRunWithRetry(t *testing.T) {
	backend := &flakyBackend{fails: 2}
	s := New(backend)
	_, err := s.StartNewRun(model.Category{}, false)
	require.NoError(t, err)
	require.NoError(t, s.UpdateCurrent(func(r *model.RunRecord) { r.SetSegment("shore", 1) }))

	require.NoError(t, s.FinishRunWithRetry(context.Background(), backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3)))
	assert.Equal(t, 3, backend.saves)
	assert.False(t, s.IsRunActive())

	err = s.FinishRunWithRetry(context.Background(), backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3))
	assert.True(t, errors.Is(err, errors.ENoActiveRun))
	assert.Equal(t, 3, backend.saves)
}

func TestLoadFromFileBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.json")
	backend := store.NewFile(path)

	s := New(backend)
	require.NoError(t, s.Load(ctx), "missing file is an empty history")
	assert.Empty(t, s.History())

	_, err := s.StartNewRun(model.Category{PlayerCount: 1}, false)
	require.NoError(t, err)
	require.NoError(t, s.UpdateCurrent(func(r *model.RunRecord) {
		r.RunFinished = true
		r.FinalTime = 321
		r.SetSegment("shore", 60)
	}))
	require.NoError(t, s.FinishRun(ctx))

	reloaded := New(backend)
	require.NoError(t, reloaded.Load(ctx))
	require.Len(t, reloaded.History(), 1)
	assert.Equal(t, 321.0, reloaded.Aggregates().Run.Fastest)
	assert.Equal(t, 60.0, reloaded.Aggregates().Segment("shore").Fastest)
}

func TestCategoryFilterRules(t *testing.T) {
	current := model.Category{GameVersion: "1.1", LevelName: "Level_3", AscentDifficulty: 2, PlayerCount: 2, Seed: 9}
	other := func(mut func(*model.RunRecord)) model.RunRecord {
		r := model.NewRunRecord()
		r.Category = current
		mut(&r)
		return r
	}

	tests := []struct {
		name  string
		rules Rules
		run   model.RunRecord
		want  bool
	}{
		{"no rules", Rules{}, other(func(r *model.RunRecord) { r.PlayerCount = 4 }), true},
		{"player count", Rules{PlayerCount: true}, other(func(r *model.RunRecord) { r.PlayerCount = 4 }), false},
		{"ascent", Rules{Ascent: true}, other(func(r *model.RunRecord) { r.AscentDifficulty = 3 }), false},
		{"version", Rules{GameVersion: true}, other(func(r *model.RunRecord) { r.GameVersion = "1.0" }), false},
		{"level implies version", Rules{Level: true}, other(func(r *model.RunRecord) { r.GameVersion = "1.0" }), false},
		{"level", Rules{Level: true}, other(func(r *model.RunRecord) { r.LevelName = "Level_4" }), false},
		{"level implies randomizer", Rules{Level: true}, other(func(r *model.RunRecord) { r.WasRandomized = true }), false},
		{"randomizer", Rules{Randomizer: true}, other(func(r *model.RunRecord) { r.WasRandomized = true }), false},
		{"randomizer off", Rules{Ascent: true}, other(func(r *model.RunRecord) { r.WasRandomized = true }), true},
		{"seed", Rules{Seed: true}, other(func(r *model.RunRecord) { r.Seed = 10 }), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CategoryFilter(tc.rules, current)(tc.run))
		})
	}
}

func TestCategoryLabel(t *testing.T) {
	cat := model.Category{LevelName: "Level_3", PlayerCount: 2}
	assert.Equal(t, "", CategoryLabel(Rules{}, cat))
	assert.Equal(t, "2 SCOUTS  DAILY #3", CategoryLabel(Rules{PlayerCount: true, Level: true}, cat))

	cat.PlayerCount = 1
	cat.WasRandomized = true
	assert.Equal(t, "1 SCOUT  RANDOM", CategoryLabel(Rules{PlayerCount: true, Randomizer: true}, cat))
	assert.Equal(t, "SEEDED", CategoryLabel(Rules{Level: true, Seed: true}, cat))
}
