package splits

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/splits/internal/clock"
	"github.com/verte-zerg/splits/internal/display"
	"github.com/verte-zerg/splits/internal/errors"
	"github.com/verte-zerg/splits/internal/model"
	"github.com/verte-zerg/splits/internal/records"
	"github.com/verte-zerg/splits/internal/timer"
)

var soloCategory = model.Category{GameVersion: "1.0", PlayerCount: 1, AscentDifficulty: 1}

type harness struct {
	clk   *clock.Manual
	store *records.Store
	text  map[string]*display.MemorySink
	pace  map[string]*display.MemorySink
	orch  *Orchestrator
}

func newHarness(t *testing.T, settings Settings, backend *failingBackend) *harness {
	t.Helper()
	h := &harness{
		clk:  clock.NewManual(0),
		text: map[string]*display.MemorySink{},
		pace: map[string]*display.MemorySink{},
	}
	if backend != nil {
		h.store = records.New(backend)
	} else {
		h.store = records.New(nil)
	}
	orch, err := New(Options{
		Settings: settings,
		Clock:    clock.Source{WallFunc: h.clk.Func(), GameFunc: h.clk.Func()},
		Records:  h.store,
		Sinks: func(name string) (display.Sink, display.Sink) {
			text := display.NewMemorySink(0)
			pace := display.NewMemorySink(0)
			h.text[name] = text
			h.pace[name] = pace
			return text, pace
		},
		Retry: func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1) },
	})
	require.NoError(t, err)
	h.orch = orch
	return h
}

func pastRun(final float64, segs ...float64) model.RunRecord {
	r := model.NewRunRecord()
	r.Category = soloCategory
	r.RunFinished = final > 0
	r.FinalTime = final
	for i, s := range DefaultStages() {
		if i < len(segs) {
			r.SetSegment(s.Name, segs[i])
		}
	}
	return r
}

type failingBackend struct {
	fail bool
}

func (f *failingBackend) Load(context.Context) ([]model.RunRecord, error) { return nil, nil }

func (f *failingBackend) Save(context.Context, []model.RunRecord) error {
	if f.fail {
		return stderrors.New("read-only filesystem")
	}
	return nil
}

func (f *failingBackend) Close() error { return nil }

func (h *harness) timerFor(t *testing.T, name string) *timer.Timer {
	t.Helper()
	tm, ok := h.orch.Timer(name)
	require.True(t, ok, "timer %s", name)
	return tm
}

func TestFullRunSnapshotsTargets(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultSettings(), nil)
	h.store.Ingest(pastRun(300, 50, 60, 70, 60, 60))
	other := pastRun(100, 10, 10, 10, 10, 10)
	other.PlayerCount = 3
	h.store.Ingest(other)

	h.clk.Set(10)
	require.NoError(t, h.orch.StartRun(10, soloCategory))
	main, ok := h.orch.Main()
	require.True(t, ok)
	target, ok := main.Target()
	require.True(t, ok)
	assert.Equal(t, 300.0, target, "other categories are filtered out")

	want := map[string]float64{"shore": 50, "tropics": 110, "alpine": 180, "caldera": 240, "kiln": 300}
	for name, w := range want {
		got, ok := h.timerFor(t, name).Target()
		require.True(t, ok)
		assert.Equal(t, w, got, name)
	}
	record, _ := h.timerFor(t, "shore").Record()
	assert.Equal(t, 50.0, record)

	h.store.Ingest(pastRun(200, 20, 20, 20, 20, 20))
	h.store.Recompute(nil)
	got, _ := h.timerFor(t, "tropics").Target()
	assert.Equal(t, 110.0, got, "targets do not change mid-run")

	shore := h.timerFor(t, "shore")
	assert.True(t, shore.IsRunning())
	h.clk.Set(10.5)
	h.orch.Tick()
	assert.Equal(t, ActiveSize, h.text["shore"].GetHeight())
	assert.Equal(t, "0:00.5", h.text["shore"].Text())

	h.clk.Set(50)
	require.NoError(t, h.orch.EnterStage(ctx, "tropics", 50))
	assert.False(t, shore.IsRunning())
	assert.True(t, h.timerFor(t, "tropics").IsRunning())
	assert.True(t, h.pace["shore"].Visible())
	assert.Equal(t, "-10.0", h.pace["shore"].Text())
	assert.Equal(t, timer.GoldColor.Scale(InactiveColorScale), h.pace["shore"].Color())

	cur, ok := h.store.Current()
	require.True(t, ok)
	assert.Equal(t, 40.0, cur.Segment("shore"))

	h.clk.Set(51)
	h.orch.Tick()
	assert.Equal(t, InactiveSize, h.text["shore"].GetHeight())
	assert.Equal(t, ActiveSize, h.text["tropics"].GetHeight())

	err := h.orch.EnterStage(ctx, "summit", 60)
	assert.True(t, errors.Is(err, errors.ENotFound))
	err = h.orch.EnterStage(ctx, "shore", 60)
	assert.True(t, errors.Is(err, errors.EInvalidState))

	for i, name := range []string{"alpine", "caldera", "kiln"} {
		at := 100 + float64(i)*50
		h.clk.Set(at)
		require.NoError(t, h.orch.EnterStage(ctx, name, at))
	}
	h.clk.Set(250)
	require.NoError(t, h.orch.EnterStage(ctx, DefaultTerminal, 250))
	assert.False(t, main.IsRunning())
	_, ok = h.orch.Stage()
	assert.False(t, ok)
	assert.True(t, h.pace[MainTimerName].Visible(), "proximity trigger shows run pace at the terminal")

	text, state, ok := h.orch.FinalPace()
	require.True(t, ok)
	assert.Equal(t, "-60.0", text)
	assert.Equal(t, timer.Ahead, state)

	require.NoError(t, h.orch.Finish(ctx, true, 0))
	assert.False(t, h.orch.Running())
	assert.False(t, h.store.IsRunActive())
	agg := h.store.Aggregates()
	assert.Equal(t, 200.0, agg.Run.Fastest)
	assert.Equal(t, 3, agg.Run.Count)

	history := h.store.History()
	require.Len(t, history, 4)
	assert.True(t, history[2].RunFinished)
	assert.Equal(t, 240.0, history[2].FinalTime)
	assert.Equal(t, 50.0, history[2].Segment("kiln"))
}

func TestStartRunTwiceFails(t *testing.T) {
	h := newHarness(t, DefaultSettings(), nil)
	require.NoError(t, h.orch.StartRun(0, soloCategory))
	err := h.orch.StartRun(1, soloCategory)
	assert.True(t, errors.Is(err, errors.ERunActive))
}

func TestEnterStageWithoutRun(t *testing.T) {
	h := newHarness(t, DefaultSettings(), nil)
	err := h.orch.EnterStage(context.Background(), "tropics", 1)
	assert.True(t, errors.Is(err, errors.EInvalidState))
	err = h.orch.Finish(context.Background(), true, 1)
	assert.True(t, errors.Is(err, errors.ENoActiveRun))
}

func TestSkippedStageHasNoTime(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultSettings(), nil)
	require.NoError(t, h.orch.StartRun(0, soloCategory))
	require.NoError(t, h.orch.EnterStage(ctx, "alpine", 30))

	cur, _ := h.store.Current()
	assert.Equal(t, 30.0, cur.Segment("shore"))
	assert.Equal(t, model.Unset, cur.Segment("tropics"))
	assert.False(t, h.timerFor(t, "tropics").EverStarted())
	st, ok := h.orch.Stage()
	require.True(t, ok)
	assert.Equal(t, "alpine", st.Name)
}

func TestNearGoalTrigger(t *testing.T) {
	h := newHarness(t, DefaultSettings(), nil)
	h.store.Ingest(pastRun(300, 50, 60))
	assert.False(t, h.orch.NearGoal(1), "no run")

	require.NoError(t, h.orch.StartRun(0, soloCategory))
	assert.False(t, h.orch.NearGoal(200))
	assert.False(t, h.pace["shore"].Visible())
	assert.True(t, h.orch.NearGoal(120))
	assert.True(t, h.pace["shore"].Visible())

	settings := DefaultSettings()
	settings.TriggerDistance = timer.MinTriggerDistance
	off := newHarness(t, settings, nil)
	require.NoError(t, off.orch.StartRun(0, soloCategory))
	assert.False(t, off.orch.NearGoal(0))
}

func TestFinalPaceOnlyIfRecord(t *testing.T) {
	ctx := context.Background()
	settings := DefaultSettings()
	settings.OnlyFinalPaceIfRecord = true
	h := newHarness(t, settings, nil)
	h.store.Ingest(pastRun(100))

	require.NoError(t, h.orch.StartRun(0, soloCategory))
	h.clk.Set(130)
	require.NoError(t, h.orch.ReachTerminal(ctx, 130))
	_, _, ok := h.orch.FinalPace()
	assert.False(t, ok)

	settings.OnlyFinalPaceIfRecord = false
	require.NoError(t, h.orch.ApplySettings(settings))
	text, state, ok := h.orch.FinalPace()
	require.True(t, ok)
	assert.Equal(t, "+30.0", text)
	assert.Equal(t, timer.Behind, state)
}

func TestUseAverageTargets(t *testing.T) {
	settings := DefaultSettings()
	settings.UseAverage = true
	h := newHarness(t, settings, nil)
	h.store.Ingest(pastRun(100, 20, 30))
	h.store.Ingest(pastRun(140, 40, 50))

	require.NoError(t, h.orch.StartRun(0, soloCategory))
	main, _ := h.orch.Main()
	target, _ := main.Target()
	assert.Equal(t, 120.0, target)
	tropics, _ := h.timerFor(t, "tropics").Target()
	assert.Equal(t, 70.0, tropics)
	record, _ := h.timerFor(t, "shore").Record()
	assert.Equal(t, 30.0, record)
	_, ok := h.timerFor(t, "alpine").Target()
	assert.False(t, ok)
}

func TestSplitSaveFailureKeepsTiming(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{fail: true}
	h := newHarness(t, DefaultSettings(), backend)
	require.NoError(t, h.orch.StartRun(0, soloCategory))

	err := h.orch.EnterStage(ctx, "tropics", 12)
	assert.True(t, errors.Is(err, errors.EPersistFailed))
	assert.True(t, h.timerFor(t, "tropics").IsRunning())

	h.clk.Set(40)
	err = h.orch.Finish(ctx, true, 0)
	assert.True(t, errors.Is(err, errors.EPersistFailed))
	assert.True(t, h.orch.Running(), "failed save keeps the run open for retry")
	assert.True(t, h.orch.Closing())
	assert.True(t, h.store.IsRunActive())
	assert.Equal(t, "saving run", h.orch.Summary())
	assert.False(t, h.timerFor(t, "tropics").IsRunning())
	assert.True(t, errors.Is(h.orch.EnterStage(ctx, "alpine", 41), errors.EInvalidState))
	assert.True(t, errors.Is(h.orch.StartRun(41, soloCategory), errors.ERunActive))

	backend.fail = false
	h.clk.Set(60)
	require.NoError(t, h.orch.Finish(ctx, false, 0))
	assert.False(t, h.orch.Running())
	assert.False(t, h.orch.Closing())
	assert.False(t, h.store.IsRunActive())

	history := h.store.History()
	require.Len(t, history, 1)
	assert.True(t, history[0].RunFinished, "a retry keeps the first outcome")
	assert.Equal(t, 40.0, history[0].FinalTime)
	assert.Equal(t, 12.0, history[0].Segment("shore"))

	require.NoError(t, h.orch.StartRun(70, soloCategory))
	assert.True(t, h.orch.Running())
}

func TestSecondRunStartsFresh(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, DefaultSettings(), nil)
	h.store.Ingest(pastRun(300, 50, 60, 70, 60, 60))

	require.NoError(t, h.orch.StartRun(0, soloCategory))
	require.NoError(t, h.orch.EnterStage(ctx, "tropics", 40))
	require.NoError(t, h.orch.EnterStage(ctx, "alpine", 100))
	h.clk.Set(120)
	require.NoError(t, h.orch.Finish(ctx, false, 0))
	require.True(t, h.pace["tropics"].Visible())

	h.clk.Set(200)
	require.NoError(t, h.orch.StartRun(200, soloCategory))
	for _, name := range []string{"shore", "tropics", "alpine"} {
		assert.False(t, h.pace[name].Visible(), name)
		assert.False(t, h.timerFor(t, name).PaceShown(), name)
	}
	tropics := h.timerFor(t, "tropics")
	assert.Equal(t, timer.NeverStarted, tropics.State())
	assert.Equal(t, "0:00.0", h.text["tropics"].Text())
	assert.True(t, h.timerFor(t, "shore").IsRunning())

	require.NoError(t, h.orch.EnterStage(ctx, "alpine", 230))
	assert.Equal(t, "0:00.0", h.text["tropics"].Text(), "a skipped stage shows no time from the last run")
}

func TestRunRecordListsEveryStage(t *testing.T) {
	h := newHarness(t, DefaultSettings(), nil)
	require.NoError(t, h.orch.StartRun(0, soloCategory))
	require.NoError(t, h.orch.EnterStage(context.Background(), "tropics", 10))

	cur, ok := h.orch.CurrentRun()
	require.True(t, ok)
	assert.ElementsMatch(t, StageNames(DefaultStages()), cur.SegmentNames())
	assert.Equal(t, 10.0, cur.Segment("shore"))
	assert.Equal(t, model.Unset, cur.Segment("kiln"))
}

func TestClockModeLockedDuringRun(t *testing.T) {
	h := newHarness(t, DefaultSettings(), nil)
	require.NoError(t, h.orch.StartRun(0, soloCategory))
	settings := DefaultSettings()
	settings.RealTime = true
	err := h.orch.ApplySettings(settings)
	assert.True(t, errors.Is(err, errors.EInvalidState))

	require.NoError(t, h.orch.Finish(context.Background(), false, 0))
	require.NoError(t, h.orch.ApplySettings(settings))
	main, _ := h.orch.Main()
	assert.Equal(t, clock.Wall, main.ClockMode())
}

func TestNewValidatesStages(t *testing.T) {
	store := records.New(nil)
	_, err := New(Options{Records: store, Stages: []Stage{{Name: "a"}, {Name: "a"}}})
	assert.True(t, errors.Is(err, errors.EInvalidConfig))

	_, err = New(Options{Records: store, Stages: []Stage{{Name: "a"}}, Terminal: "a"})
	assert.True(t, errors.Is(err, errors.EInvalidConfig))

	_, err = New(Options{})
	assert.True(t, errors.Is(err, errors.EInvalidConfig))

	o, err := New(Options{Records: store, Settings: Settings{Timers: true}})
	require.NoError(t, err)
	_, ok := o.Main()
	assert.True(t, ok)
	_, ok = o.Timer("shore")
	assert.False(t, ok, "segment timers disabled")
	assert.Empty(t, o.Components())
}

func TestComponentsOrderedByStage(t *testing.T) {
	h := newHarness(t, DefaultSettings(), nil)
	var names []string
	for _, c := range h.orch.Components() {
		names = append(names, c.Name())
	}
	assert.Equal(t, StageNames(DefaultStages()), names)
	assert.Equal(t, DefaultStages()[0].Color.Scale(InitialColorScale), h.text["shore"].Color())
}
