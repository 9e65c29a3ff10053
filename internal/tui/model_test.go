package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/splits/internal/clock"
	"github.com/verte-zerg/splits/internal/model"
	"github.com/verte-zerg/splits/internal/records"
	"github.com/verte-zerg/splits/internal/splits"
)

type fixture struct {
	m     *Model
	game  *clock.Manual
	sinks *Sinks
	store *records.Store
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, splits.DefaultSettings())
}

func newFixtureWith(t *testing.T, settings splits.Settings) *fixture {
	t.Helper()
	game := clock.NewManual(0)
	sinks := NewSinks()
	store := records.New(nil)
	orch, err := splits.New(splits.Options{
		Settings: settings,
		Clock:    clock.Source{WallFunc: game.Func(), GameFunc: game.Func()},
		Records:  store,
		Sinks:    sinks.Factory,
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	f := &fixture{
		game:  game,
		sinks: sinks,
		store: store,
		now:   time.Unix(1000, 0),
	}
	f.m = NewModel(Options{Orchestrator: orch, Sinks: sinks, Game: game, Category: model.Category{PlayerCount: 1}})
	f.frame(0)
	return f
}

func (f *fixture) frame(d time.Duration) {
	f.now = f.now.Add(d)
	f.m.Update(frameMsg(f.now))
}

func (f *fixture) press(s string) tea.Cmd {
	_, cmd := f.m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return cmd
}

func (f *fixture) text(t *testing.T, name string) string {
	t.Helper()
	sink, ok := f.sinks.Text(name)
	if !ok {
		t.Fatalf("no sink for %s", name)
	}
	return sink.Text()
}

func TestKeyboardDrivesRun(t *testing.T) {
	f := newFixture(t)
	f.press("s")
	if !f.m.orch.Running() {
		t.Fatalf("expected a run in progress, status %q", f.m.status)
	}
	f.frame(2 * time.Second)
	if got := f.text(t, splits.MainTimerName); got != "0:02.0" {
		t.Fatalf("unexpected main timer text: %q", got)
	}
	if got := f.text(t, "shore"); got != "0:02.0" {
		t.Fatalf("unexpected shore timer text: %q", got)
	}

	f.press("n")
	st, ok := f.m.orch.Stage()
	if !ok || st.Name != "tropics" {
		t.Fatalf("expected tropics, got %+v", st)
	}
	cur, _ := f.store.Current()
	if cur.Segment("shore") != 2 {
		t.Fatalf("expected shore split of 2s, got %v", cur.Segment("shore"))
	}

	f.press("p")
	f.frame(time.Second)
	if got := f.text(t, splits.MainTimerName); got != "0:02.0" {
		t.Fatalf("paused game clock should hold the timer, got %q", got)
	}
	f.press("p")
	f.frame(time.Second)
	if got := f.text(t, splits.MainTimerName); got != "0:03.0" {
		t.Fatalf("unexpected main timer text after resume: %q", got)
	}

	view := f.m.View()
	if !containsAll(view, []string{"SPLITS", "[game clock]", "Shore", "Tropics", "0:03.0", "in Tropics"}) {
		t.Fatalf("view missing expected segments:\n%s", view)
	}

	f.press("f")
	if f.m.orch.Running() || f.store.IsRunActive() {
		t.Fatalf("expected run to be closed")
	}
	if f.m.status != "run finished" {
		t.Fatalf("unexpected status: %q", f.m.status)
	}
}

func TestSplitWithoutRunReportsError(t *testing.T) {
	f := newFixture(t)
	f.press("n")
	if !f.m.failed || f.m.status != "no run in progress" {
		t.Fatalf("unexpected status: %q failed=%v", f.m.status, f.m.failed)
	}
	f.press("f")
	if !f.m.failed || !strings.Contains(f.m.status, "E_NO_ACTIVE_RUN") {
		t.Fatalf("unexpected status: %q", f.m.status)
	}
}

func TestSettingsWaitForRunEnd(t *testing.T) {
	f := newFixture(t)
	f.press("s")
	s := splits.DefaultSettings()
	s.RealTime = true
	f.m.Update(SettingsMsg{Settings: s})
	if f.m.orch.Settings().RealTime {
		t.Fatalf("settings must not apply mid-run")
	}
	f.press("x")
	if !f.m.orch.Settings().RealTime {
		t.Fatalf("pending settings should apply once the run ends")
	}
	if !strings.Contains(f.m.View(), "[wall clock]") {
		t.Fatalf("title should show the wall clock")
	}
}

func TestCategoryRow(t *testing.T) {
	f := newFixture(t)
	if strings.Contains(f.m.View(), "Category") {
		t.Fatalf("category row should be off by default")
	}

	settings := splits.DefaultSettings()
	settings.ShowCategory = true
	f = newFixtureWith(t, settings)
	if !containsAll(f.m.View(), []string{"Category", "1 SCOUT"}) {
		t.Fatalf("expected category row before the run:\n%s", f.m.View())
	}

	f.press("s")
	f.frame(time.Second)
	f.press("x")
	f.frame(time.Second)
	if f.m.catInfo.Text() != "1 SCOUT" {
		t.Fatalf("label should stay after the run, got %q", f.m.catInfo.Text())
	}

	settings.ShowCategory = false
	f.m.Update(SettingsMsg{Settings: settings})
	f.frame(time.Second)
	if strings.Contains(f.m.View(), "1 SCOUT") {
		t.Fatalf("category row should hide when switched off:\n%s", f.m.View())
	}
}

func TestQuitKey(t *testing.T) {
	f := newFixture(t)
	cmd := f.press("q")
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}

func TestSinkRender(t *testing.T) {
	s := NewSink()
	s.SetDisplayText("1:02.5")
	if !strings.Contains(s.Render(), "1:02.5") {
		t.Fatalf("unexpected render: %q", s.Render())
	}
	s.SetVisible(false)
	if s.Render() != "" {
		t.Fatalf("hidden sink should render nothing")
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
