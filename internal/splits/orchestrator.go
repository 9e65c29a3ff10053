// Package splits sequences the run: it owns the main and per-stage timers,
// moves them through the ordered stages, snapshots targets from the record
// store at run start and persists at each split.
package splits

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/verte-zerg/splits/internal/clock"
	"github.com/verte-zerg/splits/internal/display"
	"github.com/verte-zerg/splits/internal/errors"
	"github.com/verte-zerg/splits/internal/interp"
	"github.com/verte-zerg/splits/internal/logging"
	"github.com/verte-zerg/splits/internal/model"
	"github.com/verte-zerg/splits/internal/records"
	"github.com/verte-zerg/splits/internal/timer"
)

// Display sizes.
const (
	HeaderSize     = 50.0
	ActiveSize     = 38.0
	InactiveSize   = 30.0
	ResizeDuration = 0.4

	InitialColorScale  = 0.7
	InactiveColorScale = 0.5

	// MainTimerName names the whole-run timer.
	MainTimerName = "main"
)

// Settings are the user-facing switches the orchestrator honours.
type Settings struct {
	RealTime      bool
	Timers        bool
	SegmentTimers bool

	Pace timer.PaceSettings
	// AlwaysShowRunPace shows the main timer pace from run start.
	AlwaysShowRunPace bool
	UseAverage        bool
	// TriggerDistance shows a segment's pace once the player is this close to
	// its goal. timer.MinTriggerDistance or less disables it.
	TriggerDistance       float64
	Precision             int
	ColorSegments         bool
	OnlyFinalPaceIfRecord bool
	// ShowCategory shows the active category label on the overlay.
	ShowCategory bool

	Categorize records.Rules
}

// DefaultSettings mirror the configuration defaults.
func DefaultSettings() Settings {
	return Settings{
		Timers:        true,
		SegmentTimers: true,
		Pace: timer.PaceSettings{
			Enabled:     true,
			OnEnd:       true,
			OnGold:      true,
			TimeTrigger: -60,
			Colored:     true,
		},
		TriggerDistance: 170,
		Precision:       1,
		ColorSegments:   true,
		Categorize:      records.Rules{PlayerCount: true, Ascent: true, Randomizer: true},
	}
}

// SinkFactory returns the text and pace sinks for a timer. Either may be nil.
type SinkFactory func(name string) (text, pace display.Sink)

// Options configure an Orchestrator.
type Options struct {
	Stages   []Stage
	Terminal string
	Settings Settings
	Clock    clock.Source
	Records  *records.Store
	Sinks    SinkFactory
	Animator *interp.Animator
	// Retry builds the backoff used when finishing a run. Nil uses records.DefaultRetry.
	Retry func() backoff.BackOff
	Log   logrus.FieldLogger
}

// Orchestrator drives one run at a time. It is not safe for concurrent use;
// the host calls it from its update loop.
type Orchestrator struct {
	stages   []Stage
	index    map[string]int
	terminal string
	settings Settings

	clock   clock.Source
	records *records.Store
	sinks   SinkFactory
	anim    *interp.Animator
	retry   func() backoff.BackOff
	log     logrus.FieldLogger

	main    *timer.Timer
	timers  map[string]*timer.Timer
	list    display.List
	current int
	running bool
	reached bool
	// closing is set once Finish has stopped the timers but the save failed.
	closing bool
}

// New validates the stage list and builds the timers.
func New(opts Options) (*Orchestrator, error) {
	stages := opts.Stages
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	terminal := opts.Terminal
	if terminal == "" {
		terminal = DefaultTerminal
	}
	index := make(map[string]int, len(stages))
	for i, s := range stages {
		if s.Name == "" {
			return nil, errors.New(errors.EInvalidConfig, "stage name is empty")
		}
		if _, dup := index[s.Name]; dup {
			return nil, errors.NewWithDetails(errors.EInvalidConfig, "duplicate stage", map[string]string{"stage": s.Name})
		}
		index[s.Name] = i
	}
	if _, clash := index[terminal]; clash {
		return nil, errors.NewWithDetails(errors.EInvalidConfig, "terminal stage must not be a timed stage", map[string]string{"stage": terminal})
	}
	if opts.Records == nil {
		return nil, errors.New(errors.EInvalidConfig, "record store is required")
	}

	o := &Orchestrator{
		stages:   stages,
		index:    index,
		terminal: terminal,
		settings: opts.Settings,
		clock:    opts.Clock,
		records:  opts.Records,
		sinks:    opts.Sinks,
		anim:     opts.Animator,
		retry:    opts.Retry,
		log:      logging.OrDiscard(opts.Log),
		current:  -1,
	}
	if o.anim == nil {
		o.anim = interp.NewAnimator(func() float64 { return o.clock.Now(clock.Wall) }, o.log)
	}
	if o.retry == nil {
		o.retry = records.DefaultRetry
	}
	o.build()
	return o, nil
}

func (o *Orchestrator) sinksFor(name string) (display.Sink, display.Sink) {
	if o.sinks == nil {
		return nil, nil
	}
	return o.sinks(name)
}

func (o *Orchestrator) build() {
	o.main = nil
	o.timers = map[string]*timer.Timer{}
	o.list = display.List{}
	if !o.settings.Timers {
		return
	}

	format := timer.Format{Precision: o.settings.Precision}
	mode := clock.ModeFor(o.settings.RealTime)

	mainColors := timer.DefaultColors()
	mainColors.Inactive = display.RGB(0.7, 0.7, 0.7)
	text, pace := o.sinksFor(MainTimerName)
	o.main = timer.New(timer.Options{
		Name:   MainTimerName,
		Height: HeaderSize,
		Clock:  o.clock,
		Mode:   mode,
		Format: format,
		Colors: &mainColors,
		Pace:   o.settings.Pace,
	}, text, pace)

	if !o.settings.SegmentTimers {
		return
	}
	for i, s := range o.stages {
		color := display.White
		if o.settings.ColorSegments {
			color = s.Color
		}
		colors := timer.Colors{
			Initial:  color.Scale(InitialColorScale),
			Active:   color,
			Inactive: color.Scale(InactiveColorScale),
		}
		text, pace := o.sinksFor(s.Name)
		t := timer.New(timer.Options{
			Name:     s.Name,
			Priority: 10 * (i + 1),
			Height:   InactiveSize,
			Clock:    o.clock,
			Mode:     mode,
			Format:   format,
			Colors:   &colors,
			Pace:     o.settings.Pace,
		}, text, pace)
		o.timers[s.Name] = t
		o.list.Add(t)
	}
}

// Reset discards the timers of a finished run and builds fresh ones.
// Rejected while a run is in progress.
func (o *Orchestrator) Reset() error {
	if o.running {
		return errors.New(errors.EInvalidState, "cannot reset during a run")
	}
	o.anim.Stop()
	o.current = -1
	o.reached = false
	o.closing = false
	o.build()
	return nil
}

// Settings returns the active settings.
func (o *Orchestrator) Settings() Settings { return o.settings }

// ApplySettings rebuilds the timers outside a run. During a run only pace
// settings change, and a clock mode change is rejected.
func (o *Orchestrator) ApplySettings(s Settings) error {
	if o.running && s.RealTime != o.settings.RealTime {
		return errors.New(errors.EInvalidState, "cannot change clock mode during a run")
	}
	o.settings = s
	if o.running {
		for _, t := range o.allTimers() {
			t.SetPaceSettings(s.Pace)
		}
		return nil
	}
	o.build()
	return nil
}

// Stages returns the ordered stages.
func (o *Orchestrator) Stages() []Stage {
	out := make([]Stage, len(o.stages))
	copy(out, o.stages)
	return out
}

// Terminal returns the name of the terminal stage.
func (o *Orchestrator) Terminal() string { return o.terminal }

// Main returns the whole-run timer. ok is false when timers are disabled.
func (o *Orchestrator) Main() (*timer.Timer, bool) {
	return o.main, o.main != nil
}

// Timer returns the timer for stage. ok is false for unknown or untimed stages.
func (o *Orchestrator) Timer(stage string) (*timer.Timer, bool) {
	t, ok := o.timers[stage]
	return t, ok
}

// Components returns segment timers ordered for layout.
func (o *Orchestrator) Components() []display.Component {
	return o.list.Items()
}

// Stage returns the active stage. ok is false outside a run or after the terminal.
func (o *Orchestrator) Stage() (Stage, bool) {
	if o.current < 0 || o.current >= len(o.stages) {
		return Stage{}, false
	}
	return o.stages[o.current], true
}

// Running reports whether a run is in progress.
func (o *Orchestrator) Running() bool { return o.running }

// Closing reports whether the run was finished but its save failed. Finish
// retries the save.
func (o *Orchestrator) Closing() bool { return o.closing }

// CurrentRun returns a copy of the open run record.
func (o *Orchestrator) CurrentRun() (model.RunRecord, bool) {
	return o.records.Current()
}

// Animator returns the animator driving timer sizes.
func (o *Orchestrator) Animator() *interp.Animator { return o.anim }

// Now reads the configured clock.
func (o *Orchestrator) Now() float64 {
	return o.clock.Now(clock.ModeFor(o.settings.RealTime))
}

// StartRun opens a run in the record store at reading at, starts the main
// timer and the first stage, and snapshots targets from current records.
// The previous run's timers are replaced with fresh ones.
func (o *Orchestrator) StartRun(at float64, category model.Category) error {
	if o.running {
		return errors.New(errors.ERunActive, "a run is already in progress")
	}
	if o.records.IsRunActive() {
		return errors.New(errors.ERunActive, "the record store already has an open run")
	}
	if err := o.Reset(); err != nil {
		return err
	}
	run, err := o.records.StartNewRun(category, o.settings.RealTime)
	if err != nil {
		return err
	}
	// Every stage is present in the record, unset until it is timed.
	if err := o.records.UpdateCurrent(func(r *model.RunRecord) {
		for _, s := range o.stages {
			r.SetSegment(s.Name, model.Unset)
		}
	}); err != nil {
		return err
	}

	filter := records.IncludeAll
	if o.settings.Categorize.Any() {
		filter = records.CategoryFilter(o.settings.Categorize, category)
	}
	o.records.SetCategorization(filter)
	agg := o.records.Recompute(filter)
	o.applyTargets(agg)

	if o.main != nil {
		o.main.StartRunAt(at)
		if o.settings.AlwaysShowRunPace {
			o.main.ShowPace()
		}
	}
	for _, t := range o.timers {
		t.SetRunStart(at)
	}
	o.running = true
	o.reached = false
	o.current = 0
	o.startStage(0, at)

	o.log.WithFields(logrus.Fields{
		"run":      run.ID,
		"category": records.CategoryLabel(o.settings.Categorize, category),
		"target":   o.targetOf(o.main),
	}).Info("run started")
	return nil
}

func (o *Orchestrator) targetOf(t *timer.Timer) float64 {
	if t == nil {
		return model.Unset
	}
	v, ok := t.Target()
	if !ok {
		return model.Unset
	}
	return v
}

func (o *Orchestrator) applyTargets(agg records.Aggregates) {
	cmp := agg.Comparison(o.settings.UseAverage)
	if o.main != nil {
		target := model.Unset
		if cmp.RunFinished && cmp.FinalTime > 0 {
			target = cmp.FinalTime
		}
		o.main.SetTarget(target)
	}
	targets := records.CumulativeTargets(cmp, StageNames(o.stages))
	for name, t := range o.timers {
		target, ok := targets[name]
		if !ok {
			target = model.Unset
		}
		t.SetTarget(target)
		t.SetRecord(agg.RecordFor(name, o.settings.UseAverage))
	}
}

// EnterStage moves the run into stage at reading at: the previous stage's
// timer ends, its time is recorded and saved, and the new stage's timer
// starts. Entering the terminal stage is ReachTerminal. Unknown stages and
// stages not after the current one are rejected.
func (o *Orchestrator) EnterStage(ctx context.Context, stage string, at float64) error {
	if stage == o.terminal {
		return o.ReachTerminal(ctx, at)
	}
	idx, ok := o.index[stage]
	if !ok {
		o.log.WithField("stage", stage).Warn("unknown stage")
		return errors.NewWithDetails(errors.ENotFound, "unknown stage", map[string]string{"stage": stage})
	}
	if !o.running || o.reached || o.closing {
		return errors.NewWithDetails(errors.EInvalidState, "no run in progress", map[string]string{"stage": stage})
	}
	if idx <= o.current {
		return errors.NewWithDetails(errors.EInvalidState, "stage already entered",
			map[string]string{"stage": stage, "current": o.stages[o.current].Name})
	}

	saveErr := o.endStage(ctx, o.current, at)
	o.current = idx
	o.startStage(idx, at)
	o.log.WithField("stage", stage).Info("split reached")
	return saveErr
}

// ReachTerminal ends the last stage and the main timer, then saves.
func (o *Orchestrator) ReachTerminal(ctx context.Context, at float64) error {
	if !o.running || o.reached || o.closing {
		return errors.NewWithDetails(errors.EInvalidState, "no run in progress", map[string]string{"stage": o.terminal})
	}
	saveErr := o.endStage(ctx, o.current, at)
	o.current = len(o.stages)
	o.reached = true
	if o.main != nil {
		o.main.EndAt(at)
		if o.proximityEnabled() {
			o.main.ShowPace()
		}
	}
	o.log.WithField("stage", o.terminal).Info("terminal stage reached")
	return saveErr
}

// Finish closes the run. A won run records finalTime and counts as finished;
// otherwise the final time is kept with the run marked unfinished. A
// finalTime of zero or less uses the main timer. Every timer still running is
// stopped without changing its pace visibility.
//
// When the save fails the run stays open and Finish can be called again to
// retry. A retry keeps the outcome recorded by the first call.
func (o *Orchestrator) Finish(ctx context.Context, won bool, finalTime float64) error {
	if !o.running {
		return errors.New(errors.ENoActiveRun, "no run in progress")
	}
	if !o.closing {
		if err := o.close(won, finalTime); err != nil {
			return err
		}
	}
	if err := o.records.FinishRunWithRetry(ctx, o.retry()); err != nil {
		o.log.WithError(err).Error("unable to save finished run")
		return err
	}
	o.running = false
	o.closing = false
	o.current = -1
	o.records.Recompute(nil)
	o.log.WithFields(logrus.Fields{"won": won, "final": finalTime}).Info("run finished")
	return nil
}

// close stops every timer and records the outcome on the open run.
func (o *Orchestrator) close(won bool, finalTime float64) error {
	at := o.Now()
	if o.main != nil {
		o.main.EndAt(at)
		if finalTime <= 0 {
			if total, ok := o.main.TotalTime(); ok {
				finalTime = total
			}
		}
	}
	for _, s := range o.stages {
		t := o.timers[s.Name]
		if t == nil || !t.IsRunning() {
			continue
		}
		shown := t.PaceShown()
		t.EndAt(at)
		if !shown {
			t.ResetPace()
		}
		o.anim.Animate(t, InactiveSize, ResizeDuration)
	}

	if err := o.records.UpdateCurrent(func(r *model.RunRecord) {
		r.FinalTime = finalTime
		r.RunFinished = won && finalTime > 0
	}); err != nil {
		return err
	}
	o.closing = true
	o.current = len(o.stages)
	return nil
}

// NearGoal reports the distance to the active stage's goal and shows its pace
// within the trigger distance.
func (o *Orchestrator) NearGoal(distance float64) bool {
	if !o.proximityEnabled() {
		return false
	}
	st, ok := o.Stage()
	if !ok {
		return false
	}
	t, ok := o.timers[st.Name]
	if !ok {
		return false
	}
	return t.NearGoal(distance, o.settings.TriggerDistance)
}

func (o *Orchestrator) proximityEnabled() bool {
	return o.settings.Pace.Enabled && o.settings.TriggerDistance > timer.MinTriggerDistance
}

// FinalPace returns the main timer's pace for an end screen. ok is false
// without a target, with pace disabled, or when only record paces are wanted
// and this run was behind.
func (o *Orchestrator) FinalPace() (text string, state timer.PaceState, ok bool) {
	if o.main == nil || !o.settings.Pace.Enabled {
		return "", timer.Behind, false
	}
	pace, ok := o.main.Pace()
	if !ok {
		return "", timer.Behind, false
	}
	if o.settings.OnlyFinalPaceIfRecord && pace > 0 {
		return "", timer.Behind, false
	}
	precision := o.settings.Precision
	if precision > 1 {
		precision = 1
	}
	state = timer.Behind
	if pace <= 0 {
		state = timer.Ahead
	}
	return timer.FormatTime(pace, timer.Format{HideMinute: true, Precision: precision, ShowSign: true}), state, true
}

// Tick advances animations and re-renders running timers. Call once per host frame.
func (o *Orchestrator) Tick() {
	o.anim.Tick()
	if o.main != nil {
		o.main.Update()
	}
	o.list.Update()
}

func (o *Orchestrator) startStage(idx int, at float64) {
	if idx < 0 || idx >= len(o.stages) {
		return
	}
	t, ok := o.timers[o.stages[idx].Name]
	if !ok {
		return
	}
	t.StartAt(at)
	o.anim.Animate(t, ActiveSize, ResizeDuration)
}

func (o *Orchestrator) endStage(ctx context.Context, idx int, at float64) error {
	if idx < 0 || idx >= len(o.stages) {
		return nil
	}
	name := o.stages[idx].Name
	t, ok := o.timers[name]
	if !ok || !t.EndAt(at) {
		return nil
	}
	o.anim.Animate(t, InactiveSize, ResizeDuration)

	total, _ := t.TotalTime()
	if err := o.records.UpdateCurrent(func(r *model.RunRecord) { r.SetSegment(name, total) }); err != nil {
		return err
	}
	if err := o.records.SaveCurrentRun(ctx); err != nil {
		o.log.WithError(err).WithField("stage", name).Error("unable to save split")
		return err
	}
	return nil
}

func (o *Orchestrator) allTimers() []*timer.Timer {
	out := make([]*timer.Timer, 0, len(o.timers)+1)
	if o.main != nil {
		out = append(out, o.main)
	}
	for _, s := range o.stages {
		if t, ok := o.timers[s.Name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Summary is a one-line description of the orchestrator state for logs.
func (o *Orchestrator) Summary() string {
	st, ok := o.Stage()
	switch {
	case o.closing:
		return "saving run"
	case o.reached:
		return fmt.Sprintf("at %s", o.terminal)
	case ok:
		return fmt.Sprintf("in %s", st.Label)
	default:
		return "idle"
	}
}
