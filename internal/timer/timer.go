// Package timer implements the split timer: a start/stop state machine over a
// selectable clock, with pace against a target time and gold-split colouring.
package timer

import (
	"github.com/verte-zerg/splits/internal/clock"
	"github.com/verte-zerg/splits/internal/display"
	"github.com/verte-zerg/splits/internal/errors"
)

// State is the timer lifecycle state.
type State int

const (
	NeverStarted State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "never-started"
	}
}

// MaxTimeTrigger is the pace-time trigger value at and above which the trigger is off.
const MaxTimeTrigger = 3600.0

// InactiveColorScale dims the pace colour once a timer stops.
const InactiveColorScale = 0.5

// Pace colours.
var (
	BehindColor = display.RGB(1.0, 0.553, 0.553)
	AheadColor  = display.RGB(0.687, 1.0, 0.605)
	GoldColor   = display.RGB(1.0, 0.896, 0.583)
)

// Colors are the timer text colours per lifecycle state.
type Colors struct {
	Initial  display.Color
	Active   display.Color
	Inactive display.Color
}

// DefaultColors returns grey before the first start, white while running and dark grey once stopped.
func DefaultColors() Colors {
	return Colors{
		Initial:  display.RGB(0.7, 0.7, 0.7),
		Active:   display.White,
		Inactive: display.RGB(0.4, 0.4, 0.4),
	}
}

// PaceSettings control when the pace line appears and how it is coloured.
type PaceSettings struct {
	Enabled bool
	OnStart bool
	OnEnd   bool
	// OnGold shows pace when a segment ends faster than its record.
	OnGold bool
	// TimeTrigger shows pace once it reaches this many seconds. Off at MaxTimeTrigger and above.
	TimeTrigger float64
	// Colored selects gold/ahead/behind colouring; otherwise pace mirrors the timer colour.
	Colored bool
}

// TimeTriggerEnabled reports whether the pace-time trigger is live.
func (p PaceSettings) TimeTriggerEnabled() bool {
	return p.Enabled && p.TimeTrigger < MaxTimeTrigger
}

// Options configure a Timer.
type Options struct {
	Name     string
	Priority int
	Height   float64
	Clock    clock.Source
	Mode     clock.Mode
	Format   Format
	Colors   *Colors
	Pace     PaceSettings
}

// Timer measures one interval at a time. It is not safe for concurrent use;
// the host drives it from a single update loop.
type Timer struct {
	info  *display.Info
	pace  display.Sink
	clock clock.Source
	mode  clock.Mode

	state State
	start float64
	end   float64

	runStart    float64
	hasRunStart bool

	target float64
	record float64

	format    Format
	colors    Colors
	settings  PaceSettings
	paceShown bool
	paceColor display.Color
}

// New creates a never-started timer writing its time to sink and its pace to paceSink.
// Either sink may be nil.
func New(opts Options, sink, paceSink display.Sink) *Timer {
	colors := DefaultColors()
	if opts.Colors != nil {
		colors = *opts.Colors
	}
	t := &Timer{
		clock:    opts.Clock,
		mode:     opts.Mode,
		pace:     paceSink,
		target:   -1,
		record:   -1,
		format:   opts.Format,
		colors:   colors,
		settings: opts.Pace,
	}
	t.info = display.NewInfo(display.InfoTemplate{
		Name:     opts.Name,
		Height:   opts.Height,
		Color:    &colors.Initial,
		Priority: opts.Priority,
	}, sink)
	display.SetVisible(paceSink, false)
	t.info.SetText(FormatTime(0, t.format))
	return t
}

// Name implements display.Component.
func (t *Timer) Name() string { return t.info.Name() }

// Priority implements display.Component.
func (t *Timer) Priority() int { return t.info.Priority() }

// Height implements display.Component.
func (t *Timer) Height() float64 { return t.info.Height() }

// GetHeight lets a Timer act as an animation target.
func (t *Timer) GetHeight() float64 { return t.info.Height() }

// SetHeight implements display.Component.
func (t *Timer) SetHeight(h float64) { t.info.SetHeight(h) }

// Text returns the last rendered time text.
func (t *Timer) Text() string { return t.info.Text() }

// Color returns the current timer text colour.
func (t *Timer) Color() display.Color { return t.info.Color() }

// State returns the lifecycle state.
func (t *Timer) State() State { return t.state }

// IsRunning reports whether the timer is counting.
func (t *Timer) IsRunning() bool { return t.state == Running }

// EverStarted reports whether the timer was ever started.
func (t *Timer) EverStarted() bool { return t.state != NeverStarted }

// ClockMode returns the clock the timer measures against.
func (t *Timer) ClockMode() clock.Mode { return t.mode }

// SetClockMode switches clocks. Rejected while running.
func (t *Timer) SetClockMode(m clock.Mode) error {
	if t.state == Running {
		return errors.NewWithDetails(errors.EInvalidState, "cannot change clock mode while running",
			map[string]string{"timer": t.Name(), "mode": m.String()})
	}
	t.mode = m
	return nil
}

// Now reads the timer's clock.
func (t *Timer) Now() float64 {
	return t.clock.Now(t.mode)
}

// Start begins timing now.
func (t *Timer) Start() bool {
	return t.StartAt(t.Now())
}

// StartAt begins timing at the given reading. Returns false if already running.
// Target and record times survive a restart.
func (t *Timer) StartAt(at float64) bool {
	if t.state == Running {
		return false
	}
	t.start = at
	t.end = 0
	t.state = Running
	if t.settings.OnStart {
		t.ShowPace()
	}
	t.info.SetColor(t.colors.Active)
	return true
}

// StartRun starts the timer and makes its start the run reference for pace.
func (t *Timer) StartRun() bool {
	return t.StartRunAt(t.Now())
}

// StartRunAt is StartRun at a given reading.
func (t *Timer) StartRunAt(at float64) bool {
	if !t.StartAt(at) {
		return false
	}
	t.SetRunStart(at)
	return true
}

// End stops timing now.
func (t *Timer) End() bool {
	return t.EndAt(t.Now())
}

// EndAt stops timing at the given reading. Returns false if not running.
// A reading before the start is clamped to the start.
func (t *Timer) EndAt(at float64) bool {
	if t.state != Running {
		return false
	}
	if at < t.start {
		at = t.start
	}
	t.end = at
	t.state = Stopped

	total := t.end - t.start
	t.render(total)
	if t.settings.OnEnd {
		t.ShowPace()
	}
	if t.settings.OnGold && t.record > 0 && total < t.record {
		t.ShowPace()
	}
	t.info.SetColor(t.colors.Inactive)
	if t.pace != nil && t.target > 0 && t.hasRunStart {
		t.paceColor = t.paceColor.Scale(InactiveColorScale)
		t.pace.SetDisplayColor(t.paceColor)
	}
	return true
}

// CurrTime is the live elapsed time while running, the frozen total once
// stopped, and zero before the first start.
func (t *Timer) CurrTime() float64 {
	switch t.state {
	case Running:
		return t.Now() - t.start
	case Stopped:
		return t.end - t.start
	default:
		return 0
	}
}

// TotalTime returns the stopped total. ok is false unless stopped.
func (t *Timer) TotalTime() (float64, bool) {
	if t.state != Stopped {
		return 0, false
	}
	return t.end - t.start, true
}

// StartInstant returns the last start reading.
func (t *Timer) StartInstant() (float64, bool) {
	return t.start, t.state != NeverStarted
}

// EndInstant returns the end reading. ok is false unless stopped.
func (t *Timer) EndInstant() (float64, bool) {
	return t.end, t.state == Stopped
}

// SetRunStart sets the run reference instant pace is measured from.
func (t *Timer) SetRunStart(at float64) {
	t.runStart = at
	t.hasRunStart = true
}

// RunStart returns the run reference instant.
func (t *Timer) RunStart() (float64, bool) {
	return t.runStart, t.hasRunStart
}

// SetTarget sets the comparison time. Values <= 0 disable pace.
func (t *Timer) SetTarget(v float64) { t.target = v }

// Target returns the comparison time. ok is false when unset.
func (t *Timer) Target() (float64, bool) { return t.target, t.target > 0 }

// SetRecord sets the best time for this timer's own interval. Values <= 0 disable gold.
func (t *Timer) SetRecord(v float64) { t.record = v }

// Record returns the best time. ok is false when unset.
func (t *Timer) Record() (float64, bool) { return t.record, t.record > 0 }

// RunTime is the time since the run reference, live while running.
func (t *Timer) RunTime() float64 {
	if !t.hasRunStart {
		return 0
	}
	switch t.state {
	case Running:
		return t.Now() - t.runStart
	case Stopped:
		return t.end - t.runStart
	default:
		return 0
	}
}

// Pace returns run time minus target. Negative is ahead.
// ok is false without a target, a run reference, or a start.
func (t *Timer) Pace() (float64, bool) {
	if t.target <= 0 || !t.hasRunStart || t.state == NeverStarted {
		return 0, false
	}
	return t.RunTime() - t.target, true
}

// PaceState classifies the current pace. ok mirrors Pace.
func (t *Timer) PaceState() (PaceState, bool) {
	pace, ok := t.Pace()
	if !ok {
		return Behind, false
	}
	return t.classify(t.CurrTime(), pace), true
}

// ShowPace makes the pace line visible. It stays until ResetPace.
func (t *Timer) ShowPace() {
	if !t.settings.Enabled || t.pace == nil {
		return
	}
	t.paceShown = true
	display.SetVisible(t.pace, true)
}

// PaceShown reports whether the pace line is visible.
func (t *Timer) PaceShown() bool { return t.paceShown }

// ResetPace hides the pace line.
func (t *Timer) ResetPace() {
	t.paceShown = false
	display.SetVisible(t.pace, false)
}

// SetPaceSettings replaces the pace settings.
func (t *Timer) SetPaceSettings(p PaceSettings) {
	t.settings = p
	if !p.Enabled && t.paceShown {
		t.ResetPace()
	}
}

// SetFormat changes how times render.
func (t *Timer) SetFormat(f Format) { t.format = f }

// SetInitialColor changes the pre-start colour. Reports whether it is visible now.
func (t *Timer) SetInitialColor(c display.Color) bool {
	t.colors.Initial = c
	if t.state == NeverStarted {
		return t.info.SetColor(c)
	}
	return false
}

// SetActiveColor changes the running colour. Reports whether it is visible now.
func (t *Timer) SetActiveColor(c display.Color) bool {
	t.colors.Active = c
	if t.state == Running {
		return t.info.SetColor(c)
	}
	return false
}

// SetInactiveColor changes the stopped colour. Reports whether it is visible now.
func (t *Timer) SetInactiveColor(c display.Color) bool {
	t.colors.Inactive = c
	if t.state == Stopped {
		return t.info.SetColor(c)
	}
	return false
}

// Colors returns the configured colours.
func (t *Timer) Colors() Colors { return t.colors }

// Update re-renders a running timer. Called once per host tick.
func (t *Timer) Update() {
	if t.state == Running {
		t.render(t.CurrTime())
	}
}

func (t *Timer) render(elapsed float64) {
	t.info.SetText(FormatTime(elapsed, t.format))
	if t.pace == nil || t.target <= 0 || !t.hasRunStart {
		return
	}
	pace := elapsed + (t.start - t.runStart) - t.target
	if !t.paceShown && t.settings.TimeTriggerEnabled() && pace >= t.settings.TimeTrigger {
		t.ShowPace()
	}

	t.pace.SetDisplayText(FormatTime(pace, t.paceFormat()))
	if t.settings.Colored {
		t.paceColor = t.classify(elapsed, pace).Color()
	} else {
		t.paceColor = t.info.Color()
	}
	t.pace.SetDisplayColor(t.paceColor)
}

func (t *Timer) paceFormat() Format {
	precision := t.format.Precision
	if precision > 1 {
		precision = 1
	}
	return Format{HideMinute: true, Precision: precision, ShowSign: true}
}

func (t *Timer) classify(elapsed, pace float64) PaceState {
	switch {
	case t.record > 0 && elapsed < t.record:
		return Gold
	case pace <= 0:
		return Ahead
	default:
		return Behind
	}
}
