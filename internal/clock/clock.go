// Package clock supplies second-resolution readings from wall or game time.
package clock

import (
	"sync"
	"time"
)

// Mode selects which clock a timer measures against.
type Mode int

const (
	// Game time advances with the host's simulation and may pause.
	Game Mode = iota
	// Wall time advances with the system clock.
	Wall
)

func (m Mode) String() string {
	switch m {
	case Wall:
		return "wall"
	case Game:
		return "game"
	default:
		return "unknown"
	}
}

// ModeFor maps the real-time setting to a Mode.
func ModeFor(realTime bool) Mode {
	if realTime {
		return Wall
	}
	return Game
}

// Func returns the current reading in seconds.
type Func func() float64

// Source holds one reading function per Mode.
type Source struct {
	WallFunc Func
	GameFunc Func
}

// Now returns the reading for mode. A missing function reads as zero.
func (s Source) Now(mode Mode) float64 {
	var fn Func
	switch mode {
	case Wall:
		fn = s.WallFunc
	default:
		fn = s.GameFunc
	}
	if fn == nil {
		return 0
	}
	return fn()
}

// SystemWall returns a Func counting seconds since it was created.
func SystemWall() Func {
	return WallSince(time.Now(), time.Now)
}

// WallSince returns seconds elapsed since ref according to now.
func WallSince(ref time.Time, now func() time.Time) Func {
	return func() float64 {
		return now().Sub(ref).Seconds()
	}
}

// Manual is a controllable clock for hosts that drive time themselves and for tests.
// Safe for concurrent use.
type Manual struct {
	mu      sync.Mutex
	current float64
	paused  bool
}

// NewManual creates a Manual clock starting at start seconds.
func NewManual(start float64) *Manual {
	return &Manual{current: start}
}

// Now returns the current reading.
func (m *Manual) Now() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Func adapts m to a Func.
func (m *Manual) Func() Func {
	return m.Now
}

// Advance moves the clock forward by d seconds unless paused. Negative values are ignored.
func (m *Manual) Advance(d float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.paused || d <= 0 {
		return
	}
	m.current += d
}

// Set jumps the clock to v if it does not move backwards.
func (m *Manual) Set(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v > m.current {
		m.current = v
	}
}

// SetPaused stops or resumes Advance, mimicking a paused simulation.
func (m *Manual) SetPaused(paused bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused = paused
}
