// Package display defines the capability interface the core drives and the
// plain info display built on it. The core owns no rendering.
package display

import (
	"fmt"
	"math"
)

// Color is an RGB colour with channels in [0, 1].
type Color struct {
	R, G, B float64
}

// RGB builds a Color.
func RGB(r, g, b float64) Color {
	return Color{R: r, G: g, B: b}
}

// White is the neutral text colour.
var White = RGB(1, 1, 1)

// Scale multiplies every channel by f, clamped to [0, 1].
func (c Color) Scale(f float64) Color {
	return Color{R: clamp01(c.R * f), G: clamp01(c.G * f), B: clamp01(c.B * f)}
}

// Hex returns the colour as "#RRGGBB".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02X%02X%02X", channel(c.R), channel(c.G), channel(c.B))
}

func channel(v float64) int {
	return int(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Sink is the host-side element a display writes to.
type Sink interface {
	SetDisplayText(text string)
	SetDisplayColor(c Color)
	SetHeight(h float64)
	GetHeight() float64
}

// Visibility is implemented by sinks that can be hidden.
type Visibility interface {
	SetVisible(visible bool)
}

// SetVisible hides or shows s. Sinks without visibility control get empty text when hidden.
func SetVisible(s Sink, visible bool) {
	if s == nil {
		return
	}
	if v, ok := s.(Visibility); ok {
		v.SetVisible(visible)
		return
	}
	if !visible {
		s.SetDisplayText("")
	}
}

// Component is anything the host lays out.
type Component interface {
	Name() string
	Priority() int
	Height() float64
	SetHeight(h float64)
	Update()
}
