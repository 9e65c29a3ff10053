package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/splits/internal/display"
	"github.com/verte-zerg/splits/internal/splits"
)

// Sink is a terminal display for one timer line.
type Sink struct {
	text    string
	color   display.Color
	height  float64
	visible bool
}

// NewSink returns a visible, empty sink.
func NewSink() *Sink {
	return &Sink{color: display.White, visible: true}
}

func (s *Sink) SetDisplayText(text string) { s.text = text }

func (s *Sink) SetDisplayColor(c display.Color) { s.color = c }

func (s *Sink) SetHeight(h float64) { s.height = h }

func (s *Sink) GetHeight() float64 { return s.height }

func (s *Sink) SetVisible(visible bool) { s.visible = visible }

// Visible reports whether the sink is shown.
func (s *Sink) Visible() bool { return s.visible }

// Text returns the last text written.
func (s *Sink) Text() string { return s.text }

// Render styles the text with its colour. Lines at or above the active size
// render bold so the current stage stands out while its size animates.
func (s *Sink) Render() string {
	if !s.visible || s.text == "" {
		return ""
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(s.color.Hex()))
	if s.height >= splits.ActiveSize {
		style = style.Bold(true)
	}
	return style.Render(s.text)
}

// Sinks hands out one text and one pace sink per timer name.
type Sinks struct {
	text map[string]*Sink
	pace map[string]*Sink
}

// NewSinks creates an empty set.
func NewSinks() *Sinks {
	return &Sinks{text: map[string]*Sink{}, pace: map[string]*Sink{}}
}

// Factory creates fresh sinks for name, replacing any previous pair.
func (s *Sinks) Factory(name string) (display.Sink, display.Sink) {
	text, pace := NewSink(), NewSink()
	s.text[name] = text
	s.pace[name] = pace
	return text, pace
}

// Text returns the text sink for name.
func (s *Sinks) Text(name string) (*Sink, bool) {
	sink, ok := s.text[name]
	return sink, ok
}

// Pace returns the pace sink for name.
func (s *Sinks) Pace(name string) (*Sink, bool) {
	sink, ok := s.pace[name]
	return sink, ok
}
