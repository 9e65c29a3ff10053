package display

// DefaultInfoColor is the text colour of info displays without one.
var DefaultInfoColor = RGB(0.9, 0.9, 0.9)

// TextFunc returns the text to show. ok=false means the data is temporarily
// unavailable and the last text stays on screen.
type TextFunc func() (text string, ok bool)

// InfoTemplate describes a plain info display.
type InfoTemplate struct {
	Name     string
	Text     TextFunc
	Height   float64
	Color    *Color
	Priority int
}

// Info is the plain display variant: a text provider bound to a sink.
type Info struct {
	name     string
	priority int
	sink     Sink
	text     TextFunc
	color    Color
	lastText string
}

// NewInfo binds a template to a sink and pushes the initial colour and height.
func NewInfo(tpl InfoTemplate, sink Sink) *Info {
	color := DefaultInfoColor
	if tpl.Color != nil {
		color = *tpl.Color
	}
	info := &Info{
		name:     tpl.Name,
		priority: tpl.Priority,
		sink:     sink,
		text:     tpl.Text,
	}
	info.SetColor(color)
	if tpl.Height > 0 {
		info.SetHeight(tpl.Height)
	}
	return info
}

// Name implements Component.
func (i *Info) Name() string { return i.name }

// Priority implements Component. Lower sorts first.
func (i *Info) Priority() int { return i.priority }

// Height implements Component.
func (i *Info) Height() float64 {
	if i.sink == nil {
		return 0
	}
	return i.sink.GetHeight()
}

// SetHeight implements Component.
func (i *Info) SetHeight(h float64) {
	if i.sink != nil {
		i.sink.SetHeight(h)
	}
}

// GetHeight lets an Info act as an animation target.
func (i *Info) GetHeight() float64 { return i.Height() }

// Color returns the last colour set.
func (i *Info) Color() Color { return i.color }

// SetColor stores c and forwards it to the sink. Reports whether a sink received it.
func (i *Info) SetColor(c Color) bool {
	i.color = c
	if i.sink == nil {
		return false
	}
	i.sink.SetDisplayColor(c)
	return true
}

// SetText writes text straight to the sink.
func (i *Info) SetText(text string) {
	i.lastText = text
	if i.sink != nil {
		i.sink.SetDisplayText(text)
	}
}

// Text returns the last text written.
func (i *Info) Text() string { return i.lastText }

// Update pulls from the text provider. Unavailable data keeps the last text.
func (i *Info) Update() {
	if i.text == nil {
		return
	}
	text, ok := i.text()
	if !ok {
		return
	}
	i.SetText(text)
}

// Sink returns the bound sink.
func (i *Info) Sink() Sink { return i.sink }
