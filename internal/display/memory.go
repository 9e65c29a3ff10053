package display

import "sync"

// MemorySink is a headless Sink that remembers what it was sent.
// Safe for concurrent use so a renderer may read while the core writes.
type MemorySink struct {
	mu      sync.RWMutex
	text    string
	color   Color
	height  float64
	hidden  bool
	updates int
}

// NewMemorySink returns a visible sink with the given initial height.
func NewMemorySink(height float64) *MemorySink {
	return &MemorySink{height: height}
}

// SetDisplayText implements Sink.
func (m *MemorySink) SetDisplayText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.text = text
	m.updates++
}

// SetDisplayColor implements Sink.
func (m *MemorySink) SetDisplayColor(c Color) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.color = c
}

// SetHeight implements Sink.
func (m *MemorySink) SetHeight(h float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height = h
}

// GetHeight implements Sink.
func (m *MemorySink) GetHeight() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.height
}

// SetVisible implements Visibility.
func (m *MemorySink) SetVisible(visible bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hidden = !visible
}

// Text returns the last text.
func (m *MemorySink) Text() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.text
}

// Color returns the last colour.
func (m *MemorySink) Color() Color {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.color
}

// Visible reports whether the sink is shown.
func (m *MemorySink) Visible() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.hidden
}

// Updates counts text writes.
func (m *MemorySink) Updates() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updates
}
