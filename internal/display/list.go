package display

import "sort"

// List keeps components ordered by ascending priority. Components with equal
// priority keep insertion order.
type List struct {
	items []Component
}

// Add inserts c after every component with priority <= c.Priority().
// Adding a component already present is a no-op.
func (l *List) Add(c Component) {
	if c == nil || l.index(c) >= 0 {
		return
	}
	idx := sort.Search(len(l.items), func(i int) bool {
		return l.items[i].Priority() > c.Priority()
	})
	l.items = append(l.items, nil)
	copy(l.items[idx+1:], l.items[idx:])
	l.items[idx] = c
}

// Remove deletes c. Reports whether it was present.
func (l *List) Remove(c Component) bool {
	idx := l.index(c)
	if idx < 0 {
		return false
	}
	l.items = append(l.items[:idx], l.items[idx+1:]...)
	return true
}

// Reorder re-inserts c after its priority changed.
func (l *List) Reorder(c Component) {
	if l.Remove(c) {
		l.Add(c)
	}
}

// Len returns the number of components.
func (l *List) Len() int { return len(l.items) }

// Items returns a copy of the ordered components.
func (l *List) Items() []Component {
	out := make([]Component, len(l.items))
	copy(out, l.items)
	return out
}

// Update calls Update on every component in order.
func (l *List) Update() {
	for _, c := range l.items {
		c.Update()
	}
}

func (l *List) index(c Component) int {
	for i, item := range l.items {
		if item == c {
			return i
		}
	}
	return -1
}
