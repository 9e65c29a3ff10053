package splits

import "github.com/verte-zerg/splits/internal/display"

// Stage is one named segment of a run.
type Stage struct {
	Name  string
	Label string
	Color display.Color
}

// DefaultTerminal is the stage that ends a run.
const DefaultTerminal = "peak"

// DefaultStages returns the five climbing segments in order.
func DefaultStages() []Stage {
	return []Stage{
		{Name: "shore", Label: "Shore", Color: display.RGB(1.0, 0.923, 0.632)},
		{Name: "tropics", Label: "Tropics", Color: display.RGB(0.557, 1.0, 0.566)},
		{Name: "alpine", Label: "Alpmesa", Color: display.RGB(0.25, 1.0, 0.984)},
		{Name: "caldera", Label: "Caldera", Color: display.RGB(1.0, 0.578, 0.25)},
		{Name: "kiln", Label: "The Kiln", Color: display.RGB(1.0, 0.344, 0.25)},
	}
}

// StageNames returns the names of stages in order.
func StageNames(stages []Stage) []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name
	}
	return names
}
