package timer

import "github.com/verte-zerg/splits/internal/display"

// PaceState is the pace colouring class. Gold beats ahead beats behind.
type PaceState int

const (
	Behind PaceState = iota
	Ahead
	Gold
)

func (p PaceState) String() string {
	switch p {
	case Gold:
		return "gold"
	case Ahead:
		return "ahead"
	default:
		return "behind"
	}
}

// Color returns the pace colour for the state.
func (p PaceState) Color() display.Color {
	switch p {
	case Gold:
		return GoldColor
	case Ahead:
		return AheadColor
	default:
		return BehindColor
	}
}

// NearGoal shows pace when distance is within threshold. Thresholds of
// MinTriggerDistance or less disable the proximity trigger.
func (t *Timer) NearGoal(distance, threshold float64) bool {
	if threshold <= MinTriggerDistance || distance > threshold {
		return false
	}
	t.ShowPace()
	return t.paceShown
}

// MinTriggerDistance is the proximity threshold at and below which the trigger is off.
const MinTriggerDistance = 5.0
