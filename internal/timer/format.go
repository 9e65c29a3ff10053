package timer

import (
	"fmt"
	"math"
)

// Format controls FormatTime output.
type Format struct {
	// ShowHour always prints the hour field.
	ShowHour bool
	// HideMinute prints bare seconds when under a minute.
	HideMinute bool
	// Precision is the number of floored fractional digits.
	Precision int
	// ShowSign prefixes non-negative values with "+".
	ShowSign bool
}

// FormatTime renders seconds as h:mm:ss.f or m:ss.f.
func FormatTime(seconds float64, f Format) string {
	negative := seconds < 0
	if negative {
		seconds = -seconds
	}
	whole := int(math.Floor(seconds))
	hours := whole / 3600
	minutes := whole % 3600 / 60
	secs := whole % 60

	var out string
	switch {
	case f.HideMinute && hours <= 0 && minutes <= 0:
		out = fmt.Sprintf("%d", secs)
	case hours > 0 || f.ShowHour:
		out = fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	default:
		out = fmt.Sprintf("%d:%02d", minutes, secs)
	}

	if f.Precision > 0 {
		scale := math.Pow(10, float64(f.Precision))
		// Nudge so 1.7 renders as 1.7 rather than 1.6 after float error.
		digits := int(math.Floor((seconds-math.Floor(seconds))*scale + 1e-7))
		if digits >= int(scale) {
			digits = int(scale) - 1
		}
		out += fmt.Sprintf(".%0*d", f.Precision, digits)
	}

	if negative {
		return "-" + out
	}
	if f.ShowSign {
		return "+" + out
	}
	return out
}
