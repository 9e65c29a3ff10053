package config

import "fmt"

// DefaultTemplate returns a commented config file listing every key with its default.
func DefaultTemplate() string {
	d := Defaults()
	sp := d.Splits
	c := sp.Categorize
	return fmt.Sprintf(`# splits configuration
# Uncomment a value to change it. Changes apply to the next run.

[general]
# real-time = %t          # Time with the wall clock instead of the game clock
# timers = %t              # Show the main run timer
# segment-timers = %t      # Show one timer per stage

[pace]
# enabled = %t             # Show pace against the comparison run
# use-average = %t        # Compare against the average run instead of the fastest
# on-start = %t           # Show pace when a timer starts
# on-end = %t              # Show pace when a stage ends
# always-run = %t         # Always show the run pace
# trigger-distance = %.0f     # Show stage pace this close to its goal (<= 5 disables)
# trigger-time = %.0f         # Show pace once it reaches this many seconds (>= 3600 disables)
# color = %t               # Colour pace gold, green or red

[categorize]
# level = %t
# game-version = %t
# player-count = %t
# ascent = %t
# randomizer = %t
# seed = %t

[misc]
# precision = %d              # Fractional digits (0-6)
# color-segments = %t      # Per-stage timer colours
# only-final-pace-if-record = %t
# show-category = %t       # Show the category label under the title

[history]
# path = %q   # .json, .yaml/.yml, or .db for SQLite

[log]
# level = %q
# file = ""                 # Rotated log file; stderr when empty
`,
		sp.RealTime, sp.Timers, sp.SegmentTimers,
		sp.Pace.Enabled, sp.UseAverage, sp.Pace.OnStart, sp.Pace.OnEnd, sp.AlwaysShowRunPace,
		sp.TriggerDistance, sp.Pace.TimeTrigger, sp.Pace.Colored,
		c.Level, c.GameVersion, c.PlayerCount, c.Ascent, c.Randomizer, c.Seed,
		sp.Precision, sp.ColorSegments, sp.OnlyFinalPaceIfRecord, sp.ShowCategory,
		d.HistoryPath,
		d.Log.Level,
	)
}
