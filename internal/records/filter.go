package records

import (
	"fmt"
	"strings"

	"github.com/verte-zerg/splits/internal/model"
)

// Filter decides whether a historical run counts toward records.
type Filter func(model.RunRecord) bool

// IncludeAll accepts every run. Pass it to Recompute to bypass the stored categorization.
var IncludeAll Filter = func(model.RunRecord) bool { return true }

// Rules select which category fields must match.
type Rules struct {
	Level       bool
	GameVersion bool
	PlayerCount bool
	Ascent      bool
	Randomizer  bool
	Seed        bool
}

// Any reports whether any rule is on.
func (r Rules) Any() bool {
	return r.Level || r.GameVersion || r.PlayerCount || r.Ascent || r.Randomizer || r.Seed
}

// CategoryFilter accepts runs matching current on every enabled rule.
// Level implies game version and randomizer.
func CategoryFilter(rules Rules, current model.Category) Filter {
	return func(other model.RunRecord) bool {
		if (rules.GameVersion || rules.Level) && current.GameVersion != other.GameVersion {
			return false
		}
		if rules.PlayerCount && current.PlayerCount != other.PlayerCount {
			return false
		}
		if rules.Ascent && current.AscentDifficulty != other.AscentDifficulty {
			return false
		}
		if rules.Level && current.LevelName != other.LevelName {
			return false
		}
		if (rules.Randomizer || rules.Level) && current.WasRandomized != other.WasRandomized {
			return false
		}
		if rules.Seed && current.Seed != other.Seed {
			return false
		}
		return true
	}
}

// CategoryLabel renders the active category for a HUD, e.g. "2 SCOUTS  DAILY #3".
// Empty when no rule is on.
func CategoryLabel(rules Rules, current model.Category) string {
	if !rules.Any() {
		return ""
	}
	var parts []string
	if rules.PlayerCount {
		label := fmt.Sprintf("%d SCOUT", current.PlayerCount)
		if current.PlayerCount > 1 {
			label += "S"
		}
		parts = append(parts, label)
	}
	switch {
	case rules.Level && !current.WasRandomized && current.LevelName != "":
		parts = append(parts, strings.Replace(current.LevelName, "Level_", "DAILY #", 1))
	case (rules.Level || rules.Randomizer) && current.WasRandomized:
		if rules.Seed {
			parts = append(parts, "SEEDED")
		} else {
			parts = append(parts, "RANDOM")
		}
	}
	return strings.Join(parts, "  ")
}
