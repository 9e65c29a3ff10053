// Package config provides configuration helpers and TOML parsing.
package config

import (
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/verte-zerg/splits/internal/errors"
	"github.com/verte-zerg/splits/internal/logging"
	"github.com/verte-zerg/splits/internal/splits"
	"github.com/verte-zerg/splits/internal/timer"
)

// MaxPrecision is the largest number of fractional digits a timer shows.
const MaxPrecision = 6

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	General    GeneralConfig    `toml:"general"`
	Pace       PaceConfig       `toml:"pace"`
	Categorize CategorizeConfig `toml:"categorize"`
	Misc       MiscConfig       `toml:"misc"`
	History    HistoryConfig    `toml:"history"`
	Log        LogConfig        `toml:"log"`
}

// GeneralConfig maps clock and timer switches.
type GeneralConfig struct {
	RealTime      *bool `toml:"real-time"`
	Timers        *bool `toml:"timers"`
	SegmentTimers *bool `toml:"segment-timers"`
}

// PaceConfig maps pace display settings.
type PaceConfig struct {
	Enabled         *bool    `toml:"enabled"`
	UseAverage      *bool    `toml:"use-average"`
	OnStart         *bool    `toml:"on-start"`
	OnEnd           *bool    `toml:"on-end"`
	AlwaysRun       *bool    `toml:"always-run"`
	TriggerDistance *float64 `toml:"trigger-distance"`
	TriggerTime     *float64 `toml:"trigger-time"`
	Color           *bool    `toml:"color"`
}

// CategorizeConfig maps the switches that decide which past runs count.
type CategorizeConfig struct {
	Level       *bool `toml:"level"`
	GameVersion *bool `toml:"game-version"`
	PlayerCount *bool `toml:"player-count"`
	Ascent      *bool `toml:"ascent"`
	Randomizer  *bool `toml:"randomizer"`
	Seed        *bool `toml:"seed"`
}

// MiscConfig maps display details.
type MiscConfig struct {
	Precision             *int  `toml:"precision"`
	ColorSegments         *bool `toml:"color-segments"`
	OnlyFinalPaceIfRecord *bool `toml:"only-final-pace-if-record"`
	ShowCategory          *bool `toml:"show-category"`
}

// HistoryConfig maps where runs are stored.
type HistoryConfig struct {
	Path *string `toml:"path"`
}

// LogConfig maps logger settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// Settings is a fully resolved configuration.
type Settings struct {
	Splits      splits.Settings
	HistoryPath string
	Log         logging.Options
}

// Defaults returns the settings used when the file sets nothing.
func Defaults() Settings {
	return Settings{
		Splits:      splits.DefaultSettings(),
		HistoryPath: DefaultHistoryPath(),
		Log:         logging.Options{Level: "info"},
	}
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, errors.New(errors.EInvalidConfig, "config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, errors.WrapWithDetails(errors.EInvalidConfig, "failed to stat config", err, map[string]string{"path": path})
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, errors.WrapWithDetails(errors.EInvalidConfig, "failed to decode config", err, map[string]string{"path": path})
	}
	return cfg, nil
}

// Load reads, resolves and validates the config at path.
func Load(path string) (Settings, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return Settings{}, err
	}
	s := cfg.Resolve()
	if err := Validate(s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Resolve applies the values set in the file on top of Defaults.
func (c FileConfig) Resolve() Settings {
	s := Defaults()
	sp := &s.Splits

	applyBool(&sp.RealTime, c.General.RealTime)
	applyBool(&sp.Timers, c.General.Timers)
	applyBool(&sp.SegmentTimers, c.General.SegmentTimers)

	applyBool(&sp.Pace.Enabled, c.Pace.Enabled)
	applyBool(&sp.UseAverage, c.Pace.UseAverage)
	applyBool(&sp.Pace.OnStart, c.Pace.OnStart)
	applyBool(&sp.Pace.OnEnd, c.Pace.OnEnd)
	applyBool(&sp.AlwaysShowRunPace, c.Pace.AlwaysRun)
	applyFloat(&sp.TriggerDistance, c.Pace.TriggerDistance)
	applyFloat(&sp.Pace.TimeTrigger, c.Pace.TriggerTime)
	applyBool(&sp.Pace.Colored, c.Pace.Color)

	applyBool(&sp.Categorize.Level, c.Categorize.Level)
	applyBool(&sp.Categorize.GameVersion, c.Categorize.GameVersion)
	applyBool(&sp.Categorize.PlayerCount, c.Categorize.PlayerCount)
	applyBool(&sp.Categorize.Ascent, c.Categorize.Ascent)
	applyBool(&sp.Categorize.Randomizer, c.Categorize.Randomizer)
	applyBool(&sp.Categorize.Seed, c.Categorize.Seed)

	applyInt(&sp.Precision, c.Misc.Precision)
	applyBool(&sp.ColorSegments, c.Misc.ColorSegments)
	applyBool(&sp.OnlyFinalPaceIfRecord, c.Misc.OnlyFinalPaceIfRecord)
	applyBool(&sp.ShowCategory, c.Misc.ShowCategory)

	applyString(&s.HistoryPath, c.History.Path)
	applyString(&s.Log.Level, c.Log.Level)
	applyString(&s.Log.File, c.Log.File)

	// Gold pace always shows with pace on.
	sp.Pace.OnGold = sp.Pace.Enabled
	return s
}

// Validate rejects settings no component can honour.
func Validate(s Settings) error {
	sp := s.Splits
	if sp.Precision < 0 || sp.Precision > MaxPrecision {
		return invalid("misc.precision", "precision must be between 0 and 6")
	}
	if sp.TriggerDistance < 0 {
		return invalid("pace.trigger-distance", "trigger distance must be >= 0")
	}
	if sp.Pace.TimeTrigger > timer.MaxTimeTrigger*24 || sp.Pace.TimeTrigger < -timer.MaxTimeTrigger*24 {
		return invalid("pace.trigger-time", "trigger time is out of range")
	}
	if strings.TrimSpace(s.HistoryPath) == "" {
		return invalid("history.path", "history path must not be empty")
	}
	if _, err := logrus.ParseLevel(strings.TrimSpace(s.Log.Level)); err != nil {
		return errors.WrapWithDetails(errors.EInvalidConfig, "unknown log level", err, map[string]string{"key": "log.level"})
	}
	return nil
}

func invalid(key, msg string) error {
	return errors.NewWithDetails(errors.EInvalidConfig, msg, map[string]string{"key": key})
}

func applyBool(target, value *bool) {
	if value == nil {
		return
	}
	*target = *value
}

func applyInt(target, value *int) {
	if value == nil {
		return
	}
	*target = *value
}

func applyFloat(target, value *float64) {
	if value == nil {
		return
	}
	*target = *value
}

func applyString(target, value *string) {
	if value == nil {
		return
	}
	*target = *value
}
