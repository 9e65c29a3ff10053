// Package model defines shared data structures.
package model

import (
	"encoding/binary"
	"math"
	"sort"
	"time"

	"github.com/OneOfOne/xxhash"
	"github.com/segmentio/ksuid"
)

// Unset marks a duration that was not recorded.
const Unset = -1.0

// DateLayout is the layout of RunRecord.RunDate.
const DateLayout = time.RFC3339

// Category holds the settings a run was played under.
type Category struct {
	GameVersion      string `json:"gameVersion" yaml:"gameVersion"`
	LevelName        string `json:"levelName" yaml:"levelName"`
	AscentDifficulty int    `json:"ascentDifficulty" yaml:"ascentDifficulty"`
	PlayerCount      int    `json:"playerCount" yaml:"playerCount"`
	WasRandomized    bool   `json:"wasRandomized" yaml:"wasRandomized"`
	Seed             int    `json:"seed" yaml:"seed"`
}

// RunRecord is one attempt: its segment durations, overall result and category.
type RunRecord struct {
	ID          string             `json:"id,omitempty" yaml:"id,omitempty"`
	RunDate     string             `json:"runDate" yaml:"runDate"`
	IsRealTime  bool               `json:"isRealTime" yaml:"isRealTime"`
	RunFinished bool               `json:"runFinished" yaml:"runFinished"`
	FinalTime   float64            `json:"finalTime" yaml:"finalTime"`
	Segments    map[string]float64 `json:"segments" yaml:"segments"`
	Category    `yaml:",inline"`
}

// NewRunRecord returns a record with every duration unset.
func NewRunRecord() RunRecord {
	return RunRecord{FinalTime: Unset, Segments: map[string]float64{}}
}

// Stamp assigns a fresh sortable ID and the creation date label.
func (r *RunRecord) Stamp(now time.Time) {
	r.ID = ksuid.New().String()
	r.RunDate = now.Format(DateLayout)
}

// Date parses RunDate. ok is false when it is empty or not in DateLayout.
func (r RunRecord) Date() (time.Time, bool) {
	if r.RunDate == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, r.RunDate)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Segment returns the duration for name, or Unset when not recorded.
func (r RunRecord) Segment(name string) float64 {
	if v, ok := r.Segments[name]; ok {
		return v
	}
	return Unset
}

// SetSegment records the duration for name.
func (r *RunRecord) SetSegment(name string, d float64) {
	if r.Segments == nil {
		r.Segments = map[string]float64{}
	}
	r.Segments[name] = d
}

// SegmentNames returns the recorded segment names, sorted.
func (r RunRecord) SegmentNames() []string {
	names := make([]string, 0, len(r.Segments))
	for name := range r.Segments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy.
func (r RunRecord) Clone() RunRecord {
	out := r
	out.Segments = make(map[string]float64, len(r.Segments))
	for k, v := range r.Segments {
		out.Segments[k] = v
	}
	return out
}

// HasTimes reports whether the record holds any valid duration worth saving.
func (r RunRecord) HasTimes() bool {
	if r.RunFinished && r.FinalTime > 0 {
		return true
	}
	for _, v := range r.Segments {
		if v > 0 {
			return true
		}
	}
	return false
}

// Equal compares durations and category. ID, RunDate and IsRealTime are
// metadata and ignored. A missing segment equals an Unset one.
func (r RunRecord) Equal(o RunRecord) bool {
	if r.RunFinished != o.RunFinished || r.FinalTime != o.FinalTime {
		return false
	}
	if r.Category != o.Category {
		return false
	}
	for name := range r.Segments {
		if r.Segment(name) != o.Segment(name) {
			return false
		}
	}
	for name := range o.Segments {
		if r.Segment(name) != o.Segment(name) {
			return false
		}
	}
	return true
}

// Hash returns a structural hash consistent with Equal.
func (r RunRecord) Hash() uint64 {
	h := xxhash.New64()
	var buf [8]byte
	writeFloat := func(v float64) {
		if v == 0 {
			v = 0 // fold -0
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = h.Write(buf[:])
	}
	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(v)))
		_, _ = h.Write(buf[:])
	}
	writeString := func(s string) {
		writeInt(len(s))
		_, _ = h.Write([]byte(s))
	}
	writeBool := func(b bool) {
		if b {
			writeInt(1)
			return
		}
		writeInt(0)
	}

	writeBool(r.RunFinished)
	writeFloat(r.FinalTime)
	for _, name := range r.SegmentNames() {
		v := r.Segments[name]
		if v == Unset {
			continue
		}
		writeString(name)
		writeFloat(v)
	}
	writeString(r.GameVersion)
	writeString(r.LevelName)
	writeInt(r.AscentDifficulty)
	writeInt(r.PlayerCount)
	writeBool(r.WasRandomized)
	writeInt(r.Seed)
	return h.Sum64()
}
