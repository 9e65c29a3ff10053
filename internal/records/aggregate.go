package records

import "github.com/verte-zerg/splits/internal/model"

// Dim is the fastest and average of one dimension (the whole run or a segment).
// Both are model.Unset when Count is zero.
type Dim struct {
	Fastest float64
	Average float64
	Count   int
}

var emptyDim = Dim{Fastest: model.Unset, Average: model.Unset}

// Valid reports whether at least one value was aggregated.
func (d Dim) Valid() bool { return d.Count > 0 }

// Pick returns the average or the fastest.
func (d Dim) Pick(useAverage bool) float64 {
	if useAverage {
		return d.Average
	}
	return d.Fastest
}

// Aggregates are the records derived from a filtered history.
type Aggregates struct {
	// Run aggregates final times of finished runs.
	Run Dim
	// FastestRun is the first finished run with the fastest final time.
	FastestRun model.RunRecord
	// Segments aggregates each named segment independently.
	Segments map[string]Dim
}

type accumulator struct {
	fastest float64
	sum     float64
	count   int
}

func (a *accumulator) add(v float64) bool {
	if v <= 0 {
		return false
	}
	a.sum += v
	a.count++
	if a.count == 1 || v < a.fastest {
		a.fastest = v
		return true
	}
	return false
}

func (a *accumulator) dim() Dim {
	if a.count == 0 {
		return emptyDim
	}
	return Dim{Fastest: a.fastest, Average: a.sum / float64(a.count), Count: a.count}
}

// Compute aggregates history in one pass. A nil filter includes everything.
// Ties keep the first-seen fastest.
func Compute(history []model.RunRecord, filter Filter) Aggregates {
	if filter == nil {
		filter = IncludeAll
	}
	var run accumulator
	fastestRun := model.NewRunRecord()
	segments := map[string]*accumulator{}

	for _, rec := range history {
		if !filter(rec) {
			continue
		}
		if rec.RunFinished && run.add(rec.FinalTime) {
			fastestRun = rec.Clone()
		}
		for name, v := range rec.Segments {
			acc, ok := segments[name]
			if !ok {
				acc = &accumulator{}
				segments[name] = acc
			}
			acc.add(v)
		}
	}

	out := Aggregates{
		Run:        run.dim(),
		FastestRun: fastestRun,
		Segments:   make(map[string]Dim, len(segments)),
	}
	for name, acc := range segments {
		if acc.count > 0 {
			out.Segments[name] = acc.dim()
		}
	}
	return out
}

// Segment returns the aggregate for name, or an unset Dim.
func (a Aggregates) Segment(name string) Dim {
	if d, ok := a.Segments[name]; ok {
		return d
	}
	return emptyDim
}

// AverageRun is a synthetic run holding every average. It is finished iff a
// finished run was counted.
func (a Aggregates) AverageRun() model.RunRecord {
	avg := model.NewRunRecord()
	avg.RunFinished = a.Run.Valid()
	avg.FinalTime = a.Run.Average
	for name, d := range a.Segments {
		avg.SetSegment(name, d.Average)
	}
	return avg
}

// Comparison returns the run pace is measured against.
func (a Aggregates) Comparison(useAverage bool) model.RunRecord {
	if useAverage {
		return a.AverageRun()
	}
	return a.FastestRun.Clone()
}

// RecordFor returns the record for one segment, or model.Unset.
func (a Aggregates) RecordFor(segment string, useAverage bool) float64 {
	return a.Segment(segment).Pick(useAverage)
}

// CumulativeTargets returns, for each segment in order, the run time at which
// the comparison run finished it. A segment without a valid comparison time
// ends the list: it and every later segment have no target.
func CumulativeTargets(comparison model.RunRecord, order []string) map[string]float64 {
	targets := make(map[string]float64, len(order))
	total := 0.0
	for _, name := range order {
		d := comparison.Segment(name)
		if d <= 0 {
			break
		}
		total += d
		targets[name] = total
	}
	return targets
}
