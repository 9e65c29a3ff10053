// Package records owns the run history, the open run and the records derived
// from them. A single mutex covers every read-modify-persist sequence.
package records

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/verte-zerg/splits/internal/errors"
	"github.com/verte-zerg/splits/internal/logging"
	"github.com/verte-zerg/splits/internal/model"
	"github.com/verte-zerg/splits/internal/store"
)

// Store holds history and the current run. A nil backend keeps history in memory only.
type Store struct {
	mu         sync.Mutex
	backend    store.Backend
	history    []model.RunRecord
	current    *model.RunRecord
	slot       int
	categorize Filter
	aggregates Aggregates
	log        logrus.FieldLogger
	now        func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) { s.log = logging.OrDiscard(log) }
}

// WithNow sets the wall clock used to stamp new runs.
func WithNow(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty Store.
func New(backend store.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		log:     logging.Discard(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.aggregates = Compute(nil, nil)
	return s
}

// Load replaces history with the backend's contents and recomputes records.
// A missing history is an empty one. A corrupt history is reported and also
// leaves history empty.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = nil
	s.current = nil
	if s.backend != nil {
		runs, err := s.backend.Load(ctx)
		switch {
		case errors.Is(err, errors.ENotFound):
			s.log.WithError(err).Info("no saved runs, starting with empty history")
		case err != nil:
			s.log.WithError(err).WithField("code", errors.GetCode(err)).Error("unable to read saved runs")
			s.recomputeLocked(nil)
			return err
		default:
			s.history = runs
		}
	}
	s.recomputeLocked(nil)
	s.log.WithField("runs", len(s.history)).Debug("history loaded")
	return nil
}

// Ingest appends a copy of rec to history. Records are not recomputed.
func (s *Store) Ingest(rec model.RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, rec.Clone())
}

// SetCategorization stores the filter Recompute uses when given nil.
func (s *Store) SetCategorization(f Filter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categorize = f
}

// Recompute rebuilds the records over runs accepted by filter. A nil filter
// falls back to the stored categorization, then to IncludeAll.
func (s *Store) Recompute(filter Filter) Aggregates {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recomputeLocked(filter)
}

func (s *Store) recomputeLocked(filter Filter) Aggregates {
	if filter == nil {
		filter = s.categorize
	}
	s.aggregates = Compute(s.history, filter)
	return s.aggregates
}

// Aggregates returns the records from the last Recompute.
func (s *Store) Aggregates() Aggregates {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aggregates
}

// History returns a copy of the run history in insertion order.
func (s *Store) History() []model.RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.RunRecord, len(s.history))
	for i, rec := range s.history {
		out[i] = rec.Clone()
	}
	return out
}

// IsRunActive reports whether a run is open.
func (s *Store) IsRunActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil
}

// StartNewRun opens a run stamped with an ID and date, and reserves its slot
// at the end of history. Fails with E_RUN_ACTIVE if one is already open.
func (s *Store) StartNewRun(category model.Category, realTime bool) (model.RunRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.log.WithField("run", s.current.ID).Error("tried to start a run when one is already started")
		return model.RunRecord{}, errors.NewWithDetails(errors.ERunActive, "a run is already active",
			map[string]string{"run": s.current.ID})
	}
	run := model.NewRunRecord()
	run.Stamp(s.now())
	run.Category = category
	run.IsRealTime = realTime
	s.current = &run

	placeholder := model.NewRunRecord()
	placeholder.ID = run.ID
	placeholder.RunDate = run.RunDate
	s.slot = len(s.history)
	s.history = append(s.history, placeholder)
	s.log.WithField("run", run.ID).Info("run started")
	return run.Clone(), nil
}

// Current returns a copy of the open run.
func (s *Store) Current() (model.RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return model.RunRecord{}, false
	}
	return s.current.Clone(), true
}

// UpdateCurrent edits the open run in place.
func (s *Store) UpdateCurrent(fn func(*model.RunRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return errors.New(errors.ENoActiveRun, "no run is active")
	}
	fn(s.current)
	return nil
}

// SaveCurrentRun copies the open run into its reserved history slot and
// persists the whole history when the run holds any valid duration. A
// persistence failure is returned with history left as updated in memory.
func (s *Store) SaveCurrentRun(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx)
}

func (s *Store) saveLocked(ctx context.Context) error {
	if s.current == nil {
		s.log.Error("tried to save a run when no run has been started")
		return errors.New(errors.ENoActiveRun, "no run is active")
	}
	if s.slot < 0 || s.slot >= len(s.history) {
		s.slot = len(s.history)
		s.history = append(s.history, model.NewRunRecord())
	}
	s.history[s.slot] = s.current.Clone()

	if !s.current.HasTimes() || s.backend == nil {
		return nil
	}
	snapshot := make([]model.RunRecord, len(s.history))
	copy(snapshot, s.history)
	if err := s.backend.Save(ctx, snapshot); err != nil {
		s.log.WithError(err).WithField("run", s.current.ID).Error("unable to save run")
		if _, ok := errors.As(err); ok {
			return err
		}
		return errors.Wrap(errors.EPersistFailed, "unable to save run", err)
	}
	s.log.WithField("run", s.current.ID).Debug("run saved")
	return nil
}

// FinishRun saves the open run and closes it. On failure the run stays open.
func (s *Store) FinishRun(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveLocked(ctx); err != nil {
		return err
	}
	s.log.WithField("run", s.current.ID).Info("run finished")
	s.current = nil
	return nil
}

// DefaultRetry is the backoff FinishRunWithRetry uses when given nil.
func DefaultRetry() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(b, 5)
}

// FinishRunWithRetry retries FinishRun on persistence failures until b gives
// up or ctx ends. Having no open run is not retried.
func (s *Store) FinishRunWithRetry(ctx context.Context, b backoff.BackOff) error {
	if b == nil {
		b = DefaultRetry()
	}
	attempt := 0
	op := func() error {
		attempt++
		err := s.FinishRun(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, errors.ENoActiveRun) {
			return backoff.Permanent(err)
		}
		s.log.WithError(err).WithField("attempt", attempt).Warn("retrying run save")
		return err
	}
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}
