package interp

import (
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/verte-zerg/splits/internal/clock"
	"github.com/verte-zerg/splits/internal/logging"
)

// Target is a value an animation drives.
type Target interface {
	GetHeight() float64
	SetHeight(h float64)
}

// Handle refers to one in-flight animation.
type Handle struct {
	cancelled *atomic.Bool
	done      *atomic.Bool
}

// Cancel stops the animation at its next tick. The target keeps the last value written.
func (h *Handle) Cancel() {
	if h == nil {
		return
	}
	h.cancelled.Store(true)
}

// Done reports whether the animation finished or was cancelled and collected.
func (h *Handle) Done() bool {
	return h == nil || h.done.Load()
}

type task struct {
	target   Target
	from     float64
	to       float64
	start    float64
	duration float64
	handle   *Handle
}

// Animator runs height animations cooperatively: each Tick samples the clock
// once and advances every task by one step. It owns the count of in-flight
// animations; every exit path (completion, cancellation, Stop) decrements it.
type Animator struct {
	mu     sync.Mutex
	now    clock.Func
	tasks  []*task
	active *atomic.Int32
	log    logrus.FieldLogger
}

// NewAnimator creates an Animator reading elapsed time from now.
func NewAnimator(now clock.Func, log logrus.FieldLogger) *Animator {
	return &Animator{
		now:    now,
		active: atomic.NewInt32(0),
		log:    logging.OrDiscard(log),
	}
}

// Animate moves target toward to over duration seconds. A running animation on
// the same target is superseded. A nil target or negative destination is ignored.
func (a *Animator) Animate(target Target, to, duration float64) *Handle {
	handle := &Handle{cancelled: atomic.NewBool(false), done: atomic.NewBool(false)}
	if target == nil || to < 0 {
		handle.done.Store(true)
		return handle
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.dropTargetLocked(target)

	if duration <= 0 {
		target.SetHeight(to)
		handle.done.Store(true)
		return handle
	}

	a.tasks = append(a.tasks, &task{
		target:   target,
		from:     target.GetHeight(),
		to:       to,
		start:    a.now(),
		duration: duration,
		handle:   handle,
	})
	a.active.Inc()
	return handle
}

// Tick advances every animation by one step.
func (a *Animator) Tick() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.tasks) == 0 {
		return
	}
	now := a.now()
	kept := a.tasks[:0]
	for _, tk := range a.tasks {
		if tk.handle.cancelled.Load() {
			a.finishLocked(tk)
			continue
		}
		elapsed := now - tk.start
		if elapsed >= tk.duration {
			tk.target.SetHeight(tk.to)
			a.finishLocked(tk)
			continue
		}
		tk.target.SetHeight(Cubic(tk.from, tk.to, elapsed/tk.duration, DriveVelocity))
		kept = append(kept, tk)
	}
	for i := len(kept); i < len(a.tasks); i++ {
		a.tasks[i] = nil
	}
	a.tasks = kept
}

// Stop drops every animation where it stands.
func (a *Animator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, tk := range a.tasks {
		a.finishLocked(tk)
	}
	a.tasks = nil
}

// Active returns the number of in-flight animations. Safe from any goroutine.
func (a *Animator) Active() int {
	return int(a.active.Load())
}

// Animating reports whether anything is animating. Safe from any goroutine.
func (a *Animator) Animating() bool {
	return a.Active() > 0
}

func (a *Animator) dropTargetLocked(target Target) {
	kept := a.tasks[:0]
	for _, tk := range a.tasks {
		if tk.target == target {
			a.finishLocked(tk)
			continue
		}
		kept = append(kept, tk)
	}
	for i := len(kept); i < len(a.tasks); i++ {
		a.tasks[i] = nil
	}
	a.tasks = kept
}

func (a *Animator) finishLocked(tk *task) {
	if tk.handle.done.Swap(true) {
		return
	}
	if a.active.Dec() < 0 {
		a.log.Error("animation counter went negative")
		a.active.Store(0)
	}
}
