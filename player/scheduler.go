package player

import "time"

// Clock abstracts timers so tests can drive time by hand.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type taskKind int

const (
	taskCheckpoint taskKind = iota
	taskHideControls
)

func (k taskKind) String() string {
	switch k {
	case taskCheckpoint:
		return "checkpoint"
	case taskHideControls:
		return "hide-controls"
	default:
		return "unknown"
	}
}

// taskFired is posted into the loop when a scheduled task comes due.
type taskFired struct {
	kind taskKind
	gen  int
}

func (taskFired) event() {}

// Scheduler keeps at most one pending task per kind. Timers only post
// into the event loop; the work runs there. A firing that raced with a
// cancel carries an old generation and is discarded by take.
type Scheduler struct {
	clock  Clock
	post   func(Event)
	timers map[taskKind]Timer
	gens   map[taskKind]int
}

func newScheduler(clock Clock, post func(Event)) *Scheduler {
	return &Scheduler{
		clock:  clock,
		post:   post,
		timers: make(map[taskKind]Timer),
		gens:   make(map[taskKind]int),
	}
}

// schedule replaces any pending task of the same kind.
func (s *Scheduler) schedule(kind taskKind, after time.Duration) {
	s.cancel(kind)
	gen := s.gens[kind]
	s.timers[kind] = s.clock.AfterFunc(after, func() {
		s.post(taskFired{kind: kind, gen: gen})
	})
}

func (s *Scheduler) cancel(kind taskKind) {
	s.gens[kind]++
	if t, ok := s.timers[kind]; ok {
		t.Stop()
		delete(s.timers, kind)
	}
}

func (s *Scheduler) cancelAll() {
	for _, kind := range []taskKind{taskCheckpoint, taskHideControls} {
		s.cancel(kind)
	}
}

func (s *Scheduler) pending(kind taskKind) bool {
	_, ok := s.timers[kind]
	return ok
}

// take reports whether a firing is current, and consumes it.
func (s *Scheduler) take(f taskFired) bool {
	if f.gen != s.gens[f.kind] {
		return false
	}
	if _, ok := s.timers[f.kind]; !ok {
		return false
	}
	delete(s.timers, f.kind)
	return true
}
