package progress

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/lectern-cli/lectern/log"
)

// Checkpoint is one position write issued during a session.
type Checkpoint struct {
	UserID    string    `json:"user_id"`
	VideoID   string    `json:"video_id"`
	Seconds   int       `json:"progress_seconds"`
	Completed bool      `json:"is_completed"`
	Final     bool      `json:"final,omitempty"`
	At        time.Time `json:"at"`
}

// FailureQueue keeps checkpoints that must not be lost when the store is unreachable.
type FailureQueue interface {
	Push(Checkpoint) error
}

// Synchronizer writes the checkpoints of one playback session.
// Calls never block on the store: a single writer goroutine delivers
// checkpoints in the order they were issued and swallows failures.
type Synchronizer struct {
	store   Store
	userID  string
	videoID string

	queue        FailureQueue
	writeTimeout time.Duration
	now          func() time.Time

	mu        sync.Mutex
	closed    bool
	completed bool
	jobs      chan Checkpoint
	done      chan struct{}
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithFailureQueue keeps failed final and completion writes in q.
func WithFailureQueue(q FailureQueue) Option {
	return func(s *Synchronizer) { s.queue = q }
}

// WithWriteTimeout bounds every store write.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Synchronizer) { s.writeTimeout = d }
}

// NewSynchronizer starts the writer for one user and video. Call Close when done.
func NewSynchronizer(store Store, userID, videoID string, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		store:        store,
		userID:       userID,
		videoID:      videoID,
		writeTimeout: 10 * time.Second,
		now:          time.Now,
		jobs:         make(chan Checkpoint, 32),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.write()
	return s
}

// Seconds converts a playback time into stored seconds: clamped to
// [0, duration] when the duration is known, then floored.
func Seconds(current, duration float64) int {
	if math.IsNaN(current) || current < 0 {
		return 0
	}
	if duration > 0 && !math.IsInf(duration, 0) && current > duration {
		current = duration
	}
	if math.IsInf(current, 0) {
		return 0
	}
	return int(math.Floor(current))
}

// LoadResume returns the position the session should start at. Any
// stored position above 0 is resumed, completed or not. Lookup failures
// resume from 0.
func (s *Synchronizer) LoadResume(ctx context.Context) float64 {
	rec, err := s.store.Get(ctx, s.userID, s.videoID)
	if err != nil {
		log.WithError(err).WithField("video", s.videoID).Warn("load resume position")
		return 0
	}
	if rec.ProgressSeconds <= 0 {
		return 0
	}
	return float64(rec.ProgressSeconds)
}

// Checkpoint records the current position of an unfinished session.
func (s *Synchronizer) Checkpoint(current, duration float64) {
	s.enqueue(Checkpoint{Seconds: Seconds(current, duration)})
}

// Complete records the end of the stream at the full duration.
// It reports false if completion was already sent this session.
func (s *Synchronizer) Complete(duration float64) bool {
	s.mu.Lock()
	if s.completed {
		s.mu.Unlock()
		return false
	}
	s.completed = true
	s.mu.Unlock()

	s.enqueue(Checkpoint{Seconds: Seconds(duration, duration), Completed: true})
	return true
}

// Final records the last known position on teardown. A failed final
// write goes to the failure queue.
func (s *Synchronizer) Final(current, duration float64) {
	s.enqueue(Checkpoint{Seconds: Seconds(current, duration), Final: true})
}

func (s *Synchronizer) enqueue(cp Checkpoint) {
	cp.UserID, cp.VideoID, cp.At = s.userID, s.videoID, s.now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		log.WithFields(log.Fields{"video": s.videoID, "seconds": cp.Seconds}).Debug("checkpoint after close dropped")
		return
	}

	select {
	case s.jobs <- cp:
	default:
		log.WithFields(log.Fields{"video": s.videoID, "seconds": cp.Seconds}).Warn("checkpoint backlog full")
		s.keep(cp)
	}
}

func (s *Synchronizer) write() {
	defer close(s.done)

	for cp := range s.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		err := s.store.Save(ctx, cp.UserID, cp.VideoID, cp.Seconds, cp.Completed)
		cancel()

		entry := log.WithFields(log.Fields{
			"video":     cp.VideoID,
			"seconds":   cp.Seconds,
			"completed": cp.Completed,
			"final":     cp.Final,
		})
		if err != nil {
			entry.WithError(err).Warn("checkpoint failed")
			s.keep(cp)
			continue
		}
		entry.Debug("checkpoint saved")
	}
}

// keep hands a checkpoint that must survive to the failure queue.
// Only final and completion checkpoints qualify.
func (s *Synchronizer) keep(cp Checkpoint) {
	if s.queue == nil || !(cp.Final || cp.Completed) {
		return
	}
	if err := s.queue.Push(cp); err != nil {
		log.WithError(err).Error("queue failed checkpoint")
	}
}

// Close stops accepting checkpoints. Pending ones are still written.
// It does not wait; see Wait.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.jobs)
	}
}

// Wait blocks until every pending checkpoint was attempted or ctx is done.
func (s *Synchronizer) Wait(ctx context.Context) error {
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
