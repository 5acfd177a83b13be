package player

import (
	"context"
	"sync"
	"time"

	"github.com/lectern-cli/lectern/access"
	"github.com/lectern-cli/lectern/engine"
	"github.com/lectern-cli/lectern/media"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeElement struct {
	mu         sync.Mutex
	fn         func(media.Event)
	seeks      []float64
	plays      int
	pauses     int
	volume     float64
	muted      bool
	rate       float64
	fullscreen bool
	// failing makes every setter return this error.
	failing error
}

func (e *fakeElement) Load(string, float64) error { return nil }
func (e *fakeElement) Unload() error               { return nil }

func (e *fakeElement) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.plays++
	return nil
}

func (e *fakeElement) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauses++
	return nil
}

func (e *fakeElement) Seek(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seeks = append(e.seeks, seconds)
	return nil
}

func (e *fakeElement) SetVolume(v float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failing != nil {
		return e.failing
	}
	e.volume = v
	return nil
}

func (e *fakeElement) SetMuted(muted bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failing != nil {
		return e.failing
	}
	e.muted = muted
	return nil
}

func (e *fakeElement) SetRate(rate float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failing != nil {
		return e.failing
	}
	e.rate = rate
	return nil
}

func (e *fakeElement) SetFullscreen(on bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failing != nil {
		return e.failing
	}
	e.fullscreen = on
	return nil
}

func (e *fakeElement) CanPlayNatively(string) bool { return false }

func (e *fakeElement) Subscribe(fn func(media.Event)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fn != nil {
		return media.ErrElementInUse
	}
	e.fn = fn
	return nil
}

func (e *fakeElement) Close() error { return nil }

func (e *fakeElement) emit(ev media.Event) {
	e.mu.Lock()
	fn := e.fn
	e.mu.Unlock()
	fn(ev)
}

func (e *fakeElement) Seeks() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]float64(nil), e.seeks...)
}

type fakeEngine struct {
	emit      func(engine.Event)
	src       engine.Source
	attachErr error
	levels    []int
	media     []media.Event
	detached  int
}

func (f *fakeEngine) Attach(_ context.Context, src engine.Source, _ media.Element) error {
	f.src = src
	return f.attachErr
}

func (f *fakeEngine) SetLevel(index int) error {
	if index != engine.AutoLevel && (index < 0 || index >= 3) {
		return engine.ErrInvalidLevel
	}
	f.levels = append(f.levels, index)
	return nil
}

func (f *fakeEngine) HandleMedia(ev media.Event) { f.media = append(f.media, ev) }
func (f *fakeEngine) Detach()                     { f.detached++ }

type fakeResolver struct {
	grant access.Grant
	err   error
	calls int
}

func (r *fakeResolver) Resolve(_ context.Context, videoID, _ string) (access.Grant, error) {
	r.calls++
	if r.err != nil {
		return access.Grant{}, r.err
	}
	g := r.grant
	g.Video.ID = videoID
	return g, nil
}

type position struct {
	Current  float64
	Duration float64
}

type fakeSync struct {
	mu          sync.Mutex
	resume      float64
	gate        chan struct{}
	checkpoints []position
	completes   []float64
	finals      []position
	closed      bool
}

func (s *fakeSync) LoadResume(ctx context.Context) float64 {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return 0
		}
	}
	return s.resume
}

func (s *fakeSync) Checkpoint(current, duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints = append(s.checkpoints, position{current, duration})
}

func (s *fakeSync) Complete(duration float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.completes) > 0 {
		return false
	}
	s.completes = append(s.completes, duration)
	return true
}

func (s *fakeSync) Final(current, duration float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finals = append(s.finals, position{current, duration})
}

func (s *fakeSync) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSync) Checkpoints() []position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]position(nil), s.checkpoints...)
}

var testLevels = []engine.Level{
	{Height: 360, Bitrate: 800_000, Label: "360p"},
	{Height: 720, Bitrate: 2_400_000, Label: "720p"},
	{Height: 1080, Bitrate: 5_000_000, Label: "1080p"},
}

type harness struct {
	c       *Controller
	el      *fakeElement
	res     *fakeResolver
	clock   *fakeClock
	eng     *fakeEngine
	sync    *fakeSync
	engines int
	resume  float64
	gate    chan struct{}
}

func newHarness(configure ...func(*Options)) *harness {
	h := &harness{
		el:    &fakeElement{},
		clock: newFakeClock(),
		res: &fakeResolver{grant: access.Grant{
			PlayableURL: "https://cdn.example.test/v1/playlist.m3u8",
			Video:       access.Video{Title: "Closures in depth", DurationSeconds: 600},
		}},
	}

	opts := Options{
		Resolver: h.res,
		Token:    "token",
		Element:  h.el,
		Clock:    h.clock,
		NewEngine: func(emit func(engine.Event)) engine.Engine {
			h.engines++
			h.eng = &fakeEngine{emit: emit}
			return h.eng
		},
		NewSynchronizer: func(string) Synchronizer {
			h.sync = &fakeSync{resume: h.resume, gate: h.gate}
			return h.sync
		},
	}
	for _, f := range configure {
		f(&opts)
	}

	c, err := New(opts)
	if err != nil {
		panic(err)
	}
	c.async = func(f func()) { f() }
	h.c = c
	return h
}

func (h *harness) send(events ...Event) {
	for _, ev := range events {
		if err := h.c.Post(ev); err != nil {
			panic(err)
		}
	}
	h.c.drain()
}

func (h *harness) media(events ...media.Event) {
	for _, ev := range events {
		h.el.emit(ev)
	}
	h.c.drain()
}

func (h *harness) engineSays(events ...engine.Event) {
	for _, ev := range events {
		h.eng.emit(ev)
	}
	h.c.drain()
}

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.c.drain()
}

// ready opens a video and drives it to ReadyPaused.
func (h *harness) ready(duration, resume float64) {
	h.resume = resume
	h.send(Open{VideoID: "v1"})
	h.engineSays(engine.ManifestParsed{Levels: testLevels}, engine.Ready{Duration: duration})
}

// playing drives a video to ReadyPlaying at the given position.
func (h *harness) playing(duration, at float64) {
	h.ready(duration, 0)
	h.send(Play{})
	h.media(media.Playing{}, media.TimeUpdate{Time: at})
}

func (h *harness) session() Session {
	return h.c.session
}

func eventually(h *harness, cond func() bool) bool {
	for range 200 {
		h.c.drain()
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}
