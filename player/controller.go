// Package player runs playback sessions: one event loop per controller
// owns the session state and coordinates the resolver, the streaming
// engine, the media element and the progress synchronizer.
package player

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/lectern-cli/lectern/access"
	"github.com/lectern-cli/lectern/engine"
	"github.com/lectern-cli/lectern/log"
	"github.com/lectern-cli/lectern/media"
	"github.com/lectern-cli/lectern/util"
)

var (
	ErrClosed      = errors.New("player closed")
	ErrInvalidRate = errors.New("unsupported playback rate")
)

// Synchronizer persists the progress of one session. progress.Synchronizer
// implements it.
type Synchronizer interface {
	LoadResume(ctx context.Context) float64
	Checkpoint(current, duration float64)
	Complete(duration float64) bool
	Final(current, duration float64)
	Close()
}

// Options configures a Controller.
type Options struct {
	Resolver access.Resolver
	Token    string
	Element  media.Element

	// NewEngine creates the engine of one session. emit may be called from
	// any goroutine. Defaults to an HLS engine with default settings.
	NewEngine func(emit func(engine.Event)) engine.Engine
	// NewSynchronizer creates the synchronizer of one session.
	NewSynchronizer func(videoID string) Synchronizer

	Clock              Clock
	Autoplay           bool
	Volume             float64
	CheckpointInterval time.Duration
	ControlsHideAfter  time.Duration
	ResumeTimeout      time.Duration
}

func (o *Options) fill() error {
	if o.Resolver == nil {
		return errors.New("player: resolver is required")
	}
	if o.Element == nil {
		return errors.New("player: media element is required")
	}
	if o.NewSynchronizer == nil {
		return errors.New("player: synchronizer factory is required")
	}
	if o.NewEngine == nil {
		o.NewEngine = func(emit func(engine.Event)) engine.Engine {
			return engine.NewHLS(engine.DefaultConfig(), emit)
		}
	}
	if o.Clock == nil {
		o.Clock = realClock{}
	}
	if o.Volume <= 0 {
		o.Volume = 1
	}
	if o.CheckpointInterval <= 0 {
		o.CheckpointInterval = 10 * time.Second
	}
	if o.ControlsHideAfter <= 0 {
		o.ControlsHideAfter = 3 * time.Second
	}
	if o.ResumeTimeout <= 0 {
		o.ResumeTimeout = 5 * time.Second
	}
	return nil
}

// Controller drives one media element through a sequence of sessions.
type Controller struct {
	opts  Options
	el    media.Element
	sched *Scheduler
	async func(func())

	mu      sync.Mutex
	inbox   []Event
	notify  chan struct{}
	closed  bool
	done    chan struct{}
	stopped bool

	snapshots chan Session

	// Everything below is owned by the loop.
	ctx     context.Context
	session Session
	gen     int
	sessCtx context.Context
	cancel  context.CancelFunc
	engine  engine.Engine
	sync    Synchronizer

	engineReady bool
	resumeKnown bool
	resumeAt    float64
	reached     bool
	ended       bool
	seekFrom    State
	seekTarget  float64
}

// New subscribes to the element; it fails if the element already has an owner.
func New(opts Options) (*Controller, error) {
	if err := opts.fill(); err != nil {
		return nil, err
	}

	c := &Controller{
		opts:      opts,
		el:        opts.Element,
		async:     func(f func()) { go f() },
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
		snapshots: make(chan Session, 1),
		ctx:       context.Background(),
		session:   newSession("", opts.Volume),
	}
	c.sched = newScheduler(opts.Clock, c.post)

	if err := c.el.Subscribe(func(ev media.Event) { c.post(mediaEvent{ev: ev}) }); err != nil {
		return nil, fmt.Errorf("subscribe to media element: %w", err)
	}

	return c, nil
}

// Post queues an event for the loop. It never blocks.
func (c *Controller) Post(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	c.inbox = append(c.inbox, ev)
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (c *Controller) post(ev Event) {
	_ = c.Post(ev)
}

// Snapshots delivers the session after every change. A slow reader only
// sees the newest one.
func (c *Controller) Snapshots() <-chan Session {
	return c.snapshots
}

// Done is closed when the loop has stopped.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Run processes events until Close is posted, the element exits or ctx
// is cancelled. The current session is torn down before it returns.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer c.shutdown()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.notify:
		}

		if c.drain() {
			return nil
		}
	}
}

// drain dispatches queued events and reports whether the loop should stop.
func (c *Controller) drain() bool {
	for {
		c.mu.Lock()
		if len(c.inbox) == 0 {
			c.mu.Unlock()
			return false
		}
		ev := c.inbox[0]
		c.inbox[0] = nil
		c.inbox = c.inbox[1:]
		c.mu.Unlock()

		c.dispatch(ev)
		c.publish()

		if c.stopped {
			return true
		}
	}
}

func (c *Controller) shutdown() {
	c.teardown()
	c.publish()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.inbox = nil
		close(c.done)
	}
}

func (c *Controller) publish() {
	snap := c.session.clone()
	select {
	case <-c.snapshots:
	default:
	}
	c.snapshots <- snap
}

func (c *Controller) dispatch(ev Event) {
	s := &c.session

	switch ev := ev.(type) {
	case Open:
		c.open(ev.VideoID)
	case accessResolved:
		c.resolved(ev)
	case resumeLoaded:
		if ev.gen != c.gen || s.State != Loading {
			return
		}
		c.resumeKnown, c.resumeAt = true, ev.seconds
		c.maybeReady()
	case engineEvent:
		if ev.gen == c.gen {
			c.handleEngine(ev.ev)
		}
	case mediaEvent:
		c.handleMedia(ev.ev)
	case taskFired:
		c.fired(ev)
	case Play:
		c.play()
	case Pause:
		c.pause()
	case Toggle:
		if s.Playing {
			c.pause()
		} else {
			c.play()
		}
	case SeekTo:
		c.seek(ev.Time)
	case SeekBy:
		c.seek(s.CurrentTime + ev.Delta)
	case SetVolume:
		c.setVolume(ev.Volume)
	case AdjustVolume:
		c.setVolume(s.Volume + ev.Delta)
	case ToggleMute:
		if c.check("mute", c.el.SetMuted(!s.Muted)) {
			s.Muted = !s.Muted
		}
	case SetRate:
		c.check("rate", c.setRate(ev.Rate))
	case StepRate:
		c.check("rate", c.setRate(stepRate(s.Rate, ev.Steps)))
	case ToggleFullscreen:
		if c.check("fullscreen", c.el.SetFullscreen(!s.Fullscreen)) {
			s.Fullscreen = !s.Fullscreen
		}
	case SelectQuality:
		c.selectQuality(ev.Index)
	case Key:
		if !s.Focused {
			return
		}
		if cmd, ok := keyCommand(ev.Name, *s); ok {
			c.dispatch(cmd)
		}
	case PointerMoved:
		c.showControls()
	case Focus:
		s.Focused = ev.Focused
	case Close:
		c.teardown()
		c.stopped = true
	}
}

func (c *Controller) open(videoID string) {
	c.teardown()

	gen := c.gen
	c.session.VideoID = videoID

	ctx, cancel := context.WithCancel(c.ctx)
	c.sessCtx, c.cancel = ctx, cancel

	log.WithField("video", videoID).Info("opening video")

	resolver, token := c.opts.Resolver, c.opts.Token
	c.async(func() {
		grant, err := resolver.Resolve(ctx, videoID, token)
		c.post(accessResolved{gen: gen, grant: grant, err: err})
	})
}

func (c *Controller) resolved(ev accessResolved) {
	s := &c.session
	if ev.gen != c.gen || s.State != Idle || s.VideoID == "" {
		return
	}
	if ev.err != nil {
		c.fail(accessMessage(ev.err), ev.err)
		return
	}

	g := ev.grant
	s.State = Loading
	s.PlayableURL, s.EmbedURL, s.Video = g.PlayableURL, g.EmbedURL, g.Video

	gen, ctx := c.gen, c.sessCtx
	syncer := c.opts.NewSynchronizer(s.VideoID)
	c.sync = syncer
	c.engine = c.opts.NewEngine(func(e engine.Event) {
		c.post(engineEvent{gen: gen, ev: e})
	})

	timeout := c.opts.ResumeTimeout
	c.async(func() {
		rctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		c.post(resumeLoaded{gen: gen, seconds: syncer.LoadResume(rctx)})
	})

	src := engine.Source{URL: g.PlayableURL, Expires: g.Expires}
	if err := c.engine.Attach(ctx, src, c.el); err != nil {
		c.fail(playbackMessage(err), err)
	}
}

func (c *Controller) handleEngine(ev engine.Event) {
	s := &c.session

	switch e := ev.(type) {
	case engine.ManifestParsed:
		s.Levels = e.Levels
	case engine.Ready:
		s.Duration = e.Duration
		c.engineReady = true
		c.maybeReady()
	case engine.LevelSwitched:
		s.ActiveLevel = e.Index
		log.WithFields(log.Fields{"level": e.Index, "auto": e.Auto}).Debug("level switched")
	case engine.Error:
		if e.Fatal {
			c.fail(playbackMessage(e.Err), e)
			return
		}
		log.WithError(e.Err).Warn("recoverable playback error")
	}
}

// maybeReady leaves Loading once both the engine and the resume lookup
// are done. The resume seek is issued here, never earlier.
func (c *Controller) maybeReady() {
	s := &c.session
	if s.State != Loading || !c.engineReady || !c.resumeKnown {
		return
	}

	c.reached = true
	s.State = ReadyPaused

	if at := c.clampTime(c.resumeAt); at > 0 {
		c.check("resume seek", c.el.Seek(at))
		s.CurrentTime = at
		log.WithFields(log.Fields{"video": s.VideoID, "at": at}).Info("resuming playback")
	}

	c.showControls()
	if c.opts.Autoplay {
		c.play()
	}
}

func (c *Controller) handleMedia(ev media.Event) {
	if c.engine != nil {
		c.engine.HandleMedia(ev)
	}

	s := &c.session
	switch e := ev.(type) {
	case media.TimeUpdate:
		if s.State == ReadyPaused || s.State == ReadyPlaying {
			s.CurrentTime = c.clampTime(e.Time)
		}
	case media.Playing:
		if s.State == ReadyPaused {
			c.toPlaying()
		}
	case media.Paused:
		if s.State == ReadyPlaying {
			c.toPaused()
		}
	case media.Seeked:
		// Reloads by the engine also end in a seek; only our own seeks commit.
		if s.State == Seeking {
			s.State = c.seekFrom
			s.CurrentTime = c.seekTarget
			c.checkpoint()
		}
	case media.Buffered:
		s.Buffered = util.Clamp(e.Percent, 0, 100)
	case media.Ended:
		if s.State.ready() {
			c.end()
		}
	case media.Exited:
		log.Info("media element exited")
		c.teardown()
		c.stopped = true
	}
}

func (c *Controller) fired(f taskFired) {
	if !c.sched.take(f) {
		return
	}

	s := &c.session
	switch f.kind {
	case taskCheckpoint:
		if s.Playing && s.State.ready() {
			c.checkpoint()
			c.sched.schedule(taskCheckpoint, c.opts.CheckpointInterval)
		}
	case taskHideControls:
		if s.Playing {
			s.ControlsVisible = false
		}
	}
}

func (c *Controller) play() {
	s := &c.session

	switch s.State {
	case ReadyPaused:
		c.check("play", c.el.Play())
		c.toPlaying()
	case Seeking:
		if s.Playing {
			return
		}
		c.check("play", c.el.Play())
		c.seekFrom = ReadyPlaying
		c.startPlaying()
	case Ended:
		c.check("restart", c.el.Seek(0))
		c.check("play", c.el.Play())
		s.CurrentTime = 0
		c.toPlaying()
	}
}

func (c *Controller) pause() {
	s := &c.session

	switch s.State {
	case ReadyPlaying:
		c.check("pause", c.el.Pause())
		c.toPaused()
	case Seeking:
		if !s.Playing {
			return
		}
		c.check("pause", c.el.Pause())
		c.seekFrom = ReadyPaused
		c.stopPlaying()
	}
}

func (c *Controller) toPlaying() {
	c.session.State = ReadyPlaying
	c.startPlaying()
}

func (c *Controller) startPlaying() {
	c.session.Playing = true
	c.sched.schedule(taskCheckpoint, c.opts.CheckpointInterval)
	c.showControls()
}

func (c *Controller) toPaused() {
	c.session.State = ReadyPaused
	c.stopPlaying()
}

func (c *Controller) stopPlaying() {
	c.session.Playing = false
	c.sched.cancel(taskCheckpoint)
	c.showControls()
	c.checkpoint()
}

func (c *Controller) seek(to float64) {
	s := &c.session

	switch s.State {
	case ReadyPaused, ReadyPlaying:
		c.seekFrom = s.State
	case Seeking:
	case Ended:
		c.seekFrom = ReadyPaused
	default:
		return
	}

	to = c.clampTime(to)
	c.check("seek", c.el.Seek(to))
	s.State = Seeking
	s.CurrentTime = to
	c.seekTarget = to
}

func (c *Controller) end() {
	s := &c.session

	c.sched.cancelAll()
	s.State = Ended
	s.Playing = false
	s.CurrentTime = s.Duration
	s.ControlsVisible = true

	if !c.ended {
		c.ended = true
		c.sync.Complete(s.Duration)
		log.WithField("video", s.VideoID).Info("video completed")
	}
}

func (c *Controller) setVolume(v float64) {
	v = util.Clamp(v, 0, 1)
	if c.check("volume", c.el.SetVolume(v)) {
		c.session.Volume = v
	}
}

func (c *Controller) setRate(rate float64) error {
	if !slices.Contains(Rates, rate) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	if err := c.el.SetRate(rate); err != nil {
		return err
	}
	c.session.Rate = rate
	return nil
}

func (c *Controller) selectQuality(index int) {
	if c.engine == nil || !(c.session.State.ready() || c.session.State == Ended) {
		return
	}
	if err := c.engine.SetLevel(index); err != nil {
		log.WithError(err).WithField("level", index).Warn("select quality")
		return
	}
	c.session.Quality = index
}

func (c *Controller) showControls() {
	c.session.ControlsVisible = true
	if c.session.Playing {
		c.sched.schedule(taskHideControls, c.opts.ControlsHideAfter)
	} else {
		c.sched.cancel(taskHideControls)
	}
}

// checkpoint records the current position unless the video was completed
// in this session.
func (c *Controller) checkpoint() {
	if c.sync == nil || c.ended {
		return
	}
	c.sync.Checkpoint(c.session.CurrentTime, c.session.Duration)
}

func (c *Controller) fail(message string, err error) {
	s := &c.session
	if s.State == Errored {
		return
	}

	if c.reached {
		c.checkpoint()
	}

	c.sched.cancelAll()
	if c.engine != nil {
		c.engine.Detach()
	}

	s.State = Errored
	s.Playing = false
	s.ControlsVisible = true
	s.Error, s.Err = message, err

	log.WithError(err).WithField("video", s.VideoID).Error("playback failed")
}

// teardown ends the current session, if any, and leaves an idle one that
// keeps the user's volume, mute, rate and fullscreen choices.
func (c *Controller) teardown() {
	c.sched.cancelAll()

	if c.cancel != nil {
		c.cancel()
		c.sessCtx, c.cancel = nil, nil
	}

	prev := c.session
	if c.sync != nil {
		if c.reached && !c.ended && prev.State != Errored {
			c.sync.Final(prev.CurrentTime, prev.Duration)
		}
		c.sync.Close()
		c.sync = nil
	}

	if c.engine != nil {
		c.engine.Detach()
		c.engine = nil
	}

	c.gen++
	c.engineReady, c.resumeKnown, c.reached, c.ended = false, false, false, false
	c.resumeAt, c.seekTarget = 0, 0

	c.session = newSession("", prev.Volume)
	c.session.Muted = prev.Muted
	c.session.Rate = prev.Rate
	c.session.Fullscreen = prev.Fullscreen
	c.session.Focused = prev.Focused
}

func (c *Controller) clampTime(t float64) float64 {
	if c.session.Duration > 0 {
		return util.Clamp(t, 0, c.session.Duration)
	}
	return max(t, 0)
}

// check logs a failed element command and reports whether it succeeded.
// Session state only follows commands the element accepted.
func (c *Controller) check(op string, err error) bool {
	if err != nil {
		log.WithError(err).WithField("op", op).Warn("media element command failed")
		return false
	}
	return true
}

func accessMessage(err error) string {
	switch {
	case errors.Is(err, access.ErrUnauthorized):
		return "Sign in to watch this video: run `lectern auth login`."
	case errors.Is(err, access.ErrForbidden):
		return "You are not enrolled in the course this video belongs to."
	case errors.Is(err, access.ErrNotFound):
		return "This video does not exist."
	case errors.Is(err, access.ErrNoPlayableURL):
		return "This video has no playable stream yet."
	default:
		return "Could not get a playable URL: " + err.Error()
	}
}

func playbackMessage(err error) string {
	if errors.Is(err, engine.ErrURLExpired) {
		return "The playback link expired. Reload to get a new one."
	}
	return fmt.Sprintf("Playback failed: %v. Reload to try again.", err)
}
