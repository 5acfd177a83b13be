package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/lectern-cli/lectern/constant"
	"github.com/lectern-cli/lectern/log"
	"github.com/lectern-cli/lectern/media"
	"github.com/lectern-cli/lectern/network"
	"github.com/sony/gobreaker"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 8 * time.Second
)

// Config tunes manifest loading and adaptive level selection.
type Config struct {
	// InitialBandwidth in bits per second picks the first level.
	InitialBandwidth float64
	// MaxRetries bounds network error retries per attach.
	MaxRetries int
	// MaxMediaRecoveries bounds decode error recoveries per attach.
	MaxMediaRecoveries int
	// MinSwitchInterval is the dwell time between automatic level switches.
	MinSwitchInterval time.Duration
	// BreakerThreshold is how many consecutive failed refetches open the breaker.
	BreakerThreshold uint32

	Client  *http.Client
	Backoff func(attempt int) time.Duration
	Now     func() time.Time
}

// DefaultConfig returns the settings used by the watch command.
func DefaultConfig() Config {
	return Config{
		InitialBandwidth:   2_000_000,
		MaxRetries:         4,
		MaxMediaRecoveries: 2,
		MinSwitchInterval:  8 * time.Second,
		BreakerThreshold:   3,
	}
}

func (c *Config) fill() {
	d := DefaultConfig()
	if c.InitialBandwidth <= 0 {
		c.InitialBandwidth = d.InitialBandwidth
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.MaxMediaRecoveries < 0 {
		c.MaxMediaRecoveries = 0
	}
	if c.BreakerThreshold == 0 {
		c.BreakerThreshold = d.BreakerThreshold
	}
	if c.Client == nil {
		c.Client = network.Client
	}
	if c.Backoff == nil {
		c.Backoff = backoff
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// backoff doubles from initialBackoff up to maxBackoff.
func backoff(attempt int) time.Duration {
	d := initialBackoff
	for i := 1; i < attempt && d < maxBackoff; i++ {
		d *= 2
	}
	return min(d, maxBackoff)
}

// HLS is the Engine for HLS streams. Its event callback is invoked from
// whichever goroutine produced the event, never while holding its lock.
type HLS struct {
	cfg  Config
	emit func(Event)

	mu       sync.Mutex
	gen      int
	attached bool
	src      Source
	base     *url.URL
	el       media.Element
	cancel   context.CancelFunc
	ctx      context.Context
	timer    *time.Timer
	breaker  *gobreaker.CircuitBreaker

	native     bool
	levels     []Level
	current    int
	manual     int
	est        estimator
	lastSwitch time.Time
	position   float64
	ready      bool
	retries    int
	recoveries int
}

// NewHLS returns an engine that reports through emit. Attach starts it.
func NewHLS(cfg Config, emit func(Event)) *HLS {
	cfg.fill()
	return &HLS{cfg: cfg, emit: emit, manual: AutoLevel, current: AutoLevel}
}

func (h *HLS) newBreaker() *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "manifest",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= h.cfg.BreakerThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isTemporary(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Info("circuit breaker state change")
		},
	})
}

// Attach starts streaming src into el. Manifest loading continues in the
// background; progress is reported through events.
func (h *HLS) Attach(ctx context.Context, src Source, el media.Element) error {
	base, err := url.Parse(src.URL)
	if err != nil {
		return fmt.Errorf("parse playable url: %w", err)
	}

	h.mu.Lock()
	if h.attached {
		h.mu.Unlock()
		return errors.New("engine already attached")
	}

	h.gen++
	h.attached = true
	h.src, h.base, h.el = src, base, el
	h.ctx, h.cancel = context.WithCancel(ctx)
	h.breaker = h.newBreaker()
	h.native = el.CanPlayNatively(constant.HLSMimeType)
	h.levels, h.current, h.manual = nil, AutoLevel, AutoLevel
	h.est = estimator{bps: h.cfg.InitialBandwidth}
	h.position, h.ready, h.retries, h.recoveries = 0, false, 0, 0
	gen, actx := h.gen, h.ctx

	if src.expired(h.cfg.Now()) {
		h.mu.Unlock()
		h.fail(gen, ErrURLExpired)
		return nil
	}

	if h.native {
		h.mu.Unlock()
		log.WithField("url", redact(base)).Info("loading stream natively")
		if err := el.Load(src.URL, 0); err != nil {
			h.fail(gen, fmt.Errorf("load stream: %w", err))
		}
		return nil
	}
	h.mu.Unlock()

	go h.load(actx, gen)
	return nil
}

// load fetches and parses the master manifest, then loads the start level.
func (h *HLS) load(ctx context.Context, gen int) {
	levels, err := h.refresh(ctx)
	if err != nil {
		h.handleFetchError(gen, err)
		return
	}

	h.mu.Lock()
	if h.gen != gen || !h.attached {
		h.mu.Unlock()
		return
	}
	h.levels = levels
	h.current = pick(levels, h.est.bps)
	h.lastSwitch = h.cfg.Now()
	start, el := levels[h.current], h.el
	h.mu.Unlock()

	log.WithFields(log.Fields{"levels": len(levels), "start": start.Label}).Info("manifest parsed")
	h.emit(ManifestParsed{Levels: append([]Level(nil), levels...)})

	if err := el.Load(start.URI, 0); err != nil {
		h.fail(gen, fmt.Errorf("load level %s: %w", start.Label, err))
	}
}

// refresh fetches the master manifest through the circuit breaker.
func (h *HLS) refresh(ctx context.Context) ([]Level, error) {
	h.mu.Lock()
	src, base, breaker, native := h.src, h.base, h.breaker, h.native
	h.mu.Unlock()

	if src.expired(h.cfg.Now()) {
		return nil, ErrURLExpired
	}

	result, err := breaker.Execute(func() (any, error) {
		return h.fetchManifest(ctx, src.URL)
	})
	if err != nil {
		return nil, err
	}

	if native {
		return nil, nil
	}
	return parseLevels(result.([]byte), base)
}

func (h *HLS) handleFetchError(gen int, err error) {
	if isTemporary(err) {
		h.retry(gen, err)
		return
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = fmt.Errorf("%w: %v", ErrRetriesExhausted, err)
	}
	h.fail(gen, err)
}

// retry schedules a reload after a network error.
func (h *HLS) retry(gen int, cause error) {
	h.mu.Lock()
	if h.gen != gen || !h.attached {
		h.mu.Unlock()
		return
	}
	if h.src.expired(h.cfg.Now()) {
		h.mu.Unlock()
		h.fail(gen, ErrURLExpired)
		return
	}
	h.retries++
	if h.retries > h.cfg.MaxRetries {
		h.mu.Unlock()
		h.fail(gen, fmt.Errorf("%w: %v", ErrRetriesExhausted, cause))
		return
	}

	attempt, delay := h.retries, h.cfg.Backoff(h.retries)
	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(delay, func() { h.reload(gen) })
	h.mu.Unlock()

	log.WithError(cause).WithFields(log.Fields{"attempt": attempt, "delay": delay}).Warn("stream network error, retrying")
	h.emit(Error{Err: cause})
}

// reload refetches the manifest and reloads the active level at the last position.
func (h *HLS) reload(gen int) {
	h.mu.Lock()
	if h.gen != gen || !h.attached {
		h.mu.Unlock()
		return
	}
	ctx := h.ctx
	h.mu.Unlock()

	if _, err := h.refresh(ctx); err != nil {
		h.handleFetchError(gen, err)
		return
	}

	h.mu.Lock()
	if h.gen != gen || !h.attached {
		h.mu.Unlock()
		return
	}
	target, pos, el := h.target(), h.position, h.el
	h.mu.Unlock()

	if err := el.Load(target, pos); err != nil {
		h.fail(gen, fmt.Errorf("reload: %w", err))
	}
}

// target is the URI of the active level. Callers hold mu.
func (h *HLS) target() string {
	if h.native || h.current < 0 || h.current >= len(h.levels) {
		return h.src.URL
	}
	return h.levels[h.current].URI
}

// recoverMedia reloads the active level after a decode error.
func (h *HLS) recoverMedia(gen int, cause error) {
	h.mu.Lock()
	if h.gen != gen || !h.attached {
		h.mu.Unlock()
		return
	}
	h.recoveries++
	if h.recoveries > h.cfg.MaxMediaRecoveries {
		h.mu.Unlock()
		h.fail(gen, fmt.Errorf("decode error beyond recovery: %w", cause))
		return
	}
	target, pos, el := h.target(), h.position, h.el
	h.mu.Unlock()

	log.WithError(cause).WithField("position", pos).Warn("recovering from decode error")
	h.emit(Error{Err: cause})
	if err := el.Load(target, pos); err != nil {
		h.fail(gen, fmt.Errorf("recover: %w", err))
	}
}

// fail tears the attachment down and reports a fatal error.
func (h *HLS) fail(gen int, err error) {
	h.mu.Lock()
	if h.gen != gen || !h.attached {
		h.mu.Unlock()
		return
	}
	el := h.teardown()
	h.mu.Unlock()

	log.WithError(err).Error("stream failed")
	_ = el.Unload()
	h.emit(Error{Fatal: true, Err: err})
}

// teardown resets attachment state and returns the element to unload. Callers hold mu.
func (h *HLS) teardown() media.Element {
	h.gen++
	h.attached = false
	if h.cancel != nil {
		h.cancel()
	}
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
	el := h.el
	h.el = nil
	return el
}

func (h *HLS) Detach() {
	h.mu.Lock()
	if !h.attached {
		h.mu.Unlock()
		return
	}
	el := h.teardown()
	h.mu.Unlock()

	if err := el.Unload(); err != nil {
		log.WithError(err).Debug("unload on detach")
	}
}

func (h *HLS) SetLevel(index int) error {
	h.mu.Lock()
	if !h.attached {
		h.mu.Unlock()
		return ErrNotAttached
	}
	if h.native || len(h.levels) == 0 {
		h.mu.Unlock()
		return ErrNoLevels
	}
	if index != AutoLevel && (index < 0 || index >= len(h.levels)) {
		h.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidLevel, index)
	}

	h.manual = index
	next := index
	if index == AutoLevel {
		next = pick(h.levels, h.est.bps)
	}
	sw := h.switchTo(next, index == AutoLevel)
	h.mu.Unlock()

	h.apply(sw)
	return nil
}

type levelSwitch struct {
	event LevelSwitched
	level Level
	el    media.Element
	pos   float64
	gen   int
}

// switchTo makes next the active level. Callers hold mu and pass the
// result to apply once unlocked.
func (h *HLS) switchTo(next int, auto bool) *levelSwitch {
	if next == h.current {
		return nil
	}
	h.current = next
	h.lastSwitch = h.cfg.Now()
	return &levelSwitch{
		event: LevelSwitched{Index: next, Auto: auto},
		level: h.levels[next],
		el:    h.el,
		pos:   h.position,
		gen:   h.gen,
	}
}

func (h *HLS) apply(sw *levelSwitch) {
	if sw == nil {
		return
	}

	log.WithFields(log.Fields{"level": sw.level.Label, "auto": sw.event.Auto, "position": sw.pos}).Info("switching level")
	if err := sw.el.Load(sw.level.URI, sw.pos); err != nil {
		h.fail(sw.gen, fmt.Errorf("switch level: %w", err))
		return
	}
	h.emit(sw.event)
}

func (h *HLS) HandleMedia(ev media.Event) {
	h.mu.Lock()
	if !h.attached {
		h.mu.Unlock()
		return
	}
	gen := h.gen

	switch e := ev.(type) {
	case media.Loaded:
		h.retries = 0
		first := !h.ready
		h.ready = true
		h.mu.Unlock()
		if first {
			h.emit(Ready{Duration: e.Duration})
		}
		return

	case media.TimeUpdate:
		h.position = e.Time
	case media.Seeked:
		h.position = e.Time

	case media.Bandwidth:
		h.est.sample(e.BitsPerSecond)
		if h.manual != AutoLevel || len(h.levels) < 2 || !h.ready {
			break
		}
		if h.cfg.Now().Sub(h.lastSwitch) < h.cfg.MinSwitchInterval {
			break
		}
		sw := h.switchTo(pick(h.levels, h.est.bps), true)
		h.mu.Unlock()
		h.apply(sw)
		return

	case media.Error:
		h.mu.Unlock()
		switch e.Class {
		case media.ErrorNetwork:
			h.retry(gen, e)
		case media.ErrorDecode:
			h.recoverMedia(gen, e)
		default:
			h.fail(gen, e)
		}
		return
	}
	h.mu.Unlock()
}

// redact drops the query, which holds the CDN token.
func redact(u *url.URL) string {
	c := *u
	c.RawQuery = ""
	return c.String()
}
