package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lectern-cli/lectern/media"
	. "github.com/smartystreets/goconvey/convey"
)

type harness struct {
	cdn    *httptest.Server
	status atomic.Int32
	el     *fakeElement
	events chan Event
	h      *HLS

	clockMu sync.Mutex
	clock   time.Time
}

func newHarness() *harness {
	x := &harness{
		el:     &fakeElement{},
		events: make(chan Event, 64),
		clock:  time.Unix(1_700_000_000, 0),
	}
	x.status.Store(http.StatusOK)
	x.cdn = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code := int(x.status.Load()); code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		_, _ = w.Write([]byte(master))
	}))

	x.h = NewHLS(Config{
		InitialBandwidth:   2_000_000,
		MaxRetries:         4,
		MaxMediaRecoveries: 2,
		MinSwitchInterval:  8 * time.Second,
		BreakerThreshold:   3,
		Client:             x.cdn.Client(),
		Backoff:            func(int) time.Duration { return time.Millisecond },
		Now:                x.now,
	}, func(e Event) { x.events <- e })
	return x
}

func (x *harness) now() time.Time {
	x.clockMu.Lock()
	defer x.clockMu.Unlock()
	return x.clock
}

func (x *harness) advance(d time.Duration) {
	x.clockMu.Lock()
	defer x.clockMu.Unlock()
	x.clock = x.clock.Add(d)
}

func (x *harness) source() Source {
	return Source{URL: x.cdn.URL + "/v1/playlist.m3u8?token=abc", Expires: x.now().Add(2 * time.Hour)}
}

func (x *harness) next() Event {
	select {
	case e := <-x.events:
		return e
	case <-time.After(2 * time.Second):
		return nil
	}
}

// until returns the first event of type T, skipping others.
func until[T Event](x *harness) (T, bool) {
	for {
		e := x.next()
		if e == nil {
			var zero T
			return zero, false
		}
		if t, ok := e.(T); ok {
			return t, true
		}
	}
}

func fatal(x *harness) Error {
	for {
		e, ok := until[Error](x)
		if !ok || e.Fatal {
			return e
		}
	}
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

// ready attaches and drives the harness to the Ready event.
func (x *harness) ready() []Level {
	So(x.h.Attach(context.Background(), x.source(), x.el), ShouldBeNil)
	parsed, ok := until[ManifestParsed](x)
	So(ok, ShouldBeTrue)
	x.h.HandleMedia(media.Loaded{Duration: 600})
	r, ok := until[Ready](x)
	So(ok, ShouldBeTrue)
	So(r.Duration, ShouldEqual, 600)
	return parsed.Levels
}

func TestAttach(t *testing.T) {
	Convey("Given an engine and a CDN serving a master playlist", t, func() {
		x := newHarness()
		defer x.cdn.Close()
		defer x.h.Detach()

		Convey("Attaching parses levels and loads the level that fits the initial estimate", func() {
			levels := x.ready()
			So(levels, ShouldHaveLength, 3)
			So(levels[0].Label, ShouldEqual, "720p")

			loads := x.el.Loads()
			So(loads, ShouldHaveLength, 1)
			So(loads[0], ShouldResemble, load{levels[0].URI, 0})
		})

		Convey("Ready is sent once even when the element reloads", func() {
			x.ready()
			x.h.HandleMedia(media.Loaded{Duration: 600})
			So(x.next(), ShouldBeNil)
		})

		Convey("Pinning a level reloads it at the current position", func() {
			levels := x.ready()
			x.h.HandleMedia(media.TimeUpdate{Time: 42})

			So(x.h.SetLevel(2), ShouldBeNil)
			sw, ok := until[LevelSwitched](x)
			So(ok, ShouldBeTrue)
			So(sw, ShouldResemble, LevelSwitched{Index: 2})
			So(x.el.Loads()[1], ShouldResemble, load{levels[2].URI, 42})

			Convey("and automatic selection hands control back", func() {
				So(x.h.SetLevel(AutoLevel), ShouldBeNil)
				sw, _ := until[LevelSwitched](x)
				So(sw, ShouldResemble, LevelSwitched{Index: 0, Auto: true})
				So(x.el.Loads()[2], ShouldResemble, load{levels[0].URI, 42})
			})

			Convey("and selecting the active level does nothing", func() {
				So(x.h.SetLevel(2), ShouldBeNil)
				So(x.el.Loads(), ShouldHaveLength, 2)
			})
		})

		Convey("Unknown levels are rejected", func() {
			x.ready()
			So(errors.Is(x.h.SetLevel(7), ErrInvalidLevel), ShouldBeTrue)
		})
	})
}

func TestAdaptation(t *testing.T) {
	Convey("Given a ready engine in automatic mode", t, func() {
		x := newHarness()
		defer x.cdn.Close()
		defer x.h.Detach()
		levels := x.ready()

		Convey("A sustained faster network switches up after the dwell time", func() {
			x.advance(10 * time.Second)
			x.h.HandleMedia(media.Bandwidth{BitsPerSecond: 20_000_000})
			x.h.HandleMedia(media.Bandwidth{BitsPerSecond: 20_000_000})

			sw, ok := until[LevelSwitched](x)
			So(ok, ShouldBeTrue)
			So(sw.Index, ShouldEqual, 2)
			So(sw.Auto, ShouldBeTrue)

			Convey("and does not switch again before the dwell time passed", func() {
				for range 5 {
					x.h.HandleMedia(media.Bandwidth{BitsPerSecond: 100_000})
				}
				So(x.next(), ShouldBeNil)

				x.advance(10 * time.Second)
				x.h.HandleMedia(media.Bandwidth{BitsPerSecond: 100_000})
				sw, _ := until[LevelSwitched](x)
				So(sw.Index, ShouldEqual, 1)
				So(x.el.Loads()[len(x.el.Loads())-1].url, ShouldEqual, levels[1].URI)
			})
		})

		Convey("A pinned level is never switched automatically", func() {
			So(x.h.SetLevel(1), ShouldBeNil)
			_, _ = until[LevelSwitched](x)
			x.advance(time.Minute)
			x.h.HandleMedia(media.Bandwidth{BitsPerSecond: 50_000_000})
			So(x.next(), ShouldBeNil)
		})
	})
}

func TestErrorPolicy(t *testing.T) {
	Convey("Given an engine", t, func() {
		x := newHarness()
		defer x.cdn.Close()
		defer x.h.Detach()

		Convey("An expired source is fatal before any request", func() {
			src := x.source()
			src.Expires = x.now().Add(-time.Second)
			So(x.h.Attach(context.Background(), src, x.el), ShouldBeNil)

			e := fatal(x)
			So(e.Fatal, ShouldBeTrue)
			So(errors.Is(e, ErrURLExpired), ShouldBeTrue)
			So(x.el.Loads(), ShouldBeEmpty)
		})

		Convey("A CDN refusing the token is an expired URL", func() {
			x.status.Store(http.StatusForbidden)
			So(x.h.Attach(context.Background(), x.source(), x.el), ShouldBeNil)
			So(errors.Is(fatal(x), ErrURLExpired), ShouldBeTrue)
		})

		Convey("A network error mid-playback is retried at the last position", func() {
			levels := x.ready()
			x.h.HandleMedia(media.TimeUpdate{Time: 42})
			x.h.HandleMedia(media.Error{Class: media.ErrorNetwork})

			e, ok := until[Error](x)
			So(ok, ShouldBeTrue)
			So(e.Fatal, ShouldBeFalse)
			So(eventually(func() bool { return len(x.el.Loads()) == 2 }), ShouldBeTrue)
			So(x.el.Loads()[1], ShouldResemble, load{levels[0].URI, 42})
			So(x.el.Unloads(), ShouldEqual, 0)
		})

		Convey("Persistent network failure escalates to fatal", func() {
			x.ready()
			x.status.Store(http.StatusServiceUnavailable)
			x.h.HandleMedia(media.Error{Class: media.ErrorNetwork})

			e := fatal(x)
			So(e.Fatal, ShouldBeTrue)
			So(errors.Is(e, ErrRetriesExhausted), ShouldBeTrue)
			So(eventually(func() bool { return x.el.Unloads() == 1 }), ShouldBeTrue)
		})

		Convey("Decode errors are recovered a bounded number of times", func() {
			x.ready()
			for range 2 {
				x.h.HandleMedia(media.Error{Class: media.ErrorDecode})
				e, _ := until[Error](x)
				So(e.Fatal, ShouldBeFalse)
			}
			So(x.el.Loads(), ShouldHaveLength, 3)

			x.h.HandleMedia(media.Error{Class: media.ErrorDecode})
			So(fatal(x).Fatal, ShouldBeTrue)
		})

		Convey("Unsupported media is fatal at once", func() {
			x.ready()
			x.h.HandleMedia(media.Error{Class: media.ErrorUnsupported})
			e, _ := until[Error](x)
			So(e.Fatal, ShouldBeTrue)

			Convey("and the engine stays detached", func() {
				So(errors.Is(x.h.SetLevel(0), ErrNotAttached), ShouldBeTrue)
			})
		})
	})
}

func TestNative(t *testing.T) {
	Convey("Given an element that plays HLS itself", t, func() {
		x := newHarness()
		defer x.cdn.Close()
		x.el.native = true
		src := x.source()

		So(x.h.Attach(context.Background(), src, x.el), ShouldBeNil)

		Convey("The playlist URL is loaded directly and no levels are announced", func() {
			So(x.el.Loads(), ShouldResemble, []load{{src.URL, 0}})
			x.h.HandleMedia(media.Loaded{Duration: 100})
			_, isReady := x.next().(Ready)
			So(isReady, ShouldBeTrue)
		})

		Convey("Quality selection is unavailable", func() {
			So(x.h.SetLevel(0), ShouldEqual, ErrNoLevels)
		})

		Convey("Detach unloads once", func() {
			x.h.Detach()
			x.h.Detach()
			So(x.el.Unloads(), ShouldEqual, 1)
			x.h.HandleMedia(media.Loaded{Duration: 100})
			So(x.next(), ShouldBeNil)
		})
	})
}
