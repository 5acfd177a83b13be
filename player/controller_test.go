package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lectern-cli/lectern/access"
	"github.com/lectern-cli/lectern/engine"
	"github.com/lectern-cli/lectern/media"
	. "github.com/smartystreets/goconvey/convey"
)

func TestOpen(t *testing.T) {
	Convey("Given a controller", t, func() {
		h := newHarness()

		Convey("Opening a video without history", func() {
			h.ready(600, 0)

			Convey("Ends up paused at the start without a resume seek", func() {
				So(h.session().State, ShouldEqual, ReadyPaused)
				So(h.session().CurrentTime, ShouldEqual, 0)
				So(h.session().Duration, ShouldEqual, 600)
				So(h.el.Seeks(), ShouldBeEmpty)
			})

			Convey("Carries the grant into the session", func() {
				So(h.session().PlayableURL, ShouldEqual, "https://cdn.example.test/v1/playlist.m3u8")
				So(h.session().Title(), ShouldEqual, "Closures in depth")
				So(h.session().Levels, ShouldHaveLength, 3)
				So(h.session().Quality, ShouldEqual, engine.AutoLevel)
				So(h.eng.src.URL, ShouldEqual, h.session().PlayableURL)
			})
		})

		Convey("Opening a video watched up to 120 of 600 seconds", func() {
			h.resume = 120
			h.send(Open{VideoID: "v1"})

			Convey("Waits for the engine before seeking", func() {
				So(h.session().State, ShouldEqual, Loading)
				So(h.el.Seeks(), ShouldBeEmpty)

				h.engineSays(engine.Ready{Duration: 600})

				So(h.session().State, ShouldEqual, ReadyPaused)
				So(h.session().CurrentTime, ShouldEqual, 120)
				So(h.el.Seeks(), ShouldResemble, []float64{120})
			})

			Convey("Ignores time updates while loading", func() {
				h.media(media.TimeUpdate{Time: 3})
				So(h.session().CurrentTime, ShouldEqual, 0)
			})
		})

		Convey("When the resume lookup finishes after the engine", func() {
			h.c.async = func(f func()) { go f() }
			h.resume = 90
			h.gate = make(chan struct{})
			h.send(Open{VideoID: "v1"})
			So(eventually(h, func() bool { return h.eng != nil }), ShouldBeTrue)

			h.engineSays(engine.Ready{Duration: 600})
			So(h.session().State, ShouldEqual, Loading)

			close(h.gate)
			So(eventually(h, func() bool { return h.session().State == ReadyPaused }), ShouldBeTrue)
			So(h.session().CurrentTime, ShouldEqual, 90)
			So(h.el.Seeks(), ShouldResemble, []float64{90})
		})

		Convey("When the resume lookup never answers", func() {
			h = newHarness(func(o *Options) { o.ResumeTimeout = 20 * time.Millisecond })
			h.c.async = func(f func()) { go f() }
			h.resume = 90
			h.gate = make(chan struct{})
			h.send(Open{VideoID: "v1"})
			So(eventually(h, func() bool { return h.eng != nil }), ShouldBeTrue)
			h.engineSays(engine.Ready{Duration: 600})

			Convey("Playback starts at 0 after the timeout", func() {
				So(eventually(h, func() bool { return h.session().State == ReadyPaused }), ShouldBeTrue)
				So(h.session().CurrentTime, ShouldEqual, 0)
				So(h.el.Seeks(), ShouldBeEmpty)
			})
		})

		Convey("With autoplay enabled", func() {
			h = newHarness(func(o *Options) { o.Autoplay = true })
			h.ready(600, 0)

			So(h.session().State, ShouldEqual, ReadyPlaying)
			So(h.el.plays, ShouldEqual, 1)
		})

		Convey("Access errors never start the engine", func() {
			for err, text := range map[error]string{
				access.ErrUnauthorized:  "Sign in",
				access.ErrForbidden:     "not enrolled",
				access.ErrNotFound:      "does not exist",
				access.ErrNoPlayableURL: "no playable stream",
			} {
				h := newHarness()
				h.res.err = err
				h.send(Open{VideoID: "v1"})

				So(h.session().State, ShouldEqual, Errored)
				So(h.session().Error, ShouldContainSubstring, text)
				So(errors.Is(h.session().Err, err), ShouldBeTrue)
				So(h.engines, ShouldEqual, 0)
			}
		})

		Convey("A fatal engine error while loading", func() {
			h.send(Open{VideoID: "v1"})
			h.engineSays(engine.Error{Fatal: true, Err: engine.ErrURLExpired})

			So(h.session().State, ShouldEqual, Errored)
			So(h.session().Error, ShouldContainSubstring, "expired")
			So(h.sync.Checkpoints(), ShouldBeEmpty)

			Convey("Is terminal", func() {
				h.engineSays(engine.Ready{Duration: 600})
				h.send(Play{})
				So(h.session().State, ShouldEqual, Errored)
			})
		})

		Convey("An attach failure errors the session", func() {
			h = newHarness(func(o *Options) {
				o.NewEngine = func(emit func(engine.Event)) engine.Engine {
					return &fakeEngine{emit: emit, attachErr: errors.New("bad url")}
				}
			})
			h.send(Open{VideoID: "v1"})
			So(h.session().State, ShouldEqual, Errored)
		})

		Convey("Opening another video", func() {
			h.playing(600, 57)
			first, oldGen := h.sync, h.c.gen

			h.send(Open{VideoID: "v2"})

			Convey("Tears the first session down with a final checkpoint", func() {
				So(first.finals, ShouldResemble, []position{{57, 600}})
				So(first.closed, ShouldBeTrue)
				So(h.session().VideoID, ShouldEqual, "v2")
				So(h.session().State, ShouldEqual, Loading)
			})

			Convey("Drops late events of the first session", func() {
				h.send(engineEvent{gen: oldGen, ev: engine.Error{Fatal: true, Err: engine.ErrURLExpired}})
				h.send(resumeLoaded{gen: oldGen, seconds: 300})
				So(h.session().State, ShouldEqual, Loading)
			})
		})
	})
}

func TestPlayback(t *testing.T) {
	Convey("Given a ready video of 600 seconds", t, func() {
		h := newHarness()
		h.ready(600, 0)

		Convey("Play and pause", func() {
			h.send(Play{})
			So(h.session().State, ShouldEqual, ReadyPlaying)
			So(h.session().Playing, ShouldBeTrue)

			h.media(media.Playing{}, media.TimeUpdate{Time: 42})
			h.send(Pause{})

			So(h.session().State, ShouldEqual, ReadyPaused)
			So(h.sync.Checkpoints(), ShouldResemble, []position{{42, 600}})

			Convey("The element echoing the pause changes nothing", func() {
				h.media(media.Paused{})
				So(h.sync.Checkpoints(), ShouldHaveLength, 1)
			})
		})

		Convey("A pause initiated by the element checkpoints too", func() {
			h.send(Play{})
			h.media(media.TimeUpdate{Time: 12}, media.Paused{})

			So(h.session().State, ShouldEqual, ReadyPaused)
			So(h.sync.Checkpoints(), ShouldResemble, []position{{12, 600}})

			h.media(media.Playing{})
			So(h.session().State, ShouldEqual, ReadyPlaying)
		})

		Convey("Periodic checkpoints while playing", func() {
			h.send(Play{})
			for _, at := range []float64{10, 20, 30} {
				h.media(media.TimeUpdate{Time: at})
				h.advance(10 * time.Second)
			}

			cps := h.sync.Checkpoints()
			So(cps, ShouldResemble, []position{{10, 600}, {20, 600}, {30, 600}})

			Convey("Stop while paused", func() {
				h.send(Pause{})
				h.advance(time.Minute)
				So(h.sync.Checkpoints(), ShouldHaveLength, 4)
			})
		})

		Convey("Seeking", func() {
			h.send(SeekTo{Time: 300})

			So(h.session().State, ShouldEqual, Seeking)
			So(h.session().CurrentTime, ShouldEqual, 300)
			So(h.sync.Checkpoints(), ShouldBeEmpty)

			Convey("Returns to the previous state on confirmation with one checkpoint", func() {
				h.media(media.Seeked{Time: 300})

				So(h.session().State, ShouldEqual, ReadyPaused)
				So(h.sync.Checkpoints(), ShouldResemble, []position{{300, 600}})
			})

			Convey("Clamps to the duration", func() {
				h.send(SeekTo{Time: 900})
				So(h.session().CurrentTime, ShouldEqual, 600)
				h.send(SeekTo{Time: -5})
				So(h.session().CurrentTime, ShouldEqual, 0)
			})

			Convey("Never changes play state", func() {
				So(h.el.plays, ShouldEqual, 0)
				So(h.el.pauses, ShouldEqual, 0)
			})
		})

		Convey("Seeking backwards may lower the stored position", func() {
			h.send(Play{})
			h.media(media.TimeUpdate{Time: 200})
			h.send(SeekBy{Delta: -150})
			h.media(media.Seeked{Time: 50})

			So(h.session().State, ShouldEqual, ReadyPlaying)
			So(h.sync.Checkpoints(), ShouldResemble, []position{{50, 600}})
		})

		Convey("Selecting a quality keeps the position", func() {
			h.send(Play{})
			h.media(media.TimeUpdate{Time: 200})
			h.send(SelectQuality{Index: 1})
			h.engineSays(engine.LevelSwitched{Index: 1})

			So(h.eng.levels, ShouldResemble, []int{1})
			So(h.session().Quality, ShouldEqual, 1)
			So(h.session().ActiveLevel, ShouldEqual, 1)
			So(h.session().CurrentTime, ShouldEqual, 200)

			Convey("An unknown level is rejected", func() {
				h.send(SelectQuality{Index: 7})
				So(h.session().Quality, ShouldEqual, 1)
			})
		})

		Convey("The seek edge of a level reload does not move the position", func() {
			h.send(Play{})
			h.media(media.TimeUpdate{Time: 300})
			h.send(SelectQuality{Index: 2})
			h.media(media.Seeked{Time: 0})

			So(h.session().State, ShouldEqual, ReadyPlaying)
			So(h.session().CurrentTime, ShouldEqual, 300)

			h.advance(10 * time.Second)
			So(h.sync.Checkpoints(), ShouldResemble, []position{{300, 600}})
		})

		Convey("A network error mid-playback", func() {
			h.send(Play{})
			h.media(media.TimeUpdate{Time: 100})
			h.engineSays(engine.Error{Err: errors.New("segment timeout")})

			So(h.session().State, ShouldEqual, ReadyPlaying)

			h.advance(10 * time.Second)
			So(h.sync.Checkpoints(), ShouldResemble, []position{{100, 600}})
		})

		Convey("A fatal error after ready", func() {
			h.send(Play{})
			h.media(media.TimeUpdate{Time: 33})
			h.engineSays(engine.Error{Fatal: true, Err: engine.ErrRetriesExhausted})

			So(h.session().State, ShouldEqual, Errored)
			So(h.session().Error, ShouldContainSubstring, "Reload")
			So(h.sync.Checkpoints(), ShouldResemble, []position{{33, 600}})
			So(h.eng.detached, ShouldBeGreaterThan, 0)

			Convey("Sends no final checkpoint on close", func() {
				h.send(Close{})
				So(h.sync.finals, ShouldBeEmpty)
			})
		})

		Convey("End of stream", func() {
			h.send(Play{})
			h.media(media.TimeUpdate{Time: 599.4}, media.Ended{})

			So(h.session().State, ShouldEqual, Ended)
			So(h.session().CurrentTime, ShouldEqual, 600)
			So(h.sync.completes, ShouldResemble, []float64{600})

			Convey("Stops periodic checkpoints", func() {
				h.advance(time.Minute)
				So(h.sync.Checkpoints(), ShouldBeEmpty)
			})

			Convey("Is reported once", func() {
				h.media(media.Ended{})
				So(h.sync.completes, ShouldHaveLength, 1)
			})

			Convey("Play restarts from the beginning", func() {
				h.send(Play{})
				So(h.session().State, ShouldEqual, ReadyPlaying)
				So(h.session().CurrentTime, ShouldEqual, 0)
				So(h.el.Seeks(), ShouldResemble, []float64{0})
			})

			Convey("Close sends no final checkpoint", func() {
				h.send(Close{})
				So(h.sync.finals, ShouldBeEmpty)
			})
		})

		Convey("Volume, mute, rate and fullscreen", func() {
			h.send(SetVolume{Volume: 1.7})
			So(h.session().Volume, ShouldEqual, 1)

			h.send(AdjustVolume{Delta: -0.25})
			So(h.session().Volume, ShouldAlmostEqual, 0.75)
			So(h.el.volume, ShouldAlmostEqual, 0.75)

			h.send(ToggleMute{}, ToggleFullscreen{})
			So(h.session().Muted, ShouldBeTrue)
			So(h.el.muted, ShouldBeTrue)
			So(h.session().Fullscreen, ShouldBeTrue)

			h.send(SetRate{Rate: 1.5})
			So(h.session().Rate, ShouldEqual, 1.5)
			So(h.el.rate, ShouldEqual, 1.5)

			h.send(SetRate{Rate: 3})
			So(h.session().Rate, ShouldEqual, 1.5)
			So(errors.Is(h.c.setRate(3), ErrInvalidRate), ShouldBeTrue)
		})

		Convey("Rejected element commands leave the session alone", func() {
			before := h.session()
			h.el.failing = errors.New("ipc closed")

			h.send(ToggleMute{}, ToggleFullscreen{}, SetVolume{Volume: 0.3}, SetRate{Rate: 1.5})
			s := h.session()
			So(s.Muted, ShouldEqual, before.Muted)
			So(s.Fullscreen, ShouldEqual, before.Fullscreen)
			So(s.Volume, ShouldEqual, before.Volume)
			So(s.Rate, ShouldEqual, before.Rate)

			h.el.failing = nil
			h.send(ToggleMute{})
			So(h.session().Muted, ShouldEqual, !before.Muted)
		})

		Convey("Buffered progress is clamped", func() {
			h.media(media.Buffered{Percent: 140})
			So(h.session().Buffered, ShouldEqual, 100)
		})

		Convey("Element events reach the engine", func() {
			h.media(media.Bandwidth{BitsPerSecond: 4e6})
			So(h.eng.media, ShouldContain, media.Event(media.Bandwidth{BitsPerSecond: 4e6}))
		})
	})
}

func TestKeyboard(t *testing.T) {
	Convey("Given a playing video of 100 seconds", t, func() {
		h := newHarness()
		h.playing(100, 50)

		Convey("Space and k toggle playback", func() {
			h.send(Key{Name: " "})
			So(h.session().State, ShouldEqual, ReadyPaused)
			h.send(Key{Name: "k"})
			So(h.session().State, ShouldEqual, ReadyPlaying)
		})

		Convey("j and l step by ten seconds", func() {
			h.send(Key{Name: "j"})
			So(h.session().CurrentTime, ShouldEqual, 40)
			h.send(Key{Name: "right"}, Key{Name: "l"})
			So(h.session().CurrentTime, ShouldEqual, 60)
		})

		Convey("Pressing l three times near the end stops at the duration", func() {
			h.media(media.TimeUpdate{Time: 85})
			h.send(Key{Name: "l"}, Key{Name: "l"}, Key{Name: "l"})
			h.media(media.Seeked{Time: 100})

			So(h.session().CurrentTime, ShouldEqual, 100)
			So(h.session().State, ShouldEqual, ReadyPlaying)
			So(h.session().Error, ShouldBeEmpty)
			So(h.el.Seeks(), ShouldResemble, []float64{95, 100, 100})
		})

		Convey("Digits seek to a tenth of the duration", func() {
			h.send(Key{Name: "3"})
			So(h.session().CurrentTime, ShouldEqual, 30)
			h.send(Key{Name: "0"})
			So(h.session().CurrentTime, ShouldEqual, 0)
		})

		Convey("Arrows change the volume within bounds", func() {
			h.send(Key{Name: "up"})
			So(h.session().Volume, ShouldEqual, 1)
			h.send(Key{Name: "down"}, Key{Name: "down"})
			So(h.session().Volume, ShouldAlmostEqual, 0.8)
		})

		Convey("m and f toggle mute and fullscreen", func() {
			h.send(Key{Name: "m"}, Key{Name: "f"})
			So(h.session().Muted, ShouldBeTrue)
			So(h.session().Fullscreen, ShouldBeTrue)
		})

		Convey("< and > step through the rates", func() {
			h.send(Key{Name: ">"})
			So(h.session().Rate, ShouldEqual, 1.25)
			h.send(Key{Name: "<"}, Key{Name: "<"}, Key{Name: "<"})
			So(h.session().Rate, ShouldEqual, 0.5)
			h.send(Key{Name: "<"})
			So(h.session().Rate, ShouldEqual, 0.5)
		})

		Convey("Keys are ignored without focus", func() {
			h.send(Focus{Focused: false}, Key{Name: "k"})
			So(h.session().State, ShouldEqual, ReadyPlaying)
		})
	})
}

func TestControls(t *testing.T) {
	Convey("Given a playing video", t, func() {
		h := newHarness()
		h.playing(600, 10)
		So(h.session().ControlsVisible, ShouldBeTrue)

		Convey("Controls hide after three idle seconds", func() {
			h.advance(3 * time.Second)
			So(h.session().ControlsVisible, ShouldBeFalse)

			Convey("And come back on pointer movement", func() {
				h.send(PointerMoved{})
				So(h.session().ControlsVisible, ShouldBeTrue)

				h.advance(2 * time.Second)
				So(h.session().ControlsVisible, ShouldBeTrue)
				h.advance(time.Second)
				So(h.session().ControlsVisible, ShouldBeFalse)
			})
		})

		Convey("Pointer movement restarts the countdown", func() {
			h.advance(2 * time.Second)
			h.send(PointerMoved{})
			h.advance(2 * time.Second)
			So(h.session().ControlsVisible, ShouldBeTrue)
		})

		Convey("Controls stay visible while paused", func() {
			h.advance(3 * time.Second)
			h.send(Pause{})
			So(h.session().ControlsVisible, ShouldBeTrue)
			h.advance(time.Minute)
			So(h.session().ControlsVisible, ShouldBeTrue)
		})
	})
}

func TestClose(t *testing.T) {
	Convey("Given a running controller playing at 57 seconds", t, func() {
		h := newHarness()
		h.playing(600, 57)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		errs := make(chan error, 1)
		go func() { errs <- h.c.Run(ctx) }()

		Convey("Close sends one final checkpoint without blocking", func() {
			So(h.c.Post(Close{}), ShouldBeNil)

			select {
			case err := <-errs:
				So(err, ShouldBeNil)
			case <-time.After(2 * time.Second):
				So("controller did not stop", ShouldBeEmpty)
			}

			So(h.sync.finals, ShouldResemble, []position{{57, 600}})
			So(h.sync.Checkpoints(), ShouldBeEmpty)
			So(h.sync.closed, ShouldBeTrue)
			So(h.eng.detached, ShouldEqual, 1)

			Convey("Later posts fail", func() {
				So(errors.Is(h.c.Post(Play{}), ErrClosed), ShouldBeTrue)
			})
		})

		Convey("Cancelling the context tears the session down", func() {
			cancel()
			<-h.c.Done()
			So(<-errs, ShouldEqual, context.Canceled)
			So(h.sync.finals, ShouldHaveLength, 1)
		})

		Convey("The element exiting stops the loop", func() {
			h.el.emit(media.Exited{})
			<-h.c.Done()
			So(<-errs, ShouldBeNil)
			So(h.sync.finals, ShouldHaveLength, 1)
		})
	})

	Convey("A second controller cannot share an element", t, func() {
		h := newHarness()
		_, err := New(h.c.opts)
		So(errors.Is(err, media.ErrElementInUse), ShouldBeTrue)
	})
}

func TestSnapshots(t *testing.T) {
	Convey("Snapshots are coalesced to the newest session", t, func() {
		h := newHarness()
		h.ready(600, 0)
		h.send(SetVolume{Volume: 0.3}, SetVolume{Volume: 0.6})

		snap := <-h.c.Snapshots()
		So(snap.Volume, ShouldEqual, 0.6)
		So(snap.State, ShouldEqual, ReadyPaused)

		select {
		case <-h.c.Snapshots():
			So("a second snapshot was queued", ShouldBeEmpty)
		default:
		}

		Convey("And do not share level slices with the loop", func() {
			snap.Levels[0].Label = "changed"
			So(h.session().Levels[0].Label, ShouldEqual, "360p")
		})
	})
}
