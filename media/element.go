// Package media drives a playback surface. The engine attaches streams to
// an Element and the controller listens to its events.
package media

import (
	"errors"
	"fmt"
)

var (
	ErrElementInUse = errors.New("media element already has an owner")
	ErrClosed       = errors.New("media element closed")
)

// Element is one playback surface, owned by a single controller.
type Element interface {
	// Load replaces the current source, starting playback position at startAt seconds.
	// The element stays paused until Play.
	Load(url string, startAt float64) error
	Unload() error

	Play() error
	Pause() error
	Seek(seconds float64) error

	SetVolume(v float64) error
	SetMuted(muted bool) error
	SetRate(rate float64) error
	SetFullscreen(on bool) error

	// CanPlayNatively reports whether the element handles the MIME type
	// without an adaptive engine in front of it.
	CanPlayNatively(mime string) bool

	// Subscribe registers the only event handler. A second call fails with ErrElementInUse.
	Subscribe(fn func(Event)) error
	Close() error
}

// ErrorClass groups media errors by how the player should react.
type ErrorClass int

const (
	ErrorNetwork ErrorClass = iota
	ErrorDecode
	ErrorUnsupported
)

func (c ErrorClass) String() string {
	switch c {
	case ErrorNetwork:
		return "network"
	case ErrorDecode:
		return "decode"
	case ErrorUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("ErrorClass(%d)", int(c))
	}
}

// Event is anything an element reports.
type Event interface {
	mediaEvent()
}

type (
	// Loaded is sent once per Load when the source is ready and its duration known.
	Loaded struct{ Duration float64 }
	TimeUpdate struct{ Time float64 }
	Playing    struct{}
	Paused     struct{}
	Seeked     struct{ Time float64 }
	// Buffered is the buffered end of the stream as a percentage of the duration.
	Buffered struct{ Percent float64 }
	Ended    struct{}
	// Bandwidth is an observed download throughput sample.
	Bandwidth struct{ BitsPerSecond float64 }
	Error     struct {
		Class ErrorClass
		Err   error
	}
	// Exited means the surface went away, e.g. the player window was closed.
	Exited struct{}
)

func (Loaded) mediaEvent()     {}
func (TimeUpdate) mediaEvent() {}
func (Playing) mediaEvent()    {}
func (Paused) mediaEvent()     {}
func (Seeked) mediaEvent()     {}
func (Buffered) mediaEvent()   {}
func (Ended) mediaEvent()      {}
func (Bandwidth) mediaEvent()  {}
func (Error) mediaEvent()      {}
func (Exited) mediaEvent()     {}

func (e Error) Error() string {
	if e.Err == nil {
		return e.Class.String() + " error"
	}
	return e.Class.String() + " error: " + e.Err.Error()
}
