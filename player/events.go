package player

import (
	"github.com/lectern-cli/lectern/access"
	"github.com/lectern-cli/lectern/engine"
	"github.com/lectern-cli/lectern/media"
)

// Event is any input of the controller loop.
type Event interface {
	event()
}

// Commands.
type (
	Open             struct{ VideoID string }
	Play             struct{}
	Pause            struct{}
	Toggle           struct{}
	SeekTo           struct{ Time float64 }
	SeekBy           struct{ Delta float64 }
	SetVolume        struct{ Volume float64 }
	AdjustVolume     struct{ Delta float64 }
	ToggleMute       struct{}
	SetRate          struct{ Rate float64 }
	StepRate         struct{ Steps int }
	ToggleFullscreen struct{}
	// SelectQuality pins a level by index, or engine.AutoLevel.
	SelectQuality struct{ Index int }
	// Key is a keypress named the way bubbletea names them.
	Key          struct{ Name string }
	PointerMoved struct{}
	Focus        struct{ Focused bool }
	Close        struct{}
)

func (Open) event()             {}
func (Play) event()             {}
func (Pause) event()            {}
func (Toggle) event()           {}
func (SeekTo) event()           {}
func (SeekBy) event()           {}
func (SetVolume) event()        {}
func (AdjustVolume) event()     {}
func (ToggleMute) event()       {}
func (SetRate) event()          {}
func (StepRate) event()         {}
func (ToggleFullscreen) event() {}
func (SelectQuality) event()    {}
func (Key) event()              {}
func (PointerMoved) event()     {}
func (Focus) event()            {}
func (Close) event()            {}

// Results of background work, tagged with the session generation they
// belong to.
type (
	accessResolved struct {
		gen   int
		grant access.Grant
		err   error
	}
	resumeLoaded struct {
		gen     int
		seconds float64
	}
	engineEvent struct {
		gen int
		ev  engine.Event
	}
	mediaEvent struct{ ev media.Event }
)

func (accessResolved) event() {}
func (resumeLoaded) event()   {}
func (engineEvent) event()    {}
func (mediaEvent) event()     {}
