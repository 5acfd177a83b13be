package player

import (
	"slices"

	"github.com/lectern-cli/lectern/access"
	"github.com/lectern-cli/lectern/engine"
)

// State is the playback state of a session.
type State int

const (
	Idle State = iota
	Loading
	ReadyPaused
	ReadyPlaying
	Seeking
	Ended
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case ReadyPaused:
		return "paused"
	case ReadyPlaying:
		return "playing"
	case Seeking:
		return "seeking"
	case Ended:
		return "ended"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

// ready reports whether s is one of the states where the element is loaded
// and accepts playback commands.
func (s State) ready() bool {
	return s == ReadyPaused || s == ReadyPlaying || s == Seeking
}

// Rates lists the selectable playback rates in ascending order.
var Rates = []float64{0.5, 0.75, 1, 1.25, 1.5, 1.75, 2}

// Session is the playback state of one opened video. Subscribers receive
// copies; only the controller loop mutates it.
type Session struct {
	VideoID     string
	Video       access.Video
	PlayableURL string
	EmbedURL    string

	State       State
	CurrentTime float64
	Duration    float64
	Playing     bool
	Volume      float64
	Muted       bool
	Rate        float64
	Fullscreen  bool
	Buffered    float64

	Levels []engine.Level
	// Quality is the requested level, or engine.AutoLevel.
	Quality int
	// ActiveLevel is the level currently streaming, -1 until known.
	ActiveLevel int

	ControlsVisible bool
	Focused         bool

	// Error is the message shown to the user in Errored.
	Error string
	Err   error
}

func newSession(videoID string, volume float64) Session {
	return Session{
		VideoID:         videoID,
		State:           Idle,
		Volume:          volume,
		Rate:            1,
		Quality:         engine.AutoLevel,
		ActiveLevel:     -1,
		ControlsVisible: true,
		Focused:         true,
	}
}

// Title is the video title, or its id until metadata arrives.
func (s Session) Title() string {
	if s.Video.Title != "" {
		return s.Video.Title
	}
	return s.VideoID
}

// Progress is the played fraction of the video in [0, 1].
func (s Session) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return min(max(s.CurrentTime/s.Duration, 0), 1)
}

func (s Session) clone() Session {
	s.Levels = slices.Clone(s.Levels)
	return s
}
