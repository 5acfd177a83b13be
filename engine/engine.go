// Package engine attaches adaptive HLS streams to a media element and
// manages quality levels, bandwidth adaptation and error recovery.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lectern-cli/lectern/media"
)

// AutoLevel selects quality levels automatically.
const AutoLevel = -1

var (
	ErrURLExpired       = errors.New("playable URL expired")
	ErrNoLevels         = errors.New("stream has no selectable quality levels")
	ErrInvalidLevel     = errors.New("no such quality level")
	ErrBadManifest      = errors.New("manifest could not be parsed")
	ErrStreamNotFound   = errors.New("stream not found")
	ErrRetriesExhausted = errors.New("network retries exhausted")
	ErrNotAttached      = errors.New("engine is not attached")
)

// Level is one rendition from the master manifest.
type Level struct {
	Height  int
	Bitrate int
	Label   string
	URI     string
}

func (l Level) String() string {
	return l.Label
}

// Source is a playable manifest URL and when it stops being valid.
type Source struct {
	URL     string
	Expires time.Time
}

func (s Source) expired(now time.Time) bool {
	return !s.Expires.IsZero() && !now.Before(s.Expires)
}

// Event is anything the engine reports to its owner.
type Event interface {
	engineEvent()
}

type (
	// ManifestParsed lists levels in manifest order. It is not sent in native mode.
	ManifestParsed struct{ Levels []Level }
	// Ready is sent once per attach, when the element first loaded the stream.
	Ready struct{ Duration float64 }
	// LevelSwitched is sent for every change of the active level.
	LevelSwitched struct {
		Index int
		Auto  bool
	}
	Error struct {
		Fatal bool
		Err   error
	}
)

func (ManifestParsed) engineEvent() {}
func (Ready) engineEvent()          {}
func (LevelSwitched) engineEvent()  {}
func (Error) engineEvent()          {}

func (e Error) Error() string {
	if e.Fatal {
		return fmt.Sprintf("fatal: %v", e.Err)
	}
	return e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// Engine streams one Source into one element at a time.
type Engine interface {
	Attach(ctx context.Context, src Source, el media.Element) error
	// SetLevel pins a level, or hands selection back with AutoLevel.
	SetLevel(index int) error
	// HandleMedia feeds element events to the engine.
	HandleMedia(ev media.Event)
	// Detach stops loading and unloads the element. It is idempotent.
	Detach()
}
