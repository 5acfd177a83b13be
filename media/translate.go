package media

import (
	"errors"
	"strings"
)

// translator turns mpv's property stream into element events.
// It is only used from the listener goroutine.
type translator struct {
	loaded   bool
	pending  bool
	duration float64
	time     float64
	paused   bool
	eof      bool
	seeking  bool
}

func newTranslator() *translator {
	return &translator{paused: true}
}

// reset prepares for a new source that starts playing at startAt.
func (t *translator) reset(startAt float64) {
	*t = translator{paused: t.paused, time: startAt}
}

func (t *translator) translate(ev rawEvent) []Event {
	switch ev.Event {
	case "property-change":
		return t.property(ev.Name, ev.Data)
	case "file-loaded":
		t.pending = true
		if t.duration > 0 {
			return t.markLoaded()
		}
	case "end-file":
		if ev.Reason == "error" {
			t.loaded, t.pending = false, false
			return []Event{classify(ev.FileError)}
		}
	}
	return nil
}

func (t *translator) markLoaded() []Event {
	t.pending, t.loaded = false, true
	return []Event{Loaded{Duration: t.duration}}
}

func (t *translator) property(name string, data any) []Event {
	switch name {
	case "duration":
		if d, ok := data.(float64); ok && d > 0 {
			t.duration = d
			if t.pending {
				return t.markLoaded()
			}
		}
	case "time-pos":
		v, ok := data.(float64)
		if !ok {
			return nil
		}
		t.time = v
		if t.loaded {
			return []Event{TimeUpdate{Time: v}}
		}
	case "pause":
		p, ok := data.(bool)
		// keep-open pauses at eof, which is not a user pause.
		if !ok || p == t.paused {
			return nil
		}
		t.paused = p
		if t.eof || !t.loaded {
			return nil
		}
		if p {
			return []Event{Paused{}}
		}
		return []Event{Playing{}}
	case "eof-reached":
		eof, _ := data.(bool)
		if eof && !t.eof && t.loaded {
			t.eof = true
			return []Event{Ended{}}
		}
		t.eof = eof
	case "seeking":
		s, _ := data.(bool)
		was := t.seeking
		t.seeking = s
		if was && !s && t.loaded {
			return []Event{Seeked{Time: t.time}}
		}
	case "demuxer-cache-time":
		if v, ok := data.(float64); ok && t.duration > 0 {
			return []Event{Buffered{Percent: min(max(v/t.duration*100, 0), 100)}}
		}
	case "cache-speed":
		if v, ok := data.(float64); ok && v > 0 {
			return []Event{Bandwidth{BitsPerSecond: v * 8}}
		}
	}
	return nil
}

// classify maps mpv's end-file error text onto an error class.
func classify(fileError string) Error {
	msg := strings.ToLower(fileError)
	err := errors.New(fileError)

	switch {
	case strings.Contains(msg, "unrecognized"), strings.Contains(msg, "format"):
		return Error{Class: ErrorUnsupported, Err: err}
	case strings.Contains(msg, "decod"), strings.Contains(msg, "no audio or video"):
		return Error{Class: ErrorDecode, Err: err}
	default:
		return Error{Class: ErrorNetwork, Err: err}
	}
}
