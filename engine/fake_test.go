package engine

import (
	"sync"

	"github.com/lectern-cli/lectern/media"
)

type load struct {
	url     string
	startAt float64
}

// fakeElement records what the engine asks of it.
type fakeElement struct {
	mu      sync.Mutex
	native  bool
	loads   []load
	unloads int
}

func (f *fakeElement) Load(url string, startAt float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, load{url, startAt})
	return nil
}

func (f *fakeElement) Unload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloads++
	return nil
}

func (f *fakeElement) Loads() []load {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]load(nil), f.loads...)
}

func (f *fakeElement) Unloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unloads
}

func (f *fakeElement) Play() error                       { return nil }
func (f *fakeElement) Pause() error                      { return nil }
func (f *fakeElement) Seek(float64) error                { return nil }
func (f *fakeElement) SetVolume(float64) error           { return nil }
func (f *fakeElement) SetMuted(bool) error               { return nil }
func (f *fakeElement) SetRate(float64) error             { return nil }
func (f *fakeElement) SetFullscreen(bool) error          { return nil }
func (f *fakeElement) CanPlayNatively(string) bool       { return f.native }
func (f *fakeElement) Subscribe(func(media.Event)) error { return nil }
func (f *fakeElement) Close() error                      { return nil }
