package tui

import "github.com/lectern-cli/lectern/player"

type state int

const (
	loadingState state = iota
	playerState
	qualityState
	errorState
)

// stateOf picks the screen for a session.
func stateOf(s player.Session) state {
	switch s.State {
	case player.Idle, player.Loading:
		return loadingState
	case player.Errored:
		return errorState
	default:
		return playerState
	}
}
