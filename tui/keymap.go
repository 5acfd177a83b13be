package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/lectern-cli/lectern/color"
	"github.com/lectern-cli/lectern/style"
)

// statefulKeymap lists the bindings shown in help for the current screen.
// Playback keys are interpreted by the player; the bindings here only
// document them.
type statefulKeymap struct {
	state state

	quit, forceQuit,
	playPause, back, forward,
	volume, mute, fullscreen,
	rate, jump,
	quality, confirm, cancel,
	showHelp key.Binding
}

func (k *statefulKeymap) setState(s state) {
	k.state = s
}

func newStatefulKeymap() *statefulKeymap {
	return &statefulKeymap{
		quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		forceQuit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+d"),
			key.WithHelp("ctrl+c", "quit"),
		),
		playPause: key.NewBinding(
			key.WithKeys(" ", "k"),
			key.WithHelp(style.Fg(color.Orange)("space"), style.Fg(color.Orange)("play/pause")),
		),
		back: key.NewBinding(
			key.WithKeys("left", "j"),
			key.WithHelp("←/j", "-10s"),
		),
		forward: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "+10s"),
		),
		volume: key.NewBinding(
			key.WithKeys("up", "down"),
			key.WithHelp("↑/↓", "volume"),
		),
		mute: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mute"),
		),
		fullscreen: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "fullscreen"),
		),
		rate: key.NewBinding(
			key.WithKeys("<", ">"),
			key.WithHelp("</>", "speed"),
		),
		jump: key.NewBinding(
			key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("0-9", "jump to %"),
		),
		quality: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "quality"),
		),
		confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		showHelp: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
	}
}

func (k *statefulKeymap) ShortHelp() []key.Binding {
	switch k.state {
	case playerState:
		return []key.Binding{k.playPause, k.back, k.forward, k.quality, k.showHelp, k.quit}
	case qualityState:
		return []key.Binding{k.confirm, k.cancel}
	default:
		return []key.Binding{k.forceQuit}
	}
}

func (k *statefulKeymap) FullHelp() [][]key.Binding {
	switch k.state {
	case playerState:
		return [][]key.Binding{
			{k.playPause, k.back, k.forward, k.jump},
			{k.volume, k.mute, k.fullscreen, k.rate},
			{k.quality, k.showHelp, k.quit},
		}
	default:
		return [][]key.Binding{k.ShortHelp()}
	}
}
