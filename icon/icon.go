// Package icon renders status symbols in the variant chosen by icons.variant.
package icon

import (
	"github.com/lectern-cli/lectern/key"
	"github.com/spf13/viper"
)

const (
	emoji   = "emoji"
	nerd    = "nerd"
	plain   = "plain"
	squares = "squares"
)

// AvailableVariants lists the values accepted for the icons variant.
func AvailableVariants() []string {
	return []string{emoji, nerd, plain, squares}
}

// Icon names a glyph rendered in the configured icon variant.
type Icon int

const (
	Play Icon = iota
	Pause
	Ended
	Loading
	Fail
	Success
	Volume
	Muted
	Quality
	Lock
)

type def struct {
	emoji, nerd, plain, squares string
}

var icons = map[Icon]def{
	Play:    {"▶️", "", ">", "▶"},
	Pause:   {"⏸️", "", "||", "⏸"},
	Ended:   {"⏹️", "", "[]", "■"},
	Loading: {"⏳", "", "...", "◌"},
	Fail:    {"❌", "", "x", "✖"},
	Success: {"✅", "", "v", "✔"},
	Volume:  {"🔊", "", "vol", "◖"},
	Muted:   {"🔇", "", "mute", "◌"},
	Quality: {"🎞️", "", "q", "▦"},
	Lock:    {"🔒", "", "*", "▣"},
}

func (d def) get() string {
	switch viper.GetString(key.IconsVariant) {
	case emoji:
		return d.emoji
	case nerd:
		return d.nerd
	case plain:
		return d.plain
	case squares:
		return d.squares
	default:
		return ""
	}
}

// Get renders i in the configured variant.
func Get(i Icon) string {
	return icons[i].get()
}
