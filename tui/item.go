package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/lectern-cli/lectern/engine"
	"github.com/lectern-cli/lectern/icon"
	"github.com/lectern-cli/lectern/player"
	"github.com/lectern-cli/lectern/style"
)

// qualityItem is one row of the quality picker. index is engine.AutoLevel
// for automatic selection.
type qualityItem struct {
	index    int
	level    engine.Level
	selected bool
	active   bool
}

func (q qualityItem) FilterValue() string {
	return q.Title()
}

func (q qualityItem) Title() string {
	var title string
	if q.index == engine.AutoLevel {
		title = "Automatic"
	} else {
		title = q.level.Label
	}

	if q.selected {
		title = icon.Get(icon.Success) + " " + title
	}
	return title
}

func (q qualityItem) Description() string {
	if q.index == engine.AutoLevel {
		return "adapts to your connection"
	}

	desc := fmt.Sprintf("%.1f Mbps", float64(q.level.Bitrate)/1e6)
	if q.active {
		desc += " " + style.Faint("(streaming)")
	}
	return desc
}

// qualityItems lists automatic selection first, then levels in manifest order.
func qualityItems(s player.Session) []list.Item {
	items := make([]list.Item, 0, len(s.Levels)+1)
	items = append(items, qualityItem{index: engine.AutoLevel, selected: s.Quality == engine.AutoLevel})

	for i, level := range s.Levels {
		items = append(items, qualityItem{
			index:    i,
			level:    level,
			selected: s.Quality == i,
			active:   s.ActiveLevel == i,
		})
	}
	return items
}
