package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/lectern-cli/lectern/internal/ui"
	"github.com/lectern-cli/lectern/player"
	"github.com/lectern-cli/lectern/style"
)

// Controller is the part of player.Controller the screen talks to.
type Controller interface {
	Post(ev player.Event) error
	Snapshots() <-chan player.Session
	Done() <-chan struct{}
}

type statefulBubble struct {
	state  state
	keymap *statefulKeymap

	controller Controller
	session    player.Session
	videoID    string

	spinnerC  spinner.Model
	volumeC   progress.Model
	qualityC  list.Model
	helpC     help.Model
	notifier  *ui.Model
	quitting  bool
	lastError error

	width, height int
}

func newBubble(controller Controller, videoID string) *statefulBubble {
	b := &statefulBubble{
		state:      loadingState,
		keymap:     newStatefulKeymap(),
		controller: controller,
		videoID:    videoID,
		notifier:   &ui.Model{},
	}

	b.spinnerC = spinner.New()
	b.spinnerC.Spinner = spinner.Dot
	b.spinnerC.Style = style.New().Foreground(style.AccentColor)

	b.volumeC = progress.New(
		progress.WithSolidFill(string(style.AccentColor)),
		progress.WithoutPercentage(),
		progress.WithWidth(12),
	)

	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.Foreground(style.AccentColor).BorderForeground(style.AccentColor)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.Foreground(style.Subtext).BorderForeground(style.AccentColor)

	b.qualityC = list.New(nil, delegate, 0, 0)
	b.qualityC.Title = "Quality"
	b.qualityC.SetShowStatusBar(false)
	b.qualityC.SetFilteringEnabled(false)
	b.qualityC.Styles.Title = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Padding(0, 1)

	b.helpC = help.New()
	b.keymap.setState(b.state)

	return b
}

func (b *statefulBubble) setState(s state) {
	b.state = s
	b.keymap.setState(s)
}

func (b *statefulBubble) raiseError(err error) {
	b.lastError = err
	b.setState(errorState)
}

func (b *statefulBubble) resize(width, height int) {
	b.width, b.height = width, height

	x, y := paddingStyle.GetFrameSize()
	b.qualityC.SetSize(width-x, height-y)
	b.helpC.Width = width - x
}

// apply takes a new snapshot and returns what changed that deserves a
// notification.
func (b *statefulBubble) apply(s player.Session) string {
	prev := b.session
	b.session = s

	if s.State == player.Errored {
		b.lastError = fmt.Errorf("%s (%w)", s.Error, s.Err)
	}
	if b.quitting {
		return ""
	}

	if b.state != qualityState || s.State == player.Errored {
		b.setState(stateOf(s))
	}
	if b.state == qualityState {
		b.qualityC.SetItems(qualityItems(s))
	}

	switch {
	case prev.State == player.Idle && prev.VideoID == "":
		return ""
	case s.Rate != prev.Rate:
		return fmt.Sprintf("Speed %g×", s.Rate)
	case s.Muted != prev.Muted && s.Muted:
		return "Muted"
	case s.Muted != prev.Muted:
		return "Unmuted"
	case s.ActiveLevel != prev.ActiveLevel && s.ActiveLevel >= 0 && s.ActiveLevel < len(s.Levels):
		return "Streaming " + s.Levels[s.ActiveLevel].Label
	}
	return ""
}
