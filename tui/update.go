package tui

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/lectern-cli/lectern/internal/ui"
	"github.com/lectern-cli/lectern/player"
)

type (
	snapshotMsg player.Session
	doneMsg     struct{}
)

func (b *statefulBubble) Init() tea.Cmd {
	return tea.Batch(b.spinnerC.Tick, b.post(player.Open{VideoID: b.videoID}), b.waitForSnapshot())
}

func (b *statefulBubble) waitForSnapshot() tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-b.controller.Snapshots():
			return snapshotMsg(s)
		case <-b.controller.Done():
			return doneMsg{}
		}
	}
}

func (b *statefulBubble) post(ev player.Event) tea.Cmd {
	if err := b.controller.Post(ev); err != nil {
		return tea.Quit
	}
	return nil
}

func (b *statefulBubble) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.resize(msg.Width, msg.Height)
		return b, nil
	case snapshotMsg:
		notice := b.apply(player.Session(msg))
		cmds := []tea.Cmd{b.waitForSnapshot()}
		if notice != "" {
			cmds = append(cmds, ui.Notify(notice))
		}
		return b, tea.Batch(cmds...)
	case doneMsg:
		return b, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		b.spinnerC, cmd = b.spinnerC.Update(msg)
		return b, cmd
	case tea.FocusMsg:
		return b, b.post(player.Focus{Focused: true})
	case tea.BlurMsg:
		return b, b.post(player.Focus{Focused: false})
	case tea.MouseMsg:
		return b, b.post(player.PointerMoved{})
	case tea.KeyMsg:
		return b, b.handleKey(msg)
	}

	return b, b.notifier.Update(msg)
}

func (b *statefulBubble) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, b.keymap.forceQuit) {
		return b.quit()
	}

	switch b.state {
	case qualityState:
		return b.handleQualityKey(msg)
	case errorState, loadingState:
		if key.Matches(msg, b.keymap.quit) {
			return b.quit()
		}
		return nil
	}

	switch {
	case key.Matches(msg, b.keymap.quit):
		return b.quit()
	case key.Matches(msg, b.keymap.showHelp):
		b.helpC.ShowAll = !b.helpC.ShowAll
		return nil
	case key.Matches(msg, b.keymap.quality):
		if len(b.session.Levels) == 0 {
			return ui.Notify("This stream has a single quality")
		}
		b.qualityC.SetItems(qualityItems(b.session))
		b.qualityC.Select(b.session.Quality + 1)
		b.setState(qualityState)
		return nil
	}

	return b.post(player.Key{Name: msg.String()})
}

func (b *statefulBubble) handleQualityKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, b.keymap.cancel), key.Matches(msg, b.keymap.quality):
		b.setState(stateOf(b.session))
		return nil
	case key.Matches(msg, b.keymap.confirm):
		item, ok := b.qualityC.SelectedItem().(qualityItem)
		b.setState(stateOf(b.session))
		if !ok {
			return nil
		}
		return b.post(player.SelectQuality{Index: item.index})
	}

	var cmd tea.Cmd
	b.qualityC, cmd = b.qualityC.Update(msg)
	return cmd
}

// quit asks the controller to close; the program exits once it is done.
func (b *statefulBubble) quit() tea.Cmd {
	if b.quitting {
		return tea.Quit
	}
	b.quitting = true
	return b.post(player.Close{})
}
