// Package tui is the terminal front end of the player: it renders session
// snapshots and forwards keys, pointer movement and focus to the controller.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run opens videoID in controller and shows the player until it closes.
// The controller loop must already be running. The error that ended the
// session, if any, is returned.
func Run(controller Controller, videoID string) error {
	bubble := newBubble(controller, videoID)

	if _, err := tea.NewProgram(
		bubble,
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
		tea.WithReportFocus(),
	).Run(); err != nil {
		return err
	}
	return bubble.lastError
}
