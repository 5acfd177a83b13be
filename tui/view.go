package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lectern-cli/lectern/color"
	"github.com/lectern-cli/lectern/engine"
	"github.com/lectern-cli/lectern/icon"
	"github.com/lectern-cli/lectern/player"
	"github.com/lectern-cli/lectern/style"
	"github.com/lectern-cli/lectern/util"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"
)

var paddingStyle = lipgloss.NewStyle().Padding(1, 2)

const descriptionLines = 3

func (b *statefulBubble) View() string {
	var output string

	switch b.state {
	case loadingState:
		output = b.viewLoading()
	case playerState:
		output = b.viewPlayer()
	case qualityState:
		output = paddingStyle.Render(b.qualityC.View())
	case errorState:
		output = b.viewError()
	}

	return b.notifier.View(output)
}

func (b *statefulBubble) contentWidth() int {
	x, _ := paddingStyle.GetFrameSize()
	if b.width <= x {
		return 80
	}
	return b.width - x
}

func (b *statefulBubble) viewLoading() string {
	status := "Getting a playable link..."
	if b.session.State == player.Loading {
		status = "Buffering stream..."
	}

	return b.renderLines(false, []string{
		b.header(),
		"",
		b.spinnerC.View() + " " + status,
	})
}

func (b *statefulBubble) viewPlayer() string {
	s := b.session
	width := b.contentWidth()

	lines := []string{b.header()}
	lines = append(lines, b.description(width)...)
	lines = append(lines, "")

	if !s.ControlsVisible {
		lines = append(lines, style.Faint("move the mouse or press a key to show controls"))
		return b.renderLines(false, lines)
	}

	clock := fmt.Sprintf("%s %s / %s", statusIcon(s), util.FormatClock(s.CurrentTime), util.FormatClock(s.Duration))
	buffered := style.Faint(fmt.Sprintf("buffered %d%%", int(s.Buffered)))
	gap := max(width-lipgloss.Width(clock)-lipgloss.Width(buffered), 1)

	lines = append(lines,
		clock+strings.Repeat(" ", gap)+buffered,
		seekBar(width, s.Progress(), s.Buffered),
		"",
		b.volumeLine(),
	)

	if s.State == player.Ended {
		lines = append(lines, "", style.Fg(color.Green)("Finished. Press space to watch again."))
	}

	return b.renderLines(true, lines)
}

func (b *statefulBubble) header() string {
	s := b.session
	title := s.Title()
	if title == "" {
		title = b.videoID
	}

	parts := []string{style.Title(truncate.StringWithTail(title, uint(max(b.contentWidth()-24, 8)), "..."))}

	if label := qualityLabel(s); label != "" {
		parts = append(parts, style.Tag(style.Text, style.Surface)(icon.Get(icon.Quality)+" "+label))
	}
	if s.Rate != 1 && s.Rate != 0 {
		parts = append(parts, style.Tag(style.Text, style.Surface)(fmt.Sprintf("%g×", s.Rate)))
	}

	return strings.Join(parts, " ")
}

func (b *statefulBubble) description(width int) []string {
	desc := strings.TrimSpace(b.session.Video.Description)
	if desc == "" {
		return nil
	}

	lines := strings.Split(wordwrap.String(desc, width), "\n")
	if len(lines) > descriptionLines {
		lines = lines[:descriptionLines]
		lines[descriptionLines-1] = truncate.StringWithTail(lines[descriptionLines-1], uint(width-3), "") + "..."
	}

	for i, l := range lines {
		lines[i] = style.Faint(l)
	}
	return append([]string{""}, lines...)
}

func (b *statefulBubble) volumeLine() string {
	s := b.session
	if s.Muted {
		return icon.Get(icon.Muted) + " " + b.volumeC.ViewAs(0) + " " + style.Faint("muted")
	}
	return icon.Get(icon.Volume) + " " + b.volumeC.ViewAs(s.Volume) + " " + style.Faint(fmt.Sprintf("%d%%", int(math.Round(s.Volume*100))))
}

func (b *statefulBubble) viewError() string {
	message := b.session.Error
	if message == "" && b.lastError != nil {
		message = b.lastError.Error()
	}

	body := wrap.String(style.New().Foreground(style.ErrorColor).Bold(true).Render(message), b.contentWidth())

	return b.renderLines(true, []string{
		style.ErrorTitle("Cannot play " + b.session.Title()),
		"",
		icon.Get(icon.Fail) + " " + body,
	})
}

func (b *statefulBubble) renderLines(addHelp bool, lines []string) string {
	h := len(lines)
	l := strings.Join(lines, "\n")
	if addHelp {
		_, y := paddingStyle.GetFrameSize()
		if free := b.height - y - h - 1; free > 0 {
			l += strings.Repeat("\n", free)
		}
		l += "\n" + b.helpC.View(b.keymap)
	}

	return paddingStyle.Render(l)
}

func statusIcon(s player.Session) string {
	switch {
	case s.State == player.Ended:
		return icon.Get(icon.Ended)
	case s.State == player.Seeking:
		return icon.Get(icon.Loading)
	case s.Playing:
		return icon.Get(icon.Play)
	default:
		return icon.Get(icon.Pause)
	}
}

func qualityLabel(s player.Session) string {
	if len(s.Levels) == 0 {
		return ""
	}

	active := ""
	if s.ActiveLevel >= 0 && s.ActiveLevel < len(s.Levels) {
		active = s.Levels[s.ActiveLevel].Label
	}

	if s.Quality == engine.AutoLevel {
		if active == "" {
			return "auto"
		}
		return "auto (" + active + ")"
	}
	return active
}

// seekBar draws the played part, then the buffered part, then the rest
// of the track.
func seekBar(width int, played, bufferedPercent float64) string {
	if width <= 0 {
		return ""
	}

	p := int(math.Round(util.Clamp(played, 0, 1) * float64(width)))
	buf := int(math.Round(util.Clamp(bufferedPercent/100, 0, 1) * float64(width)))
	buf = max(buf, p)

	return style.Fg(style.PlayedColor)(strings.Repeat("━", p)) +
		style.Fg(style.BufferedColor)(strings.Repeat("━", buf-p)) +
		style.Fg(style.TrackColor)(strings.Repeat("─", width-buf))
}
