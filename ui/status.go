package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
)

// playbackIcon returns the icon and color for the playback state.
func (m *model) playbackIcon() (string, lipgloss.TerminalColor) {
	switch {
	case m.playing:
		return "▶", green
	case m.paused:
		return "⏸", yellowGreen
	case m.finished:
		return "✓", green
	default:
		return "■", statusBarNoteFg
	}
}

// playbackNote describes the playback position, e.g. "Playing 3/10 · 2/3".
func (m *model) playbackNote() string {
	var state string
	switch {
	case m.playing:
		state = "Playing"
	case m.paused:
		state = "Paused"
	case m.finished:
		state = "Finished"
	default:
		state = "Stopped"
	}
	if len(m.sentences) == 0 {
		return state
	}
	note := fmt.Sprintf("%s %d/%d", state, m.index+1, len(m.sentences))
	if (m.playing || m.paused) && m.settings.RepeatCount > 1 {
		note += fmt.Sprintf(" · %d/%d", min(m.repeat+1, m.settings.RepeatCount), m.settings.RepeatCount)
	}
	if m.settings.Loop {
		note += " · loop"
	}
	return note
}

// sleepTimerNote returns "stops 14 minutes from now", or "" when no timer is set.
func (m *model) sleepTimerNote(now time.Time) string {
	if m.timerEnds.IsZero() || !m.timerEnds.After(now) {
		return ""
	}
	return "stops " + humanize.RelTime(now, m.timerEnds, "from now", "ago")
}

func (m *model) statusBarView(b *strings.Builder) {
	showStatusMessage := m.statusMessage != ""

	icon, color := m.playbackIcon()
	iconView := lipgloss.NewStyle().
		Foreground(color).
		Background(statusBarBg).
		Padding(0, 1).
		Render(icon)

	timer := m.sleepTimerNote(time.Now())
	if timer != "" {
		timer = statusBarNoteStyle(" ⏾ " + timer + " ")
	}

	helpNote := statusBarHelpStyle(" ? Help ")

	var note string
	if showStatusMessage {
		note = m.statusMessage
	} else {
		note = m.playbackNote()
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(iconView)-
			ansi.PrintableRuneWidth(timer)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	if showStatusMessage {
		note = statusBarMessageStyle(note)
	} else {
		note = statusBarNoteStyle(note)
	}

	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(iconView)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(timer)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := strings.Repeat(" ", padding)
	if showStatusMessage {
		emptySpace = statusBarMessageStyle(emptySpace)
	} else {
		emptySpace = statusBarNoteStyle(emptySpace)
	}

	fmt.Fprintf(b, "%s%s%s%s%s",
		iconView,
		note,
		emptySpace,
		timer,
		helpNote,
	)
}
