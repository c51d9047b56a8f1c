package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/lingoloop/playback"
)

// searchModel moves the cursor to the sentences matching a fuzzy query.
type searchModel struct {
	input    textinput.Model
	origin   int   // Cursor before the search, restored on cancel
	matches  []int // Sentence indexes, best match first
	selected int
}

// sentenceSource lets fuzzy search both renderings of each sentence.
type sentenceSource []playback.Sentence

func (s sentenceSource) String(i int) string { return s[i].TargetText + " " + s[i].NativeText }

func (s sentenceSource) Len() int { return len(s) }

func (m *model) startSearch() tea.Cmd {
	ti := textinput.New()
	ti.Prompt = "/"
	ti.Placeholder = "search sentences"
	ti.CharLimit = 120
	m.search = &searchModel{input: ti, origin: m.cursor}
	return m.search.input.Focus()
}

func (m *model) updateSearch(msg tea.Msg) tea.Cmd {
	s := m.search
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.searchKeys.Cancel):
			m.cursor = s.origin
			m.search = nil
			return nil

		case key.Matches(msg, m.searchKeys.Accept):
			m.search = nil
			if len(s.matches) == 0 {
				m.cursor = s.origin
				return nil
			}
			m.ctl.JumpToSentence(m.cursor)
			if !m.playing {
				m.ctl.Play()
			}
			return nil

		case key.Matches(msg, m.searchKeys.Next):
			if len(s.matches) > 0 {
				s.selected = (s.selected + 1) % len(s.matches)
				m.cursor = s.matches[s.selected]
			}
			return nil
		}
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	s.filter(m.sentences)
	if len(s.matches) > 0 {
		m.cursor = s.matches[s.selected]
	} else {
		m.cursor = s.origin
	}
	return cmd
}

func (s *searchModel) filter(sentences []playback.Sentence) {
	s.matches = s.matches[:0]
	s.selected = 0
	if s.input.Value() == "" {
		return
	}
	for _, match := range fuzzy.FindFrom(s.input.Value(), sentenceSource(sentences)) {
		s.matches = append(s.matches, match.Index)
	}
}

func (s *searchModel) view() string {
	note := "no matches"
	switch {
	case s.input.Value() == "":
		note = ""
	case len(s.matches) > 0:
		note = fmt.Sprintf("%d/%d", s.selected+1, len(s.matches))
	}
	return "  " + s.input.View() + "  " + subtleStyle.Render(note)
}
