package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/dgnsrekt/lingoloop/capture"
	"github.com/dgnsrekt/lingoloop/practice"
)

type practiceStage int

const (
	stageAsking practiceStage = iota
	stageListening
	stageAnswered
	stageComplete
)

// recognitionMsg carries a transcript from the recognition session.
type recognitionMsg struct {
	session    int
	transcript string
	final      bool
}

// recognitionEndMsg is sent when the recognition session ends.
type recognitionEndMsg struct {
	session int
	blob    *capture.Blob
}

// practiceModel runs a quiz over the playlist, answered by typing or
// speaking.
type practiceModel struct {
	quiz     *practice.Quiz
	stage    practiceStage
	input    textinput.Model
	spinner  spinner.Model
	heard    string
	session  int // Current recognition session; stale messages are dropped
	recorded int // Bytes captured by the last session
	result   practice.Result
	got      []practice.Word
	want     []practice.Word
	note     string
	failed   bool // note describes an error
}

func newPracticeModel(q *practice.Quiz) *practiceModel {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.Placeholder = "type the sentence"
	ti.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = subtleStyle

	return &practiceModel{quiz: q, input: ti, spinner: sp}
}

// startPractice opens a quiz in mode, pausing playback so speech does not
// overlap the answer.
func (m *model) startPractice(mode practice.Mode) tea.Cmd {
	if mode == practice.Speaking && !m.cfg.Recognition {
		return m.showStatusMessage("Speech recognition is not configured")
	}
	q, err := practice.NewQuiz(m.sentences, mode, nil)
	if err != nil {
		return m.showStatusMessage(err.Error())
	}
	if m.playing {
		m.ctl.Pause()
	}
	m.practice = newPracticeModel(q)
	return m.askCurrent()
}

// askCurrent prepares the practice panel for the quiz's current sentence.
func (m *model) askCurrent() tea.Cmd {
	p := m.practice
	p.heard, p.note, p.failed = "", "", false
	p.recorded = 0
	p.got, p.want = nil, nil
	if p.quiz.Complete() {
		p.stage = stageComplete
		p.input.Blur()
		return nil
	}
	if p.quiz.Mode == practice.Writing {
		p.stage = stageAsking
		p.input.Reset()
		return p.input.Focus()
	}
	return m.listen()
}

func (m *model) listen() tea.Cmd {
	p := m.practice
	s, _ := p.quiz.Current()
	p.session++
	session, send := p.session, m.send
	err := m.ctl.StartSpeechRecognition(context.Background(), s.TargetLang,
		func(transcript string, final bool) { send(recognitionMsg{session, transcript, final}) },
		func(blob *capture.Blob) { send(recognitionEndMsg{session, blob}) },
	)
	if err != nil {
		p.stage = stageAsking
		p.note, p.failed = err.Error(), true
		return nil
	}
	p.stage = stageListening
	p.note, p.failed = "", false
	return p.spinner.Tick
}

func (m *model) answer(text string) {
	p := m.practice
	p.result = p.quiz.Answer(text)
	p.got, p.want = practice.Diff(text, p.result.Expected)
	p.stage = stageAnswered
	p.input.Blur()
}

func (m *model) closePractice() {
	if m.practice != nil && m.practice.stage == stageListening {
		m.ctl.StopSpeechRecognition()
	}
	m.practice = nil
}

func (m *model) updatePractice(msg tea.Msg) tea.Cmd {
	p := m.practice

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.practiceKeys.Close):
			m.closePractice()
			return nil

		case key.Matches(msg, m.practiceKeys.Skip):
			if p.stage == stageListening {
				m.ctl.StopSpeechRecognition()
			}
			if p.stage != stageComplete {
				p.quiz.Next()
				return m.askCurrent()
			}
			return nil

		case key.Matches(msg, m.practiceKeys.Submit):
			switch p.stage {
			case stageAsking:
				if p.quiz.Mode == practice.Speaking {
					return m.listen()
				}
				m.answer(p.input.Value())
			case stageListening:
				// Ending the session delivers recognitionEndMsg, which
				// scores what was heard so far.
				m.ctl.StopSpeechRecognition()
			case stageAnswered:
				p.quiz.Next()
				return m.askCurrent()
			case stageComplete:
				m.closePractice()
			}
			return nil
		}

		if p.stage == stageAsking && p.quiz.Mode == practice.Writing {
			var cmd tea.Cmd
			p.input, cmd = p.input.Update(msg)
			return cmd
		}

	case recognitionMsg:
		if p.stage != stageListening || msg.session != p.session {
			return nil
		}
		p.heard = msg.transcript
		if msg.final {
			m.answer(msg.transcript)
		}

	case recognitionEndMsg:
		if msg.session != p.session {
			return nil
		}
		if msg.blob != nil {
			p.recorded = len(msg.blob.Data)
		}
		if p.stage != stageListening {
			return nil
		}
		if strings.TrimSpace(p.heard) == "" {
			p.stage = stageAsking
			p.note = "Nothing heard. Press enter to listen again."
			return nil
		}
		m.answer(p.heard)

	case spinner.TickMsg:
		if p.stage != stageListening {
			return nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return cmd
	}
	return nil
}

func (p *practiceModel) view(width int) string {
	var b strings.Builder
	prog := p.quiz.Progress()

	title := "Writing practice"
	if p.quiz.Mode == practice.Speaking {
		title = "Speaking practice"
	}
	if p.stage == stageComplete {
		fmt.Fprintf(&b, "%s complete\n\n", title)
		fmt.Fprintf(&b, "%d of %d correct (%d%%)\n", prog.Correct, prog.Attempted, prog.Percentage())
		b.WriteString(subtleStyle.Render("enter to close"))
		return practiceBoxStyle.Width(max(20, width-4)).Render(b.String())
	}

	fmt.Fprintf(&b, "%s %s\n\n", title, subtleStyle.Render(fmt.Sprintf("%d/%d · %d correct", prog.Current, prog.Total, prog.Correct)))

	s, _ := p.quiz.Current()
	if p.quiz.Mode == practice.Writing && s.NativeText != "" {
		b.WriteString(nativeStyle(s.NativeText) + "\n")
	} else {
		b.WriteString(currentSentenceStyle(s.TargetText) + "\n")
	}

	switch p.stage {
	case stageAsking:
		if p.quiz.Mode == practice.Writing {
			b.WriteString(p.input.View())
		} else {
			b.WriteString(subtleStyle.Render("Press enter and read the sentence aloud."))
		}
	case stageListening:
		b.WriteString(p.spinner.View() + " ")
		if p.heard != "" {
			b.WriteString(p.heard)
		} else {
			b.WriteString(subtleStyle.Render("listening…"))
		}
	case stageAnswered:
		b.WriteString(resultView(p.result, p.got, p.want))
		if p.recorded > 0 {
			b.WriteString(subtleStyle.Render(fmt.Sprintf("  (%s recorded)", humanize.Bytes(uint64(p.recorded)))))
		}
	}
	switch {
	case p.failed:
		b.WriteString("\n" + errorTitleStyle.Render("Error") + " " + wrongStyle(p.note))
	case p.note != "":
		b.WriteString("\n" + wrongStyle(p.note))
	}
	return practiceBoxStyle.Width(max(20, width-4)).Render(b.String())
}

func resultView(r practice.Result, got, want []practice.Word) string {
	if r.Correct {
		return correctStyle("✓ Correct")
	}
	return fmt.Sprintf("%s\n%s %s\n%s %s",
		wrongStyle(fmt.Sprintf("✗ %d%% similar", r.Similarity)),
		subtleStyle.Render("you: "), wordsView(got),
		subtleStyle.Render("want:"), wordsView(want),
	)
}

func wordsView(words []practice.Word) string {
	parts := make([]string, 0, len(words))
	for _, w := range words {
		switch w.Status {
		case practice.WordMatch:
			parts = append(parts, correctStyle(w.Text))
		case practice.WordWrong:
			parts = append(parts, wrongStyle(w.Text))
		case practice.WordMissing:
			parts = append(parts, missingStyle(w.Text))
		}
	}
	return strings.Join(parts, " ")
}
