// Package ui provides the playback TUI for lingoloop.
package ui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/lingoloop/capture"
	"github.com/dgnsrekt/lingoloop/playback"
	"github.com/dgnsrekt/lingoloop/practice"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "sleep timer off"
	ellipsis             = "…"
)

// Controller is the part of the engine the TUI drives. *engine.Engine
// implements it.
type Controller interface {
	Play()
	Pause()
	Stop()
	Next()
	Previous()
	JumpToSentence(i int)
	State() playback.State
	Settings() playback.Settings
	Subscribe(l playback.Listener) string
	Unsubscribe(id string)
	SetSleepTimer(minutes int)
	ClearSleepTimer()
	SleepTimerRemaining() int
	StartSpeechRecognition(ctx context.Context, lang string, onResult capture.ResultFunc, onEnd capture.EndFunc) error
	StopSpeechRecognition()
}

// NewProgram returns a new Tea program playing sentences through ctl.
func NewProgram(cfg Config, ctl Controller, sentences []playback.Sentence) *tea.Program {
	log.Debug("Starting lingoloop", "sentences", len(sentences), "recognition", cfg.Recognition)

	b := newBridge()
	m := newModel(cfg, ctl, sentences)
	m.send = b.send
	id := ctl.Subscribe(playback.ListenerFunc(func(e playback.Event) {
		b.send(eventMsg{e})
	}))
	m.unsubscribe = func() {
		ctl.Unsubscribe(id)
		b.close()
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	p := tea.NewProgram(m, opts...)
	go b.run(p)
	return p
}

// bridge forwards messages from engine goroutines to the program in order.
// Sends never block on the program, so callbacks that fire synchronously
// inside Update cannot deadlock it.
type bridge struct {
	msgs chan tea.Msg
	done chan struct{}
	once sync.Once
}

func newBridge() *bridge {
	return &bridge{msgs: make(chan tea.Msg, 256), done: make(chan struct{})}
}

func (b *bridge) send(msg tea.Msg) {
	select {
	case b.msgs <- msg:
	case <-b.done:
	}
}

func (b *bridge) run(p *tea.Program) {
	for {
		select {
		case msg := <-b.msgs:
			p.Send(msg)
		case <-b.done:
			return
		}
	}
}

func (b *bridge) close() { b.once.Do(func() { close(b.done) }) }

type (
	eventMsg                struct{ event playback.Event }
	timerTickMsg            struct{}
	statusMessageTimeoutMsg struct{}
)

type model struct {
	cfg          Config
	ctl          Controller
	sentences    []playback.Sentence
	keys         keyMap
	practiceKeys practiceKeyMap
	searchKeys   searchKeyMap
	help         help.Model
	send         func(tea.Msg)
	unsubscribe  func()
	copy         func(string)

	width  int
	height int

	cursor   int // Selected row
	index    int // Sentence being played
	repeat   int // Repetitions of the current sentence already played
	playing  bool
	paused   bool
	finished bool
	settings playback.Settings

	timerPreset int // Index into cfg.SleepPresets, -1 when off
	timerEnds   time.Time

	practice *practiceModel
	search   *searchModel

	showHelp           bool
	statusMessage      string
	statusMessageTimer *time.Timer
}

func newModel(cfg Config, ctl Controller, sentences []playback.Sentence) *model {
	if len(cfg.SleepPresets) == 0 {
		cfg.SleepPresets = []int{5, 15, 30, 60}
	}
	st := ctl.State()
	return &model{
		cfg:          cfg,
		ctl:          ctl,
		sentences:    sentences,
		keys:         newKeyMap(),
		practiceKeys: newPracticeKeyMap(),
		searchKeys:   newSearchKeyMap(),
		help:         help.New(),
		send:         func(tea.Msg) {},
		unsubscribe:  func() {},
		copy:         copyToClipboard,
		cursor:       st.Index,
		index:        st.Index,
		repeat:       st.Repeat,
		playing:      st.Playing,
		paused:       st.Paused,
		settings:     ctl.Settings(),
		timerPreset:  -1,
	}
}

func (m *model) Init() tea.Cmd {
	if n := m.ctl.SleepTimerRemaining(); n > 0 {
		m.timerEnds = time.Now().Add(time.Duration(n) * time.Minute)
		return timerTick()
	}
	return nil
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case eventMsg:
		return m, m.handleEvent(msg.event)

	case timerTickMsg:
		if m.timerEnds.IsZero() {
			return m, nil
		}
		return m, timerTick()

	case statusMessageTimeoutMsg:
		m.statusMessage = ""
		return m, nil
	}

	if m.search != nil {
		return m, m.updateSearch(msg)
	}
	if m.practice != nil {
		return m, m.updatePractice(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *model) handleEvent(e playback.Event) tea.Cmd {
	switch e := e.(type) {
	case playback.SentenceChange:
		// The selection follows playback unless the user moved it away.
		if m.cursor == m.index {
			m.cursor = e.Index
		}
		m.index, m.repeat = e.Index, e.Repeat
		m.finished = false

	case playback.PlaybackStateChange:
		m.playing, m.paused = e.IsPlaying, e.IsPaused
		if m.playing {
			m.settings = m.ctl.Settings()
		}

	case playback.PlaybackComplete:
		m.finished = true
		return m.showStatusMessage("Playlist complete")

	case playback.SleepTimerExpired:
		m.timerPreset = -1
		m.timerEnds = time.Time{}
		return m.showStatusMessage("Sleep timer stopped playback")
	}
	return nil
}

func (m *model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.ctl.Stop()
		m.unsubscribe()
		return tea.Quit

	case key.Matches(msg, m.keys.PlayPause):
		if m.playing {
			m.ctl.Pause()
		} else {
			m.ctl.Play()
		}

	case key.Matches(msg, m.keys.Stop):
		m.ctl.Stop()

	case key.Matches(msg, m.keys.Next):
		m.ctl.Next()

	case key.Matches(msg, m.keys.Previous):
		m.ctl.Previous()

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.sentences)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Jump):
		m.ctl.JumpToSentence(m.cursor)
		if !m.playing {
			m.ctl.Play()
		}

	case key.Matches(msg, m.keys.Timer):
		return m.cycleSleepTimer()

	case key.Matches(msg, m.keys.Speak):
		return m.startPractice(practice.Speaking)

	case key.Matches(msg, m.keys.Write):
		return m.startPractice(practice.Writing)

	case key.Matches(msg, m.keys.Search):
		return m.startSearch()

	case key.Matches(msg, m.keys.Copy):
		return m.copySentence()

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	}
	return nil
}

// cycleSleepTimer arms the next preset, or clears the timer after the last.
func (m *model) cycleSleepTimer() tea.Cmd {
	m.timerPreset++
	if m.timerPreset >= len(m.cfg.SleepPresets) {
		m.timerPreset = -1
		m.timerEnds = time.Time{}
		m.ctl.ClearSleepTimer()
		return m.showStatusMessage("Sleep timer off")
	}
	minutes := m.cfg.SleepPresets[m.timerPreset]
	m.ctl.SetSleepTimer(minutes)
	m.timerEnds = time.Now().Add(time.Duration(minutes) * time.Minute)
	return tea.Batch(
		m.showStatusMessage(fmt.Sprintf("Sleep timer set for %d minutes", minutes)),
		timerTick(),
	)
}

// copySentence copies the selected sentence, with its native rendering on
// a second line.
func (m *model) copySentence() tea.Cmd {
	if m.cursor >= len(m.sentences) {
		return nil
	}
	s := m.sentences[m.cursor]
	text := s.TargetText
	if s.NativeText != "" {
		text += "\n" + s.NativeText
	}
	m.copy(text)
	return m.showStatusMessage("Copied sentence")
}

func copyToClipboard(text string) {
	// Copy using OSC 52
	termenv.Copy(text)
	// Copy using native system clipboard
	if err := clipboard.WriteAll(text); err != nil {
		log.Debug("system clipboard unavailable", "error", err)
	}
}

func (m *model) showStatusMessage(msg string) tea.Cmd {
	m.statusMessage = msg
	if m.statusMessageTimer != nil {
		m.statusMessageTimer.Stop()
	}
	m.statusMessageTimer = time.NewTimer(statusMessageTimeout)
	return waitForStatusMessageTimeout(m.statusMessageTimer)
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString(m.headerView() + "\n\n")

	listHeight := m.height - 4
	var panel string
	switch {
	case m.search != nil:
		panel = m.search.view()
	case m.practice != nil:
		panel = m.practice.view(m.width)
	}
	if panel != "" {
		listHeight -= strings.Count(panel, "\n") + 2
	}
	var helpView string
	if m.showHelp || m.practice != nil || m.search != nil {
		helpView = m.helpView()
		listHeight -= strings.Count(helpView, "\n") + 1
	}

	b.WriteString(m.sentencesView(max(3, listHeight)))
	if panel != "" {
		b.WriteString("\n" + panel + "\n")
	}
	b.WriteString("\n")
	m.statusBarView(&b)
	if helpView != "" {
		b.WriteString("\n" + helpView)
	}
	return b.String()
}

func (m *model) headerView() string {
	title := m.cfg.Title
	if title == "" {
		title = "untitled"
	}
	return logoStyle.Render("lingoloop") + titleStyle.Render(title)
}

// sentencesView renders a window of rows around the cursor.
func (m *model) sentencesView(height int) string {
	if len(m.sentences) == 0 {
		return subtleStyle.Render("  No sentences.") + "\n"
	}

	start, end := visibleRange(len(m.sentences), m.cursor, height)
	numWidth := len(fmt.Sprint(len(m.sentences)))
	fit := func(s string) string {
		if m.width <= 0 {
			return s
		}
		return runewidth.Truncate(s, max(1, m.width-numWidth-3), ellipsis)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		s := m.sentences[i]
		marker := "  "
		if i == m.cursor {
			marker = cursorStyle("› ")
		}
		num := rowNumberStyle(fmt.Sprintf("%*d ", numWidth, i+1))
		text := sentenceStyle(fit(s.TargetText))
		if i == m.index {
			text = currentSentenceStyle(fit(s.TargetText))
		}
		fmt.Fprintf(&b, "%s%s%s\n", marker, num, text)
		if s.NativeText != "" && (i == m.index || m.cfg.ShowAllNative) {
			fmt.Fprintf(&b, "%s%s\n", strings.Repeat(" ", numWidth+3), nativeStyle(fit(s.NativeText)))
		}
	}
	return b.String()
}

// visibleRange returns the rows to show so that cursor stays in view.
func visibleRange(total, cursor, height int) (start, end int) {
	if total <= height {
		return 0, total
	}
	start = max(0, cursor-height/2)
	end = start + height
	if end > total {
		end = total
		start = end - height
	}
	return start, end
}

func (m *model) helpView() string {
	if m.search != nil {
		return helpViewStyle(m.help.View(m.searchKeys))
	}
	if m.practice != nil {
		return helpViewStyle(m.help.View(m.practiceKeys))
	}
	return helpViewStyle(m.help.View(m.keys))
}

// COMMANDS

func timerTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return timerTickMsg{} })
}

func waitForStatusMessageTimeout(t *time.Timer) tea.Cmd {
	return func() tea.Msg {
		<-t.C
		return statusMessageTimeoutMsg{}
	}
}
