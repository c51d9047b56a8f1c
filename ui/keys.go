package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	PlayPause key.Binding
	Stop      key.Binding
	Next      key.Binding
	Previous  key.Binding
	Up        key.Binding
	Down      key.Binding
	Jump      key.Binding
	Timer     key.Binding
	Speak     key.Binding
	Write     key.Binding
	Search    key.Binding
	Copy      key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		PlayPause: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Stop:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Next:      key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("→/n", "next")),
		Previous:  key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("←/p", "previous")),
		Up:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("↓/j", "down")),
		Jump:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play selected")),
		Timer:     key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "sleep timer")),
		Speak:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "speaking practice")),
		Write:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "writing practice")),
		Search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Copy:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy sentence")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PlayPause, k.Next, k.Previous, k.Timer, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.PlayPause, k.Stop, k.Next, k.Previous},
		{k.Up, k.Down, k.Jump, k.Search},
		{k.Timer, k.Copy, k.Speak, k.Write},
		{k.Help, k.Quit},
	}
}

type practiceKeyMap struct {
	Submit key.Binding
	Skip   key.Binding
	Close  key.Binding
}

func newPracticeKeyMap() practiceKeyMap {
	return practiceKeyMap{
		Submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "check/next")),
		Skip:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "skip")),
		Close:  key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "close")),
	}
}

// ShortHelp implements help.KeyMap.
func (k practiceKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Skip, k.Close}
}

// FullHelp implements help.KeyMap.
func (k practiceKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

type searchKeyMap struct {
	Accept key.Binding
	Next   key.Binding
	Cancel key.Binding
}

func newSearchKeyMap() searchKeyMap {
	return searchKeyMap{
		Accept: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play match")),
		Next:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next match")),
		Cancel: key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "cancel")),
	}
}

// ShortHelp implements help.KeyMap.
func (k searchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Accept, k.Next, k.Cancel}
}

// FullHelp implements help.KeyMap.
func (k searchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
