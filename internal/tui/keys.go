package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Prev     key.Binding
	Next     key.Binding
	Finish   key.Binding
	Snapshot key.Binding
	Restart  key.Binding
	Quit     key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Prev:     key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "previous")),
		Next:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "next")),
		Finish:   key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "finish & export")),
		Snapshot: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "snapshot png")),
		Restart:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new session")),
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Finish, k.Snapshot, k.Quit}
}
