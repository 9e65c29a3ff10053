package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Start   key.Binding
	Split   key.Binding
	Near    key.Binding
	Finish  key.Binding
	Abandon key.Binding
	Pause   key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Start:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start run")),
		Split:   key.NewBinding(key.WithKeys(" ", "n"), key.WithHelp("space", "next stage")),
		Near:    key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "near goal")),
		Finish:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "finish")),
		Abandon: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "abandon")),
		Pause:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause game clock")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Split, k.Finish, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Split, k.Near},
		{k.Finish, k.Abandon, k.Pause},
		{k.Help, k.Quit},
	}
}
