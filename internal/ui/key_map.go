package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	reroll key.Binding
	album  key.Binding
	save   key.Binding
	back   key.Binding
	quit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		reroll: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "re-roll")),
		album:  key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "album")),
		save:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "save images")),
		back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.reroll, k.album, k.save, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.reroll, k.album, k.save},
		{k.back, k.quit},
	}
}
