package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	next       key.Binding
	connect    key.Binding
	disconnect key.Binding
	extend     key.Binding
	refresh    key.Binding
	less       key.Binding
	more       key.Binding
	yes        key.Binding
	no         key.Binding
	quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		next:       key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next view")),
		connect:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "connect")),
		disconnect: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "disconnect")),
		extend:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "extend")),
		refresh:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		less:       key.NewBinding(key.WithKeys("left", "h", "-"), key.WithHelp("←/h", "shorter")),
		more:       key.NewBinding(key.WithKeys("right", "l", "+"), key.WithHelp("→/l", "longer")),
		yes:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:         key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.next, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.connect, k.disconnect, k.extend},
		{k.refresh, k.less, k.more},
		{k.next, k.quit},
	}
}
