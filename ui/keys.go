package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the controls-mode bindings. While typing, only submit,
// leave and quit are active.
type keyMap struct {
	Submit     key.Binding
	Leave      key.Binding
	Type       key.Binding
	Mute       key.Binding
	Faster     key.Binding
	Slower     key.Binding
	Louder     key.Binding
	Quieter    key.Binding
	NextEngine key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "speak")),
		Leave:      key.NewBinding(key.WithKeys("esc", "tab"), key.WithHelp("esc", "controls")),
		Type:       key.NewBinding(key.WithKeys("i", "tab", "enter"), key.WithHelp("i", "type")),
		Mute:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "mute")),
		Faster:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+/-", "speed")),
		Slower:     key.NewBinding(key.WithKeys("-", "_")),
		Louder:     key.NewBinding(key.WithKeys("]"), key.WithHelp("[/]", "volume")),
		Quieter:    key.NewBinding(key.WithKeys("[")),
		NextEngine: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "engine")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Type, k.Mute, k.Faster, k.Louder, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Type, k.Submit, k.Leave},
		{k.Mute, k.Faster, k.Louder, k.NextEngine},
		{k.Help, k.Quit},
	}
}

// inputKeyMap is shown while the text input has focus.
type inputKeyMap struct{ keys keyMap }

func (k inputKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.keys.Submit, k.keys.Leave, key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))}
}

func (k inputKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
