package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap holds the app-level bindings. The viewport and text input keep
// their widget defaults for scrolling and editing.
type KeyMap struct {
	Tab  key.Binding
	Quit key.Binding
}

var DefaultKeyMap = KeyMap{
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "switch panel"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c", "esc"),
		key.WithHelp("esc", "quit"),
	),
}
