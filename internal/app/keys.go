package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Connect  key.Binding
	Capture  key.Binding
	Snapshot key.Binding
	Focus    key.Binding
	Refresh  key.Binding
	Delete   key.Binding
	Clear    key.Binding
	Download key.Binding
	Archive  key.Binding
	Up       key.Binding
	Down     key.Binding
	Debug    key.Binding
	Errors   key.Binding
	Settings key.Binding
	QR       key.Binding
	Help     key.Binding
	Escape   key.Binding
	Quit     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Connect: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "connect / disconnect"),
		),
		Capture: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "capture"),
		),
		Snapshot: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "preview snapshot"),
		),
		Focus: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "autofocus"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh captures"),
		),
		Delete: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "delete capture"),
		),
		Clear: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "delete all captures"),
		),
		Download: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "download capture"),
		),
		Archive: key.NewBinding(
			key.WithKeys("O"),
			key.WithHelp("O", "download all captures (zip)"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "prev capture"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "next capture"),
		),
		Debug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "event log"),
		),
		Errors: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "event log: errors only"),
		),
		Settings: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "camera settings"),
		),
		QR: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "relay QR code"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "close overlay"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Bindings lists every binding in help order.
func (k KeyMap) Bindings() []key.Binding {
	return []key.Binding{
		k.Connect, k.Capture, k.Snapshot, k.Focus,
		k.Refresh, k.Delete, k.Clear, k.Download, k.Archive, k.Up, k.Down,
		k.Debug, k.Errors, k.Settings, k.QR, k.Help, k.Escape, k.Quit,
	}
}
