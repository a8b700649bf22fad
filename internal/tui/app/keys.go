package app

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard bindings for the TUI.
type KeyMap struct {
	Start        key.Binding
	Pause        key.Binding
	Stop         key.Binding
	Clear        key.Binding
	Export       key.Binding
	ExportJSON   key.Binding
	Resync       key.Binding
	Report       key.Binding
	Achievements key.Binding
	History      key.Binding
	Debug        key.Binding
	ErrorsOnly   key.Binding
	Up           key.Binding
	Down         key.Binding
	Escape       key.Binding
	Quit         key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Start: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "start"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p", "pause/resume"),
		),
		Stop: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "stop"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export gpx"),
		),
		ExportJSON: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "export json"),
		),
		Resync: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "resync"),
		),
		Report: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "report"),
		),
		Achievements: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "achievements"),
		),
		History: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "history"),
		),
		Debug: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "debug log"),
		),
		ErrorsOnly: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "errors only"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "scroll down"),
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

// helpLine lists the main bindings for the footer.
func (k KeyMap) helpLine() string {
	bindings := []key.Binding{k.Start, k.Pause, k.Stop, k.Clear, k.Export, k.Resync, k.Report, k.Achievements, k.History, k.Debug, k.Quit}
	out := " "
	for _, b := range bindings {
		h := b.Help()
		out += " " + h.Key + ":" + h.Desc + " "
	}
	return out
}
