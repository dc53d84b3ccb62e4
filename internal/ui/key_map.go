package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up      key.Binding
	down    key.Binding
	enter   key.Binding
	export  key.Binding
	back    key.Binding
	yes     key.Binding
	no      key.Binding
	report  key.Binding
	cancel  key.Binding
	restart key.Binding
	quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		export:  key.NewBinding(key.WithKeys("enter", "e"), key.WithHelp("enter/e", "export CSV")),
		back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "start")),
		no:      key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "back")),
		report:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "toggle report")),
		cancel:  key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "cancel")),
		restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "export another")),
		quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// bindings returns the keys shown in the help line of view.
func (k keyMap) bindings(view ViewState) []key.Binding {
	switch view {
	case PlaylistListView:
		return []key.Binding{k.up, k.down, k.enter, k.quit}
	case TrackListView:
		return []key.Binding{k.export, k.back, k.quit}
	case ConfirmView:
		return []key.Binding{k.yes, k.report, k.no}
	case ExportView:
		return []key.Binding{k.cancel}
	case ResultView:
		return []key.Binding{k.restart, k.quit}
	default:
		return []key.Binding{k.quit}
	}
}
