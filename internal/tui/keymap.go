package tui

import (
	"strings"

	"github.com/alkime/dictate/internal/tui/style"
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the TUI key bindings.
type KeyMap struct {
	Toggle    key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "start/stop dictation"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Quit, k.ForceQuit}
}

func renderKeyHelp(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		parts = append(parts, style.Help.Render("[")+style.Key.Render(b.Help().Key)+
			style.Help.Render("] ")+style.Help.Render(b.Help().Desc))
	}

	return strings.Join(parts, " ")
}
