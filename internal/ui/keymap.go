package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the top-level key bindings. Plain characters go to the
// composer; everything global is a chord or function key.
type keyMap struct {
	Submit         key.Binding
	Quit           key.Binding
	Cancel         key.Binding
	OpenImport     key.Binding
	ToggleDebug    key.Binding
	ResolveAliases key.Binding
	RefreshSession key.Binding
	SignOut        key.Binding
	PageUp         key.Binding
	PageDown       key.Binding
	ScrollBottom   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Submit:         key.NewBinding(key.WithKeys("enter"), key.WithHelp("entrée", "envoyer")),
		Quit:           key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quitter")),
		Cancel:         key.NewBinding(key.WithKeys("esc"), key.WithHelp("échap", "fermer")),
		OpenImport:     key.NewBinding(key.WithKeys("ctrl+o"), key.WithHelp("ctrl+o", "importer un relevé")),
		ToggleDebug:    key.NewBinding(key.WithKeys("ctrl+g"), key.WithHelp("ctrl+g", "mode debug")),
		ResolveAliases: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "résoudre les alias")),
		RefreshSession: key.NewBinding(key.WithKeys("ctrl+l"), key.WithHelp("ctrl+l", "rafraîchir la session")),
		SignOut:        key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "déconnexion")),
		PageUp:         key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "défiler vers le haut")),
		PageDown:       key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "défiler vers le bas")),
		ScrollBottom:   key.NewBinding(key.WithKeys("ctrl+b"), key.WithHelp("ctrl+b", "aller en bas")),
	}
}
