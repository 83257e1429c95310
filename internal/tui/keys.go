package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Left      key.Binding
	Right     key.Binding
	AddCut    key.Binding
	DeleteCut key.Binding
	NextCut   key.Binding
	DragLeft  key.Binding
	DragRight key.Binding
	Commit    key.Binding
	Cancel    key.Binding
	Select    key.Binding
	ZoomIn    key.Binding
	ZoomOut   key.Binding
	Tag       key.Binding
	ClearAll  key.Binding
	Play      key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "back")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "forward")),
		AddCut:    key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cut here")),
		DeleteCut: key.NewBinding(key.WithKeys("x", "delete"), key.WithHelp("x", "delete cut")),
		NextCut:   key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next cut")),
		DragLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "drag left")),
		DragRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "drag right")),
		Commit:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "drop")),
		Cancel:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Select:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "select segment")),
		ZoomIn:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "zoom in")),
		ZoomOut:   key.NewBinding(key.WithKeys("-"), key.WithHelp("-", "zoom out")),
		Tag:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tag segment")),
		ClearAll:  key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "clear all")),
		Play:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Left, k.Right, k.AddCut, k.NextCut, k.Tag, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Left, k.Right, k.Play, k.ZoomIn, k.ZoomOut},
		{k.AddCut, k.DeleteCut, k.NextCut, k.ClearAll},
		{k.DragLeft, k.DragRight, k.Commit, k.Cancel},
		{k.Select, k.Tag, k.Help, k.Quit},
	}
}
