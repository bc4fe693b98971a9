package cli

import "github.com/charmbracelet/bubbles/key"

type wizardKeys struct {
	Quit        key.Binding
	Exit        key.Binding
	Recall      key.Binding
	Accept      key.Binding
	Edit        key.Binding
	Save        key.Binding
	Cancel      key.Binding
	New         key.Binding
	DownloadMD  key.Binding
	DownloadTxt key.Binding
	Scroll      key.Binding
}

func defaultWizardKeys() wizardKeys {
	return wizardKeys{
		Quit:        key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
		Exit:        key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "quit")),
		Recall:      key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "recall last goal")),
		Accept:      key.NewBinding(key.WithKeys("a", "enter"), key.WithHelp("a", "accept")),
		Edit:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Save:        key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save & plan")),
		Cancel:      key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel edit")),
		New:         key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new goal")),
		DownloadMD:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "download .md")),
		DownloadTxt: key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "download .txt")),
		Scroll:      key.NewBinding(key.WithKeys("up", "down", "pgup", "pgdown"), key.WithHelp("↑/↓", "scroll")),
	}
}
