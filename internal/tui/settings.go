package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/simonvc/confutil/internal/client"
)

type settingsModelsLoadedMsg struct {
	models []string
	err    error
}

// settingsListModel lists the settings wizards.
type settingsListModel struct {
	models  []string
	cursor  int
	loading bool
	err     error
	width   int
	height  int
}

func (m *settingsListModel) init(c *client.Client) tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		models, err := c.SettingsModels(context.Background())
		return settingsModelsLoadedMsg{models: models, err: err}
	}
}

func (m settingsListModel) update(msg tea.Msg) (settingsListModel, tea.Cmd) {
	switch msg := msg.(type) {
	case settingsModelsLoadedMsg:
		m.loading = false
		m.models = msg.models
		m.err = msg.err
		if m.cursor >= len(m.models) {
			m.cursor = 0
		}
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.models)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

func (m settingsListModel) selected() string {
	if m.cursor < len(m.models) {
		return m.models[m.cursor]
	}
	return ""
}

func (m settingsListModel) view() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Settings Wizards"))
	b.WriteString("\n")
	switch {
	case m.loading:
		b.WriteString(dimStyle.Render("  Loading...") + "\n")
	case m.err != nil:
		b.WriteString(errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	default:
		for i, name := range m.models {
			if i == m.cursor {
				b.WriteString(selectedStyle.Render("  > "+name) + "\n")
			} else {
				b.WriteString("    " + name + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("  enter to edit") + "\n")
	}
	return b.String()
}
