package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/simonvc/confutil/internal/client"
)

type mode int

const (
	modeSettings mode = iota
	modeCompanies
	modeModels
	modeWizard
)

var tabModes = []mode{modeSettings, modeCompanies, modeModels}

func tabLabel(m mode) string {
	switch m {
	case modeSettings:
		return "Settings"
	case modeCompanies:
		return "Companies"
	case modeModels:
		return "Models"
	default:
		return ""
	}
}

type App struct {
	client        *client.Client
	mode          mode
	tabIndex      int
	width, height int
	statusMsg     string

	settings  settingsListModel
	companies companiesModel
	models    modelsModel
	wizard    wizardModel
}

func NewApp(c *client.Client) *App {
	return &App{
		client:   c,
		mode:     modeSettings,
		tabIndex: 0,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(
		a.settings.init(a.client),
		a.companies.init(a.client),
		a.models.init(a.client),
	)
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.WindowSizeMsg); ok {
		a.width = msg.Width
		a.height = msg.Height
		a.settings.width = msg.Width
		a.settings.height = msg.Height - 6
		a.companies.width = msg.Width
		a.companies.height = msg.Height - 6
		a.models.width = msg.Width
		a.models.height = msg.Height - 6
		a.wizard.width = msg.Width
		return a, nil
	}

	// Loads started by Init finish in any mode; route them to their tab.
	switch typedMsg := msg.(type) {
	case settingsModelsLoadedMsg:
		var cmd tea.Cmd
		a.settings, cmd = a.settings.update(msg)
		return a, cmd
	case companiesLoadedMsg:
		var cmd tea.Cmd
		a.companies, cmd = a.companies.update(msg, a.client)
		return a, cmd
	case accountsSetUpMsg:
		a.companies, _ = a.companies.update(msg, a.client)
		if typedMsg.err != nil {
			return a, nil
		}
		if typedMsg.installed {
			a.statusMsg = "Chart of accounts installed for company " + itoa(typedMsg.company)
		} else {
			a.statusMsg = "Company " + itoa(typedMsg.company) + " already had a chart of accounts"
		}
		return a, a.companies.init(a.client)
	case modelsLoadedMsg, fieldsLoadedMsg:
		var cmd tea.Cmd
		a.models, cmd = a.models.update(msg, a.client)
		return a, cmd
	}

	// Modal mode: delegate ALL message types (not just keys)
	if a.mode == modeWizard {
		var cmd tea.Cmd
		a.wizard, cmd = a.wizard.update(msg, a.client)
		if a.wizard.done {
			a.mode = tabModes[a.tabIndex]
			a.statusMsg = a.wizard.statusMsg
			return a, nil
		}
		if a.wizard.cancelled {
			a.mode = tabModes[a.tabIndex]
			a.statusMsg = "Settings left unchanged"
		}
		return a, cmd
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Quit):
			return a, tea.Quit

		case key.Matches(msg, keys.Tab):
			a.tabIndex = (a.tabIndex + 1) % len(tabModes)
			a.mode = tabModes[a.tabIndex]
			a.statusMsg = ""
			return a, nil

		case key.Matches(msg, keys.ShiftTab):
			a.tabIndex = (a.tabIndex - 1 + len(tabModes)) % len(tabModes)
			a.mode = tabModes[a.tabIndex]
			a.statusMsg = ""
			return a, nil

		case key.Matches(msg, keys.Refresh):
			a.statusMsg = ""
			return a, a.refreshTab()

		case key.Matches(msg, keys.Enter):
			if a.mode == modeSettings {
				if model := a.settings.selected(); model != "" {
					a.mode = modeWizard
					a.wizard = newWizard(model)
					a.wizard.width = a.width
				}
				return a, nil
			}
		}
	}

	// Delegate update to active sub-model
	var cmd tea.Cmd
	switch a.mode {
	case modeSettings:
		a.settings, cmd = a.settings.update(msg)
	case modeCompanies:
		a.companies, cmd = a.companies.update(msg, a.client)
	case modeModels:
		a.models, cmd = a.models.update(msg, a.client)
	}
	return a, cmd
}

func (a *App) refreshTab() tea.Cmd {
	switch a.mode {
	case modeSettings:
		return a.settings.init(a.client)
	case modeCompanies:
		return a.companies.init(a.client)
	case modeModels:
		return a.models.init(a.client)
	}
	return nil
}

func (a *App) View() string {
	// Tab bar
	tabs := ""
	for i, m := range tabModes {
		label := tabLabel(m)
		if i == a.tabIndex && a.mode != modeWizard {
			tabs += activeTabStyle.Render(label)
		} else {
			tabs += inactiveTabStyle.Render(label)
		}
		if i < len(tabModes)-1 {
			tabs += " "
		}
	}

	var content string
	switch a.mode {
	case modeSettings:
		content = a.settings.view()
	case modeCompanies:
		content = a.companies.view()
	case modeModels:
		content = a.models.view()
	case modeWizard:
		content = a.wizard.view()
	}

	status := ""
	if a.statusMsg != "" {
		status = successStyle.Render(a.statusMsg)
	}

	helpText := dimStyle.Render("tab:switch  enter:select  esc:back  r:refresh  q:quit")

	return lipgloss.JoinVertical(lipgloss.Left,
		tabs,
		"",
		content,
		"",
		status,
		helpText,
	)
}
