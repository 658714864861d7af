package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/simonvc/confutil/internal/client"
	"github.com/simonvc/confutil/internal/orm"
)

type companiesLoadedMsg struct {
	ids []orm.ID
	err error
}

type accountsSetUpMsg struct {
	company   orm.ID
	installed bool
	err       error
}

// companiesModel lists companies without a chart of accounts and installs
// the default chart on request.
type companiesModel struct {
	ids     []orm.ID
	cursor  int
	loading bool
	busy    bool
	err     error
	width   int
	height  int
}

func (m *companiesModel) init(c *client.Client) tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		ids, err := c.UnconfiguredCompanies(context.Background())
		return companiesLoadedMsg{ids: ids, err: err}
	}
}

func (m companiesModel) update(msg tea.Msg, c *client.Client) (companiesModel, tea.Cmd) {
	switch msg := msg.(type) {
	case companiesLoadedMsg:
		m.loading = false
		m.ids = msg.ids
		m.err = msg.err
		if m.cursor >= len(m.ids) {
			m.cursor = 0
		}
	case accountsSetUpMsg:
		m.busy = false
		m.err = msg.err
	case tea.KeyMsg:
		if m.busy {
			return m, nil
		}
		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.ids)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Enter):
			if len(m.ids) == 0 {
				return m, nil
			}
			company := m.ids[m.cursor]
			m.busy = true
			return m, func() tea.Msg {
				installed, err := c.SetupAccounts(context.Background(), company, "", 0)
				return accountsSetUpMsg{company: company, installed: installed, err: err}
			}
		}
	}
	return m, nil
}

func (m companiesModel) view() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Companies Without Accounts"))
	b.WriteString("\n")
	switch {
	case m.loading:
		b.WriteString(dimStyle.Render("  Loading...") + "\n")
	case len(m.ids) == 0 && m.err == nil:
		b.WriteString(successStyle.Render("  Every company has a chart of accounts.") + "\n")
	default:
		for i, id := range m.ids {
			line := fmt.Sprintf("company %d", id)
			if i == m.cursor {
				b.WriteString(selectedStyle.Render("  > "+line) + "\n")
			} else {
				b.WriteString("    " + line + "\n")
			}
		}
		if m.busy {
			b.WriteString("\n" + dimStyle.Render("  Installing chart of accounts...") + "\n")
		} else if len(m.ids) > 0 {
			b.WriteString("\n" + dimStyle.Render("  enter to install the IFRS chart and open the current fiscal year") + "\n")
		}
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	}
	return b.String()
}

func itoa(id orm.ID) string {
	return strconv.FormatInt(id, 10)
}
