package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/simonvc/confutil/internal/client"
	"github.com/simonvc/confutil/internal/orm"
)

type modelsLoadedMsg struct {
	names []string
	err   error
}

type fieldsLoadedMsg struct {
	model  string
	fields []orm.Field
	err    error
}

// modelsModel browses the registry. Enter shows the selected model's
// fields below the list.
type modelsModel struct {
	names   []string
	cursor  int
	offset  int
	loading bool
	err     error
	shown   string
	fields  []orm.Field
	width   int
	height  int
}

func (m *modelsModel) init(c *client.Client) tea.Cmd {
	m.loading = true
	return func() tea.Msg {
		names, err := c.Models(context.Background())
		return modelsLoadedMsg{names: names, err: err}
	}
}

func loadFields(c *client.Client, model string) tea.Cmd {
	return func() tea.Msg {
		fields, err := c.Fields(context.Background(), model)
		if err != nil {
			return fieldsLoadedMsg{model: model, err: err}
		}
		out := make([]orm.Field, 0, len(fields))
		for _, name := range sortedKeys(fields) {
			f := fields[name]
			f.Name = name
			out = append(out, f)
		}
		return fieldsLoadedMsg{model: model, fields: out}
	}
}

func sortedKeys(fields map[string]orm.Field) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m modelsModel) update(msg tea.Msg, c *client.Client) (modelsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case modelsLoadedMsg:
		m.loading = false
		m.names = msg.names
		m.err = msg.err
	case fieldsLoadedMsg:
		m.err = msg.err
		m.shown = msg.model
		m.fields = msg.fields
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.names)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Enter):
			if m.cursor < len(m.names) {
				return m, loadFields(c, m.names[m.cursor])
			}
		}
		m.scroll()
	}
	return m, nil
}

// scroll keeps the cursor inside the visible window of names.
func (m *modelsModel) scroll() {
	rows := m.height - 4
	if rows < 5 {
		rows = 5
	}
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+rows {
		m.offset = m.cursor - rows + 1
	}
}

func (m modelsModel) view() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Models"))
	b.WriteString("\n")
	if m.loading {
		b.WriteString(dimStyle.Render("  Loading...") + "\n")
		return b.String()
	}

	rows := m.height - 4
	if rows < 5 {
		rows = 5
	}
	end := min(m.offset+rows, len(m.names))
	for i := m.offset; i < end; i++ {
		if i == m.cursor {
			b.WriteString(selectedStyle.Render("  > "+m.names[i]) + "\n")
		} else {
			b.WriteString("    " + m.names[i] + "\n")
		}
	}

	if m.shown != "" {
		b.WriteString("\n" + headerStyle.Render(fmt.Sprintf("  %-40s %-10s %s", m.shown, "TYPE", "RELATION")) + "\n")
		for _, f := range m.fields {
			line := fmt.Sprintf("  %-40s %-10s %s", f.Name, f.Type, f.Relation)
			if f.Required {
				line += dimStyle.Render("  required")
			}
			b.WriteString(line + "\n")
		}
	}
	if m.err != nil {
		b.WriteString(errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	}
	return b.String()
}
