package tui

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/simonvc/confutil/internal/client"
	"github.com/simonvc/confutil/internal/orm"
)

type wizardStep int

const (
	stepCompany wizardStep = iota
	stepLoading
	stepFields
	stepValue
	stepConfirm
	stepApplying
)

const accountSettingsModel = "account.config.settings"

type settingsLoadedMsg struct {
	fields  []orm.Field
	current orm.Values
	err     error
}

type settingsAppliedMsg struct {
	result *client.SettingsResult
	err    error
}

// wizardModel edits one settings wizard: pick the company, change fields,
// review, apply.
type wizardModel struct {
	step      wizardStep
	model     string
	company   textinput.Model
	companyID orm.ID
	fields    []orm.Field
	current   orm.Values
	changes   orm.Values
	cursor    int
	value     textinput.Model

	err       error
	done      bool
	cancelled bool
	statusMsg string
	width     int
}

func newWizard(model string) wizardModel {
	companyInput := textinput.New()
	companyInput.Placeholder = "company id, blank for global"
	if model == accountSettingsModel {
		companyInput.Placeholder = "company id, e.g. 1"
	}
	companyInput.CharLimit = 12
	companyInput.Focus()

	valueInput := textinput.New()
	valueInput.CharLimit = 120

	return wizardModel{
		step:    stepCompany,
		model:   model,
		company: companyInput,
		value:   valueInput,
		changes: orm.Values{},
	}
}

func loadSettings(c *client.Client, model string, company orm.ID) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		fields, err := c.Fields(ctx, model)
		if err != nil {
			return settingsLoadedMsg{err: err}
		}
		current, err := c.Settings(ctx, model, company)
		if err != nil && !client.IsNotFound(err) {
			return settingsLoadedMsg{err: err}
		}
		return settingsLoadedMsg{fields: editableFields(fields), current: current}
	}
}

// editableFields lists fields by name, leaving out the ones the scope sets.
func editableFields(fields map[string]orm.Field) []orm.Field {
	out := make([]orm.Field, 0, len(fields))
	for name, f := range fields {
		if name == "id" || name == "company_id" {
			continue
		}
		if f.Name == "" {
			f.Name = name
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m wizardModel) update(msg tea.Msg, c *client.Client) (wizardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case settingsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.step = stepCompany
			return m, nil
		}
		m.err = nil
		m.fields = msg.fields
		m.current = msg.current
		m.cursor = 0
		m.step = stepFields
		return m, nil

	case settingsAppliedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.step = stepConfirm
			return m, nil
		}
		m.done = true
		m.statusMsg = fmt.Sprintf("%s(%d) applied for %s", msg.result.Model, msg.result.ID, msg.result.Scope)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Escape) {
			if m.step == stepValue {
				m.step = stepFields
				m.err = nil
				return m, nil
			}
			m.cancelled = true
			return m, nil
		}

		switch m.step {
		case stepCompany:
			return m.updateCompany(msg, c)
		case stepFields:
			return m.updateFields(msg)
		case stepValue:
			return m.updateValue(msg)
		case stepConfirm:
			return m.updateConfirm(msg, c)
		}
	}
	return m, nil
}

func (m wizardModel) updateCompany(msg tea.KeyMsg, c *client.Client) (wizardModel, tea.Cmd) {
	if key.Matches(msg, keys.Enter) {
		raw := strings.TrimSpace(m.company.Value())
		var id orm.ID
		if raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n <= 0 {
				m.err = fmt.Errorf("company must be a positive id")
				return m, nil
			}
			id = n
		} else if m.model == accountSettingsModel {
			m.err = fmt.Errorf("accounting settings belong to a company")
			return m, nil
		}
		m.err = nil
		m.companyID = id
		m.step = stepLoading
		return m, loadSettings(c, m.model, id)
	}

	var cmd tea.Cmd
	m.company, cmd = m.company.Update(msg)
	return m, cmd
}

func (m wizardModel) updateFields(msg tea.KeyMsg) (wizardModel, tea.Cmd) {
	if len(m.fields) == 0 {
		return m, nil
	}
	f := m.fields[m.cursor]
	switch {
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.fields)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Undo):
		delete(m.changes, f.Name)
	case key.Matches(msg, keys.Save):
		if len(m.changes) == 0 {
			m.err = fmt.Errorf("nothing changed")
			return m, nil
		}
		m.err = nil
		m.step = stepConfirm
	case key.Matches(msg, keys.Enter):
		m.err = nil
		switch f.Type {
		case orm.TypeBoolean:
			m.changes[f.Name] = !orm.Truthy(m.valueOf(f.Name))
		case orm.TypeSelection:
			m.changes[f.Name] = nextOption(f.Selection, m.valueOf(f.Name))
		default:
			m.value.SetValue(displayValue(m.valueOf(f.Name)))
			m.value.Placeholder = string(f.Type)
			m.value.Focus()
			m.step = stepValue
		}
	}
	return m, nil
}

func (m wizardModel) updateValue(msg tea.KeyMsg) (wizardModel, tea.Cmd) {
	if key.Matches(msg, keys.Enter) {
		f := m.fields[m.cursor]
		v, err := parseFieldValue(f, m.value.Value())
		if err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		m.changes[f.Name] = v
		m.value.Blur()
		m.step = stepFields
		return m, nil
	}

	var cmd tea.Cmd
	m.value, cmd = m.value.Update(msg)
	return m, cmd
}

func (m wizardModel) updateConfirm(msg tea.KeyMsg, c *client.Client) (wizardModel, tea.Cmd) {
	switch msg.String() {
	case "y", "Y", "enter":
		m.step = stepApplying
		model, company, changes := m.model, m.companyID, m.changes.Clone()
		return m, func() tea.Msg {
			res, err := c.ApplySettings(context.Background(), model, company, changes)
			return settingsAppliedMsg{result: res, err: err}
		}
	case "n", "N":
		m.step = stepFields
	}
	return m, nil
}

// valueOf returns the pending value of a field, or its stored one.
func (m wizardModel) valueOf(name string) any {
	if v, ok := m.changes[name]; ok {
		return v
	}
	return m.current[name]
}

func nextOption(options []string, current any) string {
	if len(options) == 0 {
		return ""
	}
	s, _ := current.(string)
	i := slices.Index(options, s)
	return options[(i+1)%len(options)]
}

// parseFieldValue converts typed text into a value for f. An empty input
// clears the field.
func parseFieldValue(f orm.Field, raw string) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if f.Type == orm.TypeChar || f.Type == orm.TypeText {
			return "", nil
		}
		return false, nil
	}
	switch f.Type {
	case orm.TypeBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: want true or false", f.Name)
		}
		return b, nil
	case orm.TypeInteger, orm.TypeMany2one:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: want a whole number", f.Name)
		}
		return n, nil
	case orm.TypeFloat:
		x, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: want a number", f.Name)
		}
		return x, nil
	case orm.TypeDate:
		if _, err := time.Parse(time.DateOnly, raw); err != nil {
			return nil, fmt.Errorf("%s: want a date like 2006-01-02", f.Name)
		}
		return raw, nil
	case orm.TypeSelection:
		if !slices.Contains(f.Selection, raw) {
			return nil, fmt.Errorf("%s: want one of %s", f.Name, strings.Join(f.Selection, ", "))
		}
		return raw, nil
	case orm.TypeMany2many, orm.TypeOne2many:
		parts := strings.Split(raw, ",")
		ids := make([]orm.ID, 0, len(parts))
		for _, p := range parts {
			n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: want comma separated ids", f.Name)
			}
			ids = append(ids, n)
		}
		return ids, nil
	default:
		return raw, nil
	}
}

// displayValue renders a field value for editing and review.
func displayValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		if !x {
			return ""
		}
		return "true"
	case []orm.ID:
		parts := make([]string, len(x))
		for i, id := range x {
			parts[i] = strconv.FormatInt(id, 10)
		}
		return strings.Join(parts, ",")
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = fmt.Sprint(e)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}

func (m wizardModel) scopeLabel() string {
	if m.companyID == 0 {
		return "global"
	}
	return fmt.Sprintf("company %d", m.companyID)
}

func (m *wizardModel) view() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Settings: " + m.model))
	b.WriteString("\n\n")

	switch m.step {
	case stepCompany:
		b.WriteString("  Which company do these settings belong to?\n\n")
		b.WriteString("  " + m.company.View() + "\n")

	case stepLoading:
		b.WriteString(dimStyle.Render("  Loading fields...") + "\n")

	case stepFields:
		b.WriteString(subtitleStyle.Render("  Scope: "+m.scopeLabel()) + "\n\n")
		if m.current == nil {
			b.WriteString(dimStyle.Render("  No record yet: defaults apply to fields you leave alone") + "\n\n")
		}
		for i, f := range m.fields {
			label := f.String
			if label == "" {
				label = f.Name
			}
			val := displayValue(m.valueOf(f.Name))
			_, changed := m.changes[f.Name]
			line := fmt.Sprintf("%s %s", labelStyle.Render(label), val)
			switch {
			case i == m.cursor:
				b.WriteString(selectedStyle.Render("  > "+line) + "\n")
			case changed:
				b.WriteString(changedStyle.Render("  * "+line) + "\n")
			default:
				b.WriteString("    " + line + "\n")
			}
		}
		b.WriteString("\n" + dimStyle.Render("  enter:edit/toggle  u:undo  s:review") + "\n")

	case stepValue:
		f := m.fields[m.cursor]
		b.WriteString(fmt.Sprintf("  %s (%s)\n\n", f.Name, f.Type))
		b.WriteString("  " + m.value.View() + "\n")
		hint := "Leave empty to clear the field."
		switch f.Type {
		case orm.TypeMany2one:
			hint = "Enter the record id. " + hint
		case orm.TypeMany2many, orm.TypeOne2many:
			hint = "Enter comma separated record ids. " + hint
		case orm.TypeSelection:
			hint = "One of: " + strings.Join(f.Selection, ", ")
		}
		b.WriteString("\n" + hintBoxStyle.Render(hint) + "\n")

	case stepConfirm, stepApplying:
		b.WriteString("  Review and confirm:\n\n")
		names := m.changes.Keys()
		lines := make([]string, 0, len(names)+1)
		lines = append(lines, labelStyle.Render("Scope:")+" "+m.scopeLabel())
		for _, name := range names {
			lines = append(lines, labelStyle.Render(name+":")+" "+displayValue(m.changes[name]))
		}
		b.WriteString(boxStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n\n")
		if m.step == stepApplying {
			b.WriteString(dimStyle.Render("  Applying...") + "\n")
		} else {
			b.WriteString("  Apply these settings? (y/n)\n")
		}
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("  Error: "+m.err.Error()) + "\n")
	}

	b.WriteString("\n" + dimStyle.Render("  ESC to cancel"))
	return b.String()
}
