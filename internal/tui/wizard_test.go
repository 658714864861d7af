package tui

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/confutil/internal/addons"
	"github.com/simonvc/confutil/internal/client"
	"github.com/simonvc/confutil/internal/orm"
	"github.com/simonvc/confutil/internal/server"
	"github.com/simonvc/confutil/internal/store"
)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "tui.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, addons.Install(context.Background(), st, orm.NewEnv(orm.SuperuserID)))
	ts := httptest.NewServer(server.New(st, "").Handler())
	t.Cleanup(ts.Close)
	return client.New(ts.URL)
}

var (
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	escKey   = tea.KeyMsg{Type: tea.KeyEsc}
)

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func fieldIndex(t *testing.T, m wizardModel, name string) int {
	t.Helper()
	for i, f := range m.fields {
		if f.Name == name {
			return i
		}
	}
	t.Fatalf("field %s not loaded", name)
	return -1
}

func TestWizardAppliesAccountSettings(t *testing.T) {
	c := newTestClient(t)
	m := newWizard(accountSettingsModel)

	m, cmd := m.update(enterKey, c)
	assert.Nil(t, cmd)
	require.Error(t, m.err, "accounting settings need a company")

	m, _ = m.update(runes("1"), c)
	m, cmd = m.update(enterKey, c)
	require.NotNil(t, cmd)
	assert.Equal(t, stepLoading, m.step)
	assert.Equal(t, orm.ID(1), m.companyID)

	m, _ = m.update(cmd(), c)
	require.NoError(t, m.err)
	require.Equal(t, stepFields, m.step)
	assert.Nil(t, m.current)
	for _, f := range m.fields {
		assert.NotEqual(t, "company_id", f.Name)
	}

	m.cursor = fieldIndex(t, m, "decimal_precision")
	m, _ = m.update(enterKey, c)
	require.Equal(t, stepValue, m.step)
	m.value.SetValue("x")
	m, _ = m.update(enterKey, c)
	assert.Error(t, m.err)
	assert.Equal(t, stepValue, m.step)
	m.value.SetValue("4")
	m, _ = m.update(enterKey, c)
	require.NoError(t, m.err)
	assert.Equal(t, stepFields, m.step)
	assert.Equal(t, int64(4), m.changes["decimal_precision"])

	m.cursor = fieldIndex(t, m, "period")
	m, _ = m.update(enterKey, c)
	assert.Equal(t, "month", m.changes["period"], "cycles from nothing to the first option")
	m, _ = m.update(enterKey, c)
	assert.Equal(t, "3months", m.changes["period"])
	m, _ = m.update(runes("u"), c)
	assert.NotContains(t, m.changes, "period")

	m, _ = m.update(runes("s"), c)
	require.Equal(t, stepConfirm, m.step)
	assert.Contains(t, m.view(), "decimal_precision")

	m, cmd = m.update(runes("y"), c)
	require.NotNil(t, cmd)
	m, _ = m.update(cmd(), c)
	require.NoError(t, m.err)
	assert.True(t, m.done)
	assert.Contains(t, m.statusMsg, "company 1")

	got, err := c.Settings(context.Background(), accountSettingsModel, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), got["decimal_precision"])
}

func TestWizardGlobalAndEscape(t *testing.T) {
	c := newTestClient(t)
	m := newWizard("sale.config.settings")

	m, cmd := m.update(enterKey, c)
	require.NotNil(t, cmd, "blank company means global")
	m, _ = m.update(cmd(), c)
	require.Equal(t, stepFields, m.step)

	m, _ = m.update(runes("s"), c)
	assert.Error(t, m.err, "nothing changed")
	assert.Equal(t, stepFields, m.step)

	m.cursor = fieldIndex(t, m, "group_sale_pricelist")
	m, _ = m.update(enterKey, c)
	assert.Equal(t, true, m.changes["group_sale_pricelist"])
	m, _ = m.update(enterKey, c)
	assert.Equal(t, false, m.changes["group_sale_pricelist"])

	m, _ = m.update(runes("s"), c)
	m, _ = m.update(runes("n"), c)
	assert.Equal(t, stepFields, m.step)

	m, _ = m.update(escKey, c)
	assert.True(t, m.cancelled)
}

func TestWizardRejectsBadCompany(t *testing.T) {
	m := newWizard("stock.config.settings")
	m, _ = m.update(runes("abc"), nil)
	m, cmd := m.update(enterKey, nil)
	assert.Nil(t, cmd)
	assert.Error(t, m.err)
	assert.Equal(t, stepCompany, m.step)
}

func TestParseFieldValue(t *testing.T) {
	tests := []struct {
		name    string
		field   orm.Field
		raw     string
		want    any
		wantErr bool
	}{
		{"bool", orm.Field{Type: orm.TypeBoolean}, "true", true, false},
		{"bad bool", orm.Field{Type: orm.TypeBoolean}, "yes please", nil, true},
		{"integer", orm.Field{Type: orm.TypeInteger}, " 42 ", int64(42), false},
		{"many2one", orm.Field{Type: orm.TypeMany2one}, "7", int64(7), false},
		{"clear many2one", orm.Field{Type: orm.TypeMany2one}, "", false, false},
		{"float", orm.Field{Type: orm.TypeFloat}, "0.15", 0.15, false},
		{"date", orm.Field{Type: orm.TypeDate}, "2031-01-01", "2031-01-01", false},
		{"bad date", orm.Field{Type: orm.TypeDate}, "01/01/2031", nil, true},
		{"selection", orm.Field{Type: orm.TypeSelection, Selection: []string{"month", "3months"}}, "3months", "3months", false},
		{"bad selection", orm.Field{Type: orm.TypeSelection, Selection: []string{"month"}}, "week", nil, true},
		{"many2many", orm.Field{Type: orm.TypeMany2many}, "3, 4", []orm.ID{3, 4}, false},
		{"bad many2many", orm.Field{Type: orm.TypeMany2many}, "3,x", nil, true},
		{"char", orm.Field{Type: orm.TypeChar}, "EUR", "EUR", false},
		{"clear char", orm.Field{Type: orm.TypeChar}, "  ", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseFieldValue(tt.field, tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisplayValue(t *testing.T) {
	assert.Equal(t, "", displayValue(nil))
	assert.Equal(t, "", displayValue(false))
	assert.Equal(t, "true", displayValue(true))
	assert.Equal(t, "1,2", displayValue([]orm.ID{1, 2}))
	assert.Equal(t, "1,2", displayValue([]any{int64(1), int64(2)}))
	assert.Equal(t, "2031-01-01", displayValue("2031-01-01"))
	assert.Equal(t, "4", displayValue(int64(4)))
}

func TestNextOption(t *testing.T) {
	opts := []string{"a", "b"}
	assert.Equal(t, "a", nextOption(opts, nil))
	assert.Equal(t, "b", nextOption(opts, "a"))
	assert.Equal(t, "a", nextOption(opts, "b"))
	assert.Equal(t, "", nextOption(nil, "a"))
}
