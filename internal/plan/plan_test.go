package plan

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/confutil/internal/addons"
	"github.com/simonvc/confutil/internal/confutil"
	"github.com/simonvc/confutil/internal/orm"
	"github.com/simonvc/confutil/internal/store"
)

const fullPlan = `
company: base.main_company
steps:
  - setup_accounts:
      chart_template: l10n_ifrs.chart_template_ifrs
      code_digits: 6
  - default_taxes: {sale: ST1, purchase: PT1}
  - multi_currency: {gain: "409500", loss: "509500"}
  - settings:
      model: account.config.settings
      values:
        decimal_precision: 3
  - settings:
      model: sale.config.settings
      values:
        group_discount_per_so_line: true
  - product_taxes:
      customer: [ST1, ST0]
      supplier: [PT1]
  - default_pricelist: product.list0
  - user_levels:
      user: base.user_root
      levels:
        Accounting & Finance: Accountant
  - sale_user_level: {user: base.user_root, level: See all Leads}
  - access_rights:
      user: 1
      rights:
        - {category: Technical Settings, group: Technical Features, granted: true}
  - consolidation_account:
      code: "900000"
      name: Group Consolidation
      children: ["101000", "102000"]
`

func installedStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "plan.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, addons.Install(context.Background(), st, orm.NewEnv(orm.SuperuserID)))
	return st
}

func TestParse(t *testing.T) {
	p, err := ParseBytes([]byte(fullPlan))
	require.NoError(t, err)
	assert.Equal(t, Ref("base.main_company"), p.Company)
	require.Len(t, p.Steps, 11)

	kinds := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		kinds[i] = s.Kind()
	}
	assert.Equal(t, []string{
		"setup_accounts", "default_taxes", "multi_currency", "settings", "settings",
		"product_taxes", "default_pricelist", "user_levels", "sale_user_level",
		"access_rights", "consolidation_account",
	}, kinds)
	assert.Equal(t, 6, p.Steps[0].SetupAccounts.CodeDigits)
	assert.Equal(t, Ref("1"), p.Steps[9].AccessRights.User)
	assert.True(t, p.Steps[9].AccessRights.Rights[0].Granted)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"empty", ``, "empty document"},
		{"unknown key", "company: 1\nsteps:\n  - bogus: {}\n", "bogus"},
		{"no company", "steps:\n  - default_taxes: {sale: A, purchase: B}\n", "company is required"},
		{"no steps", "company: 1\n", "no steps"},
		{"two actions", "company: 1\nsteps:\n  - default_taxes: {sale: A, purchase: B}\n    default_pricelist: product.list0\n", "several actions"},
		{"missing field", "company: 1\nsteps:\n  - multi_currency: {gain: \"4095\"}\n", "gain and loss are required"},
		{"bad settings model", "company: 1\nsteps:\n  - settings: {model: res.partner}\n", "unknown settings model"},
		{"bad scope", "company: 1\nsteps:\n  - settings: {model: sale.config.settings, scope: team}\n", "neither company nor global"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPlan)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fullPlan), 0o600))
	p, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, p.Steps, 11)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	st := installedStore(t)
	p, err := ParseBytes([]byte(fullPlan))
	require.NoError(t, err)

	clock := func() time.Time { return time.Date(2030, time.March, 3, 0, 0, 0, 0, time.UTC) }
	runner := NewRunner(st, orm.NewEnv(orm.SuperuserID), WithClock(clock))
	report, err := runner.Run(ctx, p)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, orm.ID(1), report.CompanyID)
	require.Len(t, report.Steps, 11)
	for _, s := range report.Steps {
		assert.False(t, s.Skipped, s.Kind)
	}

	c := confutil.NewConfigurator(st, orm.NewEnv(orm.SuperuserID))
	settingsID, err := c.ExactlyOneID(ctx, "account.config.settings", orm.Domain{orm.Eq("company_id", 1)})
	require.NoError(t, err)
	settings, err := c.Model("account.config.settings")
	require.NoError(t, err)
	rec, err := orm.ReadOne(ctx, settings, c.Env(), settingsID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), rec["decimal_precision"])
	assert.Equal(t, true, rec["group_multi_currency"])
	st1, err := c.TaxIDByCode(ctx, "ST1")
	require.NoError(t, err)
	assert.Equal(t, st1, rec["default_sale_tax"])

	_, err = c.ExactlyOneID(ctx, "account.fiscalyear", orm.Domain{orm.Eq("code", "FY2030")})
	require.NoError(t, err)

	consol, err := c.AccountID(ctx, 1, "900000")
	require.NoError(t, err)
	accounts, err := c.Model("account.account")
	require.NoError(t, err)
	acc, err := orm.ReadOne(ctx, accounts, c.Env(), consol, "child_consol_ids")
	require.NoError(t, err)
	assert.Len(t, acc.IDs("child_consol_ids"), 2)

	// a second run skips what already exists and duplicates nothing
	report, err = runner.Run(ctx, p)
	require.NoError(t, err)
	assert.True(t, report.Steps[0].Skipped)
	assert.True(t, report.Steps[10].Skipped)
	n, err := st.Count(ctx, "account.config.settings")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	st := installedStore(t)
	p, err := ParseBytes([]byte(strings.Join([]string{
		"company: base.main_company",
		"steps:",
		"  - default_pricelist: product.list0",
		"  - default_taxes: {sale: ST1, purchase: PT1}",
		"  - sale_user_level: {user: base.user_root, level: Manager}",
	}, "\n")))
	require.NoError(t, err)

	report, err := NewRunner(st, orm.NewEnv(orm.SuperuserID)).Run(ctx, p)
	require.Error(t, err)
	assert.ErrorIs(t, err, confutil.ErrNoRecords)
	assert.Contains(t, err.Error(), "step 2 (default_taxes)")
	require.NotNil(t, report)
	assert.Len(t, report.Steps, 1)

	_, err = NewRunner(st, orm.NewEnv(orm.SuperuserID)).Run(ctx, &Plan{
		Company: "base.nowhere",
		Steps:   []Step{{DefaultTaxes: &DefaultTaxes{Sale: "A", Purchase: "B"}}},
	})
	assert.ErrorIs(t, err, orm.ErrRecordNotFound)
}
