package confutil

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonvc/confutil/internal/addons"
	"github.com/simonvc/confutil/internal/orm"
	"github.com/simonvc/confutil/internal/store"
)

func newTestConfigurator(t *testing.T, opts ...addons.Option) (*Configurator, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "confutil.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	env := orm.NewEnv(orm.SuperuserID)
	require.NoError(t, addons.Install(context.Background(), st, env, opts...))
	return NewConfigurator(st, env), st
}

func create(t *testing.T, c *Configurator, model string, vals orm.Values) orm.ID {
	t.Helper()
	m, err := c.Model(model)
	require.NoError(t, err)
	id, err := m.Create(context.Background(), c.Env(), vals)
	require.NoError(t, err)
	return id
}

func read(t *testing.T, c *Configurator, model string, id orm.ID, fields ...string) orm.Values {
	t.Helper()
	m, err := c.Model(model)
	require.NoError(t, err)
	rec, err := orm.ReadOne(context.Background(), m, c.Env(), id, fields...)
	require.NoError(t, err)
	return rec
}

func search(t *testing.T, c *Configurator, model string, domain orm.Domain) []orm.ID {
	t.Helper()
	m, err := c.Model(model)
	require.NoError(t, err)
	ids, err := m.Search(context.Background(), c.Env(), domain)
	require.NoError(t, err)
	return ids
}

func TestCardinalityErrors(t *testing.T) {
	none := &CardinalityError{Model: "account.tax", Count: 0}
	many := &CardinalityError{Model: "account.tax", Count: 2}

	assert.ErrorIs(t, none, ErrNoRecords)
	assert.ErrorIs(t, none, ErrWrongNumberOfRecords)
	assert.NotErrorIs(t, none, ErrTooManyRecords)
	assert.ErrorIs(t, many, ErrTooManyRecords)
	assert.ErrorIs(t, many, ErrWrongNumberOfRecords)
	assert.NotErrorIs(t, many, ErrNoRecords)

	var ce *CardinalityError
	require.True(t, errors.As(errors.Join(errors.New("ctx"), many), &ce))
	assert.Equal(t, 2, ce.Count)
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name       string
		ids        []orm.ID
		card       Cardinality
		optional   orm.ID
		found      bool
		optionalIs error
		uniqueIs   error
	}{
		{"none", []orm.ID{}, MatchNone, 0, false, nil, ErrNoRecords},
		{"one", []orm.ID{4}, MatchOne, 4, true, nil, nil},
		{"many", []orm.ID{4, 5}, MatchMany, 0, false, ErrTooManyRecords, ErrTooManyRecords},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Match{Model: "res.partner", IDs: tt.ids}
			assert.Equal(t, tt.card, m.Cardinality())

			id, ok, err := m.Optional()
			if tt.optionalIs != nil {
				assert.ErrorIs(t, err, tt.optionalIs)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.optional, id)
				assert.Equal(t, tt.found, ok)
			}

			id, err = m.Unique()
			if tt.uniqueIs != nil {
				assert.ErrorIs(t, err, tt.uniqueIs)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.ids[0], id)
			}
		})
	}
}

func TestLookupCardinality(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConfigurator(t)
	p1 := create(t, c, "res.partner", orm.Values{"name": "Acme"})
	create(t, c, "res.partner", orm.Values{"name": "Globex"})
	create(t, c, "res.partner", orm.Values{"name": "Globex"})

	id, ok, err := c.MaybeID(ctx, "res.partner", orm.Domain{orm.Eq("name", "Initech")})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, id)
	_, err = c.ExactlyOneID(ctx, "res.partner", orm.Domain{orm.Eq("name", "Initech")})
	assert.ErrorIs(t, err, ErrNoRecords)

	id, ok, err = c.MaybeID(ctx, "res.partner", orm.Domain{orm.Eq("name", "Acme")})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, p1, id)
	id, err = c.ExactlyOneID(ctx, "res.partner", orm.Domain{orm.Eq("name", "Acme")})
	require.NoError(t, err)
	assert.Equal(t, p1, id)

	_, _, err = c.MaybeID(ctx, "res.partner", orm.Domain{orm.Eq("name", "Globex")})
	assert.ErrorIs(t, err, ErrTooManyRecords)
	_, err = c.ExactlyOneID(ctx, "res.partner", orm.Domain{orm.Eq("name", "Globex")})
	assert.ErrorIs(t, err, ErrTooManyRecords)
	assert.ErrorIs(t, err, ErrWrongNumberOfRecords)

	_, err = c.ExactlyOneID(ctx, "no.such.model", nil)
	assert.ErrorIs(t, err, orm.ErrUnknownModel)
}

func TestTaxIDByCodeBecomesAmbiguous(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConfigurator(t)

	st1 := create(t, c, "account.tax", orm.Values{"name": "Sales Tax", "description": "ST1", "type_tax_use": "sale"})
	id, err := c.TaxIDByCode(ctx, "ST1")
	require.NoError(t, err)
	assert.Equal(t, st1, id)

	create(t, c, "account.tax", orm.Values{"name": "Sales Tax (copy)", "description": "ST1"})
	_, err = c.TaxIDByCode(ctx, "ST1")
	assert.ErrorIs(t, err, ErrTooManyRecords)
}

func TestXMLID(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConfigurator(t)

	ref, err := c.XMLID(ctx, "base.main_company")
	require.NoError(t, err)
	assert.Equal(t, "res.company", ref.Model)

	same, err := c.XMLIDIn(ctx, "base", "main_company")
	require.NoError(t, err)
	assert.Equal(t, ref, same)

	id, err := c.XMLIDID(ctx, "base.user_root")
	require.NoError(t, err)
	assert.Equal(t, orm.SuperuserID, id)

	_, err = c.XMLID(ctx, "main_company")
	assert.Error(t, err)
	_, err = c.XMLID(ctx, "base.missing")
	assert.ErrorIs(t, err, orm.ErrRecordNotFound)
}

func TestLookupClonesEnv(t *testing.T) {
	env := orm.NewEnv(orm.SuperuserID).With("lang", "en_GB")
	l := NewLookup(nil, env)

	e := l.Env()
	e.Context["lang"] = "fr_FR"
	assert.Equal(t, "en_GB", l.Env().Context["lang"])
	assert.Equal(t, "en_GB", env.Context["lang"])
}

func TestApplyCreatesScopedRecord(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConfigurator(t)

	var company orm.ID
	for company < 7 {
		company = create(t, c, "res.company", orm.Values{"name": "Company"})
	}
	require.Equal(t, orm.ID(7), company)
	require.Empty(t, search(t, c, "account.config.settings", orm.Domain{orm.Eq("company_id", 7)}))

	id, err := c.Settings.Apply(ctx, AccountSettings, ForCompany(7), orm.Values{"default_sale_tax": 42})
	require.NoError(t, err)

	assert.Equal(t, []orm.ID{id}, search(t, c, "account.config.settings", nil))
	rec := read(t, c, "account.config.settings", id)
	assert.Equal(t, int64(7), rec["company_id"])
	assert.Equal(t, int64(42), rec["default_sale_tax"])
	assert.Equal(t, "month", rec["period"])
	assert.Equal(t, int64(2), rec["decimal_precision"])

	// executed: the default product tax now points at tax 42
	values, err := c.Model("ir.values")
	require.NoError(t, err)
	def, err := values.Call(ctx, c.Env(), "get_default", nil, orm.Values{
		"model": "product.template", "field_name": "taxes_id", "company_id": 7,
	})
	require.NoError(t, err)
	taxes, ok := orm.AsIDs(def)
	require.True(t, ok)
	assert.Equal(t, []orm.ID{42}, taxes)
}

func TestApplyIsIdempotent(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConfigurator(t)
	company, err := c.XMLIDID(ctx, "base.main_company")
	require.NoError(t, err)

	changes := orm.Values{"currency_id": "EUR", "decimal_precision": 3}
	first, err := c.Settings.SetAccountSettings(ctx, company, changes)
	require.NoError(t, err)
	before := read(t, c, "account.config.settings", first)

	second, err := c.Settings.SetAccountSettings(ctx, company, changes)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, before, read(t, c, "account.config.settings", second))
	assert.Len(t, search(t, c, "account.config.settings", nil), 1)
	assert.Equal(t, "EUR", read(t, c, "res.company", company, "currency_id")["currency_id"])
}

func TestApplyPartialUpdate(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConfigurator(t)
	company, err := c.XMLIDID(ctx, "base.main_company")
	require.NoError(t, err)

	id, err := c.Settings.SetAccountSettings(ctx, company, orm.Values{"decimal_precision": 4, "period": "3months"})
	require.NoError(t, err)
	_, err = c.Settings.SetAccountSettings(ctx, company, orm.Values{"decimal_precision": 5})
	require.NoError(t, err)

	rec := read(t, c, "account.config.settings", id)
	assert.Equal(t, int64(5), rec["decimal_precision"])
	assert.Equal(t, "3months", rec["period"])
}

func TestApplyScopeIsolation(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConfigurator(t)
	a := create(t, c, "res.company", orm.Values{"name": "A"})
	b := create(t, c, "res.company", orm.Values{"name": "B"})

	idA, err := c.Settings.SetAccountSettings(ctx, a, orm.Values{"decimal_precision": 3})
	require.NoError(t, err)
	before := read(t, c, "account.config.settings", idA)

	idB, err := c.Settings.SetAccountSettings(ctx, b, orm.Values{"decimal_precision": 6})
	require.NoError(t, err)
	assert.NotEqual(t, idA, idB)
	assert.Equal(t, before, read(t, c, "account.config.settings", idA))
	assert.Equal(t, int64(b), read(t, c, "account.config.settings", idB)["company_id"])
}

func TestApplyConcurrentCallsShareOneRecord(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConfigurator(t)

	applyTogether := func(model SettingsModel, scope Scope, changes orm.Values) []orm.ID {
		const callers = 32
		start := make(chan struct{})
		ids := make([]orm.ID, callers)
		errs := make([]error, callers)
		var wg sync.WaitGroup
		for i := range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				ids[i], errs[i] = c.Settings.Apply(ctx, model, scope, changes)
			}()
		}
		close(start)
		wg.Wait()
		for _, err := range errs {
			require.NoError(t, err)
		}
		return ids
	}

	ids := applyTogether(GeneralSettings, Global(), orm.Values{"alias_domain": "x"})
	assert.Len(t, search(t, c, "base.config.settings", nil), 1)
	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}

	for range 5 {
		company := create(t, c, "res.company", orm.Values{"name": "Subsidiary"})
		applyTogether(AccountSettings, ForCompany(company), orm.Values{"decimal_precision": 3})
		assert.Len(t, search(t, c, "account.config.settings", orm.Domain{orm.Eq("company_id", company)}), 1)
	}
}

func TestApplyPropagatesTooManyRecords(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConfigurator(t)
	company, err := c.XMLIDID(ctx, "base.main_company")
	require.NoError(t, err)
	create(t, c, "account.config.settings", orm.Values{"company_id": company})
	create(t, c, "account.config.settings", orm.Values{"company_id": company})

	_, err = c.Settings.SetAccountSettings(ctx, company, orm.Values{"decimal_precision": 3})
	assert.ErrorIs(t, err, ErrTooManyRecords)
}

func TestGlobalSettings(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConfigurator(t)

	for _, apply := range []func(context.Context, orm.Values) (orm.ID, error){
		c.Settings.SetSaleSettings,
		c.Settings.SetSaleSettings,
	} {
		_, err := apply(ctx, orm.Values{"group_sale_pricelist": true})
		require.NoError(t, err)
	}
	assert.Len(t, search(t, c, "sale.config.settings", nil), 1)

	_, err := c.Settings.SetGeneralSettings(ctx, orm.Values{"alias_domain": "example.com"})
	require.NoError(t, err)
	_, err = c.Settings.SetPurchasingSettings(ctx, orm.Values{"default_invoice_method": "order"})
	require.NoError(t, err)
	_, err = c.Settings.SetWarehouseSettings(ctx, orm.Values{"group_uom": true})
	require.NoError(t, err)

	params, err := c.Model("ir.config_parameter")
	require.NoError(t, err)
	got, err := params.Call(ctx, c.Env(), "get_param", nil, orm.Values{"key": "base.config.settings.alias_domain"})
	require.NoError(t, err)
	assert.Equal(t, "example.com", got)
	got, err = params.Call(ctx, c.Env(), "get_param", nil, orm.Values{"key": "purchase.config.settings.default_invoice_method"})
	require.NoError(t, err)
	assert.Equal(t, "order", got)
}

func TestParseSettingsModel(t *testing.T) {
	m, err := ParseSettingsModel("stock.config.settings")
	require.NoError(t, err)
	assert.Equal(t, WarehouseSettings, m)

	_, err = ParseSettingsModel("res.partner")
	assert.ErrorIs(t, err, ErrUnknownSettingsModel)
}

func TestScope(t *testing.T) {
	_, ok := Global().Company()
	assert.False(t, ok)
	id, ok := ForCompany(3).Company()
	assert.True(t, ok)
	assert.Equal(t, orm.ID(3), id)
	assert.Equal(t, "global", Global().String())
	assert.Equal(t, "company 3", ForCompany(3).String())
}

func TestSettingsCurrent(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestConfigurator(t)

	_, found, err := c.Settings.Current(ctx, SaleSettings, Global())
	require.NoError(t, err)
	assert.False(t, found)

	id, err := c.Settings.SetSaleSettings(ctx, orm.Values{"module_sale_margin": true})
	require.NoError(t, err)
	rec, found, err := c.Settings.Current(ctx, SaleSettings, Global())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, id, rec["id"])
	assert.Equal(t, true, rec["module_sale_margin"])
}
