package addons

import (
	"context"
	"errors"

	"github.com/simonvc/confutil/internal/orm"
)

func settingsSpecs() []orm.ModelSpec {
	return []orm.ModelSpec{
		{
			Name:        "account.config.settings",
			Description: "Accounting Settings",
			Transient:   true,
			Fields: []orm.Field{
				{Name: "company_id", String: "Company", Type: orm.TypeMany2one, Relation: "res.company"},
				{Name: "currency_id", String: "Default Company Currency", Type: orm.TypeChar},
				{Name: "default_sale_tax", String: "Default Sale Tax", Type: orm.TypeMany2one, Relation: "account.tax"},
				{Name: "default_purchase_tax", String: "Default Purchase Tax", Type: orm.TypeMany2one, Relation: "account.tax"},
				{Name: "group_multi_currency", String: "Allow Multi Currencies", Type: orm.TypeBoolean},
				{Name: "income_currency_exchange_account_id", String: "Gain Exchange Rate Account", Type: orm.TypeMany2one, Relation: "account.account"},
				{Name: "expense_currency_exchange_account_id", String: "Loss Exchange Rate Account", Type: orm.TypeMany2one, Relation: "account.account"},
				{Name: "date_start", String: "Start Date", Type: orm.TypeDate},
				{Name: "date_stop", String: "End Date", Type: orm.TypeDate},
				{Name: "period", String: "Periods", Type: orm.TypeSelection, Selection: []string{"month", "3months"}, Default: "month"},
				{Name: "decimal_precision", String: "Decimal Precision on Journal Entries", Type: orm.TypeInteger, Default: int64(2)},
			},
			Methods: map[string]orm.Method{
				"execute": executeAccountSettings,
			},
		},
		{
			Name:        "base.config.settings",
			Description: "General Settings",
			Transient:   true,
			Fields: []orm.Field{
				{Name: "module_multi_company", String: "Manage Multiple Companies", Type: orm.TypeBoolean},
				{Name: "module_share", String: "Allow Documents Sharing", Type: orm.TypeBoolean},
				{Name: "alias_domain", String: "Alias Domain", Type: orm.TypeChar},
				{Name: "company_share_partner", String: "Share Partners to All Companies", Type: orm.TypeBoolean, Default: true},
			},
			Methods: map[string]orm.Method{
				"execute": executeAsParameters,
			},
		},
		{
			Name:        "purchase.config.settings",
			Description: "Purchase Settings",
			Transient:   true,
			Fields: []orm.Field{
				{Name: "default_invoice_method", String: "Default Invoicing Control Method", Type: orm.TypeSelection, Selection: []string{"manual", "order", "picking"}, Default: "manual"},
				{Name: "group_purchase_pricelist", String: "Manage Pricelist per Supplier", Type: orm.TypeBoolean},
				{Name: "module_purchase_requisition", String: "Manage Calls for Bids", Type: orm.TypeBoolean},
				{Name: "module_purchase_analytic_plans", String: "Use Multiple Analytic Accounts on Orders", Type: orm.TypeBoolean},
			},
			Methods: map[string]orm.Method{
				"execute": executeAsParameters,
			},
		},
		{
			Name:        "sale.config.settings",
			Description: "Sale Settings",
			Transient:   true,
			Fields: []orm.Field{
				{Name: "group_discount_per_so_line", String: "Allow Discounts on Sales Order Lines", Type: orm.TypeBoolean},
				{Name: "group_sale_pricelist", String: "Use Pricelists to Adapt Prices", Type: orm.TypeBoolean},
				{Name: "module_sale_margin", String: "Display Margins on Sales Orders", Type: orm.TypeBoolean},
				{Name: "timesheet", String: "Prepare Invoices Based on Timesheets", Type: orm.TypeBoolean},
				{Name: "default_picking_policy", String: "Deliver All at Once", Type: orm.TypeBoolean},
			},
			Methods: map[string]orm.Method{
				"execute": executeAsParameters,
			},
		},
		{
			Name:        "stock.config.settings",
			Description: "Warehouse Settings",
			Transient:   true,
			Fields: []orm.Field{
				{Name: "group_stock_multiple_locations", String: "Manage Multiple Locations", Type: orm.TypeBoolean},
				{Name: "group_stock_production_lot", String: "Track Serial Numbers", Type: orm.TypeBoolean},
				{Name: "group_uom", String: "Manage Different Units of Measure", Type: orm.TypeBoolean},
				{Name: "module_stock_dropshipping", String: "Manage Dropshipping", Type: orm.TypeBoolean},
			},
			Methods: map[string]orm.Method{
				"execute": executeAsParameters,
			},
		},
	}
}

var companySettingsFields = []string{
	"currency_id",
	"income_currency_exchange_account_id",
	"expense_currency_exchange_account_id",
}

// executeAccountSettings pushes the wizard's values onto its company, the
// product tax defaults and the multi-currency group.
func executeAccountSettings(ctx context.Context, call orm.MethodCall) (any, error) {
	reg, env := call.Registry, call.Env
	for _, id := range call.IDs {
		rec, err := orm.ReadOne(ctx, call.Self, env, id)
		if err != nil {
			return nil, err
		}

		if companyID, ok := rec.ID("company_id"); ok {
			if err := writeCompanySettings(ctx, reg, env, companyID, rec); err != nil {
				return nil, err
			}
		}
		if err := toggleGroup(ctx, reg, env, "base", "group_multi_currency", rec.Bool("group_multi_currency")); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func writeCompanySettings(ctx context.Context, reg orm.Registry, env orm.Env, companyID orm.ID, rec orm.Values) error {
	companies, err := reg.Model("res.company")
	if err != nil {
		return err
	}
	vals := orm.Values{}
	for _, f := range companySettingsFields {
		if v := rec[f]; v != nil {
			vals[f] = v
		}
	}
	if len(vals) > 0 {
		if err := companies.Write(ctx, env, []orm.ID{companyID}, vals); err != nil {
			return err
		}
	}

	defaults, err := reg.Model("ir.values")
	if err != nil {
		return err
	}
	for field, productField := range map[string]string{"default_sale_tax": "taxes_id", "default_purchase_tax": "supplier_taxes_id"} {
		taxID, ok := rec.ID(field)
		if !ok {
			continue
		}
		if _, err := defaults.Call(ctx, env, "set_default", nil, orm.Values{
			"model":         "product.template",
			"field_name":    productField,
			"for_all_users": true,
			"company_id":    companyID,
			"value":         []orm.ID{taxID},
		}); err != nil {
			return err
		}
	}
	return nil
}

// toggleGroup adds the group to, or removes it from, every user. A group
// that is not installed is ignored.
func toggleGroup(ctx context.Context, reg orm.Registry, env orm.Env, module, name string, on bool) error {
	ref, err := ResolveXMLID(ctx, reg, env, module, name)
	if errors.Is(err, orm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	users, err := reg.Model("res.users")
	if err != nil {
		return err
	}
	ids, err := users.Search(ctx, env, nil)
	if err != nil {
		return err
	}
	cmd := orm.UnlinkCmd(ref.ID)
	if on {
		cmd = orm.Link(ref.ID)
	}
	return users.Write(ctx, env, ids, orm.Values{"groups_id": []orm.Command{cmd}})
}

// executeAsParameters persists each settings field as the system parameter
// "<model>.<field>".
func executeAsParameters(ctx context.Context, call orm.MethodCall) (any, error) {
	params, err := call.Registry.Model("ir.config_parameter")
	if err != nil {
		return nil, err
	}
	for _, id := range call.IDs {
		rec, err := orm.ReadOne(ctx, call.Self, call.Env, id)
		if err != nil {
			return nil, err
		}
		for _, name := range rec.Keys() {
			if name == "id" {
				continue
			}
			if _, err := params.Call(ctx, call.Env, "set_param", nil, orm.Values{
				"key":   call.Self.Name() + "." + name,
				"value": rec[name],
			}); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}
