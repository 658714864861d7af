package addons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/simonvc/confutil/internal/orm"
)

var accountTypes = []string{"view", "other", "receivable", "payable", "liquidity", "consolidation", "closed"}

func accountSpecs() []orm.ModelSpec {
	return []orm.ModelSpec{
		{
			Name:        "account.account.type",
			Description: "Account Type",
			Fields: []orm.Field{
				{Name: "name", String: "Account Type", Type: orm.TypeChar, Required: true},
				{Name: "code", String: "Code", Type: orm.TypeChar, Required: true},
				{Name: "report_type", String: "P&L / BS Category", Type: orm.TypeSelection, Selection: []string{"none", "income", "expense", "asset", "liability"}, Default: "none"},
			},
		},
		{
			Name:        "account.account",
			Description: "Account",
			Fields: []orm.Field{
				{Name: "code", String: "Code", Type: orm.TypeChar, Required: true},
				{Name: "name", String: "Name", Type: orm.TypeChar, Required: true},
				{Name: "company_id", String: "Company", Type: orm.TypeMany2one, Relation: "res.company"},
				{Name: "type", String: "Internal Type", Type: orm.TypeSelection, Selection: accountTypes, Default: "other"},
				{Name: "user_type", String: "Account Type", Type: orm.TypeMany2one, Relation: "account.account.type"},
				{Name: "parent_id", String: "Parent", Type: orm.TypeMany2one, Relation: "account.account"},
				{Name: "child_consol_ids", String: "Consolidated Children", Type: orm.TypeMany2many, Relation: "account.account"},
				{Name: "currency_id", String: "Secondary Currency", Type: orm.TypeChar},
				{Name: "reconcile", String: "Allow Reconciliation", Type: orm.TypeBoolean},
			},
		},
		{
			Name:        "account.tax",
			Description: "Tax",
			Fields: []orm.Field{
				{Name: "name", String: "Tax Name", Type: orm.TypeChar, Required: true},
				{Name: "description", String: "Tax Code", Type: orm.TypeChar},
				{Name: "company_id", String: "Company", Type: orm.TypeMany2one, Relation: "res.company"},
				{Name: "type_tax_use", String: "Tax Application", Type: orm.TypeSelection, Selection: []string{"sale", "purchase", "all"}, Default: "all"},
				{Name: "amount", String: "Amount", Type: orm.TypeFloat, Default: 0.0},
				{Name: "account_collected_id", String: "Invoice Tax Account", Type: orm.TypeMany2one, Relation: "account.account"},
			},
		},
		{
			Name:        "account.chart.template",
			Description: "Templates for Account Chart",
			Fields: []orm.Field{
				{Name: "name", String: "Name", Type: orm.TypeChar, Required: true},
				{Name: "code_digits", String: "# of Digits", Type: orm.TypeInteger, Default: int64(6)},
				{Name: "currency_id", String: "Currency", Type: orm.TypeChar},
				{Name: "bank_account_code_prefix", String: "Bank Account Code Prefix", Type: orm.TypeChar, Default: "101"},
				{Name: "visible", String: "Can be Visible?", Type: orm.TypeBoolean, Default: true},
			},
		},
		{
			Name:        "account.account.template",
			Description: "Templates for Accounts",
			Fields: []orm.Field{
				{Name: "code", String: "Code", Type: orm.TypeChar, Required: true},
				{Name: "name", String: "Name", Type: orm.TypeChar, Required: true},
				{Name: "type", String: "Internal Type", Type: orm.TypeSelection, Selection: accountTypes, Default: "other"},
				{Name: "user_type", String: "Account Type", Type: orm.TypeMany2one, Relation: "account.account.type"},
				{Name: "chart_template_id", String: "Chart Template", Type: orm.TypeMany2one, Relation: "account.chart.template"},
				{Name: "note", String: "Note", Type: orm.TypeText},
			},
		},
		{
			Name:        "account.tax.template",
			Description: "Templates for Taxes",
			Fields: []orm.Field{
				{Name: "name", String: "Tax Name", Type: orm.TypeChar, Required: true},
				{Name: "description", String: "Internal Name", Type: orm.TypeChar},
				{Name: "type_tax_use", String: "Tax Use In", Type: orm.TypeSelection, Selection: []string{"sale", "purchase", "all"}, Default: "all"},
				{Name: "amount", String: "Amount", Type: orm.TypeFloat, Default: 0.0},
				{Name: "account_code", String: "Invoice Tax Account Code", Type: orm.TypeChar},
				{Name: "chart_template_id", String: "Chart Template", Type: orm.TypeMany2one, Relation: "account.chart.template"},
			},
		},
		{
			Name:        "account.fiscalyear",
			Description: "Fiscal Year",
			Fields: []orm.Field{
				{Name: "name", String: "Fiscal Year", Type: orm.TypeChar, Required: true},
				{Name: "code", String: "Code", Type: orm.TypeChar, Required: true},
				{Name: "company_id", String: "Company", Type: orm.TypeMany2one, Relation: "res.company"},
				{Name: "date_start", String: "Start Date", Type: orm.TypeDate, Required: true},
				{Name: "date_stop", String: "End Date", Type: orm.TypeDate, Required: true},
				{Name: "state", String: "Status", Type: orm.TypeSelection, Selection: []string{"draft", "done"}, Default: "draft"},
				{Name: "period_ids", String: "Periods", Type: orm.TypeOne2many, Relation: "account.period"},
			},
			Methods: map[string]orm.Method{
				"create_period": createPeriods,
			},
		},
		{
			Name:        "account.period",
			Description: "Account Period",
			Fields: []orm.Field{
				{Name: "name", String: "Period Name", Type: orm.TypeChar, Required: true},
				{Name: "code", String: "Code", Type: orm.TypeChar},
				{Name: "special", String: "Opening/Closing Period", Type: orm.TypeBoolean},
				{Name: "date_start", String: "Start of Period", Type: orm.TypeDate, Required: true},
				{Name: "date_stop", String: "End of Period", Type: orm.TypeDate, Required: true},
				{Name: "fiscalyear_id", String: "Fiscal Year", Type: orm.TypeMany2one, Relation: "account.fiscalyear"},
				{Name: "company_id", String: "Company", Type: orm.TypeMany2one, Relation: "res.company"},
				{Name: "state", String: "Status", Type: orm.TypeSelection, Selection: []string{"draft", "done"}, Default: "draft"},
			},
		},
		{
			Name:        "account.installer",
			Description: "Accounting Application Configuration",
			Transient:   true,
			Methods: map[string]orm.Method{
				"get_unconfigured_cmp": unconfiguredCompanies,
			},
		},
		{
			Name:        "account.bank.accounts.wizard",
			Description: "Bank Account Line",
			Transient:   true,
			Fields: []orm.Field{
				{Name: "acc_name", String: "Account Name", Type: orm.TypeChar, Required: true},
				{Name: "account_type", String: "Account Type", Type: orm.TypeSelection, Selection: []string{"cash", "check", "bank"}, Default: "bank"},
				{Name: "currency_id", String: "Secondary Currency", Type: orm.TypeChar},
			},
		},
		{
			Name:        "wizard.multi.charts.accounts",
			Description: "Generate Chart of Accounts from a Chart Template",
			Transient:   true,
			Fields: []orm.Field{
				{Name: "company_id", String: "Company", Type: orm.TypeMany2one, Relation: "res.company", Required: true},
				{Name: "chart_template_id", String: "Chart Template", Type: orm.TypeMany2one, Relation: "account.chart.template", Required: true},
				{Name: "code_digits", String: "# of Digits", Type: orm.TypeInteger},
				{Name: "currency_id", String: "Currency", Type: orm.TypeChar, Default: "USD"},
				{Name: "bank_accounts_id", String: "Cash and Banks", Type: orm.TypeOne2many, Relation: "account.bank.accounts.wizard",
					Default: func(orm.Env) any {
						return []orm.Values{
							{"acc_name": "Cash", "account_type": "cash"},
							{"acc_name": "Bank", "account_type": "bank"},
						}
					}},
				{Name: "sale_tax", String: "Default Sale Tax", Type: orm.TypeMany2one, Relation: "account.tax.template"},
				{Name: "purchase_tax", String: "Default Purchase Tax", Type: orm.TypeMany2one, Relation: "account.tax.template"},
				{Name: "complete_tax_set", String: "Complete Set of Taxes", Type: orm.TypeBoolean},
			},
			Methods: map[string]orm.Method{
				"onchange_chart_template_id": onchangeChartTemplate,
				"execute":                    installChart,
			},
		},
	}
}

// createPeriods creates an opening period plus one period per interval
// months for each fiscal year.
func createPeriods(ctx context.Context, call orm.MethodCall) (any, error) {
	interval := 1
	if n, ok := call.Args.ID("interval"); ok && n > 0 {
		interval = int(n)
	}
	periods, err := call.Registry.Model("account.period")
	if err != nil {
		return nil, err
	}

	var created []orm.ID
	for _, fyID := range call.IDs {
		fy, err := orm.ReadOne(ctx, call.Self, call.Env, fyID)
		if err != nil {
			return nil, err
		}
		start, err := time.Parse(time.DateOnly, fy.String("date_start"))
		if err != nil {
			return nil, fmt.Errorf("fiscal year %d start: %w", fyID, err)
		}
		stop, err := time.Parse(time.DateOnly, fy.String("date_stop"))
		if err != nil {
			return nil, fmt.Errorf("fiscal year %d stop: %w", fyID, err)
		}
		companyID := fy["company_id"]

		opening, err := periods.Create(ctx, call.Env, orm.Values{
			"name":          "Opening Period " + start.Format("2006"),
			"code":          "00/" + start.Format("2006"),
			"date_start":    start,
			"date_stop":     start,
			"special":       true,
			"fiscalyear_id": fyID,
			"company_id":    companyID,
		})
		if err != nil {
			return nil, err
		}
		ids := []orm.ID{opening}

		for ds := start; !ds.After(stop); ds = ds.AddDate(0, interval, 0) {
			de := ds.AddDate(0, interval, -1)
			if de.After(stop) {
				de = stop
			}
			id, err := periods.Create(ctx, call.Env, orm.Values{
				"name":          ds.Format("01/2006"),
				"code":          ds.Format("01/2006"),
				"date_start":    ds,
				"date_stop":     de,
				"fiscalyear_id": fyID,
				"company_id":    companyID,
			})
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}

		cmds := make([]orm.Command, len(ids))
		for i, id := range ids {
			cmds[i] = orm.Link(id)
		}
		if err := call.Self.Write(ctx, call.Env, []orm.ID{fyID}, orm.Values{"period_ids": cmds}); err != nil {
			return nil, err
		}
		created = append(created, ids...)
	}
	return created, nil
}

// unconfiguredCompanies lists companies that own no account yet.
func unconfiguredCompanies(ctx context.Context, call orm.MethodCall) (any, error) {
	companies, err := call.Registry.Model("res.company")
	if err != nil {
		return nil, err
	}
	accounts, err := call.Registry.Model("account.account")
	if err != nil {
		return nil, err
	}
	ids, err := companies.Search(ctx, call.Env, nil)
	if err != nil {
		return nil, err
	}
	out := []orm.ID{}
	for _, id := range ids {
		owned, err := accounts.Search(ctx, call.Env, orm.Domain{orm.Eq("company_id", id)})
		if err != nil {
			return nil, err
		}
		if len(owned) == 0 {
			out = append(out, id)
		}
	}
	return out, nil
}

func onchangeChartTemplate(ctx context.Context, call orm.MethodCall) (any, error) {
	templateID, ok := call.Args.ID("chart_template_id")
	if !ok {
		return orm.Values{"value": orm.Values{}}, nil
	}
	templates, err := call.Registry.Model("account.chart.template")
	if err != nil {
		return nil, err
	}
	tmpl, err := orm.ReadOne(ctx, templates, call.Env, templateID)
	if err != nil {
		return nil, err
	}

	value := orm.Values{
		"code_digits":      tmpl["code_digits"],
		"complete_tax_set": true,
	}
	if cur := tmpl.String("currency_id"); cur != "" {
		value["currency_id"] = cur
	}
	for field, use := range map[string]string{"sale_tax": "sale", "purchase_tax": "purchase"} {
		id, ok, err := searchOne(ctx, call.Registry, call.Env, "account.tax.template", orm.Domain{
			orm.Eq("chart_template_id", templateID),
			orm.Eq("type_tax_use", use),
		})
		if err != nil {
			return nil, err
		}
		if ok {
			value[field] = id
		}
	}
	return orm.Values{"value": value}, nil
}

// installChart copies a chart template's accounts and taxes into the
// wizard's company, creates its cash and bank accounts and sets the default
// product taxes.
func installChart(ctx context.Context, call orm.MethodCall) (any, error) {
	reg, env := call.Registry, call.Env
	for _, wizID := range call.IDs {
		wiz, err := orm.ReadOne(ctx, call.Self, env, wizID)
		if err != nil {
			return nil, err
		}
		companyID, _ := wiz.ID("company_id")
		templateID, _ := wiz.ID("chart_template_id")

		templates, err := reg.Model("account.chart.template")
		if err != nil {
			return nil, err
		}
		tmpl, err := orm.ReadOne(ctx, templates, env, templateID)
		if err != nil {
			return nil, err
		}
		digits, ok := wiz.ID("code_digits")
		if !ok || digits == 0 {
			digits, _ = tmpl.ID("code_digits")
		}

		accountIDs, err := copyAccountTemplates(ctx, reg, env, templateID, companyID, int(digits))
		if err != nil {
			return nil, err
		}
		taxIDs, err := copyTaxTemplates(ctx, reg, env, templateID, companyID, accountIDs)
		if err != nil {
			return nil, err
		}
		if err := createBankAccounts(ctx, reg, env, wiz.IDs("bank_accounts_id"), tmpl.String("bank_account_code_prefix"), companyID, int(digits)); err != nil {
			return nil, err
		}

		values, err := reg.Model("ir.values")
		if err != nil {
			return nil, err
		}
		for field, productField := range map[string]string{"sale_tax": "taxes_id", "purchase_tax": "supplier_taxes_id"} {
			tmplTax, ok := wiz.ID(field)
			if !ok {
				continue
			}
			taxID, ok := taxIDs[tmplTax]
			if !ok {
				continue
			}
			if _, err := values.Call(ctx, env, "set_default", nil, orm.Values{
				"model":         "product.template",
				"field_name":    productField,
				"for_all_users": true,
				"company_id":    companyID,
				"value":         []orm.ID{taxID},
			}); err != nil {
				return nil, err
			}
		}

		if cur := wiz.String("currency_id"); cur != "" {
			companies, err := reg.Model("res.company")
			if err != nil {
				return nil, err
			}
			if err := companies.Write(ctx, env, []orm.ID{companyID}, orm.Values{"currency_id": cur}); err != nil {
				return nil, err
			}
		}
	}
	return nil, nil
}

// copyAccountTemplates returns template code -> created account id.
func copyAccountTemplates(ctx context.Context, reg orm.Registry, env orm.Env, templateID, companyID orm.ID, digits int) (map[string]orm.ID, error) {
	src, err := reg.Model("account.account.template")
	if err != nil {
		return nil, err
	}
	dst, err := reg.Model("account.account")
	if err != nil {
		return nil, err
	}
	ids, err := src.Search(ctx, env, orm.Domain{orm.Eq("chart_template_id", templateID)})
	if err != nil {
		return nil, err
	}
	rows, err := src.Read(ctx, env, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[string]orm.ID, len(rows))
	for _, t := range rows {
		typ := t.String("type")
		code := padAccountCode(t.String("code"), typ, digits)
		id, err := dst.Create(ctx, env, orm.Values{
			"code":       code,
			"name":       t.String("name"),
			"company_id": companyID,
			"type":       typ,
			"user_type":  t["user_type"],
			"reconcile":  typ == "receivable" || typ == "payable",
		})
		if err != nil {
			return nil, err
		}
		out[t.String("code")] = id
	}
	return out, nil
}

// copyTaxTemplates returns tax template id -> created tax id.
func copyTaxTemplates(ctx context.Context, reg orm.Registry, env orm.Env, templateID, companyID orm.ID, accounts map[string]orm.ID) (map[orm.ID]orm.ID, error) {
	src, err := reg.Model("account.tax.template")
	if err != nil {
		return nil, err
	}
	dst, err := reg.Model("account.tax")
	if err != nil {
		return nil, err
	}
	ids, err := src.Search(ctx, env, orm.Domain{orm.Eq("chart_template_id", templateID)})
	if err != nil {
		return nil, err
	}
	rows, err := src.Read(ctx, env, ids)
	if err != nil {
		return nil, err
	}

	out := make(map[orm.ID]orm.ID, len(rows))
	for _, t := range rows {
		vals := orm.Values{
			"name":         t.String("name"),
			"description":  t.String("description"),
			"company_id":   companyID,
			"type_tax_use": t.String("type_tax_use"),
			"amount":       t["amount"],
		}
		if acc, ok := accounts[t.String("account_code")]; ok {
			vals["account_collected_id"] = acc
		}
		id, err := dst.Create(ctx, env, vals)
		if err != nil {
			return nil, err
		}
		tid, _ := t.ID("id")
		out[tid] = id
	}
	return out, nil
}

func createBankAccounts(ctx context.Context, reg orm.Registry, env orm.Env, lineIDs []orm.ID, prefix string, companyID orm.ID, digits int) error {
	if len(lineIDs) == 0 {
		return nil
	}
	lines, err := reg.Model("account.bank.accounts.wizard")
	if err != nil {
		return err
	}
	accounts, err := reg.Model("account.account")
	if err != nil {
		return err
	}
	rows, err := lines.Read(ctx, env, lineIDs)
	if err != nil {
		return err
	}
	for i, line := range rows {
		vals := orm.Values{
			"code":        bankAccountCode(prefix, digits, i+1),
			"name":        line.String("acc_name"),
			"company_id":  companyID,
			"type":        "liquidity",
			"currency_id": line["currency_id"],
		}
		userType := "bank"
		if line.String("account_type") == "cash" {
			userType = "cash"
		}
		if typeID, ok, err := searchOne(ctx, reg, env, "account.account.type", orm.Domain{orm.Eq("code", userType)}); err != nil {
			return err
		} else if ok {
			vals["user_type"] = typeID
		}
		if _, err := accounts.Create(ctx, env, vals); err != nil {
			return err
		}
	}
	return nil
}

// padAccountCode right-pads non-view account codes with zeros up to digits.
func padAccountCode(code, typ string, digits int) string {
	if typ == "view" || len(code) >= digits {
		return code
	}
	return code + strings.Repeat("0", digits-len(code))
}

func bankAccountCode(prefix string, digits, n int) string {
	width := digits - len(prefix)
	if width < 1 {
		width = 1
	}
	return fmt.Sprintf("%s%0*d", prefix, width, n)
}
