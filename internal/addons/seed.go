package addons

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/simonvc/confutil/internal/orm"
)

// ChartEntry is one account of the bundled IFRS chart template.
type ChartEntry struct {
	Code     string
	Name     string
	Type     string // internal type: view, other, receivable, payable, liquidity
	UserType string // account.account.type code
}

// IFRSChart is the minimal IFRS chart of accounts seeded as the
// l10n_ifrs.chart_template_ifrs chart template.
var IFRSChart = []ChartEntry{
	{Code: "0", Name: "IFRS Chart of Accounts", Type: "view", UserType: "view"},

	// Assets (1xxx)
	{Code: "1010", Name: "Nostro Accounts", Type: "liquidity", UserType: "bank"},
	{Code: "1020", Name: "Accounts Receivable", Type: "receivable", UserType: "receivable"},
	{Code: "1030", Name: "Inventory", UserType: "asset"},
	{Code: "1040", Name: "Prepaid Expenses", UserType: "asset"},
	{Code: "1050", Name: "Property, Plant & Equipment", UserType: "asset"},
	{Code: "1060", Name: "Restricted Cash / Regulatory Reserves", UserType: "asset"},
	{Code: "1096", Name: "Tax Paid", UserType: "asset"},
	{Code: "1097", Name: "FX Conversion", UserType: "asset"},
	{Code: "1099", Name: "Suspense Account", UserType: "asset"},

	// Liabilities (2xxx)
	{Code: "2010", Name: "Vostro Accounts", UserType: "liability"},
	{Code: "2020", Name: "Accounts Payable", Type: "payable", UserType: "payable"},
	{Code: "2030", Name: "Accrued Expenses", UserType: "liability"},
	{Code: "2040", Name: "Loans Payable", UserType: "liability"},
	{Code: "2098", Name: "Tax Collected", UserType: "liability"},

	// Equity (3xxx)
	{Code: "3010", Name: "Retained Earnings", UserType: "equity"},
	{Code: "3020", Name: "Common Stock", UserType: "equity"},

	// Revenue (4xxx)
	{Code: "4010", Name: "Service Revenue", UserType: "income"},
	{Code: "4020", Name: "Interest Income", UserType: "income"},
	{Code: "4095", Name: "Foreign Exchange Gain", UserType: "income"},

	// Expenses (5xxx)
	{Code: "5010", Name: "Operating Expenses", UserType: "expense"},
	{Code: "5020", Name: "Cost of Goods Sold", UserType: "expense"},
	{Code: "5030", Name: "Salaries and Wages", UserType: "expense"},
	{Code: "5040", Name: "Depreciation", UserType: "expense"},
	{Code: "5095", Name: "Foreign Exchange Loss", UserType: "expense"},
}

type taxTemplate struct {
	xmlid, name, code, use, account string
	amount                          float64
}

var ifrsTaxes = []taxTemplate{
	{"l10n_ifrs.tax_st1", "Sales Tax 15%", "ST1", "sale", "2098", 0.15},
	{"l10n_ifrs.tax_pt1", "Purchase Tax 15%", "PT1", "purchase", "1096", 0.15},
	{"l10n_ifrs.tax_st0", "Sales Tax 0%", "ST0", "sale", "2098", 0},
	{"l10n_ifrs.tax_pt0", "Purchase Tax 0%", "PT0", "purchase", "1096", 0},
}

var accountTypeSeeds = []struct{ code, name, report string }{
	{"view", "Root/View", "none"},
	{"receivable", "Receivable", "asset"},
	{"payable", "Payable", "liability"},
	{"bank", "Bank", "asset"},
	{"cash", "Cash", "asset"},
	{"asset", "Asset", "asset"},
	{"liability", "Liability", "liability"},
	{"equity", "Equity", "liability"},
	{"income", "Income", "income"},
	{"expense", "Expense", "expense"},
}

type groupSeed struct {
	xmlid, name, crmName string
}

type categorySeed struct {
	xmlid, name string
	app         bool
	groups      []groupSeed
}

var categorySeeds = []categorySeed{
	{"base.module_category_sales_management", "Sales", true, []groupSeed{
		{"base.group_sale_salesman", "See Own Leads", "User: Own Leads Only"},
		{"base.group_sale_salesman_all_leads", "See all Leads", "User: All Leads"},
		{"base.group_sale_manager", "Manager", ""},
	}},
	{"base.module_category_accounting_and_finance", "Accounting & Finance", true, []groupSeed{
		{"account.group_account_invoice", "Invoicing & Payments", ""},
		{"account.group_account_user", "Accountant", ""},
		{"account.group_account_manager", "Financial Manager", ""},
	}},
	{"base.module_category_purchase_management", "Purchases", true, []groupSeed{
		{"purchase.group_purchase_user", "User", ""},
		{"purchase.group_purchase_manager", "Manager", ""},
	}},
	{"base.module_category_warehouse_management", "Warehouse", true, []groupSeed{
		{"stock.group_stock_user", "User", ""},
		{"stock.group_stock_manager", "Manager", ""},
	}},
	{"base.module_category_human_resources", "Human Resources", true, []groupSeed{
		{"base.group_user", "Employee", ""},
	}},
	{"base.module_category_administration", "Administration", true, []groupSeed{
		{"base.group_erp_manager", "Access Rights", ""},
		{"base.group_system", "Settings", ""},
	}},
	{"base.module_category_hidden", "Technical Settings", false, []groupSeed{
		{"base.group_multi_currency", "Multi Currencies", ""},
		{"base.group_multi_company", "Multi Companies", ""},
		{"base.group_no_one", "Technical Features", ""},
	}},
	{"base.module_category_usability", "Usability", false, []groupSeed{
		{"product.group_uom", "Manage Multiple Units of Measure", ""},
		{"product.group_sale_pricelist", "Sales Pricelists", ""},
	}},
}

var adminGroups = []string{
	"base.group_user",
	"base.group_sale_manager",
	"account.group_account_manager",
	"purchase.group_purchase_manager",
	"stock.group_stock_manager",
	"base.group_erp_manager",
	"base.group_system",
}

func seed(ctx context.Context, h Host, env orm.Env, o options) error {
	steps := []struct {
		name string
		fn   func(context.Context, Host, orm.Env, options) error
	}{
		{"database uuid", seedDatabaseUUID},
		{"company", seedCompany},
		{"groups", seedGroups},
		{"admin user", seedAdmin},
		{"account types", seedAccountTypes},
		{"chart template", seedChartTemplate},
		{"pricelist", seedPricelist},
		{"model fields", seedModelFields},
	}
	for _, s := range steps {
		if err := s.fn(ctx, h, env, o); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func seedDatabaseUUID(ctx context.Context, h Host, env orm.Env, _ options) error {
	params, err := h.Model("ir.config_parameter")
	if err != nil {
		return err
	}
	current, err := params.Call(ctx, env, "get_param", nil, orm.Values{"key": "database.uuid"})
	if err != nil || current != nil {
		return err
	}
	_, err = params.Call(ctx, env, "set_param", nil, orm.Values{
		"key":   "database.uuid",
		"value": uuid.Must(uuid.NewV7()).String(),
	})
	return err
}

func seedCompany(ctx context.Context, h Host, env orm.Env, _ options) error {
	company, err := ensure(ctx, h, env, "base.main_company", "res.company", orm.Values{
		"name":        "YourCompany",
		"currency_id": "USD",
	})
	if err != nil {
		return err
	}
	_, err = ensure(ctx, h, env, "base.main_partner", "res.partner", orm.Values{
		"name":       "YourCompany",
		"company_id": company,
		"customer":   false,
	})
	return err
}

func seedGroups(ctx context.Context, h Host, env orm.Env, o options) error {
	for i, cat := range categorySeeds {
		catID, err := ensure(ctx, h, env, cat.xmlid, "ir.module.category", orm.Values{
			"name":           cat.name,
			"sequence":       i + 1,
			"is_application": cat.app,
		})
		if err != nil {
			return err
		}
		for _, g := range cat.groups {
			name := g.name
			if o.crm && g.crmName != "" {
				name = g.crmName
			}
			if _, err := ensure(ctx, h, env, g.xmlid, "res.groups", orm.Values{
				"name":        name,
				"category_id": catID,
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

func seedAdmin(ctx context.Context, h Host, env orm.Env, _ options) error {
	company, err := xmlidID(ctx, h, env, "base.main_company")
	if err != nil {
		return err
	}
	groups := make([]orm.ID, 0, len(adminGroups))
	for _, xmlid := range adminGroups {
		id, err := xmlidID(ctx, h, env, xmlid)
		if err != nil {
			return err
		}
		groups = append(groups, id)
	}
	_, err = ensure(ctx, h, env, "base.user_root", "res.users", orm.Values{
		"name":       "Administrator",
		"login":      "admin",
		"company_id": company,
		"groups_id":  groups,
	})
	return err
}

func seedAccountTypes(ctx context.Context, h Host, env orm.Env, _ options) error {
	for _, t := range accountTypeSeeds {
		if _, err := ensure(ctx, h, env, "account.data_account_type_"+t.code, "account.account.type", orm.Values{
			"name":        t.name,
			"code":        t.code,
			"report_type": t.report,
		}); err != nil {
			return err
		}
	}
	return nil
}

func seedChartTemplate(ctx context.Context, h Host, env orm.Env, _ options) error {
	chart, err := ensure(ctx, h, env, "l10n_ifrs.chart_template_ifrs", "account.chart.template", orm.Values{
		"name":                     "IFRS Minimal Chart of Accounts",
		"code_digits":              4,
		"currency_id":              "USD",
		"bank_account_code_prefix": "101",
	})
	if err != nil {
		return err
	}
	for _, e := range IFRSChart {
		userType, err := xmlidID(ctx, h, env, "account.data_account_type_"+e.UserType)
		if err != nil {
			return err
		}
		typ := e.Type
		if typ == "" {
			typ = "other"
		}
		if _, err := ensure(ctx, h, env, "l10n_ifrs.account_"+e.Code, "account.account.template", orm.Values{
			"code":              e.Code,
			"name":              e.Name,
			"type":              typ,
			"user_type":         userType,
			"chart_template_id": chart,
		}); err != nil {
			return err
		}
	}
	for _, t := range ifrsTaxes {
		if _, err := ensure(ctx, h, env, t.xmlid, "account.tax.template", orm.Values{
			"name":              t.name,
			"description":       t.code,
			"type_tax_use":      t.use,
			"amount":            t.amount,
			"account_code":      t.account,
			"chart_template_id": chart,
		}); err != nil {
			return err
		}
	}
	return nil
}

func seedPricelist(ctx context.Context, h Host, env orm.Env, _ options) error {
	company, err := xmlidID(ctx, h, env, "base.main_company")
	if err != nil {
		return err
	}
	_, err = ensure(ctx, h, env, "product.list0", "product.pricelist", orm.Values{
		"name":        "Public Pricelist",
		"type":        "sale",
		"currency_id": "USD",
		"company_id":  company,
	})
	return err
}

// seedModelFields mirrors every declared field into ir.model.fields.
func seedModelFields(ctx context.Context, h Host, env orm.Env, _ options) error {
	imf, err := h.Model("ir.model.fields")
	if err != nil {
		return err
	}
	ids, err := imf.Search(ctx, env, nil)
	if err != nil {
		return err
	}
	rows, err := imf.Read(ctx, env, ids, "model", "name")
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(rows))
	for _, r := range rows {
		known[r.String("model")+"."+r.String("name")] = true
	}

	for _, spec := range Specs() {
		for _, f := range spec.Fields {
			if known[spec.Name+"."+f.Name] {
				continue
			}
			vals := orm.Values{
				"model":             spec.Name,
				"name":              f.Name,
				"field_description": f.String,
				"ttype":             string(f.Type),
			}
			if f.Relation != "" {
				vals["relation"] = f.Relation
			}
			if _, err := imf.Create(ctx, env, vals); err != nil {
				return err
			}
		}
	}
	return nil
}

func xmlidID(ctx context.Context, reg orm.Registry, env orm.Env, xmlid string) (orm.ID, error) {
	module, name, err := SplitXMLID(xmlid)
	if err != nil {
		return 0, err
	}
	ref, err := ResolveXMLID(ctx, reg, env, module, name)
	if err != nil {
		return 0, err
	}
	return ref.ID, nil
}
