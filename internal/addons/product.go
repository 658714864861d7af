package addons

import "github.com/simonvc/confutil/internal/orm"

func productSpecs() []orm.ModelSpec {
	return []orm.ModelSpec{
		{
			Name:        "product.template",
			Description: "Product Template",
			Fields: []orm.Field{
				{Name: "name", String: "Name", Type: orm.TypeChar, Required: true},
				{Name: "company_id", String: "Company", Type: orm.TypeMany2one, Relation: "res.company"},
				{Name: "list_price", String: "Sale Price", Type: orm.TypeFloat, Default: 1.0},
				{Name: "taxes_id", String: "Customer Taxes", Type: orm.TypeMany2many, Relation: "account.tax"},
				{Name: "supplier_taxes_id", String: "Supplier Taxes", Type: orm.TypeMany2many, Relation: "account.tax"},
			},
		},
		{
			Name:        "product.pricelist",
			Description: "Pricelist",
			Fields: []orm.Field{
				{Name: "name", String: "Pricelist Name", Type: orm.TypeChar, Required: true},
				{Name: "type", String: "Pricelist Type", Type: orm.TypeSelection, Selection: []string{"sale", "purchase"}, Default: "sale"},
				{Name: "currency_id", String: "Currency", Type: orm.TypeChar, Default: "USD"},
				{Name: "company_id", String: "Company", Type: orm.TypeMany2one, Relation: "res.company"},
			},
		},
	}
}
