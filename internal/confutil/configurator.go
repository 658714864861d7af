package confutil

import (
	"context"
	"fmt"

	"github.com/simonvc/confutil/internal/orm"
)

// Configurator bundles the lookup and settings helpers with the setup steps
// built on top of them.
type Configurator struct {
	*Lookup
	Settings *Settings
}

// NewConfigurator returns a Configurator acting as env against reg.
func NewConfigurator(reg orm.Registry, env orm.Env, opts ...Option) *Configurator {
	l := NewLookup(reg, env, opts...)
	return &Configurator{Lookup: l, Settings: NewSettings(l)}
}

// MakeRef renders a reference to a record, e.g. "product.pricelist,3".
func MakeRef(model string, id orm.ID) string {
	return orm.Ref{Model: model, ID: id}.String()
}

// SetDefaultTaxes makes the company's taxes with the given codes the
// default sale and purchase taxes.
func (c *Configurator) SetDefaultTaxes(ctx context.Context, companyID orm.ID, salesCode, purchaseCode string) error {
	// description holds the tax code
	saleTax, err := c.ExactlyOneID(ctx, "account.tax", orm.Domain{
		orm.Eq("company_id", companyID),
		orm.Eq("description", salesCode),
	})
	if err != nil {
		return fmt.Errorf("sales tax %s: %w", salesCode, err)
	}
	purchaseTax, err := c.ExactlyOneID(ctx, "account.tax", orm.Domain{
		orm.Eq("company_id", companyID),
		orm.Eq("description", purchaseCode),
	})
	if err != nil {
		return fmt.Errorf("purchase tax %s: %w", purchaseCode, err)
	}

	_, err = c.Settings.SetAccountSettings(ctx, companyID, orm.Values{
		"default_sale_tax":     saleTax,
		"default_purchase_tax": purchaseTax,
	})
	return err
}

// EnableMultiCurrency turns on multi-currency for the company with the
// given exchange gain and loss accounts.
func (c *Configurator) EnableMultiCurrency(ctx context.Context, companyID orm.ID, gainCode, lossCode string) error {
	c.log.Debug().Int64("company", companyID).Str("code", gainCode).Msg("multi currency: gain account")
	gain, err := c.AccountID(ctx, companyID, gainCode)
	if err != nil {
		return fmt.Errorf("gain account %s: %w", gainCode, err)
	}

	c.log.Debug().Int64("company", companyID).Str("code", lossCode).Msg("multi currency: loss account")
	loss, err := c.AccountID(ctx, companyID, lossCode)
	if err != nil {
		return fmt.Errorf("loss account %s: %w", lossCode, err)
	}

	c.log.Debug().Int64("company", companyID).Msg("multi currency: account settings")
	_, err = c.Settings.SetAccountSettings(ctx, companyID, orm.Values{
		"group_multi_currency":                 true,
		"income_currency_exchange_account_id":  gain,
		"expense_currency_exchange_account_id": loss,
	})
	return err
}

// SetGlobalDefaultProductCustomerTaxes sets the sale taxes new products get
// in the company. Pass one tax per company in a multi-company setup.
func (c *Configurator) SetGlobalDefaultProductCustomerTaxes(ctx context.Context, companyID orm.ID, taxIDs []orm.ID) error {
	return c.setProductTaxDefault(ctx, companyID, "taxes_id", taxIDs)
}

// SetGlobalDefaultProductSupplierTaxes sets the purchase taxes new products
// get in the company.
func (c *Configurator) SetGlobalDefaultProductSupplierTaxes(ctx context.Context, companyID orm.ID, taxIDs []orm.ID) error {
	return c.setProductTaxDefault(ctx, companyID, "supplier_taxes_id", taxIDs)
}

func (c *Configurator) setProductTaxDefault(ctx context.Context, companyID orm.ID, field string, taxIDs []orm.ID) error {
	values, err := c.Model("ir.values")
	if err != nil {
		return err
	}
	if taxIDs == nil {
		taxIDs = []orm.ID{}
	}
	_, err = values.Call(ctx, c.Env(), "set_default", nil, orm.Values{
		"model":         "product.template",
		"field_name":    field,
		"for_all_users": true,
		"company_id":    companyID,
		"value":         taxIDs,
	})
	return err
}

// FieldID returns the ir.model.fields record of model.field.
func (c *Configurator) FieldID(ctx context.Context, model, field string) (orm.ID, error) {
	return c.ExactlyOneID(ctx, "ir.model.fields", orm.Domain{
		orm.Eq("model", model),
		orm.Eq("name", field),
	})
}

// SetDefaultCustomerSalePricelist replaces the company-wide default sale
// pricelist for customers.
func (c *Configurator) SetDefaultCustomerSalePricelist(ctx context.Context, companyID, pricelistID orm.ID) error {
	fieldID, err := c.FieldID(ctx, "res.partner", "property_product_pricelist")
	if err != nil {
		return err
	}
	props, err := c.Model("ir.property")
	if err != nil {
		return err
	}
	existing, err := props.Search(ctx, c.Env(), orm.Domain{
		orm.Eq("company_id", companyID),
		orm.Eq("fields_id", fieldID),
		orm.Eq("res_id", false),
	})
	if err != nil {
		return err
	}
	if err := props.Unlink(ctx, c.Env(), existing); err != nil {
		return err
	}
	_, err = props.Create(ctx, c.Env(), orm.Values{
		"name":            "property_product_pricelist",
		"company_id":      companyID,
		"fields_id":       fieldID,
		"res_id":          false,
		"type":            "many2one",
		"value_reference": MakeRef("product.pricelist", pricelistID),
	})
	return err
}

// CreateConsolidationAccount creates a consolidation account owned by the
// company that consolidates children, and returns its id.
func (c *Configurator) CreateConsolidationAccount(ctx context.Context, companyID orm.ID, code, name string, children []orm.ID) (orm.ID, error) {
	viewType, err := c.ExactlyOneID(ctx, "account.account.type", orm.Domain{orm.Eq("name", "Root/View")})
	if err != nil {
		return 0, fmt.Errorf("view account type: %w", err)
	}
	links := make([]orm.Command, 0, len(children))
	for _, child := range children {
		links = append(links, orm.Link(child))
	}
	accounts, err := c.Model("account.account")
	if err != nil {
		return 0, err
	}
	return accounts.Create(ctx, c.Env(), orm.Values{
		"code":             code,
		"name":             name,
		"company_id":       companyID,
		"type":             "consolidation",
		"user_type":        viewType,
		"child_consol_ids": links,
	})
}
