// Package plan reads install plans: YAML documents listing the setup steps
// to run against one company, in order.
//
//	company: base.main_company
//	steps:
//	  - setup_accounts: {chart_template: l10n_ifrs.chart_template_ifrs}
//	  - default_taxes: {sale: ST1, purchase: PT1}
//	  - sale_user_level: {user: base.user_root, level: See all Leads}
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/simonvc/confutil/internal/confutil"
)

var ErrInvalidPlan = errors.New("invalid plan")

// Plan is a parsed install plan.
type Plan struct {
	Company Ref    `yaml:"company"`
	Steps   []Step `yaml:"steps"`
}

// Ref names a record either by numeric id or by "module.name" XMLID.
type Ref string

// Step holds exactly one action.
type Step struct {
	SetupAccounts        *SetupAccounts        `yaml:"setup_accounts,omitempty"`
	DefaultTaxes         *DefaultTaxes         `yaml:"default_taxes,omitempty"`
	MultiCurrency        *MultiCurrency        `yaml:"multi_currency,omitempty"`
	Settings             *Settings             `yaml:"settings,omitempty"`
	ProductTaxes         *ProductTaxes         `yaml:"product_taxes,omitempty"`
	DefaultPricelist     *Ref                  `yaml:"default_pricelist,omitempty"`
	UserLevels           *UserLevels           `yaml:"user_levels,omitempty"`
	SaleUserLevel        *SaleUserLevel        `yaml:"sale_user_level,omitempty"`
	AccessRights         *AccessRights         `yaml:"access_rights,omitempty"`
	ConsolidationAccount *ConsolidationAccount `yaml:"consolidation_account,omitempty"`
}

type SetupAccounts struct {
	ChartTemplate Ref `yaml:"chart_template"`
	CodeDigits    int `yaml:"code_digits,omitempty"`
}

// DefaultTaxes names taxes by code (account.tax description).
type DefaultTaxes struct {
	Sale     string `yaml:"sale"`
	Purchase string `yaml:"purchase"`
}

// MultiCurrency names the exchange gain and loss accounts by code.
type MultiCurrency struct {
	Gain string `yaml:"gain"`
	Loss string `yaml:"loss"`
}

// Settings applies values to a settings wizard. Scope is "company" or
// "global"; it defaults to company for accounting settings and global for
// the rest.
type Settings struct {
	Model  string         `yaml:"model"`
	Scope  string         `yaml:"scope,omitempty"`
	Values map[string]any `yaml:"values"`
}

// ProductTaxes sets the default product taxes by tax code.
type ProductTaxes struct {
	Customer []string `yaml:"customer,omitempty"`
	Supplier []string `yaml:"supplier,omitempty"`
}

type UserLevels struct {
	User   Ref               `yaml:"user"`
	Levels map[string]string `yaml:"levels"`
}

type SaleUserLevel struct {
	User  Ref    `yaml:"user"`
	Level string `yaml:"level"`
}

type AccessRights struct {
	User   Ref                    `yaml:"user"`
	Rights []confutil.AccessRight `yaml:"rights"`
}

// ConsolidationAccount lists its children by account code.
type ConsolidationAccount struct {
	Code     string   `yaml:"code"`
	Name     string   `yaml:"name"`
	Children []string `yaml:"children"`
}

// Kind returns the name of the step's action, or "" if none is set.
func (s Step) Kind() string {
	kinds := s.kinds()
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

func (s Step) kinds() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(s.SetupAccounts != nil, "setup_accounts")
	add(s.DefaultTaxes != nil, "default_taxes")
	add(s.MultiCurrency != nil, "multi_currency")
	add(s.Settings != nil, "settings")
	add(s.ProductTaxes != nil, "product_taxes")
	add(s.DefaultPricelist != nil, "default_pricelist")
	add(s.UserLevels != nil, "user_levels")
	add(s.SaleUserLevel != nil, "sale_user_level")
	add(s.AccessRights != nil, "access_rights")
	add(s.ConsolidationAccount != nil, "consolidation_account")
	return out
}

// Parse decodes and validates a plan. Unknown keys are rejected.
func Parse(r io.Reader) (*Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var p Plan
	if err := dec.Decode(&p); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty document", ErrInvalidPlan)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte) (*Plan, error) {
	return Parse(bytes.NewReader(data))
}

// Load reads a plan file.
func Load(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Validate checks the plan's shape without touching a store.
func (p *Plan) Validate() error {
	var problems []string
	if p.Company == "" {
		problems = append(problems, "company is required")
	}
	if len(p.Steps) == 0 {
		problems = append(problems, "no steps")
	}
	for i, s := range p.Steps {
		switch kinds := s.kinds(); len(kinds) {
		case 0:
			problems = append(problems, fmt.Sprintf("step %d: no action", i+1))
		case 1:
			if msg := s.check(); msg != "" {
				problems = append(problems, fmt.Sprintf("step %d (%s): %s", i+1, kinds[0], msg))
			}
		default:
			problems = append(problems, fmt.Sprintf("step %d: several actions (%s)", i+1, strings.Join(kinds, ", ")))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPlan, strings.Join(problems, "; "))
	}
	return nil
}

func (s Step) check() string {
	switch {
	case s.SetupAccounts != nil && s.SetupAccounts.ChartTemplate == "":
		return "chart_template is required"
	case s.DefaultTaxes != nil && (s.DefaultTaxes.Sale == "" || s.DefaultTaxes.Purchase == ""):
		return "sale and purchase are required"
	case s.MultiCurrency != nil && (s.MultiCurrency.Gain == "" || s.MultiCurrency.Loss == ""):
		return "gain and loss are required"
	case s.Settings != nil:
		if _, err := confutil.ParseSettingsModel(s.Settings.Model); err != nil {
			return err.Error()
		}
		if sc := s.Settings.Scope; sc != "" && sc != "company" && sc != "global" {
			return fmt.Sprintf("scope %q is neither company nor global", sc)
		}
	case s.DefaultPricelist != nil && *s.DefaultPricelist == "":
		return "pricelist is required"
	case s.UserLevels != nil && s.UserLevels.User == "":
		return "user is required"
	case s.SaleUserLevel != nil && s.SaleUserLevel.User == "":
		return "user is required"
	case s.AccessRights != nil && s.AccessRights.User == "":
		return "user is required"
	case s.ConsolidationAccount != nil && (s.ConsolidationAccount.Code == "" || s.ConsolidationAccount.Name == ""):
		return "code and name are required"
	}
	return ""
}
