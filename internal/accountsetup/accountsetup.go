// Package accountsetup installs a chart of accounts into a company and opens
// its first fiscal year.
//
// Most callers want SetupCompanyAccounts. For finer control call
// SetupChartOfAccounts and CreateFiscalYear directly, checking
// CompanyConfigured first since the chart wizard does not.
package accountsetup

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"github.com/simonvc/confutil/internal/orm"
)

// FiscalYear describes a fiscal year to open.
type FiscalYear struct {
	CompanyID orm.ID
	Name      string
	Code      string
	Start     time.Time
	Stop      time.Time
}

// Option configures a Setup.
type Option func(*Setup)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Setup) { s.log = log }
}

// WithClock replaces time.Now when picking the default fiscal year.
func WithClock(now func() time.Time) Option {
	return func(s *Setup) { s.now = now }
}

// Setup drives the accounting installers of a registry.
type Setup struct {
	reg orm.Registry
	env orm.Env
	log zerolog.Logger
	now func() time.Time
}

// New returns a Setup acting as env against reg.
func New(reg orm.Registry, env orm.Env, opts ...Option) *Setup {
	s := &Setup{reg: reg, env: env.Clone(), log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetupCompanyAccounts installs the chart template into the company and
// opens a fiscal year covering the current calendar year. A company that
// already has accounts is left alone. codeDigits of 0 keeps the template's
// setting. It reports whether anything was installed.
func (s *Setup) SetupCompanyAccounts(ctx context.Context, companyID, chartTemplateID orm.ID, codeDigits int) (bool, error) {
	configured, err := s.CompanyConfigured(ctx, companyID)
	if err != nil {
		return false, err
	}
	if configured {
		s.log.Info().Int64("company", companyID).Msg("company already has a chart of accounts")
		return false, nil
	}

	if err := s.SetupChartOfAccounts(ctx, companyID, chartTemplateID, codeDigits); err != nil {
		return false, err
	}

	year := s.now().Year()
	name := fmt.Sprintf("%d", year)
	if _, err := s.CreateFiscalYear(ctx, FiscalYear{
		CompanyID: companyID,
		Name:      name,
		Code:      "FY" + name,
		Start:     time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		Stop:      time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}); err != nil {
		return false, err
	}
	s.log.Info().Int64("company", companyID).Int("year", year).Msg("company accounts set up")
	return true, nil
}

// CompanyConfigured reports whether the company has a chart of accounts.
func (s *Setup) CompanyConfigured(ctx context.Context, companyID orm.ID) (bool, error) {
	ids, err := s.UnconfiguredCompanyIDs(ctx)
	if err != nil {
		return false, err
	}
	return !slices.Contains(ids, companyID), nil
}

// UnconfiguredCompanyIDs lists the companies without a chart of accounts.
func (s *Setup) UnconfiguredCompanyIDs(ctx context.Context) ([]orm.ID, error) {
	installer, err := s.reg.Model("account.installer")
	if err != nil {
		return nil, err
	}
	res, err := installer.Call(ctx, s.env.Clone(), "get_unconfigured_cmp", nil, nil)
	if err != nil {
		return nil, err
	}
	ids, ok := orm.AsIDs(res)
	if !ok {
		return nil, fmt.Errorf("get_unconfigured_cmp returned %T", res)
	}
	return ids, nil
}

// SetupChartOfAccounts runs the chart wizard for the company. It does not
// check whether the company already has accounts.
func (s *Setup) SetupChartOfAccounts(ctx context.Context, companyID, chartTemplateID orm.ID, codeDigits int) error {
	wizard, err := s.reg.Model("wizard.multi.charts.accounts")
	if err != nil {
		return err
	}
	defaults, err := wizard.DefaultGet(ctx, s.env.Clone(), []string{"bank_accounts_id", "currency_id"})
	if err != nil {
		return err
	}

	data := defaults.Clone()
	data["bank_accounts_id"] = bankAccountCommands(defaults["bank_accounts_id"])
	data["chart_template_id"] = chartTemplateID
	data["company_id"] = companyID

	res, err := wizard.Call(ctx, s.env.Clone(), "onchange_chart_template_id", nil, orm.Values{"chart_template_id": chartTemplateID})
	if err != nil {
		return err
	}
	if onchange, ok := res.(orm.Values); ok {
		if value, ok := onchange["value"].(orm.Values); ok {
			data.Merge(value)
		}
	}
	if codeDigits > 0 {
		data["code_digits"] = codeDigits
	}

	id, err := wizard.Create(ctx, s.env.Clone(), data)
	if err != nil {
		return fmt.Errorf("chart wizard: %w", err)
	}
	if err := wizard.Execute(ctx, s.env.Clone(), []orm.ID{id}); err != nil {
		return fmt.Errorf("install chart %d into company %d: %w", chartTemplateID, companyID, err)
	}
	s.log.Debug().Int64("company", companyID).Int64("chart_template", chartTemplateID).Msg("chart of accounts installed")
	return nil
}

// CreateFiscalYear creates the fiscal year with its periods and returns its
// id.
func (s *Setup) CreateFiscalYear(ctx context.Context, fy FiscalYear) (orm.ID, error) {
	years, err := s.reg.Model("account.fiscalyear")
	if err != nil {
		return 0, err
	}
	data, err := years.DefaultGet(ctx, s.env.Clone(), []string{"state", "company_id"})
	if err != nil {
		return 0, err
	}
	data = data.Clone().Merge(orm.Values{
		"company_id": fy.CompanyID,
		"name":       fy.Name,
		"code":       fy.Code,
		"date_start": fy.Start,
		"date_stop":  fy.Stop,
	})
	id, err := years.Create(ctx, s.env.Clone(), data)
	if err != nil {
		return 0, fmt.Errorf("fiscal year %s: %w", fy.Code, err)
	}
	if _, err := years.Call(ctx, s.env.Clone(), "create_period", []orm.ID{id}, nil); err != nil {
		return 0, fmt.Errorf("fiscal year %s periods: %w", fy.Code, err)
	}
	return id, nil
}

// bankAccountCommands turns the wizard's default bank lines into create
// commands.
func bankAccountCommands(lines any) []orm.Command {
	var cmds []orm.Command
	switch x := lines.(type) {
	case []orm.Values:
		for _, line := range x {
			cmds = append(cmds, orm.Create(line))
		}
	case []any:
		for _, line := range x {
			if v, ok := orm.Normalize(line).(orm.Values); ok {
				cmds = append(cmds, orm.Create(v))
			}
		}
	}
	return cmds
}
