package plan

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/simonvc/confutil/internal/accountsetup"
	"github.com/simonvc/confutil/internal/confutil"
	"github.com/simonvc/confutil/internal/orm"
)

// Report summarises a plan run.
type Report struct {
	RunID     string       `json:"run_id"`
	CompanyID orm.ID       `json:"company_id"`
	Steps     []StepResult `json:"steps"`
}

// StepResult records what one step did.
type StepResult struct {
	Index   int    `json:"index"`
	Kind    string `json:"kind"`
	Detail  string `json:"detail,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Option configures a Runner.
type Option func(*Runner)

func WithLogger(log zerolog.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithClock is passed through to account setup.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// Runner executes plans against a registry.
type Runner struct {
	reg orm.Registry
	env orm.Env
	log zerolog.Logger
	now func() time.Time
}

// NewRunner returns a Runner acting as env against reg.
func NewRunner(reg orm.Registry, env orm.Env, opts ...Option) *Runner {
	r := &Runner{reg: reg, env: env, log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the plan's steps in order and stops at the first failure.
// The report covers the steps that completed.
func (r *Runner) Run(ctx context.Context, p *Plan) (*Report, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	runID := uuid.Must(uuid.NewV7()).String()
	log := r.log.With().Str("run_id", runID).Logger()

	cfg := confutil.NewConfigurator(r.reg, r.env, confutil.WithLogger(log))
	accounts := accountsetup.New(r.reg, r.env, accountsetup.WithLogger(log), accountsetup.WithClock(r.now))

	company, err := resolve(ctx, cfg.Lookup, p.Company)
	if err != nil {
		return nil, fmt.Errorf("company %s: %w", p.Company, err)
	}
	report := &Report{RunID: runID, CompanyID: company}
	log.Info().Int64("company", company).Int("steps", len(p.Steps)).Msg("plan started")

	for i, step := range p.Steps {
		res := StepResult{Index: i + 1, Kind: step.Kind()}
		stepLog := log.With().Int("step", res.Index).Str("kind", res.Kind).Logger()
		stepLog.Debug().Msg("step started")

		if err := r.runStep(ctx, cfg, accounts, company, step, &res); err != nil {
			stepLog.Error().Err(err).Msg("step failed")
			return report, fmt.Errorf("step %d (%s): %w", res.Index, res.Kind, err)
		}
		report.Steps = append(report.Steps, res)
		stepLog.Info().Bool("skipped", res.Skipped).Str("detail", res.Detail).Msg("step done")
	}
	log.Info().Msg("plan finished")
	return report, nil
}

func (r *Runner) runStep(ctx context.Context, cfg *confutil.Configurator, accounts *accountsetup.Setup, company orm.ID, step Step, res *StepResult) error {
	switch {
	case step.SetupAccounts != nil:
		chart, err := resolve(ctx, cfg.Lookup, step.SetupAccounts.ChartTemplate)
		if err != nil {
			return err
		}
		done, err := accounts.SetupCompanyAccounts(ctx, company, chart, step.SetupAccounts.CodeDigits)
		if err != nil {
			return err
		}
		res.Skipped = !done
		if !done {
			res.Detail = "company already has a chart of accounts"
		}
		return nil

	case step.DefaultTaxes != nil:
		res.Detail = step.DefaultTaxes.Sale + "/" + step.DefaultTaxes.Purchase
		return cfg.SetDefaultTaxes(ctx, company, step.DefaultTaxes.Sale, step.DefaultTaxes.Purchase)

	case step.MultiCurrency != nil:
		res.Detail = step.MultiCurrency.Gain + "/" + step.MultiCurrency.Loss
		return cfg.EnableMultiCurrency(ctx, company, step.MultiCurrency.Gain, step.MultiCurrency.Loss)

	case step.Settings != nil:
		model, err := confutil.ParseSettingsModel(step.Settings.Model)
		if err != nil {
			return err
		}
		scope := confutil.Global()
		if step.Settings.Scope == "company" || (step.Settings.Scope == "" && model == confutil.AccountSettings) {
			scope = confutil.ForCompany(company)
		}
		id, err := cfg.Settings.Apply(ctx, model, scope, orm.NormalizeValues(step.Settings.Values))
		if err != nil {
			return err
		}
		res.Detail = fmt.Sprintf("%s(%d) %s", model, id, scope)
		return nil

	case step.ProductTaxes != nil:
		if step.ProductTaxes.Customer != nil {
			ids, err := taxIDs(ctx, cfg, company, step.ProductTaxes.Customer)
			if err != nil {
				return err
			}
			if err := cfg.SetGlobalDefaultProductCustomerTaxes(ctx, company, ids); err != nil {
				return err
			}
		}
		if step.ProductTaxes.Supplier != nil {
			ids, err := taxIDs(ctx, cfg, company, step.ProductTaxes.Supplier)
			if err != nil {
				return err
			}
			if err := cfg.SetGlobalDefaultProductSupplierTaxes(ctx, company, ids); err != nil {
				return err
			}
		}
		return nil

	case step.DefaultPricelist != nil:
		pricelist, err := resolve(ctx, cfg.Lookup, *step.DefaultPricelist)
		if err != nil {
			return err
		}
		res.Detail = confutil.MakeRef("product.pricelist", pricelist)
		return cfg.SetDefaultCustomerSalePricelist(ctx, company, pricelist)

	case step.UserLevels != nil:
		user, err := resolve(ctx, cfg.Lookup, step.UserLevels.User)
		if err != nil {
			return err
		}
		return cfg.SelectUserLevels(ctx, user, step.UserLevels.Levels)

	case step.SaleUserLevel != nil:
		user, err := resolve(ctx, cfg.Lookup, step.SaleUserLevel.User)
		if err != nil {
			return err
		}
		res.Detail = step.SaleUserLevel.Level
		return cfg.SelectSaleUserLevel(ctx, user, step.SaleUserLevel.Level)

	case step.AccessRights != nil:
		user, err := resolve(ctx, cfg.Lookup, step.AccessRights.User)
		if err != nil {
			return err
		}
		return cfg.SetUserAccessRights(ctx, user, step.AccessRights.Rights)

	case step.ConsolidationAccount != nil:
		ca := step.ConsolidationAccount
		if id, ok, err := cfg.MaybeID(ctx, "account.account", orm.Domain{
			orm.Eq("company_id", company),
			orm.Eq("code", ca.Code),
		}); err != nil {
			return err
		} else if ok {
			res.Skipped = true
			res.Detail = fmt.Sprintf("account %s exists (%d)", ca.Code, id)
			return nil
		}
		children := make([]orm.ID, 0, len(ca.Children))
		for _, code := range ca.Children {
			id, err := cfg.AccountID(ctx, company, code)
			if err != nil {
				return fmt.Errorf("child %s: %w", code, err)
			}
			children = append(children, id)
		}
		id, err := cfg.CreateConsolidationAccount(ctx, company, ca.Code, ca.Name, children)
		if err != nil {
			return err
		}
		res.Detail = fmt.Sprintf("account.account(%d)", id)
		return nil
	}
	return fmt.Errorf("%w: empty step", ErrInvalidPlan)
}

// resolve turns a Ref into a record id.
func resolve(ctx context.Context, l *confutil.Lookup, ref Ref) (orm.ID, error) {
	if id, err := strconv.ParseInt(string(ref), 10, 64); err == nil {
		return id, nil
	}
	return l.XMLIDID(ctx, string(ref))
}

func taxIDs(ctx context.Context, cfg *confutil.Configurator, company orm.ID, codes []string) ([]orm.ID, error) {
	ids := make([]orm.ID, 0, len(codes))
	for _, code := range codes {
		id, err := cfg.ExactlyOneID(ctx, "account.tax", orm.Domain{
			orm.Eq("company_id", company),
			orm.Eq("description", code),
		})
		if err != nil {
			return nil, fmt.Errorf("tax %s: %w", code, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
