package confutil

import (
	"context"
	"fmt"

	"github.com/simonvc/confutil/internal/orm"
)

// SettingsModel names a settings wizard model.
type SettingsModel string

const (
	AccountSettings   SettingsModel = "account.config.settings"
	GeneralSettings   SettingsModel = "base.config.settings"
	PurchaseSettings  SettingsModel = "purchase.config.settings"
	SaleSettings      SettingsModel = "sale.config.settings"
	WarehouseSettings SettingsModel = "stock.config.settings"
)

// SettingsModels lists the known settings wizards.
var SettingsModels = []SettingsModel{
	AccountSettings,
	GeneralSettings,
	PurchaseSettings,
	SaleSettings,
	WarehouseSettings,
}

// ParseSettingsModel accepts a known settings model name.
func ParseSettingsModel(name string) (SettingsModel, error) {
	for _, m := range SettingsModels {
		if string(m) == name {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSettingsModel, name)
}

// Scope selects which settings record an upsert targets: the global one or
// the one belonging to a company.
type Scope struct {
	companyID orm.ID
	scoped    bool
}

// Global is the scope of settings that apply to the whole installation.
func Global() Scope { return Scope{} }

// ForCompany scopes settings to one company.
func ForCompany(id orm.ID) Scope { return Scope{companyID: id, scoped: true} }

// Company returns the scoping company, if any.
func (s Scope) Company() (orm.ID, bool) { return s.companyID, s.scoped }

func (s Scope) String() string {
	if !s.scoped {
		return "global"
	}
	return fmt.Sprintf("company %d", s.companyID)
}

func (s Scope) domain() orm.Domain {
	if !s.scoped {
		return nil
	}
	return orm.Domain{orm.Eq("company_id", s.companyID)}
}

// Settings finds or creates the settings record of a scope, applies changes
// to it and executes it.
type Settings struct {
	lookup *Lookup
}

// NewSettings returns a Settings upserter resolving records through l.
func NewSettings(l *Lookup) *Settings {
	return &Settings{lookup: l}
}

// Apply upserts changes into the scope's record of model and executes it.
// A new record starts from the model defaults. Existing records only have
// the named fields changed. It returns the record id. Registries that
// implement orm.Locker serialize concurrent calls for the same scope.
func (s *Settings) Apply(ctx context.Context, model SettingsModel, scope Scope, changes orm.Values) (orm.ID, error) {
	name := string(model)
	m, err := s.lookup.Model(name)
	if err != nil {
		return 0, err
	}
	// find-or-create must not interleave for one scope
	if l, ok := s.lookup.Registry().(orm.Locker); ok {
		unlock := l.Lock(name + "@" + scope.String())
		defer unlock()
	}
	id, found, err := s.lookup.MaybeID(ctx, name, scope.domain())
	if err != nil {
		return 0, err
	}

	if !found {
		fields, err := m.FieldsGet(ctx, s.lookup.Env())
		if err != nil {
			return 0, err
		}
		names := make([]string, 0, len(fields))
		for f := range fields {
			names = append(names, f)
		}
		data, err := m.DefaultGet(ctx, s.lookup.Env(), names)
		if err != nil {
			return 0, err
		}
		data = data.Clone().Merge(changes)
		if company, ok := scope.Company(); ok {
			data["company_id"] = company
		}
		if id, err = m.Create(ctx, s.lookup.Env(), data); err != nil {
			return 0, err
		}
		s.lookup.log.Debug().Str("model", name).Stringer("scope", scope).Int64("id", id).Msg("settings created")
	} else {
		if err := m.Write(ctx, s.lookup.Env(), []orm.ID{id}, changes); err != nil {
			return 0, err
		}
		s.lookup.log.Debug().Str("model", name).Stringer("scope", scope).Int64("id", id).Msg("settings updated")
	}

	if err := m.Execute(ctx, s.lookup.Env(), []orm.ID{id}); err != nil {
		return 0, fmt.Errorf("execute %s(%d): %w", name, id, err)
	}
	return id, nil
}

// Current reads the scope's settings record of model, if one exists.
func (s *Settings) Current(ctx context.Context, model SettingsModel, scope Scope) (orm.Values, bool, error) {
	id, found, err := s.lookup.MaybeID(ctx, string(model), scope.domain())
	if err != nil || !found {
		return nil, false, err
	}
	m, err := s.lookup.Model(string(model))
	if err != nil {
		return nil, false, err
	}
	rec, err := orm.ReadOne(ctx, m, s.lookup.Env(), id)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// SetAccountSettings applies accounting settings to a company. The first
// call for a company should carry date_start and date_stop for its first
// fiscal year.
func (s *Settings) SetAccountSettings(ctx context.Context, companyID orm.ID, changes orm.Values) (orm.ID, error) {
	return s.Apply(ctx, AccountSettings, ForCompany(companyID), changes)
}

// SetGeneralSettings applies installation-wide general settings.
func (s *Settings) SetGeneralSettings(ctx context.Context, changes orm.Values) (orm.ID, error) {
	return s.Apply(ctx, GeneralSettings, Global(), changes)
}

func (s *Settings) SetPurchasingSettings(ctx context.Context, changes orm.Values) (orm.ID, error) {
	return s.Apply(ctx, PurchaseSettings, Global(), changes)
}

func (s *Settings) SetSaleSettings(ctx context.Context, changes orm.Values) (orm.ID, error) {
	return s.Apply(ctx, SaleSettings, Global(), changes)
}

func (s *Settings) SetWarehouseSettings(ctx context.Context, changes orm.Values) (orm.ID, error) {
	return s.Apply(ctx, WarehouseSettings, Global(), changes)
}
