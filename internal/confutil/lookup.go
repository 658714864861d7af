// Package confutil holds the helpers used to configure an installation after
// its modules are loaded: exactly-one record lookups, the settings wizard
// upsert, and the setup steps built on those two (taxes, currencies,
// pricelists, user levels, consolidation accounts).
package confutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/simonvc/confutil/internal/orm"
)

// Option configures a Lookup or Configurator.
type Option func(*Lookup)

// WithLogger sets the logger used for debug output.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Lookup) { l.log = log }
}

// Lookup resolves records against a registry under a fixed operator
// identity. Every store call gets its own copy of the context blob.
type Lookup struct {
	reg orm.Registry
	env orm.Env
	log zerolog.Logger
}

// NewLookup returns a Lookup acting as env against reg.
func NewLookup(reg orm.Registry, env orm.Env, opts ...Option) *Lookup {
	l := &Lookup{reg: reg, env: env.Clone(), log: zerolog.Nop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Env returns a fresh copy of the lookup's environment.
func (l *Lookup) Env() orm.Env { return l.env.Clone() }

// Registry returns the registry the lookup reads from.
func (l *Lookup) Registry() orm.Registry { return l.reg }

// Model returns the named model.
func (l *Lookup) Model(name string) (orm.Model, error) {
	return l.reg.Model(name)
}

// Find searches model and returns the match without judging its size.
func (l *Lookup) Find(ctx context.Context, model string, domain orm.Domain) (Match, error) {
	m, err := l.reg.Model(model)
	if err != nil {
		return Match{}, err
	}
	ids, err := m.Search(ctx, l.Env(), domain)
	if err != nil {
		return Match{}, err
	}
	return Match{Model: model, Domain: domain, IDs: ids}, nil
}

// MaybeID returns the single record matching domain, or false if there is
// none. More than one match fails with ErrTooManyRecords.
func (l *Lookup) MaybeID(ctx context.Context, model string, domain orm.Domain) (orm.ID, bool, error) {
	match, err := l.Find(ctx, model, domain)
	if err != nil {
		return 0, false, err
	}
	return match.Optional()
}

// ExactlyOneID returns the single record matching domain. No match fails
// with ErrNoRecords and more than one with ErrTooManyRecords.
func (l *Lookup) ExactlyOneID(ctx context.Context, model string, domain orm.Domain) (orm.ID, error) {
	id, ok, err := l.MaybeID(ctx, model, domain)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &CardinalityError{Model: model, Domain: domain}
	}
	return id, nil
}

// TaxIDByCode returns the account.tax whose description is code, e.g. "ST1".
func (l *Lookup) TaxIDByCode(ctx context.Context, code string) (orm.ID, error) {
	return l.ExactlyOneID(ctx, "account.tax", orm.Domain{orm.Eq("description", code)})
}

// AccountID returns the company's account with the given code.
func (l *Lookup) AccountID(ctx context.Context, companyID orm.ID, code string) (orm.ID, error) {
	return l.ExactlyOneID(ctx, "account.account", orm.Domain{
		orm.Eq("company_id", companyID),
		orm.Eq("code", code),
	})
}

// XMLID resolves a dotted "module.name" external identifier.
func (l *Lookup) XMLID(ctx context.Context, xmlid string) (orm.Ref, error) {
	module, name, ok := strings.Cut(xmlid, ".")
	if !ok || module == "" || name == "" || strings.Contains(name, ".") {
		return orm.Ref{}, fmt.Errorf("%w: malformed xmlid %q, want module.name", orm.ErrInvalidValue, xmlid)
	}
	return l.XMLIDIn(ctx, module, name)
}

// XMLIDIn resolves the external identifier name within module.
func (l *Lookup) XMLIDIn(ctx context.Context, module, name string) (orm.Ref, error) {
	imd, err := l.reg.Model("ir.model.data")
	if err != nil {
		return orm.Ref{}, err
	}
	res, err := imd.Call(ctx, l.Env(), "get_object", nil, orm.Values{"module": module, "name": name})
	if err != nil {
		return orm.Ref{}, err
	}
	ref, ok := res.(orm.Ref)
	if !ok {
		return orm.Ref{}, fmt.Errorf("get_object %s.%s returned %T", module, name, res)
	}
	return ref, nil
}

// XMLIDID is XMLID returning only the record id.
func (l *Lookup) XMLIDID(ctx context.Context, xmlid string) (orm.ID, error) {
	ref, err := l.XMLID(ctx, xmlid)
	if err != nil {
		return 0, err
	}
	return ref.ID, nil
}
