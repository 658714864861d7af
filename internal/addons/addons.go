// Package addons declares the host models the configuration helpers operate
// on (companies, users and groups, taxes, accounts, settings wizards) and
// seeds a fresh database with the records an installation expects.
package addons

import (
	"context"
	"fmt"
	"strings"

	"github.com/simonvc/confutil/internal/orm"
)

// Host is a registry that accepts model declarations.
type Host interface {
	orm.Registry
	Register(spec orm.ModelSpec) error
}

type options struct {
	crm bool
}

// Option tunes what Install seeds.
type Option func(*options)

// WithCRM seeds the Sales application groups under the names the CRM module
// gives them ("User: Own Leads Only", ...).
func WithCRM() Option {
	return func(o *options) { o.crm = true }
}

// Specs returns every model declared by the addons.
func Specs() []orm.ModelSpec {
	var specs []orm.ModelSpec
	specs = append(specs, baseSpecs()...)
	specs = append(specs, productSpecs()...)
	specs = append(specs, accountSpecs()...)
	specs = append(specs, settingsSpecs()...)
	return specs
}

// Register declares all addon models on h.
func Register(h Host) error {
	for _, spec := range Specs() {
		if err := h.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

// Install registers the models and seeds base data. Seeding is idempotent:
// records already bound to their XMLID are left alone.
func Install(ctx context.Context, h Host, env orm.Env, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if err := Register(h); err != nil {
		return fmt.Errorf("register addons: %w", err)
	}
	if err := seed(ctx, h, env, o); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}

// ResolveXMLID returns the record bound to "module.name".
func ResolveXMLID(ctx context.Context, reg orm.Registry, env orm.Env, module, name string) (orm.Ref, error) {
	imd, err := reg.Model("ir.model.data")
	if err != nil {
		return orm.Ref{}, err
	}
	ids, err := imd.Search(ctx, env, orm.Domain{orm.Eq("module", module), orm.Eq("name", name)})
	if err != nil {
		return orm.Ref{}, err
	}
	if len(ids) == 0 {
		return orm.Ref{}, fmt.Errorf("xmlid %s.%s: %w", module, name, orm.ErrRecordNotFound)
	}
	rec, err := orm.ReadOne(ctx, imd, env, ids[0], "model", "res_id")
	if err != nil {
		return orm.Ref{}, err
	}
	resID, _ := rec.ID("res_id")
	return orm.Ref{Model: rec.String("model"), ID: resID}, nil
}

// SplitXMLID splits "module.name" into its parts.
func SplitXMLID(xmlid string) (string, string, error) {
	module, name, ok := strings.Cut(xmlid, ".")
	if !ok || module == "" || name == "" || strings.Contains(name, ".") {
		return "", "", fmt.Errorf("%w: malformed xmlid %q, want module.name", orm.ErrInvalidValue, xmlid)
	}
	return module, name, nil
}

// bindXMLID records xmlid -> (model, id).
func bindXMLID(ctx context.Context, reg orm.Registry, env orm.Env, xmlid, model string, id orm.ID) error {
	module, name, err := SplitXMLID(xmlid)
	if err != nil {
		return err
	}
	imd, err := reg.Model("ir.model.data")
	if err != nil {
		return err
	}
	_, err = imd.Create(ctx, env, orm.Values{"module": module, "name": name, "model": model, "res_id": id})
	return err
}

// ensure returns the record bound to xmlid, creating it from vals first if
// the binding does not exist yet.
func ensure(ctx context.Context, reg orm.Registry, env orm.Env, xmlid, model string, vals orm.Values) (orm.ID, error) {
	module, name, err := SplitXMLID(xmlid)
	if err != nil {
		return 0, err
	}
	if ref, err := ResolveXMLID(ctx, reg, env, module, name); err == nil {
		return ref.ID, nil
	}
	m, err := reg.Model(model)
	if err != nil {
		return 0, err
	}
	id, err := m.Create(ctx, env, vals)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", xmlid, err)
	}
	if err := bindXMLID(ctx, reg, env, xmlid, model, id); err != nil {
		return 0, err
	}
	return id, nil
}

func searchOne(ctx context.Context, reg orm.Registry, env orm.Env, model string, domain orm.Domain) (orm.ID, bool, error) {
	m, err := reg.Model(model)
	if err != nil {
		return 0, false, err
	}
	ids, err := m.Search(ctx, env, domain)
	if err != nil || len(ids) == 0 {
		return 0, false, err
	}
	return ids[0], true, nil
}
