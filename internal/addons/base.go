package addons

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/simonvc/confutil/internal/orm"
)

const (
	selGroupsPrefix = "sel_groups_"
	inGroupPrefix   = "in_group_"
)

func baseSpecs() []orm.ModelSpec {
	return []orm.ModelSpec{
		{
			Name:        "res.company",
			Description: "Companies",
			Fields: []orm.Field{
				{Name: "name", String: "Company Name", Type: orm.TypeChar, Required: true},
				{Name: "currency_id", String: "Currency", Type: orm.TypeChar, Default: "USD"},
				{Name: "parent_id", String: "Parent Company", Type: orm.TypeMany2one, Relation: "res.company"},
				{Name: "income_currency_exchange_account_id", String: "Gain Exchange Rate Account", Type: orm.TypeMany2one, Relation: "account.account"},
				{Name: "expense_currency_exchange_account_id", String: "Loss Exchange Rate Account", Type: orm.TypeMany2one, Relation: "account.account"},
			},
		},
		{
			Name:        "ir.module.category",
			Description: "Application",
			Fields: []orm.Field{
				{Name: "name", String: "Name", Type: orm.TypeChar, Required: true},
				{Name: "sequence", String: "Sequence", Type: orm.TypeInteger},
				{Name: "is_application", String: "Application", Type: orm.TypeBoolean},
			},
		},
		{
			Name:        "res.groups",
			Description: "Access Groups",
			Fields: []orm.Field{
				{Name: "name", String: "Name", Type: orm.TypeChar, Required: true},
				{Name: "category_id", String: "Application", Type: orm.TypeMany2one, Relation: "ir.module.category"},
				{Name: "comment", String: "Comment", Type: orm.TypeText},
			},
		},
		{
			Name:        "res.users",
			Description: "Users",
			Fields: []orm.Field{
				{Name: "name", String: "Name", Type: orm.TypeChar, Required: true},
				{Name: "login", String: "Login", Type: orm.TypeChar, Required: true},
				{Name: "active", String: "Active", Type: orm.TypeBoolean, Default: true},
				{Name: "company_id", String: "Company", Type: orm.TypeMany2one, Relation: "res.company"},
				{Name: "groups_id", String: "Groups", Type: orm.TypeMany2many, Relation: "res.groups"},
			},
			VirtualFields: userGroupFields,
			Inverse:       userGroupInverse,
		},
		{
			Name:        "res.partner",
			Description: "Partner",
			Fields: []orm.Field{
				{Name: "name", String: "Name", Type: orm.TypeChar, Required: true},
				{Name: "company_id", String: "Company", Type: orm.TypeMany2one, Relation: "res.company"},
				{Name: "customer", String: "Customer", Type: orm.TypeBoolean, Default: true},
				{Name: "property_product_pricelist", String: "Sale Pricelist", Type: orm.TypeMany2one, Relation: "product.pricelist"},
			},
		},
		{
			Name:        "ir.model.data",
			Description: "External Identifiers",
			Fields: []orm.Field{
				{Name: "module", String: "Module", Type: orm.TypeChar, Required: true},
				{Name: "name", String: "External Identifier", Type: orm.TypeChar, Required: true},
				{Name: "model", String: "Model Name", Type: orm.TypeChar, Required: true},
				{Name: "res_id", String: "Record ID", Type: orm.TypeInteger},
			},
			Methods: map[string]orm.Method{
				"get_object": getObject,
			},
		},
		{
			Name:        "ir.model.fields",
			Description: "Fields",
			Fields: []orm.Field{
				{Name: "model", String: "Object Name", Type: orm.TypeChar, Required: true},
				{Name: "name", String: "Field Name", Type: orm.TypeChar, Required: true},
				{Name: "field_description", String: "Field Label", Type: orm.TypeChar},
				{Name: "ttype", String: "Field Type", Type: orm.TypeChar},
				{Name: "relation", String: "Object Relation", Type: orm.TypeChar},
			},
		},
		{
			Name:        "ir.values",
			Description: "Default Values",
			Fields: []orm.Field{
				{Name: "key", String: "Type", Type: orm.TypeSelection, Selection: []string{"default", "action"}, Default: "default"},
				{Name: "model", String: "Model Name", Type: orm.TypeChar, Required: true},
				{Name: "name", String: "Field Name", Type: orm.TypeChar, Required: true},
				{Name: "company_id", String: "Company", Type: orm.TypeMany2one, Relation: "res.company"},
				{Name: "user_id", String: "User", Type: orm.TypeMany2one, Relation: "res.users"},
				{Name: "value", String: "Value", Type: orm.TypeJSON},
			},
			Methods: map[string]orm.Method{
				"set_default": setDefault,
				"get_default": getDefault,
			},
		},
		{
			Name:        "ir.property",
			Description: "Company Property",
			Fields: []orm.Field{
				{Name: "name", String: "Name", Type: orm.TypeChar},
				{Name: "company_id", String: "Company", Type: orm.TypeMany2one, Relation: "res.company"},
				{Name: "fields_id", String: "Field", Type: orm.TypeMany2one, Relation: "ir.model.fields", Required: true},
				{Name: "res_id", String: "Resource", Type: orm.TypeChar},
				{Name: "type", String: "Type", Type: orm.TypeSelection, Selection: []string{"char", "float", "boolean", "integer", "text", "many2one", "date"}, Default: "many2one"},
				{Name: "value_reference", String: "Value Reference", Type: orm.TypeChar},
			},
			Methods: map[string]orm.Method{
				"get": getProperty,
			},
		},
		{
			Name:        "ir.config_parameter",
			Description: "System Parameters",
			Fields: []orm.Field{
				{Name: "key", String: "Key", Type: orm.TypeChar, Required: true},
				{Name: "value", String: "Value", Type: orm.TypeText},
			},
			Methods: map[string]orm.Method{
				"set_param": setParam,
				"get_param": getParam,
			},
		},
	}
}

// getObject resolves args module/name to a record reference.
func getObject(ctx context.Context, call orm.MethodCall) (any, error) {
	return ResolveXMLID(ctx, call.Registry, call.Env, call.Args.String("module"), call.Args.String("name"))
}

// setDefault stores a default value for model.field_name. With
// for_all_users the default has no user; company_id scopes it.
func setDefault(ctx context.Context, call orm.MethodCall) (any, error) {
	model := call.Args.String("model")
	field := call.Args.String("field_name")
	if model == "" || field == "" {
		return nil, fmt.Errorf("%w: set_default needs model and field_name", orm.ErrInvalidValue)
	}
	var userID any
	if !call.Args.Bool("for_all_users") {
		userID = call.Env.UID
	}
	companyID, hasCompany := call.Args.ID("company_id")

	domain := orm.Domain{
		orm.Eq("key", "default"),
		orm.Eq("model", model),
		orm.Eq("name", field),
		orm.Eq("user_id", userID),
	}
	vals := orm.Values{"key": "default", "model": model, "name": field, "user_id": userID, "value": call.Args["value"]}
	if hasCompany {
		domain = append(domain, orm.Eq("company_id", companyID))
		vals["company_id"] = companyID
	} else {
		domain = append(domain, orm.Eq("company_id", false))
	}

	ids, err := call.Self.Search(ctx, call.Env, domain)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		return ids[0], call.Self.Write(ctx, call.Env, ids[:1], orm.Values{"value": call.Args["value"]})
	}
	return call.Self.Create(ctx, call.Env, vals)
}

// getDefault returns the company default for model.field_name, falling back
// to the company-less default.
func getDefault(ctx context.Context, call orm.MethodCall) (any, error) {
	base := orm.Domain{
		orm.Eq("key", "default"),
		orm.Eq("model", call.Args.String("model")),
		orm.Eq("name", call.Args.String("field_name")),
	}
	var scopes []orm.Domain
	if companyID, ok := call.Args.ID("company_id"); ok {
		scopes = append(scopes, base.And(orm.Eq("company_id", companyID)))
	}
	scopes = append(scopes, base.And(orm.Eq("company_id", false)))

	for _, domain := range scopes {
		ids, err := call.Self.Search(ctx, call.Env, domain)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			rec, err := orm.ReadOne(ctx, call.Self, call.Env, ids[0], "value")
			if err != nil {
				return nil, err
			}
			return rec["value"], nil
		}
	}
	return nil, nil
}

// getProperty returns the company-wide value_reference of the property
// for args model/name (no res_id), or nil.
func getProperty(ctx context.Context, call orm.MethodCall) (any, error) {
	fieldID, ok, err := searchOne(ctx, call.Registry, call.Env, "ir.model.fields", orm.Domain{
		orm.Eq("model", call.Args.String("model")),
		orm.Eq("name", call.Args.String("name")),
	})
	if err != nil || !ok {
		return nil, err
	}
	domain := orm.Domain{orm.Eq("fields_id", fieldID), orm.Eq("res_id", false)}
	if companyID, ok := call.Args.ID("company_id"); ok {
		domain = append(domain, orm.Eq("company_id", companyID))
	}
	ids, err := call.Self.Search(ctx, call.Env, domain)
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	rec, err := orm.ReadOne(ctx, call.Self, call.Env, ids[0], "value_reference")
	if err != nil {
		return nil, err
	}
	return rec["value_reference"], nil
}

func setParam(ctx context.Context, call orm.MethodCall) (any, error) {
	key := call.Args.String("key")
	if key == "" {
		return nil, fmt.Errorf("%w: set_param needs a key", orm.ErrInvalidValue)
	}
	value := call.Args["value"]
	if value != nil {
		value = fmt.Sprint(value)
	}
	ids, err := call.Self.Search(ctx, call.Env, orm.Domain{orm.Eq("key", key)})
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		return ids[0], call.Self.Write(ctx, call.Env, ids[:1], orm.Values{"value": value})
	}
	return call.Self.Create(ctx, call.Env, orm.Values{"key": key, "value": value})
}

func getParam(ctx context.Context, call orm.MethodCall) (any, error) {
	ids, err := call.Self.Search(ctx, call.Env, orm.Domain{orm.Eq("key", call.Args.String("key"))})
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	rec, err := orm.ReadOne(ctx, call.Self, call.Env, ids[0], "value")
	if err != nil {
		return nil, err
	}
	return rec["value"], nil
}

// userGroupFields reifies group membership as user fields: one selection per
// application category and one boolean per group.
func userGroupFields(ctx context.Context, reg orm.Registry, env orm.Env) ([]orm.Field, error) {
	groups, err := reg.Model("res.groups")
	if err != nil {
		return nil, err
	}
	ids, err := groups.Search(ctx, env, nil)
	if err != nil {
		return nil, err
	}
	rows, err := groups.Read(ctx, env, ids, "name", "category_id")
	if err != nil {
		return nil, err
	}

	categories, err := reg.Model("ir.module.category")
	if err != nil {
		return nil, err
	}
	appIDs, err := categories.Search(ctx, env, orm.Domain{orm.Eq("is_application", true)})
	if err != nil {
		return nil, err
	}
	apps, err := categories.Read(ctx, env, appIDs, "name")
	if err != nil {
		return nil, err
	}

	var fields []orm.Field
	for _, app := range apps {
		appID, _ := app.ID("id")
		var members []string
		for _, g := range rows {
			if cat, ok := g.ID("category_id"); ok && cat == appID {
				gid, _ := g.ID("id")
				members = append(members, strconv.FormatInt(gid, 10))
			}
		}
		if len(members) == 0 {
			continue
		}
		fields = append(fields, orm.Field{
			Name:      selGroupsPrefix + strings.Join(members, "_"),
			String:    app.String("name"),
			Type:      orm.TypeSelection,
			Selection: members,
		})
	}
	for _, g := range rows {
		gid, _ := g.ID("id")
		fields = append(fields, orm.Field{
			Name:   fmt.Sprintf("%s%d", inGroupPrefix, gid),
			String: g.String("name"),
			Type:   orm.TypeBoolean,
		})
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })
	return fields, nil
}

// userGroupInverse folds reified group fields back into groups_id commands.
func userGroupInverse(ctx context.Context, reg orm.Registry, env orm.Env, ids []orm.ID, vals orm.Values) (orm.Values, error) {
	var cmds []orm.Command
	out := orm.Values{}
	for _, name := range vals.Keys() {
		v := vals[name]
		switch {
		case strings.HasPrefix(name, selGroupsPrefix):
			members, err := parseGroupIDs(strings.TrimPrefix(name, selGroupsPrefix), "_")
			if err != nil {
				return nil, fmt.Errorf("%w: %s", orm.ErrUnknownField, name)
			}
			for _, gid := range members {
				cmds = append(cmds, orm.UnlinkCmd(gid))
			}
			if selected, ok := orm.AsID(v); ok && selected != 0 {
				if !containsID(members, selected) {
					return nil, fmt.Errorf("%w: group %d is not selectable in %s", orm.ErrInvalidValue, selected, name)
				}
				cmds = append(cmds, orm.Link(selected))
			}
		case strings.HasPrefix(name, inGroupPrefix):
			gid, err := strconv.ParseInt(strings.TrimPrefix(name, inGroupPrefix), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", orm.ErrUnknownField, name)
			}
			if orm.Truthy(v) {
				cmds = append(cmds, orm.Link(gid))
			} else {
				cmds = append(cmds, orm.UnlinkCmd(gid))
			}
		default:
			out[name] = v
		}
	}
	if len(cmds) == 0 {
		return out, nil
	}
	if existing, ok := out["groups_id"]; ok {
		prior, ok := orm.AsCommands(existing)
		if !ok {
			return nil, fmt.Errorf("%w: res.users.groups_id", orm.ErrInvalidValue)
		}
		cmds = append(prior, cmds...)
	}
	out["groups_id"] = cmds
	return out, nil
}

func parseGroupIDs(s, sep string) ([]orm.ID, error) {
	var out []orm.ID
	for _, part := range strings.Split(s, sep) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func containsID(ids []orm.ID, id orm.ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
