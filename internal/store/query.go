package store

import (
	"fmt"
	"strings"

	"github.com/simonvc/confutil/internal/orm"
)

// compileDomain turns a domain into a SQL predicate over the records table.
// Conditions are ANDed; dotted paths become IN sub-selects on the related
// model.
func (s *Store) compileDomain(spec *orm.ModelSpec, domain orm.Domain) (string, []any, error) {
	if err := domain.Validate(); err != nil {
		return "", nil, err
	}
	var parts []string
	var args []any
	for _, c := range domain {
		sql, a, err := s.compileCondition(spec, c.Path(), c)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, a...)
	}
	return strings.Join(parts, " AND "), args, nil
}

func (s *Store) compileCondition(spec *orm.ModelSpec, path []string, c orm.Condition) (string, []any, error) {
	name := path[0]
	if name == "id" {
		if len(path) > 1 {
			return "", nil, fmt.Errorf("%w: cannot traverse id", orm.ErrInvalidDomain)
		}
		return compileScalar("id", nil, orm.TypeInteger, c)
	}

	f, ok := spec.Field(name)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s.%s", orm.ErrUnknownField, spec.Name, name)
	}
	expr := "json_extract(data, ?)"
	exprArgs := []any{"$." + name}

	if len(path) > 1 {
		if f.Type != orm.TypeMany2one {
			return "", nil, fmt.Errorf("%w: %s.%s is not a many2one", orm.ErrInvalidDomain, spec.Name, name)
		}
		rel, ok := s.Spec(f.Relation)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", orm.ErrUnknownModel, f.Relation)
		}
		sub, subArgs, err := s.compileCondition(rel, path[1:], c)
		if err != nil {
			return "", nil, err
		}
		args := append(exprArgs, f.Relation)
		return expr + ` IN (SELECT id FROM records WHERE model = ? AND ` + sub + `)`, append(args, subArgs...), nil
	}

	if f.Type.IsX2Many() {
		return compileMembership(name, c)
	}
	return compileScalar(expr, exprArgs, f.Type, c)
}

func compileScalar(expr string, exprArgs []any, typ orm.FieldType, c orm.Condition) (string, []any, error) {
	args := append([]any(nil), exprArgs...)
	unset := c.Value == nil || (c.Value == false && typ != orm.TypeBoolean)

	switch c.Op {
	case orm.OpEq, orm.OpNe:
		if typ == orm.TypeBoolean {
			want := sqlValue(orm.Truthy(c.Value))
			if c.Op == orm.OpEq {
				return "COALESCE(" + expr + ", 0) = ?", append(args, want), nil
			}
			return "COALESCE(" + expr + ", 0) != ?", append(args, want), nil
		}
		if unset {
			if c.Op == orm.OpEq {
				return expr + " IS NULL", args, nil
			}
			return expr + " IS NOT NULL", args, nil
		}
		if c.Op == orm.OpEq {
			return expr + " = ?", append(args, sqlValue(c.Value)), nil
		}
		// != keeps records where the field is unset, matching host semantics.
		args = append(args, exprArgs...)
		return "(" + expr + " IS NULL OR " + expr + " != ?)", append(args, sqlValue(c.Value)), nil

	case orm.OpLt, orm.OpLe, orm.OpGt, orm.OpGe:
		if unset {
			return "", nil, fmt.Errorf("%w: %s compared with null", orm.ErrInvalidDomain, c.Field)
		}
		return expr + " " + string(c.Op) + " ?", append(args, sqlValue(c.Value)), nil

	case orm.OpIn, orm.OpNotIn:
		list := c.ListValue()
		if len(list) == 0 {
			if c.Op == orm.OpIn {
				return "0", nil, nil
			}
			return "1", nil, nil
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(list)), ",")
		for _, v := range list {
			args = append(args, sqlValue(v))
		}
		if c.Op == orm.OpIn {
			return expr + " IN (" + placeholders + ")", args, nil
		}
		nullArgs := append(append([]any(nil), exprArgs...), args...)
		return "(" + expr + " IS NULL OR " + expr + " NOT IN (" + placeholders + "))", nullArgs, nil

	case orm.OpLike, orm.OpILike:
		s, ok := c.Value.(string)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s needs a string", orm.ErrInvalidDomain, c.Op)
		}
		if c.Op == orm.OpLike {
			return expr + " LIKE ?", append(args, "%"+s+"%"), nil
		}
		return "LOWER(" + expr + ") LIKE LOWER(?)", append(args, "%"+s+"%"), nil
	}
	return "", nil, fmt.Errorf("%w: unsupported operator %q", orm.ErrInvalidDomain, c.Op)
}

// compileMembership handles x2many fields: "=" tests that the id is in the
// list, "in" that any of the ids is.
func compileMembership(name string, c orm.Condition) (string, []any, error) {
	members := "SELECT 1 FROM json_each(records.data, ?) WHERE json_each.value"
	path := "$." + name
	switch c.Op {
	case orm.OpEq, orm.OpNe:
		id, ok := orm.AsID(c.Value)
		if !ok {
			return "", nil, fmt.Errorf("%w: %s %s needs a record id", orm.ErrInvalidDomain, name, c.Op)
		}
		sql := "EXISTS (" + members + " = ?)"
		if c.Op == orm.OpNe {
			sql = "NOT " + sql
		}
		return sql, []any{path, id}, nil
	case orm.OpIn, orm.OpNotIn:
		list := c.ListValue()
		if len(list) == 0 {
			if c.Op == orm.OpIn {
				return "0", nil, nil
			}
			return "1", nil, nil
		}
		args := []any{path}
		for _, v := range list {
			args = append(args, sqlValue(v))
		}
		sql := "EXISTS (" + members + " IN (" + strings.TrimSuffix(strings.Repeat("?,", len(list)), ",") + "))"
		if c.Op == orm.OpNotIn {
			sql = "NOT " + sql
		}
		return sql, args, nil
	}
	return "", nil, fmt.Errorf("%w: %s not supported on x2many %s", orm.ErrInvalidDomain, c.Op, name)
}
