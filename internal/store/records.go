package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/simonvc/confutil/internal/orm"
)

type model struct {
	store *Store
	spec  *orm.ModelSpec
}

func (m *model) Name() string { return m.spec.Name }

func (m *model) Search(ctx context.Context, env orm.Env, domain orm.Domain) ([]orm.ID, error) {
	where, args, err := m.store.compileDomain(m.spec, domain)
	if err != nil {
		return nil, fmt.Errorf("search %s %s: %w", m.spec.Name, domain, err)
	}
	query := `SELECT id FROM records WHERE model = ?`
	if where != "" {
		query += ` AND ` + where
	}
	query += ` ORDER BY id`

	rows, err := m.store.reader.QueryContext(ctx, query, append([]any{m.spec.Name}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", m.spec.Name, err)
	}
	defer rows.Close()

	ids := []orm.ID{}
	for rows.Next() {
		var id orm.ID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan %s id: %w", m.spec.Name, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (m *model) Read(ctx context.Context, env orm.Env, ids []orm.ID, fields ...string) ([]orm.Values, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders, args := inList(ids)
	rows, err := m.store.reader.QueryContext(ctx,
		`SELECT id, data FROM records WHERE model = ? AND id IN (`+placeholders+`) ORDER BY id`,
		append([]any{m.spec.Name}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", m.spec.Name, err)
	}
	defer rows.Close()

	byID := make(map[orm.ID]orm.Values, len(ids))
	for rows.Next() {
		var id orm.ID
		var raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s: %w", m.spec.Name, err)
		}
		data, err := decodeData(raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s(%d): %w", m.spec.Name, id, err)
		}
		byID[id] = m.present(id, data, fields)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Keep caller order; silently drop missing ids like the host does.
	out := make([]orm.Values, 0, len(byID))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *model) Create(ctx context.Context, env orm.Env, data orm.Values) (orm.ID, error) {
	vals := orm.NormalizeValues(data)
	if vals == nil {
		vals = orm.Values{}
	}
	if m.spec.Inverse != nil {
		var err error
		if vals, err = m.spec.Inverse(ctx, m.store, env, nil, vals); err != nil {
			return 0, fmt.Errorf("create %s: %w", m.spec.Name, err)
		}
	}

	// x2many defaults are line data for forms, not commands
	for _, f := range m.spec.Fields {
		if _, set := vals[f.Name]; set || f.Type.IsX2Many() {
			continue
		}
		if v, ok := f.DefaultValue(env); ok {
			vals[f.Name] = orm.Normalize(v)
		}
	}

	stored, err := m.convert(ctx, env, orm.Values{}, vals)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", m.spec.Name, err)
	}
	for _, f := range m.spec.Fields {
		if f.Required && stored[f.Name] == nil {
			return 0, fmt.Errorf("create %s: %w: %s", m.spec.Name, orm.ErrMissingRequired, f.Name)
		}
	}

	raw, err := json.Marshal(stored)
	if err != nil {
		return 0, fmt.Errorf("encode %s: %w", m.spec.Name, err)
	}

	id, err := m.insert(ctx, string(raw))
	if err != nil {
		return 0, err
	}
	m.store.log.Debug().Str("model", m.spec.Name).Int64("id", id).Int64("uid", env.UID).Msg("record created")
	return id, nil
}

// insert stores a new record under the model's next sequence number. Ids
// are never reused, even after the highest record is unlinked.
func (m *model) insert(ctx context.Context, raw string) (orm.ID, error) {
	tx, err := m.store.writer.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", m.spec.Name, err)
	}
	defer tx.Rollback()

	var id orm.ID
	err = tx.QueryRowContext(ctx,
		`INSERT INTO sequences (model, last_id) VALUES (?, 1)
		 ON CONFLICT (model) DO UPDATE SET last_id = last_id + 1
		 RETURNING last_id`,
		m.spec.Name,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("next %s id: %w", m.spec.Name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO records (model, id, data) VALUES (?, ?, ?)`,
		m.spec.Name, id, raw); err != nil {
		return 0, fmt.Errorf("insert %s: %w", m.spec.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("insert %s: %w", m.spec.Name, err)
	}
	return id, nil
}

func (m *model) Write(ctx context.Context, env orm.Env, ids []orm.ID, changes orm.Values) error {
	vals := orm.NormalizeValues(changes)
	if m.spec.Inverse != nil {
		var err error
		if vals, err = m.spec.Inverse(ctx, m.store, env, ids, vals); err != nil {
			return fmt.Errorf("write %s: %w", m.spec.Name, err)
		}
	}
	if len(vals) == 0 {
		return nil
	}

	for _, id := range ids {
		var raw string
		err := m.store.writer.QueryRowContext(ctx,
			`SELECT data FROM records WHERE model = ? AND id = ?`, m.spec.Name, id).Scan(&raw)
		if err == sql.ErrNoRows {
			return fmt.Errorf("write %s(%d): %w", m.spec.Name, id, orm.ErrRecordNotFound)
		}
		if err != nil {
			return fmt.Errorf("load %s(%d): %w", m.spec.Name, id, err)
		}
		current, err := decodeData(raw)
		if err != nil {
			return fmt.Errorf("decode %s(%d): %w", m.spec.Name, id, err)
		}

		stored, err := m.convert(ctx, env, current, vals)
		if err != nil {
			return fmt.Errorf("write %s(%d): %w", m.spec.Name, id, err)
		}
		encoded, err := json.Marshal(current.Merge(stored))
		if err != nil {
			return fmt.Errorf("encode %s: %w", m.spec.Name, err)
		}
		if _, err := m.store.writer.ExecContext(ctx,
			`UPDATE records SET data = ? WHERE model = ? AND id = ?`,
			string(encoded), m.spec.Name, id); err != nil {
			return fmt.Errorf("update %s(%d): %w", m.spec.Name, id, err)
		}
	}
	m.store.log.Debug().Str("model", m.spec.Name).Ints64("ids", ids).Strs("fields", vals.Keys()).Msg("records written")
	return nil
}

func (m *model) Unlink(ctx context.Context, env orm.Env, ids []orm.ID) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders, args := inList(ids)
	_, err := m.store.writer.ExecContext(ctx,
		`DELETE FROM records WHERE model = ? AND id IN (`+placeholders+`)`,
		append([]any{m.spec.Name}, args...)...)
	if err != nil {
		return fmt.Errorf("unlink %s: %w", m.spec.Name, err)
	}
	return nil
}

func (m *model) DefaultGet(ctx context.Context, env orm.Env, fields []string) (orm.Values, error) {
	out := orm.Values{}
	for _, name := range fields {
		f, ok := m.spec.Field(name)
		if !ok {
			continue
		}
		if v, ok := f.DefaultValue(env); ok {
			out[name] = v
		}
	}
	return out, nil
}

func (m *model) FieldsGet(ctx context.Context, env orm.Env) (map[string]orm.Field, error) {
	out := make(map[string]orm.Field, len(m.spec.Fields))
	for _, f := range m.spec.Fields {
		out[f.Name] = f
	}
	if m.spec.VirtualFields != nil {
		extra, err := m.spec.VirtualFields(ctx, m.store, env)
		if err != nil {
			return nil, fmt.Errorf("fields_get %s: %w", m.spec.Name, err)
		}
		for _, f := range extra {
			out[f.Name] = f
		}
	}
	return out, nil
}

func (m *model) Execute(ctx context.Context, env orm.Env, ids []orm.ID) error {
	_, err := m.Call(ctx, env, "execute", ids, nil)
	return err
}

func (m *model) Call(ctx context.Context, env orm.Env, method string, ids []orm.ID, args orm.Values) (any, error) {
	fn, ok := m.spec.Methods[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", orm.ErrUnknownMethod, m.spec.Name, method)
	}
	if args == nil {
		args = orm.Values{}
	}
	m.store.log.Debug().Str("model", m.spec.Name).Str("method", method).Ints64("ids", ids).Msg("call")
	return fn(ctx, orm.MethodCall{
		Self:     m,
		Registry: m.store,
		Env:      env,
		IDs:      ids,
		Args:     orm.NormalizeValues(args),
	})
}

// present shapes stored data for Read: declared fields get host-style empty
// values and x2many lists come back as []orm.ID.
func (m *model) present(id orm.ID, data orm.Values, fields []string) orm.Values {
	out := orm.Values{"id": id}
	for _, f := range m.spec.Fields {
		if len(fields) > 0 && !slices.Contains(fields, f.Name) {
			continue
		}
		v := data[f.Name]
		switch {
		case f.Type.IsX2Many():
			ids, _ := orm.AsIDs(v)
			if ids == nil {
				ids = []orm.ID{}
			}
			out[f.Name] = ids
		case f.Type == orm.TypeBoolean:
			out[f.Name] = orm.Truthy(v)
		default:
			out[f.Name] = v
		}
	}
	return out
}

// convert validates incoming values against the model fields and turns them into
// their stored representation. current is the record's existing data.
func (m *model) convert(ctx context.Context, env orm.Env, current, vals orm.Values) (orm.Values, error) {
	out := make(orm.Values, len(vals))
	for name, v := range vals {
		f, ok := m.spec.Field(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", orm.ErrUnknownField, m.spec.Name, name)
		}
		stored, err := m.convertField(ctx, env, f, current[name], v)
		if err != nil {
			return nil, err
		}
		out[name] = stored
	}
	return out, nil
}

func (m *model) convertField(ctx context.Context, env orm.Env, f orm.Field, current, v any) (any, error) {
	bad := func() error {
		return fmt.Errorf("%w: %s.%s (%s) = %v", orm.ErrInvalidValue, m.spec.Name, f.Name, f.Type, v)
	}
	if f.Type.IsX2Many() {
		cmds, ok := orm.AsCommands(v)
		if !ok {
			return nil, bad()
		}
		existing, _ := orm.AsIDs(current)
		return orm.ApplyCommands(existing, cmds, func(vals orm.Values) (orm.ID, error) {
			rel, err := m.store.Model(f.Relation)
			if err != nil {
				return 0, err
			}
			return rel.Create(ctx, env, vals)
		})
	}
	if v == nil || v == false && f.Type != orm.TypeBoolean {
		return nil, nil
	}

	switch f.Type {
	case orm.TypeBoolean:
		return orm.Truthy(v), nil
	case orm.TypeMany2one, orm.TypeInteger:
		id, ok := orm.AsID(v)
		if !ok {
			return nil, bad()
		}
		return id, nil
	case orm.TypeFloat:
		switch x := v.(type) {
		case float64:
			return x, nil
		case float32:
			return float64(x), nil
		}
		if n, ok := orm.AsID(v); ok {
			return float64(n), nil
		}
		return nil, bad()
	case orm.TypeDate:
		switch x := v.(type) {
		case time.Time:
			return x.Format(time.DateOnly), nil
		case string:
			if _, err := time.Parse(time.DateOnly, x); err != nil {
				return nil, bad()
			}
			return x, nil
		}
		return nil, bad()
	case orm.TypeSelection:
		s, ok := v.(string)
		if !ok || (len(f.Selection) > 0 && !slices.Contains(f.Selection, s)) {
			return nil, bad()
		}
		return s, nil
	case orm.TypeChar, orm.TypeText:
		switch x := v.(type) {
		case string:
			return x, nil
		case fmt.Stringer:
			return x.String(), nil
		}
		return nil, bad()
	default:
		return v, nil
	}
}

func decodeData(raw string) (orm.Values, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, err
	}
	return orm.NormalizeValues(data), nil
}

func inList(ids []orm.ID) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

// sqlValue converts a Go value into something sqlite compares like
// json_extract output.
func sqlValue(v any) any {
	switch x := v.(type) {
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case orm.Ref:
		return x.ID
	case time.Time:
		return x.Format(time.DateOnly)
	case float64:
		if x == math.Trunc(x) {
			return int64(x)
		}
	}
	if id, ok := orm.AsID(v); ok {
		return id
	}
	return v
}
