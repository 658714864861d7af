package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/simonvc/confutil/internal/orm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	require.NoError(t, st.Register(orm.ModelSpec{
		Name: "test.category",
		Fields: []orm.Field{
			{Name: "name", Type: orm.TypeChar, Required: true},
		},
	}))
	require.NoError(t, st.Register(orm.ModelSpec{
		Name: "test.item",
		Fields: []orm.Field{
			{Name: "name", Type: orm.TypeChar},
			{Name: "code", Type: orm.TypeChar},
			{Name: "qty", Type: orm.TypeInteger, Default: int64(1)},
			{Name: "active", Type: orm.TypeBoolean, Default: true},
			{Name: "kind", Type: orm.TypeSelection, Selection: []string{"a", "b"}},
			{Name: "category_id", Type: orm.TypeMany2one, Relation: "test.category"},
			{Name: "tag_ids", Type: orm.TypeMany2many, Relation: "test.category"},
		},
		Methods: map[string]orm.Method{
			"execute": func(ctx context.Context, call orm.MethodCall) (any, error) {
				return nil, call.Self.Write(ctx, call.Env, call.IDs, orm.Values{"code": "executed"})
			},
		},
	}))
	return st
}

func mustModel(t *testing.T, st *Store, name string) orm.Model {
	t.Helper()
	m, err := st.Model(name)
	require.NoError(t, err)
	return m
}

func TestRegister(t *testing.T) {
	st := openTestStore(t)

	err := st.Register(orm.ModelSpec{Name: "test.item"})
	assert.ErrorIs(t, err, orm.ErrDuplicateModel)

	err = st.Register(orm.ModelSpec{Name: "test.bad", Fields: []orm.Field{{Name: "x", Type: orm.TypeMany2one}}})
	assert.Error(t, err)

	_, err = st.Model("nope")
	assert.ErrorIs(t, err, orm.ErrUnknownModel)

	assert.Equal(t, []string{"test.category", "test.item"}, st.Models())
}

func TestCreateReadWrite(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	env := orm.NewEnv(orm.SuperuserID)
	items := mustModel(t, st, "test.item")

	id, err := items.Create(ctx, env, orm.Values{"name": "first", "qty": 3, "kind": "a"})
	require.NoError(t, err)
	assert.Equal(t, orm.ID(1), id)

	id2, err := items.Create(ctx, env, orm.Values{"name": "second"})
	require.NoError(t, err)
	assert.Equal(t, orm.ID(2), id2)

	rec, err := orm.ReadOne(ctx, items, env, id)
	require.NoError(t, err)
	assert.Equal(t, "first", rec["name"])
	assert.Equal(t, int64(3), rec["qty"])
	assert.Equal(t, true, rec["active"], "declared default")
	assert.Equal(t, []orm.ID{}, rec["tag_ids"])

	rec, err = orm.ReadOne(ctx, items, env, id2, "qty", "kind")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rec["qty"])
	assert.Nil(t, rec["kind"])

	require.NoError(t, items.Write(ctx, env, []orm.ID{id}, orm.Values{"qty": 5}))
	rec, err = orm.ReadOne(ctx, items, env, id, "name", "qty")
	require.NoError(t, err)
	assert.Equal(t, orm.Values{"id": id, "name": "first", "qty": int64(5)}, rec)

	err = items.Write(ctx, env, []orm.ID{99}, orm.Values{"qty": 1})
	assert.ErrorIs(t, err, orm.ErrRecordNotFound)

	_, err = items.Create(ctx, env, orm.Values{"bogus": 1})
	assert.ErrorIs(t, err, orm.ErrUnknownField)

	_, err = items.Create(ctx, env, orm.Values{"kind": "c"})
	assert.ErrorIs(t, err, orm.ErrInvalidValue)

	cats := mustModel(t, st, "test.category")
	_, err = cats.Create(ctx, env, orm.Values{})
	assert.ErrorIs(t, err, orm.ErrMissingRequired)

	require.NoError(t, items.Unlink(ctx, env, []orm.ID{id}))
	_, err = orm.ReadOne(ctx, items, env, id)
	assert.ErrorIs(t, err, orm.ErrRecordNotFound)
}

func TestSearchDomains(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	env := orm.NewEnv(orm.SuperuserID)
	cats := mustModel(t, st, "test.category")
	items := mustModel(t, st, "test.item")

	sales, err := cats.Create(ctx, env, orm.Values{"name": "Sales"})
	require.NoError(t, err)
	admin, err := cats.Create(ctx, env, orm.Values{"name": "Administration"})
	require.NoError(t, err)

	a, err := items.Create(ctx, env, orm.Values{"name": "Alpha", "code": "ST1", "qty": 1, "active": true, "category_id": sales, "tag_ids": []orm.ID{admin}})
	require.NoError(t, err)
	b, err := items.Create(ctx, env, orm.Values{"name": "Beta", "code": "PT1", "qty": 5, "category_id": admin})
	require.NoError(t, err)
	c, err := items.Create(ctx, env, orm.Values{"name": "gamma", "qty": 10, "active": false, "category_id": false})
	require.NoError(t, err)

	tests := []struct {
		name   string
		domain orm.Domain
		want   []orm.ID
	}{
		{"empty domain", nil, []orm.ID{a, b, c}},
		{"equality", orm.Domain{orm.Eq("code", "ST1")}, []orm.ID{a}},
		{"not equal keeps unset", orm.Domain{orm.Cond("code", orm.OpNe, "ST1")}, []orm.ID{b, c}},
		{"unset many2one", orm.Domain{orm.Eq("category_id", false)}, []orm.ID{c}},
		{"set many2one", orm.Domain{orm.Cond("category_id", orm.OpNe, nil)}, []orm.ID{a, b}},
		{"boolean false", orm.Domain{orm.Eq("active", false)}, []orm.ID{c}},
		{"boolean true", orm.Domain{orm.Eq("active", true)}, []orm.ID{a, b}},
		{"comparison", orm.Domain{orm.Cond("qty", orm.OpGe, 5)}, []orm.ID{b, c}},
		{"in", orm.Domain{orm.Cond("code", orm.OpIn, []string{"ST1", "PT1"})}, []orm.ID{a, b}},
		{"not in", orm.Domain{orm.Cond("code", orm.OpNotIn, []string{"ST1"})}, []orm.ID{b, c}},
		{"empty in", orm.Domain{orm.Cond("code", orm.OpIn, []any{})}, []orm.ID{}},
		{"ilike", orm.Domain{orm.Cond("name", orm.OpILike, "AMM")}, []orm.ID{c}},
		{"dotted path", orm.Domain{orm.Eq("category_id.name", "Sales")}, []orm.ID{a}},
		{"x2many membership", orm.Domain{orm.Eq("tag_ids", admin)}, []orm.ID{a}},
		{"by id", orm.Domain{orm.Cond("id", orm.OpIn, []orm.ID{b, c})}, []orm.ID{b, c}},
		{"conjunction", orm.Domain{orm.Cond("qty", orm.OpGt, 1), orm.Eq("category_id", admin)}, []orm.ID{b}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := items.Search(ctx, env, tt.domain)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = items.Search(ctx, env, orm.Domain{orm.Eq("missing", 1)})
	assert.ErrorIs(t, err, orm.ErrUnknownField)

	_, err = items.Search(ctx, env, orm.Domain{orm.Eq("name.x", 1)})
	assert.ErrorIs(t, err, orm.ErrInvalidDomain)
}

func TestX2ManyCommands(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	env := orm.NewEnv(orm.SuperuserID)
	cats := mustModel(t, st, "test.category")
	items := mustModel(t, st, "test.item")

	existing, err := cats.Create(ctx, env, orm.Values{"name": "Existing"})
	require.NoError(t, err)

	id, err := items.Create(ctx, env, orm.Values{
		"tag_ids": []orm.Command{orm.Link(existing), orm.Create(orm.Values{"name": "New"})},
	})
	require.NoError(t, err)

	rec, err := orm.ReadOne(ctx, items, env, id)
	require.NoError(t, err)
	assert.Equal(t, []orm.ID{existing, 2}, rec["tag_ids"])

	require.NoError(t, items.Write(ctx, env, []orm.ID{id}, orm.Values{
		"tag_ids": []orm.Command{orm.UnlinkCmd(existing), orm.Link(2)},
	}))
	rec, err = orm.ReadOne(ctx, items, env, id)
	require.NoError(t, err)
	assert.Equal(t, []orm.ID{2}, rec["tag_ids"])

	n, err := st.Count(ctx, "test.category")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDefaultGetFieldsGetAndCall(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	env := orm.NewEnv(orm.SuperuserID)
	items := mustModel(t, st, "test.item")

	fields, err := items.FieldsGet(ctx, env)
	require.NoError(t, err)
	assert.Len(t, fields, 7)
	assert.Equal(t, "test.category", fields["category_id"].Relation)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	defaults, err := items.DefaultGet(ctx, env, names)
	require.NoError(t, err)
	assert.Equal(t, orm.Values{"qty": int64(1), "active": true}, defaults)

	id, err := items.Create(ctx, env, defaults)
	require.NoError(t, err)
	require.NoError(t, items.Execute(ctx, env, []orm.ID{id}))

	rec, err := orm.ReadOne(ctx, items, env, id, "code")
	require.NoError(t, err)
	assert.Equal(t, "executed", rec["code"])

	_, err = items.Call(ctx, env, "nope", nil, nil)
	assert.ErrorIs(t, err, orm.ErrUnknownMethod)
}

func TestReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")
	spec := orm.ModelSpec{Name: "test.note", Fields: []orm.Field{{Name: "body", Type: orm.TypeText}}}

	st, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Register(spec))
	notes := mustModel(t, st, "test.note")
	_, err = notes.Create(ctx, orm.NewEnv(orm.SuperuserID), orm.Values{"body": "kept"})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	st, err = Open(path)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Register(spec))
	notes = mustModel(t, st, "test.note")
	ids, err := notes.Search(ctx, orm.NewEnv(orm.SuperuserID), orm.Domain{orm.Eq("body", "kept")})
	require.NoError(t, err)
	assert.Equal(t, []orm.ID{1}, ids)

	next, err := notes.Create(ctx, orm.NewEnv(orm.SuperuserID), orm.Values{"body": "after reopen"})
	require.NoError(t, err)
	assert.Equal(t, orm.ID(2), next)
}

func TestIDsAreNotReused(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	env := orm.NewEnv(orm.SuperuserID)
	cats := mustModel(t, st, "test.category")

	first, err := cats.Create(ctx, env, orm.Values{"name": "A"})
	require.NoError(t, err)
	last, err := cats.Create(ctx, env, orm.Values{"name": "B"})
	require.NoError(t, err)
	require.NoError(t, cats.Unlink(ctx, env, []orm.ID{last}))

	again, err := cats.Create(ctx, env, orm.Values{"name": "C"})
	require.NoError(t, err)
	assert.Equal(t, last+1, again)

	// sequences are per model
	item, err := mustModel(t, st, "test.item").Create(ctx, env, orm.Values{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, orm.ID(1), item)
	assert.Equal(t, orm.ID(1), first)
}

func TestLock(t *testing.T) {
	st := openTestStore(t)
	var _ orm.Locker = st

	unlock := st.Lock("sale.config.settings@global")
	acquired := make(chan struct{})
	go func() {
		defer st.Lock("sale.config.settings@global")()
		close(acquired)
	}()

	// other keys are independent
	st.Lock("sale.config.settings@company 1")()

	select {
	case <-acquired:
		t.Fatal("second holder got the lock while it was held")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("lock was not handed over")
	}

	var wg sync.WaitGroup
	counter := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer st.Lock("counter")()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}
