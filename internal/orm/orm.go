// Package orm defines the record-store contract the configuration helpers are
// written against: models addressed by name, searched with domains, and
// driven through create/write/execute calls under an operator identity.
package orm

import (
	"context"
	"fmt"
)

// ID is a record identifier within a model.
type ID = int64

// SuperuserID is the operator identity used by installation routines.
const SuperuserID ID = 1

// FieldType is the storage kind of a model field.
type FieldType string

const (
	TypeChar      FieldType = "char"
	TypeText      FieldType = "text"
	TypeInteger   FieldType = "integer"
	TypeFloat     FieldType = "float"
	TypeBoolean   FieldType = "boolean"
	TypeDate      FieldType = "date"
	TypeSelection FieldType = "selection"
	TypeMany2one  FieldType = "many2one"
	TypeOne2many  FieldType = "one2many"
	TypeMany2many FieldType = "many2many"
	TypeJSON      FieldType = "json"
)

// IsRelational reports whether values of this type point at other records.
func (t FieldType) IsRelational() bool {
	return t == TypeMany2one || t == TypeOne2many || t == TypeMany2many
}

// IsX2Many reports whether values of this type are lists of record ids.
func (t FieldType) IsX2Many() bool {
	return t == TypeOne2many || t == TypeMany2many
}

// Field describes one field of a model.
type Field struct {
	Name      string    `json:"name"`
	String    string    `json:"string"`
	Type      FieldType `json:"type"`
	Relation  string    `json:"relation,omitempty"`
	Selection []string  `json:"selection,omitempty"`
	Required  bool      `json:"required,omitempty"`

	// Default is returned by DefaultGet. A func(Env) any is called per request.
	Default any `json:"-"`
}

// DefaultValue resolves the field default for env.
func (f Field) DefaultValue(env Env) (any, bool) {
	switch d := f.Default.(type) {
	case nil:
		return nil, false
	case func(Env) any:
		return d(env), true
	default:
		return d, true
	}
}

// MethodCall is the receiver side of a Model.Call invocation.
type MethodCall struct {
	Self     Model
	Registry Registry
	Env      Env
	IDs      []ID
	Args     Values
}

// Method is a model-level action invoked through Model.Call.
type Method func(ctx context.Context, call MethodCall) (any, error)

// ModelSpec declares a model to a registry.
type ModelSpec struct {
	Name        string
	Description string
	// Transient models hold wizard state rather than business data.
	Transient bool
	Fields    []Field
	Methods   map[string]Method

	// VirtualFields contributes fields that only exist at FieldsGet time.
	VirtualFields func(ctx context.Context, reg Registry, env Env) ([]Field, error)
	// Inverse rewrites incoming create/write values before they are stored.
	// It receives the target ids (nil on create).
	Inverse func(ctx context.Context, reg Registry, env Env, ids []ID, vals Values) (Values, error)
}

// Field returns the declared field with the given name.
func (s *ModelSpec) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Model is the capability set of one model in a record store.
type Model interface {
	Name() string
	Search(ctx context.Context, env Env, domain Domain) ([]ID, error)
	Read(ctx context.Context, env Env, ids []ID, fields ...string) ([]Values, error)
	Create(ctx context.Context, env Env, data Values) (ID, error)
	Write(ctx context.Context, env Env, ids []ID, changes Values) error
	Unlink(ctx context.Context, env Env, ids []ID) error
	DefaultGet(ctx context.Context, env Env, fields []string) (Values, error)
	FieldsGet(ctx context.Context, env Env) (map[string]Field, error)
	// Execute runs the model's finalize action on ids.
	Execute(ctx context.Context, env Env, ids []ID) error
	Call(ctx context.Context, env Env, method string, ids []ID, args Values) (any, error)
}

// Registry resolves models by name.
type Registry interface {
	Model(name string) (Model, error)
	Models() []string
}

// Locker is implemented by registries that can serialize a read-then-write
// sequence, such as find-or-create, on a key.
type Locker interface {
	Lock(key string) (unlock func())
}

// Ref points at a single record of a model.
type Ref struct {
	Model string `json:"model"`
	ID    ID     `json:"id"`
}

// String renders the reference in "model,id" form.
func (r Ref) String() string {
	return fmt.Sprintf("%s,%d", r.Model, r.ID)
}

// ReadOne reads a single record and fails with ErrRecordNotFound when absent.
func ReadOne(ctx context.Context, m Model, env Env, id ID, fields ...string) (Values, error) {
	rows, err := m.Read(ctx, env, []ID{id}, fields...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s(%d): %w", m.Name(), id, ErrRecordNotFound)
	}
	return rows[0], nil
}
