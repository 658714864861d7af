package orm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Operator is a comparison operator in a domain condition.
type Operator string

const (
	OpEq    Operator = "="
	OpNe    Operator = "!="
	OpLt    Operator = "<"
	OpLe    Operator = "<="
	OpGt    Operator = ">"
	OpGe    Operator = ">="
	OpIn    Operator = "in"
	OpNotIn Operator = "not in"
	OpLike  Operator = "like"
	OpILike Operator = "ilike"
)

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpIn, OpNotIn, OpLike, OpILike:
		return true
	}
	return false
}

// Condition constrains one field. Field may traverse many2one relations
// with dots, e.g. "category_id.name".
type Condition struct {
	Field string
	Op    Operator
	Value any
}

// Cond builds a Condition.
func Cond(field string, op Operator, value any) Condition {
	return Condition{Field: field, Op: op, Value: value}
}

// Eq builds an equality Condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// Path splits the field into its relation hops.
func (c Condition) Path() []string {
	return strings.Split(c.Field, ".")
}

func (c Condition) String() string {
	return fmt.Sprintf("(%s %s %s)", c.Field, c.Op, formatValue(c.Value))
}

// MarshalJSON encodes the condition as a [field, op, value] triple.
func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Field, c.Op, c.Value})
}

// UnmarshalJSON decodes a [field, op, value] triple.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var triple []json.RawMessage
	if err := json.Unmarshal(data, &triple); err != nil {
		return fmt.Errorf("%w: condition must be a [field, op, value] triple", ErrInvalidDomain)
	}
	if len(triple) != 3 {
		return fmt.Errorf("%w: condition has %d elements, want 3", ErrInvalidDomain, len(triple))
	}
	if err := json.Unmarshal(triple[0], &c.Field); err != nil {
		return fmt.Errorf("%w: field: %v", ErrInvalidDomain, err)
	}
	var op string
	if err := json.Unmarshal(triple[1], &op); err != nil {
		return fmt.Errorf("%w: operator: %v", ErrInvalidDomain, err)
	}
	c.Op = Operator(op)
	dec := json.NewDecoder(strings.NewReader(string(triple[2])))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("%w: value: %v", ErrInvalidDomain, err)
	}
	c.Value = Normalize(v)
	return c.Validate()
}

// Validate checks the condition shape without consulting any model.
func (c Condition) Validate() error {
	if c.Field == "" {
		return fmt.Errorf("%w: empty field", ErrInvalidDomain)
	}
	if !c.Op.Valid() {
		return fmt.Errorf("%w: unsupported operator %q", ErrInvalidDomain, c.Op)
	}
	if c.Op == OpIn || c.Op == OpNotIn {
		if _, ok := asSlice(c.Value); !ok {
			return fmt.Errorf("%w: %q needs a list value", ErrInvalidDomain, c.Op)
		}
	}
	return nil
}

// Domain is a conjunction of conditions. The empty domain matches every record.
type Domain []Condition

// And returns a new domain with extra conditions appended.
func (d Domain) And(conds ...Condition) Domain {
	out := make(Domain, 0, len(d)+len(conds))
	out = append(out, d...)
	return append(out, conds...)
}

// Validate checks every condition.
func (d Domain) Validate() error {
	for _, c := range d {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (d Domain) String() string {
	parts := make([]string, len(d))
	for i, c := range d {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", x)
	default:
		return fmt.Sprintf("%v", x)
	}
}

func asSlice(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []string:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, true
	}
	if ids, ok := AsIDs(v); ok && v != nil {
		out := make([]any, len(ids))
		for i := range ids {
			out[i] = ids[i]
		}
		return out, true
	}
	return nil, false
}

// ListValue returns the elements of an in / not in condition value.
func (c Condition) ListValue() []any {
	out, _ := asSlice(c.Value)
	return out
}
