package confutil

import "github.com/simonvc/confutil/internal/orm"

// Cardinality classifies how many records a search matched.
type Cardinality int

const (
	MatchNone Cardinality = iota
	MatchOne
	MatchMany
)

func (c Cardinality) String() string {
	switch c {
	case MatchNone:
		return "none"
	case MatchOne:
		return "one"
	default:
		return "many"
	}
}

// Match is the outcome of a search, kept as data so callers can branch on
// the cardinality without going through an error.
type Match struct {
	Model  string
	Domain orm.Domain
	IDs    []orm.ID
}

// Cardinality reports whether the search matched none, one or many records.
func (m Match) Cardinality() Cardinality {
	switch len(m.IDs) {
	case 0:
		return MatchNone
	case 1:
		return MatchOne
	default:
		return MatchMany
	}
}

// Optional returns the sole id, or false when nothing matched. More than one
// match is an ErrTooManyRecords.
func (m Match) Optional() (orm.ID, bool, error) {
	switch m.Cardinality() {
	case MatchNone:
		return 0, false, nil
	case MatchOne:
		return m.IDs[0], true, nil
	default:
		return 0, false, m.err()
	}
}

// Unique returns the sole id. No match is an ErrNoRecords and more than one
// is an ErrTooManyRecords.
func (m Match) Unique() (orm.ID, error) {
	id, ok, err := m.Optional()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, m.err()
	}
	return id, nil
}

func (m Match) err() error {
	return &CardinalityError{Model: m.Model, Domain: m.Domain, Count: len(m.IDs)}
}
