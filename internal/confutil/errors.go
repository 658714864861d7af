package confutil

import (
	"errors"
	"fmt"

	"github.com/simonvc/confutil/internal/orm"
)

var (
	// ErrWrongNumberOfRecords is the root of the cardinality errors.
	ErrWrongNumberOfRecords = errors.New("wrong number of records")
	ErrNoRecords            = fmt.Errorf("%w: no records", ErrWrongNumberOfRecords)
	ErrTooManyRecords       = fmt.Errorf("%w: too many records", ErrWrongNumberOfRecords)

	ErrUnknownCategory      = errors.New("unknown application category")
	ErrUnknownSettingsModel = errors.New("unknown settings model")
)

// CardinalityError reports a lookup that matched a number of records other
// than the one it needed.
type CardinalityError struct {
	Model  string
	Domain orm.Domain
	Count  int
}

func (e *CardinalityError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("no %s records matching %s", e.Model, e.Domain)
	}
	return fmt.Sprintf("%d %s records matching %s, want at most one", e.Count, e.Model, e.Domain)
}

// Unwrap returns ErrNoRecords or ErrTooManyRecords.
func (e *CardinalityError) Unwrap() error {
	if e.Count == 0 {
		return ErrNoRecords
	}
	return ErrTooManyRecords
}
