package orm

import "errors"

var (
	ErrUnknownModel    = errors.New("unknown model")
	ErrUnknownField    = errors.New("unknown field")
	ErrUnknownMethod   = errors.New("unknown method")
	ErrRecordNotFound  = errors.New("record not found")
	ErrMissingRequired = errors.New("required field missing")
	ErrInvalidDomain   = errors.New("invalid domain")
	ErrInvalidValue    = errors.New("invalid field value")
	ErrDuplicateModel  = errors.New("model already registered")
)
