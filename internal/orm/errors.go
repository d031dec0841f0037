package orm

import (
	"errors"
	"fmt"
)

var (
	// ErrNoPrimaryKey is wrapped by SchemaError when a declaration has no primary key.
	ErrNoPrimaryKey = errors.New("primary key not defined")

	// ErrDuplicatePrimaryKey is wrapped by SchemaError when a declaration has more than one.
	ErrDuplicatePrimaryKey = errors.New("more than one primary key defined")

	// ErrMissingPrimaryKey is returned when a record has no usable primary key
	// value for a statement that needs one.
	ErrMissingPrimaryKey = errors.New("record has no primary key value")
)

// SchemaError reports an invalid record declaration.
type SchemaError struct {
	Type string
	Err  error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema %s: %v", e.Type, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }
