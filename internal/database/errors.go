package database

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineInitialized is returned by Init when an engine is already running.
	ErrEngineInitialized = errors.New("engine is already initialized")

	// ErrEngineNotInitialized is returned when the default engine is used before Init.
	ErrEngineNotInitialized = errors.New("engine is not initialized")

	// ErrEngineClosed is returned when a closed engine is asked for a connection.
	ErrEngineClosed = errors.New("engine is closed")

	// ErrRollbackOnly is returned when the outermost transaction exits cleanly
	// but a nested level failed, so the work was rolled back instead of committed.
	ErrRollbackOnly = errors.New("transaction rolled back: a nested transaction failed")
)

// ConfigurationError reports a misconfigured or double-initialized engine.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("database configuration: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ConnectionError reports a failure to obtain a physical connection.
type ConnectionError struct {
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("database connection (%s): %v", e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// QueryError reports a statement that failed at the driver level. It carries
// the statement shape and argument count but never the bound values.
type QueryError struct {
	SQL  string
	Args int
	Op   string
	Err  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("%s failed (%d args): %s: %v", e.Op, e.Args, e.SQL, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

func queryError(op, sql string, args int, err error) error {
	return &QueryError{SQL: sql, Args: args, Op: op, Err: err}
}
