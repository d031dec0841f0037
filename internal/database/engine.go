package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"github.com/saltyorg/dbkit/internal/config"
)

// Engine owns the driver configuration and the ability to open physical
// connections. It is read-only once opened and safe for concurrent use.
type Engine struct {
	db      *sql.DB
	cfg     config.EngineConfig
	dialect Dialect
	closed  atomic.Bool

	acquired  atomic.Int64
	released  atomic.Int64
	commits   atomic.Int64
	rollbacks atomic.Int64
}

// Stats is a snapshot of an engine's connection and transaction counters.
type Stats struct {
	Acquired  int64
	Released  int64
	Commits   int64
	Rollbacks int64
}

// Open validates cfg and opens a standalone engine. Most programs use Init
// instead so the engine is shared process-wide.
func Open(cfg config.EngineConfig) (*Engine, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &ConfigurationError{Err: err}
	}

	dialect := DialectForDriver(cfg.Driver)
	if name := cfg.Options[config.OptionPlaceholder]; name != "" {
		d, err := ParseDialect(name)
		if err != nil {
			return nil, &ConfigurationError{Err: err}
		}
		dialect = d
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, &ConfigurationError{Err: fmt.Errorf("failed to open database: %w", err)}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &ConnectionError{Driver: cfg.Driver, Err: fmt.Errorf("failed to ping database: %w", err)}
	}

	// SQLite with WAL mode (set in the DSN) supports concurrent reads but
	// serializes writes
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	e := &Engine{db: db, cfg: cfg, dialect: dialect}
	log.Info().
		Str("engine", cfg.Redacted()).
		Stringer("placeholder", dialect).
		Msg("Database engine initialized")
	return e, nil
}

// Close releases the underlying pool. Scopes still holding a connection keep
// it until they exit.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	log.Info().Str("driver", e.cfg.Driver).Msg("Database engine closed")
	return e.db.Close()
}

// Driver returns the configured driver name
func (e *Engine) Driver() string {
	return e.cfg.Driver
}

// Dialect returns the placeholder style statements are rewritten to
func (e *Engine) Dialect() Dialect {
	return e.dialect
}

// Stats returns a snapshot of the engine counters
func (e *Engine) Stats() Stats {
	return Stats{
		Acquired:  e.acquired.Load(),
		Released:  e.released.Load(),
		Commits:   e.commits.Load(),
		Rollbacks: e.rollbacks.Load(),
	}
}

func (e *Engine) acquire(ctx context.Context) (*sql.Conn, error) {
	if e.closed.Load() {
		return nil, &ConnectionError{Driver: e.cfg.Driver, Err: ErrEngineClosed}
	}
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, &ConnectionError{Driver: e.cfg.Driver, Err: err}
	}
	e.acquired.Add(1)
	log.Trace().Str("driver", e.cfg.Driver).Msg("Connection acquired")
	return conn, nil
}

func (e *Engine) release(conn *sql.Conn) error {
	e.released.Add(1)
	log.Trace().Str("driver", e.cfg.Driver).Msg("Connection released")
	if err := conn.Close(); err != nil {
		return &ConnectionError{Driver: e.cfg.Driver, Err: fmt.Errorf("failed to release connection: %w", err)}
	}
	return nil
}

var (
	defaultMu     sync.Mutex
	defaultEngine atomic.Pointer[Engine]
)

// Init opens the process-wide engine. Calling it again before Shutdown fails
// with a ConfigurationError.
func Init(cfg config.EngineConfig) (*Engine, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultEngine.Load() != nil {
		return nil, &ConfigurationError{Err: ErrEngineInitialized}
	}
	e, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	defaultEngine.Store(e)
	return e, nil
}

// Default returns the process-wide engine.
func Default() (*Engine, error) {
	if e := defaultEngine.Load(); e != nil {
		return e, nil
	}
	return nil, &ConfigurationError{Err: ErrEngineNotInitialized}
}

// Shutdown closes the process-wide engine so Init may be called again.
func Shutdown() error {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	e := defaultEngine.Swap(nil)
	if e == nil {
		return nil
	}
	return e.Close()
}
