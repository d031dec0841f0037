package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

type scopeKey struct {
	engine *Engine
}

// scope is the connection state of one execution context. It is reached only
// through the context handed to WithConnection/WithTransaction callbacks and
// must not be shared between goroutines.
type scope struct {
	conn *sql.Conn
	tx   *sql.Tx

	depth int
	// failure is the first error raised at any depth of the current
	// transaction; once set the outermost exit rolls back.
	failure error
}

// executor returns the handle statements run on: the open transaction when
// there is one, otherwise the bare connection.
func (s *scope) executor() interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
} {
	if s.tx != nil {
		return s.tx
	}
	return s.conn
}

func (e *Engine) scopeFrom(ctx context.Context) *scope {
	s, _ := ctx.Value(scopeKey{e}).(*scope)
	return s
}

// InConnection reports whether ctx already carries a connection of this engine.
func (e *Engine) InConnection(ctx context.Context) bool {
	return e.scopeFrom(ctx) != nil
}

// TxDepth returns the transaction nesting depth carried by ctx.
func (e *Engine) TxDepth(ctx context.Context) int {
	if s := e.scopeFrom(ctx); s != nil {
		return s.depth
	}
	return 0
}

// WithConnection runs fn with a connection bound to the context it receives.
// If ctx already carries one it is reused and left open; otherwise a
// connection is acquired and released when fn returns or panics.
func (e *Engine) WithConnection(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if e.scopeFrom(ctx) != nil {
		return fn(ctx)
	}

	conn, err := e.acquire(ctx)
	if err != nil {
		return err
	}
	s := &scope{conn: conn}
	defer func() {
		if relErr := e.release(s.conn); relErr != nil {
			log.Error().Err(relErr).Msg("Failed to release connection")
			err = errors.Join(err, relErr)
		}
	}()

	return fn(context.WithValue(ctx, scopeKey{e}, s))
}

// WithTransaction runs fn inside a transaction. Nested calls on the same
// context join the outermost transaction; only the outermost exit commits.
// A failure at any depth makes the outermost exit roll back instead.
func (e *Engine) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return e.WithConnection(ctx, func(ctx context.Context) error {
		return e.runTx(ctx, e.scopeFrom(ctx), fn)
	})
}

func (e *Engine) runTx(ctx context.Context, s *scope, fn func(ctx context.Context) error) (err error) {
	if s.depth == 0 {
		tx, err := s.conn.BeginTx(ctx, nil)
		if err != nil {
			return queryError("begin", "BEGIN", 0, err)
		}
		s.tx = tx
		s.failure = nil
		log.Trace().Msg("Transaction begun")
	}
	s.depth++

	panicked := true
	defer func() {
		s.depth--
		if panicked && s.failure == nil {
			s.failure = errors.New("panic inside transaction")
		} else if err != nil && s.failure == nil {
			s.failure = err
		}
		if s.depth > 0 {
			return
		}

		tx := s.tx
		s.tx = nil
		if s.failure == nil {
			err = e.commit(ctx, s, tx)
			return
		}

		cause := s.failure
		s.failure = nil
		if rbErr := e.rollback(tx); rbErr != nil {
			log.Error().Err(rbErr).Msg("Failed to rollback transaction")
			err = errors.Join(err, rbErr)
		}
		if err == nil && !panicked {
			err = fmt.Errorf("%w: %w", ErrRollbackOnly, cause)
		}
	}()

	err = fn(ctx)
	panicked = false
	return err
}

func (e *Engine) commit(ctx context.Context, s *scope, tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Msg("Commit failed, trying rollback")
		// database/sql marks the Tx done before the driver commits, so the
		// rollback has to go through the connection itself.
		if _, rbErr := s.conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK"); rbErr != nil {
			log.Debug().Err(rbErr).Msg("No open transaction left after failed commit")
		}
		e.rollbacks.Add(1)
		return queryError("commit", "COMMIT", 0, err)
	}
	e.commits.Add(1)
	log.Trace().Msg("Transaction committed")
	return nil
}

func (e *Engine) rollback(tx *sql.Tx) error {
	e.rollbacks.Add(1)
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return queryError("rollback", "ROLLBACK", 0, err)
	}
	log.Warn().Msg("Transaction rolled back")
	return nil
}

// WithConnection runs fn with a connection from the process-wide engine.
func WithConnection(ctx context.Context, fn func(ctx context.Context) error) error {
	e, err := Default()
	if err != nil {
		return err
	}
	return e.WithConnection(ctx, fn)
}

// WithTransaction runs fn in a transaction on the process-wide engine.
func WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	e, err := Default()
	if err != nil {
		return err
	}
	return e.WithTransaction(ctx, fn)
}
