package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Query runs a select and returns every row. Placeholders are written as "?"
// regardless of driver. A connection is acquired for the call when ctx does
// not already carry one.
func (e *Engine) Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	var rows []Row
	err := e.WithConnection(ctx, func(ctx context.Context) error {
		var err error
		rows, err = e.query(ctx, query, args, 0)
		return err
	})
	return rows, err
}

// QueryOne returns the first row of a select, or nil when nothing matched.
func (e *Engine) QueryOne(ctx context.Context, query string, args ...any) (Row, error) {
	var rows []Row
	err := e.WithConnection(ctx, func(ctx context.Context) error {
		var err error
		rows, err = e.query(ctx, query, args, 1)
		return err
	})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// QueryInt returns the first column of the first row as an integer, as
// produced by COUNT(*) and similar aggregates.
func (e *Engine) QueryInt(ctx context.Context, query string, args ...any) (int64, error) {
	row, err := e.QueryOne(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	if len(row) != 1 {
		return 0, queryError("query", e.dialect.Rewrite(query), len(args), fmt.Errorf("expected a single column, got %d", len(row)))
	}
	for _, v := range row {
		n, err := toInt64(v)
		if err != nil {
			return 0, queryError("query", e.dialect.Rewrite(query), len(args), err)
		}
		return n, nil
	}
	return 0, nil
}

// Exec runs an insert, update, delete or DDL statement and returns the
// number of affected rows. It joins the transaction carried by ctx, if any;
// otherwise it runs on a plain connection.
func (e *Engine) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	err := e.WithConnection(ctx, func(ctx context.Context) error {
		stmt := e.dialect.Rewrite(query)
		log.Debug().Str("sql", stmt).Int("args", len(args)).Msg("Executing statement")

		result, err := e.scopeFrom(ctx).executor().ExecContext(ctx, stmt, args...)
		if err != nil {
			return queryError("exec", stmt, len(args), err)
		}
		affected, err = result.RowsAffected()
		if err != nil {
			return queryError("exec", stmt, len(args), fmt.Errorf("failed to read affected rows: %w", err))
		}
		return nil
	})
	return affected, err
}

func (e *Engine) query(ctx context.Context, query string, args []any, limit int) (_ []Row, err error) {
	stmt := e.dialect.Rewrite(query)
	log.Debug().Str("sql", stmt).Int("args", len(args)).Msg("Executing query")

	rows, err := e.scopeFrom(ctx).executor().QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, queryError("query", stmt, len(args), err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = queryError("query", stmt, len(args), cerr)
		}
	}()

	result, err := scanRows(rows, limit)
	if err != nil {
		return nil, queryError("query", stmt, len(args), err)
	}
	return result, nil
}

func scanRows(rows *sql.Rows, limit int) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			// drivers may reuse byte buffers between rows
			if b, ok := values[i].([]byte); ok {
				values[i] = append([]byte(nil), b...)
			}
			row[col] = values[i]
		}
		result = append(result, row)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, rows.Err()
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, errors.New("unexpected NULL")
	}
	return 0, fmt.Errorf("unexpected %T value", v)
}

// Query runs a select on the process-wide engine.
func Query(ctx context.Context, query string, args ...any) ([]Row, error) {
	e, err := Default()
	if err != nil {
		return nil, err
	}
	return e.Query(ctx, query, args...)
}

// Exec runs a statement on the process-wide engine.
func Exec(ctx context.Context, query string, args ...any) (int64, error) {
	e, err := Default()
	if err != nil {
		return 0, err
	}
	return e.Exec(ctx, query, args...)
}
