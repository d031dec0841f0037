package orm

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/dbkit/internal/database"
)

// Mapper runs CRUD statements for one schema. Generated SQL lists columns in
// declaration order. Mutations run in a transaction, joining the caller's
// when ctx already carries one.
type Mapper struct {
	engine *database.Engine
	schema *Schema

	selectSQL string
	countSQL  string
}

// NewMapper binds a schema to an engine. A nil engine means the process-wide
// engine, resolved on each call.
func NewMapper(engine *database.Engine, schema *Schema) *Mapper {
	cols := make([]string, len(schema.columns))
	for i, f := range schema.columns {
		cols[i] = quote(f.name)
	}
	return &Mapper{
		engine:    engine,
		schema:    schema,
		selectSQL: fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), quote(schema.table)),
		countSQL:  fmt.Sprintf("SELECT COUNT(%s) FROM %s", quote(schema.primaryKey.name), quote(schema.table)),
	}
}

// Schema returns the mapped schema
func (m *Mapper) Schema() *Schema { return m.schema }

// New creates an unsaved record of the mapped schema.
func (m *Mapper) New(values map[string]any) *Record { return m.schema.New(values) }

// Get loads a record by primary key. It returns nil, nil when no row matches.
func (m *Mapper) Get(ctx context.Context, pk any) (*Record, error) {
	return m.FindFirst(ctx, quote(m.schema.primaryKey.name)+" = ?", pk)
}

// FindFirst returns the first row matching a raw WHERE fragment, or nil, nil.
func (m *Mapper) FindFirst(ctx context.Context, where string, args ...any) (*Record, error) {
	engine, err := m.resolve()
	if err != nil {
		return nil, err
	}
	row, err := engine.QueryOne(ctx, m.selectSQL+" WHERE "+where, args...)
	if err != nil || row == nil {
		return nil, err
	}
	return m.fromRow(row)
}

// FindBy returns every row matching a raw WHERE fragment, in database order.
func (m *Mapper) FindBy(ctx context.Context, where string, args ...any) ([]*Record, error) {
	return m.find(ctx, m.selectSQL+" WHERE "+where, args...)
}

// FindAll returns every row of the table.
func (m *Mapper) FindAll(ctx context.Context) ([]*Record, error) {
	return m.find(ctx, m.selectSQL)
}

// CountAll returns the number of rows in the table.
func (m *Mapper) CountAll(ctx context.Context) (int64, error) {
	engine, err := m.resolve()
	if err != nil {
		return 0, err
	}
	return engine.QueryInt(ctx, m.countSQL)
}

// CountBy returns the number of rows matching a raw WHERE fragment.
func (m *Mapper) CountBy(ctx context.Context, where string, args ...any) (int64, error) {
	engine, err := m.resolve()
	if err != nil {
		return 0, err
	}
	return engine.QueryInt(ctx, m.countSQL+" WHERE "+where, args...)
}

// Insert runs the BeforeInsert hook, fills every insertable column the record
// lacks from its default and inserts exactly the insertable columns. Defaults
// are copied onto the record only once the insert succeeds.
func (m *Mapper) Insert(ctx context.Context, r *Record) (*Record, error) {
	if err := m.check(r); err != nil {
		return nil, err
	}
	engine, err := m.resolve()
	if err != nil {
		return nil, err
	}

	filled := make(map[string]any)
	err = engine.WithTransaction(ctx, func(ctx context.Context) error {
		if m.schema.beforeInsert != nil {
			if err := m.schema.beforeInsert.BeforeInsert(ctx, r); err != nil {
				return fmt.Errorf("before insert hook: %w", err)
			}
		}

		var cols, marks []string
		var args []any
		for _, f := range m.schema.columns {
			if !f.insertable {
				continue
			}
			v, ok := r.values[f.name]
			if !ok {
				if v, ok = f.DefaultValue(); !ok {
					return fmt.Errorf("insert into %s: %w", m.schema.table, ErrMissingPrimaryKey)
				}
				filled[f.name] = v
			}
			if f.primaryKey && emptyKey(v) {
				return fmt.Errorf("insert into %s: %w", m.schema.table, ErrMissingPrimaryKey)
			}
			cols = append(cols, quote(f.name))
			marks = append(marks, "?")
			args = append(args, v)
		}

		stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(m.schema.table), strings.Join(cols, ", "), strings.Join(marks, ", "))
		if _, err := engine.Exec(ctx, stmt, args...); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	maps.Copy(r.values, filled)

	pk, _ := r.PrimaryKey()
	log.Debug().Str("table", m.schema.table).Interface("pk", pk).Msg("Record inserted")
	return r, nil
}

// Update runs the BeforeUpdate hook and writes every updatable column back by
// primary key. Missing updatable values are filled from defaults and stored
// on the record once the update succeeds. Non-updatable columns are never
// written.
func (m *Mapper) Update(ctx context.Context, r *Record) (*Record, error) {
	if err := m.check(r); err != nil {
		return nil, err
	}
	engine, err := m.resolve()
	if err != nil {
		return nil, err
	}

	var affected int64
	filled := make(map[string]any)
	err = engine.WithTransaction(ctx, func(ctx context.Context) error {
		if m.schema.beforeUpdate != nil {
			if err := m.schema.beforeUpdate.BeforeUpdate(ctx, r); err != nil {
				return fmt.Errorf("before update hook: %w", err)
			}
		}

		pk, err := m.keyOf(r, "update")
		if err != nil {
			return err
		}

		var sets []string
		var args []any
		for _, f := range m.schema.columns {
			if !f.updatable {
				continue
			}
			v, ok := r.values[f.name]
			if !ok {
				v, _ = f.DefaultValue()
				filled[f.name] = v
			}
			sets = append(sets, quote(f.name)+" = ?")
			args = append(args, v)
		}
		if len(sets) == 0 {
			return nil
		}
		args = append(args, pk)

		stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", quote(m.schema.table), strings.Join(sets, ", "), quote(m.schema.primaryKey.name))
		affected, err = engine.Exec(ctx, stmt, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	maps.Copy(r.values, filled)

	pk, _ := r.PrimaryKey()
	log.Debug().Str("table", m.schema.table).Interface("pk", pk).Int64("affected", affected).Msg("Record updated")
	return r, nil
}

// Delete runs the BeforeDelete hook and deletes the row by primary key. The
// record is returned unchanged.
func (m *Mapper) Delete(ctx context.Context, r *Record) (*Record, error) {
	if err := m.check(r); err != nil {
		return nil, err
	}
	engine, err := m.resolve()
	if err != nil {
		return nil, err
	}

	err = engine.WithTransaction(ctx, func(ctx context.Context) error {
		if m.schema.beforeDelete != nil {
			if err := m.schema.beforeDelete.BeforeDelete(ctx, r); err != nil {
				return fmt.Errorf("before delete hook: %w", err)
			}
		}

		pk, err := m.keyOf(r, "delete")
		if err != nil {
			return err
		}
		stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(m.schema.table), quote(m.schema.primaryKey.name))
		_, err = engine.Exec(ctx, stmt, pk)
		return err
	})
	if err != nil {
		return nil, err
	}

	pk, _ := r.PrimaryKey()
	log.Debug().Str("table", m.schema.table).Interface("pk", pk).Msg("Record deleted")
	return r, nil
}

func (m *Mapper) find(ctx context.Context, stmt string, args ...any) ([]*Record, error) {
	engine, err := m.resolve()
	if err != nil {
		return nil, err
	}
	rows, err := engine.Query(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		r, err := m.fromRow(row)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

func (m *Mapper) fromRow(row database.Row) (*Record, error) {
	r := &Record{schema: m.schema, values: make(map[string]any, len(row))}
	for name, raw := range row {
		f, ok := m.schema.byName[name]
		if !ok {
			r.Set(name, raw)
			continue
		}
		v, err := convertValue(f.kind, raw)
		if err != nil {
			return nil, fmt.Errorf("column %s.%s: %w", m.schema.table, name, err)
		}
		r.values[name] = v
	}
	return r, nil
}

func (m *Mapper) resolve() (*database.Engine, error) {
	if m.engine != nil {
		return m.engine, nil
	}
	return database.Default()
}

func (m *Mapper) check(r *Record) error {
	if r == nil {
		return errors.New("nil record")
	}
	if r.schema == nil {
		return fmt.Errorf("record without schema passed to mapper of %s", m.schema.typeName)
	}
	if r.schema != m.schema {
		return fmt.Errorf("record of %s passed to mapper of %s", r.schema.typeName, m.schema.typeName)
	}
	return nil
}

func (m *Mapper) keyOf(r *Record, op string) (any, error) {
	pk, ok := r.values[m.schema.primaryKey.name]
	if !ok || emptyKey(pk) {
		return nil, fmt.Errorf("%s %s: %w", op, m.schema.table, ErrMissingPrimaryKey)
	}
	return pk, nil
}

func emptyKey(v any) bool {
	switch k := v.(type) {
	case nil:
		return true
	case string:
		return k == ""
	case []byte:
		return len(k) == 0
	}
	return false
}

func quote(name string) string {
	return "`" + name + "`"
}
