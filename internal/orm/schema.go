package orm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// BeforeInserter is implemented by hooks that stamp a record before INSERT.
type BeforeInserter interface {
	BeforeInsert(ctx context.Context, r *Record) error
}

// BeforeUpdater is implemented by hooks that run before UPDATE.
type BeforeUpdater interface {
	BeforeUpdate(ctx context.Context, r *Record) error
}

// BeforeDeleter is implemented by hooks that run before DELETE.
type BeforeDeleter interface {
	BeforeDelete(ctx context.Context, r *Record) error
}

// Declaration describes a record type ahead of time.
type Declaration struct {
	// Type names the record type; the table defaults to its lowercase form.
	Type  string
	Table string

	Fields []*Field

	// Hooks may implement BeforeInserter, BeforeUpdater and BeforeDeleter.
	Hooks any
}

// Schema is the compiled, immutable mapping of one record type.
type Schema struct {
	typeName   string
	table      string
	columns    []*Field
	byName     map[string]*Field
	primaryKey *Field
	notes      []string

	beforeInsert BeforeInserter
	beforeUpdate BeforeUpdater
	beforeDelete BeforeDeleter
}

// Declare compiles a declaration into a Schema. It fails with a SchemaError
// unless exactly one field is a primary key.
func Declare(decl Declaration) (*Schema, error) {
	if decl.Type == "" {
		return nil, &SchemaError{Type: "?", Err: fmt.Errorf("type name is required")}
	}

	s := &Schema{
		typeName: decl.Type,
		table:    decl.Table,
		byName:   make(map[string]*Field, len(decl.Fields)),
	}
	if s.table == "" {
		s.table = strings.ToLower(decl.Type)
	}

	for _, src := range decl.Fields {
		if src == nil {
			continue
		}
		f := *src
		if f.name == "" {
			return nil, &SchemaError{Type: decl.Type, Err: fmt.Errorf("field declared without a name")}
		}
		if _, dup := s.byName[f.name]; dup {
			return nil, &SchemaError{Type: decl.Type, Err: fmt.Errorf("column %q declared twice", f.name)}
		}
		if f.primaryKey {
			if s.primaryKey != nil {
				return nil, &SchemaError{Type: decl.Type, Err: fmt.Errorf("%w: %s and %s", ErrDuplicatePrimaryKey, s.primaryKey.name, f.name)}
			}
			if f.nullable {
				s.notes = append(s.notes, fmt.Sprintf("primary key %s changed to non-nullable", f.name))
				f.nullable = false
			}
			if f.updatable {
				s.notes = append(s.notes, fmt.Sprintf("primary key %s changed to non-updatable", f.name))
				f.updatable = false
			}
		}
		field := &f
		if field.primaryKey {
			s.primaryKey = field
		}
		s.byName[field.name] = field
		s.columns = append(s.columns, field)
	}

	if s.primaryKey == nil {
		return nil, &SchemaError{Type: decl.Type, Err: ErrNoPrimaryKey}
	}

	sort.SliceStable(s.columns, func(i, j int) bool {
		return s.columns[i].order < s.columns[j].order
	})

	if decl.Hooks != nil {
		s.beforeInsert, _ = decl.Hooks.(BeforeInserter)
		s.beforeUpdate, _ = decl.Hooks.(BeforeUpdater)
		s.beforeDelete, _ = decl.Hooks.(BeforeDeleter)
	}

	for _, note := range s.notes {
		log.Warn().Str("type", s.typeName).Msg(note)
	}
	log.Debug().
		Str("type", s.typeName).
		Str("table", s.table).
		Int("columns", len(s.columns)).
		Str("primary_key", s.primaryKey.name).
		Msg("Record type declared")

	return s, nil
}

// MustDeclare is Declare for package-level declarations; it panics on error.
func MustDeclare(decl Declaration) *Schema {
	s, err := Declare(decl)
	if err != nil {
		panic(err)
	}
	return s
}

// Type returns the declared type name
func (s *Schema) Type() string { return s.typeName }

// Table returns the table name
func (s *Schema) Table() string { return s.table }

// PrimaryKey returns the primary key field
func (s *Schema) PrimaryKey() *Field { return s.primaryKey }

// Columns returns the fields in declaration order.
func (s *Schema) Columns() []*Field {
	return append([]*Field(nil), s.columns...)
}

// Field looks up a column by name.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Notes returns the overrides applied while declaring, such as forcing the
// primary key non-nullable.
func (s *Schema) Notes() []string {
	return append([]string(nil), s.notes...)
}

func (s *Schema) columnNames() []string {
	names := make([]string, len(s.columns))
	for i, f := range s.columns {
		names[i] = f.name
	}
	return names
}
