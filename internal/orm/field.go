package orm

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Kind is the value family of a column.
type Kind int

const (
	KindInteger Kind = iota
	KindString
	KindFloat
	KindBoolean
	KindText
	KindBlob
	KindVersion
)

var kindNames = map[Kind]string{
	KindInteger: "IntegerField",
	KindString:  "StringField",
	KindFloat:   "FloatField",
	KindBoolean: "BooleanField",
	KindText:    "TextField",
	KindBlob:    "BlobField",
	KindVersion: "VersionField",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// kindDefaults holds the literal default and DDL type of each kind.
var kindDefaults = map[Kind]struct {
	value any
	ddl   string
}{
	KindInteger: {int64(0), "bigint"},
	KindString:  {"", "varchar(255)"},
	KindFloat:   {0.0, "real"},
	KindBoolean: {false, "bool"},
	KindText:    {"", "text"},
	KindBlob:    {"", "blob"},
	KindVersion: {int64(0), "bigint"},
}

type defaultMode int

const (
	defaultUnset defaultMode = iota
	defaultLiteral
	defaultProducer
)

// declarationSeq orders fields across all declarations in the process.
var declarationSeq atomic.Int64

// Field describes one column. Build fields with the kind constructors
// (Integer, String, ...) and options; a Schema copies them on Declare.
type Field struct {
	attr  string
	name  string
	kind  Kind
	order int64

	mode     defaultMode
	literal  any
	producer func() any

	primaryKey bool
	nullable   bool
	updatable  bool
	insertable bool
	ddl        string

	foreignKey    bool
	foreignTable  string
	foreignColumn string
}

// Option configures a Field.
type Option func(*Field)

// Column sets the column name when it differs from the attribute name.
func Column(name string) Option {
	return func(f *Field) { f.name = name }
}

// Default sets a literal default value.
func Default(v any) Option {
	return func(f *Field) {
		f.mode = defaultLiteral
		f.literal = v
		f.producer = nil
	}
}

// DefaultFunc sets a producer evaluated every time the default is read.
func DefaultFunc(fn func() any) Option {
	return func(f *Field) {
		f.mode = defaultProducer
		f.producer = fn
		f.literal = nil
	}
}

// PrimaryKey marks the field as the table's primary key.
func PrimaryKey() Option {
	return func(f *Field) { f.primaryKey = true }
}

// Nullable allows NULL in the column.
func Nullable() Option {
	return func(f *Field) { f.nullable = true }
}

// Updatable controls whether Update writes the column.
func Updatable(v bool) Option {
	return func(f *Field) { f.updatable = v }
}

// Insertable controls whether Insert writes the column.
func Insertable(v bool) Option {
	return func(f *Field) { f.insertable = v }
}

// DDL overrides the column type used in CREATE TABLE.
func DDL(ddl string) Option {
	return func(f *Field) { f.ddl = ddl }
}

// ForeignKey declares that the column references table(column).
func ForeignKey(table, column string) Option {
	return func(f *Field) {
		f.foreignKey = true
		f.foreignTable = table
		f.foreignColumn = column
	}
}

func newField(kind Kind, attr string, opts ...Option) *Field {
	f := &Field{
		attr:       attr,
		kind:       kind,
		order:      declarationSeq.Add(1),
		updatable:  true,
		insertable: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.name == "" {
		f.name = attr
	}
	if f.ddl == "" {
		f.ddl = kindDefaults[kind].ddl
	}
	return f
}

// Integer declares a bigint column defaulting to 0.
func Integer(attr string, opts ...Option) *Field { return newField(KindInteger, attr, opts...) }

// String declares a varchar(255) column defaulting to "".
func String(attr string, opts ...Option) *Field { return newField(KindString, attr, opts...) }

// Float declares a real column defaulting to 0.0.
func Float(attr string, opts ...Option) *Field { return newField(KindFloat, attr, opts...) }

// Boolean declares a bool column defaulting to false.
func Boolean(attr string, opts ...Option) *Field { return newField(KindBoolean, attr, opts...) }

// Text declares a text column defaulting to "".
func Text(attr string, opts ...Option) *Field { return newField(KindText, attr, opts...) }

// Blob declares a blob column defaulting to "".
func Blob(attr string, opts ...Option) *Field { return newField(KindBlob, attr, opts...) }

// Version declares a bigint version counter starting at 0.
func Version(attr string) *Field { return newField(KindVersion, attr, Default(int64(0))) }

// Attr returns the attribute name the field was declared under
func (f *Field) Attr() string { return f.attr }

// Name returns the column name
func (f *Field) Name() string { return f.name }

// Kind returns the value family
func (f *Field) Kind() Kind { return f.kind }

// Order returns the declaration sequence number
func (f *Field) Order() int64 { return f.order }

// IsPrimaryKey reports whether the field is the primary key
func (f *Field) IsPrimaryKey() bool { return f.primaryKey }

// IsNullable reports whether the column allows NULL
func (f *Field) IsNullable() bool { return f.nullable }

// IsUpdatable reports whether Update writes the column
func (f *Field) IsUpdatable() bool { return f.updatable }

// IsInsertable reports whether Insert writes the column
func (f *Field) IsInsertable() bool { return f.insertable }

// DDLType returns the column type used in CREATE TABLE
func (f *Field) DDLType() string { return f.ddl }

// ForeignKey returns the referenced table and column, if any
func (f *Field) ForeignKey() (table, column string, ok bool) {
	return f.foreignTable, f.foreignColumn, f.foreignKey
}

// HasDefault reports whether the caller declared a default explicitly.
func (f *Field) HasDefault() bool { return f.mode != defaultUnset }

// DefaultValue returns the value used when a record lacks this column.
// Producers run on every call. Without an explicit default the kind default
// applies, except for primary keys, which report ok=false.
func (f *Field) DefaultValue() (v any, ok bool) {
	switch f.mode {
	case defaultProducer:
		return f.producer(), true
	case defaultLiteral:
		return f.literal, true
	}
	if f.primaryKey {
		return nil, false
	}
	return kindDefaults[f.kind].value, true
}

func (f *Field) String() string {
	var def string
	switch f.mode {
	case defaultProducer:
		def = "func"
	case defaultLiteral:
		def = fmt.Sprint(f.literal)
	default:
		def = "-"
	}
	parts := []string{fmt.Sprintf("<%s:%s,%s,default(%s),", f.kind, f.name, f.ddl, def)}
	if f.primaryKey {
		parts = append(parts, "PK")
	}
	if f.nullable {
		parts = append(parts, "N")
	}
	if f.updatable {
		parts = append(parts, "U")
	}
	if f.insertable {
		parts = append(parts, "I")
	}
	if f.foreignKey {
		parts = append(parts, fmt.Sprintf("FK %s.%s", f.foreignTable, f.foreignColumn))
	}
	return strings.Join(parts, " ") + ">"
}
