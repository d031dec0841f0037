package orm

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/saltyorg/dbkit/internal/config"
	"github.com/saltyorg/dbkit/internal/database"
)

var accountSchema = MustDeclare(Declaration{
	Type:  "Account",
	Table: "accounts",
	Fields: []*Field{
		String("id", PrimaryKey(), DefaultFunc(NextIDDefault), DDL("varchar(50)")),
		String("email", Updatable(false), DDL("varchar(50)")),
		String("name", DDL("varchar(50)")),
		Boolean("admin"),
		Float("created_at", Updatable(false), DefaultFunc(Now)),
		Integer("logins", Insertable(false), Nullable()),
	},
	Hooks: &accountHooks{},
})

type accountHooks struct {
	deleted []string
}

func (h *accountHooks) BeforeInsert(_ context.Context, r *Record) error {
	if r.String("email") == "reject@example.com" {
		return errors.New("rejected")
	}
	return nil
}

func (h *accountHooks) BeforeUpdate(_ context.Context, r *Record) error {
	r.Set("name", r.String("name")+"!")
	return nil
}

func (h *accountHooks) BeforeDelete(_ context.Context, r *Record) error {
	pk, _ := r.PrimaryKey()
	h.deleted = append(h.deleted, pk.(string))
	return nil
}

func newTestMapper(t *testing.T, s *Schema) (*Mapper, *database.Engine) {
	t.Helper()
	engine, err := database.Open(config.EngineConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "test.db"),
	})
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	t.Cleanup(func() { engine.Close() })

	if _, err := engine.Exec(context.Background(), GenerateDDL(s)); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	return NewMapper(engine, s), engine
}

func TestMapper_InsertAndGet(t *testing.T) {
	m, _ := newTestMapper(t, accountSchema)
	ctx := context.Background()

	start := time.Now()
	r, err := m.Insert(ctx, m.New(map[string]any{"email": "a@example.com", "name": "Ann"}))
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	pk, ok := r.PrimaryKey()
	if !ok || pk.(string) == "" {
		t.Fatalf("expected generated primary key, got %v", pk)
	}
	if !r.Has("admin") || r.Bool("admin") {
		t.Fatal("expected admin default false to be materialized")
	}
	created := r.Float64("created_at")
	if created < float64(start.Unix())-2 || created > float64(time.Now().Unix())+2 {
		t.Fatalf("created_at %v not close to now", created)
	}
	if r.Has("logins") {
		t.Fatal("non-insertable column was materialized")
	}

	got, err := m.Get(ctx, pk)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if !got.Equal(r, "id", "email", "name", "admin", "created_at") {
		t.Fatalf("fetched %v, inserted %v", got.Values(), r.Values())
	}
	if v, ok := got.Get("logins"); !ok || v != nil {
		t.Fatalf("expected NULL logins, got %v", v)
	}
}

func TestMapper_InsertTwiceFails(t *testing.T) {
	m, _ := newTestMapper(t, accountSchema)
	ctx := context.Background()

	r, err := m.Insert(ctx, m.New(map[string]any{"email": "a@example.com"}))
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	_, err = m.Insert(ctx, r)
	var qErr *database.QueryError
	if !errors.As(err, &qErr) {
		t.Fatalf("expected QueryError on duplicate key, got %v", err)
	}
	if n, _ := m.CountAll(ctx); n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestMapper_GetMissingIsNil(t *testing.T) {
	m, _ := newTestMapper(t, accountSchema)

	r, err := m.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if r != nil {
		t.Fatalf("expected nil, got %v", r.Values())
	}
}

func TestMapper_UpdateSkipsNonUpdatable(t *testing.T) {
	m, _ := newTestMapper(t, accountSchema)
	ctx := context.Background()

	inserted, err := m.Insert(ctx, m.New(map[string]any{"email": "orig@example.com", "name": "Ann"}))
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	pk, _ := inserted.PrimaryKey()

	fetched, err := m.Get(ctx, pk)
	if err != nil || fetched == nil {
		t.Fatalf("Get returned %v, %v", fetched, err)
	}
	originalCreated := fetched.Float64("created_at")

	fetched.Set("email", "changed@example.com")
	fetched.Set("created_at", 1.0)
	fetched.Set("name", "Bob")
	fetched.Unset("admin")
	if _, err := m.Update(ctx, fetched); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if !fetched.Has("admin") {
		t.Fatal("expected admin default to be written back onto the record")
	}

	again, err := m.Get(ctx, pk)
	if err != nil || again == nil {
		t.Fatalf("Get returned %v, %v", again, err)
	}
	if again.String("email") != "orig@example.com" {
		t.Fatalf("non-updatable email changed to %q", again.String("email"))
	}
	if again.Float64("created_at") != originalCreated {
		t.Fatalf("non-updatable created_at changed to %v", again.Float64("created_at"))
	}
	if again.String("name") != "Bob!" {
		t.Fatalf("expected hook-stamped name Bob!, got %q", again.String("name"))
	}
}

func TestMapper_FindAndCount(t *testing.T) {
	m, _ := newTestMapper(t, accountSchema)
	ctx := context.Background()

	for _, email := range []string{"a@x.com", "b@x.com", "c@y.com"} {
		if _, err := m.Insert(ctx, m.New(map[string]any{"email": email, "admin": email == "c@y.com"})); err != nil {
			t.Fatalf("Insert(%s) returned error: %v", email, err)
		}
	}

	all, err := m.FindAll(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("FindAll = %d records, %v", len(all), err)
	}

	xs, err := m.FindBy(ctx, "`email` LIKE ? ORDER BY `email`", "%@x.com")
	if err != nil {
		t.Fatalf("FindBy returned error: %v", err)
	}
	if len(xs) != 2 || xs[0].String("email") != "a@x.com" {
		t.Fatalf("unexpected FindBy result: %d records", len(xs))
	}

	none, err := m.FindBy(ctx, "`email` = ?", "nobody")
	if err != nil || none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v, %v", none, err)
	}

	admin, err := m.FindFirst(ctx, "`admin` = ?", true)
	if err != nil || admin == nil || admin.String("email") != "c@y.com" {
		t.Fatalf("FindFirst returned %v, %v", admin, err)
	}
	missing, err := m.FindFirst(ctx, "`email` = ?", "nobody")
	if err != nil || missing != nil {
		t.Fatalf("expected nil from FindFirst, got %v, %v", missing, err)
	}

	if n, err := m.CountAll(ctx); err != nil || n != 3 {
		t.Fatalf("CountAll = %d, %v", n, err)
	}
	if n, err := m.CountBy(ctx, "`email` LIKE ?", "%@y.com"); err != nil || n != 1 {
		t.Fatalf("CountBy = %d, %v", n, err)
	}
}

func TestMapper_Delete(t *testing.T) {
	m, _ := newTestMapper(t, accountSchema)
	ctx := context.Background()
	hooks := accountSchema.beforeDelete.(*accountHooks)
	hooks.deleted = nil

	r, err := m.Insert(ctx, m.New(map[string]any{"email": "gone@example.com"}))
	if err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	pk, _ := r.PrimaryKey()

	deleted, err := m.Delete(ctx, r)
	if err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if deleted != r {
		t.Fatal("expected the same record back")
	}
	if len(hooks.deleted) != 1 || hooks.deleted[0] != pk {
		t.Fatalf("BeforeDelete not called with %v: %v", pk, hooks.deleted)
	}
	if got, _ := m.Get(ctx, pk); got != nil {
		t.Fatal("record still present after Delete")
	}
}

func TestMapper_HookFailureWritesNothing(t *testing.T) {
	m, _ := newTestMapper(t, accountSchema)
	ctx := context.Background()

	_, err := m.Insert(ctx, m.New(map[string]any{"email": "reject@example.com"}))
	if err == nil {
		t.Fatal("expected hook error")
	}
	if n, _ := m.CountAll(ctx); n != 0 {
		t.Fatalf("expected no rows, got %d", n)
	}
}

func TestMapper_JoinsCallerTransaction(t *testing.T) {
	m, engine := newTestMapper(t, accountSchema)
	ctx := context.Background()
	errAbort := errors.New("abort")

	err := engine.WithTransaction(ctx, func(ctx context.Context) error {
		for _, email := range []string{"one@x.com", "two@x.com"} {
			if _, err := m.Insert(ctx, m.New(map[string]any{"email": email})); err != nil {
				return err
			}
		}
		if n, err := m.CountAll(ctx); err != nil || n != 2 {
			t.Fatalf("expected 2 rows visible inside the transaction, got %d, %v", n, err)
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected errAbort, got %v", err)
	}
	if n, _ := m.CountAll(ctx); n != 0 {
		t.Fatalf("expected rollback of both inserts, got %d rows", n)
	}
	if s := engine.Stats(); s.Commits != 0 {
		t.Fatalf("nested mapper calls committed on their own: %+v", s)
	}
}

func TestMapper_MissingPrimaryKey(t *testing.T) {
	// no id producer: the string kind default must not become the key
	s := MustDeclare(Declaration{
		Type: "Note",
		Fields: []*Field{
			String("id", PrimaryKey()),
			String("email", Updatable(false)),
			Float("created_at", Updatable(false), DefaultFunc(Now)),
		},
	})
	m, _ := newTestMapper(t, s)
	ctx := context.Background()

	_, err := m.Insert(ctx, m.New(map[string]any{"email": "a@example.com"}))
	if !errors.Is(err, ErrMissingPrimaryKey) {
		t.Fatalf("expected ErrMissingPrimaryKey, got %v", err)
	}
	_, err = m.Insert(ctx, m.New(map[string]any{"id": "", "email": "a@example.com"}))
	if !errors.Is(err, ErrMissingPrimaryKey) {
		t.Fatalf("expected ErrMissingPrimaryKey for empty key, got %v", err)
	}
	if _, err := m.Update(ctx, m.New(map[string]any{"email": "a@example.com"})); !errors.Is(err, ErrMissingPrimaryKey) {
		t.Fatalf("expected ErrMissingPrimaryKey from Update, got %v", err)
	}
	if _, err := m.Delete(ctx, m.New(nil)); !errors.Is(err, ErrMissingPrimaryKey) {
		t.Fatalf("expected ErrMissingPrimaryKey from Delete, got %v", err)
	}

	r, err := m.Insert(ctx, m.New(map[string]any{"id": "n1", "email": "a@example.com"}))
	if err != nil {
		t.Fatalf("Insert with explicit key returned error: %v", err)
	}
	if time.Since(time.Unix(int64(r.Float64("created_at")), 0)) > 2*time.Second {
		t.Fatalf("created_at %v not close to now", r.Float64("created_at"))
	}

	r.Set("email", "b@example.com")
	if _, err := m.Update(ctx, r); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	got, err := m.Get(ctx, "n1")
	if err != nil || got == nil {
		t.Fatalf("Get returned %v, %v", got, err)
	}
	if got.String("email") != "a@example.com" {
		t.Fatalf("email changed to %q", got.String("email"))
	}
}

func TestMapper_RejectsForeignRecord(t *testing.T) {
	m, _ := newTestMapper(t, accountSchema)
	if _, err := m.Insert(context.Background(), recordSchema.New(nil)); err == nil {
		t.Fatal("expected error for a record of another schema")
	}
}

func TestMapper_RejectsRecordWithoutSchema(t *testing.T) {
	m, _ := newTestMapper(t, accountSchema)
	ctx := context.Background()

	if _, err := m.Insert(ctx, new(Record)); err == nil {
		t.Fatal("expected error for a record without schema")
	}
	if _, err := m.Update(ctx, &Record{}); err == nil {
		t.Fatal("expected error from Update for a record without schema")
	}
	if _, err := m.Delete(ctx, &Record{}); err == nil {
		t.Fatal("expected error from Delete for a record without schema")
	}
}

func TestMapper_FailedInsertKeepsRecordUnchanged(t *testing.T) {
	m, _ := newTestMapper(t, accountSchema)
	ctx := context.Background()

	if _, err := m.Insert(ctx, m.New(map[string]any{"id": "dup", "email": "a@example.com"})); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}

	r := m.New(map[string]any{"id": "dup", "email": "b@example.com"})
	if _, err := m.Insert(ctx, r); err == nil {
		t.Fatal("expected duplicate key to fail")
	}
	for _, name := range []string{"admin", "created_at", "name"} {
		if r.Has(name) {
			t.Fatalf("failed insert left default %s=%v on the record", name, r.Values()[name])
		}
	}

	fresh := m.New(map[string]any{"email": "reject@example.com"})
	if _, err := m.Insert(ctx, fresh); err == nil {
		t.Fatal("expected hook error")
	}
	if _, ok := fresh.PrimaryKey(); ok {
		t.Fatal("failed insert left a generated id on the record")
	}
}

func TestMapper_DefaultEngine(t *testing.T) {
	if _, err := database.Init(config.EngineConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "default.db"),
	}); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	t.Cleanup(func() { database.Shutdown() })

	ctx := context.Background()
	if _, err := database.Exec(ctx, GenerateDDL(accountSchema)); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}

	m := NewMapper(nil, accountSchema)
	if _, err := m.Insert(ctx, m.New(map[string]any{"email": "d@example.com"})); err != nil {
		t.Fatalf("Insert returned error: %v", err)
	}
	if n, err := m.CountAll(ctx); err != nil || n != 1 {
		t.Fatalf("CountAll = %d, %v", n, err)
	}
}
