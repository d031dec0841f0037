package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/saltyorg/dbkit/internal/config"
)

func testConfig(t *testing.T) config.EngineConfig {
	t.Helper()
	return config.EngineConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "test.db"),
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := Open(testConfig(t))
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	t.Cleanup(func() { e.Close() })

	if _, err := e.Exec(context.Background(), `
		CREATE TABLE items (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			price REAL
		)
	`); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	return e
}

func countItems(t *testing.T, e *Engine) int64 {
	t.Helper()
	n, err := e.QueryInt(context.Background(), "SELECT COUNT(*) FROM items")
	if err != nil {
		t.Fatalf("failed to count items: %v", err)
	}
	return n
}
