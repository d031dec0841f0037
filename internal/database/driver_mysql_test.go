package database

import (
	"errors"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/saltyorg/dbkit/internal/config"
)

func TestMySQLDSN_ParsesWithDriver(t *testing.T) {
	cfg := config.EngineConfig{
		Driver:   "mysql",
		Host:     "db.internal",
		Port:     3307,
		User:     "www-data",
		Password: "www-data",
		Database: "awesome",
	}.WithDefaults()

	parsed, err := mysql.ParseDSN(cfg.DSN())
	if err != nil {
		t.Fatalf("driver rejected DSN %q: %v", cfg.DSN(), err)
	}
	if parsed.User != "www-data" || parsed.Passwd != "www-data" {
		t.Fatalf("unexpected credentials: %s/%s", parsed.User, parsed.Passwd)
	}
	if parsed.Net != "tcp" || parsed.Addr != "db.internal:3307" {
		t.Fatalf("unexpected address: %s %s", parsed.Net, parsed.Addr)
	}
	if parsed.DBName != "awesome" {
		t.Fatalf("unexpected database: %s", parsed.DBName)
	}
	if parsed.Collation != config.DefaultCollation {
		t.Fatalf("unexpected collation: %s", parsed.Collation)
	}
	if parsed.Timeout != 10*time.Second || !parsed.ParseTime {
		t.Fatalf("unexpected timeout/parseTime: %v/%v", parsed.Timeout, parsed.ParseTime)
	}
}

func TestOpen_MySQLDriverRegistered(t *testing.T) {
	// nothing listens on port 1, so the driver is found but the ping fails
	_, err := Open(config.EngineConfig{
		Driver:   "mysql",
		Host:     "127.0.0.1",
		Port:     1,
		User:     "u",
		Database: "blog",
		Options:  map[string]string{config.OptionConnTimeout: "2s"},
	})

	var cfgErr *ConfigurationError
	if errors.As(err, &cfgErr) {
		t.Fatalf("mysql driver not registered: %v", err)
	}
	var connErr *ConnectionError
	if !errors.As(err, &connErr) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}
	if connErr.Driver != "mysql" {
		t.Fatalf("unexpected driver in error: %s", connErr.Driver)
	}
}
