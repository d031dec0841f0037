//go:build cgo

package database

// Registers the "sqlite3" driver when cgo is available.
import _ "github.com/mattn/go-sqlite3"
