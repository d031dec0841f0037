package orm

import (
	"fmt"
	"strings"
	"sync"
)

// Registry collects schemas in registration order.
type Registry struct {
	mu      sync.RWMutex
	schemas []*Schema
	byType  map[string]*Schema
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[string]*Schema)}
}

// Register adds schemas; a type name or table registered twice is a SchemaError.
func (r *Registry) Register(schemas ...*Schema) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range schemas {
		if _, dup := r.byType[s.typeName]; dup {
			return &SchemaError{Type: s.typeName, Err: fmt.Errorf("type already registered")}
		}
		for _, existing := range r.schemas {
			if existing.table == s.table {
				return &SchemaError{Type: s.typeName, Err: fmt.Errorf("table %q already used by %s", s.table, existing.typeName)}
			}
		}
		r.byType[s.typeName] = s
		r.schemas = append(r.schemas, s)
	}
	return nil
}

// Lookup returns the schema registered under a type name.
func (r *Registry) Lookup(typeName string) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byType[typeName]
	return s, ok
}

// Schemas returns all schemas in registration order.
func (r *Registry) Schemas() []*Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Schema(nil), r.schemas...)
}

// DDL renders CREATE TABLE statements for every registered schema.
func (r *Registry) DDL() string {
	schemas := r.Schemas()
	parts := make([]string, len(schemas))
	for i, s := range schemas {
		parts[i] = GenerateDDL(s)
	}
	return strings.Join(parts, "\n\n")
}
