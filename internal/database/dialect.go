package database

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect is the placeholder syntax a driver expects.
type Dialect int

const (
	// Question keeps "?" placeholders (SQLite, MySQL).
	Question Dialect = iota
	// Dollar numbers placeholders as $1, $2, ... (PostgreSQL drivers).
	Dollar
)

func (d Dialect) String() string {
	switch d {
	case Question:
		return "question"
	case Dollar:
		return "dollar"
	default:
		return "dialect(" + strconv.Itoa(int(d)) + ")"
	}
}

// ParseDialect resolves a placeholder style by name.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "question", "?":
		return Question, nil
	case "dollar", "$":
		return Dollar, nil
	}
	return Question, fmt.Errorf("unknown placeholder style %q", name)
}

// DialectForDriver returns the placeholder style registered drivers expect.
func DialectForDriver(driver string) Dialect {
	switch driver {
	case "postgres", "pgx", "pgx/v5":
		return Dollar
	default:
		return Question
	}
}

// Rewrite converts "?" placeholders in query to the dialect's syntax. Question
// marks inside quoted literals, quoted identifiers, line comments and block
// comments are left alone.
func (d Dialect) Rewrite(query string) string {
	if d == Question || !strings.Contains(query, "?") {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"' || c == '`':
			quote = c
		case c == '-' && i+1 < len(query) && query[i+1] == '-':
			end := strings.IndexByte(query[i:], '\n')
			if end < 0 {
				end = len(query) - i
			}
			b.WriteString(query[i : i+end])
			i += end - 1
			continue
		case c == '/' && i+1 < len(query) && query[i+1] == '*':
			end := strings.Index(query[i+2:], "*/")
			if end < 0 {
				end = len(query) - i
			} else {
				end += 4
			}
			b.WriteString(query[i : i+end])
			i += end - 1
			continue
		case c == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}
