package dataset

import (
	"fmt"
	"strings"
)

// ParseError indicates the source could not be read as a table
// (malformed rows, bad quoting, wrong encoding, no header row).
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Role identifies a semantic column.
type Role string

const (
	RoleText  Role = "text"
	RoleLabel Role = "label"
)

// MissingColumn describes one role that matched no header.
type MissingColumn struct {
	Role     Role
	Accepted []string
}

// SchemaError indicates that a required column was not found among the
// candidate header names.
type SchemaError struct {
	Source  string
	Missing []MissingColumn
	Headers []string
}

func (e *SchemaError) Error() string {
	parts := make([]string, 0, len(e.Missing))
	for _, m := range e.Missing {
		parts = append(parts, fmt.Sprintf("missing %s column (accepted: %s)", m.Role, strings.Join(m.Accepted, ", ")))
	}
	msg := fmt.Sprintf("%s: %s", e.Source, strings.Join(parts, "; "))
	if len(e.Headers) > 0 {
		msg += fmt.Sprintf("; found columns: %s", strings.Join(e.Headers, ", "))
	}
	return msg
}

// MissingRole reports whether r is among the missing roles.
func (e *SchemaError) MissingRole(r Role) bool {
	for _, m := range e.Missing {
		if m.Role == r {
			return true
		}
	}
	return false
}
