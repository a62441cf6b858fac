package schemadsl

import (
	"fmt"
	"strings"
)

// FieldError describes a single validation problem, optionally carrying a
// suggested fix for an undeclared reference (see closestLabel/closestType).
type FieldError struct {
	Field      string
	Message    string
	Suggestion string
}

func (f FieldError) String() string {
	if f.Suggestion != "" {
		return fmt.Sprintf("%s: %s (did you mean %q?)", f.Field, f.Message, f.Suggestion)
	}
	return fmt.Sprintf("%s: %s", f.Field, f.Message)
}

// SchemaInvalid is returned by [Parse] when structural, cross-reference, or
// path-syntax validation finds at least one problem. Advisory warnings never
// cause SchemaInvalid on their own.
type SchemaInvalid struct {
	Errors   []FieldError
	Warnings []FieldError
}

func (e *SchemaInvalid) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.String()
	}
	return fmt.Sprintf("schemadsl: %d validation error(s): %s", len(e.Errors), strings.Join(parts, "; "))
}
