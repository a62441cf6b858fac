package schemadsl

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Parse deserializes raw YAML into a Schema and runs all four validation
// layers. It returns a non-nil *SchemaInvalid error when structural,
// cross-reference, or path-syntax validation (layers 1-3) finds a problem;
// advisory warnings (layer 4) are returned as the second result (and also
// carried in SchemaInvalid.Warnings on failure) and never fail Parse on
// their own.
func Parse(raw []byte) (*Schema, []FieldError, error) {
	var s Schema
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, nil, fmt.Errorf("schemadsl: decode yaml: %w", err)
	}

	v := &validator{}
	v.structural(&s)
	v.crossReference(&s)
	v.pathSyntax(&s)
	v.advisories(&s)

	if len(v.errors) > 0 {
		return nil, v.warnings, &SchemaInvalid{Errors: v.errors, Warnings: v.warnings}
	}
	return &s, v.warnings, nil
}
