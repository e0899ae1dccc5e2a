package engine

import (
	"fmt"
	"strings"

	"github.com/entrhq/formrunner/pkg/mapping"
)

// Record is one input row. Row is its identity: the 1-based data row number
// in the source table, stable across runs over the same file.
type Record struct {
	Row    int
	Values map[string]string
}

// Get returns the raw value of column.
func (r Record) Get(column string) (string, bool) {
	v, ok := r.Values[column]
	return v, ok
}

// ResolutionKind classifies a ResolutionError.
type ResolutionKind int

const (
	// Missing: no value, no default, and the field is required.
	Missing ResolutionKind = iota + 1
)

// ResolutionError is returned by Resolve when a field cannot get a value.
type ResolutionError struct {
	Field string
	Kind  ResolutionKind
}

func (e *ResolutionError) Error() string {
	switch e.Kind {
	case Missing:
		return fmt.Sprintf("Missing required field: %s", e.Field)
	default:
		return fmt.Sprintf("cannot resolve field %s", e.Field)
	}
}

// Resolve produces the value to submit for spec from rec.
//
// A present, non-blank column value is coerced to the field type. Otherwise
// the default is used when set. A required field with neither yields a
// Missing ResolutionError; an optional one resolves to Absent.
func Resolve(rec Record, spec mapping.FieldSpec) (Value, error) {
	coerce, ok := coercions[spec.Type]
	if !ok {
		return nil, fmt.Errorf("field %s: unsupported type %q", spec.Name, spec.Type)
	}

	if raw, ok := rec.Get(spec.Name); ok && strings.TrimSpace(raw) != "" {
		return coerce(raw), nil
	}
	if spec.Default != nil {
		return coerce(*spec.Default), nil
	}
	if spec.Required {
		return nil, &ResolutionError{Field: spec.Name, Kind: Missing}
	}
	return Absent, nil
}
