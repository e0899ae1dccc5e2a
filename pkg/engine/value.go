package engine

import (
	"strconv"
	"strings"

	"github.com/entrhq/formrunner/pkg/mapping"
)

// Value is a resolved field value. The set of implementations is closed:
// Text, Choice, Checkbox and Absent.
type Value interface {
	String() string
	isValue()
}

// Text is the value of a text input.
type Text string

// Choice is the option value of a select element.
type Choice string

// Checkbox is the desired checked state of a checkbox.
type Checkbox bool

type absent struct{}

// Absent means the field has no value and must be left untouched, which is
// different from setting it to an empty string.
var Absent Value = absent{}

func (v Text) String() string { return string(v) }

func (v Choice) String() string { return string(v) }

func (v Checkbox) String() string { return strconv.FormatBool(bool(v)) }

func (absent) String() string { return "" }

func (Text) isValue()     {}
func (Choice) isValue()   {}
func (Checkbox) isValue() {}
func (absent) isValue()   {}

// IsAbsent reports whether v is the Absent sentinel.
func IsAbsent(v Value) bool {
	_, ok := v.(absent)
	return ok
}

// coercions holds exactly one conversion per field type.
var coercions = map[mapping.FieldType]func(raw string) Value{
	mapping.FieldText:     func(raw string) Value { return Text(raw) },
	mapping.FieldSelect:   func(raw string) Value { return Choice(raw) },
	mapping.FieldCheckbox: func(raw string) Value { return Checkbox(Truthy(raw)) },
}

// Truthy reports whether raw reads as a checked checkbox: one of
// 1/true/yes/y/on/t in any case, or any other non-zero number.
func Truthy(raw string) bool {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "1", "true", "yes", "y", "on", "t":
		return true
	case "", "0", "false", "no", "n", "off", "f":
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f != 0
	}
	return false
}
