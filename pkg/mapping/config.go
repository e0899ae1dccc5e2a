// Package mapping loads the declarative form mapping: the target page, the
// submit action, the success check and the ordered field specifications.
//
// A mapping document is YAML:
//
//	url: https://example.com/signup
//	submit_selector: "button[type=submit]"
//	success_check:
//	  selector: ".alert-success"
//	  text_contains: "Thank you"
//	fields:
//	  email:
//	    selector: "#email"
//	    required: true
//	    validators:
//	      - type: regex
//	        pattern: "[^@\\s]+@[^@\\s]+\\.[^@\\s]+"
//	        message: "Invalid email format"
//	  plan:
//	    selector: "select[name=plan]"
//	    type: select
//	    default: basic
//	    validators:
//	      - type: enum
//	        values: [basic, pro]
//
// Field order in the document is the order in which fields are filled.
//
// Regex validators always match the whole value: a pattern p is compiled as
// ^(?:p)$. Set "partial: true" on the validator to accept a match anywhere in
// the value instead. Enum validators compare case-sensitively unless
// "case_insensitive: true" is set.
package mapping

// FieldType is the closed set of form field kinds.
type FieldType string

const (
	// FieldText is a free text input or textarea.
	FieldText FieldType = "text"
	// FieldSelect is a <select> element; the value is the option value.
	FieldSelect FieldType = "select"
	// FieldCheckbox is a checkbox toggled to a boolean state.
	FieldCheckbox FieldType = "checkbox"
)

// Valid reports whether t is one of the known field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldSelect, FieldCheckbox:
		return true
	}
	return false
}

// Config is a parsed, validated mapping. It is read-only for a run.
type Config struct {
	// Target is the page URL opened before each record is filled.
	Target string

	// Submit describes the action that submits the form.
	Submit Action

	// SuccessCheck decides whether a submission succeeded.
	SuccessCheck SuccessCheck

	// Fields in submission order.
	Fields []FieldSpec

	// Browser, Headless and Driver are optional hints for the runner.
	Browser  string
	Headless bool
	Driver   string
}

// Action is a clickable element.
type Action struct {
	Locator string
}

// SuccessCheck is a locator plus an expected-content predicate.
// An empty TextContains only requires the element to be readable.
type SuccessCheck struct {
	Locator      string
	TextContains string
}

// FieldSpec maps one record column to one form field.
type FieldSpec struct {
	Name       string
	Locator    string
	Type       FieldType
	Required   bool
	Default    *string
	Validators []ValidatorSpec
}

// ValidatorSpec is one compiled validation rule attached to a field.
type ValidatorSpec struct {
	Kind    string
	Message string
	Rule    Rule
}
