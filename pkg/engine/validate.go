package engine

import (
	"github.com/entrhq/formrunner/pkg/mapping"
)

// Violation is one failed validation rule.
type Violation struct {
	Field   string
	Kind    string
	Message string
}

func (v Violation) String() string {
	return v.Message
}

// Validate runs every validator against v and returns one Violation per
// failed rule. All rules run even after one fails. Absent values are not
// validated since nothing will be sent for them.
func Validate(field string, v Value, validators []mapping.ValidatorSpec) []Violation {
	if v == nil || IsAbsent(v) {
		return nil
	}

	s := v.String()
	var violations []Violation
	for _, vs := range validators {
		if vs.Rule == nil || vs.Rule.Check(s) {
			continue
		}
		violations = append(violations, Violation{
			Field:   field,
			Kind:    vs.Kind,
			Message: vs.Message,
		})
	}
	return violations
}
