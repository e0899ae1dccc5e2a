package mapping

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Rule is a compiled validator. Check reports whether value satisfies it.
type Rule interface {
	Kind() string
	Check(value string) bool
}

// rawValidator is a validator entry as written in the mapping document.
type rawValidator struct {
	Type            string   `yaml:"type"`
	Kind            string   `yaml:"kind"`
	Pattern         string   `yaml:"pattern"`
	Partial         bool     `yaml:"partial"`
	Values          []string `yaml:"values"`
	CaseInsensitive bool     `yaml:"case_insensitive"`
	Min             *int     `yaml:"min"`
	Max             *int     `yaml:"max"`
	Message         string   `yaml:"message"`
}

func (v rawValidator) kind() string {
	if v.Kind != "" {
		return v.Kind
	}
	return v.Type
}

type ruleCompiler func(field string, v rawValidator) (Rule, string, error)

// compilers holds one entry per validator kind. Adding a kind means adding an
// entry here; anything else is rejected at load time.
var compilers = map[string]ruleCompiler{
	"regex":  compileRegex,
	"enum":   compileEnum,
	"length": compileLength,
}

// Kinds returns the supported validator kinds.
func Kinds() []string {
	return []string{"enum", "length", "regex"}
}

func compileValidator(field string, v rawValidator) (ValidatorSpec, error) {
	kind := v.kind()
	if kind == "" {
		return ValidatorSpec{}, fmt.Errorf("validator kind is required")
	}
	compile, ok := compilers[kind]
	if !ok {
		return ValidatorSpec{}, fmt.Errorf("unknown validator kind %q (must be one of %s)", kind, strings.Join(Kinds(), ", "))
	}
	rule, defaultMsg, err := compile(field, v)
	if err != nil {
		return ValidatorSpec{}, err
	}
	msg := v.Message
	if msg == "" {
		msg = defaultMsg
	}
	return ValidatorSpec{Kind: kind, Message: msg, Rule: rule}, nil
}

// RegexRule matches values against a compiled pattern.
type RegexRule struct {
	re *regexp.Regexp
}

func (r *RegexRule) Kind() string { return "regex" }

func (r *RegexRule) Check(value string) bool {
	return r.re.MatchString(value)
}

func compileRegex(field string, v rawValidator) (Rule, string, error) {
	if v.Pattern == "" {
		return nil, "", fmt.Errorf("regex validator requires a pattern")
	}
	expr := v.Pattern
	if !v.Partial {
		expr = "^(?:" + v.Pattern + ")$"
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, "", fmt.Errorf("invalid pattern %q: %w", v.Pattern, err)
	}
	return &RegexRule{re: re}, fmt.Sprintf("Invalid value for %s", field), nil
}

// EnumRule accepts a fixed set of values.
type EnumRule struct {
	values []string
	fold   bool
}

func (r *EnumRule) Kind() string { return "enum" }

func (r *EnumRule) Check(value string) bool {
	for _, allowed := range r.values {
		if allowed == value || (r.fold && strings.EqualFold(allowed, value)) {
			return true
		}
	}
	return false
}

func compileEnum(field string, v rawValidator) (Rule, string, error) {
	if len(v.Values) == 0 {
		return nil, "", fmt.Errorf("enum validator requires at least one value")
	}
	values := append([]string(nil), v.Values...)
	return &EnumRule{values: values, fold: v.CaseInsensitive},
		fmt.Sprintf("%s must be one of [%s]", field, strings.Join(values, " ")), nil
}

// LengthRule bounds the number of characters in a value.
// A zero Max means no upper bound.
type LengthRule struct {
	Min int
	Max int
}

func (r *LengthRule) Kind() string { return "length" }

func (r *LengthRule) Check(value string) bool {
	n := utf8.RuneCountInString(value)
	if n < r.Min {
		return false
	}
	return r.Max == 0 || n <= r.Max
}

func compileLength(field string, v rawValidator) (Rule, string, error) {
	if v.Min == nil && v.Max == nil {
		return nil, "", fmt.Errorf("length validator requires min or max")
	}
	rule := &LengthRule{}
	if v.Min != nil {
		rule.Min = *v.Min
	}
	if v.Max != nil {
		rule.Max = *v.Max
	}
	if rule.Min < 0 || rule.Max < 0 {
		return nil, "", fmt.Errorf("length bounds cannot be negative")
	}
	if rule.Max > 0 && rule.Min > rule.Max {
		return nil, "", fmt.Errorf("length min %d exceeds max %d", rule.Min, rule.Max)
	}

	var msg string
	switch {
	case rule.Max == 0:
		msg = fmt.Sprintf("%s must be at least %d characters", field, rule.Min)
	default:
		msg = fmt.Sprintf("%s must be between %d and %d characters", field, rule.Min, rule.Max)
	}
	return rule, msg, nil
}
