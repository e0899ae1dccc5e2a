package table

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/entrhq/formrunner/pkg/engine"
)

// Operator compares a column value with an operand.
type Operator string

const (
	OpEqual    Operator = "=="
	OpNotEqual Operator = "!="
	OpMatch    Operator = "~"
	OpNotMatch Operator = "!~"
)

// operators is ordered so that two-character operators win over their
// one-character prefix at the same position.
var operators = []Operator{OpEqual, OpNotEqual, OpNotMatch, OpMatch}

type condition struct {
	column  string
	op      Operator
	operand string
	pattern glob.Glob
}

func (c condition) match(rec engine.Record) bool {
	v, _ := rec.Get(c.column)
	switch c.op {
	case OpEqual:
		return v == c.operand
	case OpNotEqual:
		return v != c.operand
	case OpMatch:
		return c.pattern.Match(v)
	case OpNotMatch:
		return !c.pattern.Match(v)
	}
	return false
}

// Filter selects records by column conditions that must all hold.
type Filter struct {
	conds []condition
}

// ParseFilter parses an expression such as
//
//	status == active && email ~ "*@example.com"
//
// Conditions are joined with &&. Operands may be quoted with single or double
// quotes. The ~ and !~ operators take a glob pattern.
func ParseFilter(expr string) (*Filter, error) {
	f := &Filter{}
	if strings.TrimSpace(expr) == "" {
		return f, nil
	}
	for _, clause := range strings.Split(expr, "&&") {
		c, err := parseCondition(clause)
		if err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", expr, err)
		}
		f.conds = append(f.conds, c)
	}
	return f, nil
}

func parseCondition(clause string) (condition, error) {
	clause = strings.TrimSpace(clause)
	pos, op := -1, Operator("")
	for _, candidate := range operators {
		i := strings.Index(clause, string(candidate))
		if i < 0 {
			continue
		}
		if pos < 0 || i < pos {
			pos, op = i, candidate
		}
	}
	if pos < 0 {
		return condition{}, fmt.Errorf("condition %q has no operator (==, !=, ~, !~)", clause)
	}

	c := condition{
		column:  strings.TrimSpace(clause[:pos]),
		op:      op,
		operand: unquote(strings.TrimSpace(clause[pos+len(op):])),
	}
	if c.column == "" {
		return condition{}, fmt.Errorf("condition %q has no column", clause)
	}
	if op == OpMatch || op == OpNotMatch {
		g, err := glob.Compile(c.operand)
		if err != nil {
			return condition{}, fmt.Errorf("invalid pattern '%s': %w", c.operand, err)
		}
		c.pattern = g
	}
	return c, nil
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Match reports whether rec satisfies every condition. An empty filter
// matches everything.
func (f *Filter) Match(rec engine.Record) bool {
	if f == nil {
		return true
	}
	for _, c := range f.conds {
		if !c.match(rec) {
			return false
		}
	}
	return true
}

// Empty reports whether the filter has no conditions.
func (f *Filter) Empty() bool {
	return f == nil || len(f.conds) == 0
}

// Columns returns the columns the filter refers to.
func (f *Filter) Columns() []string {
	if f == nil {
		return nil
	}
	cols := make([]string, 0, len(f.conds))
	for _, c := range f.conds {
		cols = append(cols, c.column)
	}
	return cols
}
