package takarik

import (
	"fmt"
	"sort"
	"strings"
)

// Eq is a key-value condition input. Each pair becomes one SQL comparison:
// a scalar value compares with "=", a nil value with "IS NULL", an []any
// value with "IN (...)", and a Range value with its range form. Pairs are
// emitted in sorted key order so generated SQL is deterministic.
type Eq map[string]any

// Range is a condition value matching values between Min and Max.
// Inclusive ranges emit "BETWEEN ? AND ?"; with ExcludeEnd set, the range
// emits ">= ? AND < ?".
type Range struct {
	Min        any
	Max        any
	ExcludeEnd bool
}

// fragment is one textual SQL condition plus its positional parameters.
// The or tag decides the connector in front of the fragment when the final
// clause is assembled.
type fragment struct {
	sql  string
	args []any
	or   bool
}

// conditions is an ordered predicate accumulator. The parameter list order
// always matches the `?` placeholder order of the assembled clause.
type conditions struct {
	frags []fragment
}

func (c *conditions) empty() bool { return len(c.frags) == 0 }

func (c *conditions) clone() conditions {
	frags := make([]fragment, len(c.frags))
	copy(frags, c.frags)
	return conditions{frags: frags}
}

// where appends an AND-connected fragment.
func (c *conditions) where(cond any, args []any) error {
	return c.append(cond, args, false, false)
}

// or appends an OR-connected fragment.
func (c *conditions) or(cond any, args []any) error {
	return c.append(cond, args, true, false)
}

// not appends a negated AND-connected fragment.
func (c *conditions) not(cond any, args []any) error {
	return c.append(cond, args, false, true)
}

func (c *conditions) append(cond any, args []any, or, negate bool) error {
	frag, err := buildFragment(cond, args, negate)
	if err != nil {
		return err
	}
	frag.or = or
	c.frags = append(c.frags, frag)
	return nil
}

// clause assembles the accumulated fragments into a single condition string
// and its parameter list. A single plain fragment is emitted unparenthesized;
// otherwise every fragment is parenthesized and concatenated with its
// connector in insertion order.
func (c *conditions) clause() (string, []any) {
	switch {
	case len(c.frags) == 0:
		return "", nil
	case len(c.frags) == 1 && !c.frags[0].or:
		return c.frags[0].sql, c.frags[0].args
	}
	var (
		sb   strings.Builder
		args []any
	)
	for i, f := range c.frags {
		if i > 0 {
			if f.or {
				sb.WriteString(" OR ")
			} else {
				sb.WriteString(" AND ")
			}
		}
		sb.WriteString("(")
		sb.WriteString(f.sql)
		sb.WriteString(")")
		args = append(args, f.args...)
	}
	return sb.String(), args
}

// buildFragment turns one condition input into a fragment.
func buildFragment(cond any, args []any, negate bool) (fragment, error) {
	switch v := cond.(type) {
	case string:
		if n := strings.Count(v, "?"); n != len(args) {
			return fragment{}, NewInvalidConditionError(
				fmt.Sprintf("fragment has %d placeholders but %d parameters", n, len(args)), v)
		}
		sql := v
		if negate {
			sql = "NOT (" + sql + ")"
		}
		return fragment{sql: sql, args: args}, nil
	case Eq:
		if len(args) > 0 {
			return fragment{}, NewInvalidConditionError("parameters are not allowed with a condition map", cond)
		}
		return buildEq(v, negate)
	default:
		return fragment{}, NewInvalidConditionError("unsupported condition type", cond)
	}
}

// buildEq renders a condition map in sorted key order.
func buildEq(eq Eq, negate bool) (fragment, error) {
	if len(eq) == 0 {
		return fragment{}, NewInvalidConditionError("empty condition map", eq)
	}
	keys := make([]string, 0, len(eq))
	for k := range eq {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var (
		parts []string
		args  []any
	)
	for _, col := range keys {
		part, a, err := buildComparison(col, eq[col], negate)
		if err != nil {
			return fragment{}, err
		}
		parts = append(parts, part)
		args = append(args, a...)
	}
	return fragment{sql: strings.Join(parts, " AND "), args: args}, nil
}

// buildComparison renders one column comparison. Negation inverts null
// checks and membership checks directly and wraps everything else in NOT.
func buildComparison(col string, value any, negate bool) (string, []any, error) {
	switch v := value.(type) {
	case nil:
		if negate {
			return col + " IS NOT NULL", nil, nil
		}
		return col + " IS NULL", nil, nil
	case []any:
		if len(v) == 0 {
			return "", nil, NewInvalidConditionError("empty membership list for column "+col, value)
		}
		marks := strings.Repeat("?,", len(v))
		marks = marks[:len(marks)-1]
		if negate {
			return col + " NOT IN (" + marks + ")", v, nil
		}
		return col + " IN (" + marks + ")", v, nil
	case Range:
		if v.Min == nil || v.Max == nil {
			return "", nil, NewInvalidConditionError("range bounds must both be set for column "+col, value)
		}
		var part string
		if v.ExcludeEnd {
			part = col + " >= ? AND " + col + " < ?"
			if negate {
				part = "NOT (" + part + ")"
			}
		} else {
			part = col + " BETWEEN ? AND ?"
			if negate {
				part = "NOT (" + part + ")"
			}
		}
		return part, []any{v.Min, v.Max}, nil
	default:
		if negate {
			return "NOT (" + col + " = ?)", []any{value}, nil
		}
		return col + " = ?", []any{value}, nil
	}
}
