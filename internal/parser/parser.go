// Package parser compiles the filter and sort expressions accepted by the HTTP
// API, the MCP tools and the CLI into predicates and comparators over
// documents.
//
// A filter is a comma-separated list of clauses that must all hold:
//
//	field=value    printed field value equals value
//	field!=value   printed field value differs from value
//	field~glob     printed field value matches the glob pattern
//
// A sort is a comma-separated list of fields, each optionally prefixed with
// "-" for descending order. Fields may use dots to reach into nested objects.
package parser

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// Clause is one parsed filter condition.
type Clause struct {
	Field string
	Op    string
	Value string

	pattern glob.Glob
}

// Filter is a conjunction of clauses. The zero value matches everything.
type Filter struct {
	Clauses []Clause
}

// Filter operators.
const (
	OpEq    = "="
	OpNotEq = "!="
	OpGlob  = "~"
)

// ParseFilter compiles expr. An empty expression yields an empty filter.
func ParseFilter(expr string) (*Filter, error) {
	f := &Filter{}
	for _, part := range splitList(expr) {
		c, err := parseClause(part)
		if err != nil {
			return nil, err
		}
		f.Clauses = append(f.Clauses, c)
	}
	return f, nil
}

func parseClause(s string) (Clause, error) {
	// The first operator in the clause splits field from value.
	for i := 0; i < len(s); i++ {
		var op string
		switch {
		case strings.HasPrefix(s[i:], OpNotEq):
			op = OpNotEq
		case s[i] == '=':
			op = OpEq
		case s[i] == '~':
			op = OpGlob
		default:
			continue
		}
		c := Clause{
			Field: strings.TrimSpace(s[:i]),
			Op:    op,
			Value: strings.TrimSpace(s[i+len(op):]),
		}
		if c.Field == "" {
			return Clause{}, fmt.Errorf("parser: clause %q has no field", s)
		}
		if op == OpGlob {
			g, err := glob.Compile(c.Value)
			if err != nil {
				return Clause{}, fmt.Errorf("parser: clause %q: %w", s, err)
			}
			c.pattern = g
		}
		return c, nil
	}
	return Clause{}, fmt.Errorf("parser: clause %q has no operator", s)
}

// Empty reports whether the filter has no clauses.
func (f *Filter) Empty() bool {
	return f == nil || len(f.Clauses) == 0
}

// Match reports whether doc satisfies every clause. A missing field only
// satisfies "!=".
func (f *Filter) Match(doc map[string]any) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Clauses {
		v, ok := Lookup(doc, c.Field)
		s := Printed(v)
		switch c.Op {
		case OpEq:
			if !ok || s != c.Value {
				return false
			}
		case OpNotEq:
			if ok && s == c.Value {
				return false
			}
		case OpGlob:
			if !ok || !c.pattern.Match(s) {
				return false
			}
		}
	}
	return true
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	parts := make([]string, len(f.Clauses))
	for i, c := range f.Clauses {
		parts[i] = c.Field + c.Op + c.Value
	}
	return strings.Join(parts, ",")
}

// SortKey is one field of a sort expression.
type SortKey struct {
	Field string
	Desc  bool
}

// ParseSort compiles expr into sort keys. An empty expression yields none.
func ParseSort(expr string) ([]SortKey, error) {
	var keys []SortKey
	for _, part := range splitList(expr) {
		k := SortKey{Field: part}
		switch {
		case strings.HasPrefix(part, "-"):
			k = SortKey{Field: part[1:], Desc: true}
		case strings.HasPrefix(part, "+"):
			k.Field = part[1:]
		}
		if k.Field == "" {
			return nil, fmt.Errorf("parser: sort key %q has no field", part)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Comparator returns a comparator ordering documents by keys, or nil when keys
// is empty. Missing fields sort first; numbers compare numerically; anything
// else compares by its printed form.
func Comparator(keys []SortKey) func(a, b map[string]any) int {
	if len(keys) == 0 {
		return nil
	}
	return func(a, b map[string]any) int {
		for _, k := range keys {
			av, aok := Lookup(a, k.Field)
			bv, bok := Lookup(b, k.Field)
			var c int
			switch {
			case !aok && !bok:
				c = 0
			case !aok:
				c = -1
			case !bok:
				c = 1
			default:
				c = compareValues(av, bv)
			}
			if k.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	}
}

func compareValues(a, b any) int {
	af, aok := number(a)
	bf, bok := number(b)
	if aok && bok {
		return cmp.Compare(af, bf)
	}
	return strings.Compare(Printed(a), Printed(b))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Lookup resolves a dotted field path inside doc.
func Lookup(doc map[string]any, path string) (any, bool) {
	var cur any = doc
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[seg]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Printed is the string form values are compared by.
func Printed(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

func splitList(expr string) []string {
	var out []string
	for _, p := range strings.Split(expr, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
