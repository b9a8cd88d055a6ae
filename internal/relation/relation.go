// Package relation declares embedded records and flattens record graphs so a
// single save persists a record together with everything it owns.
package relation

import (
	"reflect"

	"github.com/starford/folio/internal/record"
)

// Relation is one named edge from a record to the records it embeds.
type Relation struct {
	Name    string
	Records []record.Record
}

// Relational is implemented by records that embed other records.
type Relational interface {
	Relations() []Relation
}

// HasOne declares a single embedded record. A nil record yields an empty
// relation.
func HasOne(name string, r record.Record) Relation {
	if isNil(r) {
		return Relation{Name: name}
	}
	return Relation{Name: name, Records: []record.Record{r}}
}

// HasMany declares a list of embedded records. Nil elements are dropped.
func HasMany[R record.Record](name string, rs []R) Relation {
	out := make([]record.Record, 0, len(rs))
	for _, r := range rs {
		if isNil(r) {
			continue
		}
		out = append(out, r)
	}
	return Relation{Name: name, Records: out}
}

// Flatten returns roots followed by every record reachable through their
// relations, each identity exactly once. A root always wins over an embedded
// copy of the same identity, the last of several equal roots wins, and the
// first embedded occurrence wins over later ones. Each subtree is walked once,
// which also terminates reference cycles.
func Flatten(roots ...record.Record) []record.Record {
	pos := make(map[record.Identity]int, len(roots))
	out := make([]record.Record, 0, len(roots))
	for _, r := range roots {
		if isNil(r) {
			continue
		}
		id := record.Of(r)
		if i, ok := pos[id]; ok {
			out[i] = r
			continue
		}
		pos[id] = len(out)
		out = append(out, r)
	}

	seen := make(map[record.Identity]struct{}, len(pos))
	for id := range pos {
		seen[id] = struct{}{}
	}

	var walk func(r record.Record)
	walk = func(r record.Record) {
		for _, rel := range relationsOf(r) {
			for _, child := range rel.Records {
				if isNil(child) {
					continue
				}
				id := record.Of(child)
				if _, ok := seen[id]; ok {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, child)
				walk(child)
			}
		}
	}

	rootCount := len(out)
	for i := 0; i < rootCount; i++ {
		walk(out[i])
	}
	return out
}

func relationsOf(r record.Record) []Relation {
	if rel, ok := r.(Relational); ok {
		return rel.Relations()
	}
	if rel, ok := record.Unwrap(r).(Relational); ok {
		return rel.Relations()
	}
	return nil
}

func isNil(r record.Record) bool {
	if r == nil {
		return true
	}
	v := reflect.ValueOf(r)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}
