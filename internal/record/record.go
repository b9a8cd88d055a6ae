// Package record type-erases heterogeneous records into a type tag, an identity
// and an encode capability, so storage code can handle every record uniformly.
package record

import (
	"fmt"
	"reflect"

	"github.com/starford/folio/internal/apperr"
)

// Record is anything the store can persist. RecordID must be a lossless,
// stable string form of the record's natural key.
type Record interface {
	RecordID() string
}

// Tagger lets a record choose its directory name instead of the Go type name.
type Tagger interface {
	TypeTag() string
}

// Identity uniquely addresses a stored record.
type Identity struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (i Identity) String() string {
	return i.Type + "/" + i.ID
}

// Encoded is a record reduced to its identity and serialized payload.
type Encoded struct {
	Identity
	Data []byte
}

// Of returns the identity of r.
func Of(r Record) Identity {
	return Identity{Type: TagOf(r), ID: r.RecordID()}
}

// TagOf returns the type tag of r: its TypeTag when it is a Tagger, otherwise
// the name of its Go type with pointers stripped.
func TagOf(r Record) string {
	if t, ok := r.(Tagger); ok {
		return t.TypeTag()
	}
	return typeName(reflect.TypeOf(r))
}

// TagFor returns the type tag records of type T are stored under.
func TagFor[T any]() string {
	typ := reflect.TypeFor[T]()
	if typ.Kind() == reflect.Pointer {
		if t, ok := reflect.New(typ.Elem()).Interface().(Tagger); ok {
			return t.TypeTag()
		}
		return typeName(typ)
	}
	var zero T
	if t, ok := any(zero).(Tagger); ok {
		return t.TypeTag()
	}
	if t, ok := reflect.New(typ).Interface().(Tagger); ok {
		return t.TypeTag()
	}
	return typeName(typ)
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

type retagged struct {
	Record
	tag string
}

func (r retagged) TypeTag() string { return r.tag }

func (r retagged) Unwrap() Record { return r.Record }

// WithTag stores r under tag regardless of its Go type. The payload is still
// the encoding of r itself.
func WithTag(tag string, r Record) Record {
	return retagged{Record: Unwrap(r), tag: tag}
}

// Unwrap strips WithTag wrappers and returns the underlying record.
func Unwrap(r Record) Record {
	for {
		u, ok := r.(interface{ Unwrap() Record })
		if !ok {
			return r
		}
		r = u.Unwrap()
	}
}

// Encode computes the wire form of r with s. The bytes are derived from the
// current value on every call and never cached on the record.
func Encode(s Serializer, r Record) (Encoded, error) {
	id := Of(r)
	if id.Type == "" {
		return Encoded{}, fmt.Errorf("record: %T has no type tag: %w", Unwrap(r), apperr.ErrInvalidID)
	}
	if id.ID == "" {
		return Encoded{}, fmt.Errorf("record: %s has an empty id: %w", id.Type, apperr.ErrInvalidID)
	}
	data, err := s.Marshal(Unwrap(r))
	if err != nil {
		return Encoded{}, fmt.Errorf("record: encode %s: %w", id, err)
	}
	return Encoded{Identity: id, Data: data}, nil
}

// Decode unmarshals data into a fresh T.
func Decode[T any](s Serializer, data []byte) (T, error) {
	var v T
	if err := s.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
