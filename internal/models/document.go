// Package models defines the dynamic record types served by the application
// layer.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
)

// IDField is the document field holding the record id.
const IDField = "id"

// Document is a schemaless record: an object whose "id" field is its
// identity. It is stored under whatever type tag the caller names.
type Document map[string]any

// RecordID returns the id field in its string form. Integer ids keep every
// digit.
func (d Document) RecordID() string {
	v, ok := d[IDField]
	if !ok || v == nil {
		return ""
	}
	switch id := v.(type) {
	case string:
		return id
	case json.Number:
		return id.String()
	case int64:
		return strconv.FormatInt(id, 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}

// UnmarshalJSON decodes d keeping integers exact: they become int64, or
// uint64 when too large for int64. Other numbers become float64. Integers
// beyond uint64 stay json.Number.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	if m != nil {
		normalize(m)
	}
	*d = m
	return nil
}

// Equal reports whether both documents encode to the same JSON. Numbers that
// decoded to different Go types still compare equal; values of different
// JSON kinds never do.
func (d Document) Equal(o Document) bool {
	a, errA := json.Marshal(map[string]any(d))
	b, errB := json.Marshal(map[string]any(o))
	if errA != nil || errB != nil {
		return reflect.DeepEqual(d, o)
	}
	return bytes.Equal(a, b)
}

func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, e := range x {
			x[k] = normalize(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	case json.Number:
		return number(x)
	default:
		return v
	}
}

func number(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return u
	}
	if f, err := n.Float64(); err == nil && !integral(n) {
		return f
	}
	return n
}

// integral reports whether n is written as a plain integer.
func integral(n json.Number) bool {
	for _, c := range n.String() {
		if c == '.' || c == 'e' || c == 'E' {
			return false
		}
	}
	return true
}

// Envelope is a stored document together with its location and checksum.
type Envelope struct {
	Type     string   `json:"type"`
	ID       string   `json:"id"`
	Checksum string   `json:"checksum"`
	Data     Document `json:"data"`
}

// Summary is a lightweight entry returned by listings of type tags.
type Summary struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}
