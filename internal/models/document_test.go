package models

import (
	"encoding/json"
	"testing"
)

func TestDocument_RecordID(t *testing.T) {
	cases := []struct {
		doc  Document
		want string
	}{
		{Document{"id": "abc"}, "abc"},
		{Document{"id": float64(42)}, "42"},
		{Document{"id": 7}, "7"},
		{Document{"id": int64(-3)}, "-3"},
		{Document{"id": uint64(12345678901234567890)}, "12345678901234567890"},
		{Document{"id": json.Number("123456789012345678901234567890")}, "123456789012345678901234567890"},
		{Document{"id": nil}, ""},
		{Document{"name": "x"}, ""},
	}
	for _, c := range cases {
		if got := c.doc.RecordID(); got != c.want {
			t.Errorf("RecordID(%v) = %q, want %q", c.doc, got, c.want)
		}
	}
}

func TestDocument_Equal(t *testing.T) {
	a := Document{"id": "a", "n": 1, "tags": []any{"x"}}
	b := Document{"tags": []any{"x"}, "n": 1, "id": "a"}
	if !a.Equal(b) {
		t.Errorf("expected %v to equal %v", a, b)
	}
	if a.Equal(Document{"id": "a"}) {
		t.Error("expected documents with different fields to differ")
	}
}

func TestDocument_EqualDistinguishesKinds(t *testing.T) {
	cases := []struct {
		a, b Document
		want bool
	}{
		{Document{"v": 1}, Document{"v": "1"}, false},
		{Document{"v": []any{"x", "y"}}, Document{"v": "[x y]"}, false},
		{Document{"v": nil}, Document{"v": ""}, false},
		{Document{"v": true}, Document{"v": "true"}, false},
		{Document{"v": int64(1)}, Document{"v": float64(1)}, true},
		{Document{"v": map[string]any{"a": int64(2)}}, Document{"v": map[string]any{"a": float64(2)}}, true},
	}
	for _, c := range cases {
		if got := c.a.Equal(c.b); got != c.want {
			t.Errorf("%v.Equal(%v) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestDocument_UnmarshalKeepsIntegers(t *testing.T) {
	var d Document
	body := `{"id":12345678901234567890,"n":7,"ratio":0.5,"nested":{"big":9007199254740993},"list":[1,2.5]}`
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		t.Fatal(err)
	}
	if got := d.RecordID(); got != "12345678901234567890" {
		t.Errorf("RecordID = %q, want 12345678901234567890", got)
	}
	if d["n"] != int64(7) {
		t.Errorf("n = %#v, want int64(7)", d["n"])
	}
	if d["ratio"] != 0.5 {
		t.Errorf("ratio = %#v, want 0.5", d["ratio"])
	}
	nested := d["nested"].(map[string]any)
	if nested["big"] != int64(9007199254740993) {
		t.Errorf("nested.big = %#v, want int64(9007199254740993)", nested["big"])
	}
	list := d["list"].([]any)
	if list[0] != int64(1) || list[1] != 2.5 {
		t.Errorf("list = %#v", list)
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatal(err)
	}
	var back Document
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatal(err)
	}
	if back.RecordID() != "12345678901234567890" {
		t.Errorf("round trip id = %q", back.RecordID())
	}
}
