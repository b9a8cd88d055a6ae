package relation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/record"
)

type author struct {
	ID   string
	Name string
}

func (a *author) RecordID() string { return a.ID }

type comment struct {
	ID     string
	Author *author
}

func (c *comment) RecordID() string { return c.ID }

func (c *comment) Relations() []Relation {
	return []Relation{HasOne("author", c.Author)}
}

type post struct {
	ID       string
	Author   *author
	Comments []*comment
}

func (p *post) RecordID() string { return p.ID }

func (p *post) Relations() []Relation {
	return []Relation{
		HasOne("author", p.Author),
		HasMany("comments", p.Comments),
	}
}

// node references another node of the same type, allowing cycles.
type node struct {
	ID   string
	Next *node
}

func (n *node) RecordID() string { return n.ID }

func (n *node) Relations() []Relation {
	return []Relation{HasOne("next", n.Next)}
}

func ids(rs []record.Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = record.Of(r).String()
	}
	return out
}

func TestFlatten_RootsThenEmbedded(t *testing.T) {
	bob := &author{ID: "bob"}
	p := &post{
		ID:     "p1",
		Author: bob,
		Comments: []*comment{
			{ID: "c1", Author: &author{ID: "ann"}},
			{ID: "c2", Author: bob},
		},
	}

	got := Flatten(p)
	assert.Equal(t, []string{
		"post/p1",
		"author/bob",
		"comment/c1",
		"author/ann",
		"comment/c2",
	}, ids(got))
}

func TestFlatten_NilRelationsAreSkipped(t *testing.T) {
	p := &post{ID: "p1", Comments: []*comment{nil, {ID: "c1"}}}

	got := Flatten(p)
	assert.Equal(t, []string{"post/p1", "comment/c1"}, ids(got))
}

func TestFlatten_RootWinsOverEmbeddedCopy(t *testing.T) {
	stale := &author{ID: "bob", Name: "old"}
	fresh := &author{ID: "bob", Name: "new"}
	p := &post{ID: "p1", Author: stale}

	got := Flatten(p, fresh)
	require.Len(t, got, 2)
	assert.Same(t, fresh, got[1])
}

func TestFlatten_LastRootWins(t *testing.T) {
	first := &author{ID: "bob", Name: "first"}
	last := &author{ID: "bob", Name: "last"}

	got := Flatten(first, &author{ID: "ann"}, last)
	require.Len(t, got, 2)
	assert.Same(t, last, got[0])
}

func TestFlatten_FirstEmbeddedWins(t *testing.T) {
	a1 := &author{ID: "bob", Name: "one"}
	a2 := &author{ID: "bob", Name: "two"}
	p := &post{
		ID:       "p1",
		Comments: []*comment{{ID: "c1", Author: a1}, {ID: "c2", Author: a2}},
	}

	got := Flatten(p)
	var authors []*author
	for _, r := range got {
		if a, ok := r.(*author); ok {
			authors = append(authors, a)
		}
	}
	require.Len(t, authors, 1)
	assert.Same(t, a1, authors[0])
}

func TestFlatten_Cycle(t *testing.T) {
	a := &node{ID: "a"}
	b := &node{ID: "b", Next: a}
	a.Next = b

	got := Flatten(a)
	assert.Equal(t, []string{"node/a", "node/b"}, ids(got))
}

func TestFlatten_SeesThroughWithTag(t *testing.T) {
	p := &post{ID: "p1", Author: &author{ID: "bob"}}

	got := Flatten(record.WithTag("Article", p))
	assert.Equal(t, []string{"Article/p1", "author/bob"}, ids(got))
}

func TestHasMany_Empty(t *testing.T) {
	rel := HasMany[*comment]("comments", nil)
	assert.Equal(t, "comments", rel.Name)
	assert.Empty(t, rel.Records)
}

func TestHasOne_TypedNil(t *testing.T) {
	var a *author
	assert.Empty(t, HasOne("author", a).Records)
}
