package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/folio/internal/record"
)

func id(tag, key string) record.Identity {
	return record.Identity{Type: tag, ID: key}
}

func TestLRU_AddGetInvalidate(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	c.Add(id("Widget", "a"), []byte("1"))
	got, ok := c.Get(id("Widget", "a"))
	require.True(t, ok)
	assert.Equal(t, []byte("1"), got)

	c.Invalidate(id("Widget", "a"))
	_, ok = c.Get(id("Widget", "a"))
	assert.False(t, ok)
}

func TestLRU_Bounded(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	c.Add(id("Widget", "a"), nil)
	c.Add(id("Widget", "b"), nil)
	c.Add(id("Widget", "c"), nil)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(id("Widget", "a"))
	assert.False(t, ok, "least recently used entry is evicted")
}

func TestLRU_InvalidateTypeAndPurge(t *testing.T) {
	c, err := New(8)
	require.NoError(t, err)

	c.Add(id("Widget", "a"), nil)
	c.Add(id("Widget", "b"), nil)
	c.Add(id("Gadget", "a"), nil)

	c.InvalidateType("Widget")
	assert.Equal(t, 1, c.Len())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestLRU_Disabled(t *testing.T) {
	c, err := New(0)
	require.NoError(t, err)
	assert.Nil(t, c)

	c.Add(id("Widget", "a"), []byte("x"))
	_, ok := c.Get(id("Widget", "a"))
	assert.False(t, ok)
	c.Invalidate(id("Widget", "a"))
	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestLRU_FillRejectsStaleEpoch(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	epoch := c.Epoch()
	c.Invalidate(id("Widget", "a"))
	assert.False(t, c.Fill(id("Widget", "a"), []byte("old"), epoch))
	_, ok := c.Get(id("Widget", "a"))
	assert.False(t, ok)

	assert.True(t, c.Fill(id("Widget", "a"), []byte("new"), c.Epoch()))
	got, ok := c.Get(id("Widget", "a"))
	require.True(t, ok)
	assert.Equal(t, []byte("new"), got)
}
