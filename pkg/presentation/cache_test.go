package presentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandCacheOrderedSortsByYThenX(t *testing.T) {
	c := newCommandCache()
	c.put(Command{Kind: CommandDrawText, Y: 2, X: 5, Text: "c"})
	c.put(Command{Kind: CommandDrawText, Y: 1, X: 9, Text: "b"})
	c.put(Command{Kind: CommandDrawText, Y: 1, X: 1, Text: "a"})

	ordered := c.ordered()
	if assert.Len(t, ordered, 3) {
		assert.Equal(t, "a", ordered[0].Text)
		assert.Equal(t, "b", ordered[1].Text)
		assert.Equal(t, "c", ordered[2].Text)
	}
}

func TestCommandCachePutOverwritesSameSlot(t *testing.T) {
	c := newCommandCache()
	c.put(Command{Kind: CommandDrawText, Y: 1, X: 1, Text: "old"})
	c.put(Command{Kind: CommandDrawText, Y: 1, X: 1, Text: "new"})

	ordered := c.ordered()
	if assert.Len(t, ordered, 1) {
		assert.Equal(t, "new", ordered[0].Text)
	}
}

func TestCommandCacheClearEmpties(t *testing.T) {
	c := newCommandCache()
	c.put(Command{Kind: CommandDrawText, Y: 1, X: 1, Text: "x"})
	c.clear()
	assert.Empty(t, c.ordered())
}
