package presentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestService() *Service {
	return &Service{
		cache:     newCommandCache(),
		lineCache: newLineCache(),
	}
}

func TestPrepareTextDrawSuppressesUnchangedRow(t *testing.T) {
	s := newTestService()
	cmd := Command{Kind: CommandDrawText, Y: 2, X: 0, Text: "hello", W: 40, H: 8}

	pre, suppressed := s.prepareTextDraw(cmd)
	assert.False(t, suppressed)
	assert.Empty(t, pre)

	pre, suppressed = s.prepareTextDraw(cmd)
	assert.True(t, suppressed)
	assert.Empty(t, pre)
}

func TestPrepareTextDrawShrinkEmitsClearRect(t *testing.T) {
	s := newTestService()
	first := Command{Kind: CommandDrawText, Y: 3, X: 0, Text: "hello world", W: 40, H: 8}
	_, suppressed := s.prepareTextDraw(first)
	assert.False(t, suppressed)

	shorter := Command{Kind: CommandDrawText, Y: 3, X: 0, Text: "hi", W: 40, H: 8}
	pre, suppressed := s.prepareTextDraw(shorter)
	assert.False(t, suppressed)
	if assert.Len(t, pre, 1) {
		assert.Equal(t, CommandClearArea, pre[0].Kind)
		assert.EqualValues(t, 2, pre[0].X) // len("hi")
		assert.EqualValues(t, 3, pre[0].Y)
		assert.EqualValues(t, len("hello world")-len("hi"), pre[0].W)
	}
}

func TestPrepareTextDrawUninversionEmitsFullLineClear(t *testing.T) {
	s := newTestService()
	inverted := Command{Kind: CommandDrawText, Y: 4, X: 0, Text: "alert", Flags: 0x80, W: 40, H: 8}
	_, suppressed := s.prepareTextDraw(inverted)
	assert.False(t, suppressed)

	plain := Command{Kind: CommandDrawText, Y: 4, X: 0, Text: "alert", Flags: 0x00, W: 40, H: 8}
	pre, suppressed := s.prepareTextDraw(plain)
	assert.False(t, suppressed)
	if assert.Len(t, pre, 1) {
		assert.Equal(t, CommandClearArea, pre[0].Kind)
		assert.EqualValues(t, 0, pre[0].X)
		assert.EqualValues(t, 40, pre[0].W)
	}
}

func TestPrepareTextDrawDifferentXSameContentStillRedraws(t *testing.T) {
	s := newTestService()
	at0 := Command{Kind: CommandDrawText, Y: 5, X: 0, Text: "ok", W: 40, H: 8}
	_, suppressed := s.prepareTextDraw(at0)
	assert.False(t, suppressed)

	at10 := Command{Kind: CommandDrawText, Y: 5, X: 10, Text: "ok", W: 40, H: 8}
	_, suppressed = s.prepareTextDraw(at10)
	assert.False(t, suppressed, "identical content at a new x must still redraw")
}
