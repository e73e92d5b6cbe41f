package terminal

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func key(k tcell.Key) *tcell.EventKey {
	return tcell.NewEventKey(k, 0, tcell.ModNone)
}

func char(r rune) *tcell.EventKey {
	return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone)
}

func TestEditor(t *testing.T) {
	s := newTestScreen(t, 20, 5)
	logger := zerolog.Nop()
	e := NewEditor(s, &logger, "hi")

	pos, ok := e.Caret()
	assert.True(t, ok)
	assert.Equal(t, 2, pos)

	changed, moved := e.HandleKey(key(tcell.KeyLeft))
	assert.False(t, changed)
	assert.True(t, moved)

	changed, moved = e.HandleKey(char('X'))
	assert.True(t, changed)
	assert.True(t, moved)
	assert.Equal(t, "hXi", e.Text())
	assert.Equal(t, "hXi", s.Text())

	changed, moved = e.HandleKey(key(tcell.KeyDelete))
	assert.True(t, changed)
	assert.False(t, moved)
	assert.Equal(t, "hX", e.Text())

	e.HandleKey(key(tcell.KeyEnter))
	e.HandleKey(char('y'))
	assert.Equal(t, "hX\ny", e.Text())

	e.HandleKey(key(tcell.KeyHome))
	pos, _ = e.Caret()
	assert.Equal(t, 3, pos)

	changed, _ = e.HandleKey(key(tcell.KeyBackspace2))
	assert.True(t, changed)
	assert.Equal(t, "hXy", e.Text())

	e.HandleKey(key(tcell.KeyEnd))
	pos, _ = e.Caret()
	assert.Equal(t, 3, pos)

	changed, moved = e.HandleKey(key(tcell.KeyRight))
	assert.False(t, changed)
	assert.False(t, moved)

	x, y, visible := s.Cursor()
	assert.True(t, visible)
	assert.Equal(t, [2]int{3, 0}, [2]int{x, y})
}

func TestEditorBackspaceAtStart(t *testing.T) {
	s := newTestScreen(t, 20, 5)
	logger := zerolog.Nop()
	e := NewEditor(s, &logger, "")

	changed, moved := e.HandleKey(key(tcell.KeyBackspace))
	assert.False(t, changed)
	assert.False(t, moved)
	assert.Equal(t, "", e.Text())
}

func TestEditorReprojectAfterResize(t *testing.T) {
	s := newTestScreen(t, 10, 5)
	logger := zerolog.Nop()
	e := NewEditor(s, &logger, "abcdef")

	x, y, visible := s.Cursor()
	assert.True(t, visible)
	assert.Equal(t, 6, x)
	assert.Equal(t, 0, y)

	s.screen.(tcell.SimulationScreen).SetSize(4, 5)
	s.Resize()
	e.Reproject()

	x, y, _ = s.Cursor()
	assert.Equal(t, 2, x)
	assert.Equal(t, 1, y)
}
