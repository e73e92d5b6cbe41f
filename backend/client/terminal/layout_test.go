package terminal

import (
	"testing"

	"github.com/adwski/livepost/backend/client/cursor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		width  int
		carets []cursor.Rect
		rows   int
	}{
		{
			name:   "empty",
			text:   "",
			width:  10,
			carets: []cursor.Rect{{X: 0, Y: 0, Height: 1}},
			rows:   1,
		},
		{
			name:  "newline",
			text:  "ab\nc",
			width: 10,
			carets: []cursor.Rect{
				{X: 0, Y: 0, Width: 1, Height: 1},
				{X: 1, Y: 0, Width: 1, Height: 1},
				{X: 2, Y: 0, Height: 1},
				{X: 0, Y: 1, Width: 1, Height: 1},
				{X: 1, Y: 1, Height: 1},
			},
			rows: 2,
		},
		{
			name:  "soft wrap",
			text:  "abcd",
			width: 3,
			carets: []cursor.Rect{
				{X: 0, Y: 0, Width: 1, Height: 1},
				{X: 1, Y: 0, Width: 1, Height: 1},
				{X: 2, Y: 0, Width: 1, Height: 1},
				{X: 0, Y: 1, Width: 1, Height: 1},
				{X: 1, Y: 1, Height: 1},
			},
			rows: 2,
		},
		{
			name:  "full last line wraps the end caret",
			text:  "abc",
			width: 3,
			carets: []cursor.Rect{
				{X: 0, Y: 0, Width: 1, Height: 1},
				{X: 1, Y: 0, Width: 1, Height: 1},
				{X: 2, Y: 0, Width: 1, Height: 1},
				{X: 0, Y: 1, Height: 1},
			},
			rows: 2,
		},
		{
			name:  "wide glyphs",
			text:  "日本",
			width: 10,
			carets: []cursor.Rect{
				{X: 0, Y: 0, Width: 2, Height: 1},
				{X: 2, Y: 0, Width: 2, Height: 1},
				{X: 4, Y: 0, Height: 1},
			},
			rows: 1,
		},
		{
			name:  "combining mark collapses",
			text:  "e\u0301x",
			width: 10,
			carets: []cursor.Rect{
				{X: 0, Y: 0, Width: 1, Height: 1},
				{X: 1, Y: 0},
				{X: 1, Y: 0, Width: 1, Height: 1},
				{X: 2, Y: 0, Height: 1},
			},
			rows: 1,
		},
		{
			name:  "long cluster below the first row",
			text:  "ab\nc\U0001F468\u200D\U0001F469\u200D\U0001F467z",
			width: 40,
			carets: []cursor.Rect{
				{X: 0, Y: 0, Width: 1, Height: 1},
				{X: 1, Y: 0, Width: 1, Height: 1},
				{X: 2, Y: 0, Height: 1},
				{X: 0, Y: 1, Width: 1, Height: 1},
				{X: 1, Y: 1, Width: 2, Height: 1},
				{X: 3, Y: 1},
				{X: 3, Y: 1},
				{X: 3, Y: 1},
				{X: 3, Y: 1},
				{X: 3, Y: 1, Width: 1, Height: 1},
				{X: 4, Y: 1, Height: 1},
			},
			rows: 2,
		},
		{
			name:  "tab stops",
			text:  "a\tb",
			width: 20,
			carets: []cursor.Rect{
				{X: 0, Y: 0, Width: 1, Height: 1},
				{X: 1, Y: 0, Width: 3, Height: 1},
				{X: 4, Y: 0, Width: 1, Height: 1},
				{X: 5, Y: 0, Height: 1},
			},
			rows: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := layoutText(tt.text, tt.width)
			assert.Equal(t, tt.carets, f.carets)
			assert.Equal(t, tt.rows, f.rows)
		})
	}
}

func TestLayoutCells(t *testing.T) {
	f := layoutText("e\u0301\nz", 10)

	require.Len(t, f.cells, 2)
	assert.Equal(t, cell{x: 0, y: 0, runes: []rune{'e', '\u0301'}}, f.cells[0])
	assert.Equal(t, cell{x: 0, y: 1, runes: []rune{'z'}}, f.cells[1])
}
