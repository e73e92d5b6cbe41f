package terminal

import (
	"unicode/utf8"

	"github.com/adwski/livepost/backend/client/cursor"
	"github.com/rivo/uniseg"
)

const defaultTabWidth = 4

// cell is one drawable grapheme cluster.
type cell struct {
	x, y  int
	runes []rune
}

// frame is the laid out document.
type frame struct {
	// carets holds the caret rectangle of every rune offset, plus one for the
	// end of the document. Runes continuing a grapheme cluster get a collapsed
	// rectangle at the cluster's trailing edge since no cell boundary exists
	// there.
	carets []cursor.Rect
	cells  []cell
	rows   int
}

// layoutText wraps text at width columns; width <= 0 disables wrapping.
func layoutText(text string, width int) frame {
	f := frame{
		carets: make([]cursor.Rect, 0, utf8.RuneCountInString(text)+1),
	}

	var (
		x, y    int
		cluster string
		w       int
		rest    = text
		state   = -1
	)
	for len(rest) > 0 {
		cluster, rest, w, state = uniseg.FirstGraphemeClusterInString(rest, state)
		n := utf8.RuneCountInString(cluster)

		switch cluster {
		case "\n", "\r\n":
			f.carets = append(f.carets, cursor.Rect{X: x, Y: y, Height: 1})
			f.carets = appendCollapsed(f.carets, n-1, x, y)
			x, y = 0, y+1
			continue
		case "\t":
			w = defaultTabWidth - x%defaultTabWidth
		}

		if width > 0 && x > 0 && x+w > width {
			x, y = 0, y+1
		}
		f.carets = append(f.carets, cursor.Rect{X: x, Y: y, Width: w, Height: 1})
		f.carets = appendCollapsed(f.carets, n-1, x+w, y)
		if w > 0 && cluster != "\t" {
			f.cells = append(f.cells, cell{x: x, y: y, runes: []rune(cluster)})
		}
		x += w
	}

	if width > 0 && x >= width {
		x, y = 0, y+1
	}
	f.carets = append(f.carets, cursor.Rect{X: x, Y: y, Height: 1})
	f.rows = y + 1
	return f
}

func appendCollapsed(rects []cursor.Rect, n, x, y int) []cursor.Rect {
	for i := 0; i < n; i++ {
		rects = append(rects, cursor.Rect{X: x, Y: y})
	}
	return rects
}
