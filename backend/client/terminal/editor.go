package terminal

import (
	"slices"

	"github.com/adwski/livepost/backend/client/cursor"
	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
)

// Editor is the author's local document: a plain text buffer with a caret,
// rendered on a Screen.
type Editor struct {
	screen *Screen
	caret  *cursor.Projector
	text   []rune
	pos    int
}

func NewEditor(screen *Screen, logger *zerolog.Logger, initial string) *Editor {
	e := &Editor{
		screen: screen,
		caret: cursor.NewProjector(cursor.Config{
			Logger:    logger,
			Document:  screen,
			Indicator: screen,
		}),
		text: []rune(initial),
	}
	e.pos = len(e.text)
	e.screen.SetText(initial)
	e.caret.Project(&e.pos)
	return e
}

func (e *Editor) Text() string {
	return string(e.text)
}

// Caret returns the caret offset. The terminal editor always has one.
func (e *Editor) Caret() (int, bool) {
	return e.pos, true
}

// HandleKey applies one key press and reports whether the text changed and
// whether the caret moved.
func (e *Editor) HandleKey(ev *tcell.EventKey) (changed, moved bool) {
	before := e.pos

	switch ev.Key() {
	case tcell.KeyRune:
		changed = e.insert(ev.Rune())
	case tcell.KeyEnter:
		changed = e.insert('\n')
	case tcell.KeyTab:
		changed = e.insert('\t')
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if e.pos > 0 {
			e.text = slices.Delete(e.text, e.pos-1, e.pos)
			e.pos--
			changed = true
		}
	case tcell.KeyDelete:
		if e.pos < len(e.text) {
			e.text = slices.Delete(e.text, e.pos, e.pos+1)
			changed = true
		}
	case tcell.KeyLeft:
		if e.pos > 0 {
			e.pos--
		}
	case tcell.KeyRight:
		if e.pos < len(e.text) {
			e.pos++
		}
	case tcell.KeyHome:
		for e.pos > 0 && e.text[e.pos-1] != '\n' {
			e.pos--
		}
	case tcell.KeyEnd:
		for e.pos < len(e.text) && e.text[e.pos] != '\n' {
			e.pos++
		}
	}

	moved = e.pos != before
	if changed {
		e.screen.SetText(string(e.text))
	}
	if changed || moved {
		e.caret.Project(&e.pos)
	}
	return changed, moved
}

func (e *Editor) insert(r rune) bool {
	e.text = slices.Insert(e.text, e.pos, r)
	e.pos++
	return true
}

// Reproject places the caret again after the screen was laid out.
func (e *Editor) Reproject() {
	e.caret.Project(&e.pos)
}
