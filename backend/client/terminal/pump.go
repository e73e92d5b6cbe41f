package terminal

import (
	"github.com/gdamore/tcell/v2"
)

type Handlers struct {
	// Post runs fn on the controller's event loop.
	Post func(fn func())
	// Key is called on the event loop for every key except the quit keys.
	Key func(ev *tcell.EventKey)
	// Resized is called on the event loop after the screen was laid out again.
	Resized func()
	// Quit is called from the pump goroutine on Esc or Ctrl-C.
	Quit func()
}

// Pump forwards terminal events until the screen is finalized or the user
// quits.
func (s *Screen) Pump(h Handlers) {
	for {
		switch ev := s.screen.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventResize:
			h.Post(func() {
				s.screen.Sync()
				s.Resize()
				if h.Resized != nil {
					h.Resized()
				}
			})
		case *tcell.EventKey:
			if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
				s.logger.Debug().Msg("quit requested")
				if h.Quit != nil {
					h.Quit()
				}
				return
			}
			if h.Key != nil {
				h.Post(func() { h.Key(ev) })
			}
		}
	}
}
