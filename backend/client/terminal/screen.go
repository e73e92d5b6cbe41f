package terminal

import (
	"fmt"
	"sync"

	"github.com/adwski/livepost/backend/client/cursor"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/uniseg"
	"github.com/rs/zerolog"
)

type (
	Config struct {
		Logger *zerolog.Logger
		Screen tcell.Screen
		Title  string
	}

	// Screen is the document root. The bottom row is a status line, every
	// other row shows the document.
	Screen struct {
		mx     sync.Mutex
		screen tcell.Screen
		title  string

		text  string
		label string
		frame frame

		width, height int
		// top is the first document row shown.
		top int

		cursorX, cursorY int
		cursorVisible    bool

		logger zerolog.Logger
	}
)

func NewScreen(cfg Config) *Screen {
	s := &Screen{
		screen: cfg.Screen,
		title:  cfg.Title,
		logger: cfg.Logger.With().Str("component", "terminal").Logger(),
	}
	s.frame = layoutText("", 0)
	return s
}

func (s *Screen) Init() error {
	if err := s.screen.Init(); err != nil {
		return fmt.Errorf("cannot init terminal: %w", err)
	}
	s.screen.HideCursor()
	s.Resize()
	return nil
}

func (s *Screen) Fini() {
	s.screen.Fini()
}

// Resize lays the document out again for the current terminal size.
func (s *Screen) Resize() {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.width, s.height = s.screen.Size()
	s.frame = layoutText(s.text, s.width)
	s.logger.Debug().Int("width", s.width).Int("height", s.height).Msg("terminal resized")
	s.drawLocked()
}

// SetText replaces the whole document.
func (s *Screen) SetText(text string) {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.text = text
	s.frame = layoutText(text, s.width)
	s.drawLocked()
}

func (s *Screen) SetViewerCount(label string) {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.label = label
	s.drawLocked()
}

func (s *Screen) Label() string {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.label
}

func (s *Screen) Text() string {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.text
}

// HasTextNode is false for an empty document, like an element whose text
// content was set to "".
func (s *Screen) HasTextNode() bool {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.text != ""
}

func (s *Screen) Origin() (int, int) {
	return 0, 0
}

func (s *Screen) RangeRect(offset int) (cursor.Rect, error) {
	s.mx.Lock()
	defer s.mx.Unlock()

	if offset < 0 || offset >= len(s.frame.carets) {
		return cursor.Rect{}, fmt.Errorf("%w: %d", cursor.ErrOutOfRange, offset)
	}
	return s.frame.carets[offset], nil
}

// Place shows the hardware cursor at the top-left corner of r, scrolling the
// document when r is outside the visible rows. Terminal rows are one line
// high, so r.Height is not used.
func (s *Screen) Place(r cursor.Rect) {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.cursorX, s.cursorY, s.cursorVisible = r.X, r.Y, true
	s.drawLocked()
}

func (s *Screen) Hide() {
	s.mx.Lock()
	defer s.mx.Unlock()

	s.cursorVisible = false
	s.screen.HideCursor()
	s.screen.Show()
}

// Viewport returns the first document row on screen and how many rows the
// document area has.
func (s *Screen) Viewport() (top, rows int) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.top, s.rowsLocked()
}

func (s *Screen) rowsLocked() int {
	return max(s.height-1, 0)
}

// scrollLocked keeps top inside the document and the indicator row visible.
func (s *Screen) scrollLocked() {
	rows := s.rowsLocked()
	s.top = min(s.top, max(s.frame.rows-rows, 0))
	if !s.cursorVisible || rows == 0 {
		return
	}
	if s.cursorY < s.top {
		s.top = s.cursorY
	}
	if s.cursorY >= s.top+rows {
		s.top = s.cursorY - rows + 1
	}
}

// Cursor returns the indicator position in document coordinates.
func (s *Screen) Cursor() (x, y int, visible bool) {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.cursorX, s.cursorY, s.cursorVisible
}

func (s *Screen) drawLocked() {
	s.screen.Clear()
	s.scrollLocked()

	rows := s.rowsLocked()
	for _, c := range s.frame.cells {
		if c.y < s.top {
			continue
		}
		if c.y-s.top >= rows {
			break
		}
		s.screen.SetContent(c.x, c.y-s.top, c.runes[0], c.runes[1:], tcell.StyleDefault)
	}

	if s.height > 0 {
		status := tcell.StyleDefault.Reverse(true)
		for x := 0; x < s.width; x++ {
			s.screen.SetContent(x, s.height-1, ' ', nil, status)
		}
		s.drawString(0, s.height-1, s.title, status)
		s.drawString(s.width-uniseg.StringWidth(s.label), s.height-1, s.label, status)
	}

	if y := s.cursorY - s.top; s.cursorVisible && y >= 0 && y < rows {
		s.screen.ShowCursor(s.cursorX, y)
	} else {
		s.screen.HideCursor()
	}
	s.screen.Show()
}

func (s *Screen) drawString(x, y int, str string, style tcell.Style) {
	state := -1
	var (
		cluster string
		w       int
	)
	for len(str) > 0 {
		cluster, str, w, state = uniseg.FirstGraphemeClusterInString(str, state)
		if x >= 0 && x < s.width {
			runes := []rune(cluster)
			s.screen.SetContent(x, y, runes[0], runes[1:], style)
		}
		x += w
	}
}
