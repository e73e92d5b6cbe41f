package cursor

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const DefaultLineHeight = 1

var (
	ErrOutOfRange = errors.New("offset out of range")
	ErrGeometry   = errors.New("geometry computation failed")
)

// Rect is a screen rectangle, top-left corner plus size.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Collapsed reports the zero-size rectangle some layouts return at glyph
// boundaries (end of line, inside a grapheme cluster).
func (r Rect) Collapsed() bool {
	return r.Width == 0 && r.Height == 0
}

type (
	// Document is the rendered document root.
	Document interface {
		// Text returns the plain text offsets are measured against, in runes.
		Text() string
		// HasTextNode is false when the root holds no text content at all.
		HasTextNode() bool
		// Origin is the root's top-left corner.
		Origin() (x, y int)
		// RangeRect measures a zero-length range at offset.
		RangeRect(offset int) (Rect, error)
	}

	Indicator interface {
		Place(r Rect)
		Hide()
	}

	Config struct {
		Logger     *zerolog.Logger
		Document   Document
		Indicator  Indicator
		LineHeight int
	}

	Projector struct {
		doc        Document
		indicator  Indicator
		lineHeight int

		visible bool
		rect    Rect

		logger zerolog.Logger
	}
)

func NewProjector(cfg Config) *Projector {
	lh := cfg.LineHeight
	if lh <= 0 {
		lh = DefaultLineHeight
	}
	return &Projector{
		doc:        cfg.Document,
		indicator:  cfg.Indicator,
		lineHeight: lh,
		logger:     cfg.Logger.With().Str("component", "cursor").Logger(),
	}
}

// Project places the indicator at offset, or hides it when offset is nil or
// cannot be measured.
func (p *Projector) Project(offset *int) {
	if offset == nil {
		p.hide()
		return
	}

	pos := lo.Clamp(*offset, 0, utf8.RuneCountInString(p.doc.Text()))

	if !p.doc.HasTextNode() {
		if pos == 0 && p.doc.Text() == "" {
			x, y := p.doc.Origin()
			p.show(Rect{X: x, Y: y, Height: p.lineHeight})
			return
		}
		p.logger.Debug().Int("offset", pos).Msg("document root has no text node")
		p.hide()
		return
	}

	r, err := p.measure(pos)
	if err != nil {
		p.logger.Debug().Err(err).Int("offset", pos).Msg("cursor hidden")
		p.hide()
		return
	}
	p.show(r)
}

// Visible reports whether the most recent projection succeeded.
func (p *Projector) Visible() bool {
	return p.visible
}

// Rect returns where the indicator currently is.
func (p *Projector) Rect() (Rect, bool) {
	return p.rect, p.visible
}

func (p *Projector) measure(pos int) (r Rect, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = fmt.Errorf("%w: %v", ErrGeometry, v)
		}
	}()

	r, err = p.doc.RangeRect(pos)
	if err != nil {
		return Rect{}, err
	}
	if r.Collapsed() && pos > 0 {
		prev, err := p.doc.RangeRect(pos - 1)
		if err != nil {
			return Rect{}, err
		}
		r = Rect{X: prev.X + prev.Width, Y: prev.Y, Height: prev.Height}
	}
	if r.Height == 0 {
		r.Height = p.lineHeight
	}
	r.Width = 0
	return r, nil
}

func (p *Projector) show(r Rect) {
	p.rect = r
	p.visible = true
	p.indicator.Place(r)
}

func (p *Projector) hide() {
	p.rect = Rect{}
	p.visible = false
	p.indicator.Hide()
}
