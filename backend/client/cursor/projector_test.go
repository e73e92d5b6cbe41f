package cursor

import (
	"testing"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocument struct {
	text     string
	textNode bool
	originX  int
	originY  int
	rects    map[int]Rect
	errs     map[int]error
	panicAt  map[int]bool
	measured []int
}

func (d *fakeDocument) Text() string       { return d.text }
func (d *fakeDocument) HasTextNode() bool  { return d.textNode }
func (d *fakeDocument) Origin() (int, int) { return d.originX, d.originY }

func (d *fakeDocument) RangeRect(offset int) (Rect, error) {
	d.measured = append(d.measured, offset)
	if d.panicAt[offset] {
		panic("detached range")
	}
	if err := d.errs[offset]; err != nil {
		return Rect{}, err
	}
	if r, ok := d.rects[offset]; ok {
		return r, nil
	}
	return Rect{X: offset, Y: 0, Width: 1, Height: 1}, nil
}

type fakeIndicator struct {
	placed []Rect
	hides  int
}

func (i *fakeIndicator) Place(r Rect) { i.placed = append(i.placed, r) }
func (i *fakeIndicator) Hide()        { i.hides++ }

func newTestProjector(doc Document) (*Projector, *fakeIndicator) {
	logger := zerolog.Nop()
	ind := &fakeIndicator{}
	return NewProjector(Config{Logger: &logger, Document: doc, Indicator: ind}), ind
}

func offset(v int) *int { return &v }

func TestProjectNilHides(t *testing.T) {
	p, ind := newTestProjector(&fakeDocument{text: "abc", textNode: true})

	p.Project(offset(1))
	require.True(t, p.Visible())

	p.Project(nil)
	assert.False(t, p.Visible())
	assert.Equal(t, 1, ind.hides)
}

func TestProjectEmptyDocumentAtOrigin(t *testing.T) {
	doc := &fakeDocument{text: "", textNode: false, originX: 3, originY: 2}
	p, ind := newTestProjector(doc)

	p.Project(offset(0))

	require.True(t, p.Visible())
	require.Len(t, ind.placed, 1)
	assert.Equal(t, Rect{X: 3, Y: 2, Height: DefaultLineHeight}, ind.placed[0])
	assert.Empty(t, doc.measured)
}

func TestProjectEmptyDocumentClampsOffset(t *testing.T) {
	p, ind := newTestProjector(&fakeDocument{originX: 1, originY: 1})

	p.Project(offset(7))

	require.True(t, p.Visible())
	assert.Equal(t, Rect{X: 1, Y: 1, Height: DefaultLineHeight}, ind.placed[0])
}

func TestProjectNonTextRootHides(t *testing.T) {
	p, ind := newTestProjector(&fakeDocument{text: "image", textNode: false})

	p.Project(offset(2))

	assert.False(t, p.Visible())
	assert.Equal(t, 1, ind.hides)
	assert.Empty(t, ind.placed)
}

func TestProjectClamps(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		want   int
	}{
		{name: "negative", offset: -4, want: 0},
		{name: "inside", offset: 2, want: 2},
		{name: "end", offset: 3, want: 3},
		{name: "past end", offset: 99, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &fakeDocument{text: "abc", textNode: true}
			p, _ := newTestProjector(doc)

			p.Project(offset(tt.offset))

			require.True(t, p.Visible())
			assert.Equal(t, []int{tt.want}, doc.measured)
		})
	}
}

func TestProjectClampCountsRunes(t *testing.T) {
	doc := &fakeDocument{text: "héllo", textNode: true}
	p, _ := newTestProjector(doc)

	p.Project(offset(100))

	assert.Equal(t, []int{utf8.RuneCountInString("héllo")}, doc.measured)
}

func TestProjectCollapsedRectUsesPreviousTrailingEdge(t *testing.T) {
	doc := &fakeDocument{
		text:     "ab\ncd",
		textNode: true,
		rects: map[int]Rect{
			1: {X: 1, Y: 4, Width: 2, Height: 3},
			2: {},
		},
	}
	p, ind := newTestProjector(doc)

	p.Project(offset(2))

	require.True(t, p.Visible())
	assert.Equal(t, []int{2, 1}, doc.measured)
	assert.Equal(t, Rect{X: 3, Y: 4, Height: 3}, ind.placed[0])
}

func TestProjectCollapsedRectAtStart(t *testing.T) {
	doc := &fakeDocument{text: "ab", textNode: true, rects: map[int]Rect{0: {X: 5, Y: 5}}}
	p, ind := newTestProjector(doc)

	p.Project(offset(0))

	require.True(t, p.Visible())
	assert.Equal(t, []int{0}, doc.measured)
	assert.Equal(t, Rect{X: 5, Y: 5, Height: DefaultLineHeight}, ind.placed[0])
}

func TestProjectZeroHeightFallsBackToLineHeight(t *testing.T) {
	doc := &fakeDocument{text: "ab", textNode: true, rects: map[int]Rect{1: {X: 1, Y: 2, Width: 1}}}
	p, ind := newTestProjector(doc)

	p.Project(offset(1))

	assert.Equal(t, Rect{X: 1, Y: 2, Height: DefaultLineHeight}, ind.placed[0])
}

func TestProjectGeometryFailureHides(t *testing.T) {
	doc := &fakeDocument{
		text:     "abcd",
		textNode: true,
		rects:    map[int]Rect{3: {}},
		errs:     map[int]error{1: ErrOutOfRange, 2: ErrOutOfRange},
		panicAt:  map[int]bool{4: true},
	}
	p, ind := newTestProjector(doc)

	for _, off := range []int{1, 3, 4} {
		p.Project(offset(0))
		require.True(t, p.Visible())

		assert.NotPanics(t, func() { p.Project(offset(off)) })
		assert.False(t, p.Visible(), "offset %d", off)
		_, visible := p.Rect()
		assert.False(t, visible)
	}
	assert.Equal(t, 3, ind.hides)
}

func TestProjectNeverPanicsInRange(t *testing.T) {
	text := "one\ntwo\n\nthree"
	rects := make(map[int]Rect)
	for i := 0; i <= len(text); i++ {
		if i%3 == 0 {
			rects[i] = Rect{}
		}
	}
	p, _ := newTestProjector(&fakeDocument{text: text, textNode: true, rects: rects})

	for i := 0; i <= len(text); i++ {
		assert.NotPanics(t, func() { p.Project(offset(i)) })
		r, visible := p.Rect()
		if visible {
			assert.Positive(t, r.Height)
		}
	}
}
