package captcha

import "image/color"

// OpKind identifies a recorded drawing call
type OpKind string

const (
	OpClear OpKind = "clear"
	OpGlyph OpKind = "glyph"
	OpLine  OpKind = "line"
	OpDot   OpKind = "dot"
)

// Op is one drawing call captured by RecordingSurface
type Op struct {
	Kind     OpKind
	Rune     rune
	X, Y     float64
	X2, Y2   float64
	Rotation float64
	Radius   float64
	Color    color.Color
}

// RecordingSurface keeps every drawing call instead of painting pixels
type RecordingSurface struct {
	Width, Height int
	Ops           []Op
}

// NewRecordingSurface creates an empty recording surface
func NewRecordingSurface(width, height int) *RecordingSurface {
	return &RecordingSurface{Width: width, Height: height}
}

func (s *RecordingSurface) Size() (int, int) { return s.Width, s.Height }

func (s *RecordingSurface) Clear(bg color.Color) {
	s.Ops = append(s.Ops, Op{Kind: OpClear, Color: bg})
}

func (s *RecordingSurface) DrawGlyph(ch rune, x, y, rotation float64, c color.Color) {
	s.Ops = append(s.Ops, Op{Kind: OpGlyph, Rune: ch, X: x, Y: y, Rotation: rotation, Color: c})
}

func (s *RecordingSurface) DrawNoiseLine(x1, y1, x2, y2 float64, c color.Color) {
	s.Ops = append(s.Ops, Op{Kind: OpLine, X: x1, Y: y1, X2: x2, Y2: y2, Color: c})
}

func (s *RecordingSurface) DrawNoiseDot(x, y, radius float64, c color.Color) {
	s.Ops = append(s.Ops, Op{Kind: OpDot, X: x, Y: y, Radius: radius, Color: c})
}

// Count returns the number of recorded ops of the given kind
func (s *RecordingSurface) Count(kind OpKind) int {
	n := 0
	for _, op := range s.Ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}
