package captcha

import (
	"fmt"
	"image/color"
	"io"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gobold"
)

const glyphSize = 30

var loadGlyphFont = sync.OnceValues(func() (*truetype.Font, error) {
	return truetype.Parse(gobold.TTF)
})

// ImageSurface renders onto an in-memory RGBA image
type ImageSurface struct {
	dc *gg.Context
}

// NewImageSurface creates a width x height surface with the glyph face loaded
func NewImageSurface(width, height int) (*ImageSurface, error) {
	f, err := loadGlyphFont()
	if err != nil {
		return nil, fmt.Errorf("failed to parse glyph font: %w", err)
	}

	dc := gg.NewContext(width, height)
	// font.Face is not safe for concurrent use, so every surface gets its own
	dc.SetFontFace(truetype.NewFace(f, &truetype.Options{Size: glyphSize}))

	return &ImageSurface{dc: dc}, nil
}

func (s *ImageSurface) Size() (int, int) {
	return s.dc.Width(), s.dc.Height()
}

func (s *ImageSurface) Clear(bg color.Color) {
	s.dc.SetColor(bg)
	s.dc.Clear()
}

func (s *ImageSurface) DrawGlyph(ch rune, x, y, rotation float64, c color.Color) {
	s.dc.Push()
	defer s.dc.Pop()

	s.dc.SetColor(c)
	s.dc.RotateAbout(rotation, x, y)
	s.dc.DrawStringAnchored(string(ch), x, y, 0.5, 0.35)
}

func (s *ImageSurface) DrawNoiseLine(x1, y1, x2, y2 float64, c color.Color) {
	s.dc.SetColor(c)
	s.dc.SetLineWidth(1.5)
	s.dc.DrawLine(x1, y1, x2, y2)
	s.dc.Stroke()
}

func (s *ImageSurface) DrawNoiseDot(x, y, radius float64, c color.Color) {
	s.dc.SetColor(c)
	s.dc.DrawCircle(x, y, radius)
	s.dc.Fill()
}

// EncodePNG writes the surface as a PNG image
func (s *ImageSurface) EncodePNG(w io.Writer) error {
	return s.dc.EncodePNG(w)
}
