package captcha

import (
	"image/color"
	"math/rand/v2"
	"sync"
)

// Surface is any 2D drawing target the renderer can paint a challenge on.
// Coordinates are in pixels with the origin at the top-left corner.
type Surface interface {
	Size() (width, height int)
	Clear(bg color.Color)
	DrawGlyph(ch rune, x, y, rotation float64, c color.Color)
	DrawNoiseLine(x1, y1, x2, y2 float64, c color.Color)
	DrawNoiseDot(x, y, radius float64, c color.Color)
}

// RendererConfig controls glyph placement and noise density
type RendererConfig struct {
	Width       int
	Height      int
	NoiseLines  int
	NoiseDots   int
	MaxRotation float64 // radians, each glyph is rotated within ±MaxRotation
	MaxJitter   float64 // pixels, vertical offset within ±MaxJitter
	DotRadius   float64
}

// DefaultRendererConfig returns the layout used by the login page
func DefaultRendererConfig() RendererConfig {
	return RendererConfig{
		Width:       180,
		Height:      60,
		NoiseLines:  5,
		NoiseDots:   40,
		MaxRotation: 0.2,
		MaxJitter:   6,
		DotRadius:   1.2,
	}
}

var background = color.RGBA{R: 240, G: 240, B: 240, A: 255}

// Renderer paints a secret glyph by glyph over random noise
type Renderer struct {
	cfg RendererConfig
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRenderer creates a Renderer with a randomly seeded source
func NewRenderer(cfg RendererConfig) *Renderer {
	return NewRendererWithSource(cfg, rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewRendererWithSource creates a Renderer over the given source
func NewRendererWithSource(cfg RendererConfig, src rand.Source) *Renderer {
	return &Renderer{cfg: cfg, rng: rand.New(src)}
}

// Config returns the renderer configuration
func (r *Renderer) Config() RendererConfig {
	return r.cfg
}

// Render draws secret onto s. Noise goes underneath the glyphs so the text
// stays legible to a person.
func (r *Renderer) Render(secret string, s Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, h := s.Size()
	width, height := float64(w), float64(h)

	s.Clear(background)

	for i := 0; i < r.cfg.NoiseLines; i++ {
		s.DrawNoiseLine(
			r.rng.Float64()*width, r.rng.Float64()*height,
			r.rng.Float64()*width, r.rng.Float64()*height,
			r.noiseColor(),
		)
	}

	for i := 0; i < r.cfg.NoiseDots; i++ {
		s.DrawNoiseDot(r.rng.Float64()*width, r.rng.Float64()*height, r.cfg.DotRadius, r.noiseColor())
	}

	glyphs := []rune(secret)
	step := width / float64(len(glyphs)+1)
	for i, ch := range glyphs {
		x := step * float64(i+1)
		y := height/2 + r.spread(r.cfg.MaxJitter)
		s.DrawGlyph(ch, x, y, r.spread(r.cfg.MaxRotation), r.glyphColor())
	}
}

// spread returns a uniform value in [-limit, limit)
func (r *Renderer) spread(limit float64) float64 {
	return (r.rng.Float64()*2 - 1) * limit
}

func (r *Renderer) noiseColor() color.Color {
	return color.RGBA{
		R: uint8(r.rng.IntN(256)),
		G: uint8(r.rng.IntN(256)),
		B: uint8(r.rng.IntN(256)),
		A: 255,
	}
}

// glyphColor stays dark so glyphs contrast with the light background
func (r *Renderer) glyphColor() color.Color {
	return color.RGBA{
		R: uint8(r.rng.IntN(120)),
		G: uint8(r.rng.IntN(120)),
		B: uint8(r.rng.IntN(120)),
		A: 255,
	}
}
