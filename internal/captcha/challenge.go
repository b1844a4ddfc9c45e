package captcha

import (
	"fmt"
	"io"
	"sync"
)

// Result is the outcome of one answer submitted to a Challenge
type Result struct {
	// Resolved is false while the answer is shorter or longer than the secret.
	// An unresolved answer is not shown to the user as incorrect.
	Resolved  bool `json:"resolved"`
	Satisfied bool `json:"satisfied"`
}

// Challenge is the per-client challenge widget. It owns the live secret and
// the satisfied signal read by the login flow. The secret is never persisted.
type Challenge struct {
	mu        sync.Mutex
	gen       *Generator
	renderer  *Renderer
	secret    string
	satisfied bool
	onVerify  func(satisfied bool)
}

// NewChallenge creates a challenge and draws its first secret. onVerify, when
// set, is called synchronously after every answer with the satisfied signal.
func NewChallenge(gen *Generator, renderer *Renderer, onVerify func(satisfied bool)) *Challenge {
	return &Challenge{
		gen:      gen,
		renderer: renderer,
		secret:   gen.Secret(),
		onVerify: onVerify,
	}
}

// Refresh replaces the secret on user request and drops any earlier result
func (c *Challenge) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.secret = c.gen.Secret()
	c.satisfied = false
}

// Attempt checks an answer against the live secret. A resolved attempt always
// rotates the secret so a solved image can not be replayed; the satisfied
// signal keeps the result of the attempt itself.
func (c *Challenge) Attempt(input string) Result {
	c.mu.Lock()
	var res Result
	if len([]rune(input)) != len([]rune(c.secret)) {
		c.satisfied = false
	} else {
		res.Resolved = true
		res.Satisfied = Verify(c.secret, input)
		c.satisfied = res.Satisfied
		c.secret = c.gen.Secret()
	}
	notify := c.onVerify
	c.mu.Unlock()

	if notify != nil {
		notify(res.Satisfied)
	}
	return res
}

// Satisfied reports whether the last resolved attempt was correct
func (c *Challenge) Satisfied() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.satisfied
}

// Consume clears the satisfied signal once it has been used for a login
func (c *Challenge) Consume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.satisfied = false
}

// Secret returns the live secret. It is used for rendering and must never be
// sent to the client in clear text.
func (c *Challenge) Secret() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secret
}

// Draw renders the live secret onto s
func (c *Challenge) Draw(s Surface) {
	c.renderer.Render(c.Secret(), s)
}

// WritePNG renders the live secret as a PNG image
func (c *Challenge) WritePNG(w io.Writer) error {
	cfg := c.renderer.Config()
	surface, err := NewImageSurface(cfg.Width, cfg.Height)
	if err != nil {
		return err
	}

	c.Draw(surface)

	if err := surface.EncodePNG(w); err != nil {
		return fmt.Errorf("failed to encode challenge image: %w", err)
	}
	return nil
}
