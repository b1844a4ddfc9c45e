// Package captcha generates, renders and verifies the login challenge shown
// when the security policy enables it. The challenge is a usability deterrent
// against scripted logins, not a security control, so randomness comes from
// math/rand rather than crypto/rand.
package captcha

import (
	"math/rand/v2"
	"strings"
	"sync"
)

// Alphabet excludes characters that are easy to misread: 0/O/o and 1/l/I.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnpqrstuvwxyz23456789"

// SecretLength is the number of characters in every challenge
const SecretLength = 6

// Generator draws challenge secrets
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator creates a Generator with a randomly seeded source
func NewGenerator() *Generator {
	return NewGeneratorWithSource(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

// NewGeneratorWithSource creates a Generator over the given source (tests use a fixed seed)
func NewGeneratorWithSource(src rand.Source) *Generator {
	return &Generator{rng: rand.New(src)}
}

// Secret returns a new SecretLength-character secret drawn from Alphabet
func (g *Generator) Secret() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	var b strings.Builder
	b.Grow(SecretLength)
	for i := 0; i < SecretLength; i++ {
		b.WriteByte(Alphabet[g.rng.IntN(len(Alphabet))])
	}
	return b.String()
}
