package services

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/sunvolt/loginguard/internal/captcha"
	"github.com/sunvolt/loginguard/internal/kvstore"
)

// ClientState is what the service holds in memory for one browser: its live
// challenge and its login orchestrator. Only the ledger record behind the
// orchestrator is persisted.
type ClientState struct {
	Challenge *captcha.Challenge
	Login     *LoginOrchestrator
}

// ClientStates hands out per-client state, creating it on first use. Idle
// entries expire after the configured TTL; a returning client then gets a
// fresh challenge while its ledger is read back from the KV provider.
type ClientStates struct {
	mu       sync.Mutex
	cache    *gocache.Cache
	kv       kvstore.Provider
	deps     LoginDependencies
	gen      *captcha.Generator
	renderer *captcha.Renderer
}

func NewClientStates(kv kvstore.Provider, deps LoginDependencies, gen *captcha.Generator, renderer *captcha.Renderer, ttl time.Duration) *ClientStates {
	cleanup := ttl
	if cleanup <= 0 || cleanup > time.Minute {
		cleanup = time.Minute
	}
	return &ClientStates{
		cache:    gocache.New(ttl, cleanup),
		kv:       kv,
		deps:     deps,
		gen:      gen,
		renderer: renderer,
	}
}

// Get returns the state for clientID and extends its lifetime
func (c *ClientStates) Get(clientID string) *ClientState {
	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cache.Get(clientID); ok {
		st := v.(*ClientState)
		c.cache.SetDefault(clientID, st)
		return st
	}

	challenge := captcha.NewChallenge(c.gen, c.renderer, c.deps.Metrics.CaptchaAttempt)
	ledger := NewAttemptLedger(NewKVLedgerStore(c.kv.ForClient(clientID)), c.deps.Logger, c.deps.Metrics)
	st := &ClientState{
		Challenge: challenge,
		Login:     NewLoginOrchestrator(c.deps, ledger, challenge),
	}
	c.cache.SetDefault(clientID, st)
	return st
}

// Forget drops the in-memory state of a client
func (c *ClientStates) Forget(clientID string) {
	c.cache.Delete(clientID)
}

// Len returns the number of clients currently held in memory
func (c *ClientStates) Len() int {
	return c.cache.ItemCount()
}
