// Package kvstore provides the client-scoped key-value slot the attempt
// ledger persists into. Each browser client gets its own namespace, the same
// way a browser's local storage is private to that browser.
package kvstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Store is a client-scoped key-value slot
type Store interface {
	// Get returns the value for key; ok is false when the key is absent
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Provider hands out the Store belonging to one client
type Provider interface {
	ForClient(clientID string) Store
}

// clientKey turns an untrusted client id into a fixed-width token that is
// safe to embed in file names and redis keys
func clientKey(clientID string) string {
	sum := sha256.Sum256([]byte(clientID))
	return hex.EncodeToString(sum[:16])
}
