package kvstore

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Backend names accepted by New
const (
	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Options carries the dependencies each backend may need. Only the fields
// relevant to the chosen backend are read.
type Options struct {
	Backend  string
	FileDir  string
	Redis    redis.UniversalClient
	RedisTTL time.Duration
	Table    Table
}

// New builds the provider named by opts.Backend
func New(opts Options) (Provider, error) {
	switch opts.Backend {
	case "", BackendMemory:
		return NewMemory(), nil
	case BackendFile:
		if opts.FileDir == "" {
			return nil, fmt.Errorf("kvstore: file backend requires a directory")
		}
		return NewFile(opts.FileDir)
	case BackendRedis:
		if opts.Redis == nil {
			return nil, fmt.Errorf("kvstore: redis backend requires a client")
		}
		return NewRedis(opts.Redis, "lg:kv", opts.RedisTTL), nil
	case BackendPostgres:
		if opts.Table == nil {
			return nil, fmt.Errorf("kvstore: postgres backend requires a table")
		}
		return NewPostgres(opts.Table), nil
	default:
		return nil, fmt.Errorf("kvstore: unknown backend %q", opts.Backend)
	}
}
