package kvstore

import "context"

// Table is the row-level contract the Postgres backend needs. It is
// satisfied by repositories.ClientKVRepository.
type Table interface {
	Get(ctx context.Context, clientID, key string) (string, bool, error)
	Put(ctx context.Context, clientID, key, value string) error
	Delete(ctx context.Context, clientID, key string) error
}

// Postgres stores client slots as rows of the client_kv table
type Postgres struct {
	table Table
}

// NewPostgres wraps a client_kv table
func NewPostgres(table Table) *Postgres {
	return &Postgres{table: table}
}

// ForClient returns the slot for clientID
func (p *Postgres) ForClient(clientID string) Store {
	return &postgresStore{table: p.table, client: clientKey(clientID)}
}

type postgresStore struct {
	table  Table
	client string
}

func (s *postgresStore) Get(ctx context.Context, key string) (string, bool, error) {
	return s.table.Get(ctx, s.client, key)
}

func (s *postgresStore) Set(ctx context.Context, key, value string) error {
	return s.table.Put(ctx, s.client, key, value)
}

func (s *postgresStore) Delete(ctx context.Context, key string) error {
	return s.table.Delete(ctx, s.client, key)
}
