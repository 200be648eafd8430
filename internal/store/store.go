package store

import "context"

// Cache persists generated text keyed by prompt fingerprint. Entries are
// immutable once written: the same fingerprint always maps to the same
// response, so concurrent writers may race freely (first writer wins).
type Cache interface {
	Get(ctx context.Context, fingerprint string) (string, bool, error)
	Put(ctx context.Context, fingerprint, response string) error

	Migrate(ctx context.Context) error
	Close() error
}
