// Package storage defines the persisted-slot abstraction the user store is
// built on: a durable string-keyed, string-valued map (the Go counterpart of
// browser localStorage) plus its in-memory and SQLite implementations.
package storage

import "context"

// Store is a string key/value slot store.
//
// Implementations must support synchronous reads and writes; they provide no
// transactional isolation between independent processes, which is exactly the
// environment the user store manager is designed to survive.
type Store interface {
	// Get returns the value for key and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value string) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// SetMany writes all pairs, atomically where the backend allows it.
	SetMany(ctx context.Context, kv map[string]string) error
}
