// Package facts provides durable key/value storage scoped by identity.
// Sessions use it for presence markers and captured briefs; the store
// outlives any single engine process.
package facts

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no fact exists for the key/identity pair.
var ErrNotFound = errors.New("facts: not found")

// Store is the fact persistence contract. Keys are namespaced strings such
// as "session.discovery"; identity distinguishes concurrent principals using
// the same key.
type Store interface {
	// Get returns the value for (key, identity), or ErrNotFound.
	Get(ctx context.Context, key, identity string) (string, error)
	// Set writes the value for (key, identity), replacing any existing one.
	Set(ctx context.Context, key, identity, value string) error
	// Delete removes the fact for (key, identity). Deleting a fact that
	// does not exist is not an error.
	Delete(ctx context.Context, key, identity string) error
	// List returns all identity/value pairs stored under key.
	List(ctx context.Context, key string) (map[string]string, error)
	// Close releases the underlying storage.
	Close() error
}
