// Package storage provides the key-value store behind the peering node's
// persisted state: eviction records under "evict/" and the known-peer set
// under "peerseen/". Badger backs the daemon; an in-memory store backs tests
// and ephemeral nodes.
package storage

import "errors"

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("storage: key not found")

// DB is a flat key-value store.
type DB interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// Put stores value under key, replacing any existing value.
	Put(key, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key []byte) error

	// Has reports whether key has a value.
	Has(key []byte) (bool, error)

	// Scan visits every key with the given prefix in ascending key order.
	// A nil prefix visits everything. The key and value slices are only
	// valid for the duration of the callback; returning a non-nil error
	// stops the scan and surfaces the error.
	Scan(prefix []byte, fn func(key, value []byte) error) error

	Close() error
}
