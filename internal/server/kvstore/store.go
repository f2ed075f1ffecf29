// Package kvstore defines the transactional keyed record store the
// access-control services are built on, and its Postgres, Redis, and
// in-memory backends.
//
// Records are opaque byte slices (the services use JSON). All mutation goes
// through Update, which gives the caller an atomic read-modify-write on a
// single key: concurrent updates of the same key are serialized by the
// backend, and a later update always observes the committed result of an
// earlier one. Keys in different namespaces are fully independent.
package kvstore

import "context"

// Namespace names a disjoint collection of records within one store.
type Namespace string

// UpdateFn receives the current record bytes (nil when the key is absent)
// and decides the next state:
//
//   - next != nil: write next as the new record value
//   - remove == true: delete the record
//   - next == nil and !remove: leave the record untouched
//
// Returning a non-nil error aborts the transaction without writing; the
// error is handed back to the caller unwrapped, so sentinel errors survive
// the round trip.
type UpdateFn func(current []byte) (next []byte, remove bool, err error)

// Store is the transactional keyed record store contract.
//
// Implementations wrap every infrastructure failure (lost connection,
// transaction timeout, contention retries exhausted) with
// common.ErrStoreUnavailable so callers can fail closed.
type Store interface {
	// Update runs fn atomically against the record at (ns, key).
	Update(ctx context.Context, ns Namespace, key string, fn UpdateFn) error

	// Get returns the record bytes, or common.ErrorNotFound if absent.
	Get(ctx context.Context, ns Namespace, key string) ([]byte, error)

	// Delete removes the record. Deleting an absent key is not an error.
	Delete(ctx context.Context, ns Namespace, key string) error
}
