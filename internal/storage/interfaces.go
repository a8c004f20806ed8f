// Package storage defines the artifact store contracts for a session.
//
// A store holds records keyed by id and is the single source of truth for
// what exists in a session. Creation is single-writer: Put never overwrites,
// and there is no update operation. Deleting a record never cascades; derived
// records own independent copies of everything they need.
package storage

import (
	"context"

	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

// Record is anything a Store can hold.
type Record interface {
	RecordID() string
}

// Filter selects records in List. A nil Filter selects everything.
type Filter[T Record] func(T) bool

// Store provides create/read/delete access to records of one kind.
type Store[T Record] interface {
	// Put stores a new record. Returns a *types.StorageCollisionError if the id
	// is already present and a *types.CapacityError if the store is full.
	Put(ctx context.Context, record T) error

	// Get retrieves a record by id.
	// Returns a *types.NotFoundError listing the known ids if it doesn't exist.
	Get(ctx context.Context, id string) (T, error)

	// Delete removes a record by id.
	// Returns a *types.NotFoundError if the record doesn't exist.
	Delete(ctx context.Context, id string) error

	// List returns the records accepted by filter, in creation order.
	List(ctx context.Context, filter Filter[T]) ([]T, error)

	// Has reports whether id is present. Used for id collision checks.
	Has(id string) bool

	// IDs returns all ids in creation order.
	IDs() []string

	// Len returns the number of stored records.
	Len() int

	// Clear drops every record. Called when the session ends.
	Clear()
}

// ModelStore holds model records.
type ModelStore = Store[*types.ModelRecord]

// MediaStore holds media records.
type MediaStore = Store[*types.MediaRecord]
