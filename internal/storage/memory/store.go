// Package memory provides the in-process artifact store used by a session.
// Nothing is persisted; the store is cleared when the session ends.
package memory

import (
	"context"
	"sync"

	"github.com/jplfaria/gem-flux-mcp/internal/storage"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

var (
	_ storage.ModelStore = (*Store[*types.ModelRecord])(nil)
	_ storage.MediaStore = (*Store[*types.MediaRecord])(nil)
)

// Store is a map-backed storage.Store. Writes are serialized behind a single
// mutex; reads proceed concurrently.
type Store[T storage.Record] struct {
	kind  string
	limit int                  // 0 means unlimited
	guard func(record T) error // consulted before Delete

	mu    sync.RWMutex
	items map[string]T
	order []string
}

// Option configures a Store.
type Option[T storage.Record] func(*Store[T])

// WithLimit caps the number of records the store accepts.
func WithLimit[T storage.Record](n int) Option[T] {
	return func(s *Store[T]) {
		s.limit = n
	}
}

// WithDeleteGuard installs a check that can veto Delete.
func WithDeleteGuard[T storage.Record](guard func(T) error) Option[T] {
	return func(s *Store[T]) {
		s.guard = guard
	}
}

// New creates an empty store for records of the given kind ("model", "media").
func New[T storage.Record](kind string, opts ...Option[T]) *Store[T] {
	s := &Store[T]{
		kind:  kind,
		items: make(map[string]T),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewModelStore creates a model store holding at most limit records.
func NewModelStore(limit int) *Store[*types.ModelRecord] {
	return New[*types.ModelRecord]("model", WithLimit[*types.ModelRecord](limit))
}

// NewMediaStore creates a media store holding at most limit records.
// Predefined media can never be deleted.
func NewMediaStore(limit int) *Store[*types.MediaRecord] {
	return New[*types.MediaRecord]("media",
		WithLimit[*types.MediaRecord](limit),
		WithDeleteGuard(func(m *types.MediaRecord) error {
			if m.IsPredefined {
				return &types.PredefinedMediaError{ID: m.ID}
			}
			return nil
		}),
	)
}

// Put implements storage.Store.
func (s *Store[T]) Put(ctx context.Context, record T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	id := record.RecordID()
	if id == "" {
		return &types.ValidationError{Field: s.kind + "_id", Message: "must not be empty"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return &types.StorageCollisionError{Kind: s.kind, ID: id}
	}
	if s.limit > 0 && len(s.items) >= s.limit {
		return &types.CapacityError{Kind: s.kind, Limit: s.limit}
	}
	s.items[id] = record
	s.order = append(s.order, id)
	return nil
}

// Get implements storage.Store.
func (s *Store[T]) Get(_ context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.items[id]
	if !ok {
		var zero T
		return zero, s.notFound(id)
	}
	return record, nil
}

// Delete implements storage.Store.
func (s *Store[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.items[id]
	if !ok {
		return s.notFound(id)
	}
	if s.guard != nil {
		if err := s.guard(record); err != nil {
			return err
		}
	}
	delete(s.items, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// List implements storage.Store.
func (s *Store[T]) List(_ context.Context, filter storage.Filter[T]) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.order))
	for _, id := range s.order {
		record := s.items[id]
		if filter == nil || filter(record) {
			out = append(out, record)
		}
	}
	return out, nil
}

// Has implements storage.Store.
func (s *Store[T]) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.items[id]
	return ok
}

// IDs implements storage.Store.
func (s *Store[T]) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

// Len implements storage.Store.
func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Clear implements storage.Store.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
	s.order = nil
}

// notFound must be called with the lock held.
func (s *Store[T]) notFound(id string) error {
	return &types.NotFoundError{
		Kind:  s.kind,
		ID:    id,
		Known: append(make([]string, 0, len(s.order)), s.order...),
	}
}
