// Package session bundles the per-connection state: the model and media
// stores and the identifier generator. Nothing outlives the session.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jplfaria/gem-flux-mcp/internal/idgen"
	"github.com/jplfaria/gem-flux-mcp/internal/library"
	"github.com/jplfaria/gem-flux-mcp/internal/storage"
	"github.com/jplfaria/gem-flux-mcp/internal/storage/memory"
)

// Options configures a new session.
type Options struct {
	MaxModels int
	MaxMedia  int
	IDRetries int
	Library   *library.Library // predefined media; nil starts empty
	Now       func() time.Time
}

// Session is the state shared by every tool call on one connection.
type Session struct {
	ID        string
	StartedAt time.Time

	Models storage.ModelStore
	Media  storage.MediaStore
	IDs    *idgen.Generator

	library *library.Library
	now     func() time.Time
}

// New creates a session and loads the predefined media into it.
func New(ctx context.Context, opts Options) (*Session, error) {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	s := &Session{
		ID:        uuid.NewString(),
		StartedAt: now(),
		Models:    memory.NewModelStore(opts.MaxModels),
		Media:     memory.NewMediaStore(opts.MaxMedia),
		IDs:       idgen.New(idgen.WithRetries(opts.IDRetries), idgen.WithClock(now)),
		library:   opts.Library,
		now:       now,
	}
	if err := s.loadPredefined(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Now returns the session clock's current time.
func (s *Session) Now() time.Time {
	return s.now()
}

// Clear drops every record and reloads the predefined media.
func (s *Session) Clear(ctx context.Context) error {
	s.Models.Clear()
	s.Media.Clear()
	return s.loadPredefined(ctx)
}

func (s *Session) loadPredefined(ctx context.Context) error {
	if s.library == nil {
		return nil
	}
	for _, rec := range s.library.Records(s.now()) {
		if err := s.Media.Put(ctx, rec); err != nil {
			return fmt.Errorf("session: load predefined media %s: %w", rec.ID, err)
		}
	}
	return nil
}
