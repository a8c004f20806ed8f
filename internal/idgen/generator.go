// Package idgen produces collision-free identifiers for session artifacts.
//
// A caller-supplied name is honored when it is free. Otherwise an id of the
// form "<prefix>_<unix-seconds>_<suffix>" is synthesized, where suffix is a
// fixed-length lowercase alphanumeric string. Synthesis retries a bounded
// number of times; exhausting the retries is reported as a
// types.StorageCollisionError and is fatal to the request.
package idgen

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

// Kind selects the identifier namespace.
type Kind string

const (
	KindModel Kind = "model"
	KindMedia Kind = "media"
)

// SuffixLength is the length of the random part of a synthesized id.
const SuffixLength = 6

// DefaultRetries bounds synthesis attempts before giving up.
const DefaultRetries = 10

// ExistsFunc reports whether an id is already taken.
type ExistsFunc func(id string) bool

// Generator mints identifiers. It holds no per-session state of its own; the
// collision check is supplied by the caller from the current store contents.
type Generator struct {
	retries int
	now     func() time.Time
	random  func() string
}

// Option configures a Generator.
type Option func(*Generator)

// WithRetries overrides the number of synthesis attempts.
func WithRetries(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.retries = n
		}
	}
}

// WithClock overrides the time source used for the timestamp component.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithRandom overrides the random suffix source.
func WithRandom(random func() string) Option {
	return func(g *Generator) {
		g.random = random
	}
}

// New creates a Generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		retries: DefaultRetries,
		now:     time.Now,
		random:  randomSuffix,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns requested+suffix when requested is non-empty and that id is
// free; otherwise it synthesizes a fresh id ending in suffix.
func (g *Generator) Generate(kind Kind, requested, suffix string, exists ExistsFunc) (string, error) {
	if requested != "" {
		candidate := requested + suffix
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return g.Synthesize(kind, suffix, exists)
}

// Synthesize always takes the synthesized path.
func (g *Generator) Synthesize(kind Kind, suffix string, exists ExistsFunc) (string, error) {
	for i := 0; i < g.retries; i++ {
		candidate := g.synthesize(kind) + suffix
		if !exists(candidate) {
			return candidate, nil
		}
	}
	return "", &types.StorageCollisionError{Kind: string(kind), Attempts: g.retries}
}

// Retries returns the configured synthesis budget.
func (g *Generator) Retries() int {
	return g.retries
}

func (g *Generator) synthesize(kind Kind) string {
	var b strings.Builder
	b.WriteString(string(kind))
	b.WriteByte('_')
	b.WriteString(strconv.FormatInt(g.now().Unix(), 10))
	b.WriteByte('_')
	b.WriteString(g.random())
	return b.String()
}

// randomSuffix draws SuffixLength hex characters from a v4 UUID.
func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:SuffixLength]
}
