package idgen_test

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jplfaria/gem-flux-mcp/internal/idgen"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

func never(string) bool { return false }

func TestGenerate_HonorsRequestedName(t *testing.T) {
	g := idgen.New()
	id, err := g.Generate(idgen.KindModel, "ecoli", ".draft", never)
	require.NoError(t, err)
	assert.Equal(t, "ecoli.draft", id)
}

func TestGenerate_FallsBackWhenRequestedNameTaken(t *testing.T) {
	g := idgen.New(idgen.WithClock(func() time.Time { return time.Unix(1700000000, 0) }))
	taken := map[string]bool{"ecoli.draft": true}

	id, err := g.Generate(idgen.KindModel, "ecoli", ".draft", func(s string) bool { return taken[s] })
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^model_1700000000_[0-9a-f]{6}\.draft$`), id)
}

func TestGenerate_MediaPrefix(t *testing.T) {
	g := idgen.New()
	id, err := g.Generate(idgen.KindMedia, "", "", never)
	require.NoError(t, err)
	assert.Regexp(t, `^media_\d+_[0-9a-f]{6}$`, id)
}

func TestGenerate_RetriesThenCollision(t *testing.T) {
	calls := 0
	g := idgen.New(
		idgen.WithRetries(3),
		idgen.WithRandom(func() string { calls++; return "aaaaaa" }),
	)

	_, err := g.Generate(idgen.KindModel, "", "", func(string) bool { return true })
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrCollision))
	assert.Equal(t, 3, calls)

	var cerr *types.StorageCollisionError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, 3, cerr.Attempts)
}

func TestGenerate_RetryRecoversFromCollision(t *testing.T) {
	suffixes := []string{"aaaaaa", "aaaaaa", "bbbbbb"}
	i := 0
	g := idgen.New(
		idgen.WithClock(func() time.Time { return time.Unix(1, 0) }),
		idgen.WithRandom(func() string { s := suffixes[i]; i++; return s }),
	)
	taken := map[string]bool{"model_1_aaaaaa": true}

	id, err := g.Generate(idgen.KindModel, "", "", func(s string) bool { return taken[s] })
	require.NoError(t, err)
	assert.Equal(t, "model_1_bbbbbb", id)
}

func TestGenerate_UniqueAcrossManyCalls(t *testing.T) {
	g := idgen.New()
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		id, err := g.Generate(idgen.KindModel, "", ".draft", func(s string) bool { return seen[s] })
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
