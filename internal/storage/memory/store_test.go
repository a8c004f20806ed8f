package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jplfaria/gem-flux-mcp/internal/storage/memory"
	"github.com/jplfaria/gem-flux-mcp/pkg/types"
)

func model(id string, markers ...types.Stage) *types.ModelRecord {
	return &types.ModelRecord{ID: id, StageMarkers: markers, CreatedAt: time.Now()}
}

func TestModelStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s := memory.NewModelStore(0)

	require.NoError(t, s.Put(ctx, model("a.draft", types.StageBuilt)))
	got, err := s.Get(ctx, "a.draft")
	require.NoError(t, err)
	assert.Equal(t, "a.draft", got.ID)
	assert.True(t, s.Has("a.draft"))
	assert.Equal(t, 1, s.Len())
}

func TestModelStore_PutRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := memory.NewModelStore(0)
	first := model("a.draft", types.StageBuilt)
	require.NoError(t, s.Put(ctx, first))

	err := s.Put(ctx, model("a.draft", types.StageBuilt, types.StageGapfilled))
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrCollision))

	got, err := s.Get(ctx, "a.draft")
	require.NoError(t, err)
	assert.Same(t, first, got, "existing record must not be overwritten")
}

func TestModelStore_GetNotFoundListsKnownIDs(t *testing.T) {
	ctx := context.Background()
	s := memory.NewModelStore(0)
	require.NoError(t, s.Put(ctx, model("a.draft")))
	require.NoError(t, s.Put(ctx, model("b.draft")))

	_, err := s.Get(ctx, "zzz")
	var nf *types.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "model", nf.Kind)
	assert.Equal(t, "zzz", nf.ID)
	assert.Equal(t, []string{"a.draft", "b.draft"}, nf.Known)
	assert.Contains(t, err.Error(), "a.draft")
}

func TestModelStore_DeleteDoesNotCascade(t *testing.T) {
	ctx := context.Background()
	s := memory.NewModelStore(0)
	require.NoError(t, s.Put(ctx, model("a.draft", types.StageBuilt)))
	child := model("a.draft.gf", types.StageBuilt, types.StageGapfilled)
	child.ParentID = "a.draft"
	require.NoError(t, s.Put(ctx, child))

	require.NoError(t, s.Delete(ctx, "a.draft"))
	assert.False(t, s.Has("a.draft"))
	got, err := s.Get(ctx, "a.draft.gf")
	require.NoError(t, err)
	assert.Equal(t, "a.draft", got.ParentID)

	err = s.Delete(ctx, "a.draft")
	assert.True(t, errors.Is(err, types.ErrNotFound))
}

func TestModelStore_ListCreationOrderAndFilter(t *testing.T) {
	ctx := context.Background()
	s := memory.NewModelStore(0)
	for i := 0; i < 5; i++ {
		markers := []types.Stage{types.StageBuilt}
		if i%2 == 1 {
			markers = append(markers, types.StageGapfilled)
		}
		require.NoError(t, s.Put(ctx, model(fmt.Sprintf("m%d", i), markers...)))
	}

	all, err := s.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i, m := range all {
		assert.Equal(t, fmt.Sprintf("m%d", i), m.ID)
	}

	gapfilled, err := s.List(ctx, func(m *types.ModelRecord) bool { return m.HasStage(types.StageGapfilled) })
	require.NoError(t, err)
	assert.Len(t, gapfilled, 2)
	assert.Equal(t, "m1", gapfilled[0].ID)
}

func TestModelStore_Limit(t *testing.T) {
	ctx := context.Background()
	s := memory.NewModelStore(1)
	require.NoError(t, s.Put(ctx, model("a")))
	err := s.Put(ctx, model("b"))
	assert.True(t, errors.Is(err, types.ErrCapacity))
	assert.Equal(t, 1, s.Len())
}

func TestModelStore_EmptyIDRejected(t *testing.T) {
	err := memory.NewModelStore(0).Put(context.Background(), model(""))
	assert.True(t, errors.Is(err, types.ErrValidation))
}

func TestMediaStore_PredefinedCannotBeDeleted(t *testing.T) {
	ctx := context.Background()
	s := memory.NewMediaStore(0)
	require.NoError(t, s.Put(ctx, &types.MediaRecord{ID: "glucose_minimal_aerobic", IsPredefined: true}))
	require.NoError(t, s.Put(ctx, &types.MediaRecord{ID: "custom"}))

	err := s.Delete(ctx, "glucose_minimal_aerobic")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrPredefined))
	assert.Equal(t, []string{"glucose_minimal_aerobic", "custom"}, s.IDs())

	require.NoError(t, s.Delete(ctx, "custom"))
	assert.Equal(t, []string{"glucose_minimal_aerobic"}, s.IDs())
}

func TestModelStore_ConcurrentDistinctPuts(t *testing.T) {
	ctx := context.Background()
	s := memory.NewModelStore(0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Put(ctx, model(fmt.Sprintf("m%d", i))))
			_, _ = s.List(ctx, nil)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s := memory.NewModelStore(0)
	require.NoError(t, s.Put(ctx, model("a")))
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.IDs())
}
