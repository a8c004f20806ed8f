package collab_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jplfaria/gem-flux-mcp/internal/collab"
)

var errBoom = errors.New("boom")
var errBadInput = errors.New("bad input")

func newTestBreaker() *collab.Breaker {
	return collab.NewBreaker(collab.BreakerConfig{
		Name:        "test",
		MaxFailures: 2,
		Timeout:     time.Hour,
	}, nil, func(err error) bool { return errors.Is(err, errBadInput) })
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	b := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		err := b.Execute(ctx, func(context.Context) error { return errBoom })
		require.ErrorIs(t, err, errBoom)
	}
	assert.Equal(t, "open", b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, collab.ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreaker_InputErrorsDoNotTrip(t *testing.T) {
	b := newTestBreaker()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := b.Execute(ctx, func(context.Context) error { return errBadInput })
		require.ErrorIs(t, err, errBadInput)
	}
	assert.Equal(t, "closed", b.State())

	counts := b.Counts()
	assert.Equal(t, uint64(5), counts.Requests)
	assert.Equal(t, uint64(5), counts.Failures)
}

func TestBreaker_CancelledContext(t *testing.T) {
	b := newTestBreaker()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Execute(ctx, func(context.Context) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "closed", b.State())
}
