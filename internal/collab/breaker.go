package collab

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when the breaker rejects a call because the
// collaborator failed too often recently.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds the configuration for a Breaker.
type BreakerConfig struct {
	// Name identifies the breaker in logs.
	Name string

	// MaxFailures is the number of consecutive failures that trip the circuit.
	// Default: 3
	MaxFailures uint32

	// Timeout is how long the circuit stays open before going half-open.
	// Default: 30 seconds
	Timeout time.Duration

	// HalfOpenMaxSuccesses is the number of successes in half-open state that
	// close the circuit again.
	// Default: 2
	HalfOpenMaxSuccesses uint32
}

// BreakerCounts are cumulative call counts.
type BreakerCounts struct {
	Requests  uint64
	Successes uint64
	Failures  uint64
}

// Breaker wraps gobreaker around collaborator calls. Failures that reflect
// bad input (see IsInputError) do not count towards tripping the circuit.
type Breaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger

	mu     sync.Mutex
	counts BreakerCounts
}

// IsInputError reports failures caused by the request rather than the
// collaborator. Set by NewBreaker's caller; defaults to never.
type IsInputError func(error) bool

// NewBreaker creates a Breaker, filling zero config values with defaults.
func NewBreaker(cfg BreakerConfig, logger *zap.Logger, isInput IsInputError) *Breaker {
	if cfg.Name == "" {
		cfg.Name = "collaborator"
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 3
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxSuccesses == 0 {
		cfg.HalfOpenMaxSuccesses = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	b := &Breaker{logger: logger}
	b.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenMaxSuccesses,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if errors.Is(err, context.Canceled) {
				return true
			}
			return isInput != nil && isInput(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return b
}

// Execute runs fn through the breaker. An open circuit yields ErrCircuitOpen
// without calling fn.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := b.breaker.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fn(ctx)
	})

	b.record(err)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns "closed", "open" or "half-open".
func (b *Breaker) State() string {
	return b.breaker.State().String()
}

// Counts returns a snapshot of the cumulative counts.
func (b *Breaker) Counts() BreakerCounts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counts.Requests++
	if err != nil {
		b.counts.Failures++
		return
	}
	b.counts.Successes++
}
