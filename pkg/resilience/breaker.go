// Package resilience wraps outbound notification calls in circuit breakers so
// a dead gateway fails fast instead of stalling every saga step.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/angelmondragon/grocery-backend/pkg/logger"
)

// BreakerSettings tunes NewBreaker. Zero values fall back to the defaults.
type BreakerSettings struct {
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenFor is how long the breaker rejects calls before probing again.
	OpenFor time.Duration
}

const (
	defaultConsecutiveFailures = 5
	defaultOpenFor             = 30 * time.Second
)

// Breaker guards one downstream dependency.
type Breaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

// NewBreaker builds a breaker named after the dependency it guards. State
// changes are logged at warn.
func NewBreaker(name string, settings BreakerSettings, logg *logger.Logger) *Breaker {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = defaultConsecutiveFailures
	}
	if settings.OpenFor <= 0 {
		settings.OpenFor = defaultOpenFor
	}
	if logg == nil {
		logg = logger.Nop()
	}
	threshold := settings.ConsecutiveFailures
	return &Breaker{cb: gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     settings.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			logg.Warn(ctx, "circuit breaker state changed")
		},
	})}
}

// Do runs fn through the breaker.
func (b *Breaker) Do(fn func() error) error {
	if b == nil || b.cb == nil {
		return fn()
	}
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// IsOpen reports whether err was produced by a rejecting breaker rather than
// by the dependency itself.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
