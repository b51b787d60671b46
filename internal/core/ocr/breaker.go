package ocr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	apperrors "github.com/lueurxax/phrase-relay-bot/internal/core/errors"
)

// BreakerConfig configures the circuit breaker around a remote engine.
type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the circuit.
	Failures uint32
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout time.Duration
}

// Breaker stops calling a failing remote engine for a while instead of
// timing out on every image.
type Breaker struct {
	next Engine
	cb   *gobreaker.CircuitBreaker
}

// NewBreaker wraps next in a circuit breaker.
func NewBreaker(next Engine, cfg BreakerConfig, logger *zerolog.Logger) *Breaker {
	failures := cfg.Failures
	if failures == 0 {
		failures = 1
	}

	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Context cancellation is the caller giving up, not the engine failing.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger == nil {
				return
			}

			logger.Warn().
				Str("engine", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("ocr circuit breaker state changed")
		},
	}

	return &Breaker{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *Breaker) Name() string { return b.next.Name() }

func (b *Breaker) Recognize(ctx context.Context, in Input) (Result, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Recognize(ctx, in)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Result{}, fmt.Errorf("%s: %w", b.next.Name(), apperrors.ErrCircuitBreakerOpen)
		}

		return Result{}, err
	}

	res, ok := out.(Result)
	if !ok {
		return Result{}, fmt.Errorf("%s: unexpected result type %T", b.next.Name(), out)
	}

	return res, nil
}

// State reports the breaker state, used by /status.
func (b *Breaker) State() string {
	return b.cb.State().String()
}

func (b *Breaker) Close() error {
	return Close(b.next)
}
