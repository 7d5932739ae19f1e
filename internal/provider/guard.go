package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// GuardOptions configures request throttling and the circuit breaker
type GuardOptions struct {
	// RequestsPerSecond limits outgoing calls; zero disables the limiter
	RequestsPerSecond float64
	// MaxConsecutiveFailures trips the breaker after that many transient
	// failures in a row
	MaxConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
}

// DefaultGuardOptions returns the options used by the CLI
func DefaultGuardOptions() GuardOptions {
	return GuardOptions{
		RequestsPerSecond:      2,
		MaxConsecutiveFailures: 5,
		OpenTimeout:            30 * time.Second,
	}
}

type guard struct {
	next    Provider
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

type batchGuard struct {
	*guard
	batch BatchProvider
}

// NewGuard wraps p with a rate limiter and a circuit breaker. Only
// transient failures count against the breaker; an open breaker is
// reported as ErrTransient so callers back off. Batch support, key
// rotation and model selection of p stay visible through the wrapper.
func NewGuard(p Provider, opts GuardOptions) Provider {
	g := &guard{next: p}

	if opts.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	maxFailures := opts.MaxConsecutiveFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        p.Name(),
		MaxRequests: 1,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, ErrTransient)
		},
	})

	if bp, ok := p.(BatchProvider); ok {
		return &batchGuard{guard: g, batch: bp}
	}
	return g
}

func (g *guard) Name() string {
	return g.next.Name()
}

func (g *guard) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	out, err := g.call(ctx, func() (interface{}, error) {
		return g.next.Translate(ctx, text, targetLanguage)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (g *guard) RotateKey() bool {
	if r, ok := g.next.(KeyRotator); ok {
		return r.RotateKey()
	}
	return false
}

func (g *guard) SetModels(models []string) {
	if s, ok := g.next.(ModelSelector); ok {
		s.SetModels(models)
	}
}

func (g *guard) call(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	out, err := g.breaker.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %s: %w", ErrTransient, g.next.Name(), err)
	}
	return out, err
}

func (b *batchGuard) TranslateBatch(ctx context.Context, texts []string, targetLanguage string) ([]string, error) {
	out, err := b.call(ctx, func() (interface{}, error) {
		return b.batch.TranslateBatch(ctx, texts, targetLanguage)
	})
	if err != nil {
		return nil, err
	}
	return out.([]string), nil
}
