package batch

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"codeberg.org/snonux/bookmaker/internal/provider"
)

// Sleeper waits for d or until ctx is done. Tests replace it to observe
// backoff delays without waiting.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// backoff returns base*2^(attempt-1) capped at ceiling
func backoff(attempt int, base, ceiling time.Duration) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= ceiling || d <= 0 {
			return ceiling
		}
	}
	if d > ceiling {
		return ceiling
	}
	return d
}

// retry calls fn until it succeeds or the error policy gives up and
// returns the number of attempts made.
//
// Rate-limited and transient errors back off exponentially up to
// MaxAttempts; rate limits also rotate the key. An auth error rotates to
// the next key and retries once. Anything else fails immediately.
func (o *Orchestrator) retry(ctx context.Context, log zerolog.Logger, fn func() error) (int, error) {
	authRetried := false

	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return attempt, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return attempt, ctxErr
		}

		switch {
		case errors.Is(err, provider.ErrAuth):
			if authRetried || !o.rotateKey() {
				return attempt, err
			}
			authRetried = true
			log.Warn().Err(err).Int("attempt", attempt).Msg("key rejected, retrying with next key")

		case provider.IsRetryable(err):
			if attempt >= o.opts.MaxAttempts {
				return attempt, err
			}
			if errors.Is(err, provider.ErrRateLimited) {
				o.rotateKey()
			}
			delay := backoff(attempt, o.opts.BaseDelay, o.opts.MaxDelay)
			log.Debug().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("retrying")
			if err := o.sleep(ctx, delay); err != nil {
				return attempt, err
			}

		default:
			return attempt, err
		}
	}
}

func (o *Orchestrator) rotateKey() bool {
	if r, ok := o.provider.(provider.KeyRotator); ok {
		return r.RotateKey()
	}
	return false
}
