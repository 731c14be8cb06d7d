package mail

import (
	"context"
	"time"

	"go.uber.org/zap"

	"outreach-engine/internal/domain"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = 5 * time.Second
)

// Retry wraps a Transport with a bounded fixed-backoff retry policy.
// Authentication failures short-circuit: the credential will not heal
// between attempts. Exhaustion surfaces as a DeliveryError.
type Retry struct {
	Next     Transport
	Attempts int
	Backoff  time.Duration
	Log      *zap.SugaredLogger
}

func (r *Retry) Deliver(ctx context.Context, to, subject, body, attachment string) error {
	attempts := r.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	backoff := r.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := r.Next.Deliver(ctx, to, subject, body, attachment)
		if err == nil {
			return nil
		}
		lastErr = err
		if IsAuthErr(err) {
			return err
		}
		if attempt < attempts {
			r.Log.Warnw("delivery failed, retrying", "to", to, "attempt", attempt, "err", err)
			select {
			case <-ctx.Done():
				return domain.DeliveryErr(ctx.Err(), "delivery cancelled")
			case <-time.After(backoff):
			}
		}
	}
	return domain.DeliveryErr(lastErr, "delivery attempts exhausted")
}
