package payment

import (
    "context"
    "errors"
    "log"
    "time"
)

// RetryingGateway decorates a Gateway with a single automatic retry on
// network errors, with a short backoff, before the failure reaches the
// coordinator.  Declines and requires-action outcomes pass through
// untouched; only transport failures are retried, and only once, since
// confirmation is not guaranteed to be idempotent on every provider.
type RetryingGateway struct {
    next    Gateway
    backoff time.Duration
    timeout time.Duration
}

// NewRetryingGateway wraps the given gateway.  Non-positive backoff and
// timeout fall back to 500ms and DefaultTimeout.
func NewRetryingGateway(next Gateway, backoff, timeout time.Duration) *RetryingGateway {
    if backoff <= 0 {
        backoff = 500 * time.Millisecond
    }
    if timeout <= 0 {
        timeout = DefaultTimeout
    }
    return &RetryingGateway{next: next, backoff: backoff, timeout: timeout}
}

// CreateIntent creates an intent, retrying once on a network error.
func (g *RetryingGateway) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
    callCtx, cancel := context.WithTimeout(ctx, g.timeout)
    intent, err := g.next.CreateIntent(callCtx, req)
    cancel()
    if !errors.Is(err, ErrNetwork) {
        return intent, err
    }
    log.Printf("payment: create intent failed with network error, retrying once: %v", err)
    select {
    case <-time.After(g.backoff):
    case <-ctx.Done():
        return Intent{}, ctx.Err()
    }
    callCtx, cancel = context.WithTimeout(ctx, g.timeout)
    defer cancel()
    return g.next.CreateIntent(callCtx, req)
}

// ConfirmIntent confirms an intent, retrying once on a network error.
// Providers key confirmation on the intent id, so a second attempt for
// the same intent cannot double-charge.
func (g *RetryingGateway) ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (ConfirmResult, error) {
    callCtx, cancel := context.WithTimeout(ctx, g.timeout)
    res, err := g.next.ConfirmIntent(callCtx, intentID, paymentMethodID)
    cancel()
    if !errors.Is(err, ErrNetwork) {
        return res, err
    }
    log.Printf("payment: confirm intent %s failed with network error, retrying once: %v", intentID, err)
    select {
    case <-time.After(g.backoff):
    case <-ctx.Done():
        return ConfirmResult{}, ctx.Err()
    }
    callCtx, cancel = context.WithTimeout(ctx, g.timeout)
    defer cancel()
    return g.next.ConfirmIntent(callCtx, intentID, paymentMethodID)
}
