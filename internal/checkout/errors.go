package checkout

import "errors"

// Sentinel errors surfaced by the coordinator.  Expected, frequent
// outcomes (price changes, validation failures) are structured results
// instead; these errors cover the cases a correctly driven UI should
// rarely or never hit.
var (
    // ErrCartEmpty rejects checkout initialization on an empty cart.
    ErrCartEmpty = errors.New("cart is empty, nothing to check out")

    // ErrMissingIdempotencyKey rejects initialization without a
    // caller-supplied idempotency key; the key is what makes retried
    // initializations safe.
    ErrMissingIdempotencyKey = errors.New("idempotency key is required")

    // ErrSessionNotFound covers unknown tokens and tokens belonging to
    // a different user; the token is opaque so the two are deliberately
    // indistinguishable.
    ErrSessionNotFound = errors.New("checkout session not found")

    // ErrStateConflict means a step was called out of the defined
    // order.  The session is left untouched.  This indicates a caller
    // bug and is logged at a higher severity than user-facing errors.
    ErrStateConflict = errors.New("operation not valid in the session's current state")

    // ErrItemUnavailable means verification found an expired or
    // sold-out offer.  Fatal to the session; checkout must restart.
    ErrItemUnavailable = errors.New("cart contains unavailable items")

    // ErrNoPaymentIntent means confirmPayment was called before an
    // intent was created.
    ErrNoPaymentIntent = errors.New("no payment intent exists for this session")
)

// FieldError describes one invalid traveler or contact field.  The
// travelers step collects every problem in one pass and returns the
// whole list so the UI can highlight all offending fields at once.
type FieldError struct {
    Field   string `json:"field"`
    Message string `json:"message"`
}
