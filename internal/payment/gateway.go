// Package payment wraps the external payment network behind a narrow
// adapter interface.  Gateway-specific failure codes are translated
// into a small internal taxonomy so the checkout coordinator never
// branches on provider details.
package payment

import (
    "context"
    "errors"
    "time"
)

// Error taxonomy.  Every gateway error surfaced to the coordinator is
// one of these (possibly wrapped); anything else counts as unknown.
var (
    // ErrDeclined means the payment network rejected the charge.  Not
    // retryable with the same payment method.
    ErrDeclined = errors.New("payment declined")
    // ErrNetwork means the gateway could not be reached or timed out.
    // Retryable; the adapter itself retries once before surfacing it.
    ErrNetwork = errors.New("payment gateway unreachable")
)

// IntentStatus is the gateway-side state of a payment intent.
type IntentStatus string

const (
    IntentCreated        IntentStatus = "CREATED"
    IntentRequiresAction IntentStatus = "REQUIRES_ACTION"
    IntentSucceeded      IntentStatus = "SUCCEEDED"
    IntentFailed         IntentStatus = "FAILED"
)

// IntentRequest carries what the gateway needs to create an intent.
type IntentRequest struct {
    Reference   string // checkout session token, echoed in gateway metadata
    AmountCents int64
    Currency    string
    SaveCard    bool
}

// Intent is a freshly created payment intent.  ClientSecret is handed
// to the presentation layer so the user's device can complete the
// payment; this service never sees raw card data.
type Intent struct {
    ID           string
    ClientSecret string
    Status       IntentStatus
}

// ConfirmResult is the outcome of a confirmation attempt.
// RequiresAction is a valid intermediate outcome, not a failure: the
// user must complete a challenge (3-D Secure) at ActionURL and the
// caller retries confirmation afterwards.
type ConfirmResult struct {
    Status         IntentStatus
    RequiresAction bool
    ActionURL      string
}

// Gateway is the adapter interface over the external payment network.
// Implementations must map provider error codes onto the package's
// error taxonomy.
type Gateway interface {
    CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
    ConfirmIntent(ctx context.Context, intentID, paymentMethodID string) (ConfirmResult, error)
}

// DefaultTimeout bounds a single gateway round trip.
const DefaultTimeout = 15 * time.Second
