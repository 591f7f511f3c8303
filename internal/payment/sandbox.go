package payment

import (
    "context"
    "strings"
    "sync"

    "github.com/google/uuid"
)

// SandboxGateway is an in-memory gateway used in development and tests.
// Outcomes are driven by the payment method id, mirroring how provider
// sandboxes use magic card numbers:
//
//   pm_declined  -> ErrDeclined
//   pm_3ds       -> requires-action once, then succeeds on the retry
//   pm_network   -> ErrNetwork on every call
//   anything else -> immediate success
type SandboxGateway struct {
    mu      sync.Mutex
    intents map[string]*sandboxIntent
}

type sandboxIntent struct {
    status     IntentStatus
    challenged bool // a 3-DS challenge has been surfaced for this intent
}

// NewSandboxGateway returns an empty sandbox.
func NewSandboxGateway() *SandboxGateway {
    return &SandboxGateway{intents: make(map[string]*sandboxIntent)}
}

// CreateIntent registers a new intent.  Creating is always possible;
// failures only show up at confirmation, like the real network.
func (g *SandboxGateway) CreateIntent(_ context.Context, req IntentRequest) (Intent, error) {
    g.mu.Lock()
    defer g.mu.Unlock()
    id := "pi_" + uuid.NewString()
    g.intents[id] = &sandboxIntent{status: IntentCreated}
    return Intent{
        ID:           id,
        ClientSecret: id + "_secret_" + uuid.NewString()[:8],
        Status:       IntentCreated,
    }, nil
}

// ConfirmIntent resolves the intent according to the payment method id.
func (g *SandboxGateway) ConfirmIntent(_ context.Context, intentID, paymentMethodID string) (ConfirmResult, error) {
    g.mu.Lock()
    defer g.mu.Unlock()
    in, ok := g.intents[intentID]
    if !ok {
        return ConfirmResult{}, ErrDeclined
    }
    if in.status == IntentSucceeded {
        // Re-confirming a settled intent is a no-op success, matching
        // provider behavior for retried confirmations.
        return ConfirmResult{Status: IntentSucceeded}, nil
    }
    switch {
    case strings.HasPrefix(paymentMethodID, "pm_declined"):
        in.status = IntentFailed
        return ConfirmResult{Status: IntentFailed}, ErrDeclined
    case strings.HasPrefix(paymentMethodID, "pm_network"):
        return ConfirmResult{}, ErrNetwork
    case strings.HasPrefix(paymentMethodID, "pm_3ds") && !in.challenged:
        in.challenged = true
        in.status = IntentRequiresAction
        return ConfirmResult{
            Status:         IntentRequiresAction,
            RequiresAction: true,
            ActionURL:      "https://sandbox.gateway.test/3ds/" + intentID,
        }, nil
    default:
        in.status = IntentSucceeded
        return ConfirmResult{Status: IntentSucceeded}, nil
    }
}
