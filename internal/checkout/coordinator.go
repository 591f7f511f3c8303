// Package checkout drives the checkout saga: a strictly ordered
// sequence of steps from a priced cart to a confirmed booking.  The
// durable state lives in the checkout session; the coordinator loads
// it, checks the step is legal in the current state, performs the
// step's side effects and advances the session with a guarded write.
// Out-of-order calls fail with ErrStateConflict and leave the session
// untouched, so a confused or malicious client can never skip a step.
package checkout

import (
    "context"
    "errors"
    "fmt"
    "log"

    "github.com/google/uuid"

    "github.com/voyago/booking-core/internal/booking"
    "github.com/voyago/booking-core/internal/model"
    "github.com/voyago/booking-core/internal/payment"
    "github.com/voyago/booking-core/internal/repository"
)

// CartStore is the view of cart persistence checkout needs.
// *repository.CartRepo satisfies it.
type CartStore interface {
    GetForUser(ctx context.Context, cartID, userID uint64) (*model.Cart, error)
    Clear(ctx context.Context, cartID, userID uint64) (*model.Cart, error)
}

// SessionStore persists checkout sessions with guarded state writes.
// *repository.CheckoutSessionRepo satisfies it.
type SessionStore interface {
    Create(ctx context.Context, s *model.CheckoutSession) error
    GetByToken(ctx context.Context, token string) (*model.CheckoutSession, error)
    GetByIdempotencyKey(ctx context.Context, key string) (*model.CheckoutSession, error)
    SetVerification(ctx context.Context, id uint64, from, to model.CheckoutState, v *model.PriceVerificationResult, totalCents int64) error
    SetTravelers(ctx context.Context, id uint64, from, to model.CheckoutState, p *model.TravelerPayload) error
    SetPaymentIntent(ctx context.Context, id uint64, state model.CheckoutState, intentID string) error
    UpdateState(ctx context.Context, id uint64, from, to model.CheckoutState) error
    Complete(ctx context.Context, id uint64, from model.CheckoutState, bookingID uint64) error
    ReturnToCart(ctx context.Context, id uint64, reason string) error
    Fail(ctx context.Context, id uint64, reason string) error
}

// PriceVerifier re-quotes a cart against the upstream offer source.
type PriceVerifier interface {
    Verify(ctx context.Context, cart *model.Cart) (*model.PriceVerificationResult, error)
}

// Finalizer materializes a booking once payment has settled.
type Finalizer interface {
    Finalize(ctx context.Context, session *model.CheckoutSession, cart *model.Cart, intentID string) (*booking.Result, error)
}

// Coordinator orchestrates the saga.  It holds no state of its own;
// every step round-trips through the session store so any instance of
// the service can pick up any session.
type Coordinator struct {
    carts     CartStore
    sessions  SessionStore
    verifier  PriceVerifier
    gateway   payment.Gateway
    finalizer Finalizer
}

// NewCoordinator wires a Coordinator.
func NewCoordinator(carts CartStore, sessions SessionStore, verifier PriceVerifier, gateway payment.Gateway, finalizer Finalizer) *Coordinator {
    return &Coordinator{
        carts:     carts,
        sessions:  sessions,
        verifier:  verifier,
        gateway:   gateway,
        finalizer: finalizer,
    }
}

// ConfirmOutcome is the result of a payment confirmation attempt.
// Exactly one of the three shapes applies: Result set (booked),
// RequiresAction set (challenge pending, retry after completing it), or
// Retryable set alongside a returned error (transient failure, same
// call can be repeated).
type ConfirmOutcome struct {
    Session        *model.CheckoutSession `json:"session"`
    RequiresAction bool                   `json:"requires_action,omitempty"`
    ActionURL      string                 `json:"action_url,omitempty"`
    Retryable      bool                   `json:"retryable,omitempty"`
    Result         *booking.Result        `json:"result,omitempty"`
}

// InitializeCheckout starts a checkout attempt for the user's cart.
// The caller-supplied idempotency key makes retries safe: a second call
// with the same key returns the existing session, whatever state it has
// reached, and never creates a duplicate.
func (c *Coordinator) InitializeCheckout(ctx context.Context, userID, cartID uint64, idempotencyKey string) (*model.CheckoutSession, error) {
    if idempotencyKey == "" {
        return nil, ErrMissingIdempotencyKey
    }

    existing, err := c.sessions.GetByIdempotencyKey(ctx, idempotencyKey)
    if err == nil {
        if existing.UserID != userID {
            return nil, ErrSessionNotFound
        }
        return existing, nil
    }
    if !errors.Is(err, repository.ErrNotFound) {
        return nil, err
    }

    cart, err := c.carts.GetForUser(ctx, cartID, userID)
    if err != nil {
        return nil, err
    }
    if len(cart.Items) == 0 {
        return nil, ErrCartEmpty
    }

    s := &model.CheckoutSession{
        Token:          uuid.NewString(),
        CartID:         cart.ID,
        UserID:         userID,
        IdempotencyKey: idempotencyKey,
        State:          model.StateReview,
        Currency:       cart.Currency,
        TotalCents:     cart.Totals.TotalCents,
    }
    if err := c.sessions.Create(ctx, s); err != nil {
        if errors.Is(err, repository.ErrDuplicateKey) {
            // Lost an initialization race on the same key; the winner's
            // session is the answer.
            return c.sessions.GetByIdempotencyKey(ctx, idempotencyKey)
        }
        return nil, err
    }
    return s, nil
}

// GetSession returns the session behind a token, scoped to its owner.
func (c *Coordinator) GetSession(ctx context.Context, token string, userID uint64) (*model.CheckoutSession, error) {
    return c.loadOwned(ctx, token, userID)
}

// VerifyPrices re-quotes the cart for a session in the review step.
// Three outcomes: an unavailable item terminates the session (the error
// is ErrItemUnavailable and the returned session is in its failure
// state); a price change parks the session in review with the
// verification attached for acknowledgement; no movement advances
// straight to the travelers step.
func (c *Coordinator) VerifyPrices(ctx context.Context, token string, userID uint64) (*model.CheckoutSession, error) {
    s, err := c.loadOwned(ctx, token, userID)
    if err != nil {
        return nil, err
    }
    if s.State != model.StateReview {
        return nil, c.conflict(s, "verifyPrices")
    }

    cart, err := c.carts.GetForUser(ctx, s.CartID, userID)
    if err != nil {
        return nil, err
    }

    v, err := c.verifier.Verify(ctx, cart)
    if err != nil {
        return nil, fmt.Errorf("price verification: %w", err)
    }

    switch {
    case v.HasUnavailableItems:
        if err := c.sessions.SetVerification(ctx, s.ID, model.StateReview, model.StateReview, v, s.TotalCents); err != nil {
            return nil, c.mapStale(s, err, "verifyPrices")
        }
        if err := c.sessions.Fail(ctx, s.ID, "cart contains unavailable items"); err != nil {
            return nil, err
        }
        s, err = c.sessions.GetByToken(ctx, token)
        if err != nil {
            return nil, err
        }
        return s, ErrItemUnavailable
    case v.PriceChanged:
        // Keep the old total; the user has not accepted the new one.
        if err := c.sessions.SetVerification(ctx, s.ID, model.StateReview, model.StateReview, v, s.TotalCents); err != nil {
            return nil, c.mapStale(s, err, "verifyPrices")
        }
    default:
        if err := c.sessions.SetVerification(ctx, s.ID, model.StateReview, model.StateTravelers, v, v.NewTotalCents); err != nil {
            return nil, c.mapStale(s, err, "verifyPrices")
        }
    }
    return c.sessions.GetByToken(ctx, token)
}

// AcknowledgePriceChange resolves a pending price change.  Accepting
// adopts the re-quoted total and advances to the travelers step.
// Rejecting sends the session back to the cart step; the cart itself is
// left exactly as it was so the user can edit it and start over.
func (c *Coordinator) AcknowledgePriceChange(ctx context.Context, token string, userID uint64, accept bool) (*model.CheckoutSession, error) {
    s, err := c.loadOwned(ctx, token, userID)
    if err != nil {
        return nil, err
    }
    if s.State != model.StateReview || s.Verification == nil || !s.Verification.PriceChanged {
        return nil, c.conflict(s, "acknowledgePriceChange")
    }

    if accept {
        if err := c.sessions.SetVerification(ctx, s.ID, model.StateReview, model.StateTravelers, s.Verification, s.Verification.NewTotalCents); err != nil {
            return nil, c.mapStale(s, err, "acknowledgePriceChange")
        }
    } else {
        if err := c.sessions.ReturnToCart(ctx, s.ID, "price change rejected by user"); err != nil {
            return nil, c.mapStale(s, err, "acknowledgePriceChange")
        }
    }
    return c.sessions.GetByToken(ctx, token)
}

// SubmitTravelerDetails validates and stores the traveler step's
// payload.  Validation problems come back as field errors with the
// session unchanged; the step succeeds only when the whole payload is
// acceptable, and then advances to payment.
func (c *Coordinator) SubmitTravelerDetails(ctx context.Context, token string, userID uint64, payload *model.TravelerPayload) (*model.CheckoutSession, []FieldError, error) {
    s, err := c.loadOwned(ctx, token, userID)
    if err != nil {
        return nil, nil, err
    }
    if s.State != model.StateTravelers {
        return nil, nil, c.conflict(s, "submitTravelerDetails")
    }

    cart, err := c.carts.GetForUser(ctx, s.CartID, userID)
    if err != nil {
        return nil, nil, err
    }
    if fieldErrs := validateTravelerPayload(cart, payload); len(fieldErrs) > 0 {
        return s, fieldErrs, nil
    }

    if err := c.sessions.SetTravelers(ctx, s.ID, model.StateTravelers, model.StatePayment, payload); err != nil {
        return nil, nil, c.mapStale(s, err, "submitTravelerDetails")
    }
    s, err = c.sessions.GetByToken(ctx, token)
    return s, nil, err
}

// CreatePaymentIntent asks the gateway for a payment intent covering
// the session total.  One intent per session: a repeat call returns the
// already recorded intent id instead of creating a second charge
// vehicle.
func (c *Coordinator) CreatePaymentIntent(ctx context.Context, token string, userID uint64) (*model.CheckoutSession, *payment.Intent, error) {
    s, err := c.loadOwned(ctx, token, userID)
    if err != nil {
        return nil, nil, err
    }
    if s.State != model.StatePayment {
        return nil, nil, c.conflict(s, "createPaymentIntent")
    }
    if s.PaymentIntentID != nil {
        return s, &payment.Intent{ID: *s.PaymentIntentID, Status: payment.IntentCreated}, nil
    }

    intent, err := c.gateway.CreateIntent(ctx, payment.IntentRequest{
        Reference:   s.Token,
        AmountCents: s.TotalCents,
        Currency:    s.Currency,
    })
    if err != nil {
        return nil, nil, fmt.Errorf("create payment intent: %w", err)
    }
    if err := c.sessions.SetPaymentIntent(ctx, s.ID, model.StatePayment, intent.ID); err != nil {
        return nil, nil, c.mapStale(s, err, "createPaymentIntent")
    }
    s, err = c.sessions.GetByToken(ctx, token)
    return s, &intent, err
}

// ConfirmPayment attempts to settle the session's payment intent and,
// on success, finalizes the booking.  A declined charge terminates the
// session.  A gateway outage or a pending 3-D Secure challenge returns
// the session to the payment step so the same call can be repeated.  A
// session found in the processing step is picked up where it left off,
// which is how a crash between charge and booking recovers: the
// finalizer is idempotent per payment intent, so replaying this step
// can never double-book or double-charge.
func (c *Coordinator) ConfirmPayment(ctx context.Context, token string, userID uint64, paymentMethodID string) (*ConfirmOutcome, error) {
    s, err := c.loadOwned(ctx, token, userID)
    if err != nil {
        return nil, err
    }
    if s.State != model.StatePayment && s.State != model.StateProcessing {
        return nil, c.conflict(s, "confirmPayment")
    }
    if s.PaymentIntentID == nil {
        return nil, ErrNoPaymentIntent
    }
    intentID := *s.PaymentIntentID

    if s.State == model.StatePayment {
        if err := c.sessions.UpdateState(ctx, s.ID, model.StatePayment, model.StateProcessing); err != nil {
            return nil, c.mapStale(s, err, "confirmPayment")
        }
    }

    res, err := c.gateway.ConfirmIntent(ctx, intentID, paymentMethodID)
    switch {
    case errors.Is(err, payment.ErrDeclined):
        if ferr := c.sessions.Fail(ctx, s.ID, "payment declined"); ferr != nil {
            log.Printf("checkout: session %d fail after decline: %v", s.ID, ferr)
        }
        s, _ = c.sessions.GetByToken(ctx, token)
        return &ConfirmOutcome{Session: s}, payment.ErrDeclined
    case errors.Is(err, payment.ErrNetwork):
        // Nothing charged; hand the step back for a retry.
        c.revertToPayment(ctx, s)
        s, _ = c.sessions.GetByToken(ctx, token)
        return &ConfirmOutcome{Session: s, Retryable: true}, payment.ErrNetwork
    case err != nil:
        c.revertToPayment(ctx, s)
        s, _ = c.sessions.GetByToken(ctx, token)
        return &ConfirmOutcome{Session: s, Retryable: true}, fmt.Errorf("confirm payment intent: %w", err)
    }

    if res.RequiresAction {
        c.revertToPayment(ctx, s)
        s, _ = c.sessions.GetByToken(ctx, token)
        return &ConfirmOutcome{Session: s, RequiresAction: true, ActionURL: res.ActionURL}, nil
    }

    // The charge has settled.  From here on the session must never
    // regress past the money: a failure below leaves it in the
    // processing step for a retried confirmation, which replays
    // finalization idempotently.
    cart, err := c.carts.GetForUser(ctx, s.CartID, userID)
    if err != nil {
        return nil, fmt.Errorf("load cart after settled payment (retry confirmation): %w", err)
    }
    result, err := c.finalizer.Finalize(ctx, s, cart, intentID)
    if err != nil {
        log.Printf("checkout: session %d paid but finalization failed: %v", s.ID, err)
        return nil, fmt.Errorf("finalize booking after settled payment (retry confirmation): %w", err)
    }

    if err := c.sessions.Complete(ctx, s.ID, model.StateProcessing, result.BookingID); err != nil && !errors.Is(err, repository.ErrStaleState) {
        // The booking exists; completing the session is bookkeeping.
        log.Printf("checkout: session %d complete: %v", s.ID, err)
    }
    if _, err := c.carts.Clear(ctx, s.CartID, userID); err != nil {
        log.Printf("checkout: session %d clear cart %d: %v", s.ID, s.CartID, err)
    }

    s, err = c.sessions.GetByToken(ctx, token)
    if err != nil {
        return nil, err
    }
    return &ConfirmOutcome{Session: s, Result: result}, nil
}

// loadOwned fetches a session by token and hides sessions owned by
// other users behind ErrSessionNotFound: the token is opaque, so "not
// yours" and "does not exist" look identical by design of the API.
func (c *Coordinator) loadOwned(ctx context.Context, token string, userID uint64) (*model.CheckoutSession, error) {
    s, err := c.sessions.GetByToken(ctx, token)
    if errors.Is(err, repository.ErrNotFound) {
        return nil, ErrSessionNotFound
    }
    if err != nil {
        return nil, err
    }
    if s.UserID != userID {
        return nil, ErrSessionNotFound
    }
    return s, nil
}

func (c *Coordinator) conflict(s *model.CheckoutSession, op string) error {
    log.Printf("checkout: session %d: %s called in state %s", s.ID, op, s.State)
    return fmt.Errorf("%w: %s in %s", ErrStateConflict, op, s.State)
}

// mapStale translates a lost storage guard into the state conflict the
// caller understands; any other error passes through.
func (c *Coordinator) mapStale(s *model.CheckoutSession, err error, op string) error {
    if errors.Is(err, repository.ErrStaleState) {
        return c.conflict(s, op)
    }
    return err
}

// revertToPayment hands a processing session back to the payment step.
// Losing the guard just means another confirmation attempt already
// moved the session, which is fine.
func (c *Coordinator) revertToPayment(ctx context.Context, s *model.CheckoutSession) {
    if err := c.sessions.UpdateState(ctx, s.ID, model.StateProcessing, model.StatePayment); err != nil && !errors.Is(err, repository.ErrStaleState) {
        log.Printf("checkout: session %d revert to payment: %v", s.ID, err)
    }
}
