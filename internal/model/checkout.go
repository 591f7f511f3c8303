package model

import "time"

// CheckoutState enumerates the steps of the checkout saga.  A session
// starts in StateCart when initialized and moves strictly forward except
// for the review loop (a rejected price change terminates the session
// and sends the user back to their cart).  CONFIRMATION and ERROR are
// terminal; a session in a terminal state is immutable and a new attempt
// requires a new idempotency key.
type CheckoutState string

const (
    StateCart         CheckoutState = "CART"
    StateReview       CheckoutState = "REVIEW"
    StateTravelers    CheckoutState = "TRAVELERS"
    StatePayment      CheckoutState = "PAYMENT"
    StateProcessing   CheckoutState = "PROCESSING"
    StateConfirmation CheckoutState = "CONFIRMATION"
    StateError        CheckoutState = "ERROR"
)

// IsTerminal reports whether the state ends the saga.
func (s CheckoutState) IsTerminal() bool {
    return s == StateConfirmation || s == StateError
}

// String representation (for logging).
func (s CheckoutState) String() string { return string(s) }

// checkoutTransitions lists every legal state change.  Anything not in
// this table is a state conflict, which the coordinator treats as a
// caller bug.
var checkoutTransitions = map[CheckoutState][]CheckoutState{
    StateCart:       {StateReview},
    StateReview:     {StateReview, StateTravelers, StateCart, StateError},
    StateTravelers:  {StatePayment},
    StatePayment:    {StatePayment, StateProcessing},
    StateProcessing: {StateConfirmation, StatePayment, StateError},
}

// CanTransition reports whether moving from one checkout state to
// another is legal.
func CanTransition(from, to CheckoutState) bool {
    for _, t := range checkoutTransitions[from] {
        if t == to {
            return true
        }
    }
    return false
}

// ItemPriceCheck is the per-line outcome of a price verification run.
type ItemPriceCheck struct {
    ItemID             uint64      `json:"item_id"`
    ProductType        ProductType `json:"product_type"`
    OfferRef           string      `json:"offer_ref"`
    SnapshotPriceCents int64       `json:"snapshot_price_cents"`
    CurrentPriceCents  int64       `json:"current_price_cents"`
    Changed            bool        `json:"changed"`
    Unavailable        bool        `json:"unavailable"`
}

// PriceVerificationResult aggregates a full re-quote of a cart at
// checkout time.  It is ephemeral: recomputed on every verification run
// and persisted only on the owning session for the acknowledgement step.
type PriceVerificationResult struct {
    Items               []ItemPriceCheck `json:"items"`
    PriceChanged        bool             `json:"price_changed"`
    HasUnavailableItems bool             `json:"has_unavailable_items"`
    NewTotalCents       int64            `json:"new_total_cents"`
    CheckedAt           time.Time        `json:"checked_at"`
}

// Traveler is one named passenger or attendee collected during
// checkout.  DateOfBirth uses "YYYY-MM-DD".
type Traveler struct {
    FirstName      string  `json:"first_name"`
    LastName       string  `json:"last_name"`
    DateOfBirth    string  `json:"date_of_birth"`
    DocumentNumber *string `json:"document_number,omitempty"`
}

// ContactDetails is where booking confirmations are sent.
type ContactDetails struct {
    Email string `json:"email"`
    Phone string `json:"phone"`
}

// BillingDetails optionally overrides the billing address presented to
// the payment gateway.
type BillingDetails struct {
    Name         string `json:"name"`
    AddressLine1 string `json:"address_line1"`
    City         string `json:"city"`
    PostalCode   string `json:"postal_code"`
    Country      string `json:"country"`
}

// TravelerPayload is everything the travelers step collects.  It is
// persisted on the session as one JSON document once validation passes.
type TravelerPayload struct {
    Travelers []Traveler      `json:"travelers"`
    Contact   ContactDetails  `json:"contact"`
    Billing   *BillingDetails `json:"billing,omitempty"`
}

// CheckoutSession is the durable source of truth for one checkout
// attempt.  The coordinator persists it after every step so that any
// step can be retried safely.  Token is the opaque handle exposed to
// the presentation layer; IdempotencyKey is supplied by the caller and
// unique among non-terminal sessions.
type CheckoutSession struct {
    ID              uint64                   `json:"id"`
    Token           string                   `json:"token"`
    CartID          uint64                   `json:"cart_id"`
    UserID          uint64                   `json:"user_id"`
    IdempotencyKey  string                   `json:"idempotency_key"`
    State           CheckoutState            `json:"state"`
    Currency        string                   `json:"currency"`
    TotalCents      int64                    `json:"total_cents"` // total the session will charge
    Verification    *PriceVerificationResult `json:"verification,omitempty"`
    Travelers       *TravelerPayload         `json:"travelers,omitempty"`
    PaymentIntentID *string                  `json:"payment_intent_id,omitempty"`
    BookingID       *uint64                  `json:"booking_id,omitempty"`
    FailureReason   *string                  `json:"failure_reason,omitempty"`
    CreatedAt       time.Time                `json:"created_at"`
    UpdatedAt       time.Time                `json:"updated_at"`
}
