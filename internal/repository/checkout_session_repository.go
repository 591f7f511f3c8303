package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"

    "github.com/voyago/booking-core/internal/model"
)

// CheckoutSessionRepo persists checkout sessions, the durable state of
// the checkout saga.  Every state change is a guarded UPDATE carrying
// the expected current state in its WHERE clause; when the guard
// misses, ErrStaleState is returned and the caller re-reads instead of
// blindly proceeding.  That makes each saga step safe to retry and
// rejects out-of-order or concurrent writers at the storage layer.
type CheckoutSessionRepo struct {
    db *sql.DB
}

// NewCheckoutSessionRepo returns a new CheckoutSessionRepo bound to the
// given database.
func NewCheckoutSessionRepo(db *sql.DB) *CheckoutSessionRepo {
    return &CheckoutSessionRepo{db: db}
}

// Create inserts a new session in its initial state.  The
// checkout_sessions.idempotency_key uniqueness constraint guarantees
// that concurrent initializations with the same key cannot both insert;
// the loser receives ErrDuplicateKey and should read the existing
// session back by key.
func (r *CheckoutSessionRepo) Create(ctx context.Context, s *model.CheckoutSession) error {
    const q = `INSERT INTO checkout_sessions
               (token, cart_id, user_id, idempotency_key, state, currency, total_cents)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q,
        s.Token, s.CartID, s.UserID, s.IdempotencyKey, s.State, s.Currency, s.TotalCents)
    if err != nil {
        if isDuplicate(err) {
            return ErrDuplicateKey
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    s.ID = uint64(id)
    // Query back the full row to populate timestamps and defaults.
    got, err := r.GetByToken(ctx, s.Token)
    if err != nil {
        return err
    }
    *s = *got
    return nil
}

const sessionColumns = `id, token, cart_id, user_id, idempotency_key, state, currency,
       total_cents, verification, travelers, payment_intent_id, booking_id,
       failure_reason, created_at, updated_at`

// GetByToken returns the session with the given opaque token or
// ErrNotFound.
func (r *CheckoutSessionRepo) GetByToken(ctx context.Context, token string) (*model.CheckoutSession, error) {
    row := r.db.QueryRowContext(ctx,
        `SELECT `+sessionColumns+` FROM checkout_sessions WHERE token = ?`, token)
    return scanSession(row)
}

// GetByIdempotencyKey returns the session created under the given key
// or ErrNotFound.  Used by initializeCheckout to return the existing
// session instead of creating a second one.
func (r *CheckoutSessionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*model.CheckoutSession, error) {
    row := r.db.QueryRowContext(ctx,
        `SELECT `+sessionColumns+` FROM checkout_sessions WHERE idempotency_key = ?`, key)
    return scanSession(row)
}

// SetVerification stores a fresh price verification result and the
// session's tracked total, moving the session from the expected state
// to the target state in the same statement.
func (r *CheckoutSessionRepo) SetVerification(ctx context.Context, id uint64, from, to model.CheckoutState, v *model.PriceVerificationResult, totalCents int64) error {
    payload, err := json.Marshal(v)
    if err != nil {
        return err
    }
    return r.guarded(ctx,
        `UPDATE checkout_sessions SET state = ?, verification = ?, total_cents = ?, updated_at = UTC_TIMESTAMP()
         WHERE id = ? AND state = ?`,
        to, payload, totalCents, id, from)
}

// SetTravelers stores the validated traveler payload and advances the
// session.
func (r *CheckoutSessionRepo) SetTravelers(ctx context.Context, id uint64, from, to model.CheckoutState, p *model.TravelerPayload) error {
    payload, err := json.Marshal(p)
    if err != nil {
        return err
    }
    return r.guarded(ctx,
        `UPDATE checkout_sessions SET state = ?, travelers = ?, updated_at = UTC_TIMESTAMP()
         WHERE id = ? AND state = ?`,
        to, payload, id, from)
}

// SetPaymentIntent records the gateway intent id.  The session stays in
// the payment state; the guard only protects against the session having
// moved elsewhere meanwhile.
func (r *CheckoutSessionRepo) SetPaymentIntent(ctx context.Context, id uint64, state model.CheckoutState, intentID string) error {
    return r.guarded(ctx,
        `UPDATE checkout_sessions SET payment_intent_id = ?, updated_at = UTC_TIMESTAMP()
         WHERE id = ? AND state = ?`,
        intentID, id, state)
}

// UpdateState performs a bare guarded state transition.
func (r *CheckoutSessionRepo) UpdateState(ctx context.Context, id uint64, from, to model.CheckoutState) error {
    return r.guarded(ctx,
        `UPDATE checkout_sessions SET state = ?, updated_at = UTC_TIMESTAMP()
         WHERE id = ? AND state = ?`,
        to, id, from)
}

// Complete moves the session to its success terminal state and records
// the booking it produced.
func (r *CheckoutSessionRepo) Complete(ctx context.Context, id uint64, from model.CheckoutState, bookingID uint64) error {
    return r.guarded(ctx,
        `UPDATE checkout_sessions SET state = ?, booking_id = ?, updated_at = UTC_TIMESTAMP()
         WHERE id = ? AND state = ?`,
        model.StateConfirmation, bookingID, id, from)
}

// ReturnToCart parks a review-stage session back at the cart step with
// a reason, used when the user rejects a re-quoted price.  The cart
// itself is untouched.
func (r *CheckoutSessionRepo) ReturnToCart(ctx context.Context, id uint64, reason string) error {
    return r.guarded(ctx,
        `UPDATE checkout_sessions SET state = ?, failure_reason = ?, updated_at = UTC_TIMESTAMP()
         WHERE id = ? AND state = ?`,
        model.StateCart, reason, id, model.StateReview)
}

// Fail moves the session to its failure terminal state with a reason.
// The guard excludes terminal states so a finished session is never
// overwritten.
func (r *CheckoutSessionRepo) Fail(ctx context.Context, id uint64, reason string) error {
    return r.guarded(ctx,
        `UPDATE checkout_sessions SET state = ?, failure_reason = ?, updated_at = UTC_TIMESTAMP()
         WHERE id = ? AND state NOT IN (?, ?)`,
        model.StateError, reason, id, model.StateConfirmation, model.StateError)
}

// guarded runs an UPDATE that must match exactly one row; zero matched
// rows means the state guard failed.
func (r *CheckoutSessionRepo) guarded(ctx context.Context, query string, args ...interface{}) error {
    res, err := r.db.ExecContext(ctx, query, args...)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrStaleState
    }
    return nil
}

// scanner abstracts *sql.Row so scanSession works for single-row
// queries regardless of origin.
type scanner interface {
    Scan(dest ...interface{}) error
}

func scanSession(row scanner) (*model.CheckoutSession, error) {
    var s model.CheckoutSession
    var verification, travelers []byte
    var intentID, failure sql.NullString
    var bookingID sql.NullInt64
    err := row.Scan(
        &s.ID, &s.Token, &s.CartID, &s.UserID, &s.IdempotencyKey, &s.State, &s.Currency,
        &s.TotalCents, &verification, &travelers, &intentID, &bookingID,
        &failure, &s.CreatedAt, &s.UpdatedAt,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if len(verification) > 0 {
        var v model.PriceVerificationResult
        if err := json.Unmarshal(verification, &v); err != nil {
            return nil, err
        }
        s.Verification = &v
    }
    if len(travelers) > 0 {
        var t model.TravelerPayload
        if err := json.Unmarshal(travelers, &t); err != nil {
            return nil, err
        }
        s.Travelers = &t
    }
    if intentID.Valid {
        v := intentID.String
        s.PaymentIntentID = &v
    }
    if bookingID.Valid {
        v := uint64(bookingID.Int64)
        s.BookingID = &v
    }
    if failure.Valid {
        v := failure.String
        s.FailureReason = &v
    }
    return &s, nil
}
