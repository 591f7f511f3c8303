package booking

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/voyago/booking-core/internal/model"
    "github.com/voyago/booking-core/internal/queue"
    "github.com/voyago/booking-core/internal/repository"
)

// TripConfirmer moves a freshly created trip out of DRAFT.  The trip
// lifecycle service satisfies it.
type TripConfirmer interface {
    Confirm(ctx context.Context, tripID uint64) (*model.Trip, error)
}

// Publisher receives the booking-confirmed event.  A nil publisher
// drops it.
type Publisher interface {
    PublishBookingConfirmed(ctx context.Context, event queue.BookingConfirmedEvent) error
}

// Result is what finalization yields for the confirmation screen.
type Result struct {
    BookingID uint64 `json:"booking_id"`
    TripID    uint64 `json:"trip_id"`
    Reference string `json:"reference"`
}

// Finalizer materializes a booking from a checkout session whose
// payment has settled.  Exactly one booking can ever exist per payment
// intent: the probe-insert-reread sequence around the unique
// payment_intent_id column makes Finalize safe to call any number of
// times, concurrently included.
type Finalizer struct {
    store Store
    trips TripConfirmer
    pub   Publisher
}

// NewFinalizer returns a Finalizer.
func NewFinalizer(store Store, trips TripConfirmer, pub Publisher) *Finalizer {
    return &Finalizer{store: store, trips: trips, pub: pub}
}

// Finalize records the paid session as a booking.  The charge-bearing
// transaction covers the trip row, the booking row and the trip's
// counters; a failure inside it is safe to retry because the payment
// intent was not consumed.  Everything after the commit (trip
// confirmation, detail rows, the event) must not fail the call: the
// user has been charged and holds a booking, the rest is recoverable.
func (f *Finalizer) Finalize(ctx context.Context, session *model.CheckoutSession, cart *model.Cart, intentID string) (*Result, error) {
    if existing, err := f.store.GetByPaymentIntent(ctx, intentID); err == nil {
        return f.resultFor(existing), nil
    } else if !errors.Is(err, repository.ErrNotFound) {
        return nil, err
    }

    now := time.Now().UTC()
    ref, err := GenerateReference(ctx, f.store, now)
    if err != nil {
        return nil, err
    }

    trip := deriveTrip(cart, now)
    b := &model.Booking{
        UserID:        session.UserID,
        ProductType:   cart.PrimaryType(),
        Status:        model.BookingConfirmed,
        Reference:     ref,
        Currency:      session.Currency,
        SubtotalCents: cart.Totals.SubtotalCents,
        TaxCents:      cart.Totals.TaxCents,
        FeeCents:      cart.Totals.FeeCents,
        DiscountCents: cart.Totals.DiscountCents,
        // The session total is what the gateway actually charged; after
        // an accepted price change it supersedes the cart's cached sum.
        TotalCents:      session.TotalCents,
        PaymentStatus:   model.PaymentPaid,
        PaymentIntentID: intentID,
    }

    if err := f.store.CreateTripAndBooking(ctx, trip, b); err != nil {
        if errors.Is(err, repository.ErrDuplicateKey) {
            // Lost the race; the winner's booking is the answer.
            existing, rerr := f.store.GetByPaymentIntent(ctx, intentID)
            if rerr != nil {
                return nil, fmt.Errorf("booking exists for intent %s but re-read failed: %w", intentID, rerr)
            }
            return f.resultFor(existing), nil
        }
        return nil, err
    }

    if _, err := f.trips.Confirm(ctx, trip.ID); err != nil {
        log.Printf("booking: confirm trip %d failed (left DRAFT for reconciliation): %v", trip.ID, err)
    }

    f.writeDetails(ctx, b.ID, cart.Items)
    f.publish(ctx, session, trip, b)

    return &Result{BookingID: b.ID, TripID: trip.ID, Reference: b.Reference}, nil
}

func (f *Finalizer) resultFor(b *model.Booking) *Result {
    r := &Result{BookingID: b.ID, Reference: b.Reference}
    if b.TripID != nil {
        r.TripID = *b.TripID
    }
    return r
}

// writeDetails inserts the per-item detail rows.  A failed insert goes
// to the reconciliation backlog instead of failing the booking.
func (f *Finalizer) writeDetails(ctx context.Context, bookingID uint64, items []model.CartItem) {
    for _, item := range items {
        if err := f.store.InsertDetail(ctx, bookingID, item); err != nil {
            log.Printf("booking: detail write for booking %d item %d failed: %v", bookingID, item.ID, err)
            if berr := f.store.EnqueueDetailBacklog(ctx, bookingID, item, err.Error()); berr != nil {
                log.Printf("booking: backlog write for booking %d item %d failed: %v", bookingID, item.ID, berr)
            }
        }
    }
}

func (f *Finalizer) publish(ctx context.Context, session *model.CheckoutSession, trip *model.Trip, b *model.Booking) {
    if f.pub == nil {
        return
    }
    var email string
    if session.Travelers != nil {
        email = session.Travelers.Contact.Email
    }
    ev := queue.BookingConfirmedEvent{
        BookingID:    b.ID,
        Reference:    b.Reference,
        UserID:       b.UserID,
        TripID:       trip.ID,
        Destination:  trip.Destination,
        ProductType:  string(b.ProductType),
        Currency:     b.Currency,
        TotalCents:   b.TotalCents,
        ContactEmail: email,
        BookedAt:     b.BookedAt.UTC().Format(time.RFC3339),
    }
    if err := f.pub.PublishBookingConfirmed(ctx, ev); err != nil {
        log.Printf("booking: publish confirmation for booking %d failed: %v", b.ID, err)
    }
}

// deriveTrip builds the trip record from the cart contents: the first
// destination any item offers, and the widest date range the items
// span.  Items without dates fall back to today so an otherwise undated
// cart still yields a coherent trip.
func deriveTrip(cart *model.Cart, now time.Time) *model.Trip {
    destination := "Trip"
    for _, item := range cart.Items {
        if hint := item.Details.DestinationHint(); hint != "" {
            destination = hint
            break
        }
    }

    start, end := now, now
    haveDates := false
    for _, item := range cart.Items {
        from, to := item.Details.DateRange()
        f, ferr := time.Parse("2006-01-02", from)
        t, terr := time.Parse("2006-01-02", to)
        if ferr != nil || terr != nil {
            continue
        }
        if !haveDates || f.Before(start) {
            start = f
        }
        if !haveDates || t.After(end) {
            end = t
        }
        haveDates = true
    }

    return &model.Trip{
        UserID:      cart.UserID,
        Destination: destination,
        StartDate:   start,
        EndDate:     end,
        Status:      model.TripDraft,
    }
}
