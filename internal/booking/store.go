// Package booking turns a paid checkout session into durable records:
// a trip, a booking attached to it, and the per-item detail rows.  The
// money-bearing part (trip + booking + counters) is one transaction;
// everything after it is best-effort enrichment.
package booking

import (
    "context"
    "database/sql"

    "github.com/voyago/booking-core/internal/model"
    "github.com/voyago/booking-core/internal/repository"
)

// Store is the persistence surface the finalizer works against.
type Store interface {
    // GetByPaymentIntent is the idempotency probe: an existing booking
    // for the intent means the charge is already accounted for.
    GetByPaymentIntent(ctx context.Context, intentID string) (*model.Booking, error)

    // CreateTripAndBooking atomically inserts the trip, inserts the
    // booking attached to it and bumps the trip's aggregate counters.
    // A concurrent finalize for the same payment intent loses with
    // repository.ErrDuplicateKey and nothing written.
    CreateTripAndBooking(ctx context.Context, t *model.Trip, b *model.Booking) error

    ReferenceExists(ctx context.Context, ref string) (bool, error)
    InsertDetail(ctx context.Context, bookingID uint64, item model.CartItem) error
    EnqueueDetailBacklog(ctx context.Context, bookingID uint64, item model.CartItem, reason string) error
}

// SQLStore implements Store over the trip and booking repositories,
// sharing one database handle for the cross-table transaction.
type SQLStore struct {
    db       *sql.DB
    trips    *repository.TripRepo
    bookings *repository.BookingRepo
}

// NewSQLStore returns a Store backed by MySQL.
func NewSQLStore(db *sql.DB, trips *repository.TripRepo, bookings *repository.BookingRepo) *SQLStore {
    return &SQLStore{db: db, trips: trips, bookings: bookings}
}

func (s *SQLStore) GetByPaymentIntent(ctx context.Context, intentID string) (*model.Booking, error) {
    return s.bookings.GetByPaymentIntent(ctx, intentID)
}

func (s *SQLStore) ReferenceExists(ctx context.Context, ref string) (bool, error) {
    return s.bookings.ReferenceExists(ctx, ref)
}

func (s *SQLStore) InsertDetail(ctx context.Context, bookingID uint64, item model.CartItem) error {
    return s.bookings.InsertDetail(ctx, bookingID, item)
}

func (s *SQLStore) EnqueueDetailBacklog(ctx context.Context, bookingID uint64, item model.CartItem, reason string) error {
    return s.bookings.EnqueueDetailBacklog(ctx, bookingID, item, reason)
}

// CreateTripAndBooking runs the charge-bearing transaction.  The
// uniqueness constraint on bookings.payment_intent_id is the real
// serialization point: two racing calls both reach the insert, exactly
// one commits, the other rolls back with ErrDuplicateKey.
func (s *SQLStore) CreateTripAndBooking(ctx context.Context, t *model.Trip, b *model.Booking) error {
    tx, err := s.db.BeginTx(ctx, nil)
    if err != nil {
        return err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    if err := s.trips.CreateTx(ctx, tx, t); err != nil {
        return err
    }
    b.TripID = &t.ID
    if err := s.bookings.CreateTx(ctx, tx, b); err != nil {
        return err
    }
    if err := s.trips.AttachBookingTx(ctx, tx, t.ID, b.TotalCents); err != nil {
        return err
    }
    if err := tx.Commit(); err != nil {
        return err
    }
    committed = true
    return nil
}
