package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"

    "github.com/voyago/booking-core/internal/model"
)

// BookingRepo provides CRUD operations for bookings, their type-specific
// detail rows and the reconciliation backlog.  The charge-bearing
// booking row is written transactionally by the finalizer; detail rows
// are best-effort enrichment written outside that transaction.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// DB exposes the underlying handle so the finalizer can open a
// transaction spanning trips and bookings.
func (r *BookingRepo) DB() *sql.DB { return r.db }

const bookingColumns = `id, user_id, trip_id, product_type, status, reference, currency,
       subtotal_cents, tax_cents, fee_cents, discount_cents, total_cents,
       payment_status, payment_intent_id, booked_at, created_at, updated_at`

// GetByPaymentIntent returns the booking backed by the given payment
// intent, or ErrNotFound.  This is the finalizer's idempotency probe:
// an existing row means the money has already been accounted for.
func (r *BookingRepo) GetByPaymentIntent(ctx context.Context, intentID string) (*model.Booking, error) {
    row := r.db.QueryRowContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE payment_intent_id = ?`, intentID)
    return scanBooking(row)
}

// GetForUser returns a booking by id, verifying ownership.
func (r *BookingRepo) GetForUser(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
    row := r.db.QueryRowContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, bookingID)
    b, err := scanBooking(row)
    if err != nil {
        return nil, err
    }
    if b.UserID != userID {
        return nil, ErrForbidden
    }
    return b, nil
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Booking, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC`, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Booking, 0)
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *b)
    }
    return out, rows.Err()
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and populates the generated id and timestamps on the
// record.  A duplicate payment_intent_id or reference is reported as
// ErrDuplicateKey; for the intent that means another finalize call won
// the race and the caller must re-read instead of charging twice.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
    const q = `INSERT INTO bookings
               (user_id, trip_id, product_type, status, reference, currency,
                subtotal_cents, tax_cents, fee_cents, discount_cents, total_cents,
                payment_status, payment_intent_id, booked_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, UTC_TIMESTAMP())`
    res, err := tx.ExecContext(ctx, q,
        b.UserID, b.TripID, b.ProductType, b.Status, b.Reference, b.Currency,
        b.SubtotalCents, b.TaxCents, b.FeeCents, b.DiscountCents, b.TotalCents,
        b.PaymentStatus, b.PaymentIntentID)
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
    b.ID = uint64(id)
    row := tx.QueryRowContext(ctx,
        `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, b.ID)
    got, err := scanBooking(row)
    if err != nil {
        return err
    }
    *b = *got
    return nil
}

// ReferenceExists reports whether a booking already uses the given
// human-facing reference number.
func (r *BookingRepo) ReferenceExists(ctx context.Context, reference string) (bool, error) {
    var exists bool
    err := r.db.QueryRowContext(ctx,
        `SELECT EXISTS(SELECT 1 FROM bookings WHERE reference = ?)`, reference).Scan(&exists)
    return exists, err
}

// InsertDetail writes the type-specific detail row for one cart line of
// a booking.  Items of unknown type have no detail table and are
// skipped.  Detail writes happen after the booking transaction has
// committed and must never be interpreted as part of the charge.
func (r *BookingRepo) InsertDetail(ctx context.Context, bookingID uint64, item model.CartItem) error {
    d := item.Details
    switch d.Kind {
    case model.ProductFlight:
        if d.Flight == nil {
            return errors.New("flight item without flight details")
        }
        _, err := r.db.ExecContext(ctx,
            `INSERT INTO flight_bookings
             (booking_id, offer_ref, origin, destination, departure_date, return_date, passengers, cabin_class, price_cents)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
            bookingID, item.OfferRef, d.Flight.Origin, d.Flight.Destination,
            d.Flight.DepartureDate, d.Flight.ReturnDate, d.Flight.Passengers,
            d.Flight.CabinClass, item.LineTotalCents())
        return err
    case model.ProductHotel:
        if d.Hotel == nil {
            return errors.New("hotel item without hotel details")
        }
        _, err := r.db.ExecContext(ctx,
            `INSERT INTO hotel_bookings
             (booking_id, offer_ref, city, hotel_name, check_in, check_out, rooms, guests, price_cents)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
            bookingID, item.OfferRef, d.Hotel.City, d.Hotel.Name,
            d.Hotel.CheckIn, d.Hotel.CheckOut, d.Hotel.Rooms, d.Hotel.Guests,
            item.LineTotalCents())
        return err
    case model.ProductCar:
        if d.Car == nil {
            return errors.New("car item without car details")
        }
        _, err := r.db.ExecContext(ctx,
            `INSERT INTO car_bookings
             (booking_id, offer_ref, pickup_city, pickup_date, dropoff_date, category, price_cents)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
            bookingID, item.OfferRef, d.Car.PickupCity, d.Car.PickupDate,
            d.Car.DropoffDate, d.Car.Category, item.LineTotalCents())
        return err
    case model.ProductExperience:
        if d.Experience == nil {
            return errors.New("experience item without experience details")
        }
        _, err := r.db.ExecContext(ctx,
            `INSERT INTO experience_bookings
             (booking_id, offer_ref, city, title, activity_date, attendees, price_cents)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
            bookingID, item.OfferRef, d.Experience.City, d.Experience.Title,
            d.Experience.Date, d.Experience.Attendees, item.LineTotalCents())
        return err
    }
    // Unknown provider payloads carry no typed table; nothing to write.
    return nil
}

// EnqueueDetailBacklog records a failed detail write for later
// reconciliation.  The original item payload is preserved so the
// reconciler can retry the exact insert.
func (r *BookingRepo) EnqueueDetailBacklog(ctx context.Context, bookingID uint64, item model.CartItem, reason string) error {
    payload, err := json.Marshal(item)
    if err != nil {
        return err
    }
    _, err = r.db.ExecContext(ctx,
        `INSERT INTO booking_detail_backlog (booking_id, item_payload, failure_reason)
         VALUES (?, ?, ?)`,
        bookingID, payload, reason)
    return err
}

func scanBooking(row scanner) (*model.Booking, error) {
    var b model.Booking
    var tripID sql.NullInt64
    err := row.Scan(
        &b.ID, &b.UserID, &tripID, &b.ProductType, &b.Status, &b.Reference, &b.Currency,
        &b.SubtotalCents, &b.TaxCents, &b.FeeCents, &b.DiscountCents, &b.TotalCents,
        &b.PaymentStatus, &b.PaymentIntentID, &b.BookedAt, &b.CreatedAt, &b.UpdatedAt,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if tripID.Valid {
        v := uint64(tripID.Int64)
        b.TripID = &v
    }
    return &b, nil
}
