package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/voyago/booking-core/internal/model"
)

// TripRepo provides CRUD operations for trips.  Status changes use
// guarded UPDATEs so the lifecycle sweep stays idempotent, and the
// aggregate counters are only ever touched through atomic increments.
type TripRepo struct {
    db *sql.DB
}

// NewTripRepo returns a new TripRepo bound to the given database.
func NewTripRepo(db *sql.DB) *TripRepo { return &TripRepo{db: db} }

const tripColumns = `id, user_id, destination, start_date, end_date, status,
       booking_count, total_booked_cents, created_at, updated_at`

// CreateTx inserts a new trip within the scope of an existing
// transaction and populates the generated id and timestamps.
func (r *TripRepo) CreateTx(ctx context.Context, tx *sql.Tx, t *model.Trip) error {
    const q = `INSERT INTO trips (user_id, destination, start_date, end_date, status)
               VALUES (?, ?, ?, ?, ?)`
    res, err := tx.ExecContext(ctx, q,
        t.UserID, t.Destination,
        t.StartDate.UTC().Format("2006-01-02"), t.EndDate.UTC().Format("2006-01-02"),
        t.Status)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    t.ID = uint64(id)
    row := tx.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ?`, t.ID)
    got, err := scanTrip(row)
    if err != nil {
        return err
    }
    *t = *got
    return nil
}

// AttachBookingTx bumps the trip's aggregate counters for a newly
// attached booking.  The increment happens in SQL, not read-modify-write
// in Go, so concurrent bookings against the same trip cannot lose
// updates.
func (r *TripRepo) AttachBookingTx(ctx context.Context, tx *sql.Tx, tripID uint64, amountCents int64) error {
    res, err := tx.ExecContext(ctx,
        `UPDATE trips
         SET booking_count = booking_count + 1,
             total_booked_cents = total_booked_cents + ?,
             updated_at = UTC_TIMESTAMP()
         WHERE id = ?`,
        amountCents, tripID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return ErrNotFound
    }
    return nil
}

// GetByID returns the trip or ErrNotFound.
func (r *TripRepo) GetByID(ctx context.Context, tripID uint64) (*model.Trip, error) {
    row := r.db.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = ?`, tripID)
    return scanTrip(row)
}

// GetForUser returns the trip by id, verifying ownership.
func (r *TripRepo) GetForUser(ctx context.Context, tripID, userID uint64) (*model.Trip, error) {
    t, err := r.GetByID(ctx, tripID)
    if err != nil {
        return nil, err
    }
    if t.UserID != userID {
        return nil, ErrForbidden
    }
    return t, nil
}

// ListByUser returns the user's trips ordered by start date descending.
// Archived trips are excluded unless includeArchived is set.
func (r *TripRepo) ListByUser(ctx context.Context, userID uint64, includeArchived bool) ([]model.Trip, error) {
    q := `SELECT ` + tripColumns + ` FROM trips WHERE user_id = ?`
    if !includeArchived {
        q += ` AND status <> 'ARCHIVED'`
    }
    q += ` ORDER BY start_date DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Trip, 0)
    for rows.Next() {
        t, err := scanTrip(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *t)
    }
    return out, rows.Err()
}

// UpdateStatus transitions the trip from one status to another.  The
// expected current status rides in the WHERE clause; when it no longer
// matches, ErrStaleState is returned and no side effects should fire.
// This guard is what makes the time-based sweep idempotent.
func (r *TripRepo) UpdateStatus(ctx context.Context, tripID uint64, from, to model.TripStatus) error {
    res, err := r.db.ExecContext(ctx,
        `UPDATE trips SET status = ?, updated_at = UTC_TIMESTAMP() WHERE id = ? AND status = ?`,
        to, tripID, from)
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

// ListDueForStart returns trips that should move UPCOMING -> ONGOING:
// confirmed trips whose start date has arrived.
func (r *TripRepo) ListDueForStart(ctx context.Context, now time.Time) ([]model.Trip, error) {
    return r.listDue(ctx,
        `SELECT `+tripColumns+` FROM trips WHERE status = 'UPCOMING' AND start_date <= ?`,
        now.UTC().Format("2006-01-02"))
}

// ListDueForCompletion returns trips that should move ONGOING ->
// COMPLETED: trips whose end date has passed.
func (r *TripRepo) ListDueForCompletion(ctx context.Context, now time.Time) ([]model.Trip, error) {
    return r.listDue(ctx,
        `SELECT `+tripColumns+` FROM trips WHERE status = 'ONGOING' AND end_date < ?`,
        now.UTC().Format("2006-01-02"))
}

func (r *TripRepo) listDue(ctx context.Context, query string, arg interface{}) ([]model.Trip, error) {
    rows, err := r.db.QueryContext(ctx, query, arg)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]model.Trip, 0)
    for rows.Next() {
        t, err := scanTrip(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, *t)
    }
    return out, rows.Err()
}

func scanTrip(row scanner) (*model.Trip, error) {
    var t model.Trip
    err := row.Scan(
        &t.ID, &t.UserID, &t.Destination, &t.StartDate, &t.EndDate, &t.Status,
        &t.BookingCount, &t.TotalBookedCents, &t.CreatedAt, &t.UpdatedAt,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    return &t, nil
}
