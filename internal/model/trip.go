package model

import "time"

// TripStatus is the lifecycle state of a trip.  The happy path is
// DRAFT -> UPCOMING -> ONGOING -> COMPLETED, driven by user action
// (confirm) and by the time-based sweep.  CANCELLED and ARCHIVED are
// terminal; cancelling ends a trip early, archiving hides it.  A
// completed trip can still be archived.
type TripStatus string

const (
    TripDraft     TripStatus = "DRAFT"
    TripUpcoming  TripStatus = "UPCOMING"
    TripOngoing   TripStatus = "ONGOING"
    TripCompleted TripStatus = "COMPLETED"
    TripCancelled TripStatus = "CANCELLED"
    TripArchived  TripStatus = "ARCHIVED"
)

// IsTerminal reports whether no further transitions are possible.
func (s TripStatus) IsTerminal() bool {
    return s == TripCancelled || s == TripArchived
}

// tripTransitions lists every legal trip status change.
var tripTransitions = map[TripStatus][]TripStatus{
    TripDraft:     {TripUpcoming, TripCancelled, TripArchived},
    TripUpcoming:  {TripOngoing, TripCancelled, TripArchived},
    TripOngoing:   {TripCompleted, TripCancelled, TripArchived},
    TripCompleted: {TripArchived},
}

// CanTransitionTrip reports whether a trip may move from one status to
// another.
func CanTransitionTrip(from, to TripStatus) bool {
    for _, t := range tripTransitions[from] {
        if t == to {
            return true
        }
    }
    return false
}

// Trip groups the bookings of one itinerary.  BookingCount and
// TotalBookedCents are aggregate counters incremented atomically by the
// booking finalizer when a booking attaches; they are never
// read-modified-written in application code.
type Trip struct {
    ID               uint64     `json:"id"`
    UserID           uint64     `json:"user_id"`
    Destination      string     `json:"destination"`
    StartDate        time.Time  `json:"start_date"`
    EndDate          time.Time  `json:"end_date"`
    Status           TripStatus `json:"status"`
    BookingCount     uint32     `json:"booking_count"`
    TotalBookedCents int64      `json:"total_booked_cents"`
    CreatedAt        time.Time  `json:"created_at"`
    UpdatedAt        time.Time  `json:"updated_at"`
}
