// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names.  Notification delivery consumes these; this service only
// informs, it never waits on the consumer.
const (
    BookingConfirmedQueue  = "booking.confirmed"
    TripStatusChangedQueue = "trip.status_changed"
)

// BookingConfirmedEvent is published when the finalizer materializes a
// booking from a paid checkout.  It carries enough information for
// downstream consumers to notify the traveler or feed analytics without
// querying the primary database.
type BookingConfirmedEvent struct {
    BookingID    uint64 `json:"booking_id"`
    Reference    string `json:"reference"`
    UserID       uint64 `json:"user_id"`
    TripID       uint64 `json:"trip_id"`
    Destination  string `json:"destination"`
    ProductType  string `json:"product_type"`
    Currency     string `json:"currency"`
    TotalCents   int64  `json:"total_cents"`
    ContactEmail string `json:"contact_email"`
    BookedAt     string `json:"booked_at"`
}

// TripStatusChangedEvent is published on every trip lifecycle
// transition, whether user-driven or fired by the time-based sweep.
// The guarded status update upstream guarantees each transition
// publishes at most once.
type TripStatusChangedEvent struct {
    TripID      uint64 `json:"trip_id"`
    UserID      uint64 `json:"user_id"`
    Destination string `json:"destination"`
    FromStatus  string `json:"from_status"`
    ToStatus    string `json:"to_status"`
    ChangedAt   string `json:"changed_at"`
}
