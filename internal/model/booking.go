package model

import "time"

// BookingStatus tracks the life of a paid booking.  New bookings are
// created CONFIRMED by the finalizer (payment has already succeeded);
// the remaining states serve the cancellation and refund paths.
type BookingStatus string

const (
    BookingPending   BookingStatus = "PENDING"
    BookingConfirmed BookingStatus = "CONFIRMED"
    BookingCancelled BookingStatus = "CANCELLED"
    BookingCompleted BookingStatus = "COMPLETED"
    BookingRefunded  BookingStatus = "REFUNDED"
)

// PaymentStatus mirrors the gateway-side state of the charge backing a
// booking.
type PaymentStatus string

const (
    PaymentPaid     PaymentStatus = "PAID"
    PaymentRefunded PaymentStatus = "REFUNDED"
)

// Booking is the durable record of a successful checkout.  Exactly one
// booking exists per payment intent, enforced by a uniqueness
// constraint on payment_intent_id.  Reference is the human-facing
// confirmation code, generated once and immutable.
type Booking struct {
    ID              uint64        `json:"id"`
    UserID          uint64        `json:"user_id"`
    TripID          *uint64       `json:"trip_id,omitempty"`
    ProductType     ProductType   `json:"product_type"` // primary type of the cart
    Status          BookingStatus `json:"status"`
    Reference       string        `json:"reference"`
    Currency        string        `json:"currency"`
    SubtotalCents   int64         `json:"subtotal_cents"`
    TaxCents        int64         `json:"tax_cents"`
    FeeCents        int64         `json:"fee_cents"`
    DiscountCents   int64         `json:"discount_cents"`
    TotalCents      int64         `json:"total_cents"`
    PaymentStatus   PaymentStatus `json:"payment_status"`
    PaymentIntentID string        `json:"payment_intent_id"`
    BookedAt        time.Time     `json:"booked_at"`
    CreatedAt       time.Time     `json:"created_at"`
    UpdatedAt       time.Time     `json:"updated_at"`
}
