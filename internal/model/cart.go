package model

import (
    "encoding/json"
    "time"
)

// ProductType enumerates the bookable product categories.  The value is
// stored as an uppercase string in the database.  ProductUnknown is
// reserved for provider payloads this service does not yet understand;
// such items can live in a cart but carry no typed detail record.
type ProductType string

const (
    ProductFlight     ProductType = "FLIGHT"
    ProductHotel      ProductType = "HOTEL"
    ProductCar        ProductType = "CAR"
    ProductExperience ProductType = "EXPERIENCE"
    ProductUnknown    ProductType = "UNKNOWN"
)

// Valid reports whether the product type is one of the four known
// categories.  Unknown payloads are deliberately not "valid" here so that
// validation sites can single them out.
func (p ProductType) Valid() bool {
    switch p {
    case ProductFlight, ProductHotel, ProductCar, ProductExperience:
        return true
    }
    return false
}

// CartTotals carries the derived monetary breakdown of a cart.  All
// amounts are integer cents in the cart's currency.  Totals are
// recomputed from the items on every mutation and never treated as a
// source of truth beyond a cache.
type CartTotals struct {
    SubtotalCents int64 `json:"subtotal_cents"`
    TaxCents      int64 `json:"tax_cents"`
    FeeCents      int64 `json:"fee_cents"`
    DiscountCents int64 `json:"discount_cents"`
    TotalCents    int64 `json:"total_cents"`
}

// Cart aggregates the items a user intends to check out.  Items keep
// their insertion order.  A cart is mutable only by its owner and only
// through the cart repository.
type Cart struct {
    ID        uint64     `json:"id"`         // carts.id
    UserID    uint64     `json:"user_id"`    // carts.user_id
    Currency  string     `json:"currency"`   // ISO 4217, e.g. "USD"
    PromoCode *string    `json:"promo_code"` // carts.promo_code (nullable)
    Items     []CartItem `json:"items"`      // insertion-ordered
    Totals    CartTotals `json:"totals"`     // derived, see RecomputeTotals
    CreatedAt time.Time  `json:"created_at"`
    UpdatedAt time.Time  `json:"updated_at"`
}

// CartItem is a single priced line in a cart.  SnapshotPriceCents is the
// unit price frozen when the item was added; checkout re-verifies it
// against the upstream offer before payment.  OfferRef is the
// provider-specific identifier used for that re-quote.
type CartItem struct {
    ID                 uint64      `json:"id"`
    CartID             uint64      `json:"cart_id"`
    ProductType        ProductType `json:"product_type"`
    OfferRef           string      `json:"offer_ref"`
    SnapshotPriceCents int64       `json:"snapshot_price_cents"` // unit price at add time
    Quantity           uint32      `json:"quantity"`             // always >= 1
    Details            ItemDetails `json:"details"`
    CreatedAt          time.Time   `json:"created_at"`
}

// LineTotalCents returns the frozen price of the line (unit price times
// quantity).
func (i CartItem) LineTotalCents() int64 {
    return i.SnapshotPriceCents * int64(i.Quantity)
}

// ItemDetails is a tagged union over the provider payloads of the four
// known product types.  Exactly one of the typed pointers is set for a
// known Kind; for ProductUnknown the original payload is preserved
// verbatim in Raw so the item can round-trip through storage without
// loss.
type ItemDetails struct {
    Kind       ProductType        `json:"type"`
    Flight     *FlightDetails     `json:"flight,omitempty"`
    Hotel      *HotelDetails      `json:"hotel,omitempty"`
    Car        *CarDetails        `json:"car,omitempty"`
    Experience *ExperienceDetails `json:"experience,omitempty"`
    Raw        json.RawMessage    `json:"raw,omitempty"`
}

// FlightDetails describes a flight offer.  Dates are "YYYY-MM-DD"
// strings as delivered by the offer source.
type FlightDetails struct {
    Origin        string  `json:"origin"`
    Destination   string  `json:"destination"`
    DepartureDate string  `json:"departure_date"`
    ReturnDate    *string `json:"return_date,omitempty"`
    Passengers    uint32  `json:"passengers"`
    CabinClass    string  `json:"cabin_class"`
}

// HotelDetails describes a hotel stay offer.
type HotelDetails struct {
    City     string `json:"city"`
    Name     string `json:"name"`
    CheckIn  string `json:"check_in"`
    CheckOut string `json:"check_out"`
    Rooms    uint32 `json:"rooms"`
    Guests   uint32 `json:"guests"`
}

// CarDetails describes a car rental offer.
type CarDetails struct {
    PickupCity  string `json:"pickup_city"`
    PickupDate  string `json:"pickup_date"`
    DropoffDate string `json:"dropoff_date"`
    Category    string `json:"category"`
}

// ExperienceDetails describes a tour or activity offer.
type ExperienceDetails struct {
    City      string `json:"city"`
    Title     string `json:"title"`
    Date      string `json:"date"`
    Attendees uint32 `json:"attendees"`
}

// RequiredTravelers returns how many named travelers this item needs
// before payment can proceed.  Flights need one per passenger and
// experiences one per attendee; hotels and cars carry no per-person
// documents.
func (d ItemDetails) RequiredTravelers() uint32 {
    switch d.Kind {
    case ProductFlight:
        if d.Flight != nil {
            return d.Flight.Passengers
        }
    case ProductExperience:
        if d.Experience != nil {
            return d.Experience.Attendees
        }
    }
    return 0
}

// DestinationHint returns the best human-readable destination the
// payload can offer, used when deriving trip fields.  An empty string
// means the payload carries no destination.
func (d ItemDetails) DestinationHint() string {
    switch d.Kind {
    case ProductFlight:
        if d.Flight != nil {
            return d.Flight.Destination
        }
    case ProductHotel:
        if d.Hotel != nil {
            return d.Hotel.City
        }
    case ProductCar:
        if d.Car != nil {
            return d.Car.PickupCity
        }
    case ProductExperience:
        if d.Experience != nil {
            return d.Experience.City
        }
    }
    return ""
}

// DateRange returns the first and last calendar dates the payload spans,
// both as "YYYY-MM-DD" strings.  Empty strings mean the payload carries
// no usable dates.
func (d ItemDetails) DateRange() (from, to string) {
    switch d.Kind {
    case ProductFlight:
        if d.Flight != nil {
            from = d.Flight.DepartureDate
            to = d.Flight.DepartureDate
            if d.Flight.ReturnDate != nil && *d.Flight.ReturnDate != "" {
                to = *d.Flight.ReturnDate
            }
        }
    case ProductHotel:
        if d.Hotel != nil {
            from, to = d.Hotel.CheckIn, d.Hotel.CheckOut
        }
    case ProductCar:
        if d.Car != nil {
            from, to = d.Car.PickupDate, d.Car.DropoffDate
        }
    case ProductExperience:
        if d.Experience != nil {
            from, to = d.Experience.Date, d.Experience.Date
        }
    }
    return from, to
}

// Tax and fee policy applied when recomputing cart totals.  Taxes are a
// flat percentage of the subtotal; the service fee is charged once per
// line.  Rates live here rather than in configuration because they are
// part of the displayed contract with the user and change with releases,
// not deployments.
const (
    taxRateBasisPoints  = 800 // 8.00% of subtotal
    serviceFeeCentsLine = 499 // per cart line
)

// RecomputeTotals derives the full monetary breakdown from the current
// items and the supplied discount.  The discount is computed by the
// promo validation path and passed in; everything else follows from the
// frozen line prices.  The result is stored on the cart and returned.
func (c *Cart) RecomputeTotals(discountCents int64) CartTotals {
    var subtotal int64
    for _, it := range c.Items {
        subtotal += it.LineTotalCents()
    }
    tax := subtotal * taxRateBasisPoints / 10000
    fees := int64(len(c.Items)) * serviceFeeCentsLine
    if discountCents > subtotal {
        discountCents = subtotal
    }
    c.Totals = CartTotals{
        SubtotalCents: subtotal,
        TaxCents:      tax,
        FeeCents:      fees,
        DiscountCents: discountCents,
        TotalCents:    subtotal + tax + fees - discountCents,
    }
    return c.Totals
}

// RequiredTravelers returns the number of named travelers the cart as a
// whole needs: the maximum over its items, since one traveler list
// covers the entire trip.
func (c *Cart) RequiredTravelers() uint32 {
    var max uint32
    for _, it := range c.Items {
        if n := it.Details.RequiredTravelers(); n > max {
            max = n
        }
    }
    return max
}

// PrimaryType returns the product type of the first item, which names
// the booking created from this cart.  Empty carts have no primary type.
func (c *Cart) PrimaryType() ProductType {
    if len(c.Items) == 0 {
        return ProductUnknown
    }
    return c.Items[0].ProductType
}
