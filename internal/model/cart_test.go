package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func flightItem(priceCents int64, qty uint32, passengers uint32) CartItem {
    return CartItem{
        ProductType:        ProductFlight,
        OfferRef:           "fl-123",
        SnapshotPriceCents: priceCents,
        Quantity:           qty,
        Details: ItemDetails{
            Kind: ProductFlight,
            Flight: &FlightDetails{
                Origin:        "JFK",
                Destination:   "LIS",
                DepartureDate: "2026-10-01",
                Passengers:    passengers,
                CabinClass:    "economy",
            },
        },
    }
}

func hotelItem(priceCents int64) CartItem {
    return CartItem{
        ProductType:        ProductHotel,
        OfferRef:           "ho-456",
        SnapshotPriceCents: priceCents,
        Quantity:           1,
        Details: ItemDetails{
            Kind: ProductHotel,
            Hotel: &HotelDetails{
                City:     "Lisbon",
                Name:     "Hotel Tejo",
                CheckIn:  "2026-10-01",
                CheckOut: "2026-10-05",
                Rooms:    1,
                Guests:   2,
            },
        },
    }
}

func TestRecomputeTotals(t *testing.T) {
    c := &Cart{Items: []CartItem{flightItem(50000, 2, 2), hotelItem(30000)}}

    totals := c.RecomputeTotals(0)

    assert.Equal(t, int64(130000), totals.SubtotalCents) // 2*50000 + 30000
    assert.Equal(t, int64(10400), totals.TaxCents)       // 8% of subtotal
    assert.Equal(t, int64(998), totals.FeeCents)         // 499 per line
    assert.Equal(t, int64(0), totals.DiscountCents)
    assert.Equal(t, int64(141398), totals.TotalCents)
}

func TestRecomputeTotals_DiscountCappedAtSubtotal(t *testing.T) {
    c := &Cart{Items: []CartItem{hotelItem(1000)}}

    totals := c.RecomputeTotals(5000)

    assert.Equal(t, int64(1000), totals.DiscountCents)
    // tax and fee still apply; the discount only eats the subtotal
    assert.Equal(t, int64(80+499), totals.TotalCents)
}

func TestRecomputeTotals_EmptyCart(t *testing.T) {
    c := &Cart{}
    totals := c.RecomputeTotals(0)
    assert.Equal(t, int64(0), totals.TotalCents)
}

func TestRequiredTravelers_MaxOverItems(t *testing.T) {
    c := &Cart{Items: []CartItem{flightItem(50000, 1, 3), hotelItem(30000)}}
    assert.Equal(t, uint32(3), c.RequiredTravelers())

    hotelOnly := &Cart{Items: []CartItem{hotelItem(30000)}}
    assert.Equal(t, uint32(0), hotelOnly.RequiredTravelers())
}

func TestPrimaryType(t *testing.T) {
    c := &Cart{Items: []CartItem{hotelItem(30000), flightItem(50000, 1, 1)}}
    assert.Equal(t, ProductHotel, c.PrimaryType())
    assert.Equal(t, ProductUnknown, (&Cart{}).PrimaryType())
}

func TestItemDetails_DateRange(t *testing.T) {
    ret := "2026-10-08"
    d := ItemDetails{Kind: ProductFlight, Flight: &FlightDetails{
        DepartureDate: "2026-10-01", ReturnDate: &ret,
    }}
    from, to := d.DateRange()
    assert.Equal(t, "2026-10-01", from)
    assert.Equal(t, "2026-10-08", to)

    oneWay := ItemDetails{Kind: ProductFlight, Flight: &FlightDetails{DepartureDate: "2026-10-01"}}
    from, to = oneWay.DateRange()
    assert.Equal(t, from, to)
}

func TestProductTypeValid(t *testing.T) {
    assert.True(t, ProductFlight.Valid())
    assert.True(t, ProductExperience.Valid())
    assert.False(t, ProductUnknown.Valid())
    assert.False(t, ProductType("CRUISE").Valid())
}
