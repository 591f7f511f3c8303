package pricing

import (
    "context"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/voyago/booking-core/internal/model"
)

// stubSource serves quotes from a map keyed by offer ref.  Missing refs
// are unavailable offers.
type stubSource struct {
    quotes map[string]float64
    err    error
}

func (s *stubSource) Quote(_ context.Context, item model.CartItem) (Quote, error) {
    if s.err != nil {
        return Quote{}, s.err
    }
    price, ok := s.quotes[item.OfferRef]
    if !ok {
        return Quote{}, ErrOfferUnavailable
    }
    return Quote{OfferRef: item.OfferRef, Price: price}, nil
}

func testCart(items ...model.CartItem) *model.Cart {
    c := &model.Cart{Currency: "USD", Items: items}
    c.RecomputeTotals(0)
    return c
}

func item(ref string, priceCents int64) model.CartItem {
    return model.CartItem{
        ID:                 uint64(len(ref)),
        ProductType:        model.ProductHotel,
        OfferRef:           ref,
        SnapshotPriceCents: priceCents,
        Quantity:           1,
        Details:            model.ItemDetails{Kind: model.ProductHotel, Hotel: &model.HotelDetails{City: "Lisbon"}},
    }
}

func TestVerify_NoMovement(t *testing.T) {
    // Sub-cent float noise from upstream must not count as a change.
    src := &stubSource{quotes: map[string]float64{
        "a": 219.9999999,
        "b": 80.0000001,
    }}
    cart := testCart(item("a", 22000), item("b", 8000))

    v := NewVerifier(src, 0)
    res, err := v.Verify(context.Background(), cart)

    require.NoError(t, err)
    assert.False(t, res.PriceChanged)
    assert.False(t, res.HasUnavailableItems)
    assert.Equal(t, cart.Totals.TotalCents, res.NewTotalCents)
    for _, check := range res.Items {
        assert.False(t, check.Changed)
        assert.Equal(t, check.SnapshotPriceCents, check.CurrentPriceCents)
    }
}

func TestVerify_PriceDrift(t *testing.T) {
    src := &stubSource{quotes: map[string]float64{
        "a": 250.00, // was 220.00
        "b": 80.00,
    }}
    cart := testCart(item("a", 22000), item("b", 8000))

    v := NewVerifier(src, 0)
    res, err := v.Verify(context.Background(), cart)

    require.NoError(t, err)
    assert.True(t, res.PriceChanged)
    assert.False(t, res.HasUnavailableItems)
    assert.True(t, res.Items[0].Changed)
    assert.Equal(t, int64(25000), res.Items[0].CurrentPriceCents)
    assert.False(t, res.Items[1].Changed)

    // New total rebuilt with the same tax and fee policy as the cart.
    shadow := testCart(item("a", 25000), item("b", 8000))
    assert.Equal(t, shadow.Totals.TotalCents, res.NewTotalCents)
}

func TestVerify_UnavailableItem(t *testing.T) {
    src := &stubSource{quotes: map[string]float64{"a": 220.00}} // "b" is gone
    cart := testCart(item("a", 22000), item("b", 8000))

    v := NewVerifier(src, 0)
    res, err := v.Verify(context.Background(), cart)

    require.NoError(t, err)
    assert.True(t, res.HasUnavailableItems)
    assert.True(t, res.Items[1].Unavailable)
    // Unavailable lines keep their snapshot price in the aggregate.
    assert.Equal(t, cart.Totals.TotalCents, res.NewTotalCents)
}

func TestVerify_SourceFailure(t *testing.T) {
    src := &stubSource{err: context.DeadlineExceeded}
    cart := testCart(item("a", 22000))

    v := NewVerifier(src, 0)
    _, err := v.Verify(context.Background(), cart)

    assert.Error(t, err)
}

func TestToCents(t *testing.T) {
    assert.Equal(t, int64(22000), ToCents(219.9999999))
    assert.Equal(t, int64(22000), ToCents(220.0000001))
    assert.Equal(t, int64(21999), ToCents(219.99))
    assert.Equal(t, int64(0), ToCents(0))
}
