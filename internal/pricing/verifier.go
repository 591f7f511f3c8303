// Package pricing re-verifies cart prices against the upstream offer
// source at checkout time.  It is a pure read: nothing here mutates the
// cart or the session; the checkout coordinator decides what to do with
// the result.
package pricing

import (
    "context"
    "errors"
    "math"
    "time"

    "github.com/voyago/booking-core/internal/model"
)

// ErrOfferUnavailable is reported by an OfferSource when the offer
// behind a cart item has expired or sold out.  The verifier translates
// it into an unavailable line rather than a failed run.
var ErrOfferUnavailable = errors.New("offer no longer available")

// Quote is a live price for a single offer, as returned by the upstream
// search and normalization layer.  Prices arrive in major currency
// units because that is what the providers publish.
type Quote struct {
    OfferRef string
    Price    float64 // unit price in major units, e.g. 219.9999999
    Currency string
}

// OfferSource is the narrow view of the multi-provider search layer the
// verifier needs: a re-quote keyed by the provider payload of a cart
// item.  The concrete implementation lives outside this service.
type OfferSource interface {
    Quote(ctx context.Context, item model.CartItem) (Quote, error)
}

// DefaultTimeout bounds one full verification run.  Re-quotes are
// network calls against third-party inventory; past this point the step
// fails with a retryable error instead of hanging the session.
const DefaultTimeout = 10 * time.Second

// Verifier compares frozen snapshot prices against live quotes.
type Verifier struct {
    source  OfferSource
    timeout time.Duration
}

// NewVerifier returns a Verifier using the given offer source.  A
// non-positive timeout falls back to DefaultTimeout.
func NewVerifier(source OfferSource, timeout time.Duration) *Verifier {
    if timeout <= 0 {
        timeout = DefaultTimeout
    }
    return &Verifier{source: source, timeout: timeout}
}

// Verify re-quotes every line of the cart and reports drift and
// availability.  Comparison happens in integer cents: quotes are
// rounded before comparing, so sub-cent float noise from upstream never
// counts as a price change.  Unavailable lines keep their snapshot
// price in the aggregate so the new total stays meaningful.
func (v *Verifier) Verify(ctx context.Context, cart *model.Cart) (*model.PriceVerificationResult, error) {
    ctx, cancel := context.WithTimeout(ctx, v.timeout)
    defer cancel()

    result := &model.PriceVerificationResult{
        Items:     make([]model.ItemPriceCheck, 0, len(cart.Items)),
        CheckedAt: time.Now().UTC(),
    }
    var newSubtotal int64
    for _, item := range cart.Items {
        check := model.ItemPriceCheck{
            ItemID:             item.ID,
            ProductType:        item.ProductType,
            OfferRef:           item.OfferRef,
            SnapshotPriceCents: item.SnapshotPriceCents,
        }
        quote, err := v.source.Quote(ctx, item)
        switch {
        case errors.Is(err, ErrOfferUnavailable):
            check.Unavailable = true
            check.CurrentPriceCents = item.SnapshotPriceCents
            result.HasUnavailableItems = true
        case err != nil:
            return nil, err
        default:
            check.CurrentPriceCents = ToCents(quote.Price)
            if check.CurrentPriceCents != check.SnapshotPriceCents {
                check.Changed = true
                result.PriceChanged = true
            }
        }
        newSubtotal += check.CurrentPriceCents * int64(item.Quantity)
        result.Items = append(result.Items, check)
    }
    // Rebuild the aggregate the same way cart totals are built, but on
    // the live unit prices.
    shadow := *cart
    shadow.Items = make([]model.CartItem, len(cart.Items))
    copy(shadow.Items, cart.Items)
    for i := range shadow.Items {
        shadow.Items[i].SnapshotPriceCents = result.Items[i].CurrentPriceCents
    }
    shadow.RecomputeTotals(cart.Totals.DiscountCents)
    result.NewTotalCents = shadow.Totals.TotalCents
    return result, nil
}

// ToCents converts a major-unit float price to integer cents, rounding
// half away from zero.  219.9999999 and 220.0000001 both become 22000,
// which is the currency-aware equality the saga needs.
func ToCents(price float64) int64 {
    return int64(math.Round(price * 100))
}
