package model

import "time"

// Promo is a discount code.  Exactly one of PercentOff and AmountCents
// is non-zero.  A promo is applicable when the cart's subtotal reaches
// MinSubtotalCents and the code has not expired; applicability is
// re-checked every time totals are recomputed, never cached.
type Promo struct {
    Code             string     `json:"code"`
    PercentOff       uint32     `json:"percent_off"`  // 0..100
    AmountCents      int64      `json:"amount_cents"` // fixed discount
    MinSubtotalCents int64      `json:"min_subtotal_cents"`
    ExpiresAt        *time.Time `json:"expires_at,omitempty"`
}

// DiscountFor returns the discount this promo grants on the given
// subtotal, zero when the promo does not apply.
func (p Promo) DiscountFor(subtotalCents int64, now time.Time) int64 {
    if subtotalCents < p.MinSubtotalCents {
        return 0
    }
    if p.ExpiresAt != nil && now.After(*p.ExpiresAt) {
        return 0
    }
    if p.PercentOff > 0 {
        return subtotalCents * int64(p.PercentOff) / 100
    }
    if p.AmountCents > subtotalCents {
        return subtotalCents
    }
    return p.AmountCents
}
