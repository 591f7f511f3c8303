package model

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestPromoDiscountFor(t *testing.T) {
    now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
    past := now.Add(-time.Hour)
    future := now.Add(24 * time.Hour)

    tests := []struct {
        name     string
        promo    Promo
        subtotal int64
        want     int64
    }{
        {"percent", Promo{Code: "SAVE10", PercentOff: 10}, 50000, 5000},
        {"fixed amount", Promo{Code: "FLAT20", AmountCents: 2000}, 50000, 2000},
        {"fixed capped at subtotal", Promo{Code: "FLAT20", AmountCents: 2000}, 1500, 1500},
        {"below minimum subtotal", Promo{Code: "BIG", PercentOff: 25, MinSubtotalCents: 100000}, 50000, 0},
        {"expired", Promo{Code: "OLD", PercentOff: 10, ExpiresAt: &past}, 50000, 0},
        {"not yet expired", Promo{Code: "NEW", PercentOff: 10, ExpiresAt: &future}, 50000, 5000},
    }
    for _, tt := range tests {
        t.Run(tt.name, func(t *testing.T) {
            assert.Equal(t, tt.want, tt.promo.DiscountFor(tt.subtotal, now))
        })
    }
}
