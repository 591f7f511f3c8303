package repository

import (
    "context"
    "database/sql"
    "errors"

    "github.com/voyago/booking-core/internal/model"
)

// PromoRepo provides read access to promo codes.  Promos are managed
// out of band (marketing tooling); this service only validates and
// applies them.
type PromoRepo struct {
    db *sql.DB
}

// NewPromoRepo returns a new PromoRepo bound to the given database.
func NewPromoRepo(db *sql.DB) *PromoRepo { return &PromoRepo{db: db} }

// GetByCode returns the promo with the given code or ErrNotFound.
func (r *PromoRepo) GetByCode(ctx context.Context, code string) (*model.Promo, error) {
    const q = `SELECT code, percent_off, amount_cents, min_subtotal_cents, expires_at
               FROM promos WHERE code = ?`
    var p model.Promo
    var expires sql.NullTime
    err := r.db.QueryRowContext(ctx, q, code).Scan(
        &p.Code, &p.PercentOff, &p.AmountCents, &p.MinSubtotalCents, &expires,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if expires.Valid {
        t := expires.Time
        p.ExpiresAt = &t
    }
    return &p, nil
}
