package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "errors"
    "time"

    "github.com/voyago/booking-core/internal/model"
)

// defaultCurrency is assigned to carts created lazily on first use.
const defaultCurrency = "USD"

// ErrInvalidQuantity is returned when a quantity update asks for less
// than one unit.  Callers wanting zero must remove the item instead.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// ErrPromoNotApplicable is returned when a promo code exists but does
// not apply to the current cart contents (below minimum subtotal or
// expired).
var ErrPromoNotApplicable = errors.New("promo not applicable to this cart")

// CartRepo provides CRUD operations for carts and their items.  Every
// mutating method reloads the cart and recomputes its totals before
// returning, so callers always receive the authoritative post-mutation
// state and never patch derived values locally.  All timestamps are
// stored in UTC.
type CartRepo struct {
    db     *sql.DB
    promos *PromoRepo
}

// NewCartRepo returns a new CartRepo bound to the given database.  The
// promo repository is consulted when recomputing discounts.
func NewCartRepo(db *sql.DB, promos *PromoRepo) *CartRepo {
    return &CartRepo{db: db, promos: promos}
}

// DB exposes the underlying handle for callers that need to open a
// transaction spanning multiple repositories.
func (r *CartRepo) DB() *sql.DB { return r.db }

// GetOrCreate returns the user's cart, creating an empty one on first
// use.  The insert is an atomic upsert keyed on the carts.user_id
// uniqueness constraint, so concurrent first requests for the same user
// cannot produce two carts.
func (r *CartRepo) GetOrCreate(ctx context.Context, userID uint64) (*model.Cart, error) {
    const q = `INSERT INTO carts (user_id, currency) VALUES (?, ?)
               ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)`
    res, err := r.db.ExecContext(ctx, q, userID, defaultCurrency)
    if err != nil {
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }
    return r.load(ctx, uint64(id))
}

// GetForUser returns the cart by id, verifying ownership.  ErrNotFound
// is returned when the cart does not exist and ErrForbidden when it
// belongs to a different user.
func (r *CartRepo) GetForUser(ctx context.Context, cartID, userID uint64) (*model.Cart, error) {
    cart, err := r.load(ctx, cartID)
    if err != nil {
        return nil, err
    }
    if cart.UserID != userID {
        return nil, ErrForbidden
    }
    return cart, nil
}

// AddItem appends a new line to the cart and returns the recomputed
// cart.  The price snapshot and provider payload are frozen as given;
// later price movement is detected at checkout, not here.
func (r *CartRepo) AddItem(ctx context.Context, cartID, userID uint64, item model.CartItem) (*model.Cart, error) {
    if item.Quantity < 1 {
        return nil, ErrInvalidQuantity
    }
    if err := r.checkOwner(ctx, cartID, userID); err != nil {
        return nil, err
    }
    payload, err := json.Marshal(item.Details)
    if err != nil {
        return nil, err
    }
    const q = `INSERT INTO cart_items (cart_id, product_type, offer_ref, snapshot_price_cents, quantity, details)
               VALUES (?, ?, ?, ?, ?, ?)`
    if _, err := r.db.ExecContext(ctx, q, cartID, item.ProductType, item.OfferRef,
        item.SnapshotPriceCents, item.Quantity, payload); err != nil {
        return nil, err
    }
    if err := r.touch(ctx, cartID); err != nil {
        return nil, err
    }
    return r.load(ctx, cartID)
}

// UpdateQuantity changes a line's quantity and returns the recomputed
// cart.  Quantities below one are rejected; remove the item instead.
func (r *CartRepo) UpdateQuantity(ctx context.Context, cartID, userID, itemID uint64, quantity uint32) (*model.Cart, error) {
    if quantity < 1 {
        return nil, ErrInvalidQuantity
    }
    if err := r.checkOwner(ctx, cartID, userID); err != nil {
        return nil, err
    }
    res, err := r.db.ExecContext(ctx,
        `UPDATE cart_items SET quantity = ? WHERE id = ? AND cart_id = ?`,
        quantity, itemID, cartID)
    if err != nil {
        return nil, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return nil, err
    }
    if n == 0 {
        // Either the item does not exist or the quantity already matches;
        // distinguish by looking the row up.
        var exists bool
        if err := r.db.QueryRowContext(ctx,
            `SELECT EXISTS(SELECT 1 FROM cart_items WHERE id = ? AND cart_id = ?)`,
            itemID, cartID).Scan(&exists); err != nil {
            return nil, err
        }
        if !exists {
            return nil, ErrNotFound
        }
    }
    if err := r.touch(ctx, cartID); err != nil {
        return nil, err
    }
    return r.load(ctx, cartID)
}

// RemoveItem deletes a line and returns the recomputed cart.
func (r *CartRepo) RemoveItem(ctx context.Context, cartID, userID, itemID uint64) (*model.Cart, error) {
    if err := r.checkOwner(ctx, cartID, userID); err != nil {
        return nil, err
    }
    res, err := r.db.ExecContext(ctx,
        `DELETE FROM cart_items WHERE id = ? AND cart_id = ?`, itemID, cartID)
    if err != nil {
        return nil, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return nil, err
    }
    if n == 0 {
        return nil, ErrNotFound
    }
    if err := r.touch(ctx, cartID); err != nil {
        return nil, err
    }
    return r.load(ctx, cartID)
}

// Clear removes every line and the promo code, returning the now-empty
// cart.
func (r *CartRepo) Clear(ctx context.Context, cartID, userID uint64) (*model.Cart, error) {
    if err := r.checkOwner(ctx, cartID, userID); err != nil {
        return nil, err
    }
    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = ?`, cartID); err != nil {
        return nil, err
    }
    if _, err := tx.ExecContext(ctx, `UPDATE carts SET promo_code = NULL WHERE id = ?`, cartID); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true
    return r.load(ctx, cartID)
}

// ApplyPromo validates the code against the current cart contents and,
// when applicable, stores it on the cart.  Validation happens at apply
// time against live contents; the discount itself is recomputed on
// every subsequent load, never cached.
func (r *CartRepo) ApplyPromo(ctx context.Context, cartID, userID uint64, code string) (*model.Cart, error) {
    if err := r.checkOwner(ctx, cartID, userID); err != nil {
        return nil, err
    }
    cart, err := r.load(ctx, cartID)
    if err != nil {
        return nil, err
    }
    promo, err := r.promos.GetByCode(ctx, code)
    if err != nil {
        return nil, err
    }
    if promo.DiscountFor(cart.Totals.SubtotalCents, time.Now().UTC()) == 0 {
        return nil, ErrPromoNotApplicable
    }
    if _, err := r.db.ExecContext(ctx, `UPDATE carts SET promo_code = ? WHERE id = ?`, code, cartID); err != nil {
        return nil, err
    }
    return r.load(ctx, cartID)
}

// RemovePromo clears the promo code and returns the recomputed cart.
func (r *CartRepo) RemovePromo(ctx context.Context, cartID, userID uint64) (*model.Cart, error) {
    if err := r.checkOwner(ctx, cartID, userID); err != nil {
        return nil, err
    }
    if _, err := r.db.ExecContext(ctx, `UPDATE carts SET promo_code = NULL WHERE id = ?`, cartID); err != nil {
        return nil, err
    }
    return r.load(ctx, cartID)
}

// checkOwner verifies that the cart exists and belongs to the user.
func (r *CartRepo) checkOwner(ctx context.Context, cartID, userID uint64) error {
    var owner uint64
    err := r.db.QueryRowContext(ctx, `SELECT user_id FROM carts WHERE id = ?`, cartID).Scan(&owner)
    if errors.Is(err, sql.ErrNoRows) {
        return ErrNotFound
    }
    if err != nil {
        return err
    }
    if owner != userID {
        return ErrForbidden
    }
    return nil
}

// touch bumps the cart's updated_at so list views can sort by recency.
func (r *CartRepo) touch(ctx context.Context, cartID uint64) error {
    _, err := r.db.ExecContext(ctx, `UPDATE carts SET updated_at = UTC_TIMESTAMP() WHERE id = ?`, cartID)
    return err
}

// load fetches the cart row, its items in insertion order and the
// applied promo, then recomputes the totals.
func (r *CartRepo) load(ctx context.Context, cartID uint64) (*model.Cart, error) {
    const q = `SELECT id, user_id, currency, promo_code, created_at, updated_at FROM carts WHERE id = ?`
    var cart model.Cart
    var promoCode sql.NullString
    err := r.db.QueryRowContext(ctx, q, cartID).Scan(
        &cart.ID, &cart.UserID, &cart.Currency, &promoCode, &cart.CreatedAt, &cart.UpdatedAt,
    )
    if errors.Is(err, sql.ErrNoRows) {
        return nil, ErrNotFound
    }
    if err != nil {
        return nil, err
    }
    if promoCode.Valid {
        pc := promoCode.String
        cart.PromoCode = &pc
    }
    const itemQ = `SELECT id, cart_id, product_type, offer_ref, snapshot_price_cents, quantity, details, created_at
                   FROM cart_items WHERE cart_id = ? ORDER BY id`
    rows, err := r.db.QueryContext(ctx, itemQ, cartID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    cart.Items = []model.CartItem{}
    for rows.Next() {
        var it model.CartItem
        var payload []byte
        if err := rows.Scan(&it.ID, &it.CartID, &it.ProductType, &it.OfferRef,
            &it.SnapshotPriceCents, &it.Quantity, &payload, &it.CreatedAt); err != nil {
            return nil, err
        }
        if err := json.Unmarshal(payload, &it.Details); err != nil {
            return nil, err
        }
        cart.Items = append(cart.Items, it)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    var discount int64
    if cart.PromoCode != nil {
        cart.RecomputeTotals(0) // subtotal first, promo needs it
        promo, err := r.promos.GetByCode(ctx, *cart.PromoCode)
        if err == nil {
            discount = promo.DiscountFor(cart.Totals.SubtotalCents, time.Now().UTC())
        } else if !errors.Is(err, ErrNotFound) {
            return nil, err
        }
    }
    cart.RecomputeTotals(discount)
    return &cart, nil
}
