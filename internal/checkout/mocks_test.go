package checkout

import (
    "context"
    "sync"

    "github.com/voyago/booking-core/internal/booking"
    "github.com/voyago/booking-core/internal/model"
    "github.com/voyago/booking-core/internal/repository"
)

// memCarts implements CartStore over a map.
type memCarts struct {
    carts   map[uint64]*model.Cart
    cleared []uint64
}

func newMemCarts(carts ...*model.Cart) *memCarts {
    m := &memCarts{carts: make(map[uint64]*model.Cart)}
    for _, c := range carts {
        m.carts[c.ID] = c
    }
    return m
}

func (m *memCarts) GetForUser(_ context.Context, cartID, userID uint64) (*model.Cart, error) {
    c, ok := m.carts[cartID]
    if !ok {
        return nil, repository.ErrNotFound
    }
    if c.UserID != userID {
        return nil, repository.ErrForbidden
    }
    cp := *c
    return &cp, nil
}

func (m *memCarts) Clear(_ context.Context, cartID, userID uint64) (*model.Cart, error) {
    c, err := m.GetForUser(context.Background(), cartID, userID)
    if err != nil {
        return nil, err
    }
    m.cleared = append(m.cleared, cartID)
    m.carts[cartID].Items = nil
    c.Items = nil
    return c, nil
}

// memSessions implements SessionStore in memory with the same guarded
// write semantics as the SQL repository: a write whose expected state
// no longer matches fails with ErrStaleState and changes nothing.
type memSessions struct {
    mu     sync.Mutex
    byID   map[uint64]*model.CheckoutSession
    nextID uint64
}

func newMemSessions() *memSessions {
    return &memSessions{byID: make(map[uint64]*model.CheckoutSession)}
}

func (m *memSessions) Create(_ context.Context, s *model.CheckoutSession) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, existing := range m.byID {
        if existing.IdempotencyKey == s.IdempotencyKey || existing.Token == s.Token {
            return repository.ErrDuplicateKey
        }
    }
    m.nextID++
    s.ID = m.nextID
    cp := *s
    m.byID[s.ID] = &cp
    return nil
}

func (m *memSessions) GetByToken(_ context.Context, token string) (*model.CheckoutSession, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, s := range m.byID {
        if s.Token == token {
            cp := *s
            return &cp, nil
        }
    }
    return nil, repository.ErrNotFound
}

func (m *memSessions) GetByIdempotencyKey(_ context.Context, key string) (*model.CheckoutSession, error) {
    m.mu.Lock()
    defer m.mu.Unlock()
    for _, s := range m.byID {
        if s.IdempotencyKey == key {
            cp := *s
            return &cp, nil
        }
    }
    return nil, repository.ErrNotFound
}

func (m *memSessions) guarded(id uint64, from model.CheckoutState, mutate func(*model.CheckoutSession)) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.byID[id]
    if !ok || s.State != from {
        return repository.ErrStaleState
    }
    mutate(s)
    return nil
}

func (m *memSessions) SetVerification(_ context.Context, id uint64, from, to model.CheckoutState, v *model.PriceVerificationResult, totalCents int64) error {
    return m.guarded(id, from, func(s *model.CheckoutSession) {
        s.State = to
        s.Verification = v
        s.TotalCents = totalCents
    })
}

func (m *memSessions) SetTravelers(_ context.Context, id uint64, from, to model.CheckoutState, p *model.TravelerPayload) error {
    return m.guarded(id, from, func(s *model.CheckoutSession) {
        s.State = to
        s.Travelers = p
    })
}

func (m *memSessions) SetPaymentIntent(_ context.Context, id uint64, state model.CheckoutState, intentID string) error {
    return m.guarded(id, state, func(s *model.CheckoutSession) {
        s.PaymentIntentID = &intentID
    })
}

func (m *memSessions) UpdateState(_ context.Context, id uint64, from, to model.CheckoutState) error {
    return m.guarded(id, from, func(s *model.CheckoutSession) {
        s.State = to
    })
}

func (m *memSessions) Complete(_ context.Context, id uint64, from model.CheckoutState, bookingID uint64) error {
    return m.guarded(id, from, func(s *model.CheckoutSession) {
        s.State = model.StateConfirmation
        s.BookingID = &bookingID
    })
}

func (m *memSessions) ReturnToCart(_ context.Context, id uint64, reason string) error {
    return m.guarded(id, model.StateReview, func(s *model.CheckoutSession) {
        s.State = model.StateCart
        s.FailureReason = &reason
    })
}

func (m *memSessions) Fail(_ context.Context, id uint64, reason string) error {
    m.mu.Lock()
    defer m.mu.Unlock()
    s, ok := m.byID[id]
    if !ok || s.State.IsTerminal() {
        return repository.ErrStaleState
    }
    s.State = model.StateError
    s.FailureReason = &reason
    return nil
}

// stubVerifier returns a canned verification result.
type stubVerifier struct {
    result *model.PriceVerificationResult
    err    error
}

func (v *stubVerifier) Verify(_ context.Context, _ *model.Cart) (*model.PriceVerificationResult, error) {
    return v.result, v.err
}

// stubFinalizer hands out one result per payment intent, stable across
// calls, mirroring the real finalizer's idempotency.
type stubFinalizer struct {
    results map[string]*booking.Result
    err     error
    calls   int
}

func (f *stubFinalizer) Finalize(_ context.Context, _ *model.CheckoutSession, _ *model.Cart, intentID string) (*booking.Result, error) {
    f.calls++
    if f.err != nil {
        return nil, f.err
    }
    if f.results == nil {
        f.results = make(map[string]*booking.Result)
    }
    if r, ok := f.results[intentID]; ok {
        return r, nil
    }
    r := &booking.Result{BookingID: uint64(len(f.results) + 1), TripID: 10, Reference: "TRV-20260901-ABCD1234"}
    f.results[intentID] = r
    return r, nil
}
