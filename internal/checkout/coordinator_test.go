package checkout

import (
    "context"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/voyago/booking-core/internal/model"
    "github.com/voyago/booking-core/internal/payment"
)

const (
    testUserID = uint64(7)
    testCartID = uint64(42)
)

func testCart() *model.Cart {
    c := &model.Cart{
        ID:       testCartID,
        UserID:   testUserID,
        Currency: "USD",
        Items: []model.CartItem{
            {
                ID:                 1,
                CartID:             testCartID,
                ProductType:        model.ProductFlight,
                OfferRef:           "fl-1",
                SnapshotPriceCents: 50000,
                Quantity:           1,
                Details: model.ItemDetails{
                    Kind: model.ProductFlight,
                    Flight: &model.FlightDetails{
                        Origin: "JFK", Destination: "LIS",
                        DepartureDate: "2026-10-01", Passengers: 1, CabinClass: "economy",
                    },
                },
            },
        },
    }
    c.RecomputeTotals(0)
    return c
}

func cleanVerification(total int64) *model.PriceVerificationResult {
    return &model.PriceVerificationResult{
        Items:         []model.ItemPriceCheck{{ItemID: 1, OfferRef: "fl-1", SnapshotPriceCents: 50000, CurrentPriceCents: 50000}},
        NewTotalCents: total,
        CheckedAt:     time.Now().UTC(),
    }
}

func changedVerification(newTotal int64) *model.PriceVerificationResult {
    return &model.PriceVerificationResult{
        Items:         []model.ItemPriceCheck{{ItemID: 1, OfferRef: "fl-1", SnapshotPriceCents: 50000, CurrentPriceCents: 56000, Changed: true}},
        PriceChanged:  true,
        NewTotalCents: newTotal,
        CheckedAt:     time.Now().UTC(),
    }
}

type fixture struct {
    carts     *memCarts
    sessions  *memSessions
    verifier  *stubVerifier
    gateway   *payment.SandboxGateway
    finalizer *stubFinalizer
    coord     *Coordinator
}

func newFixture(cart *model.Cart) *fixture {
    f := &fixture{
        carts:     newMemCarts(cart),
        sessions:  newMemSessions(),
        verifier:  &stubVerifier{result: cleanVerification(cart.Totals.TotalCents)},
        gateway:   payment.NewSandboxGateway(),
        finalizer: &stubFinalizer{},
    }
    f.coord = NewCoordinator(f.carts, f.sessions, f.verifier, f.gateway, f.finalizer)
    return f
}

// advanceToPayment drives a fresh session through verification and the
// travelers step.
func (f *fixture) advanceToPayment(t *testing.T) *model.CheckoutSession {
    t.Helper()
    ctx := context.Background()
    s, err := f.coord.InitializeCheckout(ctx, testUserID, testCartID, "key-1")
    require.NoError(t, err)
    s, err = f.coord.VerifyPrices(ctx, s.Token, testUserID)
    require.NoError(t, err)
    require.Equal(t, model.StateTravelers, s.State)
    payload := &model.TravelerPayload{
        Travelers: []model.Traveler{{FirstName: "Ana", LastName: "Silva", DateOfBirth: "1990-04-02"}},
        Contact:   model.ContactDetails{Email: "ana@example.com"},
    }
    s, fieldErrs, err := f.coord.SubmitTravelerDetails(ctx, s.Token, testUserID, payload)
    require.NoError(t, err)
    require.Empty(t, fieldErrs)
    require.Equal(t, model.StatePayment, s.State)
    return s
}

func TestInitializeCheckout_NewSession(t *testing.T) {
    f := newFixture(testCart())

    s, err := f.coord.InitializeCheckout(context.Background(), testUserID, testCartID, "key-1")

    require.NoError(t, err)
    assert.NotEmpty(t, s.Token)
    assert.Equal(t, model.StateReview, s.State)
    assert.Equal(t, testCart().Totals.TotalCents, s.TotalCents)
    assert.Equal(t, "USD", s.Currency)
}

func TestInitializeCheckout_SameKeyReturnsSameSession(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()

    first, err := f.coord.InitializeCheckout(ctx, testUserID, testCartID, "key-1")
    require.NoError(t, err)
    second, err := f.coord.InitializeCheckout(ctx, testUserID, testCartID, "key-1")
    require.NoError(t, err)

    assert.Equal(t, first.ID, second.ID)
    assert.Equal(t, first.Token, second.Token)
}

func TestInitializeCheckout_EmptyCart(t *testing.T) {
    empty := &model.Cart{ID: testCartID, UserID: testUserID, Currency: "USD"}
    f := newFixture(empty)

    _, err := f.coord.InitializeCheckout(context.Background(), testUserID, testCartID, "key-1")

    assert.ErrorIs(t, err, ErrCartEmpty)
}

func TestInitializeCheckout_MissingKey(t *testing.T) {
    f := newFixture(testCart())
    _, err := f.coord.InitializeCheckout(context.Background(), testUserID, testCartID, "")
    assert.ErrorIs(t, err, ErrMissingIdempotencyKey)
}

func TestInitializeCheckout_ForeignKeyHidden(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()
    _, err := f.coord.InitializeCheckout(ctx, testUserID, testCartID, "key-1")
    require.NoError(t, err)

    // Another user probing the same idempotency key must not see the
    // session.
    _, err = f.coord.InitializeCheckout(ctx, 999, testCartID, "key-1")
    assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestVerifyPrices_CleanRunAdvances(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()
    s, err := f.coord.InitializeCheckout(ctx, testUserID, testCartID, "key-1")
    require.NoError(t, err)

    s, err = f.coord.VerifyPrices(ctx, s.Token, testUserID)

    require.NoError(t, err)
    assert.Equal(t, model.StateTravelers, s.State)
    require.NotNil(t, s.Verification)
    assert.False(t, s.Verification.PriceChanged)
}

func TestVerifyPrices_PriceChangeParksInReview(t *testing.T) {
    cart := testCart()
    f := newFixture(cart)
    f.verifier.result = changedVerification(cart.Totals.TotalCents + 6000)
    ctx := context.Background()
    s, err := f.coord.InitializeCheckout(ctx, testUserID, testCartID, "key-1")
    require.NoError(t, err)
    oldTotal := s.TotalCents

    s, err = f.coord.VerifyPrices(ctx, s.Token, testUserID)

    require.NoError(t, err)
    assert.Equal(t, model.StateReview, s.State)
    require.NotNil(t, s.Verification)
    assert.True(t, s.Verification.PriceChanged)
    // The old total stands until the user accepts the new one.
    assert.Equal(t, oldTotal, s.TotalCents)
}

func TestAcknowledgePriceChange_AcceptAdoptsNewTotal(t *testing.T) {
    cart := testCart()
    newTotal := cart.Totals.TotalCents + 6000
    f := newFixture(cart)
    f.verifier.result = changedVerification(newTotal)
    ctx := context.Background()
    s, _ := f.coord.InitializeCheckout(ctx, testUserID, testCartID, "key-1")
    s, err := f.coord.VerifyPrices(ctx, s.Token, testUserID)
    require.NoError(t, err)

    s, err = f.coord.AcknowledgePriceChange(ctx, s.Token, testUserID, true)

    require.NoError(t, err)
    assert.Equal(t, model.StateTravelers, s.State)
    assert.Equal(t, newTotal, s.TotalCents)
}

func TestAcknowledgePriceChange_RejectReturnsToCartUntouched(t *testing.T) {
    cart := testCart()
    f := newFixture(cart)
    f.verifier.result = changedVerification(cart.Totals.TotalCents + 6000)
    ctx := context.Background()
    s, _ := f.coord.InitializeCheckout(ctx, testUserID, testCartID, "key-1")
    s, err := f.coord.VerifyPrices(ctx, s.Token, testUserID)
    require.NoError(t, err)

    s, err = f.coord.AcknowledgePriceChange(ctx, s.Token, testUserID, false)

    require.NoError(t, err)
    assert.Equal(t, model.StateCart, s.State)
    require.NotNil(t, s.FailureReason)

    // The cart is exactly as the user left it.
    got, err := f.carts.GetForUser(ctx, testCartID, testUserID)
    require.NoError(t, err)
    assert.Len(t, got.Items, 1)
    assert.Equal(t, int64(50000), got.Items[0].SnapshotPriceCents)
    assert.Empty(t, f.carts.cleared)
}

func TestAcknowledgePriceChange_WithoutPendingChange(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()
    s, _ := f.coord.InitializeCheckout(ctx, testUserID, testCartID, "key-1")

    _, err := f.coord.AcknowledgePriceChange(ctx, s.Token, testUserID, true)

    assert.ErrorIs(t, err, ErrStateConflict)
}

func TestVerifyPrices_UnavailableItemTerminates(t *testing.T) {
    cart := testCart()
    f := newFixture(cart)
    f.verifier.result = &model.PriceVerificationResult{
        Items: []model.ItemPriceCheck{
            {ItemID: 1, OfferRef: "fl-1", SnapshotPriceCents: 50000, CurrentPriceCents: 50000, Unavailable: true},
        },
        HasUnavailableItems: true,
        NewTotalCents:       cart.Totals.TotalCents,
        CheckedAt:           time.Now().UTC(),
    }
    ctx := context.Background()
    s, _ := f.coord.InitializeCheckout(ctx, testUserID, testCartID, "key-1")

    s, err := f.coord.VerifyPrices(ctx, s.Token, testUserID)

    assert.ErrorIs(t, err, ErrItemUnavailable)
    require.NotNil(t, s)
    assert.Equal(t, model.StateError, s.State)
    require.NotNil(t, s.FailureReason)

    // The terminal session is immutable; the journey cannot continue.
    _, err = f.coord.VerifyPrices(ctx, s.Token, testUserID)
    assert.ErrorIs(t, err, ErrStateConflict)
}

func TestVerifyPrices_OutOfOrderLeavesStateUntouched(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()
    s := f.advanceToPayment(t)

    _, err := f.coord.VerifyPrices(ctx, s.Token, testUserID)
    assert.ErrorIs(t, err, ErrStateConflict)

    got, gerr := f.coord.GetSession(ctx, s.Token, testUserID)
    require.NoError(t, gerr)
    assert.Equal(t, model.StatePayment, got.State)
}

func TestSubmitTravelers_FieldErrorsLeaveSessionInPlace(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()
    s, _ := f.coord.InitializeCheckout(ctx, testUserID, testCartID, "key-1")
    s, err := f.coord.VerifyPrices(ctx, s.Token, testUserID)
    require.NoError(t, err)

    payload := &model.TravelerPayload{
        Travelers: []model.Traveler{{FirstName: "", LastName: "Silva", DateOfBirth: "04/02/1990"}},
        Contact:   model.ContactDetails{Email: "not-an-email"},
    }
    s, fieldErrs, err := f.coord.SubmitTravelerDetails(ctx, s.Token, testUserID, payload)

    require.NoError(t, err)
    assert.NotEmpty(t, fieldErrs)
    fields := make([]string, 0, len(fieldErrs))
    for _, fe := range fieldErrs {
        fields = append(fields, fe.Field)
    }
    assert.Contains(t, fields, "travelers[0].first_name")
    assert.Contains(t, fields, "travelers[0].date_of_birth")
    assert.Contains(t, fields, "contact.email")
    assert.Equal(t, model.StateTravelers, s.State)
}

func TestSubmitTravelers_WrongCount(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()
    s, _ := f.coord.InitializeCheckout(ctx, testUserID, testCartID, "key-1")
    s, err := f.coord.VerifyPrices(ctx, s.Token, testUserID)
    require.NoError(t, err)

    payload := &model.TravelerPayload{
        Travelers: []model.Traveler{
            {FirstName: "Ana", LastName: "Silva"},
            {FirstName: "Rui", LastName: "Costa"},
        },
        Contact: model.ContactDetails{Email: "ana@example.com"},
    }
    _, fieldErrs, err := f.coord.SubmitTravelerDetails(ctx, s.Token, testUserID, payload)

    require.NoError(t, err)
    require.Len(t, fieldErrs, 1)
    assert.Equal(t, "travelers", fieldErrs[0].Field)
}

func TestCreatePaymentIntent_OneIntentPerSession(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()
    s := f.advanceToPayment(t)

    _, first, err := f.coord.CreatePaymentIntent(ctx, s.Token, testUserID)
    require.NoError(t, err)
    _, second, err := f.coord.CreatePaymentIntent(ctx, s.Token, testUserID)
    require.NoError(t, err)

    assert.Equal(t, first.ID, second.ID)
}

func TestConfirmPayment_Success(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()
    s := f.advanceToPayment(t)
    _, _, err := f.coord.CreatePaymentIntent(ctx, s.Token, testUserID)
    require.NoError(t, err)

    outcome, err := f.coord.ConfirmPayment(ctx, s.Token, testUserID, "pm_card_visa")

    require.NoError(t, err)
    require.NotNil(t, outcome.Result)
    assert.Equal(t, model.StateConfirmation, outcome.Session.State)
    require.NotNil(t, outcome.Session.BookingID)
    assert.Equal(t, outcome.Result.BookingID, *outcome.Session.BookingID)
    assert.Equal(t, []uint64{testCartID}, f.carts.cleared)
}

func TestConfirmPayment_WithoutIntent(t *testing.T) {
    f := newFixture(testCart())
    s := f.advanceToPayment(t)

    _, err := f.coord.ConfirmPayment(context.Background(), s.Token, testUserID, "pm_card_visa")

    assert.ErrorIs(t, err, ErrNoPaymentIntent)
}

func TestConfirmPayment_DeclineTerminates(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()
    s := f.advanceToPayment(t)
    _, _, err := f.coord.CreatePaymentIntent(ctx, s.Token, testUserID)
    require.NoError(t, err)

    outcome, err := f.coord.ConfirmPayment(ctx, s.Token, testUserID, "pm_declined")

    assert.ErrorIs(t, err, payment.ErrDeclined)
    assert.Equal(t, model.StateError, outcome.Session.State)
    assert.Equal(t, 0, f.finalizer.calls)
    assert.Empty(t, f.carts.cleared, "nothing was booked, the cart survives")
}

func TestConfirmPayment_NetworkErrorIsRetryable(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()
    s := f.advanceToPayment(t)
    _, intent, err := f.coord.CreatePaymentIntent(ctx, s.Token, testUserID)
    require.NoError(t, err)

    outcome, err := f.coord.ConfirmPayment(ctx, s.Token, testUserID, "pm_network")

    assert.ErrorIs(t, err, payment.ErrNetwork)
    assert.True(t, outcome.Retryable)
    assert.Equal(t, model.StatePayment, outcome.Session.State)

    // Same intent, working payment method, same session: the retry
    // completes the journey.
    outcome, err = f.coord.ConfirmPayment(ctx, s.Token, testUserID, "pm_card_visa")
    require.NoError(t, err)
    require.NotNil(t, outcome.Result)
    require.NotNil(t, outcome.Session.PaymentIntentID)
    assert.Equal(t, intent.ID, *outcome.Session.PaymentIntentID)
}

func TestConfirmPayment_RequiresActionThenSuccess(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()
    s := f.advanceToPayment(t)
    _, _, err := f.coord.CreatePaymentIntent(ctx, s.Token, testUserID)
    require.NoError(t, err)

    outcome, err := f.coord.ConfirmPayment(ctx, s.Token, testUserID, "pm_3ds")

    require.NoError(t, err)
    assert.True(t, outcome.RequiresAction)
    assert.NotEmpty(t, outcome.ActionURL)
    assert.Nil(t, outcome.Result)
    assert.Equal(t, model.StatePayment, outcome.Session.State)

    outcome, err = f.coord.ConfirmPayment(ctx, s.Token, testUserID, "pm_3ds")
    require.NoError(t, err)
    require.NotNil(t, outcome.Result)
    assert.Equal(t, model.StateConfirmation, outcome.Session.State)
}

func TestConfirmPayment_FinalizeFailureKeepsSessionProcessing(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()
    s := f.advanceToPayment(t)
    _, _, err := f.coord.CreatePaymentIntent(ctx, s.Token, testUserID)
    require.NoError(t, err)

    f.finalizer.err = assert.AnError
    _, err = f.coord.ConfirmPayment(ctx, s.Token, testUserID, "pm_card_visa")
    require.Error(t, err)

    // Charged but not yet booked: the session waits in the processing
    // step instead of failing, because the money already moved.
    got, gerr := f.coord.GetSession(ctx, s.Token, testUserID)
    require.NoError(t, gerr)
    assert.Equal(t, model.StateProcessing, got.State)

    // Once finalization can succeed, replaying the confirmation
    // completes the session without touching the gateway outcome.
    f.finalizer.err = nil
    outcome, err := f.coord.ConfirmPayment(ctx, s.Token, testUserID, "pm_card_visa")
    require.NoError(t, err)
    require.NotNil(t, outcome.Result)
    assert.Equal(t, model.StateConfirmation, outcome.Session.State)
}

func TestGetSession_ForeignTokenHidden(t *testing.T) {
    f := newFixture(testCart())
    ctx := context.Background()
    s, _ := f.coord.InitializeCheckout(ctx, testUserID, testCartID, "key-1")

    _, err := f.coord.GetSession(ctx, s.Token, 999)
    assert.ErrorIs(t, err, ErrSessionNotFound)
}
