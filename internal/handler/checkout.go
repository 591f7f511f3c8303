package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/voyago/booking-core/internal/checkout"
    "github.com/voyago/booking-core/internal/model"
    "github.com/voyago/booking-core/internal/payment"
    "github.com/voyago/booking-core/internal/repository"
)

// CheckoutHandler maps the checkout saga onto HTTP.  Each endpoint is
// one saga step; the coordinator enforces ordering, so the handler only
// translates its outcomes into status codes.  409 means the step was
// called out of order, and the response carries the session so the
// client can resync.
type CheckoutHandler struct {
    Coordinator *checkout.Coordinator
    Carts       *repository.CartRepo
}

// NewCheckoutHandler constructs a CheckoutHandler.
func NewCheckoutHandler(coord *checkout.Coordinator, carts *repository.CartRepo) *CheckoutHandler {
    if coord == nil || carts == nil {
        panic("nil dependency passed to NewCheckoutHandler")
    }
    return &CheckoutHandler{Coordinator: coord, Carts: carts}
}

// Initialize handles POST /v1/checkout.  The idempotency key comes from
// the Idempotency-Key header (preferred) or the body; repeating the
// call with the same key returns the same session.
func (h *CheckoutHandler) Initialize(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        IdempotencyKey string `json:"idempotency_key"`
    }
    _ = c.Bind(&body)
    key := c.Request().Header.Get("Idempotency-Key")
    if key == "" {
        key = body.IdempotencyKey
    }

    cart, err := h.Carts.GetOrCreate(c.Request().Context(), userID)
    if err != nil {
        return cartError(c, err)
    }
    s, err := h.Coordinator.InitializeCheckout(c.Request().Context(), userID, cart.ID, key)
    if err != nil {
        return checkoutError(c, err)
    }
    return c.JSON(http.StatusCreated, s)
}

// GetSession handles GET /v1/checkout/:token.
func (h *CheckoutHandler) GetSession(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    s, err := h.Coordinator.GetSession(c.Request().Context(), c.Param("token"), userID)
    if err != nil {
        return checkoutError(c, err)
    }
    return c.JSON(http.StatusOK, s)
}

// VerifyPrices handles POST /v1/checkout/:token/verify.  An
// unavailable item terminates the session; the 409 body carries it so
// the client can show which lines died.
func (h *CheckoutHandler) VerifyPrices(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    s, err := h.Coordinator.VerifyPrices(c.Request().Context(), c.Param("token"), userID)
    if errors.Is(err, checkout.ErrItemUnavailable) {
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error(), "session": s})
    }
    if err != nil {
        return checkoutError(c, err)
    }
    return c.JSON(http.StatusOK, s)
}

// AcknowledgePriceChange handles POST /v1/checkout/:token/price-change.
func (h *CheckoutHandler) AcknowledgePriceChange(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        Accept bool `json:"accept"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    s, err := h.Coordinator.AcknowledgePriceChange(c.Request().Context(), c.Param("token"), userID, body.Accept)
    if err != nil {
        return checkoutError(c, err)
    }
    return c.JSON(http.StatusOK, s)
}

// SubmitTravelers handles POST /v1/checkout/:token/travelers.  Field
// problems come back together as a 422 with the session untouched.
func (h *CheckoutHandler) SubmitTravelers(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var payload model.TravelerPayload
    if err := c.Bind(&payload); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    s, fieldErrs, err := h.Coordinator.SubmitTravelerDetails(c.Request().Context(), c.Param("token"), userID, &payload)
    if err != nil {
        return checkoutError(c, err)
    }
    if len(fieldErrs) > 0 {
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"errors": fieldErrs, "session": s})
    }
    return c.JSON(http.StatusOK, s)
}

// CreatePaymentIntent handles POST /v1/checkout/:token/payment-intent.
func (h *CheckoutHandler) CreatePaymentIntent(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    s, intent, err := h.Coordinator.CreatePaymentIntent(c.Request().Context(), c.Param("token"), userID)
    if err != nil {
        return checkoutError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "session":       s,
        "intent_id":     intent.ID,
        "client_secret": intent.ClientSecret,
    })
}

// ConfirmPayment handles POST /v1/checkout/:token/confirm.  Outcomes:
// 200 with a booking result, 200 with a pending challenge, 402 on a
// decline, 503 on a transient gateway failure (retry the same call).
func (h *CheckoutHandler) ConfirmPayment(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        PaymentMethodID string `json:"payment_method_id"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }

    outcome, err := h.Coordinator.ConfirmPayment(c.Request().Context(), c.Param("token"), userID, body.PaymentMethodID)
    switch {
    case errors.Is(err, payment.ErrDeclined):
        return c.JSON(http.StatusPaymentRequired, echo.Map{"error": "payment declined", "session": outcome.Session})
    case errors.Is(err, payment.ErrNetwork):
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "payment gateway unavailable", "retryable": true, "session": outcome.Session})
    case err != nil:
        return checkoutError(c, err)
    }
    return c.JSON(http.StatusOK, outcome)
}

// checkoutError maps coordinator errors onto HTTP responses.
func checkoutError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, checkout.ErrMissingIdempotencyKey),
        errors.Is(err, checkout.ErrCartEmpty),
        errors.Is(err, checkout.ErrNoPaymentIntent):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, checkout.ErrSessionNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "checkout session not found"})
    case errors.Is(err, checkout.ErrStateConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
