package handler

import (
    "encoding/json"
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/voyago/booking-core/internal/middleware"
    "github.com/voyago/booking-core/internal/model"
    "github.com/voyago/booking-core/internal/repository"
)

// CartHandler exposes the user's cart.  All routes sit behind JWT
// authentication; the handler only extracts the caller and delegates
// ownership checks to the repository.
type CartHandler struct {
    Carts *repository.CartRepo
}

// NewCartHandler constructs a CartHandler.
func NewCartHandler(carts *repository.CartRepo) *CartHandler {
    if carts == nil {
        panic("nil cart repository passed to NewCartHandler")
    }
    return &CartHandler{Carts: carts}
}

// currentUser extracts the authenticated user id injected by JWTAuth.
func currentUser(c echo.Context) (uint64, error) {
    id, ok := middleware.CurrentUserID(c)
    if !ok || id == 0 {
        return 0, echo.ErrUnauthorized
    }
    return id, nil
}

// GetCart handles GET /v1/cart.  A user who has never touched their
// cart gets a fresh empty one rather than a 404.
func (h *CartHandler) GetCart(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    cart, err := h.Carts.GetOrCreate(c.Request().Context(), userID)
    if err != nil {
        return cartError(c, err)
    }
    return c.JSON(http.StatusOK, cart)
}

// addItemRequest is the body of POST /v1/cart/items.  Details carries
// the provider payload verbatim; its shape depends on product_type.
type addItemRequest struct {
    ProductType string          `json:"product_type"`
    OfferRef    string          `json:"offer_ref"`
    PriceCents  int64           `json:"price_cents"`
    Quantity    uint32          `json:"quantity"`
    Details     json.RawMessage `json:"details"`
}

// AddItem handles POST /v1/cart/items.  The line price is frozen from
// the request; checkout re-verifies it before any money moves.
func (h *CartHandler) AddItem(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body addItemRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if body.OfferRef == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "offer_ref is required"})
    }
    if body.PriceCents <= 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "price_cents must be positive"})
    }
    if body.Quantity == 0 {
        body.Quantity = 1
    }

    details, err := parseDetails(model.ProductType(body.ProductType), body.Details)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }

    cart, err := h.Carts.GetOrCreate(c.Request().Context(), userID)
    if err != nil {
        return cartError(c, err)
    }
    item := model.CartItem{
        ProductType:        details.Kind,
        OfferRef:           body.OfferRef,
        SnapshotPriceCents: body.PriceCents,
        Quantity:           body.Quantity,
        Details:            details,
    }
    cart, err = h.Carts.AddItem(c.Request().Context(), cart.ID, userID, item)
    if err != nil {
        return cartError(c, err)
    }
    return c.JSON(http.StatusCreated, cart)
}

// UpdateItem handles PATCH /v1/cart/items/:id.
func (h *CartHandler) UpdateItem(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || itemID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
    }
    var body struct {
        Quantity uint32 `json:"quantity"`
    }
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    cart, err := h.Carts.GetOrCreate(c.Request().Context(), userID)
    if err != nil {
        return cartError(c, err)
    }
    cart, err = h.Carts.UpdateQuantity(c.Request().Context(), cart.ID, userID, itemID, body.Quantity)
    if err != nil {
        return cartError(c, err)
    }
    return c.JSON(http.StatusOK, cart)
}

// RemoveItem handles DELETE /v1/cart/items/:id.
func (h *CartHandler) RemoveItem(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    itemID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || itemID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid item id"})
    }
    cart, err := h.Carts.GetOrCreate(c.Request().Context(), userID)
    if err != nil {
        return cartError(c, err)
    }
    cart, err = h.Carts.RemoveItem(c.Request().Context(), cart.ID, userID, itemID)
    if err != nil {
        return cartError(c, err)
    }
    return c.JSON(http.StatusOK, cart)
}

// Clear handles DELETE /v1/cart.
func (h *CartHandler) Clear(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    cart, err := h.Carts.GetOrCreate(c.Request().Context(), userID)
    if err != nil {
        return cartError(c, err)
    }
    cart, err = h.Carts.Clear(c.Request().Context(), cart.ID, userID)
    if err != nil {
        return cartError(c, err)
    }
    return c.JSON(http.StatusOK, cart)
}

// ApplyPromo handles POST /v1/cart/promo.
func (h *CartHandler) ApplyPromo(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    var body struct {
        Code string `json:"code"`
    }
    if err := c.Bind(&body); err != nil || body.Code == "" {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "code is required"})
    }
    cart, err := h.Carts.GetOrCreate(c.Request().Context(), userID)
    if err != nil {
        return cartError(c, err)
    }
    cart, err = h.Carts.ApplyPromo(c.Request().Context(), cart.ID, userID, body.Code)
    if err != nil {
        return cartError(c, err)
    }
    return c.JSON(http.StatusOK, cart)
}

// RemovePromo handles DELETE /v1/cart/promo.
func (h *CartHandler) RemovePromo(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    cart, err := h.Carts.GetOrCreate(c.Request().Context(), userID)
    if err != nil {
        return cartError(c, err)
    }
    cart, err = h.Carts.RemovePromo(c.Request().Context(), cart.ID, userID)
    if err != nil {
        return cartError(c, err)
    }
    return c.JSON(http.StatusOK, cart)
}

// parseDetails decodes the provider payload for the declared product
// type.  Types this service does not know keep the raw payload so the
// item round-trips losslessly.
func parseDetails(pt model.ProductType, raw json.RawMessage) (model.ItemDetails, error) {
    d := model.ItemDetails{Kind: pt}
    if !pt.Valid() {
        d.Kind = model.ProductUnknown
        d.Raw = raw
        return d, nil
    }
    if len(raw) == 0 {
        return d, errors.New("details are required for " + string(pt) + " items")
    }
    switch pt {
    case model.ProductFlight:
        var f model.FlightDetails
        if err := json.Unmarshal(raw, &f); err != nil {
            return d, errors.New("invalid flight details")
        }
        d.Flight = &f
    case model.ProductHotel:
        var hd model.HotelDetails
        if err := json.Unmarshal(raw, &hd); err != nil {
            return d, errors.New("invalid hotel details")
        }
        d.Hotel = &hd
    case model.ProductCar:
        var cd model.CarDetails
        if err := json.Unmarshal(raw, &cd); err != nil {
            return d, errors.New("invalid car details")
        }
        d.Car = &cd
    case model.ProductExperience:
        var ed model.ExperienceDetails
        if err := json.Unmarshal(raw, &ed); err != nil {
            return d, errors.New("invalid experience details")
        }
        d.Experience = &ed
    }
    return d, nil
}

// cartError maps repository errors onto HTTP responses.
func cartError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, repository.ErrInvalidQuantity):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrPromoNotApplicable):
        return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}
