package handler

import (
    "context"
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/voyago/booking-core/internal/model"
    "github.com/voyago/booking-core/internal/repository"
    "github.com/voyago/booking-core/internal/trip"
)

// TripHandler exposes trips and bookings.  Reads go straight to the
// repositories; status changes go through the lifecycle service so the
// state machine and its events stay in one place.
type TripHandler struct {
    Trips     *repository.TripRepo
    Bookings  *repository.BookingRepo
    Lifecycle *trip.Service
}

// NewTripHandler constructs a TripHandler.
func NewTripHandler(trips *repository.TripRepo, bookings *repository.BookingRepo, lifecycle *trip.Service) *TripHandler {
    if trips == nil || bookings == nil || lifecycle == nil {
        panic("nil dependency passed to NewTripHandler")
    }
    return &TripHandler{Trips: trips, Bookings: bookings, Lifecycle: lifecycle}
}

// ListTrips handles GET /v1/trips.  Archived trips stay hidden unless
// ?include_archived=true.
func (h *TripHandler) ListTrips(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    includeArchived := c.QueryParam("include_archived") == "true"
    trips, err := h.Trips.ListByUser(c.Request().Context(), userID, includeArchived)
    if err != nil {
        return tripError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"trips": trips})
}

// GetTrip handles GET /v1/trips/:id.
func (h *TripHandler) GetTrip(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || tripID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
    }
    t, err := h.Trips.GetForUser(c.Request().Context(), tripID, userID)
    if err != nil {
        return tripError(c, err)
    }
    return c.JSON(http.StatusOK, t)
}

// ConfirmTrip handles POST /v1/trips/:id/confirm.
func (h *TripHandler) ConfirmTrip(c echo.Context) error {
    return h.transition(c, h.Lifecycle.ConfirmForUser)
}

// CancelTrip handles POST /v1/trips/:id/cancel.
func (h *TripHandler) CancelTrip(c echo.Context) error {
    return h.transition(c, h.Lifecycle.Cancel)
}

// ArchiveTrip handles POST /v1/trips/:id/archive.
func (h *TripHandler) ArchiveTrip(c echo.Context) error {
    return h.transition(c, h.Lifecycle.Archive)
}

// transition runs one owner-driven lifecycle change and returns the
// updated trip.
func (h *TripHandler) transition(c echo.Context, apply func(ctx context.Context, tripID, userID uint64) (*model.Trip, error)) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    tripID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || tripID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid trip id"})
    }
    t, err := apply(c.Request().Context(), tripID, userID)
    if err != nil {
        return tripError(c, err)
    }
    return c.JSON(http.StatusOK, t)
}

// tripError maps repository and lifecycle errors onto HTTP responses.
func tripError(c echo.Context, err error) error {
    switch {
    case errors.Is(err, repository.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, repository.ErrStaleState):
        return c.JSON(http.StatusConflict, echo.Map{"error": "trip status changed, reload and retry"})
    case errors.Is(err, trip.ErrInvalidTransition):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "database error"})
}

// ListBookings handles GET /v1/bookings.
func (h *TripHandler) ListBookings(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    bookings, err := h.Bookings.ListByUser(c.Request().Context(), userID)
    if err != nil {
        return tripError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

// GetBooking handles GET /v1/bookings/:id.
func (h *TripHandler) GetBooking(c echo.Context) error {
    userID, err := currentUser(c)
    if err != nil {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
    if err != nil || bookingID == 0 {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
    }
    b, err := h.Bookings.GetForUser(c.Request().Context(), bookingID, userID)
    if err != nil {
        return tripError(c, err)
    }
    return c.JSON(http.StatusOK, b)
}
