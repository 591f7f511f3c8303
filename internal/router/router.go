// Package router wires HTTP routes to their handlers.
package router

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/voyago/booking-core/internal/config"
    "github.com/voyago/booking-core/internal/handler"
    "github.com/voyago/booking-core/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterAPI registers the authenticated API under /v1.  Every route
// here runs behind JWT authentication and the Redis token-bucket rate
// limiter; with Redis down the limiter is a pass-through.
func RegisterAPI(e *echo.Echo, jwtSecret string, rdb *redis.Client, rlCfg config.RateLimitConfig,
    cart *handler.CartHandler, co *handler.CheckoutHandler, trips *handler.TripHandler) {

    v1 := e.Group("/v1")
    v1.Use(middleware.JWTAuth(jwtSecret))
    v1.Use(middleware.NewTokenBucket(rlCfg, rdb))

    // Cart
    v1.GET("/cart", cart.GetCart)
    v1.DELETE("/cart", cart.Clear)
    v1.POST("/cart/items", cart.AddItem)
    v1.PATCH("/cart/items/:id", cart.UpdateItem)
    v1.DELETE("/cart/items/:id", cart.RemoveItem)
    v1.POST("/cart/promo", cart.ApplyPromo)
    v1.DELETE("/cart/promo", cart.RemovePromo)

    // Checkout saga, one route per step.  Ordering is enforced by the
    // coordinator, not by the router.
    v1.POST("/checkout", co.Initialize)
    v1.GET("/checkout/:token", co.GetSession)
    v1.POST("/checkout/:token/verify", co.VerifyPrices)
    v1.POST("/checkout/:token/price-change", co.AcknowledgePriceChange)
    v1.POST("/checkout/:token/travelers", co.SubmitTravelers)
    v1.POST("/checkout/:token/payment-intent", co.CreatePaymentIntent)
    v1.POST("/checkout/:token/confirm", co.ConfirmPayment)

    // Trips and bookings
    v1.GET("/trips", trips.ListTrips)
    v1.GET("/trips/:id", trips.GetTrip)
    v1.POST("/trips/:id/confirm", trips.ConfirmTrip)
    v1.POST("/trips/:id/cancel", trips.CancelTrip)
    v1.POST("/trips/:id/archive", trips.ArchiveTrip)
    v1.GET("/bookings", trips.ListBookings)
    v1.GET("/bookings/:id", trips.GetBooking)
}
