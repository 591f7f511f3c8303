package main // service entry point

import (
    "context"
    "log"
    "net/http"
    "os"
    "time"

    "github.com/joho/godotenv"
    "github.com/labstack/echo/v4"

    "github.com/voyago/booking-core/internal/booking"
    "github.com/voyago/booking-core/internal/checkout"
    "github.com/voyago/booking-core/internal/config"
    "github.com/voyago/booking-core/internal/database"
    "github.com/voyago/booking-core/internal/handler"
    "github.com/voyago/booking-core/internal/payment"
    "github.com/voyago/booking-core/internal/pricing"
    "github.com/voyago/booking-core/internal/queue"
    "github.com/voyago/booking-core/internal/repository"
    "github.com/voyago/booking-core/internal/router"
    queue_publisher "github.com/voyago/booking-core/internal/service"
    "github.com/voyago/booking-core/internal/trip"
)

func main() {
    // .env is optional; real deployments set the environment directly.
    _ = godotenv.Load()
    cfg := config.Load()

    db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
    if err != nil {
        log.Fatalf("database: %v", err)
    }
    defer db.Close()

    rdb := config.NewRedisClient()
    if rdb == nil {
        log.Println("redis unavailable, rate limiting disabled")
    }

    // Repositories
    promoRepo := repository.NewPromoRepo(db)
    cartRepo := repository.NewCartRepo(db, promoRepo)
    sessionRepo := repository.NewCheckoutSessionRepo(db)
    bookingRepo := repository.NewBookingRepo(db)
    tripRepo := repository.NewTripRepo(db)

    // Domain services
    publisher := queue_publisher.NewPublisher()
    lifecycle := trip.NewService(tripRepo, publisher)
    finalizer := booking.NewFinalizer(booking.NewSQLStore(db, tripRepo, bookingRepo), lifecycle, publisher)

    var source pricing.OfferSource = pricing.SnapshotSource{}
    if base := os.Getenv("OFFER_SOURCE_URL"); base != "" {
        source = pricing.NewHTTPSource(base, &http.Client{Timeout: 10 * time.Second})
    } else {
        log.Println("OFFER_SOURCE_URL not set, quoting snapshot prices")
    }
    verifier := pricing.NewVerifier(source, 0)

    // The sandbox gateway stands in for the real payment provider; the
    // retry wrapper absorbs one transient network failure per call.
    gateway := payment.NewRetryingGateway(payment.NewSandboxGateway(), 0, 0)

    coordinator := checkout.NewCoordinator(cartRepo, sessionRepo, verifier, gateway, finalizer)

    // Background workers
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    go func() {
        if err := queue.StartNotificationConsumer(); err != nil {
            log.Printf("notification consumer stopped: %v", err)
        }
    }()
    go trip.StartSweeper(ctx, lifecycle, time.Duration(cfg.SweepIntervalSec)*time.Second)

    // HTTP surface
    e := echo.New()
    e.HideBanner = true
    router.RegisterRoutes(e)
    router.RegisterAPI(e, cfg.JWTSecret, rdb, config.LoadRateLimitConfig(),
        handler.NewCartHandler(cartRepo),
        handler.NewCheckoutHandler(coordinator, cartRepo),
        handler.NewTripHandler(tripRepo, bookingRepo, lifecycle))

    addr := ":" + cfg.Port
    log.Printf("listening on %s (env=%s)", addr, cfg.Env)
    if err := e.Start(addr); err != nil {
        log.Fatal(err)
    }
}
