package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/kinohaus/seat-booking/internal/booking"
	"github.com/kinohaus/seat-booking/internal/config"
	"github.com/kinohaus/seat-booking/internal/database"
	"github.com/kinohaus/seat-booking/internal/handler"
	"github.com/kinohaus/seat-booking/internal/payment"
	"github.com/kinohaus/seat-booking/internal/queue"
	"github.com/kinohaus/seat-booking/internal/router"
	"github.com/kinohaus/seat-booking/internal/store"
)

func main() {
	// .env is a development convenience; real deployments set the
	// environment directly.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, using process environment")
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	st := store.NewMySQL(db)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Printf("redis unavailable, rate limiting and availability cache disabled")
	}

	svc := booking.NewService(st, st, st, payment.NewSandbox(), queue.NewProducer(), rdb, booking.Config{
		HoldTTL:         time.Duration(cfg.HoldTTLSec) * time.Second,
		PaymentWindow:   time.Duration(cfg.PaymentWindowMin) * time.Minute,
		AvailabilityTTL: time.Duration(cfg.AvailabilityTTL) * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.RunSweeper(ctx, time.Duration(cfg.SweepIntervalSec)*time.Second)
	go func() {
		if err := queue.StartEventConsumer(); err != nil {
			log.Printf("event consumer: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, handler.NewShowHandler(svc))
	router.RegisterBooking(e, handler.NewReservationHandler(svc), cfg.JWTSecret, config.LoadRateLimitConfig(), rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
