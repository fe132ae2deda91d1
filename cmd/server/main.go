package main

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/Fuad208/MovieStore1-sub000/internal/booking"
	"github.com/Fuad208/MovieStore1-sub000/internal/config"
	"github.com/Fuad208/MovieStore1-sub000/internal/database"
	"github.com/Fuad208/MovieStore1-sub000/internal/handler"
	"github.com/Fuad208/MovieStore1-sub000/internal/queue"
	"github.com/Fuad208/MovieStore1-sub000/internal/repository"
	"github.com/Fuad208/MovieStore1-sub000/internal/router"
	"github.com/Fuad208/MovieStore1-sub000/internal/worker"
)

func main() {
	// Load .env when present; real deployments set the environment
	// directly and have no .env file.
	_ = godotenv.Load()

	cfg := config.Load()
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()

	cinemaRepo := repository.NewCinemaRepo(db)
	showtimeRepo := repository.NewShowtimeRepo(db)
	reservationRepo := repository.NewReservationRepo(db)
	coord := booking.NewCoordinator(db, cinemaRepo, showtimeRepo, reservationRepo)

	// Background expiry sweeper releases lapsed holds.  Can be turned
	// off to drive the sweep via the staff endpoint instead.
	if cfg.SweepEnabled {
		sweeper := worker.NewExpirySweeper(coord, cfg.SweepInterval)
		go sweeper.Start(context.Background())
		defer sweeper.Stop()
	}

	// Consume confirmation events for the audit log.  The consumer
	// reconnects on broker failures and never takes the API down.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("reservation consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)

	h := handler.NewBookingHandler(coord, cacheCfg, rdb)
	router.RegisterBooking(e, h, &cfg, cacheCfg, rlCfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
