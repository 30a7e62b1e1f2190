package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-reservation/internal/auth"
	"ms-reservation/internal/catalog"
	catalog_api "ms-reservation/internal/catalog/api"
	catalogdb "ms-reservation/internal/catalog/db"
	"ms-reservation/internal/catalog/qr"
	"ms-reservation/internal/config"
	"ms-reservation/internal/database/migrations"
	"ms-reservation/internal/kafka"
	"ms-reservation/internal/logger"
	"ms-reservation/internal/reservation"
	"ms-reservation/internal/reservation/holdstore"
	"ms-reservation/internal/reservation/ledger"
	"ms-reservation/internal/reservation/reservation_api"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			err = sqldb.Ping()
		}
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Redis connection error: %v", err))
	}

	// The redis hold store needs expiry events on the keyspace channel.
	if _, err := client.ConfigSet(ctx, "notify-keyspace-events", "Ex").Result(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Failed to enable keyspace notifications: %v", err))
	} else {
		log.Info("REDIS", "Keyspace notifications enabled for expired events")
	}

	log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Reservation Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.Up(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	log.Info("DATABASE", "Migrations applied")

	catalogStore := &catalogdb.DB{Bun: bunDB}

	var holds holdstore.Store
	switch cfg.Reservation.HoldStore {
	case "redis":
		redisClient := connectRedis(ctx, cfg.Redis, log)
		defer redisClient.Close()
		redisStore := holdstore.NewRedisStore(redisClient, log)
		go redisStore.Listen(ctx)
		holds = redisStore
		log.Info("APP", "Using redis hold store")
	default:
		holds = holdstore.NewMemoryStore()
		log.Info("APP", "Using in-memory hold store")
	}

	availability := ledger.New(catalogStore, holds, cfg.Reservation.AvailabilityTTL)

	var producer *kafka.Producer
	var publisher reservation.Publisher
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		publisher = producer

		topics := []string{
			cfg.Kafka.Topics.HoldCreated,
			cfg.Kafka.Topics.HoldConfirmed,
			cfg.Kafka.Topics.HoldCancelled,
			cfg.Kafka.Topics.HoldExpired,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka disabled, hold lifecycle events will not be published")
	}

	qrGen := qr.NewQRGenerator(os.Getenv("QR_SECRET_KEY"))

	reservationService := reservation.NewService(
		catalogStore,
		availability,
		holds,
		publisher,
		qrGen,
		log,
		cfg.Reservation,
		cfg.Kafka.Topics,
	)

	eventService := catalog.NewEventService(catalogStore, availability, holds)

	reservationHandler := reservation_api.NewHandler(reservationService, log)
	catalogHandler := catalog_api.NewHandler(eventService, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// Availability reads are public; everything that mutates needs a token.
	r.Route("/api", func(r chi.Router) {
		r.Get("/availability/{ticketTypeId}", reservationHandler.CheckAvailability)
		r.Get("/events", catalogHandler.ListEvents)
		r.Get("/events/{eventId}", catalogHandler.GetEvent)
		r.Get("/events/{eventId}/availability", catalogHandler.GetEventAvailability)

		r.Group(func(r chi.Router) {
			if cfg.Auth.JWTSecret != "" {
				r.Use(auth.Middleware(cfg.Auth.JWTSecret))
				log.Info("AUTH", "JWT middleware applied to mutating API routes")
			} else {
				log.Warn("AUTH", "JWT_SECRET not set, mutating routes are unauthenticated")
			}

			r.Route("/reservations", func(r chi.Router) {
				r.Post("/", reservationHandler.Reserve)
				r.Get("/{holdId}", reservationHandler.GetHold)
				r.Post("/{holdId}/confirm", reservationHandler.Confirm)
				r.Delete("/{holdId}", reservationHandler.Cancel)
			})
			log.Info("ROUTER", "Reservation routes registered under /api/reservations")

			r.Post("/events", catalogHandler.CreateEvent)
			r.Put("/events/{eventId}", catalogHandler.UpdateEvent)
			r.Put("/events/{eventId}/ticket-types/{ticketTypeId}", catalogHandler.UpdateTicketType)
			r.Delete("/events/{eventId}", catalogHandler.DeleteEvent)
			log.Info("ROUTER", "Event routes registered under /api/events")
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Reservation Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "Reservation Service shutdown complete")
	}
}
