package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tripsync-backend/internal/config"
	"tripsync-backend/internal/handlers"
	"tripsync-backend/internal/middleware"
	"tripsync-backend/internal/repository"
	"tripsync-backend/internal/services"
	"tripsync-backend/internal/storage"
	"tripsync-backend/migrations"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const storageSweepInterval = 10 * time.Minute

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Select storage backend. The durable backend being unreachable is
	// fatal; there is no silent fallback to the in-process store.
	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("Failed to open storage backend")
	}
	defer cleanup()

	// Typed record stores
	tripStore := repository.NewTripStore(store)
	bookingStore := repository.NewBookingStore(store)
	linkStore := repository.NewLinkStore(store)

	// Services
	broker := services.NewBroker()
	defer broker.Close()
	tokens := services.NewTokenService(cfg.JWT.Secret)
	sweeper := services.NewSweeper()

	tripService := services.NewTripService(tripStore, broker, tokens, cfg.Voting.LinkValidityMinutes)
	pollService := services.NewPollService(tripStore, broker, sweeper,
		time.Duration(cfg.Voting.DefaultPollDurationSec)*time.Second)
	hotelService := services.NewHotelService(tripStore, broker, sweeper,
		time.Duration(cfg.Voting.HotelVotingDurationSec)*time.Second)
	bookingService := services.NewBookingService(tripStore, bookingStore, linkStore, broker)

	sweeper.Bind(pollService, hotelService)
	go sweeper.Run(ctx, time.Duration(cfg.Voting.SweepIntervalMillis)*time.Millisecond)

	// Handlers
	tripHandler := handlers.NewTripHandler(tripService)
	pollHandler := handlers.NewPollHandler(pollService)
	hotelHandler := handlers.NewHotelHandler(hotelService)
	bookingHandler := handlers.NewBookingHandler(bookingService)
	wsHandler := handlers.NewWebSocketHandler(broker, tokens)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/trips", tripHandler.CreateTrip)
		r.Post("/trips/{trip_id}/join", tripHandler.JoinTrip)
		r.Get("/share/{link_id}", bookingHandler.ResolveShareLink)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(tokens))

			r.Get("/trips/{trip_id}", tripHandler.GetTrip)
			r.Post("/trips/{trip_id}/leave", tripHandler.LeaveTrip)
			r.Delete("/trips/{trip_id}/members/{member_id}", tripHandler.RemoveMember)
			r.Patch("/trips/{trip_id}/link", tripHandler.ToggleLink)
			r.Get("/trips/{trip_id}/messages", tripHandler.GetMessages)
			r.Post("/trips/{trip_id}/messages", tripHandler.SendMessage)

			r.Post("/trips/{trip_id}/polls", pollHandler.CreatePoll)
			r.Post("/trips/{trip_id}/polls/{poll_id}/votes", pollHandler.VotePoll)
			r.Post("/trips/{trip_id}/polls/{poll_id}/close", pollHandler.ClosePoll)

			r.Put("/trips/{trip_id}/hotels", hotelHandler.ShortlistHotels)
			r.Post("/trips/{trip_id}/hotels/{hotel_id}/votes", hotelHandler.VoteHotel)
			r.Post("/trips/{trip_id}/hotels/close-voting", hotelHandler.CloseVoting)

			r.Post("/bookings", bookingHandler.ConfirmBooking)
			r.Get("/bookings", bookingHandler.ListBookings)
			r.Get("/bookings/{booking_id}", bookingHandler.GetBooking)
			r.Post("/bookings/{booking_id}/share", bookingHandler.CreateShareLink)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("storage", cfg.Storage.Backend).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	cancel()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// openStore builds the configured storage backend. For postgres it
// connects, pings, applies migrations and starts the TTL reclamation
// sweep; the returned cleanup closes the pool.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, func(), error) {
	if cfg.Storage.Backend == "memory" {
		log.Warn().Msg("Using in-process storage: no durability, no TTL enforcement")
		return storage.NewMemory(), func() {}, nil
	}

	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Info().Msg("Database connection established")

	if err := applyMigrations(ctx, cfg); err != nil {
		db.Close()
		return nil, nil, err
	}

	store := storage.NewPostgres(db)
	go store.RunExpirySweep(ctx, storageSweepInterval)
	return store, db.Close, nil
}

func applyMigrations(ctx context.Context, cfg *config.Config) error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	sqlDB := stdlib.OpenDB(*mustParseConfig(cfg))
	defer sqlDB.Close()

	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func mustParseConfig(cfg *config.Config) *pgx.ConnConfig {
	connCfg, err := pgx.ParseConfig(cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid database configuration")
	}
	return connCfg
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
