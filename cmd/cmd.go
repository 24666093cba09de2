package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KNU-SingalProject/back/internal/config"
	"github.com/KNU-SingalProject/back/internal/handlers"
	"github.com/KNU-SingalProject/back/internal/middleware"
	"github.com/KNU-SingalProject/back/internal/repository"
	"github.com/KNU-SingalProject/back/internal/services"
	"github.com/KNU-SingalProject/back/internal/storage"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	loc, err := cfg.Facility.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load facility time zone")
	}

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(context.Background(), db); err != nil {
			log.Fatal().Err(err).Msg("Failed to migrate database")
		}
	}

	blobs, err := storage.NewS3Store(context.Background(), cfg.AWS)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create S3 store")
	}

	// Initialize repositories
	memberRepo := repository.NewMemberRepository(db)
	visitRepo := repository.NewVisitRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	facilityRepo := repository.NewFacilityRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	boardRepo := repository.NewBoardRepository(db)

	// Initialize services
	wsHub := services.NewWSHub()
	tokenService := services.NewTokenService(cfg.JWT.Secret, cfg.JWT.TTL)
	memberService := services.NewMemberService(memberRepo, visitRepo, tokenService, loc)
	facilityService := services.NewFacilityService(
		facilityRepo,
		usageRepo,
		reservationRepo,
		memberService,
		wsHub,
		cfg.Facility.MaxGroupSize,
		loc,
	)
	boardService := services.NewBoardService(boardRepo, blobs, cfg.Board.MaxImageSide)

	// Initialize handlers
	memberHandler := handlers.NewMemberHandler(memberService)
	facilityHandler := handlers.NewFacilityHandler(facilityService)
	boardHandler := handlers.NewBoardHandler(boardService, cfg.Board.MaxUploadBytes)
	wsHandler := handlers.NewWebSocketHandler(wsHub, facilityService)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      newRouter(cfg, tokenService, memberHandler, facilityHandler, boardHandler, wsHandler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
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

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Hijacked websocket connections are not closed by Shutdown
	wsHub.Close()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func newRouter(
	cfg *config.Config,
	tokens middleware.TokenVerifier,
	memberHandler *handlers.MemberHandler,
	facilityHandler *handlers.FacilityHandler,
	boardHandler *handlers.BoardHandler,
	wsHandler *handlers.WebSocketHandler,
) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORS.AllowedOrigins))

	adminOnly := middleware.AdminKey(cfg.Admin.APIKey)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"community center api"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Post("/sign-up", memberHandler.SignUp)
			r.Post("/log-in", memberHandler.LogIn)
			r.Post("/log-in/confirm", memberHandler.ConfirmLogIn)
			r.Get("/search", memberHandler.Search)
			r.With(middleware.AuthMiddleware(tokens)).Get("/me", memberHandler.Me)
		})

		r.Route("/facility", func(r chi.Router) {
			r.Post("/reserve", facilityHandler.Reserve)
			r.Post("/reserve/confirm", facilityHandler.ConfirmReserve)
			r.Post("/reserve/group", facilityHandler.ReserveGroup)
			r.Post("/reserve/group/confirm", facilityHandler.ConfirmGroup)
			r.Get("/reserve", facilityHandler.ListReservations)
			r.With(adminOnly).Delete("/reserve/{reservation_id}", facilityHandler.DeleteReservation)

			r.Get("/status", facilityHandler.ListStatuses)
			r.Get("/{facility_id}/status", facilityHandler.GetStatus)
			r.With(adminOnly).Put("/{facility_id}/status", facilityHandler.SetStatus)
		})

		r.Route("/board", func(r chi.Router) {
			r.Get("/", boardHandler.ListBoards)
			r.With(adminOnly).Post("/", boardHandler.CreateBoard)
			r.Get("/{board_id}", boardHandler.GetBoard)
			r.With(adminOnly).Patch("/{board_id}", boardHandler.UpdateBoard)
			r.With(adminOnly).Delete("/{board_id}", boardHandler.DeleteBoard)
		})

		// WebSocket route
		r.Get("/ws", wsHandler.HandleWebSocket)
	})

	return r
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
