package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pianote/internal/config"
	"pianote/internal/database"
	"pianote/internal/events"
	custommiddleware "pianote/internal/middleware"
	"pianote/internal/repository"
	"pianote/internal/service"
	"pianote/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	db     database.Service
	redis  *redis.Client
}

// NewServer wires repositories, services and handlers onto one router
func NewServer(cfg *config.Config, logger *zap.Logger, db database.Service, redisClient *redis.Client) (*Server, error) {
	location, err := time.LoadLocation(cfg.Auction.DisplayTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid display timezone %q: %w", cfg.Auction.DisplayTimezone, err)
	}

	router := chi.NewRouter()

	router.Use(custommiddleware.DefaultMiddlewareStack()...)
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.IsDevelopment()))

	router.Get("/health", healthHandler(db, redisClient))

	// Repositories
	sqlDB := db.DB()
	userRepo := repository.NewUserRepository(sqlDB)
	refreshTokenRepo := repository.NewRefreshTokenRepository(sqlDB)
	auctionRepo := repository.NewAuctionRepository(sqlDB)
	bidRepo := repository.NewBidRepository(sqlDB)
	noteRepo := repository.NewNoteRepository(sqlDB)
	transactor := repository.NewTransactor(sqlDB)

	publisher := events.NewRedisPublisher(redisClient, cfg.Auction.EventChannelPrefix, logger)

	// Services
	userService := service.NewUserService(userRepo, refreshTokenRepo, cfg.JWT.Secret, service.TokenTTL{
		Access:  time.Duration(cfg.JWT.AccessExpiry) * time.Minute,
		Refresh: time.Duration(cfg.JWT.RefreshExpiry) * 24 * time.Hour,
	})
	auctionService := service.NewAuctionService(auctionRepo, bidRepo, publisher, cfg.Auction.DefaultDurationHours, logger)
	biddingService := service.NewBiddingService(auctionRepo, bidRepo, userRepo, transactor, publisher, location, logger)
	noteService := service.NewNoteService(noteRepo, userRepo, logger)

	// Handlers
	userHandler := transport.NewUserHandler(userService, logger)
	auctionHandler := transport.NewAuctionHandler(auctionService, biddingService, logger)
	noteHandler := transport.NewNoteHandler(noteService, logger)

	authMiddleware := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	optionalAuthMiddleware := custommiddleware.OptionalAuthMiddleware(cfg.JWT.Secret, logger)
	bidLimiter := custommiddleware.RateLimitMiddleware(redisClient, custommiddleware.RateLimitConfig{
		RequestsPerWindow: cfg.RateLimit.BidsPerWindow,
		Window:            cfg.RateLimit.Window,
		KeyPrefix:         "bid_rate",
	}, logger)

	userHandler.RegisterRoutes(router, authMiddleware)
	auctionHandler.RegisterRoutes(router, authMiddleware, optionalAuthMiddleware, bidLimiter)
	noteHandler.RegisterRoutes(router, authMiddleware)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		db:     db,
		redis:  redisClient,
	}

	return server, nil
}

func healthHandler(db database.Service, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbHealth := db.Health()

		redisStatus := "up"
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisStatus = "down"
		}

		status, code := "ok", http.StatusOK
		if dbHealth["status"] != "up" {
			status, code = "unavailable", http.StatusServiceUnavailable
		}

		custommiddleware.RespondWithJSON(w, code, map[string]interface{}{
			"status":   status,
			"database": dbHealth,
			"redis":    redisStatus,
		})
	}
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("Failed to close redis client", zap.Error(err))
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Error("Failed to close database connection", zap.Error(err))
		}
	}

	s.logger.Sync()
	return nil
}
