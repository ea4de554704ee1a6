package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"futsal/internal/cache"
	"futsal/internal/config"
	"futsal/internal/database"
	"futsal/internal/external"
	"futsal/internal/handlers"
	"futsal/internal/logger"
	"futsal/internal/messaging"
	"futsal/internal/middleware"
	"futsal/internal/repository"
	"futsal/internal/search"
	"futsal/internal/service"
	"futsal/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	search   *search.ElasticsearchClient
	services *service.Services
	repos    *repository.Repositories
}

// NewServer подключается к хранилищам и собирает сервисы. Valkey и Elasticsearch необязательны.
func NewServer(cfg *config.Config) (*Server, error) {
	gin.SetMode(cfg.GinMode)

	if err := validation.RegisterBindings(); err != nil {
		return nil, err
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	s := &Server{
		config: cfg,
		db:     db,
		nats:   natsClient,
		repos:  repository.NewRepositories(db),
	}

	deps := service.Dependencies{
		Tx:        database.NewTxManager(db, cfg.Database.TxRetryAttempts),
		Publisher: natsClient,
		Gateway:   external.NewGatewayClient(cfg.Gateway),

		Venues:   s.repos.Venues,
		Grounds:  s.repos.Grounds,
		Slots:    s.repos.Slots,
		Bookings: s.repos.Bookings,
		Loyalty:  s.repos.Loyalty,
		Intents:  s.repos.Intents,
		Users:    s.repos.Users,

		LoyaltyThreshold: cfg.Loyalty.Threshold,
	}

	if valkeyClient, err := cache.NewValkeyClient(cfg.Valkey); err != nil {
		logger.Get().Warn("Valkey unavailable, running without cache", "error", err)
	} else {
		s.valkey = valkeyClient
		deps.Cache = valkeyClient
	}

	if cfg.Elasticsearch.Enabled() {
		esClient, err := search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			logger.Get().Warn("Elasticsearch unavailable, venue search uses the database", "error", err)
		} else {
			s.search = esClient
			deps.Index = esClient
		}
	}

	s.services = service.NewServices(deps)

	h := handlers.NewHandlers(s.services.Reservations, s.services.Bookings, s.services.Loyalty, s.services.Venues)

	var authCache middleware.AuthCache
	if s.valkey != nil {
		authCache = s.valkey
	}
	s.router = NewRouter(h, s.repos.Users, authCache, s.healthCheck)

	return s, nil
}

// NewRouter настраивает все API роуты
func NewRouter(h *handlers.Handlers, users middleware.UserLookup, authCache middleware.AuthCache, health gin.HandlerFunc) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Metrics())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())

	api := router.Group("/api")

	// Возврат со страницы оплаты приходит без Basic Auth
	api.GET("/payments/callback", h.PaymentCallback)

	authed := api.Group("")
	authed.Use(middleware.BasicAuth(users, authCache))
	{
		authed.GET("/grounds/:id/slots", h.ListGroundSlots)

		venues := authed.Group("/venues")
		{
			venues.GET("", h.SearchVenues)
			venues.GET("/:id/slots", h.ListVenueSlots)
		}

		authed.GET("/loyalty", h.GetLoyalty)

		bookings := authed.Group("/bookings")
		{
			bookings.GET("", h.ListBookings)
			bookings.POST("", h.CreateBooking)
			bookings.POST("/free", h.CreateFreeBooking)
			bookings.POST("/initiatePayment", h.InitiatePayment)
			bookings.PATCH("/:id/cancel", h.CancelBooking)
			bookings.PATCH("/:id/complete", h.CompleteBooking)
		}
	}

	if health != nil {
		router.GET("/health", health)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth := s.db.HealthCheck(ctx)
	s.db.ValidateConnectionPool()
	response := gin.H{
		"status":   "ok",
		"service":  "futsal-api",
		"database": dbHealth,
	}

	if s.valkey != nil {
		if err := s.valkey.Ping(ctx); err != nil {
			response["cache"] = "unhealthy: " + err.Error()
		} else {
			response["cache"] = "healthy"
		}
	}
	if s.search != nil {
		if err := s.search.HealthCheck(ctx); err != nil {
			response["search"] = "unhealthy: " + err.Error()
		} else {
			response["search"] = "healthy"
		}
	}

	if dbHealth.Status != "healthy" {
		response["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// GetRouter возвращает роутер для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Services возвращает собранные сервисы
func (s *Server) Services() *service.Services {
	return s.services
}

// Cleanup закрывает соединения
func (s *Server) Cleanup() error {
	log := logger.Get()

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			log.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			log.Error("Error closing Valkey connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
