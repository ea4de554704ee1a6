package consumers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/stan.go"

	"futsal/internal/config"
	"futsal/internal/database"
	"futsal/internal/external"
	"futsal/internal/messaging"
	"futsal/internal/repository"
	"futsal/internal/service"
)

const queueGroup = "futsal-consumers"

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	repos    *repository.Repositories
	services *service.Services
	handlers *Handlers
	subs     []stan.Subscription
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	repos := repository.NewRepositories(db)

	// The sweep reconciles intents with the gateway, so it needs the full reservation stack
	services := service.NewServices(service.Dependencies{
		Tx:        database.NewTxManager(db, cfg.Database.TxRetryAttempts),
		Publisher: natsClient,
		Gateway:   external.NewGatewayClient(cfg.Gateway),

		Venues:   repos.Venues,
		Grounds:  repos.Grounds,
		Slots:    repos.Slots,
		Bookings: repos.Bookings,
		Loyalty:  repos.Loyalty,
		Intents:  repos.Intents,
		Users:    repos.Users,

		LoyaltyThreshold: cfg.Loyalty.Threshold,
	})

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		repos:    repos,
		services: services,
		handlers: NewHandlers(repos.Users),
	}, nil
}

// Reservations exposes the orchestrator for background jobs
func (cs *ConsumerService) Reservations() *service.ReservationService {
	return cs.services.Reservations
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	for subject, fn := range cs.handlers.Subjects() {
		sub, err := cs.nats.SubscribeQueue(subject, queueGroup, cs.handlers.Wrap(subject, fn))
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		cs.subs = append(cs.subs, sub)
	}

	slog.Info("All consumers started successfully", "subjects", len(cs.subs))
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	for _, sub := range cs.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Error closing subscription", "error", err)
		}
	}

	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}

	return nil
}
