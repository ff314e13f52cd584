package di

import (
	"github.com/ohanaexperience/ohana-backend-sub001/internal/gateway"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/handler"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/repository"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/service"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/worker"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/config"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/database"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/kafka"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/redis"
)

// Container holds all dependencies for the reservation service
type Container struct {
	// Infrastructure
	DB    *database.PostgresDB
	Redis *redis.Client
	Kafka *kafka.Producer

	// Repositories
	ReservationRepo repository.ReservationRepository
	TimeSlotRepo    repository.TimeSlotRepository
	PaymentRepo     repository.PaymentRepository
	EventRepo       repository.EventRepository
	ExperienceRepo  repository.ExperienceRepository

	// Gateways and publishers
	PaymentGateway gateway.PaymentGateway
	EventPublisher service.EventPublisher

	// Services
	ReservationService *service.ReservationService

	// Workers
	HoldExpiryWorker *worker.HoldExpiryWorker

	// Handlers
	HealthHandler      *handler.HealthHandler
	ReservationHandler *handler.ReservationHandler
	HostHandler        *handler.HostHandler
	WebhookHandler     *handler.WebhookHandler
}

// ContainerConfig contains the externally constructed dependencies
type ContainerConfig struct {
	Config         *config.Config
	DB             *database.PostgresDB
	Redis          *redis.Client
	Kafka          *kafka.Producer
	PaymentGateway gateway.PaymentGateway
}

// NewContainer wires repositories, services, workers and handlers
func NewContainer(cfg *ContainerConfig) *Container {
	c := &Container{
		DB:             cfg.DB,
		Redis:          cfg.Redis,
		Kafka:          cfg.Kafka,
		PaymentGateway: cfg.PaymentGateway,
	}

	c.ReservationRepo = repository.NewPostgresReservationRepository(c.DB)
	c.TimeSlotRepo = repository.NewPostgresTimeSlotRepository(c.DB)
	c.PaymentRepo = repository.NewPostgresPaymentRepository(c.DB)
	c.EventRepo = repository.NewPostgresEventRepository(c.DB)
	c.ExperienceRepo = repository.NewPostgresExperienceRepository(c.DB)

	if c.Kafka != nil && cfg.Config.Kafka.Enabled {
		c.EventPublisher = service.NewKafkaEventPublisher(c.Kafka, cfg.Config.Kafka.Topic)
	} else {
		c.EventPublisher = service.NewNoOpEventPublisher()
	}

	c.ReservationService = service.NewReservationService(&service.ReservationServiceConfig{
		TxManager:            c.DB,
		Reservations:         c.ReservationRepo,
		TimeSlots:            c.TimeSlotRepo,
		Payments:             c.PaymentRepo,
		Events:               c.EventRepo,
		Experiences:          c.ExperienceRepo,
		Gateway:              c.PaymentGateway,
		Publisher:            c.EventPublisher,
		HoldTTL:              cfg.Config.Reservation.HoldTTL,
		CompletionEarlyGrace: cfg.Config.Reservation.CompletionEarlyGrace,
	})

	c.HoldExpiryWorker = worker.NewHoldExpiryWorker(c.ReservationService, &worker.HoldExpiryWorkerConfig{
		SweepInterval: cfg.Config.Reservation.ExpirySweepInterval,
		BatchSize:     cfg.Config.Reservation.ExpirySweepBatchSize,
	})

	c.HealthHandler = handler.NewHealthHandler(c.DB, c.Redis)
	c.ReservationHandler = handler.NewReservationHandler(c.ReservationService)
	c.HostHandler = handler.NewHostHandler(c.ReservationService)
	c.WebhookHandler = handler.NewWebhookHandler(c.ReservationService, cfg.Config.Stripe.WebhookSecret)

	return c
}
