package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ohanaexperience/ohana-backend-sub001/internal/gateway"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/repository"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/service"
	"github.com/ohanaexperience/ohana-backend-sub001/internal/worker"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/config"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/database"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/kafka"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/logger"
	"github.com/ohanaexperience/ohana-backend-sub001/pkg/telemetry"
)

// Standalone hold expiry sweeper. Runs the same release path as the API
// process; deploy one instance when the API runs with the embedded worker
// disabled, or alongside it (releases are idempotent either way).
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if _, err := logger.Init(&logger.Config{
		Environment: cfg.App.Environment,
		Debug:       cfg.App.Debug,
		ServiceName: "hold-expiry-worker",
	}); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	appLog := logger.Get()
	appLog.Info("starting hold expiry worker process")

	ctx := context.Background()

	if _, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    "hold-expiry-worker",
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
		SampleRatio:    cfg.OTel.SampleRatio,
	}); err != nil {
		appLog.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(shutdownCtx)
	}()

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  5 * time.Second,
		MaxRetries:      3,
		RetryInterval:   time.Second,
		EnableTracing:   cfg.OTel.Enabled,
		ServiceName:     "hold-expiry-worker",
	})
	if err != nil {
		appLog.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	var publisher service.EventPublisher = service.NewNoOpEventPublisher()
	if cfg.Kafka.Enabled {
		producer, err := kafka.NewProducer(ctx, &kafka.Config{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID + "-hold-expiry",
		})
		if err != nil {
			appLog.Warn("kafka connection failed, expiry events will not be published", zap.Error(err))
		} else {
			defer producer.Close()
			publisher = service.NewKafkaEventPublisher(producer, cfg.Kafka.Topic)
		}
	}

	// The sweeper never touches the payment processor: expired holds carry
	// no payment intent. The mock gateway satisfies the dependency.
	svc := service.NewReservationService(&service.ReservationServiceConfig{
		TxManager:            db,
		Reservations:         repository.NewPostgresReservationRepository(db),
		TimeSlots:            repository.NewPostgresTimeSlotRepository(db),
		Payments:             repository.NewPostgresPaymentRepository(db),
		Events:               repository.NewPostgresEventRepository(db),
		Experiences:          repository.NewPostgresExperienceRepository(db),
		Gateway:              gateway.NewMockGateway(nil),
		Publisher:            publisher,
		HoldTTL:              cfg.Reservation.HoldTTL,
		CompletionEarlyGrace: cfg.Reservation.CompletionEarlyGrace,
	})

	w := worker.NewHoldExpiryWorker(svc, &worker.HoldExpiryWorkerConfig{
		SweepInterval: cfg.Reservation.ExpirySweepInterval,
		BatchSize:     cfg.Reservation.ExpirySweepBatchSize,
	})
	if err := w.Start(ctx); err != nil {
		appLog.Fatal("failed to start worker", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down hold expiry worker")
	w.Stop()
	appLog.Info("worker exited gracefully")
}
