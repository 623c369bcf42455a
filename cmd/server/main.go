package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventory-service/config"
	"inventory-service/internal/api"
	"inventory-service/internal/broker"
	"inventory-service/internal/service"
	"inventory-service/internal/store"
	"inventory-service/internal/util"
	"inventory-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting inventory service")

	tp, err := util.InitTracer("inventory-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	ledgerStore, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize ledger store: %v", err)
	}
	defer ledgerStore.Close()
	log.Printf("Ledger store initialized: backend=%s", cfg.Storage.Backend)

	var events service.EventPublisher = service.NopPublisher{}
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicStock)
		defer producer.Close()
		events = broker.NewEventPublisher(producer)
		log.Println("Kafka producer initialized")
	}

	opts := service.Options{
		DefaultTTL:       time.Duration(cfg.Business.ReservationTTLMinutes) * time.Minute,
		StorageTimeout:   time.Duration(cfg.Business.StorageTimeoutMillis) * time.Millisecond,
		MaxUpdateRetries: cfg.Business.MaxUpdateRetries,
		SweepBatchSize:   cfg.Business.SweepBatchSize,
	}

	movementLog := service.NewMovementLog(ledgerStore)
	inventoryService := service.NewInventoryService(ledgerStore, movementLog, events, opts)
	reservationService := service.NewReservationService(ledgerStore, inventoryService, movementLog, events, opts)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	reclaimWorker := worker.NewReclaimWorker(reservationService,
		time.Duration(cfg.Business.ReclaimIntervalSeconds)*time.Second)
	reclaimWorker.Start(workerCtx)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(inventoryService, reservationService, movementLog)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Let an in-flight sweep finish its current cancel before exiting.
	reclaimWorker.Stop()
	workerCancel()

	log.Println("Server exited")
}

func newStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		pg, err := store.NewPostgresStore(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		return pg, nil
	case "redis":
		return store.NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	case "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}
