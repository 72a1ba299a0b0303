package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/kyungseok/reservation-core/common/config"
	"github.com/kyungseok/reservation-core/common/idempotency"
	"github.com/kyungseok/reservation-core/common/invrpc"
	"github.com/kyungseok/reservation-core/common/logger"
	"github.com/kyungseok/reservation-core/common/messaging"
	"github.com/kyungseok/reservation-core/services/inventory/internal/chaos"
	"github.com/kyungseok/reservation-core/services/inventory/internal/handler"
	"github.com/kyungseok/reservation-core/services/inventory/internal/repository"
	"github.com/kyungseok/reservation-core/services/inventory/internal/service"
	"github.com/kyungseok/reservation-core/services/inventory/internal/worker"

	"database/sql"
)

func main() {
	log, _ := logger.NewLogger("inventory-custodian", true)
	defer log.Sync()

	cfg := config.LoadInventoryCustodian()

	db, err := sql.Open("postgres", cfg.DB.DSN())
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(30 * time.Second)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		log.Fatal("failed to ping database", zap.Error(err))
	}
	log.Info("connected to inventory database")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	idemStore := idempotency.NewRedisStore(redisClient, "inventory-custodian")

	publisher, err := messaging.NewKafkaPublisher(cfg.KafkaBrokers, log)
	if err != nil {
		log.Fatal("failed to create kafka publisher", zap.Error(err))
	}
	defer publisher.Close()

	repo := repository.NewInventoryRepository(db)
	chaosInjector := chaos.NewInjector(cfg.Chaos, log)
	inventoryService := service.NewInventoryService(repo, chaosInjector, log)

	verifyOrderHandler := handler.NewVerifyOrderHandler(inventoryService, db, publisher, log)
	verifyConsumer, err := messaging.NewQueueConsumer(cfg.KafkaBrokers, messaging.InventoryVerifyGroup, log)
	if err != nil {
		log.Fatal("failed to create verify-orders consumer", zap.Error(err))
	}
	defer verifyConsumer.Close()

	dedupedHandler := func(ctx context.Context, msg *messaging.Message) error {
		msgKey := fmt.Sprintf("%s-%d-%d", msg.Topic, msg.Partition, msg.Offset)
		if processed, _ := idemStore.IsProcessed(ctx, msgKey); processed {
			return nil
		}
		if err := verifyOrderHandler.Handle(ctx, msg); err != nil {
			return err
		}
		_, _ = idemStore.Reserve(ctx, msgKey, 24*time.Hour)
		return nil
	}

	if err := verifyConsumer.Subscribe([]string{messaging.QueueVerifyOrders}, dedupedHandler); err != nil {
		log.Fatal("failed to subscribe to verify-orders", zap.Error(err))
	}
	log.Info("subscribed to verify-orders queue")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outboxWorker := worker.NewOutboxWorker(repo, publisher, log)
	go outboxWorker.Run(ctx)

	grpcServer := grpc.NewServer()
	invrpc.RegisterInventoryServiceServer(grpcServer, inventoryService)

	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			log.Fatal("failed to listen on grpc port", zap.Error(err))
		}
		log.Info("grpc server listening", zap.String("port", cfg.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal("grpc server failed", zap.Error(err))
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	httpServer := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux}

	go func() {
		log.Info("http server starting", zap.String("port", cfg.HTTPPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down inventory custodian...")
	cancel()

	grpcServer.GracefulStop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server forced to shutdown", zap.Error(err))
	}

	log.Info("inventory custodian stopped")
}
