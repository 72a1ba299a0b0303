package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kyungseok/reservation-core/common/config"
	"github.com/kyungseok/reservation-core/common/idempotency"
	"github.com/kyungseok/reservation-core/common/logger"
	"github.com/kyungseok/reservation-core/common/messaging"
	"github.com/kyungseok/reservation-core/services/order/internal/client"
	"github.com/kyungseok/reservation-core/services/order/internal/handler"
	"github.com/kyungseok/reservation-core/services/order/internal/repository"
	"github.com/kyungseok/reservation-core/services/order/internal/service"
	"github.com/kyungseok/reservation-core/services/order/internal/worker"

	"database/sql"
)

func main() {
	log, _ := logger.NewLogger("order-coordinator", true)
	defer log.Sync()

	cfg := config.LoadOrderCoordinator()

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
	log.Info("connected to order database")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	idemStore := idempotency.NewRedisStore(redisClient, "order-coordinator")

	publisher, err := messaging.NewKafkaPublisher(cfg.KafkaBrokers, log)
	if err != nil {
		log.Fatal("failed to create kafka publisher", zap.Error(err))
	}
	defer publisher.Close()

	inventoryClient, err := client.NewInventoryClient(cfg.InventoryServiceHost, log)
	if err != nil {
		log.Fatal("failed to dial inventory service", zap.Error(err))
	}
	defer inventoryClient.Close()

	catalogClient := client.NewCatalogClient(cfg.CatalogServiceURL)

	repo := repository.NewOrderRepository(db)
	orderService := service.NewOrderService(repo, inventoryClient, publisher, log)

	eventHandler := handler.NewEventHandler(orderService, idemStore, log)
	consumer, err := messaging.NewTopicSubscriber(cfg.KafkaBrokers, messaging.OrderServiceSubscription, log)
	if err != nil {
		log.Fatal("failed to create inventory-events consumer", zap.Error(err))
	}
	defer consumer.Close()

	if err := consumer.Subscribe([]string{messaging.TopicInventoryEvents}, eventHandler.HandleMessage); err != nil {
		log.Fatal("failed to subscribe to inventory-events", zap.Error(err))
	}
	log.Info("subscribed to inventory-events", zap.String("subscription", messaging.OrderServiceSubscription))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	outboxWorker := worker.NewOutboxWorker(repo, publisher, log)
	go outboxWorker.Run(ctx)

	httpHandler := handler.NewHTTPHandler(orderService, catalogClient, log)
	mux := http.NewServeMux()
	mux.HandleFunc("/health", httpHandler.HealthCheck)
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			httpHandler.ListOrders(w, r)
			return
		}
		httpHandler.CreateOrder(w, r)
	})
	mux.HandleFunc("/orders/", httpHandler.GetOrder)
	mux.HandleFunc("/products", httpHandler.Products)
	mux.HandleFunc("/products/", httpHandler.ProductStock)

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

	log.Info("shutting down order coordinator...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server forced to shutdown", zap.Error(err))
	}

	log.Info("order coordinator stopped")
}
