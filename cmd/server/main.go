package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"order-tracking-service/internal/backend"
	"order-tracking-service/internal/config"
	"order-tracking-service/internal/controller"
	"order-tracking-service/internal/logger"
	"order-tracking-service/internal/rabbit"
	"order-tracking-service/internal/repository"
	"order-tracking-service/internal/service"
	"order-tracking-service/internal/session"
)

func main() {
	cfg := config.Load()

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB status mirror
	connectCtx, connectCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connectCancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		zl.Fatal("mongo connect failed", zap.Error(err))
	}
	repo := repository.NewMongoOrderRepository(client.Database(cfg.MongoDBName))
	if err := repo.EnsureIndexes(connectCtx); err != nil {
		zl.Fatal("mongo indexes failed", zap.Error(err))
	}

	// sessions: shared in Redis when configured, else in process
	var store session.Store
	if cfg.RedisAddr != "" {
		rs := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := rs.Ping(connectCtx); err != nil {
			zl.Fatal("redis ping failed", zap.Error(err))
		}
		store = rs
	} else {
		ms := session.NewMemoryStore()
		go ms.Run(ctx, cfg.SessionSweepInterval, zl)
		store = ms
	}

	// services
	orderAPI := backend.NewClient(cfg.OrderAPIURL, cfg.HTTPTimeout)
	hub := service.NewHub()
	orderService := service.NewOrderService(orderAPI, repo, hub, cfg.ChangeWindow, zl)
	authService := service.NewAuthService(cfg.AuthURL, store, cfg.SessionTTL, zl)

	ctrl := controller.NewOrderController(orderService, authService, zl)
	router := controller.NewRouter(ctrl, authService, zl)

	// RabbitMQ status events
	conn, err := amqp091.Dial(cfg.RabbitURL)
	if err != nil {
		zl.Fatal("rabbitmq connect failed", zap.Error(err))
	}
	ch, err := conn.Channel()
	if err != nil {
		zl.Fatal("rabbitmq channel failed", zap.Error(err))
	}
	if err := rabbit.SetupConsumers(ch, orderService, zl); err != nil {
		zl.Fatal("rabbitmq consumer setup failed", zap.Error(err))
	}

	srv := newHTTPServer(ctx, ":"+cfg.Port, router)

	go func() {
		zl.Info("order tracking service listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	zl.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("http shutdown failed", zap.Error(err))
	}
	if err := ch.Close(); err != nil {
		zl.Error("rabbitmq channel close failed", zap.Error(err))
	}
	if err := conn.Close(); err != nil {
		zl.Error("rabbitmq close failed", zap.Error(err))
	}
	if err := store.Close(); err != nil {
		zl.Error("session store close failed", zap.Error(err))
	}
	if err := client.Disconnect(shutdownCtx); err != nil {
		zl.Error("mongo disconnect failed", zap.Error(err))
	}
}

// newHTTPServer derives every request context from ctx, so cancelling it
// ends open event streams before Shutdown waits on them.
func newHTTPServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}
