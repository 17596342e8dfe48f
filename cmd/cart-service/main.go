package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/fjod/storefront-cart/internal/cache"
	"github.com/fjod/storefront-cart/internal/config"
	"github.com/fjod/storefront-cart/internal/events"
	carthttp "github.com/fjod/storefront-cart/internal/http"
	"github.com/fjod/storefront-cart/internal/logger"
	"github.com/fjod/storefront-cart/internal/repository"
	"github.com/fjod/storefront-cart/internal/service"
	"github.com/fjod/storefront-cart/internal/sweeper"
)

func main() {
	// .env is optional; real deployments pass the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.ServiceName, cfg.LogLevel)
	slog.SetDefault(log)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if err := run(cfg, log); err != nil {
		log.Error("cart service stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("cart service stopped")
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := repository.Connect(startCtx, &repository.Credentials{
		Driver:     cfg.DBDriver,
		Host:       cfg.DBHost,
		Port:       cfg.DBPort,
		User:       cfg.DBUser,
		Password:   cfg.DBPassword,
		DBName:     cfg.DBName,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to database", "driver", cfg.DBDriver)

	if err := repository.RunMigrations(db); err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(startCtx).Err(); err != nil {
		// carts are still served from the database while Redis is down
		log.Warn("redis ping failed", "addr", cfg.RedisAddr, "error", err)
	}

	cartCache := cache.NewBreakerCache(
		cache.NewRedisCache(redisClient, cfg.CartCacheTTL),
		cache.BreakerSettings{Name: "cart-cache", ConsecutiveFails: 5, OpenTimeout: 30 * time.Second},
		log,
	)

	carts := repository.NewSQLRepository(db, log)
	products := repository.NewCatalogRepository(db, log)

	var publisher service.EventPublisher
	var kafkaPublisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.CartEventsTopic, cfg.ServiceName, cfg.EventBuffer, log)
		publisher = kafkaPublisher
	} else {
		log.Warn("KAFKA_BROKERS not set, cart events and checkout consumption disabled")
	}

	cartService := service.NewCartService(carts, products, cartCache, publisher, log)

	var wg sync.WaitGroup
	var consumer *events.CheckoutConsumer
	if len(cfg.KafkaBrokers) > 0 {
		consumer = events.NewCheckoutConsumer(cfg.KafkaBrokers, cfg.CheckoutTopic, cartService, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			consumer.Run(ctx)
		}()
	}

	sw := sweeper.New(carts, cartCache, cfg.SessionCartTTL, cfg.SweepInterval, log)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sw.Run(ctx)
	}()

	cartHandler := carthttp.NewCartHandler(cartService, cfg.RequestTimeout, log)
	router := carthttp.NewRouter(cartHandler, carthttp.RouterConfig{
		JWTSecret:      []byte(cfg.JWTSecret),
		RequestTimeout: cfg.RequestTimeout,
		MaxBodyBytes:   1 << 20, // 1MB
		AllowedOrigins: cfg.AllowedOrigins,
	}, log)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, cfg.ServiceName),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("cart service listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down server...")
	case err := <-serverErr:
		stop()
		wg.Wait()
		return err
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	if consumer != nil {
		consumer.Close()
	}
	wg.Wait()

	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			log.Error("failed to flush cart events", "error", err)
		}
	}
	return nil
}
