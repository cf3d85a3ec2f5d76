package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paveldemidov/flightbook/config"
	"github.com/paveldemidov/flightbook/internal/bootstrap"
	"github.com/paveldemidov/flightbook/internal/cache"
	"github.com/paveldemidov/flightbook/internal/gateway/razorpay"
	"github.com/paveldemidov/flightbook/internal/kafka"
	"github.com/paveldemidov/flightbook/internal/logger"
	"github.com/paveldemidov/flightbook/internal/repository"
	"github.com/paveldemidov/flightbook/internal/service/auth"
	"github.com/paveldemidov/flightbook/internal/service/flights"
	"github.com/paveldemidov/flightbook/internal/service/payments"
	"go.uber.org/zap"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zl, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Catalog.FlightsCacheTTL)*time.Second)
	defer redisCache.Close()
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()
	gateway := razorpay.NewClient(cfg.Razorpay)

	userRepo := repository.NewUserRepository(pool)
	cityRepo := repository.NewCityRepository(pool)
	flightRepo := repository.NewFlightRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	ledgerRepo := repository.NewLedgerRepository(pool)
	txm := repository.NewTxManager(pool)

	flightService := flights.NewFlightService(flightRepo, redisCache, zl)
	authService := auth.NewAuthService(userRepo, bookingRepo, cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute)
	paymentService := payments.NewService(
		userRepo,
		flightRepo,
		bookingRepo,
		ledgerRepo,
		txm,
		gateway,
		producer,
		cfg.Kafka.PaymentEventsTopic,
		payments.Secrets{KeySecret: cfg.Razorpay.KeySecret, WebhookSecret: cfg.Razorpay.WebhookSecret},
		zl,
		payments.WithCache(redisCache),
		payments.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		payments.WithRecoveryPolicy(time.Duration(cfg.Worker.OrphanThresholdMinutes)*time.Minute, cfg.Worker.MaxRecoveryAttempts),
	)
	monitor := payments.NewMonitor(ledgerRepo, zl)

	refreshEvery := time.Duration(cfg.Worker.MonitorRefreshSeconds) * time.Second
	if refreshEvery <= 0 {
		refreshEvery = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(refreshEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := monitor.Refresh(ctx); err != nil {
					zl.Warn("monitor refresh failed", zap.Error(err))
				}
			}
		}
	}()

	handlers := bootstrap.Handlers{
		Auth:     authService,
		Flights:  flightService,
		Cities:   cityRepo,
		Payments: paymentService,
		Monitor:  monitor,
	}

	if err := bootstrap.Run(ctx, cfg, handlers, zl); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
