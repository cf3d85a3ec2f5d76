package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paveldemidov/flightbook/config"
	"github.com/paveldemidov/flightbook/internal/cache"
	"github.com/paveldemidov/flightbook/internal/email"
	"github.com/paveldemidov/flightbook/internal/gateway/razorpay"
	"github.com/paveldemidov/flightbook/internal/kafka"
	"github.com/paveldemidov/flightbook/internal/logger"
	"github.com/paveldemidov/flightbook/internal/repository"
	"github.com/paveldemidov/flightbook/internal/service/payments"
	kafkaGo "github.com/segmentio/kafka-go"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	flightRepo := repository.NewFlightRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)
	ledgerRepo := repository.NewLedgerRepository(pool)
	txm := repository.NewTxManager(pool)

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

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	emailSender := email.NewSender()

	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event kafka.PaymentEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				zl.Warn("decode payment event", zap.Error(err))
				return nil
			}
			return emailSender.Send(ctx, event)
		}); err != nil {
			zl.Warn("consumer stopped", zap.Error(err))
		}
	}()

	sweepTicker := time.NewTicker(minutes(cfg.Worker.RecoverySweepMinutes, 1))
	defer sweepTicker.Stop()
	refreshTicker := time.NewTicker(seconds(cfg.Worker.MonitorRefreshSeconds, 30))
	defer refreshTicker.Stop()
	metricsTicker := time.NewTicker(minutes(cfg.Worker.MetricsLogMinutes, 5))
	defer metricsTicker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweepTicker.C:
			recovered, err := paymentService.RecoverOrphans(ctx)
			if err != nil {
				zl.Error("orphan recovery sweep failed", zap.Error(err))
				continue
			}
			if recovered > 0 {
				zl.Info("orphan recovery sweep finished", zap.Int("recovered", recovered))
			}
		case <-refreshTicker.C:
			if err := monitor.Refresh(ctx); err != nil {
				zl.Warn("monitor refresh failed", zap.Error(err))
			}
		case <-metricsTicker.C:
			monitor.LogMetrics()
			for _, alert := range monitor.Alerts() {
				zl.Warn("payment reliability alert",
					zap.String("severity", alert.Severity),
					zap.String("message", alert.Message),
				)
			}
		case s := <-sig:
			zl.Info("received signal, shutting down", zap.String("signal", s.String()))
			return
		}
	}
}

func minutes(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Minute
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}
