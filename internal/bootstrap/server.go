package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paveldemidov/flightbook/api"
	"github.com/paveldemidov/flightbook/config"
	"github.com/paveldemidov/flightbook/internal/repository"
	"github.com/paveldemidov/flightbook/internal/service/auth"
	"github.com/paveldemidov/flightbook/internal/service/flights"
	"github.com/paveldemidov/flightbook/internal/service/payments"
	"go.uber.org/zap"
)

type Handlers struct {
	Auth     auth.AuthUseCase
	Flights  flights.FlightUseCase
	Cities   repository.CityRepository
	Payments *payments.Service
	Monitor  *payments.Monitor
}

// Run assembles the router and blocks until the context is canceled or the
// server fails.
func Run(ctx context.Context, cfg *config.Config, h Handlers, log *zap.Logger) error {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := api.NewAuthHandler(h.Auth)
	root := engine.Group("/")
	authHandler.Register(root)
	api.NewCityHandler(h.Cities).Register(root, authHandler.Authenticated(), authHandler.AdminOnly())
	api.NewFlightHandler(h.Flights).Register(root, authHandler.Authenticated(), authHandler.AdminOnly())
	api.NewPaymentHandler(h.Payments, h.Monitor).Register(root)

	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
