package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paveldemidov/flightbook/internal/bookingref"
	"github.com/paveldemidov/flightbook/internal/service/payments"
)

type PaymentHandler struct {
	service payments.PaymentUseCase
	monitor *payments.Monitor
}

func NewPaymentHandler(service payments.PaymentUseCase, monitor *payments.Monitor) *PaymentHandler {
	return &PaymentHandler{service: service, monitor: monitor}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.GET("/razorpay-key", h.gatewayKey)
	router.POST("/create-order", h.createOrder)
	router.POST("/verify-payment", h.verifyPayment)
	router.POST("/verify-payment-status", h.paymentStatus)
	router.POST("/razorpay-webhook", h.webhook)
	router.GET("/api/payment-stats", h.stats)
	router.GET("/api/payment-health", h.health)
	router.POST("/api/payment-recovery/manual", h.manualRecovery)
}

func (h *PaymentHandler) gatewayKey(c *gin.Context) {
	keyID := h.service.KeyID()
	if keyID == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "CONFIGURATION_ERROR", "description": "payment gateway key not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key_id": keyID})
}

type createOrderRequest struct {
	Amount int64 `json:"amount"`
}

func (h *PaymentHandler) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST_ERROR", "description": err.Error()})
		return
	}

	order, err := h.service.CreateOrder(c.Request.Context(), req.Amount)
	if err != nil {
		if errors.Is(err, payments.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "BAD_REQUEST_ERROR", "description": "invalid amount provided, amount must be a positive number"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "SERVER_ERROR", "description": "failed to create payment order"})
		return
	}

	c.JSON(http.StatusCreated, order)
}

type verifyPaymentRequest struct {
	OrderID    string `json:"razorpay_order_id" binding:"required"`
	PaymentID  string `json:"razorpay_payment_id" binding:"required"`
	Signature  string `json:"razorpay_signature" binding:"required"`
	FlightID   int64  `json:"flight_id" binding:"required"`
	Passengers int    `json:"passengers" binding:"required,min=1"`
	UserID     int64  `json:"user_id" binding:"required"`
}

func (h *PaymentHandler) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":      "failure",
			"error":       "BAD_REQUEST_ERROR",
			"description": "missing required payment verification parameters",
		})
		return
	}

	result, err := h.service.VerifyPayment(c.Request.Context(), payments.VerifyPaymentInput{
		OrderID:    req.OrderID,
		PaymentID:  req.PaymentID,
		Signature:  req.Signature,
		UserID:     req.UserID,
		FlightID:   req.FlightID,
		Passengers: req.Passengers,
	})
	if err != nil {
		h.renderVerifyError(c, err)
		return
	}

	if result.Idempotent {
		c.JSON(http.StatusOK, gin.H{
			"status":      "success",
			"message":     "booking already confirmed (idempotent request)",
			"booking_id":  result.BookingRef,
			"payment_id":  result.PaymentID,
			"idempotent":  true,
			"booking_ref": bookingref.Format(result.BookingRef),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":          "success",
		"message":         "payment verified and booking confirmed",
		"booking_id":      result.BookingRef,
		"payment_id":      result.PaymentID,
		"seats_remaining": result.SeatsRemaining,
		"booking_ref":     bookingref.Format(result.BookingRef),
	})
}

func (h *PaymentHandler) renderVerifyError(c *gin.Context, err error) {
	var seatsErr *payments.SeatsUnavailableError
	switch {
	case errors.Is(err, payments.ErrSignatureInvalid):
		c.JSON(http.StatusBadRequest, gin.H{
			"status":      "failure",
			"error":       "SIGNATURE_VERIFICATION_FAILED",
			"description": "invalid payment signature",
		})
	case errors.Is(err, payments.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"status":      "failure",
			"error":       "NOT_FOUND",
			"description": "user not found",
		})
	case errors.Is(err, payments.ErrFlightNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"status":      "failure",
			"error":       "NOT_FOUND",
			"description": "flight not found",
		})
	case errors.As(err, &seatsErr):
		c.JSON(http.StatusConflict, gin.H{
			"status":      "failure",
			"error":       "SEATS_UNAVAILABLE",
			"description": seatsErr.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":      "failure",
			"error":       "SERVER_ERROR",
			"description": "payment verification failed due to server error",
		})
	}
}

type paymentStatusRequest struct {
	PaymentID string `json:"payment_id" binding:"required"`
}

func (h *PaymentHandler) paymentStatus(c *gin.Context) {
	var req paymentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payment id is required"})
		return
	}

	status, err := h.service.PaymentStatus(c.Request.Context(), req.PaymentID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to verify payment status"})
		return
	}

	if status == "captured" {
		c.JSON(http.StatusOK, gin.H{"message": "payment successful", "status": status})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "payment not captured", "status": status})
}

// webhook acks any authenticated payload; business rejections still return
// 2xx where possible so the gateway stops redelivering, with the ledger and
// sweeper picking up the pieces.
func (h *PaymentHandler) webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	result, err := h.service.HandleWebhook(c.Request.Context(), body, c.GetHeader("X-Razorpay-Signature"))
	if err != nil {
		h.renderWebhookError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "status": result.Status})
}

func (h *PaymentHandler) renderWebhookError(c *gin.Context, err error) {
	var seatsErr *payments.SeatsUnavailableError
	switch {
	case errors.Is(err, payments.ErrSignatureInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
	case errors.Is(err, payments.ErrAttemptNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "payment log not found"})
	case errors.Is(err, payments.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, payments.ErrFlightNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "flight not found"})
	case errors.As(err, &seatsErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no seats available"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook processing failed"})
	}
}

func (h *PaymentHandler) stats(c *gin.Context) {
	dbStats, err := h.service.LedgerStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch payment statistics"})
		return
	}

	metrics := h.monitor.Metrics()
	c.JSON(http.StatusOK, gin.H{
		"realtime": metrics,
		"database": dbStats,
		"reliability": gin.H{
			"meets_threshold": h.monitor.MeetsThreshold(),
			"target_rate":     payments.ReliabilityThreshold,
			"current_rate":    metrics.SuccessRate,
		},
	})
}

func (h *PaymentHandler) health(c *gin.Context) {
	metrics := h.monitor.Metrics()
	status := "healthy"
	if !h.monitor.MeetsThreshold() {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"reliability":  metrics.Reliability,
		"success_rate": metrics.SuccessRate,
		"alerts":       h.monitor.Alerts(),
	})
}

func (h *PaymentHandler) manualRecovery(c *gin.Context) {
	recovered, err := h.service.RecoverOrphans(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment recovery failed"})
		return
	}

	stats, err := h.service.LedgerStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "payment recovery failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "payment recovery completed",
		"recovered": recovered,
		"stats":     stats,
	})
}
