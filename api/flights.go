package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paveldemidov/flightbook/internal/domain"
	"github.com/paveldemidov/flightbook/internal/repository"
	"github.com/paveldemidov/flightbook/internal/service/flights"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(router *gin.RouterGroup, authn, admin gin.HandlerFunc) {
	router.GET("/flights", h.list)
	router.GET("/flights/:id", h.getByID)
	router.POST("/flights/search", h.search)
	router.POST("/flights", authn, admin, h.create)
}

func (h *FlightHandler) list(c *gin.Context) {
	list, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch flights"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flights": list})
}

func (h *FlightHandler) getByID(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flight id"})
		return
	}

	flight, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "flight not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch flight"})
		return
	}
	c.JSON(http.StatusOK, flight)
}

type searchRequest struct {
	From          string `json:"from" binding:"required"`
	To            string `json:"to" binding:"required"`
	DepartureDate string `json:"departure_date" binding:"required"`
	ReturnDate    string `json:"return_date"`
	RoundTrip     bool   `json:"round_trip"`
}

func (h *FlightHandler) search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from, to and departure_date are required"})
		return
	}

	departure, err := time.Parse("2006-01-02", req.DepartureDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "departure_date must be YYYY-MM-DD"})
		return
	}

	criteria := repository.FlightSearch{
		From:          req.From,
		To:            req.To,
		DepartureDate: departure,
		RoundTrip:     req.RoundTrip,
	}
	if req.RoundTrip {
		ret, err := time.Parse("2006-01-02", req.ReturnDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "return_date must be YYYY-MM-DD"})
			return
		}
		criteria.ReturnDate = ret
	}

	results, err := h.service.Search(c.Request.Context(), criteria)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"flights": results})
}

func (h *FlightHandler) create(c *gin.Context) {
	var flight domain.Flight
	if err := c.ShouldBindJSON(&flight); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.service.Create(c.Request.Context(), &flight); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, &flight)
}
